package domain

import "errors"

// ErrSessionNotFound is returned when a session ID cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// ErrInvalidStage is returned when a stage value outside the closed enum is decoded.
var ErrInvalidStage = errors.New("invalid dialogue stage")

// ErrInvalidTransition guards against routing to an undefined stage.
// It is unreachable by construction and fatal to the single request only.
var ErrInvalidTransition = errors.New("invalid stage transition")

// ErrExtractionFailed is returned when a reply cannot be mapped to a 0-3 score.
var ErrExtractionFailed = errors.New("could not extract a score from the reply")

// ErrUnexpectedQuestion is returned when an answer targets a question other than the expected next one.
var ErrUnexpectedQuestion = errors.New("answer does not match the expected question")

// ErrScoreOutOfRange is returned when an item score is outside [0,3].
var ErrScoreOutOfRange = errors.New("item score out of range")

// ErrUpstreamExhausted is returned when the generation call keeps failing after every retry.
var ErrUpstreamExhausted = errors.New("upstream generation failed after retries")
