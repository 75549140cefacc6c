package ports

import (
	"context"

	"github.com/aretw0/deprebuddy/pkg/domain"
)

// GenerateRequest is a single call to the hosted language model.
type GenerateRequest struct {
	// System is the agent instruction for the active stage.
	System string
	// Prompt is the contextualized user message.
	Prompt string
	// History holds prior turns, oldest first.
	History []domain.Turn
	// Grounded enables search grounding when the provider supports it.
	Grounded bool
	// Fallback is a deterministic reply offline generators may return verbatim.
	Fallback string
}

// Source is a citation returned by a grounded generation.
type Source struct {
	URI   string `json:"uri"`
	Title string `json:"title"`
}

// GenerateResponse is the generated reply.
type GenerateResponse struct {
	Text    string
	Sources []Source
}

// Generator performs one generation call. Retries are the caller's concern:
// errors that carry an HTTP status implement interface{ StatusCode() int }.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, error)
}
