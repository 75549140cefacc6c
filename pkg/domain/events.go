package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventStageEnter         EventType = "stage_enter"
	EventCrisis             EventType = "crisis"
	EventAssessmentComplete EventType = "assessment_complete"
	EventDispatch           EventType = "dispatch"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id"`
}

// StageEvent is emitted after a turn resolves its stage.
type StageEvent struct {
	EventBase
	From Stage `json:"from"`
	To   Stage `json:"to"`
}

// AssessmentEvent is emitted when the last scored answer is recorded.
type AssessmentEvent struct {
	EventBase
	TotalScore int      `json:"total_score"`
	Category   Category `json:"category"`
}

// DispatchEvent represents one external generation call, retries included.
type DispatchEvent struct {
	EventBase
	Stage    Stage         `json:"stage"`
	Attempts int           `json:"attempts"`
	Duration time.Duration `json:"duration"`
	Err      error         `json:"-"`
}

// LifecycleHooks defines callbacks for engine observability.
type LifecycleHooks struct {
	OnStageEnter         func(context.Context, *StageEvent)
	OnCrisis             func(context.Context, *StageEvent)
	OnAssessmentComplete func(context.Context, *AssessmentEvent)
	OnDispatch           func(context.Context, *DispatchEvent)
}
