package dialogue

import (
	"fmt"
	"time"

	"github.com/aretw0/deprebuddy/pkg/crisis"
	"github.com/aretw0/deprebuddy/pkg/domain"
	"github.com/aretw0/deprebuddy/pkg/phq"
)

// Plan is the outcome of routing one user message.
type Plan struct {
	From domain.Stage
	To   domain.Stage

	// CrisisDetected is true when this message raised (or re-raised) the crisis flag.
	CrisisDetected bool
	// CrisisResources holds the literal resource text when CrisisDetected.
	CrisisResources string

	// Ask is the scored question (1..8) the agent must put next, 0 for none.
	Ask int
	// Reprompt means the previous answer could not be scored and Ask is repeated.
	Reprompt bool

	// Scored is true when an answer was recorded this turn.
	Scored bool
	Score  int

	// Completed is true when this turn recorded the last scored answer.
	Completed bool
	// AskSafety asks the self-harm item after completion.
	AskSafety bool
	// SafetyAnswered is true when this turn answered the self-harm item.
	SafetyAnswered bool
}

// Detector classifies a message for crisis language.
type Detector func(text string) crisis.Result

// Router is the dialogue state machine.
type Router struct {
	detect Detector
}

// Option configures the Router.
type Option func(*Router)

// WithDetector replaces the default crisis detector.
func WithDetector(d Detector) Option {
	return func(r *Router) {
		r.detect = d
	}
}

// NewRouter creates a Router using the fixed crisis phrase detector.
func NewRouter(opts ...Option) *Router {
	r := &Router{detect: crisis.Detect}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Detect runs the router's crisis detector on text.
func (r *Router) Detect(text string) crisis.Result {
	return r.detect(text)
}

// Decide resolves the next stage for message and applies the crisis and scoring
// side effects to s. The returned error is only ever domain.ErrInvalidTransition.
func (r *Router) Decide(s *domain.Session, message string) (Plan, error) {
	return r.DecideWith(s, message, r.detect(message))
}

// DecideWith is Decide with the crisis check already done, for callers that
// screened a longer or unrepaired form of message.
func (r *Router) DecideWith(s *domain.Session, message string, res crisis.Result) (Plan, error) {
	plan := Plan{From: s.Stage}

	// 1. Crisis check, unconditional.
	if res.Flagged {
		s.CrisisFlagged = true
		plan.CrisisDetected = true
		plan.CrisisResources = res.ResourceMessage
	}

	// The reply following the self-harm item goes through the same crisis path.
	if s.Stage == domain.StageAssessment && s.SafetyAsked && s.SafetyAnswer == nil {
		answer := safetyScore(message)
		s.SafetyAnswer = &answer
		plan.SafetyAnswered = true
		if answer > 0 {
			s.CrisisFlagged = true
			plan.CrisisDetected = true
		}
	}
	if plan.CrisisDetected && plan.CrisisResources == "" {
		plan.CrisisResources = crisis.ResourceMessage
	}

	// 2. Crisis override.
	if s.CrisisFlagged {
		plan.To = domain.StageResource
		return plan, nil
	}

	// 3-5. Stage rules.
	switch s.Stage {
	case domain.StageTriage:
		plan.To = domain.StageAssessment
		plan.Ask = s.NextQuestion

	case domain.StageAssessment:
		if s.Completed {
			plan.To = domain.StageResource
			return plan, nil
		}
		plan.To = domain.StageAssessment

		score, ok := phq.ExtractScore(message)
		if !ok {
			plan.Reprompt = true
			plan.Ask = s.NextQuestion
			return plan, nil
		}
		if err := phq.RecordAnswer(s, s.NextQuestion, score); err != nil {
			return plan, fmt.Errorf("record answer: %w", err)
		}
		plan.Scored = true
		plan.Score = score

		if s.Completed {
			plan.Completed = true
			plan.AskSafety = true
			s.SafetyAsked = true
		} else {
			plan.Ask = s.NextQuestion
		}

	case domain.StageResource:
		plan.To = domain.StageResource

	default:
		return plan, fmt.Errorf("%w: from %v", domain.ErrInvalidTransition, s.Stage)
	}

	return plan, nil
}

// Apply records the completed turn and moves the session to the resolved stage.
func (r *Router) Apply(s *domain.Session, plan Plan, userText, agentText string, now time.Time) {
	s.History = append(s.History,
		domain.Turn{Role: domain.RoleUser, Text: userText, At: now},
		domain.Turn{Role: domain.RoleAgent, Text: agentText, At: now},
	)
	s.Stage = plan.To
	s.UpdatedAt = now
}

// safetyScore turns a reply to the self-harm item into a 0-3 value.
func safetyScore(message string) int {
	if score, ok := phq.ExtractScore(message); ok {
		return score
	}
	if phq.IsAffirmative(message) {
		return 1
	}
	return 0
}
