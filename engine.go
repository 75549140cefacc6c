package deprebuddy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/aretw0/deprebuddy/internal/logging"
	"github.com/aretw0/deprebuddy/pkg/adapters/memory"
	"github.com/aretw0/deprebuddy/pkg/agent"
	"github.com/aretw0/deprebuddy/pkg/dialogue"
	"github.com/aretw0/deprebuddy/pkg/domain"
	"github.com/aretw0/deprebuddy/pkg/ports"
	"github.com/aretw0/deprebuddy/pkg/session"
	"github.com/google/uuid"
)

// ApologyMessage is the in-band reply of a turn that could not be completed.
const ApologyMessage = "I'm sorry, something went wrong on my side and I couldn't process that. " +
	"Please try sending your message again in a moment."

// ChatResult is the outcome of one user turn.
type ChatResult struct {
	SessionID string
	Message   string
	Stage     domain.Stage
	// PreviousStage is the stage the turn started in.
	PreviousStage domain.Stage
	// Score is set once the assessment is complete.
	Score    *int
	Category domain.Category
	// CrisisDetected reports the session's sticky crisis flag.
	CrisisDetected bool
	// CrisisRaised is true when this message raised the crisis flag, even if
	// the session was already flagged or already in the Resource stage.
	CrisisRaised bool
	Sources      []ports.Source
	// Degraded is true when Message is ApologyMessage and nothing was recorded.
	// A crisis turn is never degraded: when its dispatch fails the literal
	// resource message is returned and recorded instead.
	Degraded bool
}

// Engine is the high-level entry point of the screening service.
type Engine struct {
	sessions   *session.Manager
	router     *dialogue.Router
	dispatcher *agent.Dispatcher
	hooks      domain.LifecycleHooks
	logger     *slog.Logger
	now        func() time.Time
	newID      func() string
	maxMessage int
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithSessionManager sets the session table.
func WithSessionManager(m *session.Manager) Option {
	return func(e *Engine) {
		e.sessions = m
	}
}

// WithStore backs the session table with store.
func WithStore(store ports.SessionStore, opts ...session.Option) Option {
	return func(e *Engine) {
		e.sessions = session.NewManager(store, opts...)
	}
}

// WithDispatcher sets the agent dispatcher.
func WithDispatcher(d *agent.Dispatcher) Option {
	return func(e *Engine) {
		e.dispatcher = d
	}
}

// WithRouter sets the dialogue router.
func WithRouter(r *dialogue.Router) Option {
	return func(e *Engine) {
		e.router = r
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithIDGenerator overrides how new session IDs are minted.
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) {
		e.newID = fn
	}
}

// WithMaxMessageSize bounds accepted user messages in bytes.
func WithMaxMessageSize(n int) Option {
	return func(e *Engine) {
		e.maxMessage = n
	}
}

// New creates an Engine. Without options it keeps sessions in memory and
// replies with the offline generator.
func New(opts ...Option) *Engine {
	e := &Engine{
		logger: logging.NewNop(),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.sessions == nil {
		e.sessions = session.NewManager(memory.NewStore(), session.WithLogger(e.logger), session.WithClock(e.now))
	}
	if e.router == nil {
		e.router = dialogue.NewRouter()
	}
	if e.dispatcher == nil {
		e.dispatcher = agent.NewDispatcher(agent.StaticGenerator{}, agent.WithLogger(e.logger))
	}
	return e
}

// Chat processes one user message for sessionID, creating the session when it is
// unknown (an empty ID gets a fresh one). Turns of the same session run one at a
// time.
//
// The only errors returned are input validation failures, and never for a
// message containing crisis language: an oversized or malformed message that
// is flagged is repaired and routed to the Resource stage. When the model call
// fails on a crisis turn the resource message is still delivered and the turn
// is recorded, so the result is not Degraded.
func (e *Engine) Chat(ctx context.Context, sessionID, message string) (*ChatResult, error) {
	clean, err := dialogue.SanitizeMessage(message, e.maxMessage)
	screened := e.router.Detect(clean)
	if err != nil {
		screened = e.router.Detect(strings.ToValidUTF8(message, string(utf8.RuneError)))
		if !screened.Flagged {
			return nil, err
		}
		e.logger.Warn("Accepting invalid message with crisis language",
			"session_id", sessionID, "size", len(message), "err", err)
		clean = dialogue.RepairMessage(message, e.maxMessage)
	}
	if sessionID == "" {
		sessionID = e.newID()
	}

	var (
		plan  dialogue.Plan
		reply agent.Reply
	)
	s, err := e.sessions.Update(ctx, sessionID, func(ctx context.Context, s *domain.Session) error {
		var err error
		plan, err = e.router.DecideWith(s, clean, screened)
		if err != nil {
			return err
		}

		reply, err = e.dispatcher.Dispatch(ctx, s, plan, clean)
		e.emitDispatch(ctx, s.ID, plan.To, reply, err)
		if err != nil {
			if !plan.CrisisDetected {
				return err
			}
			// The resources must reach the user even without a model.
			e.logger.Warn("Dispatch failed on crisis turn, delivering resources only",
				"session_id", s.ID, "err", err)
			reply = agent.Reply{Text: agent.CrisisReply(plan)}
		}

		e.router.Apply(s, plan, clean, reply.Text, e.now())
		return nil
	})
	if err != nil {
		e.logger.Error("Turn degraded",
			"session_id", sessionID,
			"err", err,
		)
		return e.degraded(sessionID, s), nil
	}

	e.emitTurn(ctx, s, plan)
	return project(s, reply, plan), nil
}

// NewSession creates an empty session at the Triage stage.
func (e *Engine) NewSession(ctx context.Context) (*domain.Session, error) {
	for {
		s, created, err := e.sessions.GetOrCreate(ctx, e.newID())
		if err != nil {
			return nil, err
		}
		if created {
			return s, nil
		}
	}
}

// Session returns the current snapshot of a session.
func (e *Engine) Session(ctx context.Context, sessionID string) (*domain.Session, error) {
	return e.sessions.Get(ctx, sessionID)
}

// DeleteSession removes a session. It returns domain.ErrSessionNotFound when absent.
func (e *Engine) DeleteSession(ctx context.Context, sessionID string) error {
	ok, err := e.sessions.Delete(ctx, sessionID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrSessionNotFound, sessionID)
	}
	return nil
}

// ListSessions returns the active session IDs.
func (e *Engine) ListSessions(ctx context.Context) ([]string, error) {
	return e.sessions.List(ctx)
}

// IsNotFound reports whether err means the session does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, domain.ErrSessionNotFound)
}

func (e *Engine) degraded(sessionID string, s *domain.Session) *ChatResult {
	res := &ChatResult{
		SessionID:     sessionID,
		Message:       ApologyMessage,
		Stage:         domain.StageTriage,
		PreviousStage: domain.StageTriage,
		Degraded:      true,
	}
	if s != nil {
		res.Stage = s.Stage
		res.PreviousStage = s.Stage
		res.CrisisDetected = s.CrisisFlagged
	}
	return res
}

func project(s *domain.Session, reply agent.Reply, plan dialogue.Plan) *ChatResult {
	res := &ChatResult{
		SessionID:      s.ID,
		Message:        reply.Text,
		Stage:          s.Stage,
		PreviousStage:  plan.From,
		CrisisDetected: s.CrisisFlagged,
		CrisisRaised:   plan.CrisisDetected,
		Sources:        reply.Sources,
	}
	if s.Completed {
		score := s.TotalScore
		res.Score = &score
		res.Category = s.Category
	}
	return res
}

func (e *Engine) emitDispatch(ctx context.Context, id string, stage domain.Stage, reply agent.Reply, err error) {
	if e.hooks.OnDispatch == nil {
		return
	}
	e.hooks.OnDispatch(ctx, &domain.DispatchEvent{
		EventBase: domain.EventBase{Timestamp: e.now(), Type: domain.EventDispatch, SessionID: id},
		Stage:     stage,
		Attempts:  reply.Attempts,
		Duration:  reply.Duration,
		Err:       err,
	})
}

func (e *Engine) emitTurn(ctx context.Context, s *domain.Session, plan dialogue.Plan) {
	base := func(t domain.EventType) domain.EventBase {
		return domain.EventBase{Timestamp: e.now(), Type: t, SessionID: s.ID}
	}

	if plan.CrisisDetected && e.hooks.OnCrisis != nil {
		e.hooks.OnCrisis(ctx, &domain.StageEvent{EventBase: base(domain.EventCrisis), From: plan.From, To: plan.To})
	}
	if plan.Completed && e.hooks.OnAssessmentComplete != nil {
		e.hooks.OnAssessmentComplete(ctx, &domain.AssessmentEvent{
			EventBase:  base(domain.EventAssessmentComplete),
			TotalScore: s.TotalScore,
			Category:   s.Category,
		})
	}
	if e.hooks.OnStageEnter != nil {
		e.hooks.OnStageEnter(ctx, &domain.StageEvent{EventBase: base(domain.EventStageEnter), From: plan.From, To: plan.To})
	}
}
