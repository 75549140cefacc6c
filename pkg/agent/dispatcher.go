package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aretw0/deprebuddy/internal/logging"
	"github.com/aretw0/deprebuddy/pkg/crisis"
	"github.com/aretw0/deprebuddy/pkg/dialogue"
	"github.com/aretw0/deprebuddy/pkg/domain"
	"github.com/aretw0/deprebuddy/pkg/phq"
	"github.com/aretw0/deprebuddy/pkg/ports"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/aretw0/deprebuddy/pkg/agent"

// Reply is the agent output for one turn.
type Reply struct {
	Text     string
	Sources  []ports.Source
	Attempts int
	Duration time.Duration
}

// Dispatcher maps a resolved stage to its agent and performs the generation call.
type Dispatcher struct {
	gen           ports.Generator
	instructions  Instructions
	retry         RetryPolicy
	historyTokens int
	logger        *slog.Logger
	tracer        trace.Tracer
}

// Option configures the Dispatcher.
type Option func(*Dispatcher)

// WithInstructions replaces the stage instructions.
func WithInstructions(in Instructions) Option {
	return func(d *Dispatcher) {
		for stage, text := range in {
			d.instructions[stage] = text
		}
	}
}

// WithRetryPolicy replaces the retry schedule.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(d *Dispatcher) {
		d.retry = p
	}
}

// WithHistoryTokens sets the transcript token budget. Zero sends no history.
func WithHistoryTokens(n int) Option {
	return func(d *Dispatcher) {
		d.historyTokens = n
	}
}

// WithLogger configures a logger for the Dispatcher.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// NewDispatcher creates a Dispatcher backed by gen.
func NewDispatcher(gen ports.Generator, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		gen:           gen,
		instructions:  DefaultInstructions(),
		retry:         DefaultRetryPolicy(),
		historyTokens: DefaultHistoryTokens,
		logger:        logging.NewNop(),
		tracer:        otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Instruction returns the system instruction for stage.
func (d *Dispatcher) Instruction(stage domain.Stage) string {
	return d.instructions[stage]
}

// Dispatch invokes the agent for plan.To. s must already carry the effects of the plan.
func (d *Dispatcher) Dispatch(ctx context.Context, s *domain.Session, plan dialogue.Plan, message string) (Reply, error) {
	ctx, span := d.tracer.Start(ctx, "agent.dispatch", trace.WithAttributes(
		attribute.String("session.id", s.ID),
		attribute.String("stage.from", plan.From.String()),
		attribute.String("stage.to", plan.To.String()),
		attribute.Bool("crisis", s.CrisisFlagged),
	))
	defer span.End()

	req := d.BuildRequest(s, plan, message)

	var resp ports.GenerateResponse
	start := time.Now()
	attempts, err := d.retry.Do(ctx, d.logger, func(ctx context.Context) error {
		var err error
		resp, err = d.gen.Generate(ctx, req)
		return err
	})
	reply := Reply{Attempts: attempts, Duration: time.Since(start)}
	span.SetAttributes(attribute.Int("attempts", attempts))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		d.logger.Error("Agent dispatch failed",
			"session_id", s.ID,
			"stage", plan.To.String(),
			"attempts", attempts,
			"err", err,
		)
		return reply, err
	}

	reply.Text = compose(plan, resp)
	reply.Sources = resp.Sources
	return reply, nil
}

// BuildRequest assembles the generation request for the plan.
func (d *Dispatcher) BuildRequest(s *domain.Session, plan dialogue.Plan, message string) ports.GenerateRequest {
	return ports.GenerateRequest{
		System:   d.instructions[plan.To],
		Prompt:   Contextualize(s, plan, message),
		History:  TrimHistory(s.History, d.historyTokens),
		Grounded: plan.To == domain.StageResource,
		Fallback: Fallback(s, plan),
	}
}

// Contextualize prefixes the user message with the facts the agent must act on.
func Contextualize(s *domain.Session, plan dialogue.Plan, message string) string {
	var b strings.Builder

	if s.CrisisFlagged {
		b.WriteString("[CRISIS] The user may be at risk of self-harm. Lead with these crisis resources verbatim:\n")
		b.WriteString(resources(plan))
		b.WriteString("\n\n")
	}

	switch {
	case plan.To == domain.StageResource:
		if s.Completed {
			fmt.Fprintf(&b, "[RESULT] PHQ score %d (%s).\n", s.TotalScore, s.Category.Label())
		}
	case plan.Reprompt:
		fmt.Fprintf(&b, "[REPROMPT] The previous answer could not be scored. Ask question %d again.\n", plan.Ask)
		writeQuestion(&b, plan.Ask)
	case plan.AskSafety:
		fmt.Fprintf(&b, "[RESULT] PHQ score %d (%s).\n", s.TotalScore, s.Category.Label())
		fmt.Fprintf(&b, "[ASK] Question %d: %s\n[SCALE] %s\n", phq.SafetyIndex, phq.SafetyQuestion, phq.AnswerScale)
	case plan.Ask > 0:
		writeQuestion(&b, plan.Ask)
	}

	b.WriteString("[USER] ")
	b.WriteString(message)
	return b.String()
}

// Fallback is the deterministic reply used when no model is available.
func Fallback(s *domain.Session, plan dialogue.Plan) string {
	var b strings.Builder

	switch {
	case plan.To == domain.StageResource:
		if s.Completed {
			fmt.Fprintf(&b, "Thank you for completing the questionnaire. Your score is %d, which suggests %s. ",
				s.TotalScore, strings.ToLower(s.Category.Label()))
		}
		b.WriteString("Talking to your GP or a mental health professional is a good next step, " +
			"and small routines like regular sleep, movement and reaching out to someone you trust can help.")
	case plan.Reprompt:
		b.WriteString("Sorry, I didn't catch that. Please answer with a number from 0 to 3.\n")
		writeFallbackQuestion(&b, plan.Ask)
	case plan.AskSafety:
		fmt.Fprintf(&b, "Thank you. Your score is %d (%s).\nOne last question: %s\n(%s)",
			s.TotalScore, s.Category.Label(), phq.SafetyQuestion, phq.AnswerScale)
	case plan.From == domain.StageTriage:
		b.WriteString("Thank you for sharing that with me. I'd like to ask a few short questions about the last two weeks.\n")
		writeFallbackQuestion(&b, plan.Ask)
	case plan.Ask > 0:
		writeFallbackQuestion(&b, plan.Ask)
	}
	return b.String()
}

// compose prepends the crisis resources on the turn that raised the flag and
// lists grounding sources after a resource reply.
func compose(plan dialogue.Plan, resp ports.GenerateResponse) string {
	text := strings.TrimSpace(resp.Text)
	if plan.CrisisDetected {
		text = resources(plan) + "\n\n" + text
	}
	if plan.To == domain.StageResource && len(resp.Sources) > 0 {
		var b strings.Builder
		b.WriteString(text)
		b.WriteString("\n\nSources:")
		for _, src := range resp.Sources {
			title := src.Title
			if title == "" {
				title = src.URI
			}
			fmt.Fprintf(&b, "\n- %s (%s)", title, src.URI)
		}
		text = b.String()
	}
	return text
}

// CrisisReply is the reply delivered when the flag was raised but the call failed.
func CrisisReply(plan dialogue.Plan) string {
	return resources(plan)
}

func resources(plan dialogue.Plan) string {
	if plan.CrisisResources != "" {
		return plan.CrisisResources
	}
	return crisis.ResourceMessage
}

func writeQuestion(b *strings.Builder, index int) {
	q, err := phq.Question(index)
	if err != nil {
		return
	}
	fmt.Fprintf(b, "[ASK] Question %d: %s\n[SCALE] %s\n", index, q, phq.AnswerScale)
}

func writeFallbackQuestion(b *strings.Builder, index int) {
	q, err := phq.Question(index)
	if err != nil {
		return
	}
	fmt.Fprintf(b, "Over the last 2 weeks, how often have you been bothered by: %s\n(%s)", q, phq.AnswerScale)
}
