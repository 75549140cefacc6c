package deprebuddy_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/aretw0/deprebuddy"
	"github.com/aretw0/deprebuddy/pkg/agent"
	"github.com/aretw0/deprebuddy/pkg/crisis"
	"github.com/aretw0/deprebuddy/pkg/dialogue"
	"github.com/aretw0/deprebuddy/pkg/domain"
	"github.com/aretw0/deprebuddy/pkg/phq"
	"github.com/aretw0/deprebuddy/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type unavailable struct{}

func (unavailable) Error() string   { return "service unavailable" }
func (unavailable) StatusCode() int { return http.StatusServiceUnavailable }

// scriptedGenerator records every request and can be switched to failing.
type scriptedGenerator struct {
	mu       sync.Mutex
	fail     bool
	requests []ports.GenerateRequest
}

func (g *scriptedGenerator) Generate(_ context.Context, req ports.GenerateRequest) (ports.GenerateResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	if g.fail {
		return ports.GenerateResponse{}, unavailable{}
	}
	return ports.GenerateResponse{Text: req.Fallback}, nil
}

func (g *scriptedGenerator) last() ports.GenerateRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.requests[len(g.requests)-1]
}

func newEngine(gen ports.Generator, opts ...deprebuddy.Option) *deprebuddy.Engine {
	policy := agent.DefaultRetryPolicy()
	policy.Sleep = func(context.Context, time.Duration) error { return nil }
	d := agent.NewDispatcher(gen, agent.WithRetryPolicy(policy))
	return deprebuddy.New(append([]deprebuddy.Option{deprebuddy.WithDispatcher(d)}, opts...)...)
}

func TestEngine_EndToEnd(t *testing.T) {
	gen := &scriptedGenerator{}
	eng := newEngine(gen)
	ctx := context.Background()

	res, err := eng.Chat(ctx, "e2e", "I've been feeling down")
	require.NoError(t, err)
	assert.Equal(t, domain.StageAssessment, res.Stage)
	assert.Contains(t, res.Message, phq.Questions[0])

	answers := []string{"1", "2", "0", "3", "1", "2", "0", "1"}
	for i, a := range answers {
		res, err = eng.Chat(ctx, "e2e", a)
		require.NoError(t, err)
		assert.Equal(t, domain.StageAssessment, res.Stage, "answer %d", i+1)
	}

	require.NotNil(t, res.Score)
	assert.Equal(t, 10, *res.Score)
	assert.Equal(t, domain.CategoryModerate, res.Category)
	assert.Contains(t, res.Message, phq.SafetyQuestion)

	res, err = eng.Chat(ctx, "e2e", "no, never")
	require.NoError(t, err)
	assert.Equal(t, domain.StageResource, res.Stage)
	assert.False(t, res.CrisisDetected)
	assert.Contains(t, gen.last().Prompt, "PHQ score 10 (Moderate depression)")

	s, err := eng.Session(ctx, "e2e")
	require.NoError(t, err)
	assert.Len(t, s.History, 2*(len(answers)+2))
	assert.Equal(t, 10, s.TotalScore)
	require.NotNil(t, s.SafetyAnswer)
	assert.Equal(t, 0, *s.SafetyAnswer)
}

func TestEngine_Reprompt(t *testing.T) {
	eng := newEngine(&scriptedGenerator{})
	ctx := context.Background()

	_, err := eng.Chat(ctx, "r", "hello")
	require.NoError(t, err)

	res, err := eng.Chat(ctx, "r", "I don't know")
	require.NoError(t, err)
	assert.Equal(t, domain.StageAssessment, res.Stage)
	assert.Contains(t, res.Message, phq.Questions[0])

	s, err := eng.Session(ctx, "r")
	require.NoError(t, err)
	assert.Empty(t, s.Answers)
	assert.Equal(t, 1, s.NextQuestion)
}

func TestEngine_Crisis(t *testing.T) {
	gen := &scriptedGenerator{}
	eng := newEngine(gen)
	ctx := context.Background()

	_, err := eng.Chat(ctx, "c", "hi")
	require.NoError(t, err)
	_, err = eng.Chat(ctx, "c", "2")
	require.NoError(t, err)

	res, err := eng.Chat(ctx, "c", "I want to end it all")
	require.NoError(t, err)
	assert.Equal(t, domain.StageResource, res.Stage)
	assert.True(t, res.CrisisDetected)
	assert.True(t, strings.HasPrefix(res.Message, crisis.ResourceMessage))
	assert.Contains(t, gen.last().Prompt, crisis.ResourceMessage)

	// Sticky: a scorable answer no longer moves the assessment.
	res, err = eng.Chat(ctx, "c", "3")
	require.NoError(t, err)
	assert.Equal(t, domain.StageResource, res.Stage)

	s, err := eng.Session(ctx, "c")
	require.NoError(t, err)
	assert.True(t, s.CrisisFlagged)
	assert.Len(t, s.Answers, 1)
}

func TestEngine_SafetyItemRaisesCrisis(t *testing.T) {
	eng := newEngine(&scriptedGenerator{})
	ctx := context.Background()

	_, err := eng.Chat(ctx, "safety", "hi")
	require.NoError(t, err)
	for range domain.TotalQuestions {
		_, err = eng.Chat(ctx, "safety", "0")
		require.NoError(t, err)
	}

	res, err := eng.Chat(ctx, "safety", "yes, sometimes")
	require.NoError(t, err)
	assert.True(t, res.CrisisDetected)
	assert.Equal(t, domain.StageResource, res.Stage)

	s, err := eng.Session(ctx, "safety")
	require.NoError(t, err)
	assert.Equal(t, 0, s.TotalScore, "item 9 never enters the total")
}

func TestEngine_DegradedResponse(t *testing.T) {
	gen := &scriptedGenerator{}
	eng := newEngine(gen)
	ctx := context.Background()

	_, err := eng.Chat(ctx, "d", "hi")
	require.NoError(t, err)
	before, err := eng.Session(ctx, "d")
	require.NoError(t, err)

	gen.fail = true
	res, err := eng.Chat(ctx, "d", "2")
	require.NoError(t, err)
	assert.True(t, res.Degraded)
	assert.Equal(t, deprebuddy.ApologyMessage, res.Message)
	assert.Equal(t, domain.StageAssessment, res.Stage)

	after, err := eng.Session(ctx, "d")
	require.NoError(t, err)
	assert.Equal(t, before.History, after.History)
	assert.Equal(t, before.Answers, after.Answers)
	assert.Equal(t, before.NextQuestion, after.NextQuestion)
}

func TestEngine_CrisisSurvivesDispatchFailure(t *testing.T) {
	gen := &scriptedGenerator{fail: true}
	eng := newEngine(gen)
	ctx := context.Background()

	res, err := eng.Chat(ctx, "cf", "I feel like I can't go on")
	require.NoError(t, err)
	assert.False(t, res.Degraded)
	assert.Equal(t, crisis.ResourceMessage, res.Message)

	s, err := eng.Session(ctx, "cf")
	require.NoError(t, err)
	assert.True(t, s.CrisisFlagged)
	assert.Equal(t, domain.StageResource, s.Stage)
	require.Len(t, s.History, 2)
}

func TestEngine_InvalidInput(t *testing.T) {
	eng := newEngine(&scriptedGenerator{}, deprebuddy.WithMaxMessageSize(8))

	_, err := eng.Chat(context.Background(), "x", "this message is far too long")
	assert.ErrorIs(t, err, dialogue.ErrMessageTooLarge)

	_, err = eng.Session(context.Background(), "x")
	assert.True(t, deprebuddy.IsNotFound(err), "rejected input must not create a session")
}

func TestEngine_CrisisInOversizedMessage(t *testing.T) {
	gen := &scriptedGenerator{}
	eng := newEngine(gen)
	ctx := context.Background()

	msg := strings.Repeat("Another long day at work, nothing helps. ", 110) + "I want to kill myself."
	require.Greater(t, len(msg), dialogue.DefaultMaxMessageSize)

	res, err := eng.Chat(ctx, "long", msg)
	require.NoError(t, err)
	assert.True(t, res.CrisisDetected)
	assert.True(t, res.CrisisRaised)
	assert.Equal(t, domain.StageResource, res.Stage)
	assert.True(t, strings.HasPrefix(res.Message, crisis.ResourceMessage))

	s, err := eng.Session(ctx, "long")
	require.NoError(t, err)
	assert.True(t, s.CrisisFlagged)
	require.Len(t, s.History, 2)
	assert.LessOrEqual(t, len(s.History[0].Text), dialogue.DefaultMaxMessageSize)
}

func TestEngine_CrisisInInvalidUTF8(t *testing.T) {
	eng := newEngine(&scriptedGenerator{})
	ctx := context.Background()

	res, err := eng.Chat(ctx, "bytes", "I want to end it all \xff")
	require.NoError(t, err)
	assert.True(t, res.CrisisDetected)
	assert.Equal(t, domain.StageResource, res.Stage)

	s, err := eng.Session(ctx, "bytes")
	require.NoError(t, err)
	require.Len(t, s.History, 2)
	assert.True(t, utf8.ValidString(s.History[0].Text))

	// Without crisis language the same defect is still rejected.
	_, err = eng.Chat(ctx, "bytes", "fine \xff")
	assert.ErrorIs(t, err, dialogue.ErrInvalidUTF8)
}

func TestEngine_CrisisRaisedInResource(t *testing.T) {
	eng := newEngine(&scriptedGenerator{})
	ctx := context.Background()

	_, err := eng.Chat(ctx, "again", "I want to end it all")
	require.NoError(t, err)

	res, err := eng.Chat(ctx, "again", "I still want to end it all")
	require.NoError(t, err)
	assert.Equal(t, domain.StageResource, res.PreviousStage)
	assert.True(t, res.CrisisRaised)

	res, err = eng.Chat(ctx, "again", "thanks for listening")
	require.NoError(t, err)
	assert.True(t, res.CrisisDetected, "the flag is sticky")
	assert.False(t, res.CrisisRaised)
}

func TestEngine_UsesInjectedClock(t *testing.T) {
	fixed := time.Date(2030, 6, 1, 9, 0, 0, 0, time.UTC)
	eng := newEngine(&scriptedGenerator{}, deprebuddy.WithClock(func() time.Time { return fixed }))
	ctx := context.Background()

	for _, msg := range []string{"hello", "2"} {
		_, err := eng.Chat(ctx, "clock", msg)
		require.NoError(t, err)
	}

	s, err := eng.Session(ctx, "clock")
	require.NoError(t, err)
	assert.Equal(t, map[int]int{1: 2}, s.Answers)
	assert.True(t, fixed.Equal(s.UpdatedAt))
}

func TestEngine_SessionLifecycle(t *testing.T) {
	eng := newEngine(&scriptedGenerator{})
	ctx := context.Background()

	s, err := eng.NewSession(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, domain.StageTriage, s.Stage)

	res, err := eng.Chat(ctx, "", "hello")
	require.NoError(t, err)
	assert.NotEmpty(t, res.SessionID)

	ids, err := eng.ListSessions(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{s.ID, res.SessionID}, ids)

	require.NoError(t, eng.DeleteSession(ctx, s.ID))
	_, err = eng.Session(ctx, s.ID)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	err = eng.DeleteSession(ctx, s.ID)
	assert.True(t, errors.Is(err, domain.ErrSessionNotFound))
}

func TestEngine_ConcurrentTurnsOnOneSession(t *testing.T) {
	eng := newEngine(&scriptedGenerator{})
	ctx := context.Background()

	_, err := eng.Chat(ctx, "conc", "hi")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := eng.Chat(ctx, "conc", "1")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	s, err := eng.Session(ctx, "conc")
	require.NoError(t, err)
	assert.Equal(t, map[int]int{1: 1, 2: 1, 3: 1, 4: 1}, s.Answers)
	assert.Len(t, s.History, 10)
}

func TestEngine_Hooks(t *testing.T) {
	var (
		mu     sync.Mutex
		events []string
	)
	record := func(name string) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, name)
	}
	hooks := domain.LifecycleHooks{
		OnStageEnter: func(_ context.Context, e *domain.StageEvent) { record("enter:" + e.To.String()) },
		OnCrisis:     func(context.Context, *domain.StageEvent) { record("crisis") },
		OnDispatch:   func(context.Context, *domain.DispatchEvent) { record("dispatch") },
	}
	eng := newEngine(&scriptedGenerator{}, deprebuddy.WithLifecycleHooks(hooks))

	_, err := eng.Chat(context.Background(), "h", "I want to die")
	require.NoError(t, err)
	assert.Equal(t, []string{"dispatch", "crisis", "enter:resource"}, events)
}

func ExampleEngine_Chat() {
	eng := deprebuddy.New()
	res, err := eng.Chat(context.Background(), "demo", "I've been feeling down")
	if err != nil {
		panic(err)
	}
	fmt.Println(res.Stage)
	// Output: assessment
}
