package dialogue_test

import (
	"testing"
	"time"

	"github.com/aretw0/deprebuddy/pkg/crisis"
	"github.com/aretw0/deprebuddy/pkg/dialogue"
	"github.com/aretw0/deprebuddy/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// step runs Decide and Apply the way the engine does.
func step(t *testing.T, r *dialogue.Router, s *domain.Session, msg string) dialogue.Plan {
	t.Helper()
	plan, err := r.Decide(s, msg)
	require.NoError(t, err)
	r.Apply(s, plan, msg, "ok", time.Now())
	return plan
}

func TestRouter_TriageHandsOffToAssessment(t *testing.T) {
	r := dialogue.NewRouter()
	s := domain.NewSession("s", time.Now())

	plan := step(t, r, s, "I've been feeling down")

	assert.Equal(t, domain.StageTriage, plan.From)
	assert.Equal(t, domain.StageAssessment, plan.To)
	assert.Equal(t, 1, plan.Ask)
	assert.Equal(t, domain.StageAssessment, s.Stage)
	assert.False(t, s.CrisisFlagged)
	assert.Empty(t, s.Answers, "triage replies are never scored")
	assert.Len(t, s.History, 2)
}

func TestRouter_FullAssessment(t *testing.T) {
	r := dialogue.NewRouter()
	s := domain.NewSession("s", time.Now())
	step(t, r, s, "I've been feeling down")

	replies := []string{"1", "2", "0", "3", "1", "2", "0", "1"}
	for i, reply := range replies {
		plan := step(t, r, s, reply)
		assert.True(t, plan.Scored)
		assert.Equal(t, domain.StageAssessment, s.Stage)
		if i < len(replies)-1 {
			assert.Equal(t, i+2, plan.Ask)
			assert.False(t, s.Completed)
		} else {
			assert.True(t, plan.Completed)
			assert.True(t, plan.AskSafety)
		}
	}

	assert.True(t, s.Completed)
	assert.Equal(t, 10, s.TotalScore)
	assert.Equal(t, domain.CategoryModerate, s.Category)
	assert.True(t, s.SafetyAsked)

	// The next turn answers the safety item negatively and resolves to Resource.
	plan := step(t, r, s, "No, never")
	assert.True(t, plan.SafetyAnswered)
	assert.False(t, plan.CrisisDetected)
	assert.Equal(t, domain.StageResource, plan.To)
	assert.Equal(t, domain.StageResource, s.Stage)
	assert.Equal(t, 10, s.TotalScore, "the safety item never enters the total")
	assert.Len(t, s.History, 2*(len(replies)+2))
}

func TestRouter_RepromptKeepsQuestion(t *testing.T) {
	r := dialogue.NewRouter()
	s := domain.NewSession("s", time.Now())
	step(t, r, s, "hello")
	step(t, r, s, "2")

	plan := step(t, r, s, "hard to say really")

	assert.True(t, plan.Reprompt)
	assert.False(t, plan.Scored)
	assert.Equal(t, 2, plan.Ask)
	assert.Equal(t, 2, s.NextQuestion)
	assert.Equal(t, map[int]int{1: 2}, s.Answers)
	assert.Equal(t, domain.StageAssessment, s.Stage)
}

func TestRouter_CrisisOverridesMidAssessment(t *testing.T) {
	r := dialogue.NewRouter()
	s := domain.NewSession("s", time.Now())
	step(t, r, s, "hi")
	step(t, r, s, "1")
	step(t, r, s, "3")

	plan := step(t, r, s, "I want to end it all")

	assert.True(t, plan.CrisisDetected)
	assert.Equal(t, crisis.ResourceMessage, plan.CrisisResources)
	assert.Equal(t, domain.StageResource, s.Stage)
	assert.True(t, s.CrisisFlagged)
	assert.Len(t, s.Answers, 2, "partial answers are kept")

	// Sticky: benign messages, even valid scores, stay in Resource.
	for _, msg := range []string{"2", "actually I'm fine", "not at all"} {
		plan = step(t, r, s, msg)
		assert.Equal(t, domain.StageResource, plan.To)
		assert.False(t, plan.CrisisDetected)
		assert.True(t, s.CrisisFlagged)
	}
	assert.Len(t, s.Answers, 2)
}

func TestRouter_CrisisOnFirstMessage(t *testing.T) {
	r := dialogue.NewRouter()
	s := domain.NewSession("s", time.Now())

	plan := step(t, r, s, "I don't want to live, I'd be better off dead")

	assert.Equal(t, domain.StageResource, plan.To)
	assert.Zero(t, plan.Ask)
	assert.True(t, s.CrisisFlagged)
}

func TestRouter_AffirmativeSafetyItemRaisesCrisis(t *testing.T) {
	r := dialogue.NewRouter()
	s := domain.NewSession("s", time.Now())
	step(t, r, s, "hi")
	for i := 0; i < domain.TotalQuestions; i++ {
		step(t, r, s, "0")
	}
	require.True(t, s.SafetyAsked)

	plan := step(t, r, s, "yes, several days")

	assert.True(t, plan.SafetyAnswered)
	assert.True(t, plan.CrisisDetected)
	assert.Equal(t, crisis.ResourceMessage, plan.CrisisResources)
	assert.True(t, s.CrisisFlagged)
	assert.Equal(t, domain.StageResource, s.Stage)
	require.NotNil(t, s.SafetyAnswer)
	assert.Equal(t, 1, *s.SafetyAnswer)
	assert.Equal(t, 0, s.TotalScore)
}

func TestRouter_ResourceIsTerminal(t *testing.T) {
	r := dialogue.NewRouter()
	s := domain.NewSession("s", time.Now())
	s.Stage = domain.StageResource

	plan := step(t, r, s, "thanks, what else can I do?")
	assert.Equal(t, domain.StageResource, plan.To)
	assert.Equal(t, domain.StageResource, s.Stage)
}

func TestRouter_InvalidStage(t *testing.T) {
	r := dialogue.NewRouter()
	s := domain.NewSession("s", time.Now())
	s.Stage = domain.Stage(7)

	_, err := r.Decide(s, "hello")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestRouter_CustomDetector(t *testing.T) {
	r := dialogue.NewRouter(dialogue.WithDetector(func(text string) crisis.Result {
		return crisis.Result{Flagged: text == "red", ResourceMessage: "call"}
	}))
	s := domain.NewSession("s", time.Now())

	plan := step(t, r, s, "red")
	assert.True(t, plan.CrisisDetected)
	assert.Equal(t, "call", plan.CrisisResources)
	assert.Equal(t, domain.StageResource, s.Stage)
}

func TestRouter_DecideWithPrecomputedCrisis(t *testing.T) {
	r := dialogue.NewRouter()
	s := domain.NewSession("s", time.Now())

	// The message itself is clean; the flag comes from screening its full form.
	plan, err := r.DecideWith(s, "a long entry, cut short", r.Detect("... I want to kill myself"))
	require.NoError(t, err)

	assert.True(t, plan.CrisisDetected)
	assert.Equal(t, crisis.ResourceMessage, plan.CrisisResources)
	assert.Equal(t, domain.StageResource, plan.To)
	assert.True(t, s.CrisisFlagged)
}
