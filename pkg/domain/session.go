package domain

import "time"

// TotalQuestions is the number of scored PHQ items.
const TotalQuestions = 8

// Role identifies the author of a turn.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

// Turn is a single entry of the conversation transcript.
type Turn struct {
	Role Role      `json:"role"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// Session represents the current snapshot of one conversation.
type Session struct {
	// ID is the opaque identifier assigned by the boundary layer.
	ID string `json:"id"`

	// Stage is the active dialogue stage.
	Stage Stage `json:"stage"`

	// History is the append-only transcript, one user and one agent entry per turn.
	History []Turn `json:"history"`

	// Answers maps question index (1..8) to an item score (0..3).
	Answers map[int]int `json:"answers"`

	// NextQuestion is the index the next answer must target.
	NextQuestion int `json:"next_question"`

	// TotalScore is the sum of Answers. Only meaningful when Completed.
	TotalScore int `json:"total_score"`

	// Category is empty until the assessment is complete.
	Category Category `json:"category,omitempty"`

	// CrisisFlagged is sticky: once set it is never cleared.
	CrisisFlagged bool `json:"crisis_flagged"`

	// Completed is true once all scored answers are collected.
	Completed bool `json:"completed"`

	// SafetyAsked records that the self-harm item was put to the user.
	SafetyAsked bool `json:"safety_asked,omitempty"`

	// SafetyAnswer holds the self-harm item reply. It never enters TotalScore.
	SafetyAnswer *int `json:"safety_answer,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Envelope carries a sealed copy of the session for encrypting stores.
	// Live sessions never set it.
	Envelope string `json:"envelope,omitempty"`
}

// NewSession creates a clean session at the Triage stage.
func NewSession(id string, now time.Time) *Session {
	return &Session{
		ID:           id,
		Stage:        StageTriage,
		History:      []Turn{},
		Answers:      make(map[int]int),
		NextQuestion: 1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Clone returns a deep copy so callers can mutate it without touching the original.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.History = make([]Turn, len(s.History))
	copy(c.History, s.History)
	c.Answers = make(map[int]int, len(s.Answers))
	for k, v := range s.Answers {
		c.Answers[k] = v
	}
	if s.SafetyAnswer != nil {
		v := *s.SafetyAnswer
		c.SafetyAnswer = &v
	}
	return &c
}

// AnswerList returns the recorded scores ordered by question index.
func (s *Session) AnswerList() []int {
	out := make([]int, 0, len(s.Answers))
	for i := 1; i <= TotalQuestions; i++ {
		if v, ok := s.Answers[i]; ok {
			out = append(out, v)
		}
	}
	return out
}
