package domain

import "fmt"

// Stage is the active phase of the screening dialogue.
// The set is closed: Triage, Assessment and Resource are the only valid values.
type Stage int

const (
	StageTriage     Stage = iota // Greeting and handoff, single turn
	StageAssessment              // PHQ questions are being collected
	StageResource                // Terminal: support resources and follow-up
)

// Stages lists every valid stage in dialogue order.
var Stages = []Stage{StageTriage, StageAssessment, StageResource}

// String returns the wire name of the stage.
func (s Stage) String() string {
	switch s {
	case StageTriage:
		return "triage"
	case StageAssessment:
		return "assessment"
	case StageResource:
		return "resource"
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// Valid reports whether s is one of the three known stages.
func (s Stage) Valid() bool {
	switch s {
	case StageTriage, StageAssessment, StageResource:
		return true
	}
	return false
}

// ParseStage converts a wire name back into a Stage.
func ParseStage(name string) (Stage, error) {
	for _, s := range Stages {
		if s.String() == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidStage, name)
}

// MarshalText implements encoding.TextMarshaler.
func (s Stage) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidStage, int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Stage) UnmarshalText(text []byte) error {
	parsed, err := ParseStage(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
