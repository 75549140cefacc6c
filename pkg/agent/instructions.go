package agent

import (
	"fmt"
	"os"

	"github.com/aretw0/deprebuddy/pkg/domain"
	"gopkg.in/yaml.v3"
)

// Instructions maps each stage to the system instruction of its agent.
type Instructions map[domain.Stage]string

// DefaultInstructions returns the built-in agent instructions.
func DefaultInstructions() Instructions {
	return Instructions{
		domain.StageTriage: "Act as an empathetic mental health triage agent. " +
			"Acknowledge what the user shared, explain that you will ask a few short questions about the last two weeks, " +
			"and ask the question you are given verbatim together with its answer scale.",
		domain.StageAssessment: "Act as a calm, supportive screening agent administering the PHQ questionnaire. " +
			"Ask exactly the question you are given, verbatim, with its answer scale. " +
			"Do not interpret answers or offer a diagnosis.",
		domain.StageResource: "Act as a supportive resource agent. " +
			"Offer practical, evidence-based next steps and support options suited to the user's situation. " +
			"If crisis resources are provided, lead with them verbatim and urge the user to reach out now.",
	}
}

// instructionsFile is the on-disk shape of an instruction override file.
type instructionsFile struct {
	Triage     string `yaml:"triage"`
	Assessment string `yaml:"assessment"`
	Resource   string `yaml:"resource"`
}

// LoadInstructions reads a YAML file overriding some or all stage instructions.
// Stages the file leaves empty keep their defaults.
func LoadInstructions(path string) (Instructions, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read instructions: %w", err)
	}
	return ParseInstructions(data)
}

// ParseInstructions decodes YAML instruction overrides.
func ParseInstructions(data []byte) (Instructions, error) {
	var f instructionsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse instructions: %w", err)
	}

	out := DefaultInstructions()
	for stage, text := range map[domain.Stage]string{
		domain.StageTriage:     f.Triage,
		domain.StageAssessment: f.Assessment,
		domain.StageResource:   f.Resource,
	} {
		if text != "" {
			out[stage] = text
		}
	}
	return out, nil
}
