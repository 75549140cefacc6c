package phq

import "fmt"

// Questions holds the eight scored items, index 0 is question 1.
var Questions = [8]string{
	"Little interest or pleasure in doing things?",
	"Feeling down, depressed, or hopeless?",
	"Trouble falling or staying asleep, or sleeping too much?",
	"Feeling tired or having little energy?",
	"Poor appetite or overeating?",
	"Feeling bad about yourself—or that you are a failure or have let yourself or your family down?",
	"Trouble concentrating on things, such as reading the newspaper or watching television?",
	"Moving or speaking so slowly that other people could have noticed? Or the opposite—being so fidgety or restless that you have been moving around a lot more than usual?",
}

// SafetyQuestion is the ninth PHQ item. It is never part of the numeric total.
const SafetyQuestion = "Thoughts that you would be better off dead or of hurting yourself in some way?"

// SafetyIndex is the position of SafetyQuestion in the full questionnaire.
const SafetyIndex = 9

// AnswerScale describes the 0-3 scale offered with every question.
const AnswerScale = "0 = Not at all, 1 = Several days, 2 = More than half the days, 3 = Nearly every day"

// Question returns the literal text of scored item index (1..8).
func Question(index int) (string, error) {
	if index < 1 || index > len(Questions) {
		return "", fmt.Errorf("invalid question number: %d", index)
	}
	return Questions[index-1], nil
}
