package phq

import (
	"strings"

	"github.com/aretw0/deprebuddy/pkg/domain"
)

// anchor maps a canonical answer phrase to its item score.
type anchor struct {
	phrase string
	score  int
}

// anchors are checked in order, after digits.
var anchors = []anchor{
	{"not at all", 0},
	{"several", 1},
	{"more than half", 2},
	{"nearly every", 3},
}

// affirmations count as a "yes" to the safety question when no score can be extracted.
var affirmations = map[string]bool{
	"yes":        true,
	"yeah":       true,
	"yep":        true,
	"yup":        true,
	"sometimes":  true,
	"often":      true,
	"definitely": true,
}

// ExtractScore maps a free-text reply to a 0-3 item score.
// The first digit 0-3 in the text wins; otherwise the phrase anchors are tried.
// It returns false when neither matches.
func ExtractScore(text string) (int, bool) {
	for _, r := range text {
		if r >= '0' && r <= '3' {
			return int(r - '0'), true
		}
	}

	lower := strings.ToLower(text)
	for _, a := range anchors {
		if strings.Contains(lower, a.phrase) {
			return a.score, true
		}
	}
	return 0, false
}

// IsAffirmative reports whether a reply to the safety question is a "yes".
func IsAffirmative(text string) bool {
	if score, ok := ExtractScore(text); ok {
		return score > 0
	}
	for _, w := range strings.Fields(strings.ToLower(text)) {
		if affirmations[strings.Trim(w, ".,!?;:'\"")] {
			return true
		}
	}
	return false
}

// Classify maps an accumulated total (0-24) to a severity category.
func Classify(total int) domain.Category {
	switch {
	case total >= 20:
		return domain.CategorySevere
	case total >= 15:
		return domain.CategoryModeratelySevere
	case total >= 10:
		return domain.CategoryModerate
	case total >= 5:
		return domain.CategoryMild
	default:
		return domain.CategoryMinimal
	}
}

// RecordAnswer stores score for question index on the session.
// Answers out of order, after completion or outside [0,3] are rejected without
// mutating the session. The eighth answer completes the assessment and derives
// TotalScore and Category.
func RecordAnswer(s *domain.Session, index, score int) error {
	if s.Completed || index != s.NextQuestion {
		return domain.ErrUnexpectedQuestion
	}
	if score < 0 || score > 3 {
		return domain.ErrScoreOutOfRange
	}
	if s.Answers == nil {
		s.Answers = make(map[int]int)
	}
	if _, exists := s.Answers[index]; exists {
		return domain.ErrUnexpectedQuestion
	}

	s.Answers[index] = score
	s.NextQuestion++

	if s.NextQuestion > domain.TotalQuestions {
		total := 0
		for _, v := range s.Answers {
			total += v
		}
		s.Completed = true
		s.TotalScore = total
		s.Category = Classify(total)
	}
	return nil
}
