package domain

// Category is the severity classification of a completed assessment.
// The zero value means "not assessed yet".
type Category string

const (
	CategoryMinimal          Category = "minimal"
	CategoryMild             Category = "mild"
	CategoryModerate         Category = "moderate"
	CategoryModeratelySevere Category = "moderately_severe"
	CategorySevere           Category = "severe"
)

// Label returns the human readable description used in agent prompts.
func (c Category) Label() string {
	switch c {
	case CategoryMinimal:
		return "Minimal or no depression"
	case CategoryMild:
		return "Mild depression"
	case CategoryModerate:
		return "Moderate depression"
	case CategoryModeratelySevere:
		return "Moderately severe depression"
	case CategorySevere:
		return "Severe depression"
	}
	return ""
}
