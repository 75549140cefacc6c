// Package crisis flags crisis language in free text.
//
// The check is stateless and always on: the dialogue router runs it on every
// user turn, before any stage logic.
package crisis

import "strings"

// ResourceMessage is the fixed text shown whenever crisis language is detected.
const ResourceMessage = `🚨 **I'm deeply concerned about what you're sharing.**

**Please reach out for immediate help:**
• National Suicide Prevention Lifeline: 0800 587 0800
• Alternative Suicide Prevention Lifeline:  0800 689 0880
• Emergency Services: 999

You are not alone, and there are people who want to help you right now.`

// Phrases is the fixed set of crisis indicators, matched case-insensitively.
var Phrases = []string{
	"kill myself",
	"suicide",
	"end it all",
	"want to die",
	"harm myself",
	"self harm",
	"not worth living",
	"better off dead",
	"can't go on",
	"can’t go on",
	"end my life",
}

// Result is the outcome of a detection.
type Result struct {
	Flagged         bool   `json:"crisis_detected"`
	ResourceMessage string `json:"response"`
}

// Detect reports whether text contains any crisis phrase.
func Detect(text string) Result {
	lower := strings.ToLower(text)
	for _, p := range Phrases {
		if strings.Contains(lower, p) {
			return Result{Flagged: true, ResourceMessage: ResourceMessage}
		}
	}
	return Result{}
}
