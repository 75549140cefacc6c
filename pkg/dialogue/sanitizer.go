package dialogue

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	// DefaultMaxMessageSize is 4KB, far above any plausible screening reply.
	DefaultMaxMessageSize = 4096
	// EnvMaxMessageSize overrides the default limit.
	EnvMaxMessageSize = "BUDDY_MAX_MESSAGE_SIZE"
)

var (
	ErrMessageTooLarge = errors.New("message exceeds maximum allowed size")
	ErrInvalidUTF8     = errors.New("message contains invalid UTF-8 sequences")
)

// SanitizeMessage enforces the size limit, validates UTF-8, strips control
// characters other than newline, tab and carriage return, and trims surrounding
// whitespace. A limit <= 0 falls back to the environment or the default.
func SanitizeMessage(message string, limit int) (string, error) {
	if limit <= 0 {
		limit = maxMessageSize()
	}
	// Oversized messages are rejected rather than truncated so scoring never sees half an answer.
	if len(message) > limit {
		return "", fmt.Errorf("%w: size=%d limit=%d", ErrMessageTooLarge, len(message), limit)
	}
	if !utf8.ValidString(message) {
		return "", ErrInvalidUTF8
	}

	return stripControls(message), nil
}

// RepairMessage coerces a message SanitizeMessage rejected into one it accepts:
// invalid UTF-8 becomes U+FFFD and the text is cut to limit bytes on a rune
// boundary. It is used when a rejected message still has to be handled.
func RepairMessage(message string, limit int) string {
	if limit <= 0 {
		limit = maxMessageSize()
	}
	clean := stripControls(strings.ToValidUTF8(message, string(utf8.RuneError)))
	if len(clean) <= limit {
		return clean
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(clean[cut]) {
		cut--
	}
	return strings.TrimSpace(clean[:cut])
}

func stripControls(message string) string {
	var b strings.Builder
	b.Grow(len(message))
	for _, r := range message {
		if !unicode.IsControl(r) || isSafeControl(r) {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

func isSafeControl(r rune) bool {
	return r == '\n' || r == '\t' || r == '\r'
}

func maxMessageSize() int {
	if val := os.Getenv(EnvMaxMessageSize); val != "" {
		if size, err := strconv.Atoi(val); err == nil && size > 0 {
			return size
		}
	}
	return DefaultMaxMessageSize
}
