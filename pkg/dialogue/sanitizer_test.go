package dialogue

import (
	"errors"
	"strings"
	"testing"
)

func TestSanitizeMessage_SizeLimit(t *testing.T) {
	limit := DefaultMaxMessageSize

	tests := []struct {
		name    string
		size    int
		wantErr bool
	}{
		{"Under Limit", limit - 1, false},
		{"Exact Limit", limit, false},
		{"Over Limit", limit + 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := SanitizeMessage(strings.Repeat("a", tt.size), 0)
			if tt.wantErr && !errors.Is(err, ErrMessageTooLarge) {
				t.Errorf("expected ErrMessageTooLarge for size %d, got %v", tt.size, err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestSanitizeMessage_ControlChars(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"Normal Text", "Several days", "Several days"},
		{"Safe Controls", "Line1\nLine2\tTabbed", "Line1\nLine2\tTabbed"},
		{"ANSI Code", "\x1b[31m2\x1b[0m", "[31m2[0m"},
		{"Null Byte", "Not at\x00 all", "Not at all"},
		{"Surrounding Space", "  3 \n", "3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SanitizeMessage(tt.input, 0)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestSanitizeMessage_InvalidUTF8(t *testing.T) {
	if _, err := SanitizeMessage("bad \xff byte", 0); !errors.Is(err, ErrInvalidUTF8) {
		t.Errorf("expected ErrInvalidUTF8, got %v", err)
	}
}

func TestSanitizeMessage_Overrides(t *testing.T) {
	t.Setenv(EnvMaxMessageSize, "10")

	if _, err := SanitizeMessage("12345678901", 0); err == nil {
		t.Error("expected error for input > 10 when env var is set")
	}
	if _, err := SanitizeMessage("12345", 0); err != nil {
		t.Errorf("unexpected error for valid input: %v", err)
	}
	// An explicit limit wins over the environment.
	if _, err := SanitizeMessage("12345678901", 20); err != nil {
		t.Errorf("explicit limit should allow input: %v", err)
	}
}

func TestRepairMessage(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		limit    int
		expected string
	}{
		{"Valid Untouched", "Several days", 64, "Several days"},
		{"Invalid Byte", "end it all \xff", 64, "end it all �"},
		{"Truncated", strings.Repeat("a", 10), 4, "aaaa"},
		{"Rune Boundary", "aé", 2, "a"},
		{"Controls Stripped", "\x00hi\x1b", 64, "hi"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RepairMessage(tt.input, tt.limit)
			if got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
			if _, err := SanitizeMessage(got, tt.limit); err != nil {
				t.Errorf("repaired message still rejected: %v", err)
			}
		})
	}
}
