package tui

import (
	"github.com/charmbracelet/glamour"
)

// Renderer turns an agent reply (markdown) into terminal output.
type Renderer func(markdown string) (string, error)

// NewRenderer returns a glamour renderer that adapts to the terminal background.
// When styled is false replies are printed as-is.
func NewRenderer(styled bool, width int) Renderer {
	if !styled {
		return PlainRenderer
	}
	opts := []glamour.TermRendererOption{glamour.WithAutoStyle(), glamour.WithEmoji()}
	if width > 0 {
		opts = append(opts, glamour.WithWordWrap(width))
	}
	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return PlainRenderer
	}
	return r.Render
}

// PlainRenderer returns markdown unchanged with a trailing newline.
func PlainRenderer(markdown string) (string, error) {
	return markdown + "\n", nil
}
