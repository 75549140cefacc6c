package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the Depre Buddy banner and version to w.
func PrintBanner(w io.Writer, version string) {
	out := termenv.NewOutput(w)
	// Calm teal to blue gradient.
	lines := []struct {
		text  string
		color string
	}{
		{"  ___                        ___            _    _        ", "#2dd4bf"},
		{" |   \\ ___ _ __ _ _ ___     | _ )_  _ __ __| |__| |_  _   ", "#22d3ee"},
		{" | |) / -_) '_ \\ '_/ -_)    | _ \\ || / _` / _` | || |  ", "#38bdf8"},
		{" |___/\\___| .__/_| \\___|    |___/\\_,_\\__,_\\__,_|\\_, |  ", "#60a5fa"},
		{"          |_|                                    |__/   ", "#818cf8"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, out.String(l.text).Foreground(out.Color(l.color)))
	}
	fmt.Fprintln(w, out.String(fmt.Sprintf("  v%s  ·  a gentle depression screening companion", version)).Faint())
	fmt.Fprintln(w)
}

// Notice renders a dim system line such as ">>> Session 'x' active.".
func Notice(w io.Writer, format string, args ...any) {
	out := termenv.NewOutput(w)
	fmt.Fprintln(w, out.String(">>> "+fmt.Sprintf(format, args...)).Faint())
}

// Alert renders a highlighted line used for crisis notices.
func Alert(w io.Writer, text string) {
	out := termenv.NewOutput(w)
	fmt.Fprintln(w, out.String(text).Bold().Foreground(out.Color("#f87171")))
}
