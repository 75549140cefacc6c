package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/deprebuddy"
	"github.com/aretw0/deprebuddy/internal/presentation/tui"
	"github.com/aretw0/deprebuddy/pkg/domain"
)

// Greeting opens every interactive conversation.
const Greeting = "Hi, I'm Depre Buddy. How have you been feeling lately?"

// ChatEngine is the part of the engine the REPL drives.
type ChatEngine interface {
	Chat(ctx context.Context, sessionID, message string) (*deprebuddy.ChatResult, error)
	Session(ctx context.Context, sessionID string) (*domain.Session, error)
	NewSession(ctx context.Context) (*domain.Session, error)
}

// ChatOptions configures the interactive loop.
type ChatOptions struct {
	// SessionID resumes (or names) a session. Empty starts a fresh one.
	SessionID string
	Renderer  tui.Renderer
	Banner    bool
	Version   string
}

// RunChat reads one message per line from in and writes the agent replies to out
// until EOF, "exit"/"quit", or ctx is cancelled.
func RunChat(ctx context.Context, eng ChatEngine, in io.Reader, out io.Writer, opts ChatOptions) (string, error) {
	render := opts.Renderer
	if render == nil {
		render = tui.PlainRenderer
	}
	if opts.Banner {
		tui.PrintBanner(out, opts.Version)
	}

	sessionID, err := openSession(ctx, eng, out, opts.SessionID)
	if err != nil {
		return "", err
	}

	scanner := bufio.NewScanner(NewInterruptibleReader(in, ctx.Done()))
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			err := scanner.Err()
			if err == nil {
				err = io.EOF
			}
			fmt.Fprintln(out)
			tui.Notice(out, "Conversation saved as '%s'.", sessionID)
			return sessionID, handleExecutionError(err)
		}

		line := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(line) {
		case "":
			continue
		case "exit", "quit", ":q":
			tui.Notice(out, "Take care. Conversation saved as '%s'.", sessionID)
			return sessionID, nil
		}

		res, err := eng.Chat(ctx, sessionID, line)
		if err != nil {
			tui.Notice(out, "Message rejected: %v", err)
			continue
		}

		text, err := render(res.Message)
		if err != nil {
			text = res.Message + "\n"
		}
		fmt.Fprint(out, text)

		if res.CrisisRaised {
			tui.Alert(out, "If you are in immediate danger, call your local emergency number now.")
		}
		if res.Score != nil && res.PreviousStage == domain.StageAssessment && res.Stage == domain.StageAssessment {
			tui.Notice(out, "Screening complete: score %d (%s).", *res.Score, res.Category.Label())
		}
	}
}

func openSession(ctx context.Context, eng ChatEngine, out io.Writer, id string) (string, error) {
	if id == "" {
		s, err := eng.NewSession(ctx)
		if err != nil {
			return "", fmt.Errorf("failed to create session: %w", err)
		}
		tui.Notice(out, "Session '%s' active.", s.ID)
		fmt.Fprintln(out, Greeting)
		return s.ID, nil
	}

	s, err := eng.Session(ctx, id)
	switch {
	case err == nil:
		tui.Notice(out, "Resuming session '%s' at the %s stage.", id, s.Stage)
		return id, nil
	case deprebuddy.IsNotFound(err):
		tui.Notice(out, "Session '%s' active.", id)
		fmt.Fprintln(out, Greeting)
		return id, nil
	default:
		return "", fmt.Errorf("failed to load session %s: %w", id, err)
	}
}
