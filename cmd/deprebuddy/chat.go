package main

import (
	"os"

	"github.com/aretw0/deprebuddy"
	"github.com/aretw0/deprebuddy/internal/cli"
	"github.com/aretw0/deprebuddy/internal/presentation/tui"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive screening conversation in the terminal",
	Long: `Runs the full dialogue locally. Sessions live in the configured store,
so a conversation can be resumed later with --session.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, svc, cleanup, err := bootstrap(cmd, cli.BuildOptions{})
		if err != nil {
			return err
		}
		defer cleanup()

		sessionID, _ := cmd.Flags().GetString("session")
		plain, _ := cmd.Flags().GetBool("plain")

		interactive := term.IsTerminal(int(os.Stdout.Fd()))
		width := 0
		if interactive {
			if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 4 {
				width = w - 4
			}
		}

		sigCtx := cli.NewSignalContext(cmd.Context())
		defer sigCtx.Cancel()

		_, err = cli.RunChat(sigCtx, svc.Engine, os.Stdin, os.Stdout, cli.ChatOptions{
			SessionID: sessionID,
			Renderer:  tui.NewRenderer(interactive && !plain, width),
			Banner:    interactive,
			Version:   deprebuddy.Version(),
		})
		return err
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().StringP("session", "s", "", "Session ID to resume or create")
	chatCmd.Flags().Bool("plain", false, "Print replies as raw markdown")
}
