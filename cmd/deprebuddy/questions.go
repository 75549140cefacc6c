package main

import (
	"fmt"

	"github.com/aretw0/deprebuddy/pkg/phq"
	"github.com/spf13/cobra"
)

var questionsCmd = &cobra.Command{
	Use:   "questions",
	Short: "Print the screening questions and the answer scale",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "Over the last 2 weeks, how often have you been bothered by:")
		for i, q := range phq.Questions {
			fmt.Fprintf(out, "%d. %s\n", i+1, q)
		}
		fmt.Fprintf(out, "%d. %s (not scored)\n", phq.SafetyIndex, phq.SafetyQuestion)
		fmt.Fprintln(out)
		fmt.Fprintln(out, phq.AnswerScale)
	},
}

func init() {
	rootCmd.AddCommand(questionsCmd)
}
