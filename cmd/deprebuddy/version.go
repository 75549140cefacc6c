package main

import (
	"fmt"

	"github.com/aretw0/deprebuddy"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of deprebuddy",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("deprebuddy version %s\n", deprebuddy.Version())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
