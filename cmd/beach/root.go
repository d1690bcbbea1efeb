package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	flagConfigPath string
	flagLogMode    string
)

// Execute runs the beach CLI and returns the process exit code,
// following spec §6.5's 0/2/3/4 contract.
func Execute() int {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "beach:", err)
		return exitCodeForError(err)
	}
	return exitOK
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "beach",
		Short:         "Share a terminal session over the beach protocol",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flagConfigPath, "config", "", "path to a BeachConfig YAML file")
	root.PersistentFlags().StringVar(&flagLogMode, "log-mode", "", "override log_mode from config (development, production, json)")
	root.AddCommand(newHostCmd())
	root.AddCommand(newJoinCmd())
	return root
}
