package cmd

import (
	"github.com/spf13/cobra"
)

// newStatusCmd creates the top-level status command, a shorthand for
// 'daemon status'.
func newStatusCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		Long:  `Show whether the daemon is running and what it has indexed.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDaemonStatus(cmd.Context(), cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}
