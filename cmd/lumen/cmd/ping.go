package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lumen-launcher/lumen/internal/config"
	"github.com/lumen-launcher/lumen/internal/daemon"
	"github.com/lumen-launcher/lumen/internal/output"
)

// newPingCmd creates the ping command. Exits non-zero when the daemon
// is unreachable, which makes it usable from scripts.
func newPingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that the daemon is responsive",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := output.New(cmd.OutOrStdout())

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			client := daemon.NewClient(cfg.Daemon.SocketPath, daemon.DefaultClientTimeout)
			if err := client.Ping(cmd.Context()); err != nil {
				return fmt.Errorf("daemon is not responding: %w", err)
			}

			out.Success("pong")
			return nil
		},
	}
}
