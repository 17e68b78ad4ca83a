package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lumen-launcher/lumen/internal/config"
	"github.com/lumen-launcher/lumen/internal/daemon"
	lumenerrors "github.com/lumen-launcher/lumen/internal/errors"
	"github.com/lumen-launcher/lumen/internal/output"
)

func newOpenCmd() *cobra.Command {
	var sessionID string
	var entryID string
	var actionID string

	cmd := &cobra.Command{
		Use:   "open",
		Short: "Activate a search result",
		Long: `Launch a result from the session's last query.

Without --entry, the session's current selection is launched. Use
--action to run a secondary desktop action instead of the default.

Examples:
  lumen search fire
  lumen open                          # Launch the top result
  lumen open --action new-private-window`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runOpen(cmd.Context(), cmd, sessionID, entryID, actionID)
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", cliSessionID, "Session ID to open in")
	cmd.Flags().StringVar(&entryID, "entry", "", "Entry ID to launch (default: current selection)")
	cmd.Flags().StringVar(&actionID, "action", "", "Desktop action ID (default: the entry's default action)")

	return cmd
}

func runOpen(ctx context.Context, cmd *cobra.Command, sessionID, entryID, actionID string) error {
	out := output.New(cmd.OutOrStdout())

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	client := daemon.NewClient(cfg.Daemon.SocketPath, daemon.DefaultClientTimeout)
	if !client.IsRunning() {
		return lumenerrors.New(lumenerrors.ErrCodeNotRunning,
			"daemon is not running; start it with 'lumen daemon start'", nil)
	}

	result, err := client.Open(ctx, daemon.OpenParams{
		SessionID: sessionID,
		EntryID:   entryID,
		ActionID:  actionID,
	})
	if err != nil {
		return err
	}

	if !result.Launched {
		return fmt.Errorf("launch failed: %s", result.Error)
	}

	out.Success("Launched")
	return nil
}
