package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lumen-launcher/lumen/internal/config"
	"github.com/lumen-launcher/lumen/internal/daemon"
	lumenerrors "github.com/lumen-launcher/lumen/internal/errors"
	"github.com/lumen-launcher/lumen/internal/output"
	"github.com/lumen-launcher/lumen/internal/session"
)

// cliSessionID is the session the CLI uses when none is given. One-shot
// searches share it so repeated invocations behave like one window.
const cliSessionID = "cli"

func newSearchCmd() *cobra.Command {
	var sessionID string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Query the running daemon",
		Long: `Send a fuzzy query to the daemon and print the merged results.

Results are ordered by normalized score; entries launched often rank
above equally matched strangers. A query starting with '>' offers to
run the rest as a shell command instead.

Examples:
  lumen search fire          # Find Firefox
  lumen search '>ls -la'     # Offer a shell command
  lumen search fire --json   # Machine-readable output`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), cmd, args[0], sessionID, jsonOutput)
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", cliSessionID, "Session ID to query under")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output results as JSON")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, query, sessionID string, jsonOutput bool) error {
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

	view, err := client.Query(ctx, daemon.QueryParams{SessionID: sessionID, Query: query})
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(view)
	}

	renderView(out, view)
	return nil
}

// renderView prints a committed view as a ranked list.
func renderView(out *output.Writer, view *session.View) {
	if view.Status == session.StatusCancelled {
		out.Status("", "Query round was superseded, showing previous results")
	}
	if len(view.Results) == 0 {
		out.Status("", fmt.Sprintf("No results for %q", view.Query))
		return
	}

	for i, r := range view.Results {
		marker := "  "
		if i == view.Cursor {
			marker = "> "
		}
		line := fmt.Sprintf("%s%2d. %-30s %8.1f  [%s]", marker, i+1, r.Entry.Name, r.Score, r.App)
		out.Status("", line)
		if r.Entry.Description != "" {
			out.Statusf("", "      %s", r.Entry.Description)
		}
	}
}
