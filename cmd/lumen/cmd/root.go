// Package cmd provides the CLI commands for lumen.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/lumen-launcher/lumen/internal/logging"
	"github.com/lumen-launcher/lumen/pkg/version"
)

// Debug logging flag
var (
	debugMode      bool
	loggingCleanup func()
)

// NewRootCmd creates the root command for the lumen CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lumen",
		Short: "Fuzzy-search application launcher",
		Long: `Lumen indexes the desktop applications installed on this machine and
answers fuzzy queries against them in real time.

A background daemon owns the index, watches the entry directories for
changes, and serves launcher windows over a Unix socket. The CLI talks
to that daemon.

Run 'lumen daemon start' once, then 'lumen search <query>'.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.SetVersionTemplate("lumen version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.lumen/logs/")
	cmd.PersistentPreRunE = startLogging
	cmd.PersistentPostRunE = stopLogging

	cmd.AddCommand(newDaemonCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newOpenCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newPingCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// startLogging enables file logging when --debug is set.
func startLogging(_ *cobra.Command, _ []string) error {
	if !debugMode {
		return nil
	}

	logger, cleanup, err := logging.Setup(logging.DebugConfig())
	if err != nil {
		return fmt.Errorf("failed to setup debug logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	slog.Info("debug logging enabled", slog.String("log_file", logging.DefaultLogPath()))
	return nil
}

// stopLogging closes the debug log file.
func stopLogging(_ *cobra.Command, _ []string) error {
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
