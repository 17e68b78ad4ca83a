// Package logging configures the daemon's structured JSON log. The
// daemon writes to a size-rotated file under ~/.lumen/logs/ so launcher
// sessions and scan activity can be inspected after the fact; stderr is
// tee'd in for foreground runs.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Config controls the daemon log output.
type Config struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string

	// FilePath is the log file location. Empty means the default
	// daemon log under ~/.lumen/logs/.
	FilePath string

	// MaxSizeMB is the rotation threshold.
	MaxSizeMB int

	// MaxFiles is how many rotated files to keep.
	MaxFiles int

	// WriteToStderr additionally mirrors the log to stderr, for
	// foreground daemon runs.
	WriteToStderr bool
}

// DefaultConfig returns the daemon's standard file-logging setup.
func DefaultConfig() Config {
	return Config{
		Level:         "info",
		FilePath:      DefaultLogPath(),
		MaxSizeMB:     10,
		MaxFiles:      5,
		WriteToStderr: true,
	}
}

// DebugConfig is DefaultConfig at debug level, for --debug runs.
func DebugConfig() Config {
	cfg := DefaultConfig()
	cfg.Level = "debug"
	return cfg
}

// Setup opens the rotating log file and returns a JSON logger plus the
// cleanup that flushes and closes it.
func Setup(cfg Config) (*slog.Logger, func(), error) {
	path := cfg.FilePath
	if path == "" {
		path = DefaultLogPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, err
	}

	writer, err := NewRotatingWriter(path, cfg.MaxSizeMB, cfg.MaxFiles)
	if err != nil {
		return nil, nil, err
	}

	var output io.Writer = writer
	if cfg.WriteToStderr {
		output = io.MultiWriter(writer, os.Stderr)
	}

	handler := slog.NewJSONHandler(output, &slog.HandlerOptions{
		Level: parseLevel(cfg.Level),
	})

	cleanup := func() {
		_ = writer.Sync()
		_ = writer.Close()
	}
	return slog.New(handler), cleanup, nil
}

// parseLevel maps a config level string to its slog level. Unknown
// levels fall back to info rather than failing daemon startup.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
