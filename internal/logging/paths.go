package logging

import (
	"os"
	"path/filepath"
)

// DefaultLogDir returns the default log directory (~/.lumen/logs/).
// Falls back to temp directory if home directory is unavailable.
func DefaultLogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".lumen", "logs")
	}
	return filepath.Join(home, ".lumen", "logs")
}

// DefaultLogPath returns the default daemon log path.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "daemon.log")
}
