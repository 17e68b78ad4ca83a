// Package config loads and validates the launcher configuration. The
// user file lives at ~/.config/lumen/config.yaml; LUMEN_* environment
// variables override it, and everything has a working default so a
// fresh install needs no file at all.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lumen-launcher/lumen/internal/errors"
)

// Config is the complete lumen configuration.
type Config struct {
	Version int           `yaml:"version" json:"version"`
	Entries EntriesConfig `yaml:"entries" json:"entries"`
	Search  SearchConfig  `yaml:"search" json:"search"`
	Scanner ScannerConfig `yaml:"scanner" json:"scanner"`
	Watcher WatcherConfig `yaml:"watcher" json:"watcher"`
	Daemon  DaemonConfig  `yaml:"daemon" json:"daemon"`
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// EntriesConfig configures where application descriptors are found.
type EntriesConfig struct {
	// Directories are scanned in order. Empty means the XDG defaults.
	Directories []string `yaml:"directories" json:"directories"`
}

// SearchConfig tunes query rounds and matching.
type SearchConfig struct {
	// MaxResults bounds the per-app top-K result list.
	MaxResults int `yaml:"max_results" json:"max_results"`

	// ChunkSize is how many entries the matcher scores between
	// cancellation checks.
	ChunkSize int `yaml:"chunk_size" json:"chunk_size"`

	// ScoreFloor drops matches scoring below it.
	ScoreFloor int `yaml:"score_floor" json:"score_floor"`

	// RoundTimeout bounds one query round (e.g. "150ms").
	RoundTimeout string `yaml:"round_timeout" json:"round_timeout"`
}

// ScannerConfig tunes entry discovery.
type ScannerConfig struct {
	// Workers is the parse pool size (0 = NumCPU).
	Workers int `yaml:"workers" json:"workers"`

	// RescanInterval is the periodic full-rescan cadence (e.g. "10m").
	// Reconciles anything the watcher missed.
	RescanInterval string `yaml:"rescan_interval" json:"rescan_interval"`
}

// WatcherConfig tunes filesystem watching.
type WatcherConfig struct {
	// Debounce is the event coalescing window (e.g. "200ms").
	Debounce string `yaml:"debounce" json:"debounce"`
}

// DaemonConfig configures the IPC surface.
type DaemonConfig struct {
	// SocketPath is the unix socket the daemon serves on.
	SocketPath string `yaml:"socket_path" json:"socket_path"`

	// MaxSessions bounds concurrent launcher windows.
	MaxSessions int `yaml:"max_sessions" json:"max_sessions"`
}

// LoggingConfig configures the daemon log.
type LoggingConfig struct {
	Level     string `yaml:"level" json:"level"`
	FilePath  string `yaml:"file_path" json:"file_path"`
	MaxSizeMB int    `yaml:"max_size_mb" json:"max_size_mb"`
	MaxFiles  int    `yaml:"max_files" json:"max_files"`
	Stderr    bool   `yaml:"stderr" json:"stderr"`
}

// NewConfig creates a Config with working defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Entries: EntriesConfig{
			Directories: DefaultEntryDirs(),
		},
		Search: SearchConfig{
			MaxResults:   64,
			ChunkSize:    256,
			ScoreFloor:   1,
			RoundTimeout: "150ms",
		},
		Scanner: ScannerConfig{
			Workers:        runtime.NumCPU(),
			RescanInterval: "10m",
		},
		Watcher: WatcherConfig{
			Debounce: "200ms",
		},
		Daemon: DaemonConfig{
			SocketPath:  DefaultSocketPath(),
			MaxSessions: 32,
		},
		Logging: LoggingConfig{
			Level:     "info",
			FilePath:  "", // resolved by the daemon to ~/.lumen/logs/daemon.log
			MaxSizeMB: 10,
			MaxFiles:  3,
			Stderr:    false,
		},
	}
}

// DefaultEntryDirs returns the XDG application directories in
// precedence order: the user's data dir first, then system dirs.
func DefaultEntryDirs() []string {
	var dirs []string

	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dataHome = filepath.Join(home, ".local", "share")
		}
	}
	if dataHome != "" {
		dirs = append(dirs, filepath.Join(dataHome, "applications"))
	}

	dataDirs := os.Getenv("XDG_DATA_DIRS")
	if dataDirs == "" {
		dataDirs = "/usr/local/share:/usr/share"
	}
	for _, d := range strings.Split(dataDirs, ":") {
		if d != "" {
			dirs = append(dirs, filepath.Join(d, "applications"))
		}
	}
	return dirs
}

// DefaultDataDir returns the lumen data directory (~/.lumen).
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".lumen"
	}
	return filepath.Join(home, ".lumen")
}

// DefaultCachePath returns the persisted entry cache location.
func DefaultCachePath() string {
	return filepath.Join(DefaultDataDir(), "entries.db")
}

// DefaultSocketPath returns the daemon socket location. XDG_RUNTIME_DIR
// is preferred when set.
func DefaultSocketPath() string {
	if runDir := os.Getenv("XDG_RUNTIME_DIR"); runDir != "" {
		return filepath.Join(runDir, "lumen.sock")
	}
	return filepath.Join(DefaultDataDir(), "daemon.sock")
}

// DefaultPIDPath returns the daemon pidfile location.
func DefaultPIDPath() string {
	return filepath.Join(DefaultDataDir(), "daemon.pid")
}

// GetUserConfigPath returns ~/.config/lumen/config.yaml.
func GetUserConfigPath() string {
	return filepath.Join(GetUserConfigDir(), "config.yaml")
}

// GetUserConfigDir returns the user config directory.
func GetUserConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "lumen")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".config", "lumen")
	}
	return filepath.Join(home, ".config", "lumen")
}

// UserConfigExists reports whether the user config file is present.
func UserConfigExists() bool {
	_, err := os.Stat(GetUserConfigPath())
	return err == nil
}

// Load builds the effective configuration: defaults, then the user
// file if present, then LUMEN_* environment overrides, then validation.
func Load() (*Config, error) {
	cfg := NewConfig()

	if UserConfigExists() {
		if err := cfg.loadYAML(GetUserConfigPath()); err != nil {
			return nil, err
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile builds the configuration from a specific file path.
func LoadFile(path string) (*Config, error) {
	cfg := NewConfig()
	if err := cfg.loadYAML(path); err != nil {
		return nil, err
	}
	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.New(errors.ErrCodeConfigNotFound, "config file not found", err).
				WithDetail("path", path)
		}
		return errors.New(errors.ErrCodeConfigInvalid, "cannot read config file", err).
			WithDetail("path", path)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return errors.New(errors.ErrCodeConfigInvalid, "malformed config file", err).
			WithDetail("path", path)
	}
	return nil
}

// applyEnvOverrides applies LUMEN_* environment variable overrides.
// Environment wins over the file.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("LUMEN_ENTRY_DIRS"); v != "" {
		c.Entries.Directories = strings.Split(v, ":")
	}
	if v := os.Getenv("LUMEN_SOCKET"); v != "" {
		c.Daemon.SocketPath = v
	}
	if v := os.Getenv("LUMEN_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("LUMEN_ROUND_TIMEOUT"); v != "" {
		c.Search.RoundTimeout = v
	}
	if v := os.Getenv("LUMEN_MAX_RESULTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Search.MaxResults = n
		}
	}
	if v := os.Getenv("LUMEN_SCAN_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Scanner.Workers = n
		}
	}
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	if c.Search.MaxResults <= 0 {
		return errors.New(errors.ErrCodeConfigInvalid, "search.max_results must be positive", nil)
	}
	if c.Search.ChunkSize <= 0 {
		return errors.New(errors.ErrCodeConfigInvalid, "search.chunk_size must be positive", nil)
	}
	if c.Search.ScoreFloor < 1 {
		return errors.New(errors.ErrCodeConfigInvalid, "search.score_floor must be at least 1", nil)
	}
	if _, err := c.RoundTimeout(); err != nil {
		return err
	}
	if _, err := c.RescanInterval(); err != nil {
		return err
	}
	if _, err := c.Debounce(); err != nil {
		return err
	}
	if len(c.Entries.Directories) == 0 {
		return errors.New(errors.ErrCodeConfigInvalid, "entries.directories must not be empty", nil)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return errors.New(errors.ErrCodeConfigInvalid, "logging.level must be debug, info, warn, or error", nil).
			WithDetail("level", c.Logging.Level)
	}
	return nil
}

// RoundTimeout parses the query round deadline.
func (c *Config) RoundTimeout() (time.Duration, error) {
	return c.parseDuration("search.round_timeout", c.Search.RoundTimeout)
}

// RescanInterval parses the periodic rescan cadence.
func (c *Config) RescanInterval() (time.Duration, error) {
	return c.parseDuration("scanner.rescan_interval", c.Scanner.RescanInterval)
}

// Debounce parses the watcher coalescing window.
func (c *Config) Debounce() (time.Duration, error) {
	return c.parseDuration("watcher.debounce", c.Watcher.Debounce)
}

func (c *Config) parseDuration(field, value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return 0, errors.New(errors.ErrCodeConfigInvalid, fmt.Sprintf("%s is not a positive duration", field), err).
			WithDetail("value", value)
	}
	return d, nil
}

// WriteYAML writes the configuration to a file, creating parent
// directories as needed.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.New(errors.ErrCodeConfigInvalid, "cannot marshal config", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.New(errors.ErrCodeConfigInvalid, "cannot create config directory", err).
			WithDetail("path", path)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.New(errors.ErrCodeConfigInvalid, "cannot write config file", err).
			WithDetail("path", path)
	}
	return nil
}

// YAML renders the effective configuration as YAML.
func (c *Config) YAML() (string, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return "", errors.InternalError("cannot marshal config", err)
	}
	return string(data), nil
}

// JSON renders the effective configuration for `lumen config show`.
func (c *Config) JSON() (string, error) {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return "", errors.InternalError("cannot marshal config", err)
	}
	return string(data), nil
}
