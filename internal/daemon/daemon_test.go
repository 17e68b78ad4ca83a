package daemon

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumen-launcher/lumen/internal/cache"
	"github.com/lumen-launcher/lumen/internal/config"
	lumenerrors "github.com/lumen-launcher/lumen/internal/errors"
)

const firefoxDesktop = `[Desktop Entry]
Type=Application
Name=Firefox
Comment=Browse the web
Exec=/bin/true %U
`

const editorDesktop = `[Desktop Entry]
Type=Application
Name=Text Editor
Exec=/bin/true %F
`

// testConfig builds a daemon config rooted in temp directories.
func testConfig(t *testing.T, entryDir string) (*config.Config, Paths) {
	t.Helper()
	dataDir := t.TempDir()

	cfg := config.NewConfig()
	cfg.Entries.Directories = []string{entryDir}
	cfg.Daemon.SocketPath = filepath.Join("/tmp", fmt.Sprintf("lumen-daemon-test-%d.sock", time.Now().UnixNano()))
	cfg.Watcher.Debounce = "50ms"
	require.NoError(t, cfg.Validate())

	t.Cleanup(func() { os.Remove(cfg.Daemon.SocketPath) })

	paths := Paths{
		Cache: filepath.Join(dataDir, "entries.db"),
		PID:   filepath.Join(dataDir, "daemon.pid"),
		Lock:  filepath.Join(dataDir, "daemon.lock"),
	}
	return cfg, paths
}

// startDaemon runs a daemon until the test ends and returns a client
// connected to it.
func startDaemon(t *testing.T, cfg *config.Config, paths Paths) *Client {
	t.Helper()

	d, err := New(cfg, paths, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("daemon did not shut down")
		}
	})

	c := NewClient(cfg.Daemon.SocketPath, time.Second)
	require.Eventually(t, c.IsRunning, 3*time.Second, 10*time.Millisecond, "daemon did not come up")
	return c
}

// queryEventually polls until the query returns at least one result.
func queryEventually(t *testing.T, c *Client, sessionID, query string) []string {
	t.Helper()

	var names []string
	require.Eventually(t, func() bool {
		view, err := c.Query(context.Background(), QueryParams{SessionID: sessionID, Query: query})
		if err != nil || len(view.Results) == 0 {
			return false
		}
		names = names[:0]
		for _, r := range view.Results {
			names = append(names, r.Entry.Name)
		}
		return true
	}, 5*time.Second, 50*time.Millisecond, "query %q never returned results", query)
	return names
}

func TestDaemon_QueryFindsScannedEntries(t *testing.T) {
	entryDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(entryDir, "firefox.desktop"), []byte(firefoxDesktop), 0o644))

	cfg, paths := testConfig(t, entryDir)
	c := startDaemon(t, cfg, paths)

	names := queryEventually(t, c, "win-1", "fire")
	assert.Contains(t, names, "Firefox")

	status, err := c.Status(context.Background())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, status.Entries, 1)
	assert.GreaterOrEqual(t, status.Generation, uint64(1))
}

func TestDaemon_OpenLaunchesSelection(t *testing.T) {
	entryDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(entryDir, "firefox.desktop"), []byte(firefoxDesktop), 0o644))

	cfg, paths := testConfig(t, entryDir)
	c := startDaemon(t, cfg, paths)

	queryEventually(t, c, "win-1", "fire")

	// Empty entry_id opens the session's current selection.
	result, err := c.Open(context.Background(), OpenParams{SessionID: "win-1"})
	require.NoError(t, err)
	assert.True(t, result.Launched, "open failed: %s", result.Error)
}

func TestDaemon_OpenUnknownSession(t *testing.T) {
	entryDir := t.TempDir()
	cfg, paths := testConfig(t, entryDir)
	c := startDaemon(t, cfg, paths)

	result, err := c.Open(context.Background(), OpenParams{SessionID: "never-queried"})
	require.NoError(t, err)
	assert.False(t, result.Launched)
	assert.Contains(t, result.Error, "unknown session")
}

func TestDaemon_SecondInstanceRefused(t *testing.T) {
	entryDir := t.TempDir()
	cfg, paths := testConfig(t, entryDir)
	startDaemon(t, cfg, paths)

	second, err := New(cfg, paths, nil)
	require.NoError(t, err)

	err = second.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, lumenerrors.ErrCodeAlreadyRunning, lumenerrors.GetCode(err))
}

func TestDaemon_WatcherPicksUpNewEntries(t *testing.T) {
	entryDir := t.TempDir()
	cfg, paths := testConfig(t, entryDir)
	c := startDaemon(t, cfg, paths)

	// Let the initial scan settle before mutating the directory.
	_, err := c.Status(context.Background())
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(entryDir, "editor.desktop"), []byte(editorDesktop), 0o644))

	names := queryEventually(t, c, "win-1", "editor")
	assert.Contains(t, names, "Text Editor")
}

func TestDaemon_WatcherDropsDeletedEntries(t *testing.T) {
	entryDir := t.TempDir()
	path := filepath.Join(entryDir, "firefox.desktop")
	require.NoError(t, os.WriteFile(path, []byte(firefoxDesktop), 0o644))

	cfg, paths := testConfig(t, entryDir)
	c := startDaemon(t, cfg, paths)

	queryEventually(t, c, "win-1", "fire")
	require.NoError(t, os.Remove(path))

	assert.Eventually(t, func() bool {
		view, err := c.Query(context.Background(), QueryParams{SessionID: "win-1", Query: "fire"})
		return err == nil && len(view.Results) == 0
	}, 5*time.Second, 50*time.Millisecond, "deleted entry still matched")
}

func TestDaemon_EntriesPersistToCache(t *testing.T) {
	entryDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(entryDir, "firefox.desktop"), []byte(firefoxDesktop), 0o644))

	cfg, paths := testConfig(t, entryDir)

	d, err := New(cfg, paths, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	c := NewClient(cfg.Daemon.SocketPath, time.Second)
	require.Eventually(t, c.IsRunning, 3*time.Second, 10*time.Millisecond)
	queryEventually(t, c, "win-1", "fire")

	cancel()
	require.NoError(t, <-done)

	// The cache outlives the daemon.
	db, err := cache.Open(paths.Cache, nil)
	require.NoError(t, err)
	defer db.Close()

	entries, err := db.LoadEntries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Firefox", entries[0].Name)
}

func TestDaemon_SessionLimit(t *testing.T) {
	entryDir := t.TempDir()
	cfg, paths := testConfig(t, entryDir)
	cfg.Daemon.MaxSessions = 1
	c := startDaemon(t, cfg, paths)

	_, err := c.Query(context.Background(), QueryParams{SessionID: "win-1", Query: ""})
	require.NoError(t, err)

	_, err = c.Query(context.Background(), QueryParams{SessionID: "win-2", Query: ""})
	require.Error(t, err)
}
