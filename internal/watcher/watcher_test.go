package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startWatcher(t *testing.T, dirs ...string) *Watcher {
	t.Helper()
	w, err := New(dirs, Options{DebounceWindow: 30 * time.Millisecond}, nil)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(func() { _ = w.Stop() })
	return w
}

func waitForBatch(t *testing.T, w *Watcher) []Event {
	t.Helper()
	select {
	case batch := <-w.Batches():
		return batch
	case <-time.After(3 * time.Second):
		t.Fatal("no batch within three seconds")
		return nil
	}
}

func TestWatcher_SeesCreatedFile(t *testing.T) {
	dir := t.TempDir()
	w := startWatcher(t, dir)

	path := filepath.Join(dir, "new.desktop")
	require.NoError(t, os.WriteFile(path, []byte("[Desktop Entry]\n"), 0o644))

	batch := waitForBatch(t, w)
	require.NotEmpty(t, batch)
	assert.Equal(t, path, batch[0].Path)
}

func TestWatcher_SeesDeletedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "old.desktop")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	w := startWatcher(t, dir)
	require.NoError(t, os.Remove(path))

	batch := waitForBatch(t, w)
	require.NotEmpty(t, batch)
	found := false
	for _, e := range batch {
		if e.Path == path && e.Operation == OpDelete {
			found = true
		}
	}
	assert.True(t, found, "delete event for %s in %v", path, batch)
}

func TestWatcher_WatchesNewSubdirectories(t *testing.T) {
	dir := t.TempDir()
	w := startWatcher(t, dir)

	sub := filepath.Join(dir, "vendor-apps")
	require.NoError(t, os.Mkdir(sub, 0o755))
	// Give the loop a beat to register the new directory
	time.Sleep(100 * time.Millisecond)

	path := filepath.Join(sub, "nested.desktop")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	deadline := time.After(3 * time.Second)
	for {
		select {
		case batch := <-w.Batches():
			for _, e := range batch {
				if e.Path == path {
					return
				}
			}
		case <-deadline:
			t.Fatal("nested file event never arrived")
		}
	}
}

func TestWatcher_MissingDirectoryTolerated(t *testing.T) {
	dir := t.TempDir()
	w, err := New([]string{filepath.Join(dir, "absent"), dir}, Options{DebounceWindow: 30 * time.Millisecond}, nil)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	defer func() { _ = w.Stop() }()

	path := filepath.Join(dir, "a.desktop")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	batch := waitForBatch(t, w)
	assert.NotEmpty(t, batch)
}

func TestWatcher_StopClosesBatches(t *testing.T) {
	dir := t.TempDir()
	w := startWatcher(t, dir)

	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop()) // idempotent

	_, open := <-w.Batches()
	assert.False(t, open)
}
