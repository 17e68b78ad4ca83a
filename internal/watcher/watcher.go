// Package watcher observes the entry directories for changes and feeds
// coalesced change batches to the rescan path. Bursts of filesystem
// events (package installs touch dozens of descriptors) collapse into
// one batch per debounce window.
package watcher

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/lumen-launcher/lumen/internal/errors"
)

// Operation classifies a filesystem change.
type Operation int

const (
	// OpCreate indicates a new file appeared.
	OpCreate Operation = iota
	// OpModify indicates an existing file changed.
	OpModify
	// OpDelete indicates a file disappeared.
	OpDelete
)

// String returns a human-readable operation name.
func (op Operation) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpModify:
		return "MODIFY"
	case OpDelete:
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}

// Event is one observed filesystem change.
type Event struct {
	// Path is the absolute path of the changed file.
	Path string

	// Operation is the change kind after coalescing.
	Operation Operation

	// Timestamp is when the event was last observed.
	Timestamp time.Time
}

// Options configures the watcher.
type Options struct {
	// DebounceWindow is how long to coalesce before emitting a batch.
	// Default: 200ms.
	DebounceWindow time.Duration

	// BatchBufferSize is the output channel buffer. Default: 16.
	BatchBufferSize int
}

// WithDefaults returns options with defaults applied for zero values.
func (o Options) WithDefaults() Options {
	if o.DebounceWindow <= 0 {
		o.DebounceWindow = 200 * time.Millisecond
	}
	if o.BatchBufferSize <= 0 {
		o.BatchBufferSize = 16
	}
	return o
}

// Watcher wraps fsnotify with recursive directory registration and a
// debouncer. Missed events are tolerated; the daemon's periodic full
// rescan reconciles anything the watcher lost.
type Watcher struct {
	dirs   []string
	opts   Options
	logger *slog.Logger

	fsw      *fsnotify.Watcher
	deb      *Debouncer
	stopOnce sync.Once
	done     chan struct{}
}

// New creates a Watcher over the given directories.
func New(dirs []string, opts Options, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	opts = opts.WithDefaults()

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.InternalError("failed to create filesystem watcher", err)
	}

	return &Watcher{
		dirs:   dirs,
		opts:   opts,
		logger: logger,
		fsw:    fsw,
		deb:    NewDebouncer(opts.DebounceWindow, opts.BatchBufferSize, logger),
		done:   make(chan struct{}),
	}, nil
}

// Start registers the directory trees and begins the event loop. A
// missing directory is logged and skipped; it may appear later and be
// picked up by the periodic rescan.
func (w *Watcher) Start(ctx context.Context) error {
	for _, dir := range w.dirs {
		if err := w.watchTree(dir); err != nil {
			w.logger.Warn("cannot watch entry directory, relying on periodic rescan",
				slog.String("dir", dir),
				slog.String("error", err.Error()))
		}
	}

	go w.loop(ctx)
	return nil
}

// Batches returns coalesced change batches. Closed on Stop.
func (w *Watcher) Batches() <-chan []Event {
	return w.deb.Output()
}

// Stop shuts the watcher down. Safe to call multiple times.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		err = w.fsw.Close()
		w.deb.Stop()
	})
	return err
}

func (w *Watcher) watchTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.fsw.Add(path); err != nil {
			w.logger.Warn("cannot watch subdirectory",
				slog.String("path", path),
				slog.String("error", err.Error()))
		}
		return nil
	})
}

func (w *Watcher) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			_ = w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", slog.String("error", err.Error()))
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	// New subdirectories join the watch so nested descriptors are seen.
	if ev.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.watchTree(ev.Name); err != nil {
				w.logger.Warn("cannot watch new subdirectory",
					slog.String("path", ev.Name),
					slog.String("error", err.Error()))
			}
			return
		}
	}

	var op Operation
	switch {
	case ev.Op.Has(fsnotify.Create):
		op = OpCreate
	case ev.Op.Has(fsnotify.Write):
		op = OpModify
	case ev.Op.Has(fsnotify.Remove), ev.Op.Has(fsnotify.Rename):
		op = OpDelete
	default:
		// Chmod and friends never change catalog contents.
		return
	}

	w.deb.Add(Event{Path: ev.Name, Operation: op, Timestamp: time.Now()})
}
