// Package daemon wires the launcher together: it owns the index store,
// runs the scan task and the filesystem watcher, and serves launcher
// sessions over a Unix socket. Clients connect per request via JSON-RPC.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	"github.com/lumen-launcher/lumen/internal/app"
	"github.com/lumen-launcher/lumen/internal/cache"
	"github.com/lumen-launcher/lumen/internal/config"
	"github.com/lumen-launcher/lumen/internal/coordinator"
	"github.com/lumen-launcher/lumen/internal/entry"
	"github.com/lumen-launcher/lumen/internal/errors"
	"github.com/lumen-launcher/lumen/internal/fuzzy"
	"github.com/lumen-launcher/lumen/internal/history"
	"github.com/lumen-launcher/lumen/internal/index"
	"github.com/lumen-launcher/lumen/internal/launch"
	"github.com/lumen-launcher/lumen/internal/scanner"
	"github.com/lumen-launcher/lumen/internal/session"
	"github.com/lumen-launcher/lumen/internal/watcher"
)

// restartBackoff is the pause before the scan task restarts after a
// panic.
const restartBackoff = time.Second

// Paths locates the daemon's on-disk state. Zero values fall back to
// the standard locations under the data directory.
type Paths struct {
	Cache string
	PID   string
	Lock  string
}

// WithDefaults returns paths with defaults applied for zero values.
func (p Paths) WithDefaults() Paths {
	if p.Cache == "" {
		p.Cache = config.DefaultCachePath()
	}
	if p.PID == "" {
		p.PID = config.DefaultPIDPath()
	}
	if p.Lock == "" {
		p.Lock = filepath.Join(config.DefaultDataDir(), "daemon.lock")
	}
	return p
}

// Daemon is the long-running launcher process.
type Daemon struct {
	cfg    *config.Config
	paths  Paths
	logger *slog.Logger

	lock    *flock.Flock
	pidfile *PIDFile

	store    *index.Store
	scanner  *scanner.Scanner
	cache    *cache.Cache
	history  *history.Tracker
	registry *app.Registry
	sessions *session.Manager
	coord    *coordinator.Coordinator
	watcher  *watcher.Watcher
	server   *Server
}

// New assembles a Daemon from configuration. The heavyweight startup
// work (cache load, initial scan) happens in Run, not here.
func New(cfg *config.Config, paths Paths, logger *slog.Logger) (*Daemon, error) {
	if logger == nil {
		logger = slog.Default()
	}
	paths = paths.WithDefaults()

	roundTimeout, err := cfg.RoundTimeout()
	if err != nil {
		return nil, err
	}
	debounce, err := cfg.Debounce()
	if err != nil {
		return nil, err
	}

	scn, err := scanner.New(cfg.Entries.Directories, scanner.Options{
		Workers: cfg.Scanner.Workers,
	}, logger)
	if err != nil {
		return nil, err
	}

	wch, err := watcher.New(cfg.Entries.Directories, watcher.Options{
		DebounceWindow: debounce,
	}, logger)
	if err != nil {
		scn.Close()
		return nil, err
	}

	store := index.NewStore()
	matcher := fuzzy.NewMatcher(fuzzy.Options{
		Limit:      cfg.Search.MaxResults,
		ChunkSize:  cfg.Search.ChunkSize,
		ScoreFloor: cfg.Search.ScoreFloor,
	})
	tracker := history.New()
	executor := launch.NewExecutor(logger)

	registry := app.NewRegistry(logger)
	registry.Register("applications", func() (app.App, error) {
		return app.NewApplications(store, matcher, tracker, executor, logger), nil
	})
	registry.Register("commands", func() (app.App, error) {
		return app.NewCommands(executor), nil
	})

	d := &Daemon{
		cfg:      cfg,
		paths:    paths,
		logger:   logger,
		lock:     flock.New(paths.Lock),
		pidfile:  NewPIDFile(paths.PID),
		store:    store,
		scanner:  scn,
		history:  tracker,
		registry: registry,
		sessions: session.NewManager(cfg.Daemon.MaxSessions),
		coord:    coordinator.New(registry, roundTimeout, logger),
		watcher:  wch,
		server:   NewServer(cfg.Daemon.SocketPath, logger),
	}
	d.server.SetHandler(d)
	return d, nil
}

// Run starts the daemon and blocks until the context is cancelled or
// the socket bind fails.
func (d *Daemon) Run(ctx context.Context) error {
	defer d.scanner.Close()
	defer func() { _ = d.watcher.Stop() }()

	if err := d.acquireLock(); err != nil {
		return err
	}
	defer func() { _ = d.lock.Unlock() }()

	if err := d.pidfile.Write(); err != nil {
		d.logger.Warn("failed to write PID file", slog.String("error", err.Error()))
	}
	defer func() { _ = d.pidfile.Remove() }()

	d.openCache()
	d.loadCachedState()

	defer d.closeCache()
	defer d.persistState()

	if err := d.watcher.Start(ctx); err != nil {
		d.logger.Warn("watcher unavailable, relying on periodic rescan",
			slog.String("error", err.Error()))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return d.server.ListenAndServe(gctx)
	})
	g.Go(func() error {
		d.scanLoop(gctx)
		return nil
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// acquireLock takes the single-instance lock. A second daemon fails
// fast instead of fighting over the socket.
func (d *Daemon) acquireLock() error {
	if err := os.MkdirAll(filepath.Dir(d.paths.Lock), 0755); err != nil {
		return errors.InternalError("failed to create data directory", err)
	}

	acquired, err := d.lock.TryLock()
	if err != nil {
		return errors.InternalError("failed to acquire instance lock", err)
	}
	if !acquired {
		return errors.New(errors.ErrCodeAlreadyRunning,
			fmt.Sprintf("another daemon holds %s", d.paths.Lock), nil)
	}
	return nil
}

// openCache opens the persisted entry cache. The daemon runs without
// one when the open fails.
func (d *Daemon) openCache() {
	c, err := cache.Open(d.paths.Cache, d.logger)
	if err != nil {
		d.logger.Warn("cache unavailable, starting cold",
			slog.String("path", d.paths.Cache),
			slog.String("error", err.Error()))
		return
	}
	d.cache = c
}

// loadCachedState seeds the index and history from the cache so the
// first query answers before the initial scan finishes.
func (d *Daemon) loadCachedState() {
	if d.cache == nil {
		return
	}

	entries, err := d.cache.LoadEntries()
	if err != nil {
		d.logger.Warn("failed to load cached entries", slog.String("error", err.Error()))
	} else if len(entries) > 0 {
		d.scanner.Prime(entries)
		if _, err := d.store.Apply(index.Delta{Upserts: entries}); err != nil && err != index.ErrNoChange {
			d.logger.Warn("failed to seed index from cache", slog.String("error", err.Error()))
		} else {
			d.logger.Info("index seeded from cache", slog.Int("entries", len(entries)))
		}
	}

	bias, err := d.cache.LoadHistory()
	if err != nil {
		d.logger.Warn("failed to load launch history", slog.String("error", err.Error()))
		return
	}
	// The registry apps hold the startup tracker, so restore into it
	// rather than swapping the pointer.
	d.history.Adopt(bias)
}

// persistState writes entries and history back to the cache at
// shutdown.
func (d *Daemon) persistState() {
	if d.cache == nil {
		return
	}
	d.saveEntries()
	if err := d.cache.SaveHistory(d.history.Snapshot()); err != nil {
		d.logger.Warn("failed to save launch history", slog.String("error", err.Error()))
	}
}

func (d *Daemon) closeCache() {
	if d.cache == nil {
		return
	}
	if err := d.cache.Close(); err != nil {
		d.logger.Warn("failed to close cache", slog.String("error", err.Error()))
	}
}

// saveEntries snapshots the index and writes it to the cache.
func (d *Daemon) saveEntries() {
	if d.cache == nil {
		return
	}
	snap := d.store.Snapshot()
	defer snap.Release()

	entries := make([]*entry.Entry, 0, snap.Len())
	for i := 0; i < snap.Len(); i++ {
		entries = append(entries, snap.At(i))
	}
	if err := d.cache.SaveEntries(entries); err != nil {
		d.logger.Warn("failed to save entries", slog.String("error", err.Error()))
	}
}

// scanLoop keeps the scan task alive for the daemon's lifetime. A panic
// inside the task is logged and the task restarts; the daemon itself
// stays up.
func (d *Daemon) scanLoop(ctx context.Context) {
	for ctx.Err() == nil {
		if panicked := d.runScanTask(ctx); !panicked {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(restartBackoff):
		}
	}
}

// runScanTask runs the scan task, converting a panic into a restart
// signal.
func (d *Daemon) runScanTask(ctx context.Context) (panicked bool) {
	defer func() {
		if r := recover(); r != nil {
			e := errors.New(errors.ErrCodeScanTaskFailed,
				fmt.Sprintf("scan task panicked: %v", r), nil)
			d.logger.Error("scan task crashed, restarting",
				slog.String("error", e.Error()))
			panicked = true
		}
	}()

	d.scanTask(ctx)
	return false
}

// scanTask performs the initial full scan, then folds watcher batches
// and periodic full rescans into the index.
func (d *Daemon) scanTask(ctx context.Context) {
	d.fullScan(ctx)

	interval, err := d.cfg.RescanInterval()
	if err != nil {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case batch, ok := <-d.watcher.Batches():
			if !ok {
				// Watcher gone; the ticker still reconciles.
				d.tickOnly(ctx, ticker)
				return
			}
			d.applyBatch(ctx, batch)

		case <-ticker.C:
			d.fullScan(ctx)
		}
	}
}

// tickOnly continues periodic rescans after the watcher channel closes.
func (d *Daemon) tickOnly(ctx context.Context, ticker *time.Ticker) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.fullScan(ctx)
		}
	}
}

// fullScan walks every entry directory and replaces the catalog with
// what it finds. Entries that disappeared since the last scan are
// dropped.
func (d *Daemon) fullScan(ctx context.Context) {
	started := time.Now()

	delta, err := d.scanner.FullDelta(ctx)
	if err != nil {
		d.logger.Warn("full scan aborted", slog.String("error", err.Error()))
		return
	}

	delta.Removes = d.removedIDs(delta.Upserts)

	gen, err := d.store.Apply(delta)
	if err == index.ErrNoChange {
		d.logger.Debug("full scan found no changes")
		return
	}
	if err != nil {
		d.logger.Warn("failed to apply scan delta", slog.String("error", err.Error()))
		return
	}

	d.history.Forget(delta.Removes)
	d.logger.Info("full scan applied",
		slog.Int("entries", len(delta.Upserts)),
		slog.Int("removed", len(delta.Removes)),
		slog.Uint64("generation", gen),
		slog.Duration("elapsed", time.Since(started)))
	d.saveEntries()
}

// removedIDs returns the IDs present in the index but absent from the
// fresh scan.
func (d *Daemon) removedIDs(scanned []*entry.Entry) []string {
	seen := make(map[string]struct{}, len(scanned))
	for _, e := range scanned {
		seen[e.ID] = struct{}{}
	}

	snap := d.store.Snapshot()
	defer snap.Release()

	var removed []string
	for i := 0; i < snap.Len(); i++ {
		if e := snap.At(i); e != nil {
			if _, ok := seen[e.ID]; !ok {
				removed = append(removed, e.ID)
			}
		}
	}
	return removed
}

// applyBatch rescans the paths a watcher batch touched and applies the
// resulting delta.
func (d *Daemon) applyBatch(ctx context.Context, batch []watcher.Event) {
	paths := make([]string, 0, len(batch))
	for _, ev := range batch {
		paths = append(paths, ev.Path)
	}

	delta, err := d.scanner.Rescan(ctx, paths)
	if err != nil {
		d.logger.Warn("rescan aborted", slog.String("error", err.Error()))
		return
	}

	gen, err := d.store.Apply(delta)
	if err == index.ErrNoChange {
		return
	}
	if err != nil {
		d.logger.Warn("failed to apply rescan delta", slog.String("error", err.Error()))
		return
	}

	d.history.Forget(delta.Removes)
	d.logger.Info("watcher batch applied",
		slog.Int("events", len(batch)),
		slog.Int("upserts", len(delta.Upserts)),
		slog.Int("removes", len(delta.Removes)),
		slog.Uint64("generation", gen))
	d.saveEntries()
}

// HandleQuery implements RequestHandler.
func (d *Daemon) HandleQuery(ctx context.Context, params QueryParams) (session.View, error) {
	sess, err := d.sessions.GetOrCreate(params.SessionID)
	if err != nil {
		return session.View{}, err
	}
	return d.coord.Query(ctx, sess, params.Query), nil
}

// HandleOpen implements RequestHandler.
func (d *Daemon) HandleOpen(_ context.Context, params OpenParams) error {
	sess, ok := d.sessions.Get(params.SessionID)
	if !ok {
		return fmt.Errorf("unknown session: %s", params.SessionID)
	}
	return d.coord.Activate(sess, params.EntryID, params.ActionID)
}

// Status implements RequestHandler.
func (d *Daemon) Status() StatusResult {
	return StatusResult{
		Entries:    d.store.Len(),
		Generation: d.store.Generation(),
		Sessions:   d.sessions.Count(),
	}
}
