// Package scanner discovers application entries on disk. It walks the
// configured entry directories, parses desktop files on a worker pool,
// and streams results as they are produced. A modification-time memo
// avoids reparsing files that have not changed between scans.
package scanner

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/panjf2000/ants/v2"

	"github.com/lumen-launcher/lumen/internal/entry"
	"github.com/lumen-launcher/lumen/internal/errors"
	"github.com/lumen-launcher/lumen/internal/index"
)

// memoSize bounds the parse memo. Desktop catalogs are small; this is
// generous headroom for multi-directory setups.
const memoSize = 4096

// Result is one streamed scan outcome. Exactly one of Entry and Err is
// set; Path is always set. A parse failure for one file never aborts
// the scan.
type Result struct {
	Path  string
	Entry *entry.Entry
	Err   error
}

type memoRecord struct {
	modTimeUnixNano int64
	entry           *entry.Entry
}

// Options configures a Scanner.
type Options struct {
	// Workers is the parse pool size (0 = NumCPU).
	Workers int
}

// Scanner walks entry directories and parses desktop files.
type Scanner struct {
	dirs   []string
	pool   *ants.Pool
	memo   *lru.Cache[string, memoRecord]
	logger *slog.Logger
}

// New creates a Scanner over the given directories. Directories that do
// not exist are tolerated at scan time.
func New(dirs []string, opts Options, logger *slog.Logger) (*Scanner, error) {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, errors.InternalError("failed to create parse pool", err)
	}

	memo, err := lru.New[string, memoRecord](memoSize)
	if err != nil {
		pool.Release()
		return nil, errors.InternalError("failed to create parse memo", err)
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Scanner{
		dirs:   dirs,
		pool:   pool,
		memo:   memo,
		logger: logger,
	}, nil
}

// Close releases the parse pool. The Scanner must not be used after.
func (s *Scanner) Close() {
	s.pool.Release()
}

// Scan walks every configured directory and streams parsed entries.
// The channel is closed when all directories have been visited. An
// unreadable directory is logged and skipped; it never fails the scan.
func (s *Scanner) Scan(ctx context.Context) <-chan Result {
	results := make(chan Result, s.pool.Cap()*4)

	go func() {
		defer close(results)

		var wg sync.WaitGroup
		for _, dir := range s.dirs {
			s.scanDir(ctx, dir, &wg, results)
		}
		wg.Wait()
	}()

	return results
}

// FullDelta runs a complete scan and folds it into a single delta of
// upserts. Per-file parse failures are logged and skipped.
func (s *Scanner) FullDelta(ctx context.Context) (index.Delta, error) {
	var delta index.Delta
	for res := range s.Scan(ctx) {
		if res.Err != nil {
			s.logger.Warn("skipping entry",
				slog.String("path", res.Path),
				slog.String("error", res.Err.Error()))
			continue
		}
		delta.Upserts = append(delta.Upserts, res.Entry)
	}
	if err := ctx.Err(); err != nil {
		return index.Delta{}, err
	}
	return delta, nil
}

// Rescan re-examines a set of changed paths and produces the delta to
// apply. Deleted or newly unparseable files become removals; parseable
// files become upserts.
func (s *Scanner) Rescan(ctx context.Context, paths []string) (index.Delta, error) {
	var delta index.Delta
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return index.Delta{}, err
		}
		if !entry.IsDesktopFile(path) {
			continue
		}

		info, err := os.Stat(path)
		if err != nil {
			s.memo.Remove(path)
			delta.Removes = append(delta.Removes, entry.IDForPath(path))
			continue
		}

		e, err := s.parse(path, info)
		if err != nil {
			// A file that stopped being displayable leaves the catalog.
			s.memo.Remove(path)
			delta.Removes = append(delta.Removes, entry.IDForPath(path))
			s.logger.Debug("rescanned entry removed",
				slog.String("path", path),
				slog.String("reason", err.Error()))
			continue
		}
		delta.Upserts = append(delta.Upserts, e)
	}
	return delta, nil
}

// Prime seeds the parse memo from previously cached entries so the
// first scan after startup can skip parsing unchanged files.
func (s *Scanner) Prime(entries []*entry.Entry) {
	for _, e := range entries {
		s.memo.Add(e.SourcePath, memoRecord{
			modTimeUnixNano: e.ModTime.UnixNano(),
			entry:           e,
		})
	}
}

func (s *Scanner) scanDir(ctx context.Context, dir string, wg *sync.WaitGroup, results chan<- Result) {
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil {
			if path == dir {
				return err
			}
			s.logger.Warn("unreadable path during scan",
				slog.String("path", path),
				slog.String("error", err.Error()))
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !entry.IsDesktopFile(path) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}

		wg.Add(1)
		if submitErr := s.pool.Submit(func() {
			defer wg.Done()
			s.parseInto(ctx, path, info, results)
		}); submitErr != nil {
			wg.Done()
			s.parseInto(ctx, path, info, results)
		}
		return nil
	})

	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		// The directory itself is missing or unreadable. The other
		// directories still get scanned.
		s.logger.Warn("entry directory unreadable",
			slog.String("dir", dir),
			slog.String("error", errors.ScanError("cannot walk entry directory", err).Error()))
	}
}

func (s *Scanner) parseInto(ctx context.Context, path string, info fs.FileInfo, results chan<- Result) {
	e, err := s.parse(path, info)
	res := Result{Path: path, Entry: e, Err: err}
	select {
	case results <- res:
	case <-ctx.Done():
	}
}

// parse consults the memo first; only files whose modification time
// changed are reparsed.
func (s *Scanner) parse(path string, info fs.FileInfo) (*entry.Entry, error) {
	if rec, ok := s.memo.Get(path); ok && rec.modTimeUnixNano == info.ModTime().UnixNano() {
		return rec.entry, nil
	}

	e, err := entry.ParseDesktopFile(path)
	if err != nil {
		return nil, err
	}

	s.memo.Add(path, memoRecord{
		modTimeUnixNano: info.ModTime().UnixNano(),
		entry:           e,
	})
	return e, nil
}
