// Package coordinator drives query rounds. Every keystroke gets a fresh
// token; the round fans out to all search apps under a shared deadline,
// normalizes per-app scores, merges them into one ranked list, and
// commits to the session only if the token is still current. A round
// superseded by a newer keystroke delivers nothing.
package coordinator

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lumen-launcher/lumen/internal/app"
	"github.com/lumen-launcher/lumen/internal/errors"
	"github.com/lumen-launcher/lumen/internal/session"
)

// scoreCeiling is what each app's best candidate normalizes to, so one
// verbose scorer cannot drown out the others.
const scoreCeiling = 1000.0

// DefaultRoundTimeout bounds one query round.
const DefaultRoundTimeout = 150 * time.Millisecond

// Coordinator fans queries out to the registered apps.
type Coordinator struct {
	registry *app.Registry
	timeout  time.Duration
	logger   *slog.Logger

	tokens atomic.Uint64

	mu     sync.Mutex
	rounds map[string]roundSlot
}

// roundSlot tracks the in-flight round of one session.
type roundSlot struct {
	token  uint64
	cancel context.CancelFunc
}

// New creates a Coordinator. timeout <= 0 applies the default.
func New(registry *app.Registry, timeout time.Duration, logger *slog.Logger) *Coordinator {
	if timeout <= 0 {
		timeout = DefaultRoundTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		registry: registry,
		timeout:  timeout,
		logger:   logger,
		rounds:   make(map[string]roundSlot),
	}
}

// Query runs one round for the session and returns the resulting view.
// Any in-flight round for the same session is cancelled first.
func (c *Coordinator) Query(ctx context.Context, sess *session.Session, query string) session.View {
	token := c.tokens.Add(1)

	roundCtx, cancel := context.WithTimeout(ctx, c.timeout)
	c.mu.Lock()
	if prev, ok := c.rounds[sess.ID()]; ok {
		// A concurrent caller may have installed a newer round between
		// our token issue and taking the lock. The newer round owns the
		// session; this one is already superseded.
		if prev.token > token {
			c.mu.Unlock()
			cancel()
			return sess.View()
		}
		prev.cancel()
	}
	c.rounds[sess.ID()] = roundSlot{token: token, cancel: cancel}
	c.mu.Unlock()
	defer func() {
		cancel()
		c.mu.Lock()
		// Only the owner of the slot clears it.
		if current, ok := c.rounds[sess.ID()]; ok && current.token == token {
			delete(c.rounds, sess.ID())
		}
		c.mu.Unlock()
	}()

	// Session tokens are monotonic; a rejected round lost to a newer
	// one that already began and must not touch the session.
	if !sess.BeginRound(query, token) {
		return sess.View()
	}

	if query == "" {
		sess.Commit(token, nil)
		return sess.View()
	}

	merged, aborted := c.fanOut(roundCtx, query)
	if aborted {
		c.logger.Debug("round cancelled before commit",
			slog.Uint64("token", token),
			slog.String("session", sess.ID()),
			slog.String("error_code", errors.ErrCodeQueryCancelled))
		sess.CancelRound(token)
		return sess.View()
	}

	if !sess.Commit(token, merged) {
		c.logger.Debug("round superseded, results dropped",
			slog.Uint64("token", token),
			slog.String("session", sess.ID()))
	}
	return sess.View()
}

// fanOut queries every search app concurrently under the round context.
// An app that errors or misses the deadline is dropped from this round
// only. aborted is true when the whole round was cancelled.
func (c *Coordinator) fanOut(ctx context.Context, query string) (results []session.Result, aborted bool) {
	providers := c.registry.SearchProviders()
	perApp := make([][]app.Candidate, len(providers))

	g, gctx := errgroup.WithContext(ctx)
	for i, sp := range providers {
		i, sp := i, sp
		g.Go(func() error {
			cands, err := sp.Search(gctx, query)
			if err != nil {
				if errors.Is(err, context.DeadlineExceeded) {
					c.logger.Warn("app missed round deadline, dropped from round",
						slog.String("app", sp.ID()),
						slog.String("error_code", errors.ErrCodeProviderSlow))
				} else if !errors.Is(err, context.Canceled) {
					c.logger.Warn("app search failed, dropped from round",
						slog.String("app", sp.ID()),
						slog.String("error", err.Error()))
				}
				return nil
			}
			perApp[i] = cands
			return nil
		})
	}
	_ = g.Wait()

	if errors.Is(ctx.Err(), context.Canceled) {
		return nil, true
	}

	return mergeRound(providers, perApp), false
}

// mergeRound normalizes each app's scores to the shared ceiling and
// interleaves everything into one descending list.
func mergeRound(providers []app.SearchProvider, perApp [][]app.Candidate) []session.Result {
	var merged []session.Result
	for i, cands := range perApp {
		if len(cands) == 0 {
			continue
		}
		best := 0.0
		for _, cand := range cands {
			if cand.Score > best {
				best = cand.Score
			}
		}
		factor := 1.0
		if best > 0 {
			factor = scoreCeiling / best
		}
		for _, cand := range cands {
			merged = append(merged, session.Result{
				App:       providers[i].ID(),
				Entry:     cand.Entry,
				Score:     cand.Score * factor,
				Positions: cand.Positions,
			})
		}
	}

	sort.Slice(merged, func(i, j int) bool {
		return lessMerged(merged[i], merged[j])
	})
	return merged
}

func lessMerged(a, b session.Result) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if la, lb := len(a.Entry.Searchable), len(b.Entry.Searchable); la != lb {
		return la < lb
	}
	if a.Entry.Name != b.Entry.Name {
		return a.Entry.Name < b.Entry.Name
	}
	if a.Entry.ID != b.Entry.ID {
		return a.Entry.ID < b.Entry.ID
	}
	return a.App < b.App
}

// Activate launches the given entry's action through its owning app and
// surfaces any failure into the session. entryID empty means the
// current selection.
func (c *Coordinator) Activate(sess *session.Session, entryID, actionID string) error {
	var res session.Result
	var ok bool
	if entryID == "" {
		res, ok = sess.Selected()
	} else {
		res, ok = sess.ResultByEntryID(entryID)
	}
	if !ok {
		err := errors.New(errors.ErrCodeUnknownAction, "no such result to activate", nil).
			WithDetail("entry_id", entryID)
		sess.SetLaunchError(err.Message)
		return err
	}

	provider, ok := c.registry.ActionProvider(res.App)
	if !ok {
		err := errors.New(errors.ErrCodeUnknownAction, "app offers no actions", nil).
			WithDetail("app", res.App)
		sess.SetLaunchError(err.Message)
		return err
	}

	if _, err := provider.Activate(res.Entry, actionID); err != nil {
		// Visible but recoverable; the catalog and daemon are unaffected.
		sess.SetLaunchError(err.Error())
		c.logger.Warn("activation failed",
			slog.String("app", res.App),
			slog.String("entry", res.Entry.Name),
			slog.String("error", err.Error()))
		return err
	}
	return nil
}
