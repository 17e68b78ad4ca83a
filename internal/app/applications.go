package app

import (
	"context"
	"log/slog"
	"strings"

	"github.com/lumen-launcher/lumen/internal/entry"
	"github.com/lumen-launcher/lumen/internal/errors"
	"github.com/lumen-launcher/lumen/internal/fuzzy"
	"github.com/lumen-launcher/lumen/internal/history"
	"github.com/lumen-launcher/lumen/internal/index"
	"github.com/lumen-launcher/lumen/internal/launch"
)

// staleRetries bounds how often a search restarts after the index
// advances mid-pass. Under sustained churn the query round's deadline
// wins anyway.
const staleRetries = 3

// Applications searches the installed-application catalog and launches
// the chosen action.
type Applications struct {
	store    *index.Store
	matcher  *fuzzy.Matcher
	history  *history.Tracker
	executor *launch.Executor
	logger   *slog.Logger
}

// NewApplications creates the applications app over the shared index.
func NewApplications(store *index.Store, matcher *fuzzy.Matcher, tracker *history.Tracker, executor *launch.Executor, logger *slog.Logger) *Applications {
	if logger == nil {
		logger = slog.Default()
	}
	return &Applications{
		store:    store,
		matcher:  matcher,
		history:  tracker,
		executor: executor,
		logger:   logger,
	}
}

// ID implements App.
func (a *Applications) ID() string { return "applications" }

// Search matches the query against the current index snapshot. If the
// index advances mid-pass the match restarts against a fresh snapshot.
// Launch history biases scores so frequently used entries rank first
// among equals.
func (a *Applications) Search(ctx context.Context, query string) ([]Candidate, error) {
	if strings.HasPrefix(query, ">") {
		// Command territory; this app stays silent.
		return nil, nil
	}

	var results []fuzzy.MatchResult
	var err error
	for attempt := 0; attempt <= staleRetries; attempt++ {
		snap := a.store.Snapshot()
		results, err = a.matcher.Match(ctx, snap, query)
		snap.Release()
		if err == nil {
			break
		}
		if !errors.Is(err, fuzzy.ErrStaleSnapshot) {
			return nil, err
		}
	}
	if err != nil {
		return nil, err
	}

	out := make([]Candidate, len(results))
	for i, r := range results {
		out[i] = Candidate{
			Entry:     r.Entry,
			Score:     float64(r.Score) + a.history.Bias(r.Entry.ID),
			Positions: r.Positions,
		}
	}
	return out, nil
}

// Activate launches the named action of the entry and records the
// launch in history. Failure is visible to the session and recoverable.
func (a *Applications) Activate(e *entry.Entry, actionID string) (launch.Handle, error) {
	act, ok := e.Action(actionID)
	if !ok {
		return launch.Handle{}, errors.New(errors.ErrCodeUnknownAction, "entry has no such action", nil).
			WithDetail("entry", e.Name).
			WithDetail("action", actionID)
	}

	h, err := a.executor.Run(act.Exec, e)
	if err != nil {
		return launch.Handle{}, err
	}

	a.history.Bump(e.ID)
	return h, nil
}
