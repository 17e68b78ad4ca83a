// Package fuzzy scores and ranks catalog entries against a live-typed
// query. Passes are chunked and cooperatively cancellable: between
// chunks the matcher checks its context and the snapshot's staleness,
// and it never returns a partial or cross-generation result list.
package fuzzy

import (
	"container/heap"
	"context"
	"sort"

	"github.com/lumen-launcher/lumen/internal/entry"
	"github.com/lumen-launcher/lumen/internal/errors"
	"github.com/lumen-launcher/lumen/internal/index"
)

// ErrStaleSnapshot is returned when the index generation advances while
// a match pass is in flight. The caller restarts against a new snapshot;
// results from two generations are never combined.
var ErrStaleSnapshot = errors.New(errors.ErrCodeStaleSnapshot, "index advanced during match pass", nil)

// MatchResult is one scored entry.
type MatchResult struct {
	// Entry references the matched catalog entry.
	Entry *entry.Entry

	// Score is the fuzzy match score. Never below the matcher floor.
	Score int

	// Positions are the matched rune indices in the entry's
	// searchable text, for highlighting.
	Positions []int
}

// Options configures a Matcher.
type Options struct {
	// Limit is the bounded top-K result count. Default: 64.
	Limit int

	// ChunkSize is the number of entries scored between cancellation
	// checks. Default: 256.
	ChunkSize int

	// ScoreFloor is the minimum score a result must reach. Default: 1.
	ScoreFloor int
}

// WithDefaults returns options with defaults applied for zero values.
func (o Options) WithDefaults() Options {
	if o.Limit <= 0 {
		o.Limit = 64
	}
	if o.ChunkSize <= 0 {
		o.ChunkSize = 256
	}
	if o.ScoreFloor <= 0 {
		o.ScoreFloor = 1
	}
	return o
}

// Matcher scores snapshot entries against queries. Safe for concurrent
// use; a Matcher holds no per-pass state.
type Matcher struct {
	opts Options
}

// NewMatcher creates a Matcher with the given options.
func NewMatcher(opts Options) *Matcher {
	return &Matcher{opts: opts.WithDefaults()}
}

// Match scores every entry in the snapshot against the query and
// returns the bounded top-K results in descending score order, ties
// broken by shorter searchable text, then lexicographic name, then ID.
//
// On cancellation it returns (nil, ctx.Err()): cancelled passes report
// cancelled, never a truncated list. If the index generation advances
// mid-pass it returns (nil, ErrStaleSnapshot).
func (m *Matcher) Match(ctx context.Context, snap *index.Snapshot, query string) ([]MatchResult, error) {
	if query == "" {
		return []MatchResult{}, nil
	}

	qRunes := []rune(query)
	upperBound := len(qRunes) * maxPerRuneScore

	top := &resultHeap{}
	heap.Init(top)

	n := snap.Len()
	for base := 0; base < n; base += m.opts.ChunkSize {
		// Cooperative suspension point between chunks.
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if snap.Stale() {
			return nil, ErrStaleSnapshot
		}

		end := base + m.opts.ChunkSize
		if end > n {
			end = n
		}

		for i := base; i < end; i++ {
			e := snap.At(i)

			// Dynamic pruning: once the heap is full, skip entries
			// whose best possible score cannot beat the K-th best.
			if top.Len() == m.opts.Limit && upperBound <= (*top)[0].Score {
				continue
			}

			text := []rune(e.Searchable)
			if !containsSubsequence(text, qRunes) {
				continue
			}

			score, positions, ok := scoreSubsequence(text, qRunes)
			if !ok || score < m.opts.ScoreFloor {
				continue
			}

			r := MatchResult{Entry: e, Score: score, Positions: positions}
			if top.Len() < m.opts.Limit {
				heap.Push(top, r)
			} else if score > (*top)[0].Score {
				(*top)[0] = r
				heap.Fix(top, 0)
			}
		}
	}

	// Final consistency check before committing the pass.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if snap.Stale() {
		return nil, ErrStaleSnapshot
	}

	results := make([]MatchResult, top.Len())
	copy(results, *top)
	sort.Slice(results, func(i, j int) bool {
		return lessResult(results[i], results[j])
	})
	return results, nil
}

// lessResult orders a before b in the final ranked output.
func lessResult(a, b MatchResult) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if la, lb := len(a.Entry.Searchable), len(b.Entry.Searchable); la != lb {
		return la < lb
	}
	if a.Entry.Name != b.Entry.Name {
		return a.Entry.Name < b.Entry.Name
	}
	return a.Entry.ID < b.Entry.ID
}

// resultHeap is a min-heap on score so the weakest of the current top-K
// sits at the root, ready to be displaced.
type resultHeap []MatchResult

func (h resultHeap) Len() int { return len(h) }

func (h resultHeap) Less(i, j int) bool {
	if h[i].Score != h[j].Score {
		return h[i].Score < h[j].Score
	}
	// Inverse of the output order: the "worst" tie sits at the root.
	return lessResult(h[j], h[i])
}

func (h resultHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *resultHeap) Push(x any) { *h = append(*h, x.(MatchResult)) }

func (h *resultHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
