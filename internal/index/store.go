// Package index holds the in-memory application catalog as a
// generation-versioned collection with copy-on-write snapshots.
//
// Single-writer discipline: one task applies deltas sequentially through
// Apply; any number of readers take snapshots without locking against the
// writer. Readers observe a fully-consistent generation or none of it.
package index

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/lumen-launcher/lumen/internal/entry"
	"github.com/lumen-launcher/lumen/internal/errors"
)

// ErrNoChange is returned by Apply when a delta has no effect on the
// index. The generation is not incremented for rejected deltas.
var ErrNoChange = errors.New(errors.ErrCodeEmptyDelta, "delta produced no change", nil)

// Delta is one batch of mutations applied atomically.
type Delta struct {
	// Upserts adds or replaces entries by ID.
	Upserts []*entry.Entry

	// Removes deletes entries by ID.
	Removes []string
}

// Empty reports whether the delta carries no mutations at all.
func (d Delta) Empty() bool {
	return len(d.Upserts) == 0 && len(d.Removes) == 0
}

// Store owns all Entry values and is the sole mutation path for the
// catalog. It is created at daemon start and passed explicitly into
// every task needing it.
type Store struct {
	mu      sync.Mutex // serializes writers; readers never take it
	current atomic.Pointer[Snapshot]

	// generation mirrors the current snapshot's generation for
	// lock-free staleness checks by in-flight matcher passes.
	generation atomic.Uint64

	// liveSnapshots counts superseded snapshots still held by readers.
	liveSnapshots atomic.Int64
}

// NewStore creates an empty store at generation 0.
func NewStore() *Store {
	s := &Store{}
	snap := s.newSnapshot(0, map[string]*entry.Entry{})
	snap.refs.Store(1) // the store's own reference to the current view
	s.current.Store(snap)
	return s
}

// Generation returns the current index generation.
func (s *Store) Generation() uint64 {
	return s.generation.Load()
}

// Len returns the number of entries in the current generation.
func (s *Store) Len() int {
	return s.current.Load().Len()
}

// LiveSnapshots returns the number of superseded snapshots still
// referenced by in-flight readers.
func (s *Store) LiveSnapshots() int64 {
	return s.liveSnapshots.Load()
}

// Snapshot returns an immutable view of the index at the current
// generation. The caller holds one reference and must Release it.
//
// Readers never block on the writer: acquisition is a reference-count
// CAS, retried in the rare case the loaded snapshot was superseded and
// fully released in between.
func (s *Store) Snapshot() *Snapshot {
	for {
		snap := s.current.Load()
		if snap.tryAcquire() {
			return snap
		}
	}
}

// Lookup returns the entry with the given ID at the current generation.
func (s *Store) Lookup(id string) (*entry.Entry, bool) {
	return s.current.Load().Get(id)
}

// Apply applies one delta atomically and returns the new generation.
//
// The mutation completes fully before Apply returns; there is no
// timeout on this path. Upserts that match the stored entry field for
// field and removes of absent IDs do not count as changes; a delta with
// no effective change is rejected with ErrNoChange and the generation
// is untouched.
func (s *Store) Apply(delta Delta) (uint64, error) {
	if delta.Empty() {
		return s.generation.Load(), ErrNoChange
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.current.Load()

	// Copy-on-write: mutate a fresh map so existing snapshots keep
	// their view untouched.
	next := make(map[string]*entry.Entry, len(old.entries)+len(delta.Upserts))
	for id, e := range old.entries {
		next[id] = e
	}

	changed := false
	for _, e := range delta.Upserts {
		if prev, ok := next[e.ID]; ok && prev.Equal(e) {
			continue
		}
		next[e.ID] = e
		changed = true
	}
	for _, id := range delta.Removes {
		if _, ok := next[id]; ok {
			delete(next, id)
			changed = true
		}
	}

	if !changed {
		return old.generation, ErrNoChange
	}

	gen := old.generation + 1
	snap := s.newSnapshot(gen, next)
	snap.refs.Store(1) // the store's reference

	s.current.Store(snap)
	s.generation.Store(gen)

	// The superseded snapshot may outlive this call through readers;
	// track it until its last reference is gone.
	s.liveSnapshots.Add(1)
	old.Release()

	return gen, nil
}

// newSnapshot builds a snapshot with deterministic iteration order.
func (s *Store) newSnapshot(gen uint64, entries map[string]*entry.Entry) *Snapshot {
	ids := make([]string, 0, len(entries))
	for id := range entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	return &Snapshot{
		generation: gen,
		entries:    entries,
		ids:        ids,
		liveGen:    &s.generation,
		onFree:     func() { s.liveSnapshots.Add(-1) },
	}
}
