package index

import (
	"sync/atomic"

	"github.com/lumen-launcher/lumen/internal/entry"
)

// Snapshot is an immutable, reference-counted view of the index at one
// generation. Multiple snapshots may coexist; a mutation never modifies
// data visible through an already-taken snapshot.
//
// A snapshot starts with one reference held by the caller of
// Store.Snapshot. Call Release when done; Acquire to share.
type Snapshot struct {
	generation uint64
	entries    map[string]*entry.Entry
	ids        []string // sorted for deterministic iteration

	refs   atomic.Int32
	onFree func()

	// liveGen points at the store's generation counter so readers can
	// detect that this snapshot has been superseded.
	liveGen *atomic.Uint64
}

// Generation returns the index generation this snapshot was taken at.
func (s *Snapshot) Generation() uint64 {
	return s.generation
}

// Len returns the number of entries visible through this snapshot.
func (s *Snapshot) Len() int {
	return len(s.ids)
}

// Get returns the entry with the given ID, if present.
func (s *Snapshot) Get(id string) (*entry.Entry, bool) {
	e, ok := s.entries[id]
	return e, ok
}

// At returns the i-th entry in deterministic (ID-sorted) order.
func (s *Snapshot) At(i int) *entry.Entry {
	return s.entries[s.ids[i]]
}

// Stale reports whether the index generation has advanced past this
// snapshot. A matcher pass checks this between chunks and aborts
// rather than mixing results from two generations.
func (s *Snapshot) Stale() bool {
	return s.liveGen.Load() != s.generation
}

// Acquire adds a reference. Each Acquire must be paired with a Release.
// The caller must already hold a reference.
func (s *Snapshot) Acquire() *Snapshot {
	s.refs.Add(1)
	return s
}

// tryAcquire adds a reference only if the snapshot is still live.
// Returns false if the last reference was already released, in which
// case the caller must reload the current snapshot.
func (s *Snapshot) tryAcquire() bool {
	for {
		n := s.refs.Load()
		if n <= 0 {
			return false
		}
		if s.refs.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// Release drops a reference. When the last reader releases a superseded
// snapshot, the store's live-snapshot accounting is updated and the
// snapshot's data becomes collectable.
func (s *Snapshot) Release() {
	if s.refs.Add(-1) == 0 && s.onFree != nil {
		s.onFree()
	}
}
