// Package history tracks how often entries are launched. Recently
// launched entries get a score bias so they rank above equally matched
// strangers. The bias is an exponential moving average: each launch
// pulls it toward a ceiling, each daemon start decays it toward zero,
// so an app that stops being used fades out of the ranking over time.
package history

import (
	"maps"
	"sync"
)

const (
	// biasCeiling is the asymptotic bias of an entry launched constantly.
	biasCeiling = 100.0

	// bumpAlpha is how far one launch pulls the bias toward the ceiling.
	bumpAlpha = 0.5

	// decayAlpha is how far one daemon start pulls the bias toward zero.
	decayAlpha = 0.1

	// pruneFloor drops entries whose bias decayed to noise.
	pruneFloor = 0.01
)

// Tracker holds per-entry launch bias keyed by entry ID. Safe for
// concurrent use.
type Tracker struct {
	mu   sync.RWMutex
	bias map[string]float64
}

// New creates an empty Tracker.
func New() *Tracker {
	return &Tracker{bias: make(map[string]float64)}
}

// Load restores a persisted bias map and applies one decay pass.
// Entries that decay below the prune floor are dropped.
func Load(persisted map[string]float64) *Tracker {
	t := New()
	t.Adopt(persisted)
	return t
}

// Adopt replaces the tracker's contents with a persisted bias map,
// applying the same decay pass Load does. Existing values are
// discarded.
func (t *Tracker) Adopt(persisted map[string]float64) {
	bias := make(map[string]float64, len(persisted))
	for id, v := range persisted {
		v *= 1 - decayAlpha
		if v >= pruneFloor {
			bias[id] = v
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.bias = bias
}

// Bump records a launch of the given entry.
func (t *Tracker) Bump(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.bias[id] += bumpAlpha * (biasCeiling - t.bias[id])
}

// Bias returns the current bias for an entry, zero if never launched.
func (t *Tracker) Bias(id string) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.bias[id]
}

// Snapshot copies the bias map for persistence.
func (t *Tracker) Snapshot() map[string]float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return maps.Clone(t.bias)
}

// Forget removes entries that no longer exist in the catalog.
func (t *Tracker) Forget(ids []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, id := range ids {
		delete(t.bias, id)
	}
}
