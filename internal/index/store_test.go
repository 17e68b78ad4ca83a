package index

import (
	stderrors "errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumen-launcher/lumen/internal/entry"
)

func testEntry(id, name string) *entry.Entry {
	return &entry.Entry{
		ID:         id,
		Name:       name,
		SourcePath: "/apps/" + id + ".desktop",
		ModTime:    time.Unix(1700000000, 0),
		Searchable: name,
		Actions:    []entry.Action{{ID: entry.DefaultActionID, Label: name, Exec: name}},
	}
}

func TestApply_GenerationStrictlyIncreases(t *testing.T) {
	s := NewStore()
	require.EqualValues(t, 0, s.Generation())

	var last uint64
	for i := 0; i < 50; i++ {
		gen, err := s.Apply(Delta{Upserts: []*entry.Entry{testEntry(fmt.Sprintf("id%d", i), fmt.Sprintf("App %d", i))}})
		require.NoError(t, err)
		assert.Equal(t, last+1, gen, "generation must increase by exactly one per accepted mutation")
		last = gen
	}
}

func TestApply_EmptyDeltaRejected(t *testing.T) {
	s := NewStore()
	_, err := s.Apply(Delta{})
	assert.True(t, stderrors.Is(err, ErrNoChange))
	assert.EqualValues(t, 0, s.Generation())
}

func TestApply_NoopUpsertRejected(t *testing.T) {
	s := NewStore()
	e := testEntry("a", "Alpha")
	gen, err := s.Apply(Delta{Upserts: []*entry.Entry{e}})
	require.NoError(t, err)
	require.EqualValues(t, 1, gen)

	// Re-applying a field-identical entry is not an accepted mutation
	_, err = s.Apply(Delta{Upserts: []*entry.Entry{testEntry("a", "Alpha")}})
	assert.True(t, stderrors.Is(err, ErrNoChange))
	assert.EqualValues(t, 1, s.Generation())

	// Removing an absent ID is not an accepted mutation either
	_, err = s.Apply(Delta{Removes: []string{"missing"}})
	assert.True(t, stderrors.Is(err, ErrNoChange))
	assert.EqualValues(t, 1, s.Generation())
}

func TestApply_RemoveIncrementsOnce(t *testing.T) {
	s := NewStore()
	_, err := s.Apply(Delta{Upserts: []*entry.Entry{testEntry("a", "Alpha"), testEntry("b", "Beta")}})
	require.NoError(t, err)

	gen, err := s.Apply(Delta{Removes: []string{"a"}})
	require.NoError(t, err)
	assert.EqualValues(t, 2, gen)

	_, ok := s.Lookup("a")
	assert.False(t, ok)
	_, ok = s.Lookup("b")
	assert.True(t, ok)
}

func TestSnapshot_IsolatedFromLaterMutations(t *testing.T) {
	s := NewStore()
	_, err := s.Apply(Delta{Upserts: []*entry.Entry{testEntry("a", "Alpha")}})
	require.NoError(t, err)

	snap := s.Snapshot()
	defer snap.Release()
	require.EqualValues(t, 1, snap.Generation())
	require.Equal(t, 1, snap.Len())

	// Mutate after the snapshot was taken
	_, err = s.Apply(Delta{Upserts: []*entry.Entry{testEntry("b", "Beta")}})
	require.NoError(t, err)
	_, err = s.Apply(Delta{Removes: []string{"a"}})
	require.NoError(t, err)

	// The snapshot still sees generation 1 exactly as it was
	assert.EqualValues(t, 1, snap.Generation())
	assert.Equal(t, 1, snap.Len())
	_, ok := snap.Get("a")
	assert.True(t, ok)
	_, ok = snap.Get("b")
	assert.False(t, ok)

	// It also knows it has been superseded
	assert.True(t, snap.Stale())

	// The live view moved on
	cur := s.Snapshot()
	defer cur.Release()
	assert.EqualValues(t, 3, cur.Generation())
	assert.False(t, cur.Stale())
}

func TestSnapshot_DeterministicOrder(t *testing.T) {
	s := NewStore()
	_, err := s.Apply(Delta{Upserts: []*entry.Entry{
		testEntry("c", "Gamma"), testEntry("a", "Alpha"), testEntry("b", "Beta"),
	}})
	require.NoError(t, err)

	snap := s.Snapshot()
	defer snap.Release()

	var ids []string
	for i := 0; i < snap.Len(); i++ {
		ids = append(ids, snap.At(i).ID)
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}

func TestSnapshot_RefCounting(t *testing.T) {
	s := NewStore()
	_, err := s.Apply(Delta{Upserts: []*entry.Entry{testEntry("a", "Alpha")}})
	require.NoError(t, err)

	snap := s.Snapshot()
	shared := snap.Acquire()

	// Supersede it
	_, err = s.Apply(Delta{Upserts: []*entry.Entry{testEntry("b", "Beta")}})
	require.NoError(t, err)
	assert.EqualValues(t, 1, s.LiveSnapshots())

	snap.Release()
	assert.EqualValues(t, 1, s.LiveSnapshots(), "still held by the shared reference")

	shared.Release()
	assert.EqualValues(t, 0, s.LiveSnapshots(), "freed when the last reader releases")
}

func TestStore_ConcurrentReadersSingleWriter(t *testing.T) {
	s := NewStore()

	var wg sync.WaitGroup
	stop := make(chan struct{})

	// Readers: a snapshot must always be internally consistent.
	for r := 0; r < 8; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				snap := s.Snapshot()
				gen := snap.Generation()
				for i := 0; i < snap.Len(); i++ {
					_ = snap.At(i)
				}
				// Two reads of the same snapshot yield the same generation
				if snap.Generation() != gen {
					t.Error("snapshot generation changed under a reader")
					snap.Release()
					return
				}
				snap.Release()
			}
		}()
	}

	// Single writer
	for i := 0; i < 200; i++ {
		_, err := s.Apply(Delta{Upserts: []*entry.Entry{testEntry(fmt.Sprintf("id%d", i%20), fmt.Sprintf("App %d", i))}})
		if err != nil && !stderrors.Is(err, ErrNoChange) {
			t.Fatalf("apply: %v", err)
		}
	}

	close(stop)
	wg.Wait()

	// All transient snapshots released
	assert.EqualValues(t, 0, s.LiveSnapshots())
}
