package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumen-launcher/lumen/internal/entry"
	"github.com/lumen-launcher/lumen/internal/errors"
	"github.com/lumen-launcher/lumen/internal/fuzzy"
	"github.com/lumen-launcher/lumen/internal/history"
	"github.com/lumen-launcher/lumen/internal/index"
	"github.com/lumen-launcher/lumen/internal/launch"
)

func catalogEntry(name, exec string) *entry.Entry {
	path := "/apps/" + name + ".desktop"
	return &entry.Entry{
		ID:         entry.IDForPath(path),
		Name:       name,
		Actions:    []entry.Action{{ID: entry.DefaultActionID, Label: name, Exec: exec}},
		SourcePath: path,
		ModTime:    time.Unix(1700000000, 0),
		Searchable: name,
	}
}

func newApplicationsApp(t *testing.T, entries ...*entry.Entry) (*Applications, *history.Tracker) {
	t.Helper()
	store := index.NewStore()
	if len(entries) > 0 {
		_, err := store.Apply(index.Delta{Upserts: entries})
		require.NoError(t, err)
	}
	tracker := history.New()
	a := NewApplications(store, fuzzy.NewMatcher(fuzzy.Options{}), tracker, launch.NewExecutor(nil), nil)
	return a, tracker
}

func TestRegistry_ConstructorFailureExcludesApp(t *testing.T) {
	r := NewRegistry(nil)

	r.Register("broken", func() (App, error) {
		return nil, errors.InternalError("no backend", nil)
	})
	r.Register("commands", func() (App, error) {
		return NewCommands(launch.NewExecutor(nil)), nil
	})

	require.Len(t, r.Apps(), 1)
	assert.Equal(t, "commands", r.Apps()[0].ID())
}

func TestRegistry_Surfaces(t *testing.T) {
	r := NewRegistry(nil)
	r.Register("commands", func() (App, error) {
		return NewCommands(launch.NewExecutor(nil)), nil
	})

	assert.Len(t, r.SearchProviders(), 1)

	ap, ok := r.ActionProvider("commands")
	require.True(t, ok)
	assert.Equal(t, "commands", ap.ID())

	_, ok = r.ActionProvider("missing")
	assert.False(t, ok)
}

func TestApplications_Search(t *testing.T) {
	a, _ := newApplicationsApp(t,
		catalogEntry("Files", "nautilus"),
		catalogEntry("Terminal", "term"),
	)

	got, err := a.Search(context.Background(), "fil")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Files", got[0].Entry.Name)
	assert.NotEmpty(t, got[0].Positions)
}

func TestApplications_IgnoresCommandQueries(t *testing.T) {
	a, _ := newApplicationsApp(t, catalogEntry("Files", "nautilus"))

	got, err := a.Search(context.Background(), ">files")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestApplications_HistoryBiasReordersEquals(t *testing.T) {
	// Two entries that score identically on the query
	blue := catalogEntry("Viewer Blue", "blue")
	ruby := catalogEntry("Viewer Ruby", "ruby")
	a, tracker := newApplicationsApp(t, blue, ruby)

	before, err := a.Search(context.Background(), "viewer")
	require.NoError(t, err)
	require.Len(t, before, 2)
	assert.Equal(t, "Viewer Blue", before[0].Entry.Name)

	tracker.Bump(ruby.ID)

	after, err := a.Search(context.Background(), "viewer")
	require.NoError(t, err)
	require.Len(t, after, 2)
	assert.Greater(t, after[1].Score, after[0].Score,
		"launched entry carries a bias the coordinator sorts on")
}

func TestApplications_ActivateBumpsHistory(t *testing.T) {
	e := catalogEntry("True", "/bin/true")
	a, tracker := newApplicationsApp(t, e)

	h, err := a.Activate(e, entry.DefaultActionID)
	require.NoError(t, err)
	assert.Positive(t, h.PID)
	assert.Positive(t, tracker.Bias(e.ID))
}

func TestApplications_ActivateUnknownAction(t *testing.T) {
	e := catalogEntry("True", "/bin/true")
	a, tracker := newApplicationsApp(t, e)

	_, err := a.Activate(e, "nope")
	assert.Equal(t, errors.ErrCodeUnknownAction, errors.GetCode(err))
	assert.Zero(t, tracker.Bias(e.ID))
}

func TestApplications_FailedLaunchDoesNotBump(t *testing.T) {
	e := catalogEntry("Ghost", "/nonexistent/lumen-test-binary")
	a, tracker := newApplicationsApp(t, e)

	_, err := a.Activate(e, entry.DefaultActionID)
	assert.Equal(t, errors.ErrCodeLaunchFailed, errors.GetCode(err))
	assert.Zero(t, tracker.Bias(e.ID))
}

func TestCommands_Search(t *testing.T) {
	c := NewCommands(launch.NewExecutor(nil))

	got, err := c.Search(context.Background(), "> echo hi")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "echo hi", got[0].Entry.Name)

	// Non-prefixed and empty command queries offer nothing
	got, err = c.Search(context.Background(), "echo hi")
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = c.Search(context.Background(), ">   ")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCommands_Activate(t *testing.T) {
	c := NewCommands(launch.NewExecutor(nil))

	cands, err := c.Search(context.Background(), ">true")
	require.NoError(t, err)
	require.Len(t, cands, 1)

	h, err := c.Activate(cands[0].Entry, entry.DefaultActionID)
	require.NoError(t, err)
	assert.Positive(t, h.PID)
	assert.Equal(t, []string{"sh", "-c", "true"}, h.Args)
}
