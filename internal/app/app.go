// Package app defines the pluggable search surfaces the launcher fans
// queries out to. Each app declares its capabilities through optional
// interfaces; the registry fixes the app set at daemon startup.
package app

import (
	"context"
	"log/slog"

	"github.com/lumen-launcher/lumen/internal/entry"
	"github.com/lumen-launcher/lumen/internal/launch"
)

// Candidate is one result an app offers for a query round. Scores are
// app-local; the coordinator normalizes them before merging.
type Candidate struct {
	Entry     *entry.Entry
	Score     float64
	Positions []int
}

// App is the minimal contract every app satisfies.
type App interface {
	ID() string
}

// SearchProvider is implemented by apps that answer queries.
type SearchProvider interface {
	App
	Search(ctx context.Context, query string) ([]Candidate, error)
}

// ActionProvider is implemented by apps whose candidates can be
// activated.
type ActionProvider interface {
	App
	Activate(e *entry.Entry, actionID string) (launch.Handle, error)
}

// Constructor builds an app. A returned error excludes the app without
// affecting the daemon.
type Constructor func() (App, error)

// Registry holds the fixed app set. Populated once at startup, read
// concurrently afterward.
type Registry struct {
	apps   []App
	byID   map[string]App
	logger *slog.Logger
}

// NewRegistry creates an empty Registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{byID: make(map[string]App), logger: logger}
}

// Register runs the constructor and adds the app. A constructor failure
// is logged and the app is excluded; registration of the rest continues.
func (r *Registry) Register(name string, ctor Constructor) {
	a, err := ctor()
	if err != nil {
		r.logger.Warn("app constructor failed, app excluded",
			slog.String("app", name),
			slog.String("error", err.Error()))
		return
	}
	if _, dup := r.byID[a.ID()]; dup {
		r.logger.Warn("duplicate app id, app excluded", slog.String("app", a.ID()))
		return
	}
	r.apps = append(r.apps, a)
	r.byID[a.ID()] = a
}

// Apps returns the registered apps in registration order.
func (r *Registry) Apps() []App {
	return r.apps
}

// SearchProviders returns the registered apps that answer queries.
func (r *Registry) SearchProviders() []SearchProvider {
	var out []SearchProvider
	for _, a := range r.apps {
		if sp, ok := a.(SearchProvider); ok {
			out = append(out, sp)
		}
	}
	return out
}

// ActionProvider returns the action surface of the named app, if any.
func (r *Registry) ActionProvider(id string) (ActionProvider, bool) {
	a, ok := r.byID[id]
	if !ok {
		return nil, false
	}
	ap, ok := a.(ActionProvider)
	return ap, ok
}
