// Package entry defines the application catalog record and its parsing.
package entry

import (
	"fmt"
	"hash/fnv"
	"strings"
	"time"
)

// Action is one launchable action of an entry: the default "run" action
// or an additional desktop action (e.g. "New Private Window").
type Action struct {
	// ID identifies the action within its entry. The default action
	// has ID "default".
	ID string

	// Label is the human-readable action name.
	Label string

	// Exec is the execution template, including desktop field codes.
	Exec string
}

// DefaultActionID is the ID of an entry's primary action.
const DefaultActionID = "default"

// Entry is one indexed application descriptor.
// After an Entry is handed to the index store, the store owns it;
// callers must treat it as immutable.
type Entry struct {
	// ID is stable across rescans for the same source path.
	ID string

	// Name is the display name.
	Name string

	// Description is the optional comment/generic name text.
	Description string

	// Categories holds the entry's category set.
	Categories []string

	// Actions lists the launchable actions, default first.
	Actions []Action

	// Icon is the icon reference: a theme icon name or absolute path.
	Icon string

	// Keywords holds additional search terms.
	Keywords []string

	// SourcePath is the descriptor file this entry was parsed from.
	SourcePath string

	// ModTime is the descriptor file's modification time at parse.
	ModTime time.Time

	// Searchable is the derived, normalized text matched against queries.
	Searchable string
}

// IDForPath derives the stable entry ID for a descriptor path.
func IDForPath(path string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(path))
	return fmt.Sprintf("%016x", h.Sum64())
}

// Action returns the action with the given ID, or the default action
// when id is empty. The second return is false if no such action exists.
func (e *Entry) Action(id string) (Action, bool) {
	if id == "" {
		id = DefaultActionID
	}
	for _, a := range e.Actions {
		if a.ID == id {
			return a, true
		}
	}
	return Action{}, false
}

// buildSearchable derives the searchable text from the entry's name,
// description and keywords. Case is preserved: matching is
// case-insensitive but case-exact matches earn a scoring bonus.
func buildSearchable(name, description string, keywords []string) string {
	parts := make([]string, 0, 2+len(keywords))
	if name != "" {
		parts = append(parts, name)
	}
	if description != "" {
		parts = append(parts, description)
	}
	parts = append(parts, keywords...)
	return strings.Join(parts, " ")
}

// Equal reports field identity between two entries. Used by cache
// round-trip verification and incremental rescans to detect no-ops.
func (e *Entry) Equal(other *Entry) bool {
	if e == nil || other == nil {
		return e == other
	}
	if e.ID != other.ID || e.Name != other.Name || e.Description != other.Description ||
		e.Icon != other.Icon || e.SourcePath != other.SourcePath ||
		!e.ModTime.Equal(other.ModTime) || e.Searchable != other.Searchable {
		return false
	}
	if len(e.Categories) != len(other.Categories) || len(e.Keywords) != len(other.Keywords) ||
		len(e.Actions) != len(other.Actions) {
		return false
	}
	for i := range e.Categories {
		if e.Categories[i] != other.Categories[i] {
			return false
		}
	}
	for i := range e.Keywords {
		if e.Keywords[i] != other.Keywords[i] {
			return false
		}
	}
	for i := range e.Actions {
		if e.Actions[i] != other.Actions[i] {
			return false
		}
	}
	return true
}
