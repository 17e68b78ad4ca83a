package app

import (
	"context"
	"strings"

	"github.com/lumen-launcher/lumen/internal/entry"
	"github.com/lumen-launcher/lumen/internal/errors"
	"github.com/lumen-launcher/lumen/internal/launch"
)

// commandPrefix marks a query as a raw command line.
const commandPrefix = ">"

// commandScore is the single candidate's app-local score; the
// coordinator's normalization maps it to the ceiling regardless.
const commandScore = 100.0

// Commands turns a ">"-prefixed query into a run-this-command candidate.
type Commands struct {
	executor *launch.Executor
}

// NewCommands creates the commands app.
func NewCommands(executor *launch.Executor) *Commands {
	return &Commands{executor: executor}
}

// ID implements App.
func (c *Commands) ID() string { return "commands" }

// Search offers one synthetic candidate for a ">"-prefixed query and
// nothing otherwise.
func (c *Commands) Search(_ context.Context, query string) ([]Candidate, error) {
	if !strings.HasPrefix(query, commandPrefix) {
		return nil, nil
	}
	line := strings.TrimSpace(strings.TrimPrefix(query, commandPrefix))
	if line == "" {
		return nil, nil
	}

	e := &entry.Entry{
		ID:          "cmd:" + entry.IDForPath(line),
		Name:        line,
		Description: "Run command",
		Actions:     []entry.Action{{ID: entry.DefaultActionID, Label: "Run", Exec: line}},
		Searchable:  line,
	}
	return []Candidate{{Entry: e, Score: commandScore}}, nil
}

// Activate runs the command line through the shell, detached.
func (c *Commands) Activate(e *entry.Entry, actionID string) (launch.Handle, error) {
	act, ok := e.Action(actionID)
	if !ok {
		return launch.Handle{}, errors.New(errors.ErrCodeUnknownAction, "entry has no such action", nil).
			WithDetail("action", actionID)
	}
	return c.executor.Spawn([]string{"sh", "-c", act.Exec})
}
