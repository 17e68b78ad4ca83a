// Package session holds per-window launcher state: the current query,
// its round token, the merged results, and the selection cursor. The UI
// pulls an immutable View each frame; pushes go through BeginRound,
// MoveSelection, and the coordinator's commit path. A view never shows
// a partially merged result set.
package session

import (
	"sync"

	"github.com/lumen-launcher/lumen/internal/entry"
)

// Status is the query round state machine.
type Status string

const (
	// StatusIdle means no query has been issued yet.
	StatusIdle Status = "idle"
	// StatusPending means a round is in flight for the current token.
	StatusPending Status = "pending"
	// StatusCompleted means the current token's results are committed.
	StatusCompleted Status = "completed"
	// StatusCancelled means the current round was abandoned.
	StatusCancelled Status = "cancelled"
)

// Result is one merged candidate as shown to the UI.
type Result struct {
	App       string       `json:"app"`
	Entry     *entry.Entry `json:"entry"`
	Score     float64      `json:"score"`
	Positions []int        `json:"positions,omitempty"`
}

// View is the immutable per-frame snapshot the UI renders from.
type View struct {
	Query       string   `json:"query"`
	Token       uint64   `json:"token"`
	Results     []Result `json:"results"`
	Cursor      int      `json:"cursor"`
	Status      Status   `json:"status"`
	LaunchError string   `json:"launch_error,omitempty"`
}

// Session is the state of one launcher window. Safe for concurrent use.
type Session struct {
	id string

	mu        sync.RWMutex
	query     string
	token     uint64
	results   []Result
	cursor    int
	status    Status
	launchErr string
}

// New creates an idle session.
func New(id string) *Session {
	return &Session{id: id, status: StatusIdle}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// View returns the current frame state. The results slice is shared but
// never mutated after commit; callers treat it as read-only.
func (s *Session) View() View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return View{
		Query:       s.query,
		Token:       s.token,
		Results:     s.results,
		Cursor:      s.cursor,
		Status:      s.status,
		LaunchError: s.launchErr,
	}
}

// BeginRound records a new query round. Tokens are monotonic: a round
// whose token does not exceed the current one arrived out of order and
// is rejected, so a slow older request can never displace a newer
// round's state. The previous round's results stay visible until the
// new round commits; its token can no longer commit anything.
func (s *Session) BeginRound(query string, token uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if token <= s.token {
		return false
	}
	s.query = query
	s.token = token
	s.status = StatusPending
	s.launchErr = ""
	return true
}

// Commit installs the round's merged results if its token is still
// current. A superseded token commits nothing and reports false.
func (s *Session) Commit(token uint64, results []Result) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if token != s.token {
		return false
	}
	s.results = results
	s.status = StatusCompleted
	if s.cursor >= len(results) {
		s.cursor = 0
	}
	return true
}

// CancelRound marks the round abandoned if its token is still current.
func (s *Session) CancelRound(token uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if token == s.token && s.status == StatusPending {
		s.status = StatusCancelled
	}
}

// MoveSelection moves the cursor by delta, clamped to the result list.
func (s *Session) MoveSelection(delta int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.results) == 0 {
		s.cursor = 0
		return
	}
	s.cursor += delta
	if s.cursor < 0 {
		s.cursor = 0
	}
	if s.cursor >= len(s.results) {
		s.cursor = len(s.results) - 1
	}
}

// Selected returns the result under the cursor.
func (s *Session) Selected() (Result, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.results) == 0 {
		return Result{}, false
	}
	return s.results[s.cursor], true
}

// ResultByEntryID finds a committed result by its entry ID.
func (s *Session) ResultByEntryID(id string) (Result, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.results {
		if r.Entry != nil && r.Entry.ID == id {
			return r, true
		}
	}
	return Result{}, false
}

// SetLaunchError records a visible, recoverable launch failure.
func (s *Session) SetLaunchError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.launchErr = msg
}

// Token returns the current round token.
func (s *Session) Token() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}
