package session

import (
	"sync"

	"github.com/lumen-launcher/lumen/internal/errors"
)

// DefaultMaxSessions bounds concurrent launcher windows per daemon.
const DefaultMaxSessions = 32

// Manager tracks the live sessions of one daemon. Safe for concurrent
// use.
type Manager struct {
	mu          sync.RWMutex
	sessions    map[string]*Session
	maxSessions int
}

// NewManager creates a Manager. maxSessions <= 0 applies the default.
func NewManager(maxSessions int) *Manager {
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}
	return &Manager{
		sessions:    make(map[string]*Session),
		maxSessions: maxSessions,
	}
}

// GetOrCreate returns the session with the given ID, creating it if
// needed. Creation fails once the session cap is reached.
func (m *Manager) GetOrCreate(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[id]; ok {
		return s, nil
	}
	if len(m.sessions) >= m.maxSessions {
		return nil, errors.New(errors.ErrCodeInternal, "session limit reached", nil).
			WithDetail("session", id)
	}

	s := New(id)
	m.sessions[id] = s
	return s, nil
}

// Get returns an existing session.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Remove drops a session, typically when its window closes.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
