package session

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/examforge/examforge/internal/model"
)

// Manager owns the live session controllers by session ID. Sessions live
// only in memory: they are discarded when the user leaves the results view
// or starts a retake, never persisted.
type Manager struct {
	coll Collaborators

	mu       sync.RWMutex
	sessions map[string]*Controller
}

// NewManager creates an empty session registry.
func NewManager(coll Collaborators) *Manager {
	return &Manager{
		coll:     coll,
		sessions: make(map[string]*Controller),
	}
}

// Create builds a new session over an already-generated question set and
// registers it under a fresh ID.
func (m *Manager) Create(cfg model.SessionConfig, raw []json.RawMessage) *Controller {
	id := uuid.NewString()
	c := New(id, cfg, raw, m.coll)

	m.mu.Lock()
	m.sessions[id] = c
	m.mu.Unlock()
	return c
}

// Get returns the live session with the given ID.
func (m *Manager) Get(id string) (*Controller, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.sessions[id]
	return c, ok
}

// Delete abandons and discards a session. In-flight collaborator results
// are dropped by the controller.
func (m *Manager) Delete(id string) {
	m.mu.Lock()
	c, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	if ok {
		c.Close()
		slog.Info("session discarded", "session_id", id)
	}
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// CloseAll discards every live session, used at server shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Controller)
	m.mu.Unlock()

	for _, c := range sessions {
		c.Close()
	}
}
