package server

import (
	"sync"

	"github.com/tessellate-ai/loom/agent"
)

// SessionRegistry is the server-owned map of active sessions, keyed by
// session id, with explicit creation and eviction. Sessions are never
// materialized as a side effect of a lookup.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*agent.Session
}

// NewSessionRegistry creates an empty registry.
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{sessions: make(map[string]*agent.Session)}
}

// Get returns the session for id, or false when none exists.
func (r *SessionRegistry) Get(id string) (*agent.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Create registers a new session for id. If one already exists it is
// returned unchanged, with created reporting false.
func (r *SessionRegistry) Create(id string) (s *agent.Session, created bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.sessions[id]; ok {
		return existing, false
	}
	s = agent.NewSession(id)
	r.sessions[s.ID] = s
	return s, true
}

// Evict removes the session for id, reporting whether one existed.
func (r *SessionRegistry) Evict(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return false
	}
	delete(r.sessions, id)
	return true
}

// Len reports the number of active sessions.
func (r *SessionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
