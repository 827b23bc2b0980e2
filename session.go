package stencilview

import "sync"

// SessionStore keeps per-session viewer state for the HTTP fallback path
type SessionStore interface {
	Get(sessionID string) *Viewer
	Set(sessionID string, v *Viewer)
	Delete(sessionID string)
}

// MemorySessionStore is a simple in-memory session store
type MemorySessionStore struct {
	sessions map[string]*Viewer
	mu       sync.RWMutex
}

// NewMemorySessionStore creates a new in-memory session store
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]*Viewer),
	}
}

// Get retrieves a session's viewer
func (s *MemorySessionStore) Get(sessionID string) *Viewer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[sessionID]
}

// Set stores a session's viewer
func (s *MemorySessionStore) Set(sessionID string, v *Viewer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = v
}

// Delete removes a session
func (s *MemorySessionStore) Delete(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
}
