package web

import (
	"fmt"
	"sync"
)

// Registry is the in-memory session table mapping session IDs to live
// SSE transports. All methods are safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*SSETransport
}

// NewRegistry creates an empty session registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*SSETransport)}
}

// Add registers a session. A duplicate ID is rejected rather than
// silently replacing a live session.
func (r *Registry) Add(t *SSETransport) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := t.SessionID()
	if _, exists := r.sessions[id]; exists {
		return fmt.Errorf("web: session %s already registered", id)
	}
	r.sessions[id] = t
	return nil
}

// Get looks up a session by ID.
func (r *Registry) Get(id string) (*SSETransport, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.sessions[id]
	return t, ok
}

// Remove drops a session. Removing an absent ID is a no-op.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, id)
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.sessions)
}
