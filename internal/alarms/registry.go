package alarms

import (
	"sync"

	"github.com/google/uuid"
)

// Registry tracks the live connection per user. A user has at most one
// connection; registering a new one returns the replaced connection so the
// caller can close it.
type Registry struct {
	mu    sync.RWMutex
	conns map[uuid.UUID]*Connection
}

// NewRegistry builds an empty connection registry.
func NewRegistry() *Registry {
	return &Registry{conns: make(map[uuid.UUID]*Connection)}
}

// Add registers the connection under its user, returning the connection it
// replaced, if any.
func (r *Registry) Add(conn *Connection) *Connection {
	if conn == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	previous := r.conns[conn.UserID()]
	r.conns[conn.UserID()] = conn
	if previous == conn {
		return nil
	}
	return previous
}

// Get returns the live connection for the user, or nil.
func (r *Registry) Get(userID uuid.UUID) *Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.conns[userID]
}

// Remove drops the connection only if it is still the registered one. A stale
// connection that was already replaced leaves the current entry untouched.
func (r *Registry) Remove(conn *Connection) bool {
	if conn == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.conns[conn.UserID()]
	if !ok || current.ID() != conn.ID() {
		return false
	}
	delete(r.conns, conn.UserID())
	return true
}

// Len reports the number of registered connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
