// Package registry tracks which logical user owns which live connection.
// It is the one place identity is resolved: every state-mutating inbound
// event goes through Resolve before touching lobby or room state, and the
// disconnect cascade in the gateway is keyed off the session found here.
package registry

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("unknown connection")

// Session is the per-connection state. UserName and RoomID are written only
// by the owning connection's gateway goroutine, so they need no lock of
// their own; the registry lock covers the connection map.
type Session struct {
	UserID   string
	UserName string // empty until enter_lobby succeeds
	RoomID   string // empty while in the lobby
}

type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func New() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Register creates a session with a fresh user identity for a new
// connection and returns it.
func (r *Registry) Register(connID string) *Session {
	s := &Session{UserID: uuid.NewString()}
	r.mu.Lock()
	r.sessions[connID] = s
	r.mu.Unlock()
	return s
}

func (r *Registry) Unregister(connID string) {
	r.mu.Lock()
	delete(r.sessions, connID)
	r.mu.Unlock()
}

func (r *Registry) Resolve(connID string) (*Session, error) {
	r.mu.RLock()
	s, ok := r.sessions[connID]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
