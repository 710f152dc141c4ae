package realtime

import (
	"sync"

	"auction-service/internal/util"
)

// Session is one connected client's event stream. Events are dropped when
// the buffer is full rather than blocking the publisher.
type Session struct {
	UserID string
	Events chan Envelope
}

// Registry maps user ids to their single live session. A user reconnecting
// replaces the previous session: the newest connection wins and the
// superseded one is closed.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry creates an empty session registry
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Add registers a session for a user, closing any previous session for the
// same user.
func (r *Registry) Add(userID string) *Session {
	s := &Session{
		UserID: userID,
		Events: make(chan Envelope, 32),
	}

	r.mu.Lock()
	if prev, ok := r.sessions[userID]; ok {
		close(prev.Events)
	}
	r.sessions[userID] = s
	n := len(r.sessions)
	r.mu.Unlock()

	util.SessionsConnected.Set(float64(n))
	return s
}

// Remove unregisters a session. The identity check keeps a slow disconnect
// from tearing down a newer session for the same user.
func (r *Registry) Remove(s *Session) {
	r.mu.Lock()
	if cur, ok := r.sessions[s.UserID]; ok && cur == s {
		delete(r.sessions, s.UserID)
		close(cur.Events)
	}
	n := len(r.sessions)
	r.mu.Unlock()

	util.SessionsConnected.Set(float64(n))
}

// Lookup returns the live session for a user, if any
func (r *Registry) Lookup(userID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[userID]
	return s, ok
}

// Send delivers one envelope to a session without blocking. It reports
// false when the session has been superseded or removed, or when the
// session's buffer is full. Channels are only closed under the write lock,
// so a send under the read lock to a still-registered session cannot hit a
// closed channel.
func (r *Registry) Send(s *Session, env Envelope) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if cur, ok := r.sessions[s.UserID]; !ok || cur != s {
		return false
	}
	select {
	case s.Events <- env:
		return true
	default:
		return false
	}
}

// Snapshot returns all live sessions
func (r *Registry) Snapshot() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}
