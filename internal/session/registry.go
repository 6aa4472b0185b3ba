package session

import (
	"sync"
	"time"
)

// Key identifies a conversation by user and browser tab.
type Key struct {
	UserID    string
	SessionID string
}

func (k Key) String() string {
	return k.UserID + ":" + k.SessionID
}

// Registry owns the live sessions of a process.
type Registry struct {
	mu       sync.Mutex
	sessions map[Key]*Session
	limit    int
	window   int
}

// NewRegistry creates a registry whose sessions share limit and window.
func NewRegistry(limit, window int) *Registry {
	return &Registry{
		sessions: make(map[Key]*Session),
		limit:    limit,
		window:   window,
	}
}

// Get returns the session for key, creating it when missing. The second
// return value reports whether the session was created by this call.
func (r *Registry) Get(key Key) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[key]; ok {
		return s, false
	}
	s := New(r.limit, r.window)
	r.sessions[key] = s
	return s, true
}

// Lookup returns the session for key without creating one.
func (r *Registry) Lookup(key Key) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[key]
	return s, ok
}

// Drop forgets the session for key.
func (r *Registry) Drop(key Key) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, key)
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// EvictIdle removes sessions untouched for longer than idle and returns their keys.
func (r *Registry) EvictIdle(idle time.Duration, now time.Time) []Key {
	r.mu.Lock()
	defer r.mu.Unlock()

	var evicted []Key
	for key, s := range r.sessions {
		if now.Sub(s.LastActivity()) > idle {
			delete(r.sessions, key)
			evicted = append(evicted, key)
		}
	}
	return evicted
}
