package confirm

import (
	"errors"
	"sync"
	"time"

	"github.com/ashureev/lovecleanup/internal/domain"
)

// ErrNotFound is returned when a session does not exist for the owner.
var ErrNotFound = errors.New("confirmation not found")

type owned struct {
	owner   string
	session *Session
}

// Registry holds pending confirmation sessions per owner.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]owned
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]owned)}
}

// Create starts a session for owner.
func (r *Registry) Create(owner string, targets []domain.CleanupTarget) *Session {
	s := New(targets)
	r.mu.Lock()
	r.sessions[s.ID()] = owned{owner: owner, session: s}
	r.mu.Unlock()
	return s
}

// Get returns the session with id if it belongs to owner.
func (r *Registry) Get(owner, id string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.sessions[id]
	if !ok || o.owner != owner {
		return nil, ErrNotFound
	}
	return o.session, nil
}

// Discard removes a session.
func (r *Registry) Discard(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

// Prune drops sessions older than maxAge and returns how many were removed.
func (r *Registry) Prune(maxAge time.Duration, now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, o := range r.sessions {
		if now.Sub(o.session.createdAt) > maxAge {
			delete(r.sessions, id)
			removed++
		}
	}
	return removed
}
