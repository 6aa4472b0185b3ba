// Package session holds per-conversation chat state.
package session

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/ashureev/lovecleanup/internal/domain"
)

const (
	// DefaultWindow is the number of history entries kept.
	DefaultWindow = 20
	// DefaultRequestLimit is the number of turns allowed before a reset.
	DefaultRequestLimit = 50
)

// Session is one conversation: a bounded history window, a request
// counter and an optional handle to a remote conversation thread.
type Session struct {
	mu           sync.Mutex
	history      []domain.StoredMessage
	window       int
	limit        int
	requestCount int
	threadHandle string
	createdAt    time.Time
	lastActivity time.Time

	turn chan struct{}
}

// New creates a session. Non-positive values fall back to the defaults.
func New(limit, window int) *Session {
	if limit <= 0 {
		limit = DefaultRequestLimit
	}
	if window <= 0 {
		window = DefaultWindow
	}
	now := time.Now()
	return &Session{
		window:       window,
		limit:        limit,
		createdAt:    now,
		lastActivity: now,
		turn:         make(chan struct{}, 1),
	}
}

// Append adds an entry and evicts the oldest ones beyond the window.
func (s *Session) Append(role domain.Role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = append(s.history, domain.StoredMessage{Role: string(role), Content: content})
	if over := len(s.history) - s.window; over > 0 {
		s.history = slices.Clone(s.history[over:])
	}
	s.lastActivity = time.Now()
}

// Window returns a copy of the retained history, oldest first.
func (s *Session) Window() []domain.StoredMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.history)
}

// Len returns the number of retained entries.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.history)
}

// Reset clears history and counters and drops the thread handle.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = nil
	s.requestCount = 0
	s.threadHandle = ""
	s.lastActivity = time.Now()
}

// TryConsume counts one request if the budget allows it.
func (s *Session) TryConsume() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.requestCount >= s.limit {
		return false
	}
	s.requestCount++
	s.lastActivity = time.Now()
	return true
}

// RequestsRemaining returns the unused request budget.
func (s *Session) RequestsRemaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.limit - s.requestCount
}

// RequestCount returns the number of counted requests since the last reset.
func (s *Session) RequestCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requestCount
}

// Limit returns the request budget.
func (s *Session) Limit() int {
	return s.limit
}

// WindowSize returns the configured history bound.
func (s *Session) WindowSize() int {
	return s.window
}

// ThreadHandle returns the remote thread id, or "" when none is bound.
func (s *Session) ThreadHandle() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.threadHandle
}

// SetThreadHandle binds a remote thread id.
func (s *Session) SetThreadHandle(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threadHandle = id
}

// LastActivity returns when the session was last touched.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// Acquire serializes turns on the session. The returned func releases it.
func (s *Session) Acquire(ctx context.Context) (func(), error) {
	select {
	case s.turn <- struct{}{}:
		return func() { <-s.turn }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Snapshot is the persistable state of a session.
type Snapshot struct {
	History      []domain.StoredMessage
	RequestCount int
	ThreadHandle string
	CreatedAt    time.Time
}

// Snapshot copies the session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		History:      slices.Clone(s.history),
		RequestCount: s.requestCount,
		ThreadHandle: s.threadHandle,
		CreatedAt:    s.createdAt,
	}
}

// Restore replaces the session state, applying the window and limit bounds.
func (s *Session) Restore(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := snap.History
	if over := len(history) - s.window; over > 0 {
		history = history[over:]
	}
	s.history = slices.Clone(history)
	s.requestCount = min(max(snap.RequestCount, 0), s.limit)
	s.threadHandle = snap.ThreadHandle
	if !snap.CreatedAt.IsZero() {
		s.createdAt = snap.CreatedAt
	}
}
