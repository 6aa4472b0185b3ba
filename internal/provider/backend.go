// Package provider dispatches a chat turn across remote text generators in
// priority order and falls back to the local responder when all of them fail.
package provider

import (
	"context"

	"github.com/ashureev/lovecleanup/internal/domain"
)

// Thread stores the conversation handle used by thread-based backends.
type Thread interface {
	ThreadHandle() string
	SetThreadHandle(id string)
}

// Request is everything a backend may need for one turn.
type Request struct {
	// System is the persona prompt with the current context appended.
	System string
	// Prompt is the user message prefixed with name and stage hints.
	Prompt string
	// Message is the raw user message.
	Message string
	// History holds the most recent entries before this turn.
	History []domain.StoredMessage
	// Thread is nil when the caller keeps no thread state.
	Thread Thread
}

// Backend produces reply text for a request.
type Backend interface {
	Name() string
	Generate(ctx context.Context, req Request) (string, error)
}

// Initializer is implemented by backends that need setup before use.
type Initializer interface {
	Init(ctx context.Context) error
}

// Readiness is the setup state of a backend inside a chain.
type Readiness int

const (
	Uninitialized Readiness = iota
	Ready
	Failed
)

func (r Readiness) String() string {
	switch r {
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return "uninitialized"
	}
}

// MarshalText renders the readiness by name.
func (r Readiness) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}
