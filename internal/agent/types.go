// Package agent runs Luna chat turns and streams them to clients.
package agent

import (
	"time"

	"github.com/ashureev/lovecleanup/internal/domain"
)

// ChatRequest represents a chat request to the agent.
type ChatRequest struct {
	Message   string             `json:"message"`
	Context   domain.ChatContext `json:"context"`
	UserID    string             `json:"-"`
	SessionID string             `json:"-"`
}

// ChunkKind tells a partial reveal apart from the finished reply.
type ChunkKind string

const (
	// ChunkPartial carries a growing prefix of the reply.
	ChunkPartial ChunkKind = "chunk"
	// ChunkFinal carries the finished reply and its metadata.
	ChunkFinal ChunkKind = "message"
)

// ChatChunk is one step of a streamed reply.
type ChatChunk struct {
	Kind     ChunkKind          `json:"kind"`
	Text     string             `json:"text"`
	Response *domain.AIResponse `json:"response,omitempty"`
}

// EventType categorizes events pushed on the per-session event stream.
type EventType string

const (
	// EventCleanupProgress reports per-category progress of a running cleanup.
	EventCleanupProgress EventType = "cleanup_progress"
	// EventCleanupDone reports the results of a finished cleanup.
	EventCleanupDone EventType = "cleanup_done"
	// EventConfirmation reports a confirmation stage change.
	EventConfirmation EventType = "confirmation"
)

// Event is a server-initiated message for one user tab.
type Event struct {
	Type      EventType `json:"type"`
	UserID    string    `json:"-"`
	SessionID string    `json:"-"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

// HistoryResponse is returned by the history endpoint.
type HistoryResponse struct {
	SessionID string                 `json:"session_id"`
	Stage     string                 `json:"stage"`
	Messages  []domain.StoredMessage `json:"messages"`
}
