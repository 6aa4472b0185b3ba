package domain

import (
	"time"
)

// ChatSessionRecord is the persisted mirror of a conversation session.
type ChatSessionRecord struct {
	UserID       string
	SessionID    string
	RequestCount int
	ThreadHandle string
	MessagesJSON string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
