// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/ashureev/lovecleanup/internal/domain"
)

// Repository defines the interface for persisting users, chat sessions and
// cleanup history.
type Repository interface {
	// GetUser retrieves a user by their user ID. It returns nil, nil when absent.
	GetUser(ctx context.Context, userID string) (*domain.User, error)

	// UpsertUser creates or updates a user record.
	UpsertUser(ctx context.Context, user *domain.User) error

	// UpdateLastSeen updates the last_seen_at timestamp for a user.
	UpdateLastSeen(ctx context.Context, userID string, lastSeen time.Time) error

	// GetChatSession retrieves the mirrored conversation for a user tab.
	GetChatSession(ctx context.Context, userID, sessionID string) (*domain.ChatSessionRecord, error)

	// UpsertChatSession creates or updates a mirrored conversation.
	UpsertChatSession(ctx context.Context, rec *domain.ChatSessionRecord) error

	// DeleteChatSession removes a mirrored conversation.
	DeleteChatSession(ctx context.Context, userID, sessionID string) error

	// CleanupExpiredChatSessions removes conversations idle for longer than ttl.
	CleanupExpiredChatSessions(ctx context.Context, ttl time.Duration) (int64, error)

	// SaveCleanupRun records a committed cleanup.
	SaveCleanupRun(ctx context.Context, run *domain.CleanupRun) error

	// ListCleanupRuns returns the newest runs for a user first.
	ListCleanupRuns(ctx context.Context, userID string, limit int) ([]*domain.CleanupRun, error)

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
