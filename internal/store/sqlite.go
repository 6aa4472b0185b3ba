package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ashureev/lovecleanup/internal/domain"
	"github.com/ashureev/lovecleanup/internal/shared"
)

const (
	retryAttempts  = 3
	retryBaseDelay = 100 * time.Millisecond
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db            *sql.DB
	chatSessionMu sync.Mutex // serializes chat session writes to avoid SQLITE_BUSY
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS users (
		user_id TEXT PRIMARY KEY,
		username TEXT NOT NULL,
		last_seen_at INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS chat_sessions (
		user_id TEXT NOT NULL,
		session_id TEXT NOT NULL,
		request_count INTEGER NOT NULL DEFAULT 0,
		thread_handle TEXT,
		messages_json TEXT NOT NULL DEFAULT '[]',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (user_id, session_id)
	);
	CREATE INDEX IF NOT EXISTS idx_chat_sessions_updated ON chat_sessions(updated_at);

	CREATE TABLE IF NOT EXISTS cleanup_runs (
		run_id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		confirmation_id TEXT NOT NULL,
		results_json TEXT NOT NULL,
		items_processed INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_cleanup_runs_user ON cleanup_runs(user_id, created_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// GetUser retrieves a user by their user ID.
func (s *SQLiteStore) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	query := `
		SELECT user_id, username, last_seen_at, created_at, updated_at
		FROM users WHERE user_id = ?`

	row := s.db.QueryRowContext(ctx, query, userID)

	var user domain.User
	var lastSeen, createdAt, updatedAt int64

	err := row.Scan(&user.UserID, &user.Username, &lastSeen, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan user row: %w", err)
	}

	user.LastSeenAt = time.Unix(lastSeen, 0)
	user.CreatedAt = time.Unix(createdAt, 0)
	user.UpdatedAt = time.Unix(updatedAt, 0)

	return &user, nil
}

// UpsertUser creates or updates a user record.
func (s *SQLiteStore) UpsertUser(ctx context.Context, user *domain.User) error {
	query := `
	INSERT INTO users (user_id, username, last_seen_at, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(user_id) DO UPDATE SET
		username = excluded.username,
		last_seen_at = excluded.last_seen_at,
		updated_at = excluded.updated_at`

	err := shared.RetryOnConflict(ctx, "upsert_user", retryAttempts, retryBaseDelay, func() error {
		_, err := s.db.ExecContext(ctx, query,
			user.UserID, user.Username, user.LastSeenAt.Unix(),
			user.CreatedAt.Unix(), user.UpdatedAt.Unix(),
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

// UpdateLastSeen updates the last_seen_at timestamp for a user.
func (s *SQLiteStore) UpdateLastSeen(ctx context.Context, userID string, lastSeen time.Time) error {
	query := `UPDATE users SET last_seen_at = ?, updated_at = ? WHERE user_id = ?`
	result, err := s.db.ExecContext(ctx, query, lastSeen.Unix(), time.Now().Unix(), userID)
	if err != nil {
		return fmt.Errorf("update last_seen: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		slog.Warn("UpdateLastSeen affected 0 rows", "user_id", userID)
	}

	return nil
}

// GetChatSession retrieves the mirrored conversation for a user tab.
func (s *SQLiteStore) GetChatSession(ctx context.Context, userID, sessionID string) (*domain.ChatSessionRecord, error) {
	query := `
		SELECT user_id, session_id, request_count, thread_handle, messages_json,
		       created_at, updated_at
		FROM chat_sessions WHERE user_id = ? AND session_id = ?`

	row := s.db.QueryRowContext(ctx, query, userID, sessionID)

	var rec domain.ChatSessionRecord
	var threadHandle sql.NullString
	var createdAt, updatedAt int64

	err := row.Scan(
		&rec.UserID, &rec.SessionID, &rec.RequestCount, &threadHandle,
		&rec.MessagesJSON, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan chat session: %w", err)
	}

	rec.ThreadHandle = threadHandle.String
	rec.CreatedAt = time.Unix(createdAt, 0)
	rec.UpdatedAt = time.Unix(updatedAt, 0)
	return &rec, nil
}

// UpsertChatSession creates or updates a mirrored conversation.
func (s *SQLiteStore) UpsertChatSession(ctx context.Context, rec *domain.ChatSessionRecord) error {
	s.chatSessionMu.Lock()
	defer s.chatSessionMu.Unlock()

	query := `
		INSERT INTO chat_sessions (
			user_id, session_id, request_count, thread_handle, messages_json,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, session_id) DO UPDATE SET
			request_count = excluded.request_count,
			thread_handle = excluded.thread_handle,
			messages_json = excluded.messages_json,
			updated_at = excluded.updated_at`

	var threadHandle any
	if rec.ThreadHandle != "" {
		threadHandle = rec.ThreadHandle
	}
	messages := rec.MessagesJSON
	if messages == "" {
		messages = "[]"
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	err := shared.RetryOnConflict(ctx, "upsert_chat_session", retryAttempts, retryBaseDelay, func() error {
		_, err := s.db.ExecContext(ctx, query,
			rec.UserID, rec.SessionID, rec.RequestCount, threadHandle, messages,
			createdAt.Unix(), time.Now().Unix(),
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("upsert chat session: %w", err)
	}
	return nil
}

// DeleteChatSession removes a mirrored conversation, retrying on SQLITE_BUSY.
func (s *SQLiteStore) DeleteChatSession(ctx context.Context, userID, sessionID string) error {
	err := shared.RetryOnConflict(ctx, "delete_chat_session", retryAttempts, retryBaseDelay, func() error {
		s.chatSessionMu.Lock()
		defer s.chatSessionMu.Unlock()
		_, err := s.db.ExecContext(ctx,
			`DELETE FROM chat_sessions WHERE user_id = ? AND session_id = ?`, userID, sessionID)
		return err
	})
	if err != nil {
		return fmt.Errorf("delete chat session for %s/%s: %w", userID, sessionID, err)
	}
	return nil
}

// CleanupExpiredChatSessions removes conversations idle for longer than ttl.
func (s *SQLiteStore) CleanupExpiredChatSessions(ctx context.Context, ttl time.Duration) (int64, error) {
	s.chatSessionMu.Lock()
	defer s.chatSessionMu.Unlock()

	threshold := time.Now().Add(-ttl).Unix()
	result, err := s.db.ExecContext(ctx, `DELETE FROM chat_sessions WHERE updated_at < ?`, threshold)
	if err != nil {
		return 0, fmt.Errorf("cleanup expired chat sessions: %w", err)
	}
	return result.RowsAffected()
}

// SaveCleanupRun records a committed cleanup.
func (s *SQLiteStore) SaveCleanupRun(ctx context.Context, run *domain.CleanupRun) error {
	results, err := json.Marshal(run.Results)
	if err != nil {
		return fmt.Errorf("encode cleanup results: %w", err)
	}
	createdAt := run.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	query := `
		INSERT INTO cleanup_runs (run_id, user_id, confirmation_id, results_json, items_processed, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	err = shared.RetryOnConflict(ctx, "save_cleanup_run", retryAttempts, retryBaseDelay, func() error {
		_, err := s.db.ExecContext(ctx, query,
			run.ID, run.UserID, run.ConfirmationID, string(results), run.TotalProcessed(), createdAt.Unix())
		return err
	})
	if err != nil {
		return fmt.Errorf("save cleanup run: %w", err)
	}
	return nil
}

// ListCleanupRuns returns the newest runs for a user first.
func (s *SQLiteStore) ListCleanupRuns(ctx context.Context, userID string, limit int) ([]*domain.CleanupRun, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
		SELECT run_id, user_id, confirmation_id, results_json, created_at
		FROM cleanup_runs WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query cleanup runs: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close cleanup run rows", "error", closeErr)
		}
	}()

	var runs []*domain.CleanupRun
	for rows.Next() {
		var run domain.CleanupRun
		var results string
		var createdAt int64
		if err := rows.Scan(&run.ID, &run.UserID, &run.ConfirmationID, &results, &createdAt); err != nil {
			return nil, fmt.Errorf("scan cleanup run: %w", err)
		}
		if err := json.Unmarshal([]byte(results), &run.Results); err != nil {
			return nil, fmt.Errorf("decode cleanup run %s: %w", run.ID, err)
		}
		run.CreatedAt = time.Unix(createdAt, 0)
		runs = append(runs, &run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cleanup runs: %w", err)
	}
	return runs, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
