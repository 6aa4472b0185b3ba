package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ashureev/lovecleanup/internal/domain"
)

func newTestStore(t *testing.T) Repository {
	t.Helper()
	repo, err := NewSQLite(filepath.Join(t.TempDir(), "nested", "test.db"))
	if err != nil {
		t.Fatalf("NewSQLite() error = %v", err)
	}
	t.Cleanup(func() {
		if err := repo.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
	return repo
}

func TestUserRoundTrip(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	got, err := repo.GetUser(ctx, "anon_missing")
	if err != nil || got != nil {
		t.Fatalf("GetUser(missing) = %v, %v; want nil, nil", got, err)
	}

	now := time.Unix(1_700_000_000, 0)
	user := &domain.User{UserID: "anon_1", Username: "anon-1", LastSeenAt: now, CreatedAt: now, UpdatedAt: now}
	if err := repo.UpsertUser(ctx, user); err != nil {
		t.Fatalf("UpsertUser() error = %v", err)
	}

	later := now.Add(time.Hour)
	if err := repo.UpdateLastSeen(ctx, "anon_1", later); err != nil {
		t.Fatalf("UpdateLastSeen() error = %v", err)
	}

	got, err = repo.GetUser(ctx, "anon_1")
	if err != nil {
		t.Fatalf("GetUser() error = %v", err)
	}
	if got.Username != "anon-1" || !got.LastSeenAt.Equal(later) {
		t.Fatalf("GetUser() = %+v, want username anon-1 last seen %v", got, later)
	}
}

func TestChatSessionMirror(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	rec := &domain.ChatSessionRecord{
		UserID:       "anon_1",
		SessionID:    "tab-1",
		RequestCount: 3,
		ThreadHandle: "thread_abc",
		MessagesJSON: `[{"role":"user","content":"oi"}]`,
	}
	if err := repo.UpsertChatSession(ctx, rec); err != nil {
		t.Fatalf("UpsertChatSession() error = %v", err)
	}

	rec.RequestCount = 4
	rec.ThreadHandle = ""
	if err := repo.UpsertChatSession(ctx, rec); err != nil {
		t.Fatalf("UpsertChatSession(update) error = %v", err)
	}

	got, err := repo.GetChatSession(ctx, "anon_1", "tab-1")
	if err != nil {
		t.Fatalf("GetChatSession() error = %v", err)
	}
	if got == nil || got.RequestCount != 4 || got.ThreadHandle != "" || got.MessagesJSON != rec.MessagesJSON {
		t.Fatalf("GetChatSession() = %+v", got)
	}

	other, err := repo.GetChatSession(ctx, "anon_1", "tab-2")
	if err != nil || other != nil {
		t.Fatalf("GetChatSession(other tab) = %v, %v; want nil, nil", other, err)
	}

	if err := repo.DeleteChatSession(ctx, "anon_1", "tab-1"); err != nil {
		t.Fatalf("DeleteChatSession() error = %v", err)
	}
	got, err = repo.GetChatSession(ctx, "anon_1", "tab-1")
	if err != nil || got != nil {
		t.Fatalf("GetChatSession(after delete) = %v, %v", got, err)
	}
}

func TestCleanupExpiredChatSessions(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	if err := repo.UpsertChatSession(ctx, &domain.ChatSessionRecord{UserID: "u", SessionID: "s"}); err != nil {
		t.Fatalf("UpsertChatSession() error = %v", err)
	}

	n, err := repo.CleanupExpiredChatSessions(ctx, time.Hour)
	if err != nil || n != 0 {
		t.Fatalf("CleanupExpiredChatSessions(1h) = %d, %v; want 0", n, err)
	}
	n, err = repo.CleanupExpiredChatSessions(ctx, -time.Minute)
	if err != nil || n != 1 {
		t.Fatalf("CleanupExpiredChatSessions(-1m) = %d, %v; want 1", n, err)
	}
}

func TestCleanupRuns(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	base := time.Unix(1_700_000_000, 0)
	for i, id := range []string{"run-1", "run-2"} {
		run := &domain.CleanupRun{
			ID:             id,
			UserID:         "anon_1",
			ConfirmationID: "conf-" + id,
			Results: []domain.CleanupResult{
				{Category: domain.CategoryMessages, Success: true, ItemsProcessed: 127, Errors: []string{}},
				{Category: domain.CategoryPhotos, Success: false, Errors: []string{"context canceled"}},
			},
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := repo.SaveCleanupRun(ctx, run); err != nil {
			t.Fatalf("SaveCleanupRun(%s) error = %v", id, err)
		}
	}

	runs, err := repo.ListCleanupRuns(ctx, "anon_1", 10)
	if err != nil {
		t.Fatalf("ListCleanupRuns() error = %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "run-2" {
		t.Fatalf("ListCleanupRuns() = %+v, want run-2 first", runs)
	}
	if runs[0].TotalProcessed() != 127 || len(runs[0].Results[1].Errors) != 1 {
		t.Fatalf("results not preserved: %+v", runs[0].Results)
	}

	none, err := repo.ListCleanupRuns(ctx, "anon_2", 10)
	if err != nil || len(none) != 0 {
		t.Fatalf("ListCleanupRuns(other user) = %v, %v", none, err)
	}
}
