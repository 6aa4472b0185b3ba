package agent

import (
	"context"
	"log/slog"
	"time"

	"github.com/ashureev/lovecleanup/internal/store"
)

const ttlWorkerInterval = 5 * time.Minute

// SweepCallback is called after every sweep, for example to prune other
// per-user state that shares the session TTL.
type SweepCallback func(now time.Time)

// StartTTLWorker runs a background goroutine that periodically evicts idle
// chat sessions from memory and deletes expired persisted conversations.
// A non-positive interval uses the default.
func StartTTLWorker(ctx context.Context, svc *Service, repo store.Repository, ttl, interval time.Duration, onSweep SweepCallback) {
	if interval <= 0 {
		interval = ttlWorkerInterval
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		slog.Info("TTL worker started", "interval", interval, "ttl", ttl)

		for {
			select {
			case now := <-ticker.C:
				sweepExpiredSessions(ctx, svc, repo, ttl, now)
				if onSweep != nil {
					onSweep(now)
				}
			case <-ctx.Done():
				slog.Info("TTL worker shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

func sweepExpiredSessions(ctx context.Context, svc *Service, repo store.Repository, ttl time.Duration, now time.Time) {
	evicted := svc.sessions.EvictIdle(ttl, now)
	for _, key := range evicted {
		svc.inflight.Cancel(key.String())
	}
	if len(evicted) > 0 {
		slog.Info("TTL worker evicted idle chat sessions", "count", len(evicted))
	}

	if repo == nil {
		return
	}
	deleted, err := repo.CleanupExpiredChatSessions(ctx, ttl)
	if err != nil {
		slog.Error("TTL worker failed to cleanup expired chat sessions", "error", err)
		return
	}
	if deleted > 0 {
		slog.Info("TTL worker cleaned up expired chat sessions", "count", deleted)
	}
}
