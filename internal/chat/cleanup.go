package chat

import (
	"context"
	"log/slog"
	"time"

	"github.com/tripcraft/tripcraft/internal/store"
)

const sweepInterval = 5 * time.Minute

// StartSessionSweeper runs a background goroutine that periodically removes
// chat sessions idle longer than ttl.
func StartSessionSweeper(ctx context.Context, repo store.Repository, ttl time.Duration) {
	ticker := time.NewTicker(sweepInterval)
	go func() {
		defer ticker.Stop()
		slog.Info("session sweeper started", "interval", sweepInterval, "ttl", ttl)

		for {
			select {
			case <-ticker.C:
				deleted, err := repo.CleanupStaleSessions(ctx, ttl)
				if err != nil {
					slog.Error("session sweeper failed", "error", err)
					continue
				}
				if deleted > 0 {
					slog.Info("session sweeper removed stale sessions", "count", deleted)
				}
			case <-ctx.Done():
				slog.Info("session sweeper shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}
