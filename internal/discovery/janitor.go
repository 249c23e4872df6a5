package discovery

import (
	"context"
	"log/slog"
	"time"

	"github.com/dstarenko/ideascope/internal/store"
)

// StartJanitor launches the background worker that skips active sessions
// whose last update is older than ttl. Abandoned conversations would
// otherwise stay active forever and keep accepting turns.
func StartJanitor(ctx context.Context, repo store.Repository, ttl, interval time.Duration) {
	if ttl <= 0 {
		slog.Info("Session janitor disabled (TTL is 0)")
		return
	}
	if interval <= 0 {
		interval = 10 * time.Minute
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		slog.Info("Session janitor started", "ttl", ttl, "interval", interval)

		for {
			select {
			case <-ctx.Done():
				slog.Info("Session janitor stopped")
				return
			case <-ticker.C:
				n, err := repo.SkipStaleActiveSessions(ctx, ttl)
				if err != nil {
					slog.Error("Session janitor sweep failed", "error", err)
					continue
				}
				if n > 0 {
					slog.Info("Skipped stale discovery sessions", "count", n)
				}
			}
		}
	}()
}
