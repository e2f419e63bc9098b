package db

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// SessionExpirer clears session tokens that have not been used since cutoff.
type SessionExpirer interface {
	ExpireSessions(ctx context.Context, cutoff time.Time) (int64, error)
}

// StartSessionSweeper expires idle sessions every interval until ctx is done.
// A session is idle once its account has not been touched for ttl.
func StartSessionSweeper(
	ctx context.Context,
	store SessionExpirer,
	interval time.Duration,
	ttl time.Duration,
	log *zap.Logger,
) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := store.ExpireSessions(ctx, time.Now().Add(-ttl))
				if err != nil {
					log.Error("failed to expire sessions", zap.Error(err))
					continue
				}
				if n > 0 {
					log.Info("expired idle sessions", zap.Int64("count", n))
				}
			}
		}
	}()
}
