package twitterstream

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// rateLimiter tracks inbound tweet rates with atomic counters reset
// every interval. allow() never causes a drop: exceeding the limit only
// produces a warning, since dropping a tweet would silently leave it
// out of its groups' buffers downstream.
type rateLimiter struct {
	count    atomic.Int64
	over     atomic.Int64
	limit    int64
	interval time.Duration
	logger   *slog.Logger
}

func newRateLimiter(limit int64, interval time.Duration, logger *slog.Logger) *rateLimiter {
	return &rateLimiter{limit: limit, interval: interval, logger: logger}
}

func (r *rateLimiter) run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			received := r.count.Swap(0)
			over := r.over.Swap(0)
			if over > 0 {
				r.logger.Warn("twitterstream: ingest exceeded configured rate",
					"received", received, "over_limit", over, "interval", r.interval.String(), "limit", r.limit)
			}
		}
	}
}

func (r *rateLimiter) allow() bool {
	n := r.count.Add(1)
	if n > r.limit {
		r.over.Add(1)
		return false
	}
	return true
}
