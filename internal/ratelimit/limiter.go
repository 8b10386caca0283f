// Package ratelimit gates outbound sends on a sliding hourly window.
package ratelimit

import (
	"context"
	"time"

	"github.com/ignite/ses-gateway/internal/pkg/logger"
)

// DefaultWindow is the trailing interval sends are counted over.
const DefaultWindow = time.Hour

// MessageCounter counts messages created after a given instant. The message
// store itself is the counter, so the limit survives restarts and is shared
// by every replica pointed at the same database.
type MessageCounter interface {
	CountCreatedSince(ctx context.Context, since time.Time) (int, error)
}

// Limiter enforces a best-effort sliding-window send limit. The window is
// measured backward from the moment of the check, not aligned to clock
// hours. Concurrent sends near the boundary may slip past by a few
// messages; the limit bounds volume, it is not a distributed lock.
type Limiter struct {
	counter MessageCounter
	limit   int
	window  time.Duration
	now     func() time.Time
}

// NewLimiter creates a Limiter. A non-positive window falls back to
// DefaultWindow; a non-positive limit disables the gate.
func NewLimiter(counter MessageCounter, limit int, window time.Duration) *Limiter {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Limiter{counter: counter, limit: limit, window: window, now: time.Now}
}

// Check reports whether the trailing-window send count has reached the
// limit, along with the count itself.
func (l *Limiter) Check(ctx context.Context) (exceeded bool, count int, err error) {
	if l.limit <= 0 {
		return false, 0, nil
	}
	since := l.now().Add(-l.window)
	count, err = l.counter.CountCreatedSince(ctx, since)
	if err != nil {
		return false, 0, err
	}
	if count >= l.limit {
		logger.Warn("send rate limit reached", "count", count, "limit", l.limit)
		return true, count, nil
	}
	return false, count, nil
}
