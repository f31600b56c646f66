package poller

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/ternarybob/vigil/internal/common"
)

// OriginLimiter paces outbound requests per origin with a token bucket.
// Retries within a cycle already carry a fixed delay; this additionally
// keeps back-to-back wrapper-page and content fetches polite.
type OriginLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	interval time.Duration
}

// NewOriginLimiter creates a limiter allowing one request per interval
// per origin, with a burst of one. A zero interval disables pacing.
func NewOriginLimiter(interval time.Duration) *OriginLimiter {
	return &OriginLimiter{
		limiters: make(map[string]*rate.Limiter),
		interval: interval,
	}
}

// Wait blocks until the origin's rate limit permits a request, or the
// context is cancelled.
func (l *OriginLimiter) Wait(ctx context.Context, rawURL string) error {
	if l.interval <= 0 {
		return nil
	}

	origin := common.Origin(rawURL)
	if origin == "" {
		return nil
	}

	l.mu.Lock()
	limiter, ok := l.limiters[origin]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(l.interval), 1)
		l.limiters[origin] = limiter
	}
	l.mu.Unlock()

	return limiter.Wait(ctx)
}
