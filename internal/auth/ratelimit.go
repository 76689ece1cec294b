package auth

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/research-portal/pkg/util"
)

// RateLimitRecorder counts rejected admissions.
type RateLimitRecorder interface {
	RecordRateLimited(scope string)
}

// SlidingWindowLimiter admits at most limit events per key within any window.
// One instance is created at startup and shared by all handlers of a route group.
type SlidingWindowLimiter struct {
	scope  string
	limit  int
	window time.Duration
	now    func() time.Time

	mu   sync.Mutex
	hits map[string][]time.Time
}

// NewSlidingWindowLimiter creates a limiter. scope labels metrics and logs.
func NewSlidingWindowLimiter(scope string, limit int, window time.Duration) *SlidingWindowLimiter {
	if limit <= 0 {
		panic("auth: rate limit must be positive")
	}
	if window <= 0 {
		panic("auth: rate limit window must be positive")
	}
	return &SlidingWindowLimiter{
		scope:  scope,
		limit:  limit,
		window: window,
		now:    time.Now,
		hits:   make(map[string][]time.Time),
	}
}

// Allow records an admission for key. When the window is full it returns
// ErrRateLimitExceeded and how long until the oldest hit leaves the window.
func (l *SlidingWindowLimiter) Allow(key string) (time.Duration, error) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	recent := prune(l.hits[key], now.Add(-l.window))
	if len(recent) >= l.limit {
		l.hits[key] = recent
		return recent[0].Add(l.window).Sub(now), apperrors.ErrRateLimitExceeded
	}
	l.hits[key] = append(recent, now)
	return 0, nil
}

// prune drops timestamps at or before cutoff. hits is ordered oldest first.
func prune(hits []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(hits) && !hits[i].After(cutoff) {
		i++
	}
	return hits[i:]
}

// Name identifies the limiter in sweeper logs.
func (l *SlidingWindowLimiter) Name() string {
	return "rate-limit:" + l.scope
}

// Sweep forgets keys with no hits inside the window.
func (l *SlidingWindowLimiter) Sweep(_ context.Context) (int, error) {
	cutoff := l.now().Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, hits := range l.hits {
		recent := prune(hits, cutoff)
		if len(recent) == 0 {
			delete(l.hits, key)
			removed++
			continue
		}
		l.hits[key] = recent
	}
	return removed, nil
}

// Middleware guards a route group, keyed by client IP. A nil limiter admits everything.
func (l *SlidingWindowLimiter) Middleware(recorder RateLimitRecorder) fiber.Handler {
	if l == nil {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	return func(c *fiber.Ctx) error {
		retryAfter, err := l.Allow(c.IP())
		if err != nil {
			if recorder != nil {
				recorder.RecordRateLimited(l.scope)
			}
			seconds := int(retryAfter.Round(time.Second) / time.Second)
			if seconds < 1 {
				seconds = 1
			}
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(seconds))
			return err
		}
		return c.Next()
	}
}
