package auth

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// RateLimiter provides rate limiting functionality
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Reset(ctx context.Context, key string) error
}

// SlidingWindowLimiter allows at most limit requests per key within any
// window of windowSize. State is per process.
type SlidingWindowLimiter struct {
	mu         sync.Mutex
	windows    map[string][]time.Time
	limit      int
	windowSize time.Duration
	clock      clockwork.Clock
}

// NewSlidingWindowLimiter creates a new sliding window rate limiter
func NewSlidingWindowLimiter(limit int, windowSize time.Duration, clock clockwork.Clock) *SlidingWindowLimiter {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &SlidingWindowLimiter{
		windows:    make(map[string][]time.Time),
		limit:      limit,
		windowSize: windowSize,
		clock:      clock,
	}
}

// Allow checks if a request is allowed
func (l *SlidingWindowLimiter) Allow(ctx context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	requests := prune(l.windows[key], now.Add(-l.windowSize))

	if len(requests) >= l.limit {
		l.windows[key] = requests
		return false, nil
	}

	l.windows[key] = append(requests, now)
	l.sweep(now)
	return true, nil
}

// Reset resets the rate limit for a key
func (l *SlidingWindowLimiter) Reset(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.windows, key)
	return nil
}

// sweep drops keys whose whole window has passed. Caller holds mu.
func (l *SlidingWindowLimiter) sweep(now time.Time) {
	start := now.Add(-l.windowSize)
	for key, requests := range l.windows {
		if len(requests) == 0 || !requests[len(requests)-1].After(start) {
			delete(l.windows, key)
		}
	}
}

// prune keeps the requests newer than start, reusing the slice
func prune(requests []time.Time, start time.Time) []time.Time {
	kept := requests[:0]
	for _, t := range requests {
		if t.After(start) {
			kept = append(kept, t)
		}
	}
	return kept
}
