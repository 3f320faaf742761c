package cache

import (
	"context"
	"errors"
	"time"

	"lms-dashboard/application/ports"
	pkgerrors "lms-dashboard/pkg/errors"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// BreakerConfig holds configuration for the cache circuit breaker
type BreakerConfig struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold float64
	MinRequests      uint32
}

// DefaultBreakerConfig returns the breaker settings used for remote stores
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:             name,
		MaxRequests:      3,
		Interval:         30 * time.Second,
		Timeout:          15 * time.Second,
		FailureThreshold: 0.5,
		MinRequests:      5,
	}
}

// BreakerCache guards a cache store with a circuit breaker so a failing
// backend is skipped quickly instead of adding its timeout to every request.
// Open-circuit calls return pkgerrors.ErrCircuitOpen, which callers treat as
// an ordinary store error.
type BreakerCache struct {
	inner  ports.Cache
	cb     *gobreaker.CircuitBreaker
	logger *zap.Logger
}

// NewBreakerCache wraps inner with a circuit breaker
func NewBreakerCache(inner ports.Cache, cfg BreakerConfig, logger *zap.Logger) *BreakerCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &BreakerCache{inner: inner, logger: logger}
	b.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Cache circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		IsSuccessful: func(err error) bool {
			// Cancelled requests say nothing about store health
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
	return b
}

// State reports the breaker state
func (b *BreakerCache) State() gobreaker.State {
	return b.cb.State()
}

type getResult struct {
	value []byte
	found bool
}

// Get retrieves a value through the breaker
func (b *BreakerCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	res, err := b.cb.Execute(func() (interface{}, error) {
		v, found, err := b.inner.Get(ctx, key)
		return getResult{value: v, found: found}, err
	})
	if err != nil {
		return nil, false, b.translate(err)
	}
	r := res.(getResult)
	return r.value, r.found, nil
}

// Set stores a value through the breaker
func (b *BreakerCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.inner.Set(ctx, key, value, ttl)
	})
	return b.translate(err)
}

// Delete removes a value through the breaker
func (b *BreakerCache) Delete(ctx context.Context, key string) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.inner.Delete(ctx, key)
	})
	return b.translate(err)
}

// Flush clears the inner store through the breaker
func (b *BreakerCache) Flush(ctx context.Context) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.inner.Flush(ctx)
	})
	return b.translate(err)
}

// DeletePattern forwards to the inner store when it supports patterns.
// Otherwise it returns ErrPatternUnsupported so callers fall back to
// enumerable keys.
func (b *BreakerCache) DeletePattern(ctx context.Context, pattern string) (int, error) {
	pd, ok := b.inner.(ports.PatternDeleter)
	if !ok {
		return 0, pkgerrors.ErrPatternUnsupported
	}
	res, err := b.cb.Execute(func() (interface{}, error) {
		return pd.DeletePattern(ctx, pattern)
	})
	if err != nil {
		return 0, b.translate(err)
	}
	return res.(int), nil
}

func (b *BreakerCache) translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return pkgerrors.ErrCircuitOpen
	default:
		return err
	}
}

var (
	_ ports.Cache          = (*BreakerCache)(nil)
	_ ports.PatternDeleter = (*BreakerCache)(nil)
	_ ports.Cache          = (*MemoryCache)(nil)
	_ ports.PatternDeleter = (*MemoryCache)(nil)
)
