package ports

import (
	"context"
	"time"

	"lms-dashboard/domain/events"
)

// MetricsRecorder receives cache and invalidation measurements
type MetricsRecorder interface {
	CacheHit(family string)
	CacheMiss(family string)
	CacheError(operation string)
	ComputeDuration(family string, d time.Duration, err error)
	KeysInvalidated(reason string, count int)
}

// InvalidationBroadcaster fans invalidations out to other processes sharing the cache
type InvalidationBroadcaster interface {
	// Broadcast publishes the event; the local eviction has already happened
	Broadcast(ctx context.Context, event events.InvalidationEvent) error
}
