package services

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"lms-dashboard/application/ports"
	"lms-dashboard/domain/core/valueobjects"
	"lms-dashboard/domain/dashboard"

	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "lms-dashboard/metrics-cache"

// MetricsCache serves dashboard statistics through a get-or-compute cache.
//
// Every cache operation is best effort: a failing store is logged and treated
// as a miss on reads and a no-op on writes and deletes, so a broken cache
// degrades dashboards to always computing from the store.
type MetricsCache struct {
	cache   ports.Cache
	stats   *StatsService
	syncer  ports.CompletionSyncer
	guard   ports.ComputeGuard
	metrics ports.MetricsRecorder
	tracer  trace.Tracer
	clock   clockwork.Clock
	logger  *zap.Logger

	guardWait time.Duration
	guardPoll time.Duration

	mu  sync.RWMutex
	ttl dashboard.TTLPolicy
}

// MetricsCacheOption configures optional collaborators
type MetricsCacheOption func(*MetricsCache)

// WithComputeGuard enables single-flight recomputation across processes.
// Callers that lose the claim poll the cache for up to wait before computing anyway.
func WithComputeGuard(guard ports.ComputeGuard, wait, poll time.Duration) MetricsCacheOption {
	return func(m *MetricsCache) {
		m.guard = guard
		m.guardWait = wait
		m.guardPoll = poll
	}
}

// WithMetricsRecorder records hits, misses and compute durations
func WithMetricsRecorder(r ports.MetricsRecorder) MetricsCacheOption {
	return func(m *MetricsCache) { m.metrics = r }
}

// WithTracer overrides the global tracer
func WithTracer(t trace.Tracer) MetricsCacheOption {
	return func(m *MetricsCache) { m.tracer = t }
}

// WithClock injects the clock used for timings and guard polling
func WithClock(c clockwork.Clock) MetricsCacheOption {
	return func(m *MetricsCache) { m.clock = c }
}

// NewMetricsCache creates a metrics cache. syncer may be nil, which skips the
// completion resync before branch and progress computations.
func NewMetricsCache(
	cache ports.Cache,
	stats *StatsService,
	syncer ports.CompletionSyncer,
	ttl dashboard.TTLPolicy,
	logger *zap.Logger,
	opts ...MetricsCacheOption,
) *MetricsCache {
	m := &MetricsCache{
		cache:     cache,
		stats:     stats,
		syncer:    syncer,
		metrics:   nopRecorder{},
		tracer:    otel.Tracer(tracerName),
		clock:     clockwork.NewRealClock(),
		logger:    logger,
		guardWait: 2 * time.Second,
		guardPoll: 100 * time.Millisecond,
		ttl:       ttl,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// TTLPolicy returns the active TTL policy
func (m *MetricsCache) TTLPolicy() dashboard.TTLPolicy {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ttl
}

// SetTTLPolicy swaps the TTL policy for entries written from now on
func (m *MetricsCache) SetTTLPolicy(p dashboard.TTLPolicy) {
	m.mu.Lock()
	m.ttl = p
	m.mu.Unlock()
	m.logger.Info("Dashboard TTL policy updated",
		zap.Duration("short", p.For(dashboard.TTLShort)),
		zap.Duration("medium", p.For(dashboard.TTLMedium)),
		zap.Duration("long", p.For(dashboard.TTLLong)),
	)
}

// Read operations

// GetGlobalStats returns platform-wide statistics
func (m *MetricsCache) GetGlobalStats(ctx context.Context) (dashboard.GlobalStats, error) {
	return getOrCompute(ctx, m, dashboard.FamilyGlobalStats, dashboard.GlobalStatsKey(), dashboard.TTLMedium,
		m.stats.ComputeGlobalStats)
}

// GetBranchStats returns statistics for one branch. On a miss the branch's
// completion flags are resynced before aggregating.
func (m *MetricsCache) GetBranchStats(ctx context.Context, branchID int64) (dashboard.BranchStats, error) {
	return getOrCompute(ctx, m, dashboard.FamilyBranchStats, dashboard.BranchStatsKey(branchID), dashboard.TTLMedium,
		func(ctx context.Context) (dashboard.BranchStats, error) {
			m.resyncBranch(ctx, branchID)
			return m.stats.ComputeBranchStats(ctx, branchID)
		})
}

// GetInstructorStats returns statistics for the courses an instructor teaches
func (m *MetricsCache) GetInstructorStats(ctx context.Context, userID int64) (dashboard.InstructorStats, error) {
	return getOrCompute(ctx, m, dashboard.FamilyInstructorStats, dashboard.InstructorStatsKey(userID), dashboard.TTLMedium,
		func(ctx context.Context) (dashboard.InstructorStats, error) {
			return m.stats.ComputeInstructorStats(ctx, userID)
		})
}

// GetProgressData returns learner progress buckets for the query scope
func (m *MetricsCache) GetProgressData(ctx context.Context, q ProgressQuery) (dashboard.ProgressData, error) {
	return getOrCompute(ctx, m, dashboard.FamilyProgress, dashboard.ProgressKey(q.Scope()), dashboard.TTLShort,
		func(ctx context.Context) (dashboard.ProgressData, error) {
			switch {
			case q.BranchID != nil:
				m.resyncBranch(ctx, *q.BranchID)
			case q.Viewer != nil && q.Viewer.Role.IsLearner():
				m.resyncUser(ctx, q.Viewer.UserID)
			}
			return m.stats.ComputeProgress(ctx, q)
		})
}

// GetActivityData returns login and completion series for the timeframe
func (m *MetricsCache) GetActivityData(ctx context.Context, tf valueobjects.Timeframe, branchID *int64) (dashboard.ActivityData, error) {
	return getOrCompute(ctx, m, dashboard.FamilyActivity, dashboard.ActivityKey(tf, branchID), dashboard.TTLShort,
		func(ctx context.Context) (dashboard.ActivityData, error) {
			return m.stats.ComputeActivity(ctx, tf, branchID)
		})
}

// GetRecentActivities returns the newest audit-log actions
func (m *MetricsCache) GetRecentActivities(ctx context.Context, limit int, branchID *int64) ([]dashboard.RecentActivity, error) {
	if limit <= 0 {
		limit = DefaultRecentActivitiesLimit
	}
	return getOrCompute(ctx, m, dashboard.FamilyRecentActivities, dashboard.RecentActivitiesKey(limit, branchID), dashboard.TTLShort,
		func(ctx context.Context) ([]dashboard.RecentActivity, error) {
			return m.stats.ComputeRecentActivities(ctx, limit, branchID)
		})
}

// getOrCompute reads key, and on a miss computes, stores with the class TTL
// and returns the fresh value. Compute errors are returned; cache errors never are.
func getOrCompute[T any](
	ctx context.Context,
	m *MetricsCache,
	family string,
	key dashboard.Key,
	class dashboard.TTLClass,
	compute func(context.Context) (T, error),
) (T, error) {
	ctx, span := m.tracer.Start(ctx, "dashboard."+family,
		trace.WithAttributes(
			attribute.String("cache.key", key.String()),
			attribute.String("cache.ttl_class", class.String()),
		),
	)
	defer span.End()

	if v, ok := lookup[T](ctx, m, family, key); ok {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return v, nil
	}
	span.SetAttributes(attribute.Bool("cache.hit", false))

	if m.guard != nil {
		release, acquired, err := m.guard.Acquire(ctx, key.String())
		switch {
		case err != nil:
			m.logger.Warn("Compute guard failed, computing without it",
				zap.String("key", key.String()),
				zap.Error(err),
			)
		case acquired:
			defer release()
		default:
			if v, ok := waitForFill[T](ctx, m, family, key); ok {
				return v, nil
			}
		}
	}

	start := m.clock.Now()
	v, err := compute(ctx)
	m.metrics.ComputeDuration(family, m.clock.Since(start), err)
	if err != nil {
		m.logger.Error("Failed to compute dashboard statistic",
			zap.String("family", family),
			zap.String("key", key.String()),
			zap.Error(err),
		)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		var zero T
		return zero, err
	}

	m.store(ctx, key, v, class)
	return v, nil
}

// lookup decodes a cached entry; undecodable entries are dropped and reported as a miss
func lookup[T any](ctx context.Context, m *MetricsCache, family string, key dashboard.Key) (T, bool) {
	var v T
	raw, found := m.safeGet(ctx, key)
	if !found {
		m.metrics.CacheMiss(family)
		return v, false
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		m.logger.Warn("Dropping undecodable cache entry",
			zap.String("key", key.String()),
			zap.Error(err),
		)
		m.safeDelete(ctx, key)
		m.metrics.CacheMiss(family)
		var zero T
		return zero, false
	}
	m.metrics.CacheHit(family)
	return v, true
}

// waitForFill polls the cache while another process computes key
func waitForFill[T any](ctx context.Context, m *MetricsCache, family string, key dashboard.Key) (T, bool) {
	deadline := m.clock.Now().Add(m.guardWait)
	for m.clock.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			var zero T
			return zero, false
		case <-m.clock.After(m.guardPoll):
		}
		if v, ok := lookup[T](ctx, m, family, key); ok {
			return v, true
		}
	}
	m.logger.Debug("Compute guard wait expired, computing",
		zap.String("key", key.String()),
	)
	var zero T
	return zero, false
}

func (m *MetricsCache) store(ctx context.Context, key dashboard.Key, v any, class dashboard.TTLClass) {
	raw, err := json.Marshal(v)
	if err != nil {
		m.logger.Warn("Failed to encode cache entry",
			zap.String("key", key.String()),
			zap.Error(err),
		)
		m.metrics.CacheError("encode")
		return
	}
	m.safeSet(ctx, key, raw, m.TTLPolicy().For(class))
}

func (m *MetricsCache) resyncBranch(ctx context.Context, branchID int64) {
	if m.syncer == nil {
		return
	}
	if _, err := m.syncer.ResyncBranch(ctx, branchID); err != nil {
		m.logger.Warn("Completion resync failed, aggregating current flags",
			zap.Int64("branchID", branchID),
			zap.Error(err),
		)
	}
}

func (m *MetricsCache) resyncUser(ctx context.Context, userID int64) {
	if m.syncer == nil {
		return
	}
	if _, err := m.syncer.ResyncUser(ctx, userID); err != nil {
		m.logger.Warn("Completion resync failed, aggregating current flags",
			zap.Int64("userID", userID),
			zap.Error(err),
		)
	}
}

// Safe store access

func (m *MetricsCache) safeGet(ctx context.Context, key dashboard.Key) ([]byte, bool) {
	raw, found, err := m.cache.Get(ctx, key.String())
	if err != nil {
		m.logger.Warn("Cache read failed, treating as miss",
			zap.String("key", key.String()),
			zap.Error(err),
		)
		m.metrics.CacheError("get")
		return nil, false
	}
	return raw, found
}

func (m *MetricsCache) safeSet(ctx context.Context, key dashboard.Key, raw []byte, ttl time.Duration) {
	if err := m.cache.Set(ctx, key.String(), raw, ttl); err != nil {
		m.logger.Warn("Cache write failed, skipping",
			zap.String("key", key.String()),
			zap.Error(err),
		)
		m.metrics.CacheError("set")
	}
}

// safeDelete removes keys and returns how many deletes were accepted by the store
func (m *MetricsCache) safeDelete(ctx context.Context, keys ...dashboard.Key) int {
	deleted := 0
	for _, key := range keys {
		if err := m.cache.Delete(ctx, key.String()); err != nil {
			m.logger.Warn("Cache delete failed, skipping",
				zap.String("key", key.String()),
				zap.Error(err),
			)
			m.metrics.CacheError("delete")
			continue
		}
		deleted++
	}
	return deleted
}

// patterns returns the store's pattern deleter, or nil when unsupported
func (m *MetricsCache) patterns() ports.PatternDeleter {
	pd, _ := m.cache.(ports.PatternDeleter)
	return pd
}

// safeDeletePatterns removes keys matching each pattern. ok is false when any pattern failed.
func (m *MetricsCache) safeDeletePatterns(ctx context.Context, pd ports.PatternDeleter, patterns ...string) (deleted int, ok bool) {
	ok = true
	for _, p := range patterns {
		n, err := pd.DeletePattern(ctx, p)
		if err != nil {
			m.logger.Warn("Cache pattern delete failed",
				zap.String("pattern", p),
				zap.Error(err),
			)
			m.metrics.CacheError("delete_pattern")
			ok = false
			continue
		}
		deleted += n
	}
	return deleted, ok
}

type nopRecorder struct{}

func (nopRecorder) CacheHit(string)                              {}
func (nopRecorder) CacheMiss(string)                             {}
func (nopRecorder) CacheError(string)                            {}
func (nopRecorder) ComputeDuration(string, time.Duration, error) {}
func (nopRecorder) KeysInvalidated(string, int)                  {}
