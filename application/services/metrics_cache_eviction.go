package services

import (
	"context"

	"lms-dashboard/domain/core/valueobjects"
	"lms-dashboard/domain/dashboard"

	"go.uber.org/zap"
)

// Eviction primitives. All of them swallow store failures; a missed eviction
// costs at most one extra TTL window of staleness.

// ClearGlobalStats evicts the global statistics entry
func (m *MetricsCache) ClearGlobalStats(ctx context.Context) {
	n := m.safeDelete(ctx, dashboard.GlobalStatsKey())
	m.metrics.KeysInvalidated("global", n)
}

// ClearInstructorCache evicts an instructor's statistics
func (m *MetricsCache) ClearInstructorCache(ctx context.Context, userID int64) {
	n := m.safeDelete(ctx, dashboard.InstructorStatsKey(userID))
	m.metrics.KeysInvalidated("instructor", n)
}

// ClearUserCache evicts the user's instructor statistics and every progress
// entry requested for that user
func (m *MetricsCache) ClearUserCache(ctx context.Context, userID int64) {
	n := m.safeDelete(ctx, dashboard.InstructorStatsKey(userID))

	uid := userID
	if pd := m.patterns(); pd != nil {
		if deleted, ok := m.safeDeletePatterns(ctx, pd, dashboard.ProgressUserPattern(userID)); ok {
			m.metrics.KeysInvalidated("user", n+deleted)
			return
		}
	}
	// Without pattern support only the unscoped entries are enumerable;
	// branch-scoped entries for the user age out with the short TTL.
	n += m.safeDelete(ctx,
		dashboard.ProgressKey(dashboard.ProgressScope{UserID: &uid, Filtered: true}),
		dashboard.ProgressKey(dashboard.ProgressScope{UserID: &uid, Filtered: false}),
	)
	m.metrics.KeysInvalidated("user", n)
}

// ClearBranchCache evicts the branch statistics and the branch's activity series
func (m *MetricsCache) ClearBranchCache(ctx context.Context, branchID int64) {
	b := branchID
	keys := []dashboard.Key{dashboard.BranchStatsKey(branchID)}
	for _, tf := range valueobjects.AllTimeframes {
		keys = append(keys, dashboard.ActivityKey(tf, &b))
	}
	n := m.safeDelete(ctx, keys...)
	m.metrics.KeysInvalidated("branch", n)
}

// ClearProgressCache evicts progress entries touching the branch or business,
// together with the unscoped ones that aggregate over them. With neither
// scope given every progress entry is evicted.
func (m *MetricsCache) ClearProgressCache(ctx context.Context, branchID, businessID *int64) {
	if pd := m.patterns(); pd != nil {
		var patterns []string
		if branchID == nil && businessID == nil {
			patterns = []string{dashboard.FamilyPattern(dashboard.FamilyProgress)}
		} else {
			if branchID != nil {
				patterns = append(patterns, dashboard.ProgressBranchPattern(*branchID))
			}
			if businessID != nil {
				patterns = append(patterns, dashboard.ProgressBusinessPattern(*businessID))
			}
			patterns = append(patterns, dashboard.ProgressUnscopedPattern())
		}
		if deleted, ok := m.safeDeletePatterns(ctx, pd, patterns...); ok {
			m.metrics.KeysInvalidated("progress", deleted)
			return
		}
	}

	n := m.safeDelete(ctx, enumerableProgressKeys(branchID, businessID)...)
	m.metrics.KeysInvalidated("progress", n)
}

// enumerableProgressKeys lists the viewer-less progress keys for every
// combination of the given scope with the unscoped case and both filter flags
func enumerableProgressKeys(branchID, businessID *int64) []dashboard.Key {
	branches := []*int64{nil}
	if branchID != nil {
		branches = append(branches, branchID)
	}
	businesses := []*int64{nil}
	if businessID != nil {
		businesses = append(businesses, businessID)
	}

	var keys []dashboard.Key
	for _, b := range branches {
		for _, bs := range businesses {
			for _, filtered := range []bool{true, false} {
				keys = append(keys, dashboard.ProgressKey(dashboard.ProgressScope{
					BranchID:   b,
					BusinessID: bs,
					Filtered:   filtered,
				}))
			}
		}
	}
	return keys
}

// ClearActivityCache evicts the activity series of every timeframe for the
// branch and the unscoped series. With no branch every series is evicted
// when the store supports patterns.
func (m *MetricsCache) ClearActivityCache(ctx context.Context, branchID *int64) {
	if branchID == nil {
		if pd := m.patterns(); pd != nil {
			if deleted, ok := m.safeDeletePatterns(ctx, pd, dashboard.FamilyPattern(dashboard.FamilyActivity)); ok {
				m.metrics.KeysInvalidated("activity", deleted)
				return
			}
		}
	}

	var keys []dashboard.Key
	for _, tf := range valueobjects.AllTimeframes {
		if branchID != nil {
			keys = append(keys, dashboard.ActivityKey(tf, branchID))
		}
		keys = append(keys, dashboard.ActivityKey(tf, nil))
	}
	n := m.safeDelete(ctx, keys...)
	m.metrics.KeysInvalidated("activity", n)
}

// ClearAllDashboardCache pattern-deletes every dashboard family, or flushes
// the whole store when patterns are unsupported or fail. Meant for operators,
// not the request path.
func (m *MetricsCache) ClearAllDashboardCache(ctx context.Context) {
	if pd := m.patterns(); pd != nil {
		patterns := make([]string, 0, len(dashboard.Families))
		for _, f := range dashboard.Families {
			patterns = append(patterns, dashboard.FamilyPattern(f))
		}
		deleted, ok := m.safeDeletePatterns(ctx, pd, patterns...)
		if ok {
			m.logger.Info("Cleared all dashboard cache entries", zap.Int("deleted", deleted))
			m.metrics.KeysInvalidated("all", deleted)
			return
		}
		m.logger.Warn("Pattern clear incomplete, flushing cache store")
	}

	if err := m.cache.Flush(ctx); err != nil {
		m.logger.Warn("Cache flush failed", zap.Error(err))
		m.metrics.CacheError("flush")
		return
	}
	m.logger.Info("Flushed cache store")
	m.metrics.KeysInvalidated("all", 0)
}
