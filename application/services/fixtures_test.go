package services

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"lms-dashboard/application/ports"
	"lms-dashboard/domain/core/entities"
	"lms-dashboard/domain/core/valueobjects"
	"lms-dashboard/domain/dashboard"
	"lms-dashboard/domain/events"
	"lms-dashboard/infrastructure/cache"
	"lms-dashboard/infrastructure/persistence/memory"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

// testNow is a Thursday afternoon
var testNow = time.Date(2024, 3, 14, 15, 27, 0, 0, time.UTC)

func int64p(v int64) *int64 { return &v }

// fixture wires the services over the in-memory store and cache
type fixture struct {
	clock       *clockwork.FakeClock
	store       *memory.Store
	reader      *countingReader
	cache       *cache.MemoryCache
	stats       *StatsService
	metrics     *MetricsCache
	coordinator *InvalidationCoordinator
	policy      *AccessPolicy
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := clockwork.NewFakeClockAt(testNow)
	store := memory.NewStore(memory.WithClock(clock))
	reader := &countingReader{StatsReader: store}
	mem := cache.NewMemoryCache(1000, 1<<20, clock, zap.NewNop())
	stats := NewStatsService(reader, store, store, NewRoleScoper(store, store), clock, time.UTC, zap.NewNop())
	mc := NewMetricsCache(mem, stats, store, dashboard.DefaultTTLPolicy(), zap.NewNop(), WithClock(clock))
	coord := NewInvalidationCoordinator(mc, store, nil, clock, zap.NewNop())

	return &fixture{
		clock:       clock,
		store:       store,
		reader:      reader,
		cache:       mem,
		stats:       stats,
		metrics:     mc,
		coordinator: coord,
		policy:      NewAccessPolicy(store, store),
	}
}

func (f *fixture) cached(t *testing.T, key dashboard.Key) bool {
	t.Helper()
	_, found, err := f.cache.Get(context.Background(), key.String())
	if err != nil {
		t.Fatalf("memory cache get: %v", err)
	}
	return found
}

// seedBranches creates branches 7 and 8 in business 1 and branch 9 in business 2
func (f *fixture) seedBranches() {
	f.store.AddBranch(entities.Branch{ID: 7, Name: "North", BusinessID: int64p(1)})
	f.store.AddBranch(entities.Branch{ID: 8, Name: "South", BusinessID: int64p(1)})
	f.store.AddBranch(entities.Branch{ID: 9, Name: "East", BusinessID: int64p(2)})
}

func (f *fixture) addUser(id int64, role valueobjects.Role, branch *int64, active bool) {
	f.store.AddUser(entities.User{
		ID:        id,
		Username:  fmt.Sprintf("user%d", id),
		Role:      role,
		IsActive:  active,
		BranchID:  branch,
		CreatedAt: testNow.Add(-30 * 24 * time.Hour),
	})
}

// countingReader counts course counts, which every global and branch compute issues exactly once
type countingReader struct {
	ports.StatsReader
	courseCounts atomic.Int64
}

func (r *countingReader) CountCourses(ctx context.Context, branchID *int64) (int64, error) {
	r.courseCounts.Add(1)
	return r.StatsReader.CountCourses(ctx, branchID)
}

// failingCache rejects every operation
type failingCache struct{}

var errCacheDown = errors.New("cache backend unreachable")

func (failingCache) Get(context.Context, string) ([]byte, bool, error) { return nil, false, errCacheDown }
func (failingCache) Set(context.Context, string, []byte, time.Duration) error {
	return errCacheDown
}
func (failingCache) Delete(context.Context, string) error { return errCacheDown }
func (failingCache) Flush(context.Context) error          { return errCacheDown }
func (failingCache) DeletePattern(context.Context, string) (int, error) {
	return 0, errCacheDown
}

// plainCache hides the memory cache's pattern support
type plainCache struct {
	inner *cache.MemoryCache
}

func (p plainCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return p.inner.Get(ctx, key)
}
func (p plainCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return p.inner.Set(ctx, key, value, ttl)
}
func (p plainCache) Delete(ctx context.Context, key string) error { return p.inner.Delete(ctx, key) }
func (p plainCache) Flush(ctx context.Context) error              { return p.inner.Flush(ctx) }

// mockBroadcaster records published invalidations
type mockBroadcaster struct {
	mock.Mock
}

func (m *mockBroadcaster) Broadcast(ctx context.Context, event events.InvalidationEvent) error {
	return m.Called(ctx, event).Error(0)
}

// mockScoper lets tests force the role-based filtering path to fail
type mockScoper struct {
	mock.Mock
}

func (m *mockScoper) Scope(ctx context.Context, viewer entities.Viewer, filter ports.EnrollmentFilter) (ports.EnrollmentFilter, error) {
	args := m.Called(ctx, viewer, filter)
	return args.Get(0).(ports.EnrollmentFilter), args.Error(1)
}

// spyRecorder counts recorder calls
type spyRecorder struct {
	hits, misses, errors atomic.Int64
}

func (s *spyRecorder) CacheHit(string)                              { s.hits.Add(1) }
func (s *spyRecorder) CacheMiss(string)                             { s.misses.Add(1) }
func (s *spyRecorder) CacheError(string)                            { s.errors.Add(1) }
func (s *spyRecorder) ComputeDuration(string, time.Duration, error) {}
func (s *spyRecorder) KeysInvalidated(string, int)                  {}
