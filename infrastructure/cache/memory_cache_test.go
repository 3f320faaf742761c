package cache

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestCache(t *testing.T) (*MemoryCache, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2024, 3, 14, 15, 0, 0, 0, time.UTC))
	return NewMemoryCache(100, 1<<20, clock, zap.NewNop()), clock
}

func TestMemoryCache_TTLExpiry(t *testing.T) {
	// Arrange
	c, clock := newTestCache(t)
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "dashboard_global_stats", []byte(`{"total_users":10}`), 15*time.Minute))

	// Act & Assert
	clock.Advance(14 * time.Minute)
	v, found, err := c.Get(ctx, "dashboard_global_stats")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, `{"total_users":10}`, string(v))

	clock.Advance(time.Minute)
	_, found, err = c.Get(ctx, "dashboard_global_stats")
	require.NoError(t, err)
	assert.False(t, found, "entry must expire once its ttl has elapsed")
}

func TestMemoryCache_LRUEviction(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := NewMemoryCache(2, 1<<20, clock, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", []byte("1"), time.Hour))
	require.NoError(t, c.Set(ctx, "b", []byte("2"), time.Hour))
	_, _, _ = c.Get(ctx, "a")
	require.NoError(t, c.Set(ctx, "c", []byte("3"), time.Hour))

	_, foundA, _ := c.Get(ctx, "a")
	_, foundB, _ := c.Get(ctx, "b")
	assert.True(t, foundA)
	assert.False(t, foundB, "least recently used entry is evicted")
	assert.Equal(t, int64(1), c.Stats().Evictions)
}

func TestMemoryCache_DeletePattern(t *testing.T) {
	tests := []struct {
		name      string
		pattern   string
		wantCount int
		remaining []string
	}{
		{
			name:      "family prefix",
			pattern:   "dashboard_activity_*",
			wantCount: 2,
			remaining: []string{"dashboard_progress_u1_b7_bsall_f1", "dashboard_progress_uall_ball_bsall_f0", "dashboard_branch_stats_b7"},
		},
		{
			name:      "branch scoped progress",
			pattern:   "dashboard_progress_*_b7_*",
			wantCount: 1,
			remaining: []string{"dashboard_activity_week_b7", "dashboard_activity_day_ball", "dashboard_progress_uall_ball_bsall_f0", "dashboard_branch_stats_b7"},
		},
		{
			name:      "no match",
			pattern:   "dashboard_instructor_stats_*",
			wantCount: 0,
			remaining: []string{"dashboard_activity_week_b7", "dashboard_progress_u1_b7_bsall_f1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestCache(t)
			ctx := context.Background()
			for _, k := range []string{
				"dashboard_activity_week_b7",
				"dashboard_activity_day_ball",
				"dashboard_progress_u1_b7_bsall_f1",
				"dashboard_progress_uall_ball_bsall_f0",
				"dashboard_branch_stats_b7",
			} {
				require.NoError(t, c.Set(ctx, k, []byte("{}"), time.Hour))
			}

			n, err := c.DeletePattern(ctx, tt.pattern)

			require.NoError(t, err)
			assert.Equal(t, tt.wantCount, n)
			for _, k := range tt.remaining {
				_, found, _ := c.Get(ctx, k)
				assert.True(t, found, k)
			}
		})
	}
}

func TestMemoryCache_DeletePatternRejectsMalformed(t *testing.T) {
	c, _ := newTestCache(t)

	_, err := c.DeletePattern(context.Background(), "dashboard_[")

	assert.Error(t, err)
}

func TestMemoryCache_Flush(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "x", []byte("1"), time.Hour))
	require.NoError(t, c.Set(ctx, "y", []byte("2"), time.Hour))

	require.NoError(t, c.Flush(ctx))

	stats := c.Stats()
	assert.Equal(t, 0, stats.Items)
	assert.Equal(t, int64(0), stats.Size)
}

func TestMemoryCache_SkipsOversizedItems(t *testing.T) {
	c := NewMemoryCache(10, 8, clockwork.NewFakeClock(), zap.NewNop())
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "key", []byte("way too large"), time.Hour))

	_, found, _ := c.Get(ctx, "key")
	assert.False(t, found)
}
