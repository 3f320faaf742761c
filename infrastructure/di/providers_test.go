package di

import (
	"context"
	"testing"
	"time"

	"lms-dashboard/infrastructure/cache"
	"lms-dashboard/infrastructure/config"
	"lms-dashboard/infrastructure/messaging/eventbridge"
	"lms-dashboard/infrastructure/messaging/pgnotify"
	"lms-dashboard/infrastructure/persistence/dynamodb"
	"lms-dashboard/pkg/auth"
	"lms-dashboard/pkg/observability"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/aws/aws-sdk-go-v2/aws"
	awscloudwatch "github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig() *config.Config {
	return &config.Config{
		Environment: "test",
		LogLevel:    "info",
		StatsStore:  "memory",
		Cache: config.CacheConfig{
			Provider:    "memory",
			TableName:   "lms-dashboard-cache",
			MaxItems:    100,
			MaxMemoryMB: 1,
			Guard: config.GuardConfig{
				Lease: 10 * time.Second,
				Wait:  time.Second,
				Poll:  50 * time.Millisecond,
			},
		},
		AdminRateLimit:   2,
		AdminRateWindow:  time.Minute,
		MetricsNamespace: "di_test",
		JWTSecret:        "secret",
		Timezone:         "UTC",
	}
}

var awsTestConfig = aws.Config{Region: "us-west-2"}

func TestProvideLogger(t *testing.T) {
	cfg := testConfig()
	logger, err := ProvideLogger(cfg)
	require.NoError(t, err)
	assert.NotNil(t, logger)

	cfg.LogLevel = "loud"
	_, err = ProvideLogger(cfg)
	assert.Error(t, err)
}

func TestProvideStores_Memory(t *testing.T) {
	stores, cleanup, err := ProvideStores(context.Background(), testConfig(), zap.NewNop())
	require.NoError(t, err)
	defer cleanup()

	require.NotNil(t, stores.Memory)
	assert.Same(t, stores.Memory, stores.Stats)
	assert.Same(t, stores.Memory, stores.Enrollments)
	assert.NotNil(t, stores.Users)
	assert.Empty(t, stores.Readiness)
}

func TestProvideCacheBackend(t *testing.T) {
	client := awsdynamodb.NewFromConfig(awsTestConfig)
	clock := clockwork.NewFakeClock()

	tests := []struct {
		name      string
		provider  string
		breaker   bool
		wantLocal bool
		check     func(t *testing.T, b *CacheBackend)
	}{
		{
			name:      "memory store",
			provider:  "memory",
			wantLocal: true,
			check: func(t *testing.T, b *CacheBackend) {
				assert.IsType(t, &cache.MemoryCache{}, b.Store)
			},
		},
		{
			name:      "memory store behind breaker",
			provider:  "memory",
			breaker:   true,
			wantLocal: true,
			check: func(t *testing.T, b *CacheBackend) {
				assert.IsType(t, &cache.BreakerCache{}, b.Store)
			},
		},
		{
			name:     "dynamodb store",
			provider: "dynamodb",
			check: func(t *testing.T, b *CacheBackend) {
				assert.IsType(t, &dynamodb.CacheStore{}, b.Store)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.Cache.Provider = tt.provider
			cfg.Cache.Breaker.Enabled = tt.breaker

			backend := ProvideCacheBackend(cfg, client, clock, zap.NewNop())

			assert.Equal(t, tt.wantLocal, backend.Local != nil)
			tt.check(t, backend)
		})
	}
}

func TestProvideAdminHandler_NoStatsForSharedStore(t *testing.T) {
	cfg := testConfig()
	cfg.Cache.Provider = "dynamodb"
	backend := ProvideCacheBackend(cfg, awsdynamodb.NewFromConfig(awsTestConfig), clockwork.NewFakeClock(), zap.NewNop())

	h := ProvideAdminHandler(nil, backend, ProvideErrorHandler(cfg, zap.NewNop()), zap.NewNop())

	assert.NotNil(t, h)
	assert.Nil(t, backend.Local)
}

func TestProvideOptionalCollaborators(t *testing.T) {
	cfg := testConfig()
	ddb := awsdynamodb.NewFromConfig(awsTestConfig)
	eb := awseventbridge.NewFromConfig(awsTestConfig)
	cw := awscloudwatch.NewFromConfig(awsTestConfig)
	clock := clockwork.NewFakeClock()
	logger := zap.NewNop()

	assert.Nil(t, ProvideComputeGuard(cfg, ddb, clock, logger))
	assert.Nil(t, ProvideBroadcaster(cfg, eb, &Stores{}, logger))
	assert.Nil(t, ProvideInvalidationListener(cfg, nil, logger))
	assert.Nil(t, ProvideCollector(cfg))
	assert.Nil(t, ProvideMetricsRecorder(nil, nil))

	cfg.Cache.Guard.Enabled = true
	cfg.Invalidation.Transport = config.TransportEventBridge
	cfg.Invalidation.EventBusName = "bus"
	cfg.EnableMetrics = true
	assert.NotNil(t, ProvideComputeGuard(cfg, ddb, clock, logger))
	assert.IsType(t, &eventbridge.Broadcaster{}, ProvideBroadcaster(cfg, eb, &Stores{}, logger))
	assert.Nil(t, ProvideInvalidationListener(cfg, nil, logger))

	collector := ProvideCollector(cfg)
	require.NotNil(t, collector)
	assert.Nil(t, ProvideCloudWatchRecorder(cfg, cw, clock, logger))
	assert.Same(t, collector, ProvideMetricsRecorder(collector, nil))

	cfg.IsLambda = true
	assert.Nil(t, ProvideCollector(cfg))
	recorder := ProvideCloudWatchRecorder(cfg, cw, clock, logger)
	require.NotNil(t, recorder)
	assert.IsType(t, &observability.CloudWatchRecorder{}, ProvideMetricsRecorder(nil, recorder))
}

func TestProvidePostgresTransport(t *testing.T) {
	cfg := testConfig()
	cfg.StatsStore = "postgres"
	cfg.DatabaseURL = "postgres://localhost/lms?sslmode=disable"
	cfg.Invalidation.Transport = config.TransportPostgres
	cfg.Invalidation.Channel = "dashboard_invalidation"
	eb := awseventbridge.NewFromConfig(awsTestConfig)
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	assert.Nil(t, ProvideBroadcaster(cfg, eb, &Stores{}, zap.NewNop()), "no pool, no transport")
	assert.IsType(t, &pgnotify.Broadcaster{}, ProvideBroadcaster(cfg, eb, &Stores{DB: db}, zap.NewNop()))

	listener := ProvideInvalidationListener(cfg, nil, zap.NewNop())
	require.NotNil(t, listener)
	listener.Stop()
}

func TestProvideAdminRateLimiter(t *testing.T) {
	cfg := testConfig()
	ddb := awsdynamodb.NewFromConfig(awsTestConfig)

	assert.IsType(t, &auth.SlidingWindowLimiter{}, ProvideAdminRateLimiter(cfg, ddb, clockwork.NewFakeClock()))

	cfg.Cache.Provider = "dynamodb"
	assert.IsType(t, &auth.DistributedRateLimiter{}, ProvideAdminRateLimiter(cfg, ddb, clockwork.NewFakeClock()))
}

func TestProvideJWTValidator_RequiresSecret(t *testing.T) {
	cfg := testConfig()
	_, err := ProvideJWTValidator(cfg, clockwork.NewFakeClock())
	require.NoError(t, err)

	cfg.JWTSecret = ""
	_, err = ProvideJWTValidator(cfg, clockwork.NewFakeClock())
	assert.Error(t, err)
}

func TestProvideRouter_ServesHealth(t *testing.T) {
	// Arrange
	ctx := context.Background()
	cfg := testConfig()
	logger := zap.NewNop()
	clock := clockwork.NewFakeClock()
	stores, cleanup, err := ProvideStores(ctx, cfg, logger)
	require.NoError(t, err)
	defer cleanup()
	backend := ProvideCacheBackend(cfg, awsdynamodb.NewFromConfig(awsTestConfig), clock, logger)
	stats := ProvideStatsService(cfg, stores, clock, logger)
	metrics := ProvideMetricsCache(cfg, backend, stats, stores, nil, nil, clock, logger)
	coordinator := ProvideInvalidationCoordinator(metrics, stores, nil, clock, logger)
	errHandler := ProvideErrorHandler(cfg, logger)
	policy := ProvideAccessPolicy(stores)
	validator, err := ProvideJWTValidator(cfg, clock)
	require.NoError(t, err)

	// Act
	router := ProvideRouter(cfg,
		ProvideDashboardHandler(metrics, policy, errHandler, clock, logger),
		ProvideEnrollmentHandler(ProvideEnrollmentService(stores, policy, coordinator, clock, logger), errHandler, logger),
		ProvideUserHandler(ProvideUserActivityService(stores, policy, coordinator, clock, logger), errHandler, logger),
		ProvideAdminHandler(coordinator, backend, errHandler, logger),
		validator,
		ProvideAdminRateLimiter(cfg, nil, clock),
		nil,
		stores,
		logger,
	)

	// Assert
	require.NotNil(t, router)
	assert.NotNil(t, router.Setup())
}
