package di

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"lms-dashboard/application/ports"
	"lms-dashboard/application/services"
	"lms-dashboard/infrastructure/cache"
	"lms-dashboard/infrastructure/config"
	"lms-dashboard/infrastructure/messaging/eventbridge"
	"lms-dashboard/infrastructure/messaging/pgnotify"
	"lms-dashboard/infrastructure/persistence/dynamodb"
	"lms-dashboard/infrastructure/persistence/memory"
	"lms-dashboard/infrastructure/persistence/postgres"
	"lms-dashboard/interfaces/http/rest"
	"lms-dashboard/interfaces/http/rest/handlers"
	"lms-dashboard/pkg/auth"
	pkgerrors "lms-dashboard/pkg/errors"
	"lms-dashboard/pkg/observability"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awscloudwatch "github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.Environment == "production" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build(zap.Fields(zap.String("environment", cfg.Environment)))
}

// ProvideClock returns the wall clock
func ProvideClock() clockwork.Clock {
	return clockwork.NewRealClock()
}

// ProvideAWSConfig creates AWS configuration
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWSRegion),
	)
}

// ProvideDynamoDBClient creates a DynamoDB client
func ProvideDynamoDBClient(awsCfg aws.Config) *awsdynamodb.Client {
	return awsdynamodb.NewFromConfig(awsCfg)
}

// ProvideEventBridgeClient creates an EventBridge client
func ProvideEventBridgeClient(awsCfg aws.Config) *awseventbridge.Client {
	return awseventbridge.NewFromConfig(awsCfg)
}

// ProvideCloudWatchClient creates a CloudWatch client
func ProvideCloudWatchClient(awsCfg aws.Config) *awscloudwatch.Client {
	return awscloudwatch.NewFromConfig(awsCfg)
}

// Stores groups the ports served by the configured stats source
type Stores struct {
	Stats       ports.StatsReader
	Audit       ports.AuditLog
	Directory   ports.Directory
	Syncer      ports.CompletionSyncer
	Enrollments ports.EnrollmentRepository
	Users       ports.UserRepository
	Readiness   map[string]rest.ReadinessChecker

	// Memory is set only for the in-process store, so demos can seed it
	Memory *memory.Store
	// DB is the Postgres pool, nil for the in-process store
	DB *sql.DB
}

// ProvideStores opens the stats source. The cleanup closes the database pool.
func ProvideStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Stores, func(), error) {
	if cfg.StatsStore == "memory" {
		store := memory.NewStore()
		logger.Warn("Using in-memory stats store; data is lost on restart")
		return &Stores{
			Stats:       store,
			Audit:       store,
			Directory:   store,
			Syncer:      store,
			Enrollments: store,
			Users:       store.Users(),
			Readiness:   map[string]rest.ReadinessChecker{},
			Memory:      store,
		}, func() {}, nil
	}

	db, err := postgres.Open(ctx, cfg.DatabaseURL, postgres.PoolConfig{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := db.Close(); err != nil {
			logger.Warn("Failed to close database", zap.Error(err))
		}
	}

	if cfg.Database.AutoMigrate {
		applied, err := postgres.Migrate(ctx, db, logger)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("failed to migrate database: %w", err)
		}
		logger.Info("Database schema up to date", zap.Int("applied", applied))
	}

	store := postgres.NewStore(db, logger)
	return &Stores{
		Stats:       store,
		Audit:       store,
		Directory:   store,
		Syncer:      store,
		Enrollments: postgres.NewEnrollmentRepository(db, logger),
		Users:       postgres.NewUserRepository(db, logger),
		Readiness:   map[string]rest.ReadinessChecker{"postgres": store},
		DB:          db,
	}, cleanup, nil
}

// CacheBackend is the configured cache store. Local is the in-process store
// when one is used, and nil for the shared DynamoDB table.
type CacheBackend struct {
	Store ports.Cache
	Local *cache.MemoryCache
}

// ProvideCacheBackend builds the cache store, wrapped in a circuit breaker when enabled
func ProvideCacheBackend(cfg *config.Config, client *awsdynamodb.Client, clock clockwork.Clock, logger *zap.Logger) *CacheBackend {
	backend := &CacheBackend{}
	if cfg.Cache.Provider == "dynamodb" {
		backend.Store = dynamodb.NewCacheStore(client, cfg.Cache.TableName, clock, logger)
	} else {
		backend.Local = cache.NewMemoryCache(cfg.Cache.MaxItems, cfg.Cache.MaxMemoryMB<<20, clock, logger)
		backend.Store = backend.Local
	}

	if cfg.Cache.Breaker.Enabled {
		backend.Store = cache.NewBreakerCache(backend.Store, cache.BreakerConfig{
			Name:             "dashboard-cache-" + cfg.Cache.Provider,
			MaxRequests:      cfg.Cache.Breaker.MaxRequests,
			Interval:         cfg.Cache.Breaker.Interval,
			Timeout:          cfg.Cache.Breaker.Timeout,
			FailureThreshold: cfg.Cache.Breaker.FailureRatio,
			MinRequests:      cfg.Cache.Breaker.MinRequests,
		}, logger)
	}
	return backend
}

// ProvideComputeGuard returns the cross-process recompute guard, or nil when disabled
func ProvideComputeGuard(cfg *config.Config, client *awsdynamodb.Client, clock clockwork.Clock, logger *zap.Logger) ports.ComputeGuard {
	if !cfg.Cache.Guard.Enabled {
		return nil
	}
	return dynamodb.NewComputeGuard(client, cfg.Cache.TableName, cfg.Cache.Guard.Lease, clock, logger)
}

// ProvideBroadcaster returns the configured invalidation transport, or nil
// when every process shares one cache store
func ProvideBroadcaster(cfg *config.Config, client *awseventbridge.Client, stores *Stores, logger *zap.Logger) ports.InvalidationBroadcaster {
	switch cfg.Invalidation.Transport {
	case config.TransportEventBridge:
		return eventbridge.NewBroadcaster(client, cfg.Invalidation.EventBusName, logger)
	case config.TransportPostgres:
		if stores.DB == nil {
			return nil
		}
		return pgnotify.NewBroadcaster(stores.DB, cfg.Invalidation.Channel, logger)
	}
	return nil
}

// ProvideInvalidationListener subscribes this process to invalidations
// notified by its peers. It is nil unless the postgres transport is used.
func ProvideInvalidationListener(cfg *config.Config, coordinator *services.InvalidationCoordinator, logger *zap.Logger) *pgnotify.Listener {
	if cfg.Invalidation.Transport != config.TransportPostgres {
		return nil
	}
	return pgnotify.NewListener(cfg.DatabaseURL, cfg.Invalidation.Channel, coordinator, logger)
}

// ProvideCollector creates the Prometheus collector, or nil when metrics are
// disabled or the process runs in Lambda where nothing scrapes it
func ProvideCollector(cfg *config.Config) *observability.Collector {
	if !cfg.EnableMetrics || cfg.IsLambda {
		return nil
	}
	return observability.NewCollector(cfg.MetricsNamespace)
}

// ProvideCloudWatchRecorder creates the CloudWatch recorder used by Lambdas,
// or nil elsewhere
func ProvideCloudWatchRecorder(cfg *config.Config, client *awscloudwatch.Client, clock clockwork.Clock, logger *zap.Logger) *observability.CloudWatchRecorder {
	if !cfg.EnableMetrics || !cfg.IsLambda {
		return nil
	}
	return observability.NewCloudWatchRecorder(cfg.MetricsNamespace, client, clock, logger)
}

// ProvideMetricsRecorder picks the active recorder. nil leaves the cache unmetered.
func ProvideMetricsRecorder(collector *observability.Collector, cw *observability.CloudWatchRecorder) ports.MetricsRecorder {
	switch {
	case cw != nil:
		return cw
	case collector != nil:
		return collector
	}
	return nil
}

// ProvideStatsService creates the stats service with role-based progress scoping
func ProvideStatsService(cfg *config.Config, stores *Stores, clock clockwork.Clock, logger *zap.Logger) *services.StatsService {
	scoper := services.NewRoleScoper(stores.Stats, stores.Directory)
	return services.NewStatsService(stores.Stats, stores.Audit, stores.Directory, scoper, clock, cfg.Location(), logger)
}

// ProvideMetricsCache creates the get-or-compute dashboard cache
func ProvideMetricsCache(
	cfg *config.Config,
	backend *CacheBackend,
	stats *services.StatsService,
	stores *Stores,
	guard ports.ComputeGuard,
	recorder ports.MetricsRecorder,
	clock clockwork.Clock,
	logger *zap.Logger,
) *services.MetricsCache {
	opts := []services.MetricsCacheOption{services.WithClock(clock)}
	if guard != nil {
		opts = append(opts, services.WithComputeGuard(guard, cfg.Cache.Guard.Wait, cfg.Cache.Guard.Poll))
	}
	if recorder != nil {
		opts = append(opts, services.WithMetricsRecorder(recorder))
	}
	return services.NewMetricsCache(backend.Store, stats, stores.Syncer, cfg.Cache.TTL, logger, opts...)
}

// ProvideInvalidationCoordinator creates the invalidation coordinator
func ProvideInvalidationCoordinator(
	metrics *services.MetricsCache,
	stores *Stores,
	broadcaster ports.InvalidationBroadcaster,
	clock clockwork.Clock,
	logger *zap.Logger,
) *services.InvalidationCoordinator {
	return services.NewInvalidationCoordinator(metrics, stores.Directory, broadcaster, clock, logger)
}

// ProvideAccessPolicy creates the tenant access policy shared by reads and writes
func ProvideAccessPolicy(stores *Stores) *services.AccessPolicy {
	return services.NewAccessPolicy(stores.Stats, stores.Directory)
}

// ProvideEnrollmentService creates the enrollment write service
func ProvideEnrollmentService(stores *Stores, policy *services.AccessPolicy, coordinator *services.InvalidationCoordinator, clock clockwork.Clock, logger *zap.Logger) *services.EnrollmentService {
	return services.NewEnrollmentService(stores.Enrollments, stores.Audit, policy, coordinator, clock, logger)
}

// ProvideUserActivityService creates the user activity write service
func ProvideUserActivityService(stores *Stores, policy *services.AccessPolicy, coordinator *services.InvalidationCoordinator, clock clockwork.Clock, logger *zap.Logger) *services.UserActivityService {
	return services.NewUserActivityService(stores.Users, stores.Audit, policy, coordinator, clock, logger)
}

// ProvideJWTValidator creates the token validator for LMS-issued tokens
func ProvideJWTValidator(cfg *config.Config, clock clockwork.Clock) (*auth.JWTValidator, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	return auth.NewJWTValidator(auth.JWTConfig{
		SigningMethod: "HS256",
		SecretKey:     cfg.JWTSecret,
		Issuer:        cfg.JWTIssuer,
	}, clock)
}

// ProvideAdminRateLimiter limits operator cache clears. Processes sharing the
// DynamoDB cache table share one counter; otherwise the limit is per process.
func ProvideAdminRateLimiter(cfg *config.Config, client *awsdynamodb.Client, clock clockwork.Clock) auth.RateLimiter {
	if cfg.Cache.Provider == "dynamodb" {
		return auth.NewDistributedRateLimiter(
			client,
			cfg.Cache.TableName,
			cfg.AdminRateLimit,
			cfg.AdminRateWindow,
			"ADMIN",
			clock,
		)
	}
	return auth.NewSlidingWindowLimiter(cfg.AdminRateLimit, cfg.AdminRateWindow, clock)
}

// ProvideErrorHandler creates the HTTP error handler; details are exposed in development
func ProvideErrorHandler(cfg *config.Config, logger *zap.Logger) *pkgerrors.ErrorHandler {
	return pkgerrors.NewErrorHandler(logger, cfg.IsDevelopment())
}

// ProvideDashboardHandler creates the dashboard read handler
func ProvideDashboardHandler(metrics *services.MetricsCache, policy *services.AccessPolicy, errHandler *pkgerrors.ErrorHandler, clock clockwork.Clock, logger *zap.Logger) *handlers.DashboardHandler {
	return handlers.NewDashboardHandler(metrics, policy, errHandler, clock, logger)
}

// ProvideEnrollmentHandler creates the enrollment write handler
func ProvideEnrollmentHandler(enrollments *services.EnrollmentService, errHandler *pkgerrors.ErrorHandler, logger *zap.Logger) *handlers.EnrollmentHandler {
	return handlers.NewEnrollmentHandler(enrollments, errHandler, logger)
}

// ProvideUserHandler creates the user activity handler
func ProvideUserHandler(users *services.UserActivityService, errHandler *pkgerrors.ErrorHandler, logger *zap.Logger) *handlers.UserHandler {
	return handlers.NewUserHandler(users, errHandler, logger)
}

// ProvideAdminHandler creates the operator cache handler. Stats are only
// reported for the in-process store.
func ProvideAdminHandler(coordinator *services.InvalidationCoordinator, backend *CacheBackend, errHandler *pkgerrors.ErrorHandler, logger *zap.Logger) *handlers.AdminHandler {
	var stats handlers.CacheStatsProvider
	if backend.Local != nil {
		stats = backend.Local
	}
	return handlers.NewAdminHandler(coordinator, stats, errHandler, logger)
}

// ProvideRouter assembles the HTTP router
func ProvideRouter(
	cfg *config.Config,
	dashboardHandler *handlers.DashboardHandler,
	enrollmentHandler *handlers.EnrollmentHandler,
	userHandler *handlers.UserHandler,
	adminHandler *handlers.AdminHandler,
	validator *auth.JWTValidator,
	limiter auth.RateLimiter,
	collector *observability.Collector,
	stores *Stores,
	logger *zap.Logger,
) *rest.Router {
	return rest.NewRouter(
		dashboardHandler,
		enrollmentHandler,
		userHandler,
		adminHandler,
		validator,
		limiter,
		collector,
		stores.Readiness,
		rest.RouterConfig{EnableCORS: cfg.EnableCORS, AllowedOrigins: cfg.AllowedOrigins},
		logger,
	)
}
