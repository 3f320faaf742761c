//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"lms-dashboard/infrastructure/config"

	"github.com/google/wire"
)

// SuperSet is the main provider set containing all providers
var SuperSet = wire.NewSet(
	ProvideLogger,
	ProvideClock,
	ProvideAWSConfig,
	ProvideDynamoDBClient,
	ProvideEventBridgeClient,
	ProvideCloudWatchClient,
	ProvideStores,
	ProvideCacheBackend,
	ProvideComputeGuard,
	ProvideBroadcaster,
	ProvideCollector,
	ProvideCloudWatchRecorder,
	ProvideMetricsRecorder,
	ProvideStatsService,
	ProvideMetricsCache,
	ProvideInvalidationCoordinator,
	ProvideInvalidationListener,
	ProvideAccessPolicy,
	ProvideEnrollmentService,
	ProvideUserActivityService,
	ProvideJWTValidator,
	ProvideAdminRateLimiter,
	ProvideErrorHandler,
	ProvideDashboardHandler,
	ProvideEnrollmentHandler,
	ProvideUserHandler,
	ProvideAdminHandler,
	ProvideRouter,
	wire.Struct(new(Container), "*"),
)

// InitializeContainer creates a fully wired container. The cleanup closes
// the connections the container opened.
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, func(), error) {
	wire.Build(SuperSet)
	return nil, nil, nil // Wire will replace this
}
