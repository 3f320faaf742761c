package di

import (
	"lms-dashboard/application/services"
	"lms-dashboard/infrastructure/config"
	"lms-dashboard/infrastructure/messaging/pgnotify"
	"lms-dashboard/interfaces/http/rest"
	"lms-dashboard/pkg/observability"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// Container holds all application dependencies
type Container struct {
	Config       *config.Config
	Logger       *zap.Logger
	Clock        clockwork.Clock
	Stores       *Stores
	Cache        *CacheBackend
	MetricsCache *services.MetricsCache
	Coordinator  *services.InvalidationCoordinator
	Listener     *pgnotify.Listener
	Collector    *observability.Collector
	CloudWatch   *observability.CloudWatchRecorder
	Router       *rest.Router
}
