// Package main implements the Lambda that applies dashboard invalidations
// raised by writers outside the dashboard to the shared DynamoDB cache table.
// Events carrying an origin come from a dashboard process that already
// evicted the shared table, so they are acknowledged without work. Processes
// with their own in-memory store are kept in step by the postgres transport,
// never by this worker.
package main

import (
	"context"
	"log"

	"lms-dashboard/domain/events"
	"lms-dashboard/infrastructure/config"
	"lms-dashboard/infrastructure/di"
	"lms-dashboard/infrastructure/messaging/eventbridge"

	awsevents "github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"
)

// invalidationApplier evicts the entries named by a remote invalidation
type invalidationApplier interface {
	Apply(ctx context.Context, event events.InvalidationEvent)
}

// metricsFlusher ships metrics buffered during the invocation
type metricsFlusher interface {
	Flush(ctx context.Context)
}

type worker struct {
	applier invalidationApplier
	flusher metricsFlusher
	logger  *zap.Logger
}

// HandleEvent applies one EventBridge event. Malformed events are logged and
// acknowledged; retrying them cannot succeed.
func (w *worker) HandleEvent(ctx context.Context, event awsevents.CloudWatchEvent) error {
	if w.flusher != nil {
		defer w.flusher.Flush(ctx)
	}

	if event.Source != eventbridge.SourceDashboard {
		w.logger.Debug("Skipping event from another source",
			zap.String("source", event.Source),
			zap.String("id", event.ID),
		)
		return nil
	}

	invalidation, err := eventbridge.Decode(event.DetailType, event.Detail)
	if err != nil {
		w.logger.Error("Dropping malformed invalidation",
			zap.String("id", event.ID),
			zap.String("detailType", event.DetailType),
			zap.Error(err),
		)
		return nil
	}

	if invalidation.Origin != "" {
		w.logger.Debug("Shared cache already evicted by publisher",
			zap.String("id", event.ID),
			zap.String("origin", invalidation.Origin),
		)
		return nil
	}

	w.applier.Apply(ctx, invalidation)
	w.logger.Info("Applied external invalidation",
		zap.String("id", event.ID),
		zap.String("target", string(invalidation.Target)),
		zap.String("aggregateID", invalidation.AggregateID),
	)
	return nil
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// A private in-memory store here would be evicted while every other
	// process keeps serving its stale copy
	if cfg.Cache.Provider != "dynamodb" {
		log.Fatalf("Invalidation worker requires CACHE_PROVIDER=dynamodb, got %q", cfg.Cache.Provider)
	}

	container, _, err := di.InitializeContainer(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Failed to initialize dependency container: %v", err)
	}

	w := &worker{
		applier: container.Coordinator,
		logger:  container.Logger,
	}
	if container.CloudWatch != nil {
		w.flusher = container.CloudWatch
	}

	container.Logger.Info("Invalidation worker initialized",
		zap.String("cacheProvider", cfg.Cache.Provider),
	)
	lambda.Start(w.HandleEvent)
}
