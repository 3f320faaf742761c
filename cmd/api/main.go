package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lms-dashboard/infrastructure/config"
	"lms-dashboard/infrastructure/di"
	"lms-dashboard/pkg/observability"

	"go.uber.org/zap"
)

func main() {
	// Initialize context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize dependency container
	container, cleanup, err := di.InitializeContainer(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}
	defer cleanup()
	logger := container.Logger

	var tracer *observability.TracerProvider
	if cfg.EnableTracing {
		tracer, err = observability.InitTracing(ctx, observability.TracingConfig{
			ServiceName: "lms-dashboard-api",
			Environment: cfg.Environment,
			Endpoint:    cfg.OTLPEndpoint,
			Insecure:    cfg.OTLPInsecure,
			SampleRate:  cfg.TraceSampleRate,
		}, logger)
		if err != nil {
			logger.Warn("Tracing disabled", zap.Error(err))
		}
	}

	if local := container.Cache.Local; local != nil {
		local.StartCleanup(ctx, cfg.Cache.CleanupInterval)
	}

	if listener := container.Listener; listener != nil {
		if err := listener.Start(ctx); err != nil {
			logger.Fatal("Failed to subscribe to invalidations", zap.Error(err))
		}
		defer listener.Stop()
	}

	if cfg.ConfigFile != "" {
		watcher, err := config.NewConfigWatcher(cfg, 500*time.Millisecond, logger)
		if err != nil {
			logger.Warn("Configuration hot reloading unavailable", zap.Error(err))
		} else {
			watcher.OnChange(func(updated *config.Config) {
				container.MetricsCache.SetTTLPolicy(updated.Cache.TTL)
			})
			defer watcher.Stop()
		}
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.ServerAddress,
		Handler:      container.Router.Setup(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("Starting server",
			zap.String("address", cfg.ServerAddress),
			zap.String("environment", cfg.Environment),
			zap.String("statsStore", cfg.StatsStore),
			zap.String("cacheProvider", cfg.Cache.Provider),
		)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	// Graceful shutdown
	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", zap.Error(err))
	}
	if err := tracer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Failed to flush traces", zap.Error(err))
	}

	// Clean up resources
	if err := logger.Sync(); err != nil {
		log.Printf("Failed to sync logger: %v", err)
	}

	log.Println("Server stopped")
}
