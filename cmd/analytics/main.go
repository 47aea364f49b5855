package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/kina2711/subscription-analytics/internal/amqp"
	"github.com/kina2711/subscription-analytics/internal/cli"
	apphttp "github.com/kina2711/subscription-analytics/internal/http"
	"github.com/kina2711/subscription-analytics/internal/log"
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig()

	pipeline, err := cli.BuildPipeline(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize analytics pipeline", log.FieldError, err, "source", cfg.DataSource)
		os.Exit(1)
	}
	defer pipeline.Close()
	if cfg.SourceCacheTTL > 0 {
		pipeline.Caches.StartCleanup(cfg.SourceCacheTTL)
	}

	// The publisher is optional: without AMQP a refresh only drops the cache.
	var publisher apphttp.RefreshPublisher
	if cfg.AMQPEnabled() {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
		defer client.Close()
		publisher = client
		logger.Info("Refresh queue enabled", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	}

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Service:   pipeline.Service,
		Publisher: publisher,
		Metrics:   pipeline.Metrics,
		Logger:    logger,
	})

	_, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
	})

	// Warm the cache so the first dashboard request does not pay for the load.
	go func() {
		if _, err := pipeline.Service.Load(context.Background()); err != nil {
			logger.Warn("Initial load failed", log.FieldError, err, log.FieldOperation, log.OpStartup)
		}
	}()

	logger.Info("Starting analytics server", "port", cfg.Port, log.FieldSource, pipeline.Service.SourceName())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	<-done
	logger.Info("Server stopped gracefully")
}
