package main

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/kina2711/subscription-analytics/internal/amqp"
	"github.com/kina2711/subscription-analytics/internal/cli"
	"github.com/kina2711/subscription-analytics/internal/log"
	"github.com/kina2711/subscription-analytics/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig()
	logger = logger.WithComponent(log.ComponentWorker)

	logger.Info("Starting analytics-worker", "output_dir", cfg.OutputDir, "interval", cfg.RefreshInterval.String())

	pipeline, err := cli.BuildPipeline(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize analytics pipeline", log.FieldError, err)
		os.Exit(1)
	}
	defer pipeline.Close()

	var client *amqp.Client
	if cfg.AMQPEnabled() {
		client, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
		defer client.Close()
	} else {
		logger.Info("AMQP disabled - running periodic refresh only")
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)
	refresher := worker.NewRefreshWorker(pipeline.Service, cfg.OutputDir, logger)

	// On startup, export once so OUTPUT_DIR is never empty.
	startup := amqp.NewRefreshMessage(amqp.ReasonStartup)
	if res, err := refresher.Refresh(ctx, startup.ID, startup.Reason); err != nil {
		logger.Error("Startup refresh failed", log.FieldError, err, log.FieldOperation, log.OpStartup)
		// Don't exit - the next refresh may succeed
	} else {
		logger.Info("Startup refresh written", log.FieldOutputDir, res.Dir, "files", len(res.Files))
	}

	if client != nil {
		go func() {
			if err := client.ConsumeRefresh(ctx, refresher.HandleRefreshMessage); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Refresh consumption failed", log.FieldError, err)
			}
		}()
	}

	go refresher.RunPeriodic(ctx, cfg.RefreshInterval)

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully")
}
