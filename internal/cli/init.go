// Package cli provides common CLI initialization utilities.
// This package consolidates repeated initialization patterns across
// cmd/analytics, cmd/analytics-worker, and cmd/ledger-export.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/kina2711/subscription-analytics/internal/backend"
	"github.com/kina2711/subscription-analytics/internal/cache"
	"github.com/kina2711/subscription-analytics/internal/config"
	"github.com/kina2711/subscription-analytics/internal/duration"
	"github.com/kina2711/subscription-analytics/internal/ledger"
	"github.com/kina2711/subscription-analytics/internal/log"
	"github.com/kina2711/subscription-analytics/internal/metrics"
	"github.com/kina2711/subscription-analytics/internal/services"
	"github.com/kina2711/subscription-analytics/internal/storage"
)

// SetupLogger builds the process logger and sets it as the default logger.
func SetupLogger(level, format string) *log.Logger {
	cfg := log.DefaultConfig()
	cfg.Level = log.ParseLevel(level)
	cfg.Format = format
	logger := log.New(cfg)
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration, applies overrides and validates
// it. It exits the process on validation failure.
func LoadAndValidateConfig(overrides ...func(*config.Config)) (*config.Config, *log.Logger) {
	cfg := config.Load()
	for _, o := range overrides {
		o(cfg)
	}
	logger := SetupLogger(cfg.LogLevel, cfg.LogFormat)
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	return cfg, logger
}

// InitSQLite initializes a SQLite repository with the given path.
// Returns the repository or exits the process on failure.
func InitSQLite(logger *log.Logger, dbPath string) *storage.SQLiteRepository {
	sqliteRepo, err := storage.NewSQLiteRepository(dbPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", log.FieldError, err, "path", dbPath)
		os.Exit(1)
	}
	return sqliteRepo
}

// Pipeline is the wired analytics stack shared by every command.
type Pipeline struct {
	Service *services.AnalyticsService
	Metrics *metrics.Metrics
	Caches  *cache.Manager
	Backend *backend.Result
}

// BuildPipeline wires source, processor, run log and metrics from cfg.
func BuildPipeline(ctx context.Context, cfg *config.Config, logger *log.Logger) (*Pipeline, error) {
	resolver, err := duration.FromFile(cfg.DurationRulesFile)
	if err != nil {
		return nil, fmt.Errorf("load duration rules: %w", err)
	}

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	res, err := backend.NewFactory(logger).CreateSource(ctx, bcfg)
	if err != nil {
		return nil, err
	}

	m := metrics.New()
	processor := ledger.NewProcessor(resolver,
		ledger.WithWorkers(cfg.ExpandWorkers),
		ledger.WithLogger(logger),
		ledger.WithRecorder(m))

	svc := services.NewAnalyticsService(res.Source, processor, cfg.Roles(),
		services.WithRunLog(res.Repository),
		services.WithLoadObserver(m),
		services.WithLogger(logger))

	caches := cache.NewManager(logger)
	caches.Register(res.Source.Cache())

	return &Pipeline{
		Service: svc,
		Metrics: m,
		Caches:  caches,
		Backend: res,
	}, nil
}

// Close stops cache cleanup and releases the backend.
func (p *Pipeline) Close() error {
	p.Caches.Stop()
	if p.Backend != nil && p.Backend.Cleanup != nil {
		return p.Backend.Cleanup()
	}
	return nil
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that is closed once cleanup has finished.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String(), log.FieldOperation, log.OpShutdown)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		cancel()
		if cleanup != nil {
			cleanup(shutdownCtx)
		}

		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
		} else {
			logger.Info("Shutdown complete")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
