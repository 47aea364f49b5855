package worker

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/kina2711/subscription-analytics/internal/amqp"
	"github.com/kina2711/subscription-analytics/internal/exporter"
	"github.com/kina2711/subscription-analytics/internal/log"
	"github.com/kina2711/subscription-analytics/internal/report"
	"github.com/kina2711/subscription-analytics/internal/services"
)

// RefreshWorker reloads the source and exports the full report set.
type RefreshWorker struct {
	service   *services.AnalyticsService
	outputDir string
	logger    *log.Logger

	// One export at a time; the queue and the ticker may race.
	mu sync.Mutex
}

func NewRefreshWorker(service *services.AnalyticsService, outputDir string, logger *log.Logger) *RefreshWorker {
	if logger == nil {
		logger = log.Nop()
	}
	return &RefreshWorker{
		service:   service,
		outputDir: outputDir,
		logger:    logger.WithComponent(log.ComponentWorker),
	}
}

// Result describes one completed refresh.
type Result struct {
	ExportID string
	RunID    string
	Dir      string
	Files    []string
}

// HandleRefreshMessage processes a single refresh message from AMQP
func (w *RefreshWorker) HandleRefreshMessage(ctx context.Context, msg *amqp.RefreshMessage) error {
	_, err := w.Refresh(ctx, msg.ID, msg.Reason)
	return err
}

// Refresh invalidates the cached source, loads it and writes every export
// into OUTPUT_DIR/<exportID>/.
func (w *RefreshWorker) Refresh(ctx context.Context, exportID, reason string) (Result, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	start := time.Now()
	w.service.Refresh()

	rep, snap, err := w.service.Report(ctx, report.Filter{})
	if err != nil {
		return Result{}, fmt.Errorf("load report: %w", err)
	}

	dir := filepath.Join(w.outputDir, exportID)
	files, err := exporter.Export(dir, snap.Dataset, rep, w.logger)
	if err != nil {
		return Result{}, fmt.Errorf("export reports: %w", err)
	}

	w.logger.InfoContext(ctx, "Refresh complete",
		log.FieldOperation, log.OpRefresh,
		log.FieldRunID, snap.RunID,
		log.FieldOutputDir, dir,
		log.FieldLedgerRows, snap.Report.LedgerRows,
		log.FieldCohorts, len(rep.Cohorts.Rows),
		"reason", reason,
		"duration", time.Since(start).String())

	return Result{ExportID: exportID, RunID: snap.RunID, Dir: dir, Files: files}, nil
}

// RunPeriodic refreshes every interval until ctx is done.
func (w *RefreshWorker) RunPeriodic(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			msg := amqp.NewRefreshMessage(amqp.ReasonScheduled)
			if _, err := w.Refresh(ctx, msg.ID, msg.Reason); err != nil {
				w.logger.ErrorContext(ctx, "Periodic refresh failed", log.FieldError, err)
			}
		}
	}
}
