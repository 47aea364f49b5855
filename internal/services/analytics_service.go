package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/kina2711/subscription-analytics/internal/cohort"
	"github.com/kina2711/subscription-analytics/internal/ledger"
	"github.com/kina2711/subscription-analytics/internal/log"
	"github.com/kina2711/subscription-analytics/internal/report"
	"github.com/kina2711/subscription-analytics/internal/sheets"
	"github.com/kina2711/subscription-analytics/internal/storage"
	"github.com/kina2711/subscription-analytics/internal/table"
)

// RunLog persists the outcome of every load.
type RunLog interface {
	RecordRun(ctx context.Context, run storage.Run) error
	ListRuns(ctx context.Context, limit int) ([]storage.Run, error)
}

// LoadObserver is told about loads that failed before producing a report.
type LoadObserver interface {
	LoadFailed()
}

// Snapshot is the dataset produced by one load.
type Snapshot struct {
	RunID    string
	Source   string
	Dataset  report.Dataset
	Report   ledger.Report
	LoadedAt time.Time
}

// AnalyticsService orchestrates source, processor and run log.
type AnalyticsService struct {
	source    sheets.TransactionSource
	processor *ledger.Processor
	roles     table.Roles
	engine    cohort.Engine
	runs      RunLog
	observer  LoadObserver
	logger    *log.Logger
	now       func() time.Time

	group singleflight.Group

	mu          sync.RWMutex
	last        *Snapshot
	lastVersion uint64
}

// loadTimeout bounds a shared load once no single caller owns it.
const loadTimeout = 5 * time.Minute

type Option func(*AnalyticsService)


func WithRunLog(r RunLog) Option {
	return func(s *AnalyticsService) { s.runs = r }
}

func WithLoadObserver(o LoadObserver) Option {
	return func(s *AnalyticsService) { s.observer = o }
}

func WithLogger(l *log.Logger) Option {
	return func(s *AnalyticsService) {
		if l != nil {
			s.logger = l.WithComponent(log.ComponentAnalysis)
		}
	}
}

func NewAnalyticsService(source sheets.TransactionSource, processor *ledger.Processor, roles table.Roles, opts ...Option) *AnalyticsService {
	if processor == nil {
		processor = ledger.NewProcessor(nil)
	}
	s := &AnalyticsService{
		source:    source,
		processor: processor,
		roles:     roles,
		logger:    log.Nop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.engine = cohort.Engine{Logger: s.logger}
	return s
}

// Load fetches the source and processes it. Concurrent callers share one
// load, which keeps running when a caller gives up. A versioned source whose
// table is unchanged returns the last snapshot without a new run.
func (s *AnalyticsService) Load(ctx context.Context) (Snapshot, error) {
	ch := s.group.DoChan("load", func() (interface{}, error) {
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()
		return s.load(lctx)
	})
	select {
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Snapshot{}, res.Err
		}
		return res.Val.(Snapshot), nil
	}
}

func (s *AnalyticsService) load(ctx context.Context) (Snapshot, error) {
	started := s.now()
	t, version, err := s.fetch(ctx)
	if err == nil {
		if snap, ok := s.unchanged(version); ok {
			s.logger.DebugContext(ctx, "Source unchanged, reusing last load",
				log.FieldRunID, snap.RunID, log.FieldSource, snap.Source)
			return snap, nil
		}
	}

	run := storage.NewRun(s.source.Name(), started)
	logger := s.logger.With(log.FieldRunID, run.ID, log.FieldSource, run.Source)

	var res ledger.Result
	if err == nil {
		res, err = s.process(ctx, t)
	}
	run.Finish(res.Report, err, s.now())
	s.record(ctx, logger, run)

	if err != nil {
		if s.observer != nil {
			s.observer.LoadFailed()
		}
		logger.ErrorContext(ctx, "Load failed", log.FieldOperation, log.OpLoad, log.FieldError, err)
		return Snapshot{}, err
	}

	snap := Snapshot{
		RunID:    run.ID,
		Source:   run.Source,
		Dataset:  report.FromResult(res),
		Report:   res.Report,
		LoadedAt: run.FinishedAt,
	}
	s.mu.Lock()
	s.last = &snap
	s.lastVersion = version
	s.mu.Unlock()

	logger.InfoContext(ctx, "Load complete",
		log.FieldOperation, log.OpLoad,
		log.FieldRowsKept, res.Report.RowsKept,
		log.FieldLedgerRows, res.Report.LedgerRows,
		"duration", run.Duration().String())
	return snap, nil
}

// fetch reads the source table. Version 0 means the source cannot tell
// whether the table changed.
func (s *AnalyticsService) fetch(ctx context.Context) (table.Table, uint64, error) {
	var (
		t       table.Table
		version uint64
		err     error
	)
	if vs, ok := s.source.(sheets.Versioned); ok {
		t, version, err = vs.FetchVersion(ctx)
	} else {
		t, err = s.source.Fetch(ctx)
	}
	if err != nil {
		return table.Table{}, 0, fmt.Errorf("fetch %s: %w", s.source.Name(), err)
	}
	return t, version, nil
}

func (s *AnalyticsService) process(ctx context.Context, t table.Table) (ledger.Result, error) {
	res, err := s.processor.Process(ctx, t, s.roles)
	if err != nil {
		return ledger.Result{}, fmt.Errorf("process %s: %w", s.source.Name(), err)
	}
	return res, nil
}

func (s *AnalyticsService) unchanged(version uint64) (Snapshot, bool) {
	if version == 0 {
		return Snapshot{}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil || s.lastVersion != version {
		return Snapshot{}, false
	}
	return *s.last, true
}

func (s *AnalyticsService) record(ctx context.Context, logger *log.Logger, run storage.Run) {
	if s.runs == nil {
		return
	}
	// The run log must not fail a load that the caller may still use.
	if err := s.runs.RecordRun(context.WithoutCancel(ctx), run); err != nil {
		logger.WarnContext(ctx, "Failed to record run", log.FieldError, err)
	}
}

// Report loads the source and builds the report of the filtered dataset.
func (s *AnalyticsService) Report(ctx context.Context, f report.Filter) (report.Report, Snapshot, error) {
	snap, err := s.Load(ctx)
	if err != nil {
		return report.Report{}, Snapshot{}, err
	}
	return report.Build(snap.Dataset.Filter(f), s.engine), snap, nil
}

// Dataset loads the source and returns the filtered dataset.
func (s *AnalyticsService) Dataset(ctx context.Context, f report.Filter) (report.Dataset, error) {
	snap, err := s.Load(ctx)
	if err != nil {
		return report.Dataset{}, err
	}
	return snap.Dataset.Filter(f), nil
}

// Last returns the most recent successful load, if any.
func (s *AnalyticsService) Last() (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return Snapshot{}, false
	}
	return *s.last, true
}

// Refresh drops any cached source table so the next load goes upstream.
// It reports whether the source had anything to invalidate.
func (s *AnalyticsService) Refresh() bool {
	inv, ok := s.source.(sheets.Invalidator)
	if !ok {
		return false
	}
	inv.Invalidate()
	s.logger.Info("Source cache invalidated", log.FieldOperation, log.OpRefresh, log.FieldSource, s.source.Name())
	return true
}

// Runs lists recent runs, newest first. Without a run log it returns nothing.
func (s *AnalyticsService) Runs(ctx context.Context, limit int) ([]storage.Run, error) {
	if s.runs == nil {
		return nil, nil
	}
	return s.runs.ListRuns(ctx, limit)
}

// SourceName names the configured source.
func (s *AnalyticsService) SourceName() string {
	return s.source.Name()
}
