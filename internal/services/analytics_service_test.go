package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kina2711/subscription-analytics/internal/ledger"
	"github.com/kina2711/subscription-analytics/internal/report"
	"github.com/kina2711/subscription-analytics/internal/sheets"
	"github.com/kina2711/subscription-analytics/internal/sheets/memory"
	"github.com/kina2711/subscription-analytics/internal/storage"
	"github.com/kina2711/subscription-analytics/internal/table"
)

func payments() table.Table {
	return table.New(
		[]string{table.DefaultDateColumn, table.DefaultProductColumn, table.DefaultAmountColumn, table.DefaultCustomerColumn},
		[][]string{
			{"01/01/2024", "Gói 1 tháng", "300.000", "A"},
			{"15/01/2024", "Gói 1 tháng", "300.000", "B"},
			{"01/02/2024", "Gói 3 tháng", "900.000", "A"},
			{"not a date", "Gói 1 tháng", "300.000", "C"},
		},
	)
}

type fakeRunLog struct {
	mu   sync.Mutex
	runs []storage.Run
	err  error
}

func (f *fakeRunLog) RecordRun(_ context.Context, run storage.Run) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, run)
	return f.err
}

func (f *fakeRunLog) ListRuns(_ context.Context, limit int) ([]storage.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]storage.Run, 0, len(f.runs))
	for i := len(f.runs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, f.runs[i])
	}
	return out, nil
}

type failures struct{ n atomic.Int64 }

func (f *failures) LoadFailed() { f.n.Add(1) }

// gatedSource blocks every Fetch until release is closed.
type gatedSource struct {
	calls   atomic.Int64
	release chan struct{}
	table   table.Table
}

func (g *gatedSource) Name() string { return "gated" }

func (g *gatedSource) Fetch(ctx context.Context) (table.Table, error) {
	g.calls.Add(1)
	select {
	case <-g.release:
		return g.table, nil
	case <-ctx.Done():
		return table.Table{}, ctx.Err()
	}
}

type failingSource struct{}

func (failingSource) Name() string { return "broken" }

func (failingSource) Fetch(context.Context) (table.Table, error) {
	return table.Table{}, sheets.ErrSourceUnavailable
}

func TestLoadRecordsRun(t *testing.T) {
	runs := &fakeRunLog{}
	svc := NewAnalyticsService(memory.NewStatic("test", payments()), nil, table.Roles{}, WithRunLog(runs))

	snap, err := svc.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if snap.Report.RowsIn != 4 || snap.Report.InvalidDate != 1 || snap.Report.RowsKept != 3 {
		t.Errorf("unexpected report %+v", snap.Report)
	}
	if len(snap.Dataset.Transactions) != 3 || !snap.Dataset.HasCustomer {
		t.Errorf("unexpected dataset: %d transactions", len(snap.Dataset.Transactions))
	}
	if len(runs.runs) != 1 {
		t.Fatalf("expected 1 recorded run, got %d", len(runs.runs))
	}
	run := runs.runs[0]
	if run.ID != snap.RunID || run.Status != storage.RunOK || run.Source != "static:test" {
		t.Errorf("unexpected run %+v", run)
	}
	if last, ok := svc.Last(); !ok || last.RunID != snap.RunID {
		t.Errorf("Last() = %+v, %v", last, ok)
	}
}

func TestLoadFailureIsRecorded(t *testing.T) {
	runs := &fakeRunLog{}
	obs := &failures{}
	svc := NewAnalyticsService(failingSource{}, nil, table.Roles{}, WithRunLog(runs), WithLoadObserver(obs))

	_, err := svc.Load(context.Background())
	if !errors.Is(err, sheets.ErrSourceUnavailable) {
		t.Fatalf("expected ErrSourceUnavailable, got %v", err)
	}
	if obs.n.Load() != 1 {
		t.Errorf("expected one failed load, got %d", obs.n.Load())
	}
	if len(runs.runs) != 1 || runs.runs[0].Status != storage.RunFailed || runs.runs[0].Error == "" {
		t.Errorf("failed run not recorded: %+v", runs.runs)
	}
	if _, ok := svc.Last(); ok {
		t.Error("a failed load must not replace the last snapshot")
	}
}

func TestLoadReportsBadAmountColumn(t *testing.T) {
	src := memory.NewStatic("text", table.New(
		[]string{table.DefaultDateColumn, table.DefaultProductColumn, table.DefaultAmountColumn},
		[][]string{{"01/01/2024", "Gói 1 tháng", "paid"}, {"02/01/2024", "Gói 1 tháng", "paid"}},
	))
	svc := NewAnalyticsService(src, nil, table.Roles{})
	if _, err := svc.Load(context.Background()); !errors.Is(err, ledger.ErrAmountNotNumeric) {
		t.Fatalf("expected ErrAmountNotNumeric, got %v", err)
	}
}

func TestRunLogErrorDoesNotFailLoad(t *testing.T) {
	runs := &fakeRunLog{err: errors.New("disk full")}
	svc := NewAnalyticsService(memory.NewStatic("test", payments()), nil, table.Roles{}, WithRunLog(runs))
	if _, err := svc.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
}

func TestConcurrentLoadsShareOneFetch(t *testing.T) {
	src := &gatedSource{release: make(chan struct{}), table: payments()}
	svc := NewAnalyticsService(src, nil, table.Roles{})

	const callers = 8
	var wg sync.WaitGroup
	var started sync.WaitGroup
	errs := make(chan error, callers)
	started.Add(callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			started.Done()
			_, err := svc.Load(context.Background())
			errs <- err
		}()
	}
	started.Wait()
	// Let the goroutines reach the singleflight group before releasing.
	time.Sleep(50 * time.Millisecond)
	close(src.release)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
	}
	if got := src.calls.Load(); got < 1 || got >= callers {
		t.Fatalf("expected loads to be shared, got %d fetches for %d callers", got, callers)
	}
}

func TestReportAppliesFilter(t *testing.T) {
	svc := NewAnalyticsService(memory.NewStatic("test", payments()), nil, table.Roles{})

	f, err := report.ParseFilter([]string{"Gói 3 tháng"}, "", "")
	if err != nil {
		t.Fatalf("ParseFilter: %v", err)
	}
	rep, _, err := svc.Report(context.Background(), f)
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	if len(rep.Products) != 1 || rep.Products[0] != "Gói 3 tháng" {
		t.Errorf("unexpected products %v", rep.Products)
	}
	if rep.KPIs.TotalRevenue < 899999.99 || rep.KPIs.TotalRevenue > 900000.01 {
		t.Errorf("unexpected total revenue %v", rep.KPIs.TotalRevenue)
	}

	ds, err := svc.Dataset(context.Background(), report.Filter{})
	if err != nil {
		t.Fatalf("Dataset: %v", err)
	}
	if len(ds.Transactions) != 3 {
		t.Errorf("unfiltered dataset has %d transactions", len(ds.Transactions))
	}
}

func TestRefreshInvalidatesCachedSource(t *testing.T) {
	static := memory.NewStatic("test", payments())
	cached := sheets.NewCached(static, time.Hour, nil)
	svc := NewAnalyticsService(cached, nil, table.Roles{})

	if _, err := svc.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	static.Set(table.New(payments().Header, payments().Rows[:1]))

	snap, _ := svc.Load(context.Background())
	if snap.Report.RowsIn != 4 {
		t.Fatalf("expected cached table, got %d rows", snap.Report.RowsIn)
	}
	if !svc.Refresh() {
		t.Fatal("cached source should be invalidated")
	}
	snap, _ = svc.Load(context.Background())
	if snap.Report.RowsIn != 1 {
		t.Fatalf("expected fresh table after refresh, got %d rows", snap.Report.RowsIn)
	}

	plain := NewAnalyticsService(static, nil, table.Roles{})
	if plain.Refresh() {
		t.Error("an uncached source has nothing to invalidate")
	}
}

func TestCachedReadsRecordOneRun(t *testing.T) {
	runs := &fakeRunLog{}
	cached := sheets.NewCached(memory.NewStatic("test", payments()), 10*time.Minute, nil)
	svc := NewAnalyticsService(cached, nil, table.Roles{}, WithRunLog(runs))

	var runID string
	for i := 0; i < 5; i++ {
		_, snap, err := svc.Report(context.Background(), report.Filter{})
		if err != nil {
			t.Fatalf("Report %d: %v", i, err)
		}
		if i > 0 && snap.RunID != runID {
			t.Fatalf("read %d produced a new run %s", i, snap.RunID)
		}
		runID = snap.RunID
	}
	if len(runs.runs) != 1 {
		t.Fatalf("expected 1 run for 5 cached reads, got %d", len(runs.runs))
	}

	svc.Refresh()
	if _, err := svc.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(runs.runs) != 2 {
		t.Fatalf("expected a new run after refresh, got %d", len(runs.runs))
	}

	// Sources without versions are processed on every load.
	plain := NewAnalyticsService(memory.NewStatic("plain", payments()), nil, table.Roles{}, WithRunLog(runs))
	for i := 0; i < 2; i++ {
		if _, err := plain.Load(context.Background()); err != nil {
			t.Fatalf("Load: %v", err)
		}
	}
	if len(runs.runs) != 4 {
		t.Fatalf("expected 4 runs in total, got %d", len(runs.runs))
	}
}

func TestCancelledCallerDoesNotFailSharedLoad(t *testing.T) {
	runs := &fakeRunLog{}
	obs := &failures{}
	src := &gatedSource{release: make(chan struct{}), table: payments()}
	svc := NewAnalyticsService(src, nil, table.Roles{}, WithRunLog(runs), WithLoadObserver(obs))

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := svc.Load(ctx)
		first <- err
	}()
	for src.calls.Load() == 0 {
		time.Sleep(time.Millisecond)
	}
	second := make(chan error, 1)
	go func() {
		_, err := svc.Load(context.Background())
		second <- err
	}()

	cancel()
	if err := <-first; !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled caller: expected context.Canceled, got %v", err)
	}
	close(src.release)
	if err := <-second; err != nil {
		t.Fatalf("other caller failed: %v", err)
	}

	if obs.n.Load() != 0 {
		t.Errorf("a caller giving up must not count as a failed load, got %d", obs.n.Load())
	}
	runs.mu.Lock()
	defer runs.mu.Unlock()
	if len(runs.runs) == 0 {
		t.Fatal("the shared load should still be recorded")
	}
	for _, run := range runs.runs {
		if run.Status != storage.RunOK {
			t.Errorf("unexpected failed run %+v", run)
		}
	}
}

func TestRunsWithoutRunLog(t *testing.T) {
	svc := NewAnalyticsService(memory.NewStatic("test", payments()), nil, table.Roles{})
	runs, err := svc.Runs(context.Background(), 5)
	if err != nil || runs != nil {
		t.Fatalf("Runs() = %v, %v", runs, err)
	}
}
