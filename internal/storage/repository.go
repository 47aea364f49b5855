package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/kina2711/subscription-analytics/internal/ledger"
	ports "github.com/kina2711/subscription-analytics/internal/sheets"
	"github.com/kina2711/subscription-analytics/internal/table"

	_ "modernc.org/sqlite"
)

// Run statuses.
const (
	RunOK     = "ok"
	RunFailed = "failed"
)

// Run is one load of the transaction source, successful or not.
type Run struct {
	ID         string        `json:"id"`
	Source     string        `json:"source"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Report     ledger.Report `json:"report"`
	Status     string        `json:"status"`
	Error      string        `json:"error,omitempty"`
}

// NewRun starts a run record with a fresh id.
func NewRun(source string, started time.Time) Run {
	return Run{
		ID:        uuid.NewString(),
		Source:    source,
		StartedAt: started.UTC(),
	}
}

// Finish stamps the outcome of the run.
func (r *Run) Finish(report ledger.Report, err error, finished time.Time) {
	r.FinishedAt = finished.UTC()
	r.Report = report
	r.Status = RunOK
	r.Error = ""
	if err != nil {
		r.Status = RunFailed
		r.Error = err.Error()
	}
}

func (r Run) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

var _ ports.TransactionSource = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows one writer; serialise through a single connection.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := RunMigrations(dbPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	slog.Debug("SQLite schema ready", "path", dbPath, "version", version)

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// ImportTable replaces the stored payments with the rows of t, mapped
// through roles. Cells are stored as text, exactly as read.
func (r *SQLiteRepository) ImportTable(ctx context.Context, t table.Table, roles table.Roles) (int, error) {
	schema, err := roles.Resolve(t)
	if err != nil {
		return 0, fmt.Errorf("resolve columns: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin import: %w", err)
	}
	defer tx.Rollback()

	q := r.queries.WithTx(tx)
	if err := q.DeletePayments(ctx); err != nil {
		return 0, fmt.Errorf("clear payments: %w", err)
	}

	importedAt := time.Now().UTC().Format(time.RFC3339Nano)
	for i := range t.Rows {
		customer := ""
		if schema.HasCustomer() {
			customer = t.Cell(i, schema.Customer)
		}
		err := q.InsertPayment(ctx, InsertPaymentParams{
			PaymentDate: t.Cell(i, schema.Date),
			Product:     t.Cell(i, schema.Product),
			Amount:      t.Cell(i, schema.Amount),
			CustomerID:  customer,
			ImportedAt:  importedAt,
		})
		if err != nil {
			return 0, fmt.Errorf("insert payment row %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit import: %w", err)
	}

	slog.InfoContext(ctx, "Payments imported to SQLite", "rows", t.Len(), "amount_column", schema.AmountName)
	return t.Len(), nil
}

func (r *SQLiteRepository) Name() string { return "sqlite:payments" }

// Fetch returns the stored payments under the default column names, in
// import order.
func (r *SQLiteRepository) Fetch(ctx context.Context) (table.Table, error) {
	payments, err := r.queries.ListPayments(ctx)
	if err != nil {
		return table.Table{}, fmt.Errorf("%w: list payments: %v", ports.ErrSourceUnavailable, err)
	}

	rows := make([][]string, len(payments))
	for i, p := range payments {
		rows[i] = []string{p.PaymentDate, p.Product, p.Amount, p.CustomerID}
	}
	header := []string{
		table.DefaultDateColumn,
		table.DefaultProductColumn,
		table.DefaultAmountColumn,
		table.DefaultCustomerColumn,
	}
	return table.New(header, rows), nil
}

// CountPayments returns the number of stored payment rows.
func (r *SQLiteRepository) CountPayments(ctx context.Context) (int64, error) {
	n, err := r.queries.CountPayments(ctx)
	if err != nil {
		return 0, fmt.Errorf("count payments: %w", err)
	}
	return n, nil
}

// RecordRun appends run to the run log.
func (r *SQLiteRepository) RecordRun(ctx context.Context, run Run) error {
	err := r.queries.InsertRun(ctx, RunRow{
		ID:                 run.ID,
		Source:             run.Source,
		StartedAt:          run.StartedAt.UTC().Format(time.RFC3339Nano),
		FinishedAt:         run.FinishedAt.UTC().Format(time.RFC3339Nano),
		RowsIn:             int64(run.Report.RowsIn),
		InvalidDate:        int64(run.Report.InvalidDate),
		UnresolvedDuration: int64(run.Report.UnresolvedDuration),
		ZeroAmount:         int64(run.Report.ZeroAmount),
		RowsKept:           int64(run.Report.RowsKept),
		LedgerRows:         int64(run.Report.LedgerRows),
		Status:             run.Status,
		Error:              run.Error,
	})
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// ListRuns returns up to limit runs, newest first.
func (r *SQLiteRepository) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	dbRuns, err := r.queries.ListRuns(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}

	runs := make([]Run, 0, len(dbRuns))
	for _, row := range dbRuns {
		run, err := runFromRow(row)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, nil
}

func runFromRow(row RunRow) (Run, error) {
	started, err := time.Parse(time.RFC3339Nano, row.StartedAt)
	if err != nil {
		return Run{}, fmt.Errorf("run %s: parse started_at: %w", row.ID, err)
	}
	finished, err := time.Parse(time.RFC3339Nano, row.FinishedAt)
	if err != nil {
		return Run{}, fmt.Errorf("run %s: parse finished_at: %w", row.ID, err)
	}
	return Run{
		ID:         row.ID,
		Source:     row.Source,
		StartedAt:  started,
		FinishedAt: finished,
		Report: ledger.Report{
			RowsIn:             int(row.RowsIn),
			InvalidDate:        int(row.InvalidDate),
			UnresolvedDuration: int(row.UnresolvedDuration),
			ZeroAmount:         int(row.ZeroAmount),
			RowsKept:           int(row.RowsKept),
			LedgerRows:         int(row.LedgerRows),
		},
		Status: row.Status,
		Error:  row.Error,
	}, nil
}
