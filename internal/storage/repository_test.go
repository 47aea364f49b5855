package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/kina2711/subscription-analytics/internal/ledger"
	"github.com/kina2711/subscription-analytics/internal/table"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "nested", "analytics.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestRunMigrationsIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "analytics.db")
	v1, err := RunMigrations(path)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	v2, err := RunMigrations(path)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if v1 != 2 || v2 != 2 {
		t.Fatalf("expected schema version 2, got %d and %d", v1, v2)
	}
}

func TestImportAndFetch(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	src := table.New(
		[]string{"Mã khách hàng", "Ngày thanh toán", "Sản phẩm", "Đã thanh toán", "Ghi chú"},
		[][]string{
			{"KH01", "01/03/2024", "Gói 3 tháng", "1.200.000₫", "x"},
			{"", "02/03/2024", "Gói 1 tháng", "300.000", ""},
		},
	)
	n, err := repo.ImportTable(ctx, src, table.Roles{})
	if err != nil {
		t.Fatalf("ImportTable: %v", err)
	}
	if n != 2 {
		t.Fatalf("imported %d rows, want 2", n)
	}

	got, err := repo.Fetch(ctx)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if got.Len() != 2 {
		t.Fatalf("fetched %d rows, want 2", got.Len())
	}
	schema, err := table.Roles{}.Resolve(got)
	if err != nil {
		t.Fatalf("fetched table must resolve with default roles: %v", err)
	}
	if got.Cell(0, schema.Amount) != "1.200.000₫" || got.Cell(0, schema.Customer) != "KH01" {
		t.Errorf("unexpected first row %v", got.Rows[0])
	}
	if got.Cell(1, schema.Customer) != "" {
		t.Errorf("blank customer must stay blank, got %q", got.Cell(1, schema.Customer))
	}

	// A second import replaces the first.
	_, err = repo.ImportTable(ctx, table.New(src.Header, src.Rows[:1]), table.Roles{})
	if err != nil {
		t.Fatalf("second ImportTable: %v", err)
	}
	count, err := repo.CountPayments(ctx)
	if err != nil {
		t.Fatalf("CountPayments: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 payment after re-import, got %d", count)
	}
}

func TestImportWithoutCustomerColumn(t *testing.T) {
	repo := newTestRepo(t)
	src := table.New(
		[]string{"Ngày thanh toán", "Sản phẩm", "Đã thanh toán"},
		[][]string{{"01/03/2024", "Gói 1 tháng", "300.000"}},
	)
	if _, err := repo.ImportTable(context.Background(), src, table.Roles{}); err != nil {
		t.Fatalf("ImportTable: %v", err)
	}
	got, err := repo.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if got.Cell(0, 3) != "" {
		t.Fatalf("expected empty customer, got %q", got.Cell(0, 3))
	}
}

func TestImportRejectsMissingColumns(t *testing.T) {
	repo := newTestRepo(t)
	src := table.New([]string{"foo", "bar"}, [][]string{{"1", "2"}})
	_, err := repo.ImportTable(context.Background(), src, table.Roles{})
	if !errors.Is(err, table.ErrColumnNotFound) {
		t.Fatalf("expected ErrColumnNotFound, got %v", err)
	}
}

func TestRecordAndListRuns(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	ok := NewRun("file:payments.csv", base)
	ok.Finish(ledger.Report{RowsIn: 3, InvalidDate: 1, RowsKept: 2, LedgerRows: 120}, nil, base.Add(time.Second))
	if err := repo.RecordRun(ctx, ok); err != nil {
		t.Fatalf("RecordRun: %v", err)
	}

	failed := NewRun("file:payments.csv", base.Add(time.Hour))
	failed.Finish(ledger.Report{}, errors.New("boom"), base.Add(time.Hour+time.Second))
	if err := repo.RecordRun(ctx, failed); err != nil {
		t.Fatalf("RecordRun: %v", err)
	}

	runs, err := repo.ListRuns(ctx, 10)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].ID != failed.ID || runs[0].Status != RunFailed || runs[0].Error != "boom" {
		t.Errorf("newest run should be the failed one, got %+v", runs[0])
	}
	if runs[1].Report != ok.Report || runs[1].Status != RunOK {
		t.Errorf("unexpected first run %+v", runs[1])
	}
	if runs[1].Duration() != time.Second {
		t.Errorf("unexpected duration %v", runs[1].Duration())
	}

	limited, err := repo.ListRuns(ctx, 1)
	if err != nil || len(limited) != 1 {
		t.Fatalf("ListRuns limit: %v, %d", err, len(limited))
	}
}
