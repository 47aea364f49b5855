package ledger

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/kina2711/subscription-analytics/internal/core"
	"github.com/kina2711/subscription-analytics/internal/table"
)

const eps = 1e-6

func paymentsTable(rows ...[]string) table.Table {
	return table.New([]string{
		table.DefaultDateColumn,
		table.DefaultProductColumn,
		table.DefaultAmountColumn,
		table.DefaultCustomerColumn,
	}, rows)
}

func TestExpandThreeMonthPackage(t *testing.T) {
	tx := core.NewCleanedTransaction(core.Transaction{
		ID:          7,
		PaymentDate: core.NewDate(2024, 3, 1),
		Product:     "Gói 3 tháng",
		AmountRaw:   "1.200.000₫",
		CustomerID:  "KH01",
	}, 90)

	rows, err := Expand(tx)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if len(rows) != 90 {
		t.Fatalf("expected 90 rows, got %d", len(rows))
	}
	if rows[0].Date.String() != "2024-03-01" || rows[89].Date.String() != "2024-05-29" {
		t.Fatalf("unexpected range %s..%s", rows[0].Date, rows[89].Date)
	}
	var sum float64
	for i, r := range rows {
		if i > 0 && !r.Date.Equal(rows[i-1].Date.AddDays(1).Time) {
			t.Fatalf("gap or duplicate at %d: %s after %s", i, r.Date, rows[i-1].Date)
		}
		if math.Abs(r.DailyRevenue-13333.333333) > 1e-3 {
			t.Fatalf("row %d daily revenue %v", i, r.DailyRevenue)
		}
		if r.TransactionID != 7 || r.CustomerID != "KH01" || r.Product != "Gói 3 tháng" {
			t.Fatalf("row %d lost its owner: %+v", i, r)
		}
		sum += r.DailyRevenue
	}
	if math.Abs(sum-1200000) > eps {
		t.Fatalf("revenue not conserved: %v", sum)
	}
}

func TestExpandRejectsZeroDuration(t *testing.T) {
	tx := core.NewCleanedTransaction(core.Transaction{ID: 1, PaymentDate: core.NewDate(2024, 1, 1), AmountRaw: "100"}, 0)
	rows, err := Expand(tx)
	if !errors.Is(err, ErrNoEntitlement) || rows != nil {
		t.Fatalf("expected ErrNoEntitlement and no rows, got %v (%d rows)", err, len(rows))
	}
}

func TestProcessScenario(t *testing.T) {
	p := NewProcessor(nil)
	res, err := p.Process(context.Background(), paymentsTable(
		[]string{"01/03/2024", "Gói 3 tháng", "1.200.000₫", "KH01"},
	), table.Roles{})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(res.Transactions) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(res.Transactions))
	}
	ct := res.Transactions[0]
	if ct.DurationDays != 90 || ct.Amount != 1200000 || math.Abs(ct.DailyRate-13333.33) > 0.01 {
		t.Fatalf("unexpected cleaned transaction %+v", ct)
	}
	if len(res.Ledger) != 90 {
		t.Fatalf("expected 90 ledger rows, got %d", len(res.Ledger))
	}
	if !res.HasCustomer {
		t.Fatalf("expected customer column to be detected")
	}
}

func TestProcessTrialProducesOneRow(t *testing.T) {
	p := NewProcessor(nil)
	res, err := p.Process(context.Background(), paymentsTable(
		[]string{"05/01/2024", "Học thử", "10.000", "KH02"},
	), table.Roles{})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(res.Transactions) != 1 || res.Transactions[0].DurationDays != 1 {
		t.Fatalf("expected one 1-day transaction, got %+v", res.Transactions)
	}
	if len(res.Ledger) != 1 || res.Ledger[0].DailyRevenue != 10000 {
		t.Fatalf("expected exactly one ledger row of 10000, got %+v", res.Ledger)
	}
}

func TestProcessDropsUnparseableDate(t *testing.T) {
	rows := [][]string{
		{"01/03/2024", "Gói 1 tháng", "300.000", "KH01"},
		{"02/03/2024", "Gói 1 tuần", "70.000", "KH02"},
		{"03/03/2024", "Gói 2 tuần", "140.000", "KH03"},
	}
	p := NewProcessor(nil)
	base, err := p.Process(context.Background(), paymentsTable(rows...), table.Roles{})
	if err != nil {
		t.Fatal(err)
	}

	withBad := append([][]string{{"", "Gói 1 tháng", "300.000", "KH09"}}, rows...)
	res, err := p.Process(context.Background(), paymentsTable(withBad...), table.Roles{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Report.RowsIn != len(withBad) || res.Report.InvalidDate != 1 {
		t.Fatalf("unexpected report %+v", res.Report)
	}
	if len(res.Transactions) != len(base.Transactions) {
		t.Fatalf("expected %d transactions, got %d", len(base.Transactions), len(res.Transactions))
	}
	if len(res.Ledger) != len(base.Ledger) {
		t.Fatalf("bad row leaked into ledger: %d vs %d", len(res.Ledger), len(base.Ledger))
	}
	for _, r := range res.Ledger {
		if r.CustomerID == "KH09" {
			t.Fatalf("dropped customer present in ledger")
		}
	}
}

func TestProcessDropsUnresolvedDuration(t *testing.T) {
	p := NewProcessor(nil)
	res, err := p.Process(context.Background(), paymentsTable(
		[]string{"01/03/2024", "Combo sách", "500.000", "KH01"},
		[]string{"01/03/2024", "Gói 1 tuần", "miễn phí", "KH02"},
		[]string{"01/03/2024", "Gói 1 tuần", "70.000", "KH03"},
	), table.Roles{})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	want := Report{RowsIn: 3, UnresolvedDuration: 1, ZeroAmount: 1, RowsKept: 2, LedgerRows: 14}
	if res.Report != want {
		t.Fatalf("report: got %+v want %+v", res.Report, want)
	}
	for _, ct := range res.Transactions {
		if ct.DurationDays == 0 {
			t.Fatalf("zero-duration transaction survived: %+v", ct)
		}
	}
	for _, r := range res.Ledger {
		if math.IsNaN(r.DailyRevenue) || math.IsInf(r.DailyRevenue, 0) {
			t.Fatalf("undefined revenue in ledger: %+v", r)
		}
	}
}

func TestProcessConservesRevenue(t *testing.T) {
	p := NewProcessor(nil, WithWorkers(3))
	res, err := p.Process(context.Background(), paymentsTable(
		[]string{"01/01/2024", "Gói 12 tháng", "2.990.000", "A"},
		[]string{"15/01/2024", "Gói 6 tháng", "1.590.000₫", "B"},
		[]string{"31/01/2024", "Gói 1 tháng", "299,000 VNĐ", "C"},
		[]string{"29/02/2024", "Gói 02 tháng", "550.000", "D"},
		[]string{"01/03/2024", "Học thử", "0", "E"},
	), table.Roles{})
	if err != nil {
		t.Fatal(err)
	}
	byTx := map[int]float64{}
	for _, r := range res.Ledger {
		byTx[r.TransactionID] += r.DailyRevenue
	}
	for _, ct := range res.Transactions {
		if math.Abs(byTx[ct.ID]-ct.Amount) > 1e-3 {
			t.Fatalf("transaction %d: ledger sums to %v, amount %v", ct.ID, byTx[ct.ID], ct.Amount)
		}
	}
	if len(byTx) != len(res.Transactions) {
		t.Fatalf("ledger rows trace to %d transactions, want %d", len(byTx), len(res.Transactions))
	}
}

func TestProcessWorkerCountDoesNotChangeOutput(t *testing.T) {
	tbl := paymentsTable(
		[]string{"01/01/2024", "Gói 1 tháng", "300.000", "A"},
		[]string{"10/01/2024", "Gói 2 tuần", "150.000", "B"},
		[]string{"20/01/2024", "Gói 1 tuần", "80.000", "C"},
		[]string{"25/01/2024", "Gói 3 tháng", "900.000", "D"},
	)
	seq, err := NewProcessor(nil).Process(context.Background(), tbl, table.Roles{})
	if err != nil {
		t.Fatal(err)
	}
	par, err := NewProcessor(nil, WithWorkers(8)).Process(context.Background(), tbl, table.Roles{})
	if err != nil {
		t.Fatal(err)
	}
	if len(seq.Ledger) != len(par.Ledger) {
		t.Fatalf("length differs: %d vs %d", len(seq.Ledger), len(par.Ledger))
	}
	for i := range seq.Ledger {
		if seq.Ledger[i] != par.Ledger[i] {
			t.Fatalf("row %d differs: %+v vs %+v", i, seq.Ledger[i], par.Ledger[i])
		}
	}
}

type ledgerKey struct {
	date     string
	revenue  float64
	customer string
	product  string
}

func keys(rows []core.LedgerRow) map[ledgerKey]int {
	out := map[ledgerKey]int{}
	for _, r := range rows {
		out[ledgerKey{r.Date.String(), math.Round(r.DailyRevenue*1e6) / 1e6, r.CustomerID, r.Product}]++
	}
	return out
}

func TestProcessRoundTrip(t *testing.T) {
	p := NewProcessor(nil)
	first, err := p.Process(context.Background(), paymentsTable(
		[]string{"01/03/2024", "Gói 3 tháng", "1.200.000₫", "KH01"},
		[]string{"", "Gói 1 tháng", "300.000", "KH02"},
		[]string{"2024-03-05", "Gói 1 tuần", "n/a", ""},
		[]string{"07/03/2024", "Combo", "1", "KH03"},
		[]string{"08/03/2024 10:15", "Gói 1 năm", "3,650,000", "KH04"},
	), table.Roles{})
	if err != nil {
		t.Fatal(err)
	}
	second, err := p.Process(context.Background(), ToTable(first.Transactions), table.Roles{})
	if err != nil {
		t.Fatal(err)
	}
	a, b := keys(first.Ledger), keys(second.Ledger)
	if len(a) != len(b) || len(first.Ledger) != len(second.Ledger) {
		t.Fatalf("ledger changed on round trip: %d vs %d rows", len(first.Ledger), len(second.Ledger))
	}
	for k, n := range a {
		if b[k] != n {
			t.Fatalf("ledger row %+v: %d vs %d", k, n, b[k])
		}
	}
}

func TestProcessEmptyInput(t *testing.T) {
	p := NewProcessor(nil)
	res, err := p.Process(context.Background(), table.Table{}, table.Roles{})
	if err != nil {
		t.Fatalf("empty input must not fail: %v", err)
	}
	if !res.Empty() || len(res.Ledger) != 0 {
		t.Fatalf("expected empty result, got %+v", res)
	}

	res, err = p.Process(context.Background(), paymentsTable(
		[]string{"bad", "Gói 1 tháng", "1", "A"},
		[]string{"01/01/2024", "Không rõ", "1", "B"},
	), table.Roles{})
	if err != nil {
		t.Fatalf("no survivors must not fail: %v", err)
	}
	if !res.Empty() || len(res.Ledger) != 0 {
		t.Fatalf("expected empty outputs, got %+v", res)
	}
}

func TestProcessMissingColumn(t *testing.T) {
	tbl := table.New([]string{"Ngày thanh toán", "Ghi chú", "Khác"}, [][]string{{"01/01/2024", "x", "y"}})
	_, err := NewProcessor(nil).Process(context.Background(), tbl, table.Roles{})
	if !errors.Is(err, table.ErrColumnNotFound) {
		t.Fatalf("expected ErrColumnNotFound, got %v", err)
	}
}

func TestProcessPositionalAmountMustBeNumeric(t *testing.T) {
	// Positional fallback picks "Ghi chú" as the amount column.
	tbl := table.New([]string{"Ngày thanh toán", "Gói", "Ghi chú"}, [][]string{
		{"01/01/2024", "Gói 1 tháng", "khách quen"},
		{"02/01/2024", "Gói 1 tháng", "chuyển khoản"},
		{"03/01/2024", "Gói 1 tuần", "50.000"},
	})
	_, err := NewProcessor(nil).Process(context.Background(), tbl, table.Roles{AllowPositional: true})
	if !errors.Is(err, ErrAmountNotNumeric) {
		t.Fatalf("expected ErrAmountNotNumeric, got %v", err)
	}
}

func TestProcessWithoutCustomerColumn(t *testing.T) {
	tbl := table.New([]string{table.DefaultDateColumn, table.DefaultProductColumn, table.DefaultAmountColumn}, [][]string{
		{"01/01/2024", "Gói 1 tuần", "70.000"},
	})
	res, err := NewProcessor(nil).Process(context.Background(), tbl, table.Roles{})
	if err != nil {
		t.Fatal(err)
	}
	if res.HasCustomer {
		t.Fatalf("expected HasCustomer=false")
	}
	if res.Ledger[0].CustomerID != core.UnknownCustomer {
		t.Fatalf("expected unknown customer, got %q", res.Ledger[0].CustomerID)
	}
}

type recorder struct {
	mu   sync.Mutex
	runs []Report
}

func (r *recorder) ObserveRun(rep Report, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, rep)
}

func TestProcessReportsToRecorder(t *testing.T) {
	rec := &recorder{}
	p := NewProcessor(nil, WithRecorder(rec))
	_, err := p.Process(context.Background(), paymentsTable(
		[]string{"01/01/2024", "Gói 1 tuần", "70.000", "A"},
	), table.Roles{})
	if err != nil {
		t.Fatal(err)
	}
	if len(rec.runs) != 1 || rec.runs[0].LedgerRows != 7 {
		t.Fatalf("unexpected recorded runs %+v", rec.runs)
	}
}

func TestProcessCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewProcessor(nil, WithWorkers(4)).Process(ctx, paymentsTable(
		[]string{"01/01/2024", "Gói 1 tuần", "70.000", "A"},
		[]string{"02/01/2024", "Gói 1 tuần", "70.000", "B"},
	), table.Roles{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
