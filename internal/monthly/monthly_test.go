package monthly

import (
	"math"
	"testing"
	"time"

	"github.com/kina2711/subscription-analytics/internal/core"
)

func row(y, m, d int, rev float64, customer string) core.LedgerRow {
	return core.LedgerRow{Date: core.NewDate(y, m, d), DailyRevenue: rev, CustomerID: customer}
}

func TestAggregate(t *testing.T) {
	ledger := []core.LedgerRow{
		row(2024, 2, 1, 10, "B"),
		row(2024, 1, 30, 0.1, "A"),
		row(2024, 1, 31, 0.2, "A"),
		row(2024, 1, 31, 5, "B"),
		row(2024, 1, 31, 7, core.UnknownCustomer),
	}
	got := Aggregate(ledger)
	if len(got) != 2 {
		t.Fatalf("expected 2 months, got %+v", got)
	}
	jan, feb := got[0], got[1]
	if jan.Month != (core.Month{Year: 2024, Month: time.January}) {
		t.Fatalf("months not ascending: %+v", got)
	}
	if jan.Revenue != 12.3 {
		t.Fatalf("january revenue %v, want 12.3", jan.Revenue)
	}
	if jan.ActiveUsers != 2 {
		t.Fatalf("january active users %d, want 2", jan.ActiveUsers)
	}
	if feb.Revenue != 10 || feb.ActiveUsers != 1 {
		t.Fatalf("unexpected february %+v", feb)
	}
}

func TestAggregateEmpty(t *testing.T) {
	if got := Aggregate(nil); len(got) != 0 {
		t.Fatalf("expected no stats, got %+v", got)
	}
	if k := Summarize(nil, nil); k != (KPIs{}) {
		t.Fatalf("expected zero KPIs, got %+v", k)
	}
}

func TestSummarize(t *testing.T) {
	ledger := []core.LedgerRow{
		row(2024, 1, 15, 100, "A"),
		row(2024, 1, 16, 100, "B"),
		row(2024, 2, 10, 50, "A"),
		row(2024, 2, 10, 25, "C"),
		row(2024, 2, 10, 25, core.UnknownCustomer),
		row(2024, 2, 9, 10, "B"),
	}
	k := Summarize(ledger, Aggregate(ledger))
	if k.TotalRevenue != 310 {
		t.Fatalf("total revenue %v", k.TotalRevenue)
	}
	if k.LatestMonth != (core.Month{Year: 2024, Month: time.February}) || k.LatestMonthRevenue != 110 {
		t.Fatalf("latest month %v revenue %v", k.LatestMonth, k.LatestMonthRevenue)
	}
	// January: A, B. February: A, B, C.
	if math.Abs(k.AvgMonthlyActiveUsers-2.5) > 1e-9 {
		t.Fatalf("avg MAU %v", k.AvgMonthlyActiveUsers)
	}
	if k.ActiveNow != 2 || k.AsOf != "2024-02-10" {
		t.Fatalf("active now %d as of %s", k.ActiveNow, k.AsOf)
	}
}
