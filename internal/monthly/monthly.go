// Package monthly reduces the daily ledger to calendar month statistics.
package monthly

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/kina2711/subscription-analytics/internal/core"
)

// Stat is the accrued revenue and distinct active customers of one month.
type Stat struct {
	Month       core.Month `json:"month"`
	Revenue     float64    `json:"revenue"`
	ActiveUsers int        `json:"active_users"`
}

// KPIs are the headline numbers of a ledger.
type KPIs struct {
	TotalRevenue          float64    `json:"total_revenue"`
	LatestMonth           core.Month `json:"latest_month"`
	LatestMonthRevenue    float64    `json:"latest_month_revenue"`
	AvgMonthlyActiveUsers float64    `json:"avg_monthly_active_users"`
	ActiveNow             int        `json:"active_now"`
	AsOf                  string     `json:"as_of,omitempty"`
}

type bucket struct {
	revenue   decimal.Decimal
	customers map[string]struct{}
}

// Aggregate groups ledger rows by calendar month, ascending. Revenue is summed
// exactly and rounded once per month. Rows of unknown customers add revenue
// but never count as active users.
func Aggregate(ledger []core.LedgerRow) []Stat {
	buckets := make(map[core.Month]*bucket)
	for _, r := range ledger {
		m := r.Date.YearMonth()
		b, ok := buckets[m]
		if !ok {
			b = &bucket{customers: make(map[string]struct{})}
			buckets[m] = b
		}
		b.revenue = b.revenue.Add(decimal.NewFromFloat(r.DailyRevenue))
		if core.IsKnownCustomer(r.CustomerID) {
			b.customers[r.CustomerID] = struct{}{}
		}
	}

	out := make([]Stat, 0, len(buckets))
	for m, b := range buckets {
		rev, _ := b.revenue.Float64()
		out = append(out, Stat{Month: m, Revenue: rev, ActiveUsers: len(b.customers)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month.Before(out[j].Month) })
	return out
}

// Summarize derives the headline KPIs from the ledger and its monthly stats.
// ActiveNow counts distinct known customers on the last ledger day.
func Summarize(ledger []core.LedgerRow, stats []Stat) KPIs {
	if len(ledger) == 0 || len(stats) == 0 {
		return KPIs{}
	}
	var (
		total decimal.Decimal
		users int
	)
	for _, s := range stats {
		total = total.Add(decimal.NewFromFloat(s.Revenue))
		users += s.ActiveUsers
	}
	latest := stats[len(stats)-1]

	last := ledger[0].Date
	for _, r := range ledger[1:] {
		if r.Date.After(last.Time) {
			last = r.Date
		}
	}
	active := make(map[string]struct{})
	for _, r := range ledger {
		if r.Date.Equal(last.Time) && core.IsKnownCustomer(r.CustomerID) {
			active[r.CustomerID] = struct{}{}
		}
	}

	tot, _ := total.Float64()
	return KPIs{
		TotalRevenue:          tot,
		LatestMonth:           latest.Month,
		LatestMonthRevenue:    latest.Revenue,
		AvgMonthlyActiveUsers: float64(users) / float64(len(stats)),
		ActiveNow:             len(active),
		AsOf:                  last.String(),
	}
}
