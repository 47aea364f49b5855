// Package report threads one consistently filtered dataset through the
// monthly and cohort computations.
package report

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/kina2711/subscription-analytics/internal/cohort"
	"github.com/kina2711/subscription-analytics/internal/core"
	"github.com/kina2711/subscription-analytics/internal/ledger"
	"github.com/kina2711/subscription-analytics/internal/monthly"
)

var ErrInvalidFilter = errors.New("invalid filter")

// Dataset is a set of cleaned transactions together with exactly the ledger
// rows they own. Filtering always produces another Dataset, so acquisition
// and activity can never come from different populations.
type Dataset struct {
	Transactions []core.CleanedTransaction
	Ledger       []core.LedgerRow
	HasCustomer  bool
}

// FromResult wraps the output of ledger.Processor.Process.
func FromResult(res ledger.Result) Dataset {
	return Dataset{
		Transactions: res.Transactions,
		Ledger:       res.Ledger,
		HasCustomer:  res.HasCustomer,
	}
}

// Empty reports whether the dataset has no ledger rows.
func (d Dataset) Empty() bool { return len(d.Ledger) == 0 }

// Filter selects transactions by product and payment date. Zero values
// select everything.
type Filter struct {
	Products []string
	From     core.Date // inclusive
	To       core.Date // inclusive
}

// ParseFilter builds a filter from query style values. Dates are ISO or day first.
func ParseFilter(products []string, from, to string) (Filter, error) {
	var f Filter
	for _, p := range products {
		for _, part := range strings.Split(p, ",") {
			if part = strings.TrimSpace(part); part != "" {
				f.Products = append(f.Products, part)
			}
		}
	}
	var err error
	if strings.TrimSpace(from) != "" {
		if f.From, err = core.ParseDate(from); err != nil {
			return Filter{}, fmt.Errorf("%w: from: %v", ErrInvalidFilter, err)
		}
	}
	if strings.TrimSpace(to) != "" {
		if f.To, err = core.ParseDate(to); err != nil {
			return Filter{}, fmt.Errorf("%w: to: %v", ErrInvalidFilter, err)
		}
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From.Time) {
		return Filter{}, fmt.Errorf("%w: to %s is before from %s", ErrInvalidFilter, f.To, f.From)
	}
	return f, nil
}

// IsZero reports whether the filter selects everything.
func (f Filter) IsZero() bool {
	return len(f.Products) == 0 && f.From.IsZero() && f.To.IsZero()
}

func (f Filter) match(tx core.CleanedTransaction) bool {
	if !f.From.IsZero() && tx.PaymentDate.Before(f.From.Time) {
		return false
	}
	if !f.To.IsZero() && tx.PaymentDate.After(f.To.Time) {
		return false
	}
	if len(f.Products) == 0 {
		return true
	}
	for _, p := range f.Products {
		if p == tx.Product {
			return true
		}
	}
	return false
}

// Filter returns the transactions matching f and the ledger rows they own.
func (d Dataset) Filter(f Filter) Dataset {
	if f.IsZero() {
		return d
	}
	keep := make(map[int]struct{})
	out := Dataset{HasCustomer: d.HasCustomer}
	for _, tx := range d.Transactions {
		if f.match(tx) {
			keep[tx.ID] = struct{}{}
			out.Transactions = append(out.Transactions, tx)
		}
	}
	for _, r := range d.Ledger {
		if _, ok := keep[r.TransactionID]; ok {
			out.Ledger = append(out.Ledger, r)
		}
	}
	return out
}

// Products returns the distinct product labels, sorted.
func (d Dataset) Products() []string {
	seen := make(map[string]struct{})
	for _, tx := range d.Transactions {
		seen[tx.Product] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Report is everything the dashboard shows for one dataset.
type Report struct {
	Monthly  []monthly.Stat   `json:"monthly"`
	KPIs     monthly.KPIs     `json:"kpis"`
	Cohorts  cohort.Matrix    `json:"cohorts"`
	Averages []cohort.Average `json:"average_retention"`
	Products []string         `json:"products"`
}

// Empty reports whether there was nothing to report.
func (r Report) Empty() bool { return len(r.Monthly) == 0 }

// Build computes the monthly stats, KPIs and cohort matrix of d. Cohorts are
// empty when d has no customer identity.
func Build(d Dataset, engine cohort.Engine) Report {
	stats := monthly.Aggregate(d.Ledger)
	r := Report{
		Monthly:  stats,
		KPIs:     monthly.Summarize(d.Ledger, stats),
		Products: d.Products(),
	}
	if d.HasCustomer {
		r.Cohorts = engine.Compute(d.Transactions, d.Ledger)
		r.Averages = r.Cohorts.AverageRetention()
	}
	return r
}
