package ledger

import (
	"github.com/kina2711/subscription-analytics/internal/core"
	"github.com/kina2711/subscription-analytics/internal/log"
)

// Report accounts for every input row of one Process call.
// RowsIn == InvalidDate + UnresolvedDuration + RowsKept.
type Report struct {
	RowsIn             int `json:"rows_in"`
	InvalidDate        int `json:"invalid_date"`
	UnresolvedDuration int `json:"unresolved_duration"`
	ZeroAmount         int `json:"zero_amount"` // kept, with zero revenue
	RowsKept           int `json:"rows_kept"`
	LedgerRows         int `json:"ledger_rows"`
}

// Dropped returns the number of rows excluded from the ledger.
func (r Report) Dropped() int {
	return r.InvalidDate + r.UnresolvedDuration
}

func (r Report) fields() log.LogFields {
	return log.NewFields().
		WithOperation(log.OpProcess).
		WithRun(r.RowsIn, r.InvalidDate, r.UnresolvedDuration, r.ZeroAmount, r.RowsKept, r.LedgerRows)
}

// Result is the output of Process. Both slices are empty, never an error,
// when no row survives cleaning.
type Result struct {
	Transactions []core.CleanedTransaction
	Ledger       []core.LedgerRow
	Report       Report
	// HasCustomer is false when the source had no customer identity column.
	HasCustomer bool
}

// Empty reports whether no transaction survived.
func (r Result) Empty() bool {
	return len(r.Transactions) == 0
}
