// Package ledger turns raw payment rows into cleaned transactions and the
// day-granular accrual revenue ledger.
package ledger

import (
	"errors"
	"fmt"

	"github.com/kina2711/subscription-analytics/internal/core"
)

var ErrNoEntitlement = errors.New("transaction has no entitlement period")

// Expand emits one ledger row per entitled day of t, starting on the payment
// date. Every row carries the same daily revenue so the rows sum to t.Amount.
func Expand(t core.CleanedTransaction) ([]core.LedgerRow, error) {
	if t.DurationDays <= 0 {
		return nil, fmt.Errorf("%w: row %d (%q)", ErrNoEntitlement, t.ID, t.Product)
	}
	if err := t.PaymentDate.Validate(); err != nil {
		return nil, fmt.Errorf("row %d: %w", t.ID, err)
	}
	rows := make([]core.LedgerRow, t.DurationDays)
	for i := range rows {
		rows[i] = core.LedgerRow{
			Date:          t.PaymentDate.AddDays(i),
			DailyRevenue:  t.DailyRate,
			CustomerID:    t.CustomerID,
			Product:       t.Product,
			TransactionID: t.ID,
		}
	}
	return rows, nil
}
