// Package cohort computes monthly acquisition cohorts and their retention
// from cleaned transactions and the daily ledger.
package cohort

import (
	"sort"

	"github.com/kina2711/subscription-analytics/internal/core"
	"github.com/kina2711/subscription-analytics/internal/log"
)

type (
	// AcquisitionRecord is the month of a customer's earliest payment.
	AcquisitionRecord struct {
		CustomerID string     `json:"customer_id"`
		Month      core.Month `json:"month"`
	}

	// Cell is the activity of one cohort at one month offset.
	// Present is false when nobody was active at that offset, or when the
	// cohort has no size to divide by; Rate is meaningless then.
	Cell struct {
		Count   int     `json:"count"`
		Rate    float64 `json:"rate"`
		Present bool    `json:"present"`
	}

	// Row is one acquisition cohort. Cells[i] is cohort index i.
	Row struct {
		Month core.Month `json:"month"`
		Size  int        `json:"size"`
		Cells []Cell     `json:"cells"`
	}

	// Matrix is the retention matrix, rows ordered by acquisition month.
	Matrix struct {
		Rows  []Row `json:"rows"`
		Width int   `json:"width"`
	}

	// Average is the mean retention at one cohort index over the cohorts
	// that have a value there.
	Average struct {
		Index   int     `json:"index"`
		Rate    float64 `json:"rate"`
		Cohorts int     `json:"cohorts"`
	}
)

// Empty reports whether the matrix has no cohorts.
func (m Matrix) Empty() bool { return len(m.Rows) == 0 }

// Sizes returns the cohort sizes in row order.
func (m Matrix) Sizes() []int {
	out := make([]int, len(m.Rows))
	for i, r := range m.Rows {
		out[i] = r.Size
	}
	return out
}

// Retention returns the rate at (month, index) and whether it is present.
func (m Matrix) Retention(month core.Month, index int) (float64, bool) {
	for _, r := range m.Rows {
		if r.Month != month {
			continue
		}
		if index < 0 || index >= len(r.Cells) || !r.Cells[index].Present {
			return 0, false
		}
		return r.Cells[index].Rate, true
	}
	return 0, false
}

// AverageRetention averages each cohort index over present cells only.
// Indexes with no present cell are omitted.
func (m Matrix) AverageRetention() []Average {
	out := make([]Average, 0, m.Width)
	for idx := 0; idx < m.Width; idx++ {
		var sum float64
		n := 0
		for _, r := range m.Rows {
			if idx < len(r.Cells) && r.Cells[idx].Present {
				sum += r.Cells[idx].Rate
				n++
			}
		}
		if n > 0 {
			out = append(out, Average{Index: idx, Rate: sum / float64(n), Cohorts: n})
		}
	}
	return out
}

// Acquisitions returns each known customer's acquisition month, ordered by
// month then customer id. Transactions of unknown customers are ignored.
func Acquisitions(txs []core.CleanedTransaction) []AcquisitionRecord {
	first := firstPayments(txs)
	out := make([]AcquisitionRecord, 0, len(first))
	for id, d := range first {
		out = append(out, AcquisitionRecord{CustomerID: id, Month: d.YearMonth()})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Month != out[j].Month {
			return out[i].Month.Before(out[j].Month)
		}
		return out[i].CustomerID < out[j].CustomerID
	})
	return out
}

func firstPayments(txs []core.CleanedTransaction) map[string]core.Date {
	first := make(map[string]core.Date)
	for _, tx := range txs {
		if !core.IsKnownCustomer(tx.CustomerID) {
			continue
		}
		if d, ok := first[tx.CustomerID]; !ok || tx.PaymentDate.Before(d.Time) {
			first[tx.CustomerID] = tx.PaymentDate
		}
	}
	return first
}

// Engine computes retention matrices. The zero value is ready to use.
type Engine struct {
	Logger *log.Logger
}

type activity struct {
	customer string
	month    core.Month
}

// Compute builds the retention matrix. txs and ledger must describe the same
// population; ledger rows of customers without a transaction in txs, and
// activity before a customer's acquisition month, are skipped. An empty
// ledger or a dataset without known customers yields an empty matrix.
func (e Engine) Compute(txs []core.CleanedTransaction, ledger []core.LedgerRow) Matrix {
	if len(txs) == 0 || len(ledger) == 0 {
		return Matrix{}
	}
	acquired := make(map[string]core.Month)
	for id, d := range firstPayments(txs) {
		acquired[id] = d.YearMonth()
	}
	if len(acquired) == 0 {
		return Matrix{}
	}

	seen := make(map[activity]struct{})
	counts := make(map[core.Month]map[int]int)
	skipped := 0
	for _, r := range ledger {
		acq, ok := acquired[r.CustomerID]
		if !ok {
			if core.IsKnownCustomer(r.CustomerID) {
				skipped++
			}
			continue
		}
		a := activity{customer: r.CustomerID, month: r.Date.YearMonth()}
		if _, dup := seen[a]; dup {
			continue
		}
		seen[a] = struct{}{}

		idx := a.month.Sub(acq)
		if idx < 0 {
			skipped++
			continue
		}
		if counts[acq] == nil {
			counts[acq] = make(map[int]int)
		}
		counts[acq][idx]++
	}
	if skipped > 0 && e.Logger != nil {
		e.Logger.Warn("Ledger activity outside acquisition data skipped", "rows", skipped)
	}

	months := make([]core.Month, 0, len(counts))
	width := 0
	for m, byIdx := range counts {
		months = append(months, m)
		for idx := range byIdx {
			if idx+1 > width {
				width = idx + 1
			}
		}
	}
	sort.Slice(months, func(i, j int) bool { return months[i].Before(months[j]) })

	rows := make([]Row, 0, len(months))
	for _, m := range months {
		byIdx := counts[m]
		size := byIdx[0]
		cells := make([]Cell, width)
		for idx, n := range byIdx {
			c := Cell{Count: n}
			if size > 0 {
				c.Rate = float64(n) / float64(size)
				c.Present = true
			}
			cells[idx] = c
		}
		rows = append(rows, Row{Month: m, Size: size, Cells: cells})
	}
	return Matrix{Rows: rows, Width: width}
}
