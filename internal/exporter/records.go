package exporter

import (
	"strconv"

	"github.com/kina2711/subscription-analytics/internal/cohort"
	"github.com/kina2711/subscription-analytics/internal/core"
	"github.com/kina2711/subscription-analytics/internal/monthly"
)

var (
	TransactionHeaders = []string{"id", "payment_date", "product", "amount", "duration_days", "daily_rate", "customer_id"}
	LedgerHeaders      = []string{"date", "daily_revenue", "customer_id", "product", "transaction_id"}
	MonthlyHeaders     = []string{"month", "revenue", "active_users"}
	SizeHeaders        = []string{"cohort_month", "size"}
)

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func TransactionRecords(txs []core.CleanedTransaction) [][]string {
	out := make([][]string, 0, len(txs))
	for _, tx := range txs {
		out = append(out, []string{
			strconv.Itoa(tx.ID),
			tx.PaymentDate.String(),
			tx.Product,
			core.FormatAmount(tx.Amount),
			strconv.Itoa(tx.DurationDays),
			formatFloat(tx.DailyRate),
			tx.CustomerID,
		})
	}
	return out
}

func LedgerRecords(rows []core.LedgerRow) [][]string {
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, []string{
			r.Date.String(),
			formatFloat(r.DailyRevenue),
			r.CustomerID,
			r.Product,
			strconv.Itoa(r.TransactionID),
		})
	}
	return out
}

func MonthlyRecords(stats []monthly.Stat) [][]string {
	out := make([][]string, 0, len(stats))
	for _, s := range stats {
		out = append(out, []string{s.Month.String(), formatFloat(s.Revenue), strconv.Itoa(s.ActiveUsers)})
	}
	return out
}

// CohortHeaders is cohort_month, size, then one column per cohort index.
func CohortHeaders(m cohort.Matrix) []string {
	h := []string{"cohort_month", "size"}
	for i := 0; i < m.Width; i++ {
		h = append(h, strconv.Itoa(i))
	}
	return h
}

// CohortRecords writes retention rates; absent cells stay empty.
func CohortRecords(m cohort.Matrix) [][]string {
	out := make([][]string, 0, len(m.Rows))
	for _, r := range m.Rows {
		rec := make([]string, 2+m.Width)
		rec[0] = r.Month.String()
		rec[1] = strconv.Itoa(r.Size)
		for i, c := range r.Cells {
			if c.Present && i < m.Width {
				rec[2+i] = formatFloat(c.Rate)
			}
		}
		out = append(out, rec)
	}
	return out
}

func SizeRecords(m cohort.Matrix) [][]string {
	out := make([][]string, 0, len(m.Rows))
	for _, r := range m.Rows {
		out = append(out, []string{r.Month.String(), strconv.Itoa(r.Size)})
	}
	return out
}
