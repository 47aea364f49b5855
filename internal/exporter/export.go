package exporter

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kina2711/subscription-analytics/internal/log"
	"github.com/kina2711/subscription-analytics/internal/report"
)

// File names written by Export.
const (
	TransactionsFile = "transactions.csv"
	LedgerFile       = "ledger.csv"
	MonthlyFile      = "monthly.csv"
	CohortsFile      = "cohorts.csv"
	CohortSizesFile  = "cohort_sizes.csv"
	WorkbookFile     = "report.xlsx"
)

// Export writes every CSV and the workbook for d and rep into dir and
// returns the written paths.
func Export(dir string, d report.Dataset, rep report.Report, logger *log.Logger) ([]string, error) {
	w := NewCSVWriter(dir, logger)

	files := []struct {
		name    string
		headers []string
		records [][]string
	}{
		{TransactionsFile, TransactionHeaders, TransactionRecords(d.Transactions)},
		{LedgerFile, LedgerHeaders, LedgerRecords(d.Ledger)},
		{MonthlyFile, MonthlyHeaders, MonthlyRecords(rep.Monthly)},
		{CohortsFile, CohortHeaders(rep.Cohorts), CohortRecords(rep.Cohorts)},
		{CohortSizesFile, SizeHeaders, SizeRecords(rep.Cohorts)},
	}

	paths := make([]string, 0, len(files)+1)
	for _, f := range files {
		p, err := w.WriteSimpleCSV(f.name, f.headers, f.records)
		if err != nil {
			return paths, err
		}
		paths = append(paths, p)
	}

	wbPath := filepath.Join(dir, WorkbookFile)
	out, err := os.Create(wbPath)
	if err != nil {
		return paths, fmt.Errorf("create workbook: %w", err)
	}
	if err := WriteWorkbook(out, rep, d.Ledger); err != nil {
		out.Close()
		return paths, err
	}
	if err := out.Close(); err != nil {
		return paths, fmt.Errorf("close workbook: %w", err)
	}
	paths = append(paths, wbPath)

	w.logger.Info("Reports exported",
		log.FieldOperation, log.OpExport,
		log.FieldOutputDir, dir,
		"files", len(paths))
	return paths, nil
}
