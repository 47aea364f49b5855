package exporter

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/kina2711/subscription-analytics/internal/core"
	"github.com/kina2711/subscription-analytics/internal/report"
)

// Workbook sheet names.
const (
	SheetMonthly     = "Monthly"
	SheetCohorts     = "Cohorts"
	SheetCohortSizes = "CohortSizes"
	SheetLedger      = "Ledger"
)

// WriteWorkbook writes rep and the ledger it was built from as one XLSX
// document. Numbers are stored as numbers.
func WriteWorkbook(w io.Writer, rep report.Report, ledgerRows []core.LedgerRow) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetMonthly); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	for _, name := range []string{SheetCohorts, SheetCohortSizes, SheetLedger} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("create sheet %s: %w", name, err)
		}
	}

	if err := writeMonthly(f, rep); err != nil {
		return err
	}
	if err := writeCohorts(f, rep); err != nil {
		return err
	}
	if err := writeLedger(f, ledgerRows); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}

func headerRow(h []string) []interface{} {
	out := make([]interface{}, len(h))
	for i, v := range h {
		out[i] = v
	}
	return out
}

func writeMonthly(f *excelize.File, rep report.Report) error {
	if err := setRow(f, SheetMonthly, 1, headerRow(MonthlyHeaders)); err != nil {
		return err
	}
	for i, s := range rep.Monthly {
		if err := setRow(f, SheetMonthly, i+2, []interface{}{s.Month.String(), s.Revenue, s.ActiveUsers}); err != nil {
			return err
		}
	}
	return nil
}

func writeCohorts(f *excelize.File, rep report.Report) error {
	m := rep.Cohorts
	if err := setRow(f, SheetCohorts, 1, headerRow(CohortHeaders(m))); err != nil {
		return err
	}
	if err := setRow(f, SheetCohortSizes, 1, headerRow(SizeHeaders)); err != nil {
		return err
	}
	for i, r := range m.Rows {
		row := i + 2
		if err := setRow(f, SheetCohorts, row, []interface{}{r.Month.String(), r.Size}); err != nil {
			return err
		}
		// Absent cells are left blank.
		for idx, c := range r.Cells {
			if !c.Present || idx >= m.Width {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(3+idx, row)
			if err != nil {
				return err
			}
			if err := f.SetCellFloat(SheetCohorts, cell, c.Rate, -1, 64); err != nil {
				return fmt.Errorf("write cohort cell %s: %w", cell, err)
			}
		}
		if err := setRow(f, SheetCohortSizes, row, []interface{}{r.Month.String(), r.Size}); err != nil {
			return err
		}
	}
	return nil
}

// writeLedger streams rows; the ledger is by far the largest sheet.
func writeLedger(f *excelize.File, rows []core.LedgerRow) error {
	sw, err := f.NewStreamWriter(SheetLedger)
	if err != nil {
		return fmt.Errorf("open ledger stream: %w", err)
	}
	if err := sw.SetRow("A1", headerRow(LedgerHeaders)); err != nil {
		return fmt.Errorf("write ledger header: %w", err)
	}
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := []interface{}{r.Date.String(), r.DailyRevenue, r.CustomerID, r.Product, r.TransactionID}
		if err := sw.SetRow(cell, values); err != nil {
			return fmt.Errorf("write ledger row %d: %w", i+2, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("flush ledger: %w", err)
	}
	return nil
}
