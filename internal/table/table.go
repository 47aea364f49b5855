// Package table holds the raw tabular dataset handed to the ledger processor
// and the readers that produce it from CSV, XLSX and spreadsheet value grids.
package table

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Table is a header row plus data rows of raw cell text.
// Rows may be shorter than Header; missing cells read as "".
type Table struct {
	Header []string
	Rows   [][]string
}

// Len returns the number of data rows.
func (t Table) Len() int { return len(t.Rows) }

// Empty reports whether the table has no data rows.
func (t Table) Empty() bool { return len(t.Rows) == 0 }

// Cell returns the trimmed value at row, col or "" when out of range.
func (t Table) Cell(row, col int) string {
	if row < 0 || row >= len(t.Rows) {
		return ""
	}
	return safeGet(t.Rows[row], col)
}

// Index returns the column whose normalized header equals name, or -1.
func (t Table) Index(name string) int {
	want := NormalizeHeader(name)
	if want == "" {
		return -1
	}
	for i, h := range t.Header {
		if NormalizeHeader(h) == want {
			return i
		}
	}
	return -1
}

// New builds a table from a header and rows, trimming the header names.
func New(header []string, rows [][]string) Table {
	h := make([]string, len(header))
	for i, v := range header {
		h[i] = strings.TrimSpace(v)
	}
	return Table{Header: h, Rows: rows}
}

// FromValues converts a spreadsheet value grid (first row is the header)
// into a Table. Blank trailing rows are dropped.
func FromValues(values [][]interface{}) Table {
	if len(values) == 0 {
		return Table{}
	}
	header := toStrings(values[0])
	rows := make([][]string, 0, len(values)-1)
	for _, v := range values[1:] {
		row := toStrings(v)
		if blank(row) {
			continue
		}
		rows = append(rows, row)
	}
	return New(header, rows)
}

// FromRecords is FromValues for string records, as produced by CSV and XLSX readers.
func FromRecords(records [][]string) Table {
	if len(records) == 0 {
		return Table{}
	}
	header := records[0]
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	rows := make([][]string, 0, len(records)-1)
	for _, r := range records[1:] {
		if blank(r) {
			continue
		}
		rows = append(rows, r)
	}
	return New(header, rows)
}

// NormalizeHeader makes header comparison insensitive to case, Unicode
// composition and surrounding whitespace.
func NormalizeHeader(s string) string {
	s = strings.TrimPrefix(s, "\ufeff")
	s = norm.NFC.String(strings.TrimSpace(s))
	return cases.Fold().String(s)
}

func (t Table) String() string {
	return fmt.Sprintf("table(%d cols, %d rows)", len(t.Header), len(t.Rows))
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		if v == nil {
			continue
		}
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func safeGet(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func blank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
