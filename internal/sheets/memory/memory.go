// Package memory provides local sources: a CSV or XLSX file on disk and a
// static in-memory table.
package memory

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	ports "github.com/kina2711/subscription-analytics/internal/sheets"
	"github.com/kina2711/subscription-analytics/internal/table"
)

var (
	_ ports.TransactionSource = (*File)(nil)
	_ ports.TransactionSource = (*Static)(nil)
)

// File reads the payment table from a local file on every Fetch.
type File struct {
	path  string
	sheet string
}

// NewFile returns a source for path. sheet selects the XLSX tab and is
// ignored for CSV.
func NewFile(path, sheet string) *File {
	return &File{path: path, sheet: sheet}
}

func (f *File) Name() string { return "file:" + filepath.Base(f.path) }

func (f *File) Fetch(ctx context.Context) (table.Table, error) {
	if err := ctx.Err(); err != nil {
		return table.Table{}, err
	}
	t, err := table.ReadFile(f.path, f.sheet)
	if err != nil {
		return table.Table{}, fmt.Errorf("%w: %v", ports.ErrSourceUnavailable, err)
	}
	return t, nil
}

// Static serves a fixed table; Set replaces it.
type Static struct {
	mu    sync.Mutex
	name  string
	table table.Table
}

func NewStatic(name string, t table.Table) *Static {
	return &Static{name: name, table: t}
}

func (s *Static) Name() string { return "static:" + s.name }

func (s *Static) Fetch(_ context.Context) (table.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.table, nil
}

func (s *Static) Set(t table.Table) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.table = t
}
