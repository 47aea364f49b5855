package backend

import (
	"context"
	"errors"

	"github.com/kina2711/subscription-analytics/internal/sheets"
	"github.com/kina2711/subscription-analytics/internal/storage"
)

var ErrUnknownSource = errors.New("unknown data source")

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// Result holds the configured source, wrapped in the freshness cache, and
// the repository holding the run log.
type Result struct {
	Source     *sheets.Cached
	Repository *storage.SQLiteRepository
	Cleanup    CleanupFunc
}

// Factory creates sources based on configuration
type Factory interface {
	CreateSource(ctx context.Context, config Config) (*Result, error)
}

// SourceType names where payment rows come from.
type SourceType string

const (
	FileSource   SourceType = "file"
	CSVURLSource SourceType = "csv_url"
	SheetsSource SourceType = "sheets"
	SQLiteSource SourceType = "sqlite"
)

// String implements fmt.Stringer
func (st SourceType) String() string {
	return string(st)
}

// IsValid returns true if the source type is valid
func (st SourceType) IsValid() bool {
	switch st {
	case FileSource, CSVURLSource, SheetsSource, SQLiteSource:
		return true
	default:
		return false
	}
}
