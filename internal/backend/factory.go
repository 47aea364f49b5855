package backend

import (
	"context"
	"fmt"

	"github.com/kina2711/subscription-analytics/internal/log"
	"github.com/kina2711/subscription-analytics/internal/sheets"
	"github.com/kina2711/subscription-analytics/internal/sheets/csvexport"
	gsheet "github.com/kina2711/subscription-analytics/internal/sheets/google"
	"github.com/kina2711/subscription-analytics/internal/sheets/memory"
	"github.com/kina2711/subscription-analytics/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new source factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Nop()
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentBackend),
	}
}

// CreateSource opens the run log and builds the configured source around it.
func (f *DefaultFactory) CreateSource(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	src, err := f.createSource(ctx, config, repo)
	if err != nil {
		repo.Close()
		return nil, err
	}

	f.logger.InfoContext(ctx, "Initialized transaction source",
		log.FieldSource, src.Name(),
		"type", config.Type.String(),
		"cache_ttl", config.CacheTTL.String(),
		"db_path", config.SQLiteDBPath)

	return &Result{
		Source:     sheets.NewCached(src, config.CacheTTL, f.logger),
		Repository: repo,
		Cleanup:    repo.Close,
	}, nil
}

func (f *DefaultFactory) createSource(ctx context.Context, config Config, repo *storage.SQLiteRepository) (sheets.TransactionSource, error) {
	switch config.Type {
	case FileSource:
		return memory.NewFile(config.SourcePath, config.SourceSheet), nil
	case CSVURLSource:
		cli, err := csvexport.New(config.SourceURL, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize CSV export client: %w", err)
		}
		return cli, nil
	case SheetsSource:
		cli, err := gsheet.New(ctx, gsheet.Options{
			SpreadsheetID:   config.GoogleSpreadsheetID,
			Sheet:           config.SourceSheet,
			CredentialsJSON: config.GoogleCredentialsJSON,
			CredentialsFile: config.GoogleCredentialsFile,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
		}
		return cli, nil
	case SQLiteSource:
		return repo, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownSource, config.Type)
	}
}
