package backend

import (
	"fmt"
	"time"

	"github.com/kina2711/subscription-analytics/internal/config"
)

// Config holds configuration for source creation
type Config struct {
	Type SourceType

	// file
	SourcePath  string
	SourceSheet string

	// csv_url
	SourceURL string

	// sheets
	GoogleSpreadsheetID   string
	GoogleCredentialsFile string
	GoogleCredentialsJSON string

	// Run log, and the sqlite source
	SQLiteDBPath string

	CacheTTL time.Duration
}

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	sourceType := SourceType(appConfig.DataSource)
	if !sourceType.IsValid() {
		return Config{}, fmt.Errorf("%w in config: %s", ErrUnknownSource, appConfig.DataSource)
	}

	return Config{
		Type: sourceType,

		SourcePath:  appConfig.SourcePath,
		SourceSheet: appConfig.SourceSheet,
		SourceURL:   appConfig.SourceURL,

		GoogleSpreadsheetID:   appConfig.GoogleSpreadsheetID,
		GoogleCredentialsFile: appConfig.GoogleCredentialsFile,
		GoogleCredentialsJSON: appConfig.GoogleCredentialsJSON,

		SQLiteDBPath: appConfig.SQLiteDBPath,
		CacheTTL:     appConfig.SourceCacheTTL,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("%w: %s", ErrUnknownSource, c.Type)
	}
	if c.SQLiteDBPath == "" {
		return fmt.Errorf("SQLite database path is required for the run log")
	}

	switch c.Type {
	case FileSource:
		if c.SourcePath == "" {
			return fmt.Errorf("source path is required for file source")
		}
	case CSVURLSource:
		if c.SourceURL == "" {
			return fmt.Errorf("source URL is required for csv_url source")
		}
	case SheetsSource:
		if c.GoogleSpreadsheetID == "" {
			return fmt.Errorf("Google Spreadsheet ID is required for sheets source")
		}
		if c.SourceSheet == "" {
			return fmt.Errorf("sheet name is required for sheets source")
		}
		if c.GoogleCredentialsFile == "" && c.GoogleCredentialsJSON == "" {
			return fmt.Errorf("either GoogleCredentialsFile or GoogleCredentialsJSON must be provided for sheets source")
		}
	case SQLiteSource:
		// Payments come from the run log database.
	}

	if c.CacheTTL < 0 {
		return fmt.Errorf("cache TTL must not be negative")
	}
	return nil
}

// GetSourceTypes returns all valid source types
func GetSourceTypes() []SourceType {
	return []SourceType{FileSource, CSVURLSource, SheetsSource, SQLiteSource}
}

// GetSourceTypeStrings returns all valid source type strings
func GetSourceTypeStrings() []string {
	types := GetSourceTypes()
	strings := make([]string, len(types))
	for i, t := range types {
		strings[i] = t.String()
	}
	return strings
}
