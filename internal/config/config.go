package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/kina2711/subscription-analytics/internal/table"
)

// Data sources.
const (
	SourceFile   = "file"
	SourceCSVURL = "csv_url"
	SourceSheets = "sheets"
	SourceSQLite = "sqlite"
)

type Config struct {
	// HTTP Server
	Port string

	// Source selection
	DataSource  string
	SourcePath  string
	SourceURL   string
	SourceSheet string

	// Google Sheets
	GoogleSpreadsheetID   string
	GoogleCredentialsFile string
	GoogleCredentialsJSON string

	// Database
	SQLiteDBPath string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Processing
	DurationRulesFile      string
	ColumnDate             string
	ColumnProduct          string
	ColumnAmount           string
	ColumnCustomer         string
	AllowPositionalColumns bool
	ExpandWorkers          int

	// Loader
	SourceCacheTTL time.Duration

	// Worker / export
	OutputDir       string
	RefreshInterval time.Duration

	// Logging
	LogLevel  string
	LogFormat string
}

func Load() *Config {
	cfg := &Config{
		Port: getEnv("PORT", "8081"),

		DataSource:  getEnv("DATA_SOURCE", SourceFile),
		SourcePath:  getEnv("SOURCE_PATH", "./data/payments.csv"),
		SourceURL:   getEnv("SOURCE_URL", ""),
		SourceSheet: getEnv("SOURCE_SHEET", ""),

		GoogleSpreadsheetID:   getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleCredentialsFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", getEnv("GOOGLE_APPLICATION_CREDENTIALS", "")),
		GoogleCredentialsJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/analytics.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "analytics"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "refresh_reports"),

		DurationRulesFile:      getEnv("DURATION_RULES_FILE", ""),
		ColumnDate:             getEnv("COLUMN_DATE", ""),
		ColumnProduct:          getEnv("COLUMN_PRODUCT", ""),
		ColumnAmount:           getEnv("COLUMN_AMOUNT", ""),
		ColumnCustomer:         getEnv("COLUMN_CUSTOMER", ""),
		AllowPositionalColumns: getEnvBool("ALLOW_POSITIONAL_COLUMNS", false),
		ExpandWorkers:          getEnvInt("EXPAND_WORKERS", 4),

		SourceCacheTTL: getEnvDuration("SOURCE_CACHE_TTL", 10*time.Minute),

		OutputDir:       getEnv("OUTPUT_DIR", "./out"),
		RefreshInterval: getEnvDuration("REFRESH_INTERVAL", time.Hour),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}

	return cfg
}

// Roles returns the column role overrides.
func (c *Config) Roles() table.Roles {
	return table.Roles{
		Date:            c.ColumnDate,
		Product:         c.ColumnProduct,
		Amount:          c.ColumnAmount,
		Customer:        c.ColumnCustomer,
		AllowPositional: c.AllowPositionalColumns,
	}
}

// AMQPEnabled reports whether a refresh queue is configured.
func (c *Config) AMQPEnabled() bool {
	return strings.TrimSpace(c.AMQPURL) != ""
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	// Validate data source
	validSources := []string{SourceFile, SourceCSVURL, SourceSheets, SourceSQLite}
	isValidSource := false
	for _, s := range validSources {
		if c.DataSource == s {
			isValidSource = true
			break
		}
	}
	if !isValidSource {
		errors = append(errors, fmt.Sprintf("invalid data source '%s': must be one of %v", c.DataSource, validSources))
	}

	switch c.DataSource {
	case SourceFile:
		if c.SourcePath == "" {
			errors = append(errors, "source path cannot be empty when using file source")
		} else if _, err := os.Stat(c.SourcePath); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("source file does not exist: %s", c.SourcePath))
		}
	case SourceCSVURL:
		if c.SourceURL == "" {
			errors = append(errors, "source URL is required when using csv_url source")
		} else if u, err := url.Parse(c.SourceURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid source URL '%s': %v", c.SourceURL, err))
		} else if u.Scheme != "http" && u.Scheme != "https" {
			errors = append(errors, fmt.Sprintf("invalid source URL scheme '%s': must be 'http' or 'https'", u.Scheme))
		}
	case SourceSheets:
		if c.GoogleSpreadsheetID == "" {
			errors = append(errors, "Google Spreadsheet ID is required when using sheets source")
		}
		if c.SourceSheet == "" {
			errors = append(errors, "source sheet name is required when using sheets source")
		}
		if c.GoogleCredentialsFile == "" && c.GoogleCredentialsJSON == "" {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_SERVICE_ACCOUNT_JSON must be provided for sheets source")
		}
		if c.GoogleCredentialsFile != "" {
			if _, err := os.Stat(c.GoogleCredentialsFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google credentials file does not exist: %s", c.GoogleCredentialsFile))
			}
		}
	}

	// The run log always lives in SQLite.
	if c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty")
	} else {
		dir := filepath.Dir(c.SQLiteDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.DurationRulesFile != "" {
		if _, err := os.Stat(c.DurationRulesFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("duration rules file does not exist: %s", c.DurationRulesFile))
		}
	}

	if c.ExpandWorkers < 1 {
		errors = append(errors, fmt.Sprintf("invalid expand workers %d: must be at least 1", c.ExpandWorkers))
	} else if c.ExpandWorkers > 256 {
		errors = append(errors, fmt.Sprintf("invalid expand workers %d: must be at most 256", c.ExpandWorkers))
	}

	if c.SourceCacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid source cache TTL %v: must not be negative", c.SourceCacheTTL))
	}

	if c.RefreshInterval < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid refresh interval %v: must be at least 1 minute", c.RefreshInterval))
	} else if c.RefreshInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid refresh interval %v: must be at most 24 hours", c.RefreshInterval))
	}

	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be 'text' or 'json'", c.LogFormat))
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
