package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	ports "github.com/kina2711/subscription-analytics/internal/sheets"
	"github.com/kina2711/subscription-analytics/internal/table"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheet         string
}

// Ensure interface conformance
var _ ports.TransactionSource = (*Client)(nil)

// Options selects the spreadsheet tab and the service account credentials.
type Options struct {
	SpreadsheetID   string
	Sheet           string
	CredentialsJSON string
	CredentialsFile string
}

// NewFromEnv creates a Sheets client using environment variables.
// Required: GOOGLE_SPREADSHEET_ID, SOURCE_SHEET
// Credentials: GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or
// GOOGLE_APPLICATION_CREDENTIALS.
func NewFromEnv(ctx context.Context) (*Client, error) {
	file := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	return New(ctx, Options{
		SpreadsheetID:   strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID")),
		Sheet:           strings.TrimSpace(os.Getenv("SOURCE_SHEET")),
		CredentialsJSON: strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON")),
		CredentialsFile: file,
	})
}

// New creates a read-only Sheets client from service account credentials.
// Extra client options are appended after the credentials.
func New(ctx context.Context, o Options, extra ...goption.ClientOption) (*Client, error) {
	if o.SpreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	if o.Sheet == "" {
		return nil, errors.New("missing SOURCE_SHEET")
	}
	creds, err := credentials(ctx, o)
	if err != nil {
		return nil, err
	}
	opts := append([]goption.ClientOption{
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsReadonlyScope),
	}, extra...)
	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return NewWithService(svc, o.SpreadsheetID, o.Sheet), nil
}

// NewWithService wraps an existing service.
func NewWithService(svc *gsheet.Service, spreadsheetID, sheet string) *Client {
	return &Client{svc: svc, spreadsheetID: spreadsheetID, sheet: sheet}
}

func credentials(ctx context.Context, o Options) ([]byte, error) {
	switch {
	case o.CredentialsJSON != "":
		slog.DebugContext(ctx, "Using inline service account credentials")
		return []byte(o.CredentialsJSON), nil
	case o.CredentialsFile != "":
		b, err := os.ReadFile(o.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		slog.DebugContext(ctx, "Read service account credentials", "path", o.CredentialsFile, "size", len(b))
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

func (c *Client) Name() string { return "sheets:" + c.sheet }

// Fetch reads the whole tab with formatted values, so amounts and dates
// arrive as the sheet displays them.
func (c *Client) Fetch(ctx context.Context) (table.Table, error) {
	if c.svc == nil {
		return table.Table{}, errors.New("sheets service not initialized")
	}
	rng := quoteSheet(c.sheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).
		ValueRenderOption("FORMATTED_VALUE").
		Context(ctx).Do()
	if err != nil {
		return table.Table{}, fmt.Errorf("%w: read %s: %v", ports.ErrSourceUnavailable, rng, err)
	}
	return parseValues(resp.Values), nil
}

// parseValues drops leading blank rows so the first non-empty row is the header.
func parseValues(values [][]interface{}) table.Table {
	for len(values) > 0 && blankRow(values[0]) {
		values = values[1:]
	}
	return table.FromValues(values)
}

func blankRow(row []interface{}) bool {
	for _, v := range row {
		if v != nil && strings.TrimSpace(fmt.Sprint(v)) != "" {
			return false
		}
	}
	return true
}

// quoteSheet returns A1 notation for a whole tab, quoting names with spaces.
func quoteSheet(name string) string {
	if strings.ContainsAny(name, " '!") {
		return "'" + strings.ReplaceAll(name, "'", "''") + "'"
	}
	return name
}
