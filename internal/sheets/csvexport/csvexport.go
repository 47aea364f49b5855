// Package csvexport reads a spreadsheet published as CSV over HTTP.
package csvexport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	ports "github.com/kina2711/subscription-analytics/internal/sheets"
	"github.com/kina2711/subscription-analytics/internal/table"
)

// defaultMaxBody bounds the size of one export.
const defaultMaxBody = 64 << 20

type Client struct {
	url     string
	http    *http.Client
	maxBody int64
}

var _ ports.TransactionSource = (*Client)(nil)

// New returns a source for rawURL. A nil client uses a pooled default.
func New(rawURL string, client *http.Client) (*Client, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse export url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("export url must be http or https, got %q", u.Scheme)
	}
	if client == nil {
		client = newHTTPClientWithPooling()
	}
	return &Client{url: rawURL, http: client, maxBody: defaultMaxBody}, nil
}

// ExportURL builds the CSV export address of one Google Sheets tab.
func ExportURL(spreadsheetID, gid string) string {
	q := url.Values{}
	q.Set("format", "csv")
	if gid != "" {
		q.Set("gid", gid)
	}
	return fmt.Sprintf("https://docs.google.com/spreadsheets/d/%s/export?%s", url.PathEscape(spreadsheetID), q.Encode())
}

func (c *Client) Name() string {
	if u, err := url.Parse(c.url); err == nil {
		return "csv_url:" + u.Host
	}
	return "csv_url"
}

func (c *Client) Fetch(ctx context.Context) (table.Table, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return table.Table{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "text/csv")

	resp, err := c.http.Do(req)
	if err != nil {
		return table.Table{}, fmt.Errorf("%w: %v", ports.ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return table.Table{}, fmt.Errorf("%w: GET %s: status %d", ports.ErrSourceUnavailable, c.Name(), resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return table.Table{}, fmt.Errorf("%w: read %s: %v", ports.ErrSourceUnavailable, c.Name(), err)
	}
	if int64(len(body)) > c.maxBody {
		return table.Table{}, fmt.Errorf("%w: %s export exceeds %d bytes", ports.ErrSourceUnavailable, c.Name(), c.maxBody)
	}
	return table.ReadCSV(bytes.NewReader(body))
}

// newHTTPClientWithPooling creates an HTTP client with connection pooling,
// proper timeouts, and keep-alive settings
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		DialContext:         dialer.DialContext,
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,

		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   60 * time.Second,
	}
}
