// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating query parameters.

package http

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/kina2711/subscription-analytics/internal/report"
)

const (
	defaultRunsLimit = 20
	maxRunsLimit     = 500

	defaultTransactionsLimit = 1000
	maxTransactionsLimit     = 10000
)

// ParseFilter reads the product, from and to query parameters. product may
// repeat or hold a comma separated list.
func ParseFilter(r *http.Request) (report.Filter, error) {
	q := r.URL.Query()
	return report.ParseFilter(q["product"], q.Get("from"), q.Get("to"))
}

// ParseLimit reads a positive integer query parameter, falling back to def
// and clamping to max.
func ParseLimit(r *http.Request, name string, def, max int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %s must be a positive integer, got %q", report.ErrInvalidFilter, name, raw)
	}
	if n > max {
		n = max
	}
	return n, nil
}

// ParseOffset reads a non-negative offset query parameter.
func ParseOffset(r *http.Request) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("offset"))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: offset must be a non-negative integer, got %q", report.ErrInvalidFilter, raw)
	}
	return n, nil
}

// SanitizeReason trims a refresh reason and caps its length.
func SanitizeReason(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s)
	if r := []rune(s); len(r) > 64 {
		s = string(r[:64])
	}
	return s
}
