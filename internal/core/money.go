// Package core provides the subscription payment domain types.
//
// This file contains the lenient amount normalizer: spreadsheet amounts such as
// "1.200.000₫" or "450,000 VNĐ" are reduced to their digits before parsing.
package core

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// NormalizeAmount converts a loosely formatted currency string to a
// non-negative amount.
//
// Every character other than an ASCII digit is stripped first, so thousands
// separators, decimal points, signs and currency markers all disappear.
// Anything that still fails to parse yields 0 rather than an error.
//
// Examples:
//   NormalizeAmount("1.200.000₫") -> 1200000
//   NormalizeAmount("450,000 VNĐ") -> 450000
//   NormalizeAmount("n/a")        -> 0
func NormalizeAmount(raw string) float64 {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, raw)
	if digits == "" {
		return 0
	}
	d, err := decimal.NewFromString(digits)
	if err != nil {
		return 0
	}
	f, _ := d.Float64()
	return f
}

// HasDigits reports whether raw contains at least one ASCII digit, i.e.
// whether NormalizeAmount can read anything from it.
func HasDigits(raw string) bool {
	return strings.IndexFunc(raw, func(r rune) bool { return r >= '0' && r <= '9' }) >= 0
}

// FormatAmount renders a normalized amount back as plain digits.
func FormatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
