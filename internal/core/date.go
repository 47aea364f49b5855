package core

import (
	"fmt"
	"strings"
	"time"
)

type (
	// Date is a calendar day at UTC midnight. No timezone adjustment is applied.
	Date struct {
		time.Time
	}

	// Month is a calendar month.
	Month struct {
		Year  int
		Month time.Month
	}
)

// dayFirstLayouts lists the accepted payment date layouts in priority order.
// Ambiguous numeric dates are read day first. Every date part accepts an
// optional clock in minutes or seconds.
var dayFirstLayouts = buildLayouts(
	[]string{"02/01/2006", "2/1/2006", "02-01-2006", "2-1-2006", "02.01.2006", "2.1.2006", "2006-01-02", "2006/01/02"},
	[]string{"", " 15:04", " 15:04:05"},
)

func buildLayouts(dates, clocks []string) []string {
	layouts := make([]string, 0, len(dates)*len(clocks)+2)
	for _, d := range dates {
		for _, c := range clocks {
			layouts = append(layouts, d+c)
		}
	}
	return append(layouts, "2006-01-02T15:04:05", time.RFC3339)
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf drops the clock part of t, keeping its calendar day.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Time: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a payment date written day first (dd/mm/yyyy) or as ISO.
func ParseDate(raw string) (Date, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Date{}, ErrInvalidDate
	}
	for _, layout := range dayFirstLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return DateOf(t), nil
		}
	}
	return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, raw)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// AddDays returns the date n calendar days later.
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

// YearMonth returns the calendar month containing d.
func (d Date) YearMonth() Month {
	return Month{Year: d.Year(), Month: d.Time.Month()}
}

func (d Date) String() string {
	return d.Format("2006-01-02")
}

// DayFirst formats d as dd/mm/yyyy.
func (d Date) DayFirst() string {
	return d.Format("02/01/2006")
}

// ParseMonth parses a "2006-01" month.
func ParseMonth(raw string) (Month, error) {
	t, err := time.Parse("2006-01", strings.TrimSpace(raw))
	if err != nil {
		return Month{}, fmt.Errorf("invalid month %q: %w", raw, err)
	}
	return Month{Year: t.Year(), Month: t.Month()}, nil
}

// Sub returns the number of whole calendar months from o to m.
func (m Month) Sub(o Month) int {
	return (m.Year-o.Year)*12 + int(m.Month) - int(o.Month)
}

func (m Month) Before(o Month) bool {
	return m.Sub(o) < 0
}

// Start returns the first day of the month.
func (m Month) Start() Date {
	return NewDate(m.Year, int(m.Month), 1)
}

func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

func (m Month) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Month) UnmarshalText(b []byte) error {
	if s := string(b); s == "" || s == (Month{}).String() {
		*m = Month{}
		return nil
	}
	parsed, err := ParseMonth(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
