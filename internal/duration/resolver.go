// Package duration maps free-text product labels to entitlement lengths.
//
// Labels are matched against an ordered keyword table; the first rule with a
// keyword contained in the label wins. The table is data, not code: the
// built-in one follows Vietnamese product naming and can be replaced with a
// YAML file for other markets.
package duration

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Unresolved is returned when no rule matches a label.
const Unresolved = 0

var ErrInvalidRule = errors.New("invalid duration rule")

// Rule maps any of its keywords to Days.
type Rule struct {
	Name     string   `yaml:"name" json:"name"`
	Days     int      `yaml:"days" json:"days" validate:"required,min=1"`
	Keywords []string `yaml:"keywords" json:"keywords" validate:"required,min=1,dive,required"`
}

type compiledRule struct {
	days     int
	keywords []string
}

// Resolver is immutable once built and safe for concurrent use.
type Resolver struct {
	rules    []Rule
	compiled []compiledRule
}

// DefaultRules is the keyword table for Vietnamese product names.
// Longer durations come first so "12 tháng" never matches the "2 tháng" rule.
func DefaultRules() []Rule {
	return []Rule{
		{Name: "12 months", Days: 365, Keywords: []string{"12 tháng", "1 năm"}},
		{Name: "6 months", Days: 180, Keywords: []string{"06 tháng", "6 tháng"}},
		{Name: "3 months", Days: 90, Keywords: []string{"03 tháng", "3 tháng"}},
		{Name: "2 months", Days: 60, Keywords: []string{"02 tháng", "2 tháng"}},
		{Name: "1 month", Days: 30, Keywords: []string{"01 tháng", "1 tháng"}},
		{Name: "2 weeks", Days: 14, Keywords: []string{"2 tuần"}},
		{Name: "1 week", Days: 7, Keywords: []string{"1 tuần"}},
		{Name: "trial", Days: 1, Keywords: []string{"học thử"}},
	}
}

// Default returns a resolver over DefaultRules.
func Default() *Resolver {
	r, err := NewResolver(DefaultRules())
	if err != nil {
		panic(fmt.Sprintf("duration: default rules: %v", err))
	}
	return r
}

// NewResolver validates rules and prepares them for matching, keeping their order.
func NewResolver(rules []Rule) (*Resolver, error) {
	if len(rules) == 0 {
		return nil, fmt.Errorf("%w: no rules", ErrInvalidRule)
	}
	v := validator.New()
	compiled := make([]compiledRule, 0, len(rules))
	for i, rule := range rules {
		if err := v.Struct(rule); err != nil {
			return nil, fmt.Errorf("%w: rule %d (%s): %v", ErrInvalidRule, i, rule.Name, err)
		}
		cr := compiledRule{days: rule.Days}
		for _, kw := range rule.Keywords {
			nkw := Normalize(kw)
			if nkw == "" {
				return nil, fmt.Errorf("%w: rule %d (%s): blank keyword", ErrInvalidRule, i, rule.Name)
			}
			cr.keywords = append(cr.keywords, nkw)
		}
		compiled = append(compiled, cr)
	}
	return &Resolver{
		rules:    append([]Rule(nil), rules...),
		compiled: compiled,
	}, nil
}

// Resolve returns the entitlement length in days for label, or Unresolved.
func (r *Resolver) Resolve(label string) int {
	l := Normalize(label)
	if l == "" {
		return Unresolved
	}
	for _, rule := range r.compiled {
		for _, kw := range rule.keywords {
			if strings.Contains(l, kw) {
				return rule.days
			}
		}
	}
	return Unresolved
}

// Rules returns a copy of the rule table in priority order.
func (r *Resolver) Rules() []Rule {
	return append([]Rule(nil), r.rules...)
}

// Normalize prepares text for keyword matching: NFC composition, case
// folding and collapsed whitespace.
func Normalize(s string) string {
	s = norm.NFC.String(s)
	s = cases.Fold().String(s)
	return strings.Join(strings.Fields(s), " ")
}
