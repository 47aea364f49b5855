package table

import (
	"errors"
	"fmt"
	"strings"
)

// Default header names of the payment export.
const (
	DefaultDateColumn     = "Ngày thanh toán"
	DefaultProductColumn  = "Sản phẩm"
	DefaultAmountColumn   = "Đã thanh toán"
	DefaultCustomerColumn = "Mã khách hàng"
)

// Positional fallbacks used only when Roles.AllowPositional is set.
const (
	positionalProduct = 1
	positionalAmount  = 2
)

var ErrColumnNotFound = errors.New("column not found")

// Roles names the columns supplying each transaction field. Empty names
// fall back to the default headers.
type Roles struct {
	Date     string
	Product  string
	Amount   string
	Customer string
	// AllowPositional lets product and amount fall back to columns 1 and 2
	// when neither an override nor a default header is present.
	AllowPositional bool
}

// Schema is a resolved set of column indexes. Customer is -1 when the
// table has no customer identity column.
type Schema struct {
	Date     int
	Product  int
	Amount   int
	Customer int

	AmountName string
}

// HasCustomer reports whether customer identity is available.
func (s Schema) HasCustomer() bool { return s.Customer >= 0 }

// Resolve maps roles onto the columns of t. Date, product and amount are
// required; an explicit override that is missing from the header is an
// error even when a default would match.
func (r Roles) Resolve(t Table) (Schema, error) {
	var (
		s       Schema
		missing []string
		err     error
	)
	required := func(role, override, def string, pos int) int {
		idx, rerr := r.lookup(t, override, def, pos)
		if rerr != nil {
			missing = append(missing, fmt.Sprintf("%s (%v)", role, rerr))
		}
		return idx
	}

	s.Date = required("date", r.Date, DefaultDateColumn, -1)
	s.Product = required("product", r.Product, DefaultProductColumn, positionalProduct)
	s.Amount = required("amount", r.Amount, DefaultAmountColumn, positionalAmount)

	s.Customer, err = r.lookup(t, r.Customer, DefaultCustomerColumn, -1)
	if err != nil {
		if strings.TrimSpace(r.Customer) != "" {
			missing = append(missing, fmt.Sprintf("customer (%v)", err))
		}
		s.Customer = -1
	}

	if len(missing) > 0 {
		return Schema{}, fmt.Errorf("%w: %s; header=%v", ErrColumnNotFound, strings.Join(missing, ", "), t.Header)
	}
	if err := s.distinct(t); err != nil {
		return Schema{}, err
	}
	if s.Amount >= 0 && s.Amount < len(t.Header) {
		s.AmountName = t.Header[s.Amount]
	}
	return s, nil
}

// distinct rejects schemas in which two roles read the same column.
func (s Schema) distinct(t Table) error {
	roles := []struct {
		name string
		idx  int
	}{{"date", s.Date}, {"product", s.Product}, {"amount", s.Amount}, {"customer", s.Customer}}
	seen := make(map[int]string, len(roles))
	for _, r := range roles {
		if r.idx < 0 {
			continue
		}
		if prev, ok := seen[r.idx]; ok {
			return fmt.Errorf("%w: roles %s and %s share column %q", ErrColumnNotFound, prev, r.name, t.Header[r.idx])
		}
		seen[r.idx] = r.name
	}
	return nil
}

func (r Roles) lookup(t Table, override, def string, pos int) (int, error) {
	if name := strings.TrimSpace(override); name != "" {
		if idx := t.Index(name); idx >= 0 {
			return idx, nil
		}
		return -1, fmt.Errorf("override %q", name)
	}
	if idx := t.Index(def); idx >= 0 {
		return idx, nil
	}
	if r.AllowPositional && pos >= 0 && pos < len(t.Header) {
		return pos, nil
	}
	return -1, fmt.Errorf("no %q header", def)
}
