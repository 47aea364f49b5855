package core

import (
	"errors"
	"strings"
)

// UnknownCustomer is substituted when a row carries no customer identity.
const UnknownCustomer = "Unknown"

type (
	// Transaction is one raw payment row after its payment date was parsed.
	Transaction struct {
		ID          int // 1-based row number in the source table
		PaymentDate Date
		Product     string
		AmountRaw   string
		CustomerID  string
	}

	// CleanedTransaction is a transaction with its entitlement resolved.
	CleanedTransaction struct {
		Transaction
		DurationDays int
		Amount       float64
		DailyRate    float64
	}

	// LedgerRow is one day of accrued revenue owned by a single transaction.
	LedgerRow struct {
		Date          Date
		DailyRevenue  float64
		CustomerID    string
		Product       string
		TransactionID int
	}
)

var (
	ErrInvalidDate     = errors.New("invalid date")
	ErrInvalidDuration = errors.New("invalid duration")
	ErrNegativeAmount  = errors.New("negative amount")
)

// NormalizeCustomerID trims the id and falls back to UnknownCustomer.
func NormalizeCustomerID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return UnknownCustomer
	}
	return id
}

// IsKnownCustomer reports whether id identifies a real customer.
func IsKnownCustomer(id string) bool {
	return id != "" && id != UnknownCustomer
}

// NewCleanedTransaction derives amount and daily rate for t.
// A zero duration leaves DailyRate at zero; such transactions never reach the ledger.
func NewCleanedTransaction(t Transaction, durationDays int) CleanedTransaction {
	ct := CleanedTransaction{
		Transaction:  t,
		DurationDays: durationDays,
		Amount:       NormalizeAmount(t.AmountRaw),
	}
	if durationDays > 0 {
		ct.DailyRate = ct.Amount / float64(durationDays)
	}
	return ct
}

// EndDate returns the last entitled day, inclusive.
func (t CleanedTransaction) EndDate() Date {
	if t.DurationDays <= 0 {
		return t.PaymentDate
	}
	return t.PaymentDate.AddDays(t.DurationDays - 1)
}

func (t CleanedTransaction) Validate() error {
	if err := t.PaymentDate.Validate(); err != nil {
		return err
	}
	if t.DurationDays <= 0 {
		return ErrInvalidDuration
	}
	if t.Amount < 0 {
		return ErrNegativeAmount
	}
	return nil
}
