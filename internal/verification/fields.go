// Package verification decides whether citizen-supplied cheque details match
// an authoritative record.
//
// Raw amount and date strings are validated here before any coercion, and the
// comparator works on exact decimals so currency tolerances are not subject to
// float rounding.
package verification

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Field rejection reasons. They are client safe and never contain the raw value.
const (
	ReasonMissingFields = "Applied amount and payment issue date are required"
	ReasonInvalidAmount = "Applied amount must be a non-negative number"
	ReasonInvalidDate   = "Payment issue date must be a valid date"
)

// dateLayouts are tried in order. Zone-less layouts are interpreted as UTC.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

var (
	errEmpty          = errors.New("empty value")
	errNotANumber     = errors.New("not a finite number")
	errNegativeAmount = errors.New("negative amount")
	errNotADate       = errors.New("not a calendar date")
)

// FieldValidation is the Field Validator's verdict.
type FieldValidation struct {
	IsValid bool
	Error   string
}

// ValidateFields checks that both raw fields are present and parse.
func ValidateFields(rawAmount, rawDate string) FieldValidation {
	if strings.TrimSpace(rawAmount) == "" || strings.TrimSpace(rawDate) == "" {
		return FieldValidation{Error: ReasonMissingFields}
	}
	if _, err := ParseAmount(rawAmount); err != nil {
		return FieldValidation{Error: ReasonInvalidAmount}
	}
	if _, err := ParseIssueDate(rawDate); err != nil {
		return FieldValidation{Error: ReasonInvalidDate}
	}
	return FieldValidation{IsValid: true}
}

// ParseAmount parses a non-negative finite decimal amount of any size. NaN,
// Infinity, hex and locale-formatted strings are rejected by the decimal
// grammar, as are exponents outside the int32 range it can represent.
func ParseAmount(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Zero, errEmpty
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, errNotANumber
	}
	if d.IsNegative() {
		return decimal.Zero, errNegativeAmount
	}
	return d, nil
}

// ParseIssueDate parses a date or timestamp and returns midnight UTC of its
// UTC calendar day. Out-of-range components such as month 13 or 30 February
// are rejected.
func ParseIssueDate(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, errEmpty
	}
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return calendarDay(t), nil
		}
	}
	return time.Time{}, errNotADate
}

func calendarDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
