package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"chequeverify/pkg/domain"
)

// DateLayout is the wire form of payment issue dates.
const DateLayout = "2006-01-02"

// Record is an authoritative cheque row. It is read-only ground truth; nothing
// in the verification pipeline mutates it.
type Record struct {
	Status           string
	ChequeNumber     domain.ChequeNumber
	PaymentIssueDate time.Time
	AppliedAmount    decimal.Decimal
}

// ChequeData is the api tier's wire representation of a Record. The amount is
// a JSON number carried as json.Number so no float conversion happens in
// transit.
type ChequeData struct {
	ChequeStatus     string      `json:"chequeStatus"`
	ChequeNumber     string      `json:"chequeNumber"`
	PaymentIssueDate string      `json:"paymentIssueDate"`
	AppliedAmount    json.Number `json:"appliedAmount"`
}

// ToData converts a Record to its wire form.
func ToData(r *Record) *ChequeData {
	return &ChequeData{
		ChequeStatus:     r.Status,
		ChequeNumber:     r.ChequeNumber.String(),
		PaymentIssueDate: r.PaymentIssueDate.UTC().Format(DateLayout),
		AppliedAmount:    json.Number(r.AppliedAmount.String()),
	}
}

// FromData parses the wire form back into a Record. Dates may be plain days
// or RFC 3339 timestamps.
func FromData(d *ChequeData) (*Record, error) {
	if d == nil {
		return nil, errors.New("no cheque data")
	}
	number, err := domain.ParseChequeNumber(d.ChequeNumber)
	if err != nil {
		return nil, errors.New("invalid cheque number")
	}
	amount, err := decimal.NewFromString(d.AppliedAmount.String())
	if err != nil {
		return nil, fmt.Errorf("invalid amount: %w", err)
	}
	date, err := time.Parse(DateLayout, d.PaymentIssueDate)
	if err != nil {
		if date, err = time.Parse(time.RFC3339Nano, d.PaymentIssueDate); err != nil {
			return nil, fmt.Errorf("invalid date: %w", err)
		}
	}
	return &Record{
		Status:           d.ChequeStatus,
		ChequeNumber:     number,
		PaymentIssueDate: date,
		AppliedAmount:    amount,
	}, nil
}

// Response is the api tier envelope for cheque lookups.
type Response struct {
	Success bool        `json:"success"`
	Data    *ChequeData `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse is the api tier health body.
type HealthResponse struct {
	Success  bool   `json:"success"`
	Status   string `json:"status"`
	Database string `json:"database"`
}
