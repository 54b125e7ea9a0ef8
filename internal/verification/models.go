package verification

import (
	"bytes"
	"encoding/json"
	"errors"

	"chequeverify/internal/cheque/models"
	"chequeverify/pkg/domain"
	dErrors "chequeverify/pkg/domain-errors"
)

// RawField is a request field accepted as a JSON string or number and kept
// as its exact text. null decodes to the empty string.
type RawField string

func (f *RawField) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*f = ""
		return nil
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = RawField(s)
		return nil
	}
	var n json.Number
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(&n); err != nil {
		return errors.New("field must be a string or number")
	}
	*f = RawField(n.String())
	return nil
}

// Request is the body of POST /api/cheque/verify.
type Request struct {
	ChequeNumber     RawField `json:"chequeNumber"`
	AppliedAmount    RawField `json:"appliedAmount"`
	PaymentIssueDate RawField `json:"paymentIssueDate"`

	number domain.ChequeNumber
}

// Validate runs the Number Validator and then the Field Validator. On
// success the canonical identifier is available from Number.
func (r *Request) Validate() error {
	number, err := domain.ParseChequeNumber(string(r.ChequeNumber))
	if err != nil {
		return err
	}
	if v := ValidateFields(string(r.AppliedAmount), string(r.PaymentIssueDate)); !v.IsValid {
		return dErrors.New(dErrors.CodeValidation, "Invalid input").WithDetails(v.Error)
	}
	r.number = number
	return nil
}

// Number returns the identifier set by a successful Validate.
func (r *Request) Number() domain.ChequeNumber {
	return r.number
}

// Outcome is the result of comparing a request against the fetched record.
type Outcome struct {
	Matched bool
	Reasons []string
	Record  *models.ChequeData
}

// Response is the success envelope of the verify endpoint.
type Response struct {
	Success bool               `json:"success"`
	Data    *models.ChequeData `json:"data"`
	Message string             `json:"message"`
}

// HealthResponse is the backend health body.
type HealthResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Timestamp string `json:"timestamp"`
	Upstream  string `json:"upstream,omitempty"`
}
