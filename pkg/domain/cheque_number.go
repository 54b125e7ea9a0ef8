package domain

import (
	"strings"
	"unicode/utf8"

	dErrors "chequeverify/pkg/domain-errors"
)

// MaxChequeNumberLength is the longest accepted cheque number. Sixteen digits
// can exceed the range of a float64 integer, which is why ChequeNumber is
// never converted to a numeric type.
const MaxChequeNumberLength = 16

// ChequeNumber is the canonical cheque identifier: 1 to 16 ASCII decimal
// digits, not all zero, with leading zeros preserved.
//
// Usage: construct via ParseChequeNumber at trust boundaries; direct casting
// bypasses validation and must only happen for values read back from the
// record store.
type ChequeNumber string

// ParseChequeNumber validates a raw cheque number. Surrounding whitespace is
// trimmed; nothing else is canonicalized.
//
// Errors: returns CodeValidation with the fixed message "Invalid input". The
// raw value is never included in the error.
func ParseChequeNumber(raw string) (ChequeNumber, error) {
	s := strings.TrimSpace(raw)

	n := utf8.RuneCountInString(s)
	if n < 1 || n > MaxChequeNumberLength {
		return "", invalidChequeNumber()
	}

	allZero := true
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return "", invalidChequeNumber()
		}
		if c != '0' {
			allZero = false
		}
	}
	if allZero {
		return "", invalidChequeNumber()
	}

	return ChequeNumber(s), nil
}

// String returns the identifier verbatim.
func (c ChequeNumber) String() string {
	return string(c)
}

// IsZero reports whether c was never set.
func (c ChequeNumber) IsZero() bool {
	return c == ""
}

func invalidChequeNumber() error {
	return dErrors.New(dErrors.CodeValidation, "Invalid input")
}
