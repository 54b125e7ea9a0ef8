package verification

import (
	"math"

	"github.com/shopspring/decimal"

	"chequeverify/internal/cheque/models"
)

// Mismatch reasons, in the order Compare reports them.
const (
	ReasonAmountMismatch = "Applied amount does not match"
	ReasonDateMismatch   = "Payment issue date does not match"
)

// AmountTolerance is the absolute difference at or below which two amounts match.
var AmountTolerance = decimal.New(1, -2)

// Compare returns the mismatch reasons between the submitted fields and rec.
// An empty result is a full match. Each field is checked independently and an
// unparseable side counts as a mismatch for that field.
func Compare(rawAmount, rawDate string, rec *models.Record) []string {
	reasons := make([]string, 0, 2)
	if rec == nil {
		return append(reasons, ReasonAmountMismatch, ReasonDateMismatch)
	}

	if !amountsMatch(rawAmount, rec.AppliedAmount) {
		reasons = append(reasons, ReasonAmountMismatch)
	}
	if !datesMatch(rawDate, rec) {
		reasons = append(reasons, ReasonDateMismatch)
	}
	return reasons
}

func amountsMatch(raw string, recorded decimal.Decimal) bool {
	submitted, err := ParseAmount(raw)
	if err != nil {
		return false
	}
	return withinTolerance(submitted, recorded)
}

// zeroMagnitude sorts below every non-zero magnitude.
const zeroMagnitude = math.MinInt64 / 4

// withinTolerance reports |a-b| <= AmountTolerance for non-negative a and b.
//
// Amounts have no upper bound, and aligning 1e900000000 with 0.01 would
// allocate a billion-digit coefficient. Magnitudes are compared first so
// exponents are only aligned when they sit within the operands' digit counts.
func withinTolerance(a, b decimal.Decimal) bool {
	hi, lo := a, b
	if less(a, b) {
		hi, lo = b, a
	}
	top, low := magnitude(hi), magnitude(lo)
	switch {
	case top <= -2:
		// both below 0.01
		return true
	case top >= 0 && top-low >= 2:
		// hi >= 10^(top-1) and lo < 10^(top-2)
		return false
	case top-low <= 1:
		return atMostTolerance(hi.Sub(lo))
	}

	// hi is in [0.01, 0.1) and lo below 0.001: match iff lo >= hi-0.01.
	excess := hi.Sub(AmountTolerance)
	if excess.Sign() <= 0 {
		return true
	}
	switch m := magnitude(excess); {
	case m > low:
		return false
	case m < low:
		return true
	default:
		return lo.GreaterThanOrEqual(excess)
	}
}

// atMostTolerance compares a non-negative difference with AmountTolerance.
func atMostTolerance(d decimal.Decimal) bool {
	switch m := magnitude(d); {
	case m <= -2:
		return true
	case m >= 0:
		return false
	default:
		return d.LessThanOrEqual(AmountTolerance)
	}
}

// magnitude is the decimal position just above the leading digit:
// 10^(m-1) <= d < 10^m.
func magnitude(d decimal.Decimal) int64 {
	if d.IsZero() {
		return zeroMagnitude
	}
	return int64(d.NumDigits()) + int64(d.Exponent())
}

// less orders non-negative decimals, aligning exponents only when their
// magnitudes are equal.
func less(a, b decimal.Decimal) bool {
	ma, mb := magnitude(a), magnitude(b)
	if ma != mb || ma == zeroMagnitude {
		return ma < mb
	}
	return a.LessThan(b)
}
