package gateway

import (
	"chequeverify/internal/cheque/models"
)

// Kind tags the outcome of one call to the api tier.
type Kind int

const (
	// KindSuccess: 2xx with a well-formed success envelope.
	KindSuccess Kind = iota
	// KindHTTPError: the api tier answered with anything else. Body is set
	// when the response carried a decodable envelope.
	KindHTTPError
	// KindTimeout: no answer before the call deadline.
	KindTimeout
	// KindNetwork: the request never got an HTTP answer.
	KindNetwork
)

func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindHTTPError:
		return "http_error"
	case KindTimeout:
		return "timeout"
	case KindNetwork:
		return "network"
	default:
		return "unknown"
	}
}

// Result is the tagged outcome of FetchCheque. Only the fields that belong to
// Kind are meaningful.
type Result struct {
	Kind   Kind
	Status int
	Body   *models.Response
	Err    error
}

// Data returns the cheque payload of a successful result.
func (r Result) Data() *models.ChequeData {
	if r.Kind != KindSuccess || r.Body == nil {
		return nil
	}
	return r.Body.Data
}

// ServerError reports an HTTP answer in the 5xx range.
func (r Result) ServerError() bool {
	return r.Kind == KindHTTPError && r.Status >= 500
}
