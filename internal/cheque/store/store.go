// Package store fetches authoritative cheque records.
//
// Fetch returns sentinel.ErrNotFound when no record exists so callers can
// tell a business miss from an infrastructure failure; any other error means
// the store could not answer.
package store

import (
	"context"

	"chequeverify/internal/cheque/models"
	"chequeverify/pkg/domain"
)

// Fetcher looks up one cheque by its validated number.
type Fetcher interface {
	Fetch(ctx context.Context, number domain.ChequeNumber) (*models.Record, error)
	Health(ctx context.Context) error
}
