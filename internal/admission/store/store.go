// Package store holds the fixed-window counters behind admission control.
package store

import (
	"context"
	"time"

	"chequeverify/internal/admission/models"
)

// Counter counts requests per key in fixed windows.
type Counter interface {
	Increment(ctx context.Context, key string, window time.Duration) (models.Window, error)
}
