package store

import (
	"context"
	"log/slog"
	"time"

	"chequeverify/internal/admission/models"
	"chequeverify/pkg/platform/circuit"
)

// FallbackCounter uses a shared primary counter and switches to a local one
// while the primary keeps failing:
//   - consecutive primary errors open the breaker;
//   - while open, the fallback serves and the primary is probed after each cooldown;
//   - successful probes close the breaker again.
//
// Counts restart in the fallback, so a client can briefly get a fresh window
// during an outage.
type FallbackCounter struct {
	primary  Counter
	fallback Counter
	breaker  *circuit.Breaker
	logger   *slog.Logger
}

func NewFallback(primary, fallback Counter, breaker *circuit.Breaker, logger *slog.Logger) *FallbackCounter {
	if breaker == nil {
		breaker = circuit.New("admission-redis", circuit.WithFailureThreshold(5), circuit.WithSuccessThreshold(3))
	}
	return &FallbackCounter{
		primary:  primary,
		fallback: fallback,
		breaker:  breaker,
		logger:   logger,
	}
}

// Degraded reports whether the fallback is serving.
func (c *FallbackCounter) Degraded() bool {
	return c.breaker.IsOpen()
}

func (c *FallbackCounter) Increment(ctx context.Context, key string, window time.Duration) (models.Window, error) {
	if !c.breaker.Allow() {
		return c.fallback.Increment(ctx, key, window)
	}

	w, err := c.primary.Increment(ctx, key, window)
	if err != nil {
		useFallback, change := c.breaker.RecordFailure()
		if change.Opened {
			c.logger.WarnContext(ctx, "admission store degraded, using in-memory counters", "error", err)
		}
		if useFallback {
			return c.fallback.Increment(ctx, key, window)
		}
		return models.Window{}, err
	}

	if _, change := c.breaker.RecordSuccess(); change.Closed {
		c.logger.InfoContext(ctx, "admission store recovered")
	}
	return w, nil
}
