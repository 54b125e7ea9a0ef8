package store

import (
	"context"
	"sync"
	"time"

	"chequeverify/internal/admission/models"
)

// sweepEvery bounds how often expired windows are purged.
const sweepEvery = 1024

// InMemoryCounter implements Counter with per-process fixed windows.
type InMemoryCounter struct {
	mu      sync.Mutex
	windows map[string]*fixedWindow
	now     func() time.Time
	calls   int
}

type fixedWindow struct {
	count   int
	resetAt time.Time
}

type MemoryOption func(*InMemoryCounter)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) MemoryOption {
	return func(c *InMemoryCounter) {
		c.now = now
	}
}

func NewInMemory(opts ...MemoryOption) *InMemoryCounter {
	c := &InMemoryCounter{
		windows: make(map[string]*fixedWindow),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Increment counts one request against key, starting a new window when the
// previous one has ended.
func (c *InMemoryCounter) Increment(_ context.Context, key string, window time.Duration) (models.Window, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.calls++
	if c.calls%sweepEvery == 0 {
		c.sweep(now)
	}

	w, ok := c.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &fixedWindow{resetAt: now.Add(window)}
		c.windows[key] = w
	}
	w.count++
	return models.Window{Count: w.count, ResetAt: w.resetAt}, nil
}

// Len returns the number of tracked keys, expired ones included until swept.
func (c *InMemoryCounter) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.windows)
}

func (c *InMemoryCounter) sweep(now time.Time) {
	for key, w := range c.windows {
		if !now.Before(w.resetAt) {
			delete(c.windows, key)
		}
	}
}
