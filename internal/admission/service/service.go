package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"chequeverify/internal/admission/metrics"
	"chequeverify/internal/admission/models"
	"chequeverify/internal/admission/store"
	"chequeverify/pkg/platform/privacy"
)

type Service struct {
	counter  store.Counter
	policies map[models.Class]models.Policy
	now      func() time.Time
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithPolicy overrides the policy for one class.
func WithPolicy(class models.Class, p models.Policy) Option {
	return func(s *Service) {
		s.policies[class] = p
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func New(counter store.Counter, opts ...Option) (*Service, error) {
	if counter == nil {
		return nil, errors.New("counter store is required")
	}
	svc := &Service{
		counter:  counter,
		policies: models.DefaultPolicies(),
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	for class, p := range svc.policies {
		if p.Limit <= 0 || p.Window <= 0 {
			return nil, fmt.Errorf("admission policy %q needs a positive limit and window", class)
		}
	}
	return svc, nil
}

// Policy returns the configured policy for class.
func (s *Service) Policy(class models.Class) (models.Policy, bool) {
	p, ok := s.policies[class]
	return p, ok
}

// Check counts one request from ip against class and decides whether it is
// admitted, delayed, or rejected. Store errors are returned to the caller,
// which fails open.
func (s *Service) Check(ctx context.Context, class models.Class, ip string) (*models.Decision, error) {
	policy, ok := s.policies[class]
	if !ok {
		return nil, fmt.Errorf("no admission policy for class %q", class)
	}

	w, err := s.counter.Increment(ctx, models.NewKey(class, ip), policy.Window)
	if err != nil {
		s.metrics.IncrementStoreErrors()
		s.logger.ErrorContext(ctx, "admission store unavailable",
			"ip_prefix", privacy.AnonymizeIP(ip),
			"class", class,
			"error", err,
		)
		return nil, fmt.Errorf("increment admission counter: %w", err)
	}

	state := policy.StateFor(w.Count)
	d := &models.Decision{
		Class:     class,
		State:     state,
		Allowed:   state != models.StateHardLimit,
		Limit:     policy.Limit,
		Remaining: max(policy.Limit-w.Count, 0),
		ResetAt:   w.ResetAt,
	}

	switch state {
	case models.StateSoftThreshold:
		d.Delay = policy.DelayFor(w.Count)
	case models.StateHardLimit:
		d.RetryAfter = retryAfterSeconds(w.ResetAt.Sub(s.now()))
	}

	s.metrics.IncrementDecision(string(class), state.String())
	return d, nil
}

func retryAfterSeconds(d time.Duration) int {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}
