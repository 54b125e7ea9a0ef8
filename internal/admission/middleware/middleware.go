package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"chequeverify/internal/admission/metrics"
	"chequeverify/internal/admission/models"
	audit "chequeverify/pkg/platform/audit"
	"chequeverify/pkg/platform/httputil"
	metadata "chequeverify/pkg/platform/middleware/metadata"
	"chequeverify/pkg/platform/privacy"
)

const exceededMessage = "Too many requests, please try again later."

type Checker interface {
	Check(ctx context.Context, class models.Class, ip string) (*models.Decision, error)
}

type Middleware struct {
	checker  Checker
	logger   *slog.Logger
	audit    audit.Publisher
	metrics  *metrics.Metrics
	sleep    func(ctx context.Context, d time.Duration) error
	disabled bool
}

type Option func(*Middleware)

// WithDisabled disables admission control entirely (for testing/demo mode).
func WithDisabled(disabled bool) Option {
	return func(m *Middleware) {
		m.disabled = disabled
	}
}

func WithAuditPublisher(publisher audit.Publisher) Option {
	return func(m *Middleware) {
		m.audit = publisher
	}
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Middleware) {
		m.metrics = mt
	}
}

// WithSleeper replaces the delay wait, for tests.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(m *Middleware) {
		m.sleep = sleep
	}
}

func New(checker Checker, logger *slog.Logger, opts ...Option) *Middleware {
	m := &Middleware{
		checker: checker,
		logger:  logger,
		audit:   audit.NopPublisher{},
		sleep:   sleepContext,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.disabled {
		logger.Info("admission control disabled")
	}
	return m
}

type decisionKey struct{ class models.Class }

// Delay counts the request and holds it for the decision's delay before
// passing it on. Hard-limited requests are not delayed; the following Limit
// for the same class rejects them using the decision stored here.
func (m *Middleware) Delay(class models.Class) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m.disabled {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			d, ok := m.check(ctx, class)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			ctx = context.WithValue(ctx, decisionKey{class}, d)

			if d.Allowed && d.Delay > 0 {
				m.metrics.ObserveDelay(string(class), d.Delay)
				if err := m.sleep(ctx, d.Delay); err != nil {
					// Client went away while waiting.
					return
				}
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Limit rejects requests over the hard limit with 429. It reuses a decision
// made by Delay for the same class instead of counting the request twice.
func (m *Middleware) Limit(class models.Class) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m.disabled {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			d, ok := ctx.Value(decisionKey{class}).(*models.Decision)
			if !ok {
				if d, ok = m.check(ctx, class); !ok {
					next.ServeHTTP(w, r)
					return
				}
			}

			addHeaders(w, d)
			if !d.Allowed {
				m.reject(w, r, d)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// check fails open: a store error admits the request.
func (m *Middleware) check(ctx context.Context, class models.Class) (*models.Decision, bool) {
	d, err := m.checker.Check(ctx, class, metadata.GetClientIP(ctx))
	if err != nil || d == nil {
		return nil, false
	}
	return d, true
}

func (m *Middleware) reject(w http.ResponseWriter, r *http.Request, d *models.Decision) {
	ctx := r.Context()
	ip := metadata.GetClientIP(ctx)
	path := routePath(r)

	// the operator log names the client; the audit trail keeps only its prefix
	m.logger.WarnContext(ctx, "admission limit exceeded",
		"ip", ip,
		"path", path,
		"class", d.Class,
		"retry_after", d.RetryAfter,
	)
	m.audit.Emit(ctx, audit.Event{
		Action:   string(audit.EventRateLimitExceeded),
		Outcome:  "rejected",
		Reason:   string(d.Class),
		IP:       privacy.AnonymizeIP(ip),
		Path:     path,
		Severity: audit.SeverityWarning,
	})

	w.Header().Set("Retry-After", strconv.Itoa(d.RetryAfter))
	httputil.WriteJSON(w, http.StatusTooManyRequests, &models.ExceededResponse{
		Error:      exceededMessage,
		RetryAfter: d.RetryAfter,
	})
}

func addHeaders(w http.ResponseWriter, d *models.Decision) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
}

// routePath prefers the matched route pattern so paths never carry raw input.
func routePath(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
