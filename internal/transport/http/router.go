// Package httptransport assembles the chi routers for both tiers. Feature
// handlers own their routes; this package owns the shared middleware chain
// and the fallbacks for unknown paths.
package httptransport

import (
	"log/slog"
	"net/http"
	"net/netip"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	dErrors "chequeverify/pkg/domain-errors"
	"chequeverify/pkg/platform/httputil"
	metadata "chequeverify/pkg/platform/middleware/metadata"
	request "chequeverify/pkg/platform/middleware/request"
	"chequeverify/pkg/platform/middleware/requesttime"
	"chequeverify/pkg/platform/middleware/security"
	"chequeverify/pkg/requestcontext"
)

const MetricsRoute = "/metrics"

// Middleware is the shape every admission and auth wrapper takes.
type Middleware = func(http.Handler) http.Handler

// BackendRoutes mounts the verification handler's routes.
type BackendRoutes interface {
	Register(r chi.Router, admitVerify, admitHealth func(http.Handler) http.Handler)
}

// APIRoutes mounts the record lookup handler's routes.
type APIRoutes interface {
	Register(r chi.Router, requireCredential func(http.Handler) http.Handler)
}

type BackendConfig struct {
	AllowedOrigins []string
	// General, VerifyDelay, VerifyLimit and HealthLimit are the admission
	// wrappers per class. Nil means no admission for that slot.
	// TrustedProxies may set X-Forwarded-For; everyone else is keyed on the
	// connecting address.
	TrustedProxies []netip.Prefix

	General     Middleware
	VerifyDelay Middleware
	VerifyLimit Middleware
	HealthLimit Middleware
	Metrics     http.Handler
}

// NewBackendRouter builds the public tier router. The general class applies
// to every route except health, which has its own class.
func NewBackendRouter(routes BackendRoutes, cfg BackendConfig, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(
		chimw.Recoverer,
		request.RequestID,
		requesttime.Middleware,
		metadata.WithTrustedProxies(cfg.TrustedProxies),
		accessLog(logger),
		security.Headers,
		security.CORS(cfg.AllowedOrigins),
	)
	r.NotFound(notFound)
	r.MethodNotAllowed(methodNotAllowed)

	general := orPass(cfg.General)
	routes.Register(r,
		chain(general, orPass(cfg.VerifyDelay), orPass(cfg.VerifyLimit)),
		orPass(cfg.HealthLimit),
	)
	if cfg.Metrics != nil {
		r.With(general).Method(http.MethodGet, MetricsRoute, cfg.Metrics)
	}
	return r
}

type APIConfig struct {
	RequireCredential Middleware
	Metrics           http.Handler
}

// NewAPIRouter builds the internal data-access tier router.
func NewAPIRouter(routes APIRoutes, cfg APIConfig, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(
		chimw.Recoverer,
		request.RequestID,
		requesttime.Middleware,
		metadata.ClientMetadata,
		accessLog(logger),
	)
	r.NotFound(notFound)
	r.MethodNotAllowed(methodNotAllowed)

	routes.Register(r, orPass(cfg.RequireCredential))
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, MetricsRoute, cfg.Metrics)
	}
	return r
}

func notFound(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "Not found"))
}

func methodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusMethodNotAllowed, httputil.ErrorResponse{Error: "Method not allowed"})
}

// accessLog writes one line per request. The path is the matched route
// pattern so cheque numbers in the api tier URL never reach the log.
func accessLog(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			logger.InfoContext(r.Context(), "http request",
				"method", r.Method,
				"route", route,
				"status", ww.Status(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", request.GetRequestID(r.Context()),
				"bot", requestcontext.IsBot(r.Context()),
			)
		})
	}
}

func orPass(m Middleware) Middleware {
	if m == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return m
}

func chain(ms ...Middleware) Middleware {
	return func(next http.Handler) http.Handler {
		for i := len(ms) - 1; i >= 0; i-- {
			next = ms[i](next)
		}
		return next
	}
}
