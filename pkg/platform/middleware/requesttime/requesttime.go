// Package requesttime pins one timestamp per request. Credential minting,
// health responses and audit events read it through requestcontext.Now so a
// single request never straddles two instants.
package requesttime

import (
	"net/http"
	"time"

	"chequeverify/pkg/requestcontext"
)

// Middleware stamps the request with time.Now.
func Middleware(next http.Handler) http.Handler {
	return WithClock(time.Now)(next)
}

// WithClock stamps requests using now. A request that already carries a time
// keeps it.
func WithClock(now func() time.Time) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := requestcontext.TimeFrom(r.Context()); ok {
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(requestcontext.WithTime(r.Context(), now().UTC())))
		})
	}
}
