package testutil

import (
	"context"
	"net/http"
	"time"

	"chequeverify/pkg/requestcontext"
)

// WithClient sets the client metadata the metadata middleware would.
func WithClient(req *http.Request, ip, userAgent string) *http.Request {
	ctx := requestcontext.WithClientMetadata(req.Context(), ip, userAgent)
	return req.WithContext(ctx)
}

// WithCallerSubject simulates a request that passed credential verification.
func WithCallerSubject(req *http.Request, subject string) *http.Request {
	return req.WithContext(requestcontext.WithCallerSubject(req.Context(), subject))
}

// WithRequestID sets a fixed request ID.
func WithRequestID(req *http.Request, requestID string) *http.Request {
	return req.WithContext(requestcontext.WithRequestID(req.Context(), requestID))
}

// WithTime pins the request time.
func WithTime(req *http.Request, t time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), t))
}

// WithContextValue adds an arbitrary key-value pair to the request context.
func WithContextValue(req *http.Request, key, value any) *http.Request {
	ctx := context.WithValue(req.Context(), key, value)
	return req.WithContext(ctx)
}
