package auth

import (
	"log/slog"
	"net/http"
	"strings"

	dErrors "chequeverify/pkg/domain-errors"
	audit "chequeverify/pkg/platform/audit"
	"chequeverify/pkg/platform/httputil"
	metadata "chequeverify/pkg/platform/middleware/metadata"
	request "chequeverify/pkg/platform/middleware/request"
	"chequeverify/pkg/platform/privacy"
	"chequeverify/pkg/requestcontext"
)

// TokenVerifier validates an inter-tier bearer credential.
type TokenVerifier interface {
	VerifyToken(tokenString string) (*CallerClaims, error)
	RejectionReason(err error) string
}

// CallerClaims are the verified facts about the calling tier.
type CallerClaims struct {
	Subject string
	Purpose string
	JTI     string
}

// Options tune RequireCredential.
type Options struct {
	// Disabled skips verification entirely. Local development only.
	Disabled bool
	Audit    audit.Publisher
	// Route labels audit events; the raw path carries the cheque number.
	Route string
	// OnReject is called with the rejection reason, for metrics.
	OnReject func(reason string)
}

// RequireCredential rejects requests without a valid bearer credential.
// A nil verifier with auth enabled means the secret is not configured; every
// request then fails with a configuration error instead of being let through.
func RequireCredential(verifier TokenVerifier, logger *slog.Logger, opts Options) func(http.Handler) http.Handler {
	if opts.Audit == nil {
		opts.Audit = audit.NopPublisher{}
	}
	return func(next http.Handler) http.Handler {
		if opts.Disabled {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := request.GetRequestID(ctx)

			if verifier == nil {
				logger.ErrorContext(ctx, "credential verification not configured",
					"request_id", requestID,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeConfig, "credential verification not configured"))
				return
			}

			reject := func(reason string, err error) {
				logger.WarnContext(ctx, "unauthorized access",
					"reason", reason,
					"request_id", requestID,
					"ip_prefix", privacy.AnonymizeIP(metadata.GetClientIP(ctx)),
				)
				opts.Audit.Emit(ctx, audit.Event{
					Action:   string(audit.EventCredentialRejected),
					Outcome:  "rejected",
					Reason:   reason,
					IP:       privacy.AnonymizeIP(metadata.GetClientIP(ctx)),
					Path:     opts.Route,
					Severity: audit.SeverityWarning,
				})
				if opts.OnReject != nil {
					opts.OnReject(reason)
				}
				httputil.WriteError(w, err)
			}

			const bearerPrefix = "Bearer "
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), bearerPrefix)
			if !ok || strings.TrimSpace(token) == "" {
				reject("missing_token", dErrors.New(dErrors.CodeUnauthorized, "Missing or invalid Authorization header"))
				return
			}

			claims, err := verifier.VerifyToken(token)
			if err != nil {
				reject(verifier.RejectionReason(err), err)
				return
			}

			ctx = requestcontext.WithCallerSubject(ctx, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
