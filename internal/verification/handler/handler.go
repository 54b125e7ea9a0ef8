package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"chequeverify/internal/verification"
	"chequeverify/internal/verification/metrics"
	dErrors "chequeverify/pkg/domain-errors"
	audit "chequeverify/pkg/platform/audit"
	"chequeverify/pkg/platform/httputil"
	metadata "chequeverify/pkg/platform/middleware/metadata"
	request "chequeverify/pkg/platform/middleware/request"
	"chequeverify/pkg/platform/privacy"
	"chequeverify/pkg/requestcontext"
)

const (
	VerifyRoute = "/api/cheque/verify"
	HealthRoute = "/health"

	msgVerified = "Cheque verified successfully"
)

// Service is the verification use case.
type Service interface {
	Verify(ctx context.Context, req *verification.Request) (*verification.Outcome, error)
}

// UpstreamChecker probes the api tier for the health endpoint.
type UpstreamChecker interface {
	Health(ctx context.Context) error
}

// Handler serves the backend tier's public routes.
type Handler struct {
	service  Service
	logger   *slog.Logger
	metrics  *metrics.Metrics
	audit    audit.Publisher
	upstream UpstreamChecker
}

// New creates a verification Handler. publisher and upstream may be nil;
// a nil upstream skips the api tier probe in health responses.
func New(service Service, logger *slog.Logger, m *metrics.Metrics, publisher audit.Publisher, upstream UpstreamChecker) *Handler {
	if publisher == nil {
		publisher = audit.NopPublisher{}
	}
	return &Handler{
		service:  service,
		logger:   logger,
		metrics:  m,
		audit:    publisher,
		upstream: upstream,
	}
}

// Register mounts the routes. admit wraps the verify route with its admission
// chain and health with its own.
func (h *Handler) Register(r chi.Router, admitVerify, admitHealth func(http.Handler) http.Handler) {
	r.With(admitHealth).Get(HealthRoute, h.HandleHealth)
	r.With(admitVerify).Post(VerifyRoute, h.HandleVerify)
}

// HandleVerify validates the submission, fetches the record through the api
// tier, and reports whether the details match.
func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[verification.Request](w, r, h.logger, ctx, requestID)
	if !ok {
		h.logger.InfoContext(ctx, "verification request rejected", "request_id", requestID)
		h.finish(r, "invalid", start)
		return
	}

	outcome, err := h.service.Verify(ctx, req)
	if err != nil {
		result := resultFor(err)
		h.logger.InfoContext(ctx, "verification completed",
			append(fieldShapes(req), "request_id", requestID, "result", result)...,
		)
		h.finish(r, result, start)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "verification completed",
		append(fieldShapes(req), "request_id", requestID, "result", "matched")...,
	)
	h.finish(r, "matched", start)
	httputil.WriteJSON(w, http.StatusOK, verification.Response{
		Success: true,
		Data:    outcome.Record,
		Message: msgVerified,
	})
}

// HandleHealth reports liveness and, when configured, api tier reachability.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	resp := verification.HealthResponse{
		Status:    "ok",
		Service:   "backend",
		Timestamp: requestcontext.Now(r.Context()).UTC().Format(time.RFC3339),
	}
	if h.upstream == nil {
		httputil.WriteJSON(w, http.StatusOK, resp)
		return
	}

	if err := h.upstream.Health(r.Context()); err != nil {
		h.logger.WarnContext(r.Context(), "api tier health check failed",
			"request_id", request.GetRequestID(r.Context()),
			"error", err,
		)
		resp.Status = "degraded"
		resp.Upstream = "down"
		httputil.WriteJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	resp.Upstream = "up"
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) finish(r *http.Request, result string, start time.Time) {
	h.metrics.IncrementOutcome(result)
	h.metrics.ObserveDuration(result, time.Since(start))

	severity := audit.SeverityInfo
	if result == "upstream_error" || result == "timeout" {
		severity = audit.SeverityWarning
	}
	h.audit.Emit(r.Context(), audit.Event{
		Action:   string(audit.EventVerificationCompleted),
		Outcome:  result,
		IP:       privacy.AnonymizeIP(metadata.GetClientIP(r.Context())),
		Path:     VerifyRoute,
		Severity: severity,
	})
}

func resultFor(err error) string {
	switch dErrors.CodeOf(err) {
	case dErrors.CodeMismatch:
		return "mismatch"
	case dErrors.CodeNotFound:
		return "not_found"
	case dErrors.CodeValidation:
		return "invalid"
	case dErrors.CodeTimeout:
		return "timeout"
	default:
		return "upstream_error"
	}
}

func fieldShapes(req *verification.Request) []any {
	attrs := privacy.Shape("cheque_number", string(req.ChequeNumber))
	attrs = append(attrs, privacy.Shape("applied_amount", string(req.AppliedAmount))...)
	return append(attrs, privacy.Shape("payment_issue_date", string(req.PaymentIssueDate))...)
}
