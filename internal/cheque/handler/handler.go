package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"chequeverify/internal/cheque/metrics"
	"chequeverify/internal/cheque/models"
	"chequeverify/internal/cheque/store"
	"chequeverify/pkg/domain"
	dErrors "chequeverify/pkg/domain-errors"
	audit "chequeverify/pkg/platform/audit"
	"chequeverify/pkg/platform/httputil"
	metadata "chequeverify/pkg/platform/middleware/metadata"
	request "chequeverify/pkg/platform/middleware/request"
	"chequeverify/pkg/platform/privacy"
	"chequeverify/pkg/platform/sentinel"
)

const (
	ChequeRoute = "/api/v1/cheque/{chequeNumber}"
	HealthRoute = "/api/v1/health"
)

// Handler serves the api tier: authenticated record lookups and health.
type Handler struct {
	fetcher store.Fetcher
	logger  *slog.Logger
	metrics *metrics.Metrics
	audit   audit.Publisher
}

// New creates a new cheque Handler. publisher may be nil.
func New(fetcher store.Fetcher, logger *slog.Logger, m *metrics.Metrics, publisher audit.Publisher) *Handler {
	if publisher == nil {
		publisher = audit.NopPublisher{}
	}
	return &Handler{
		fetcher: fetcher,
		logger:  logger,
		metrics: m,
		audit:   publisher,
	}
}

// Register mounts the routes. requireCredential guards the lookup only;
// health stays open for orchestration probes.
func (h *Handler) Register(r chi.Router, requireCredential func(http.Handler) http.Handler) {
	r.Get(HealthRoute, h.HandleHealth)
	r.With(requireCredential).Get(ChequeRoute, h.HandleGetCheque)
}

// HandleGetCheque validates the path number and returns the matching record.
func (h *Handler) HandleGetCheque(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)
	raw := chi.URLParam(r, "chequeNumber")

	number, err := domain.ParseChequeNumber(raw)
	if err != nil {
		h.logger.WarnContext(ctx, "rejected cheque number",
			append(privacy.Shape("cheque_number", raw), "request_id", requestID)...,
		)
		h.finish(r, "invalid", audit.SeverityInfo)
		httputil.WriteError(w, err)
		return
	}

	rec, err := h.fetcher.Fetch(ctx, number)
	if err != nil {
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			h.logger.InfoContext(ctx, "cheque not found", "request_id", requestID)
			h.finish(r, "not_found", audit.SeverityInfo)
			httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "Cheque not found"))
		case errors.Is(err, sentinel.ErrUnavailable), errors.Is(err, sentinel.ErrTimeout):
			h.logger.ErrorContext(ctx, "record store unavailable", "request_id", requestID, "error", err)
			h.finish(r, "unavailable", audit.SeverityWarning)
			httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeUnavailable, "Service temporarily unavailable"))
		default:
			h.logger.ErrorContext(ctx, "record fetch failed", "request_id", requestID, "error", err)
			h.finish(r, "error", audit.SeverityWarning)
			httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "record fetch failed"))
		}
		return
	}

	h.finish(r, "found", audit.SeverityInfo)
	httputil.WriteJSON(w, http.StatusOK, models.Response{Success: true, Data: models.ToData(rec)})
}

// HandleHealth reports database reachability.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.fetcher.Health(r.Context()); err != nil {
		h.logger.WarnContext(r.Context(), "database health check failed",
			"request_id", request.GetRequestID(r.Context()),
			"error", err,
		)
		httputil.WriteJSON(w, http.StatusServiceUnavailable, models.HealthResponse{Status: "degraded", Database: "down"})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.HealthResponse{Success: true, Status: "ok", Database: "up"})
}

func (h *Handler) finish(r *http.Request, outcome string, severity audit.Severity) {
	h.metrics.IncrementLookup(outcome)
	h.audit.Emit(r.Context(), audit.Event{
		Action:   string(audit.EventChequeLookup),
		Outcome:  outcome,
		IP:       privacy.AnonymizeIP(metadata.GetClientIP(r.Context())),
		Path:     ChequeRoute,
		Severity: severity,
	})
}
