package service

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"chequeverify/internal/cheque/models"
	"chequeverify/internal/gateway"
	"chequeverify/internal/verification"
	"chequeverify/pkg/domain"
	dErrors "chequeverify/pkg/domain-errors"
	audit "chequeverify/pkg/platform/audit"
	"chequeverify/pkg/platform/privacy"
	"chequeverify/pkg/requestcontext"
)

// Gateway is the backend's view of the api tier.
type Gateway interface {
	FetchCheque(ctx context.Context, number domain.ChequeNumber) gateway.Result
}

// Client-facing messages for upstream failures.
const (
	msgNotFound        = "Cheque not found"
	msgMismatch        = "Verification failed"
	msgTimeout         = "Verification service timed out"
	msgBadGateway      = "Verification service error"
	msgUnavailable     = "Service temporarily unavailable"
	msgInvalidUpstream = "Invalid input"
)

type Service struct {
	gateway        Gateway
	auditPublisher audit.Publisher
	logger         *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher audit.Publisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func New(gw Gateway, opts ...Option) (*Service, error) {
	if gw == nil {
		return nil, errors.New("gateway is required")
	}
	svc := &Service{
		gateway:        gw,
		auditPublisher: audit.NopPublisher{},
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Verify fetches the record for a validated request and compares it.
//
// A mismatch returns both the Outcome and a CodeMismatch error carrying the
// reasons. Every other failure returns a nil Outcome.
func (s *Service) Verify(ctx context.Context, req *verification.Request) (*verification.Outcome, error) {
	number := req.Number()
	if number.IsZero() {
		return nil, dErrors.New(dErrors.CodeValidation, "Invalid input")
	}

	res := s.gateway.FetchCheque(ctx, number)
	if res.Kind != gateway.KindSuccess {
		return nil, s.classify(ctx, res)
	}

	data := res.Data()
	rec, err := models.FromData(data)
	if err != nil {
		s.logger.ErrorContext(ctx, "api tier returned malformed cheque data",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		s.emitUpstreamFailure(ctx, "malformed_record")
		return nil, dErrors.Wrap(err, dErrors.CodeBadGateway, msgBadGateway)
	}
	if rec.ChequeNumber != number {
		s.logger.ErrorContext(ctx, "api tier returned a different cheque",
			"request_id", requestcontext.RequestID(ctx),
		)
		s.emitUpstreamFailure(ctx, "record_mismatch")
		return nil, dErrors.New(dErrors.CodeBadGateway, msgBadGateway)
	}

	reasons := verification.Compare(string(req.AppliedAmount), string(req.PaymentIssueDate), rec)
	outcome := &verification.Outcome{
		Matched: len(reasons) == 0,
		Reasons: reasons,
		Record:  data,
	}
	if !outcome.Matched {
		s.logger.InfoContext(ctx, "verification mismatch",
			"request_id", requestcontext.RequestID(ctx),
			"reasons", len(reasons),
		)
		return outcome, dErrors.New(dErrors.CodeMismatch, msgMismatch).WithDetails(reasons...)
	}
	return outcome, nil
}

// classify maps a non-success gateway result onto the public error taxonomy.
func (s *Service) classify(ctx context.Context, res gateway.Result) error {
	requestID := requestcontext.RequestID(ctx)

	switch res.Kind {
	case gateway.KindTimeout:
		s.logger.ErrorContext(ctx, "api tier call timed out", "request_id", requestID)
		s.emitUpstreamFailure(ctx, "timeout")
		return dErrors.Wrap(res.Err, dErrors.CodeTimeout, msgTimeout)

	case gateway.KindNetwork:
		s.logger.ErrorContext(ctx, "api tier unreachable", "request_id", requestID, "error", res.Err)
		s.emitUpstreamFailure(ctx, "network")
		return dErrors.Wrap(res.Err, dErrors.CodeUnavailable, msgUnavailable)
	}

	switch {
	case res.Status == http.StatusNotFound:
		s.logger.InfoContext(ctx, "cheque not found", "request_id", requestID)
		return dErrors.New(dErrors.CodeNotFound, msgNotFound)

	case res.Status == http.StatusBadRequest:
		// Both tiers run the same validator, so this only happens on drift.
		s.logger.WarnContext(ctx, "api tier rejected a validated cheque number", "request_id", requestID)
		return dErrors.New(dErrors.CodeValidation, msgInvalidUpstream)

	case res.Status >= http.StatusInternalServerError:
		s.logger.ErrorContext(ctx, "api tier server error",
			"request_id", requestID,
			"status", res.Status,
			"structured_body", res.Body != nil,
		)
		s.emitUpstreamFailure(ctx, "server_error")
		if res.Body == nil {
			return dErrors.Wrap(res.Err, dErrors.CodeInternal, "api tier returned an unstructured server error")
		}
		if res.Status == http.StatusServiceUnavailable {
			return dErrors.New(dErrors.CodeUnavailable, msgUnavailable)
		}
		return dErrors.New(dErrors.CodeBadGateway, msgBadGateway)

	case res.Status == http.StatusUnauthorized || res.Status == http.StatusForbidden:
		s.logger.ErrorContext(ctx, "api tier rejected inter-tier credential",
			"request_id", requestID,
			"status", res.Status,
		)
		s.emitUpstreamFailure(ctx, "credential_rejected")
		return dErrors.New(dErrors.CodeBadGateway, msgBadGateway)

	case res.Status == http.StatusTooManyRequests:
		s.logger.WarnContext(ctx, "api tier throttled the request", "request_id", requestID)
		s.emitUpstreamFailure(ctx, "throttled")
		return dErrors.New(dErrors.CodeUnavailable, msgUnavailable)

	default:
		s.logger.ErrorContext(ctx, "unexpected api tier response",
			"request_id", requestID,
			"status", res.Status,
			"error", res.Err,
		)
		s.emitUpstreamFailure(ctx, "unexpected_response")
		return dErrors.New(dErrors.CodeBadGateway, msgBadGateway)
	}
}

func (s *Service) emitUpstreamFailure(ctx context.Context, reason string) {
	s.auditPublisher.Emit(ctx, audit.Event{
		Action:   string(audit.EventUpstreamFailed),
		Outcome:  "failed",
		Reason:   reason,
		IP:       privacy.AnonymizeIP(requestcontext.ClientIP(ctx)),
		Path:     gateway.ChequeRoute,
		Severity: audit.SeverityWarning,
	})
}
