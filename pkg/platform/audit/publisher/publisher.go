// Package publisher fans audit events out to sinks.
//
// Emission is fail-open: a sink error is logged and counted, never returned,
// so an audit outage cannot change a verification response.
package publisher

import (
	"context"
	"fmt"
	"log/slog"

	audit "chequeverify/pkg/platform/audit"
	"chequeverify/pkg/requestcontext"
)

// NamedSink is a sink with a label for logs and metrics.
type NamedSink struct {
	Name string
	Sink audit.Sink
}

// Publisher writes every event to each configured sink in order.
type Publisher struct {
	service string
	sinks   []NamedSink
	logger  *slog.Logger
	metrics *Metrics
}

// Option configures the Publisher.
type Option func(*Publisher)

// WithSink appends a sink.
func WithSink(name string, sink audit.Sink) Option {
	return func(p *Publisher) {
		p.sinks = append(p.sinks, NamedSink{Name: name, Sink: sink})
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *Metrics) Option {
	return func(p *Publisher) {
		p.metrics = m
	}
}

// New creates a publisher that stamps events with service.
func New(service string, logger *slog.Logger, opts ...Option) *Publisher {
	p := &Publisher{
		service: service,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Emit completes the event from the request context and writes it to every sink.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if event.Category == "" {
		event.Category = audit.AuditEvent(event.Action).Category()
	}
	if event.Severity == "" {
		event.Severity = audit.SeverityInfo
	}
	if event.Service == "" {
		event.Service = p.service
	}

	p.metrics.incEmitted(event.Action)
	for _, s := range p.sinks {
		if err := s.Sink.Write(ctx, event); err != nil {
			p.metrics.incSinkFailure(s.Name)
			if p.logger != nil {
				p.logger.WarnContext(ctx, "audit sink write failed",
					"sink", s.Name,
					"action", event.Action,
					"request_id", event.RequestID,
					"error", err,
				)
			}
		}
	}
}

// LogSink writes events as structured log records.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink returns a sink that logs each event under the "audit" group.
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Write(ctx context.Context, event audit.Event) error {
	if s.logger == nil {
		return fmt.Errorf("log sink has no logger")
	}
	level := slog.LevelInfo
	if event.Severity == audit.SeverityWarning || event.Severity == audit.SeverityCritical {
		level = slog.LevelWarn
	}
	s.logger.Log(ctx, level, "audit event",
		slog.Group("audit",
			"category", string(event.Category),
			"action", event.Action,
			"outcome", event.Outcome,
			"reason", event.Reason,
			"service", event.Service,
			"ip_prefix", event.IP,
			"path", event.Path,
			"severity", string(event.Severity),
			"timestamp", event.Timestamp,
		),
		"request_id", event.RequestID,
	)
	return nil
}
