package audit

import (
	"context"
	"time"
)

// EventCategory classifies audit events by their primary purpose.
// Sinks route on it; the Kafka sink keys its topic suffix off it.
type EventCategory string

const (
	// CategorySecurity covers events relevant to abuse monitoring and forensics:
	// rejected credentials, admission limits.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine verification traffic.
	CategoryOperations EventCategory = "operations"
)

// Severity levels for security events.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

type AuditEvent string

const (
	// Backend tier
	EventVerificationCompleted AuditEvent = "verification_completed"
	EventRateLimitExceeded     AuditEvent = "rate_limit_exceeded"
	EventUpstreamFailed        AuditEvent = "upstream_failed"

	// API tier
	EventChequeLookup       AuditEvent = "cheque_lookup"
	EventCredentialRejected AuditEvent = "credential_rejected"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventRateLimitExceeded:  CategorySecurity,
	EventCredentialRejected: CategorySecurity,
	EventUpstreamFailed:     CategorySecurity,

	EventVerificationCompleted: CategoryOperations,
	EventChequeLookup:          CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Event is emitted from handlers and middleware to capture what happened to a
// request. It never carries a cheque number, amount, or date: Outcome and
// Reason are fixed category strings, and IP is already anonymized.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	Service   string   // "backend" or "api"
	Action    string   // AuditEvent value
	Outcome   string   // e.g. "matched", "mismatch", "not_found", "rejected"
	Reason    string   // short machine reason, e.g. "token_expired"
	IP        string   // anonymized client IP prefix
	Path      string   // route pattern, not the raw URL
	RequestID string   // correlation ID
	Severity  Severity // defaults to info
}

// Publisher accepts audit events. Implementations never block a request on a
// slow sink and never surface sink failures to the caller.
type Publisher interface {
	Emit(ctx context.Context, event Event)
}

// Sink is a destination for audit events, such as the log or a Kafka topic.
type Sink interface {
	Write(ctx context.Context, event Event) error
}

// NopPublisher discards every event.
type NopPublisher struct{}

func (NopPublisher) Emit(context.Context, Event) {}
