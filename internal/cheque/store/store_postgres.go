package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"chequeverify/internal/cheque/metrics"
	"chequeverify/internal/cheque/models"
	"chequeverify/pkg/domain"
	"chequeverify/pkg/platform/sentinel"
)

const (
	DefaultTable        = "cheques"
	DefaultQueryTimeout = 3 * time.Second
)

// PostgresFetcher reads cheque rows from an externally owned table.
type PostgresFetcher struct {
	db      *sql.DB
	query   string
	timeout time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

// NewPostgres builds a fetcher over db. The table name is quoted, never
// interpolated raw; it may be schema-qualified ("records.cheques").
func NewPostgres(db *sql.DB, table string, queryTimeout time.Duration, logger *slog.Logger, m *metrics.Metrics) *PostgresFetcher {
	if table == "" {
		table = DefaultTable
	}
	if queryTimeout <= 0 {
		queryTimeout = DefaultQueryTimeout
	}
	return &PostgresFetcher{
		db:      db,
		query:   buildQuery(table),
		timeout: queryTimeout,
		logger:  logger,
		metrics: m,
		tracer:  otel.Tracer("chequeverify/internal/cheque/store"),
	}
}

func buildQuery(table string) string {
	parts := strings.Split(table, ".")
	for i, p := range parts {
		parts[i] = pq.QuoteIdentifier(p)
	}
	return fmt.Sprintf(
		`SELECT cheque_status, cheque_number, payment_issue_date, applied_amount FROM %s WHERE cheque_number = $1`,
		strings.Join(parts, "."),
	)
}

// Fetch runs the lookup on a dedicated pooled connection. The connection is
// released on every exit path; a release failure is logged and never
// replaces the fetch result.
func (f *PostgresFetcher) Fetch(ctx context.Context, number domain.ChequeNumber) (*models.Record, error) {
	ctx, span := f.tracer.Start(ctx, "cheque.store.fetch",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("db.system", "postgresql")),
	)
	defer span.End()

	start := time.Now()
	result := "error"
	defer func() {
		f.metrics.ObserveFetch(result, time.Since(start))
		span.SetAttributes(attribute.String("cheque.fetch.result", result))
	}()

	if number.IsZero() {
		return nil, fmt.Errorf("fetch cheque: empty cheque number")
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	conn, err := f.db.Conn(ctx)
	if err != nil {
		result = classify(err)
		span.SetStatus(codes.Error, "acquire connection")
		return nil, fmt.Errorf("acquire connection: %w: %w", sentinel.ErrUnavailable, err)
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			f.logger.WarnContext(ctx, "failed to release database connection", "error", cerr)
		}
	}()

	var (
		rec    models.Record
		stored string
	)
	err = conn.QueryRowContext(ctx, f.query, number.String()).
		Scan(&rec.Status, &stored, &rec.PaymentIssueDate, &rec.AppliedAmount)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		result = "not_found"
		return nil, sentinel.ErrNotFound
	case err != nil:
		result = classify(err)
		span.SetStatus(codes.Error, "query")
		if result == "timeout" {
			return nil, fmt.Errorf("fetch cheque: %w: %w", sentinel.ErrTimeout, err)
		}
		return nil, fmt.Errorf("fetch cheque: %w", err)
	}

	rec.ChequeNumber = domain.ChequeNumber(stored)
	result = "found"
	return &rec, nil
}

// Health pings the pool.
func (f *PostgresFetcher) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	if err := f.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %w", sentinel.ErrUnavailable, err)
	}
	return nil
}

func classify(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	return "error"
}
