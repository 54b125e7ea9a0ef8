// Package gateway is the backend tier's client for the api tier.
//
// Every outcome is returned as a tagged Result rather than an error so the
// caller can map timeouts, HTTP answers, and transport failures onto distinct
// public responses. Calls are never retried.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"chequeverify/internal/cheque/models"
	"chequeverify/pkg/domain"
	request "chequeverify/pkg/platform/middleware/request"
	"chequeverify/pkg/requestcontext"
)

const (
	DefaultTimeout = 5 * time.Second
	// ChequeRoute is the api tier route pattern FetchCheque calls.
	ChequeRoute = "/api/v1/cheque/{chequeNumber}"
	healthPath  = "/api/v1/health"
	// MaxResponseBytes bounds how much of an api tier answer is read.
	MaxResponseBytes = 64 << 10
)

// Minter mints a fresh credential per call.
type Minter interface {
	Mint(now time.Time) (string, error)
}

// Config configures the client.
type Config struct {
	BaseURL string
	Timeout time.Duration
	// RequireAuth refuses to build a client without a Minter.
	RequireAuth bool
}

// ErrAuthRequired is returned by New when RequireAuth is set and no Minter is given.
var ErrAuthRequired = errors.New("gateway: credential required but no signing secret configured")

// Client calls the api tier.
type Client struct {
	baseURL string
	timeout time.Duration
	http    *http.Client
	minter  Minter
	logger  *slog.Logger
	metrics *Metrics
	tracer  trace.Tracer
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New builds a client. A nil minter sends unauthenticated requests (logged on
// every call) unless cfg.RequireAuth is set, in which case New fails.
func New(cfg Config, minter Minter, logger *slog.Logger, m *Metrics, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("gateway: invalid api base URL")
	}
	if minter == nil && cfg.RequireAuth {
		return nil, ErrAuthRequired
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	c := &Client{
		baseURL: base.String(),
		timeout: timeout,
		http:    &http.Client{},
		minter:  minter,
		logger:  logger,
		metrics: m,
		tracer:  otel.Tracer("chequeverify/internal/gateway"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// FetchCheque performs one lookup for a validated number.
func (c *Client) FetchCheque(ctx context.Context, number domain.ChequeNumber) Result {
	ctx, span := c.tracer.Start(ctx, "gateway.fetch_cheque", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	start := time.Now()
	res := c.fetch(ctx, number)
	c.metrics.observe(res.Kind, time.Since(start))

	span.SetAttributes(attribute.String("gateway.result", res.Kind.String()))
	if res.Status != 0 {
		span.SetAttributes(attribute.Int("http.response.status_code", res.Status))
	}
	if res.Kind == KindTimeout || res.Kind == KindNetwork || res.ServerError() {
		span.SetStatus(codes.Error, res.Kind.String())
	}
	return res
}

func (c *Client) fetch(ctx context.Context, number domain.ChequeNumber) Result {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := c.baseURL + strings.Replace(ChequeRoute, "{chequeNumber}", url.PathEscape(number.String()), 1)
	req, err := c.newRequest(ctx, endpoint)
	if err != nil {
		return Result{Kind: KindNetwork, Err: err}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if isTimeout(ctx, err) {
			return Result{Kind: KindTimeout, Err: err}
		}
		return Result{Kind: KindNetwork, Err: err}
	}
	defer resp.Body.Close()

	body, err := decodeEnvelope(resp.Body)
	if err != nil && isTimeout(ctx, err) {
		return Result{Kind: KindTimeout, Err: err}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 && err == nil && body.Success && body.Data != nil {
		return Result{Kind: KindSuccess, Status: resp.StatusCode, Body: body}
	}
	if err == nil && resp.StatusCode >= 200 && resp.StatusCode < 300 {
		err = errors.New("gateway: success status without cheque data")
	}
	return Result{Kind: KindHTTPError, Status: resp.StatusCode, Body: body, Err: err}
}

func (c *Client) newRequest(ctx context.Context, endpoint string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build api request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if rid := requestcontext.RequestID(ctx); rid != "" {
		req.Header.Set(request.HeaderRequestID, rid)
	}

	if c.minter == nil {
		c.metrics.incUnsigned()
		c.logger.WarnContext(ctx, "calling api tier without credential: no signing secret configured",
			"request_id", requestcontext.RequestID(ctx),
		)
		return req, nil
	}

	token, err := c.minter.Mint(requestcontext.Now(ctx))
	if err != nil {
		return nil, fmt.Errorf("mint credential: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return req, nil
}

// decodeEnvelope reads at most MaxResponseBytes. A nil envelope with a nil
// error never happens.
func decodeEnvelope(r io.Reader) (*models.Response, error) {
	raw, err := io.ReadAll(io.LimitReader(r, MaxResponseBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read api response: %w", err)
	}
	if len(raw) > MaxResponseBytes {
		return nil, errors.New("api response exceeds size limit")
	}
	var env models.Response
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()
	if err := dec.Decode(&env); err != nil {
		return nil, fmt.Errorf("decode api response: %w", err)
	}
	return &env, nil
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// Health calls the api tier health endpoint.
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+healthPath, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("api health: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, MaxResponseBytes))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("api health: status %d", resp.StatusCode)
	}
	return nil
}
