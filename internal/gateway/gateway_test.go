package gateway

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chequeverify/internal/credential"
	"chequeverify/pkg/domain"
	"chequeverify/pkg/requestcontext"
)

const secret = "test-secret-that-is-long-enough-for-hkdf"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newClient(t *testing.T, baseURL string, minter Minter, timeout time.Duration) (*Client, *Metrics) {
	t.Helper()
	m := NewMetrics(prometheus.NewRegistry())
	c, err := New(Config{BaseURL: baseURL, Timeout: timeout}, minter, discardLogger(), m)
	require.NoError(t, err)
	return c, m
}

func issuer(t *testing.T) *credential.Issuer {
	t.Helper()
	iss, err := credential.NewIssuer(credential.Config{Secret: secret})
	require.NoError(t, err)
	return iss
}

func TestFetchCheque_Success(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"success":true,"data":{"chequeStatus":"active","chequeNumber":"000123","paymentIssueDate":"2024-01-01","appliedAmount":1000.50}}`)
	}))
	defer srv.Close()

	c, m := newClient(t, srv.URL, issuer(t), time.Second)
	res := c.FetchCheque(context.Background(), domain.ChequeNumber("000123"))

	require.Equal(t, KindSuccess, res.Kind, res.Err)
	assert.Equal(t, "/api/v1/cheque/000123", gotPath)
	require.NotNil(t, res.Data())
	assert.Equal(t, "000123", res.Data().ChequeNumber)
	assert.Equal(t, "1000.50", res.Data().AppliedAmount.String())
	assert.Equal(t, 1, promtest.CollectAndCount(m.CallLatency))
}

func TestFetchCheque_NotFoundCarriesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"success":false,"error":"Cheque not found"}`)
	}))
	defer srv.Close()

	c, _ := newClient(t, srv.URL, issuer(t), time.Second)
	res := c.FetchCheque(context.Background(), domain.ChequeNumber("42"))

	assert.Equal(t, KindHTTPError, res.Kind)
	assert.Equal(t, http.StatusNotFound, res.Status)
	require.NotNil(t, res.Body)
	assert.Equal(t, "Cheque not found", res.Body.Error)
	assert.False(t, res.ServerError())
	assert.Nil(t, res.Data())
}

func TestFetchCheque_ServerErrorWithoutEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, "<html>bad gateway</html>")
	}))
	defer srv.Close()

	c, _ := newClient(t, srv.URL, issuer(t), time.Second)
	res := c.FetchCheque(context.Background(), domain.ChequeNumber("42"))

	assert.Equal(t, KindHTTPError, res.Kind)
	assert.Equal(t, http.StatusBadGateway, res.Status)
	assert.Nil(t, res.Body)
	assert.Error(t, res.Err)
	assert.True(t, res.ServerError())
}

func TestFetchCheque_SuccessStatusWithoutDataIsHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"success":true}`)
	}))
	defer srv.Close()

	c, _ := newClient(t, srv.URL, issuer(t), time.Second)
	res := c.FetchCheque(context.Background(), domain.ChequeNumber("42"))

	assert.Equal(t, KindHTTPError, res.Kind)
	assert.Equal(t, http.StatusOK, res.Status)
}

func TestFetchCheque_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c, _ := newClient(t, srv.URL, issuer(t), 50*time.Millisecond)
	start := time.Now()
	res := c.FetchCheque(context.Background(), domain.ChequeNumber("42"))

	assert.Equal(t, KindTimeout, res.Kind)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestFetchCheque_NetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, _ := newClient(t, url, issuer(t), time.Second)
	res := c.FetchCheque(context.Background(), domain.ChequeNumber("42"))

	assert.Equal(t, KindNetwork, res.Kind)
	assert.Error(t, res.Err)
}

func TestFetchCheque_OversizedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(bytes.Repeat([]byte(" "), MaxResponseBytes+10))
	}))
	defer srv.Close()

	c, _ := newClient(t, srv.URL, issuer(t), time.Second)
	res := c.FetchCheque(context.Background(), domain.ChequeNumber("42"))

	assert.Equal(t, KindHTTPError, res.Kind)
	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "size limit")
}

func TestFetchCheque_SendsVerifiableCredential(t *testing.T) {
	verifier, err := credential.NewVerifier(credential.Config{Secret: secret}, time.Now)
	require.NoError(t, err)

	var verifyErr error
	var gotRequestID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRequestID = r.Header.Get("X-Request-ID")
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok {
			verifyErr = errors.New("no bearer token")
		} else {
			_, verifyErr = verifier.Verify(token)
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c, m := newClient(t, srv.URL, issuer(t), time.Second)
	ctx := requestcontext.WithRequestID(context.Background(), "req-123")
	ctx = requestcontext.WithTime(ctx, time.Now())
	c.FetchCheque(ctx, domain.ChequeNumber("42"))

	assert.NoError(t, verifyErr)
	assert.Equal(t, "req-123", gotRequestID)
	assert.Equal(t, float64(0), promtest.ToFloat64(m.Unsigned))
}

func TestFetchCheque_WithoutMinterSendsUnsigned(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	var logs bytes.Buffer
	m := NewMetrics(prometheus.NewRegistry())
	c, err := New(Config{BaseURL: srv.URL}, nil, slog.New(slog.NewTextHandler(&logs, nil)), m)
	require.NoError(t, err)

	res := c.FetchCheque(context.Background(), domain.ChequeNumber("42"))

	assert.Empty(t, gotAuth)
	assert.Equal(t, http.StatusUnauthorized, res.Status)
	assert.Equal(t, float64(1), promtest.ToFloat64(m.Unsigned))
	assert.Contains(t, logs.String(), "level=WARN")
	assert.Contains(t, logs.String(), "without credential")
}

func TestNew(t *testing.T) {
	t.Run("require auth without minter fails", func(t *testing.T) {
		_, err := New(Config{BaseURL: "http://api:8001", RequireAuth: true}, nil, discardLogger(), nil)
		assert.ErrorIs(t, err, ErrAuthRequired)
	})

	t.Run("invalid base url", func(t *testing.T) {
		_, err := New(Config{BaseURL: "not a url"}, nil, discardLogger(), nil)
		assert.Error(t, err)
	})

	t.Run("defaults timeout and trims slash", func(t *testing.T) {
		c, err := New(Config{BaseURL: "http://api:8001/"}, nil, discardLogger(), nil)
		require.NoError(t, err)
		assert.Equal(t, DefaultTimeout, c.timeout)
		assert.Equal(t, "http://api:8001", c.baseURL)
	})
}

func TestHealth(t *testing.T) {
	healthy := true
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/health", r.URL.Path)
		if !healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer srv.Close()

	c, _ := newClient(t, srv.URL, nil, time.Second)
	assert.NoError(t, c.Health(context.Background()))

	healthy = false
	assert.Error(t, c.Health(context.Background()))
}
