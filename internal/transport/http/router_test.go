package httptransport

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	admissionmw "chequeverify/internal/admission/middleware"
	admissionModels "chequeverify/internal/admission/models"
	admissionService "chequeverify/internal/admission/service"
	admissionStore "chequeverify/internal/admission/store"
	chequeHandler "chequeverify/internal/cheque/handler"
	chequeModels "chequeverify/internal/cheque/models"
	chequeStore "chequeverify/internal/cheque/store"
	"chequeverify/internal/credential"
	"chequeverify/internal/gateway"
	"chequeverify/internal/verification"
	verifyHandler "chequeverify/internal/verification/handler"
	verifyService "chequeverify/internal/verification/service"
	"chequeverify/pkg/domain"
	authmw "chequeverify/pkg/platform/middleware/auth"
	"chequeverify/pkg/testutil"
)

const secret = "router-test-secret-long-enough-for-derivation"

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func noSleep(context.Context, time.Duration) error { return nil }

// TwoTierSuite runs a real backend router against a real api router served
// by httptest, with in-memory records and admission counters.
type TwoTierSuite struct {
	suite.Suite
	api     *httptest.Server
	backend http.Handler
	records *chequeStore.InMemoryFetcher
}

func TestTwoTierSuite(t *testing.T) {
	suite.Run(t, new(TwoTierSuite))
}

func (s *TwoTierSuite) SetupTest() {
	logger := discard()

	s.records = chequeStore.NewInMemory()
	number, err := domain.ParseChequeNumber("123456")
	s.Require().NoError(err)
	s.records.Put(chequeModels.Record{
		Status:           "active",
		ChequeNumber:     number,
		PaymentIssueDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		AppliedAmount:    decimal.RequireFromString("1000.50"),
	})

	verifier, err := credential.NewVerifier(credential.Config{Secret: secret}, nil)
	s.Require().NoError(err)
	apiRouter := NewAPIRouter(chequeHandler.New(s.records, logger, nil, nil), APIConfig{
		RequireCredential: authmw.RequireCredential(credential.NewVerifierAdapter(verifier), logger, authmw.Options{
			Route: chequeHandler.ChequeRoute,
		}),
	}, logger)
	s.api = httptest.NewServer(apiRouter)
	s.T().Cleanup(s.api.Close)

	s.backend = s.newBackend(nil)
}

// newBackend wires a fresh backend, with its own admission counters, to the
// suite's api server.
func (s *TwoTierSuite) newBackend(trusted []netip.Prefix) http.Handler {
	logger := discard()
	issuer, err := credential.NewIssuer(credential.Config{Secret: secret})
	s.Require().NoError(err)
	gw, err := gateway.New(gateway.Config{BaseURL: s.api.URL, Timeout: 2 * time.Second}, issuer, logger, nil)
	s.Require().NoError(err)
	svc, err := verifyService.New(gw, verifyService.WithLogger(logger))
	s.Require().NoError(err)

	admission, err := admissionService.New(admissionStore.NewInMemory(), admissionService.WithLogger(logger))
	s.Require().NoError(err)
	adm := admissionmw.New(admission, logger, admissionmw.WithSleeper(noSleep))

	return NewBackendRouter(verifyHandler.New(svc, logger, nil, nil, gw), BackendConfig{
		AllowedOrigins: []string{"https://app.example"},
		TrustedProxies: trusted,
		General:        adm.Limit(admissionModels.ClassGeneral),
		VerifyDelay:    adm.Delay(admissionModels.ClassVerify),
		VerifyLimit:    adm.Limit(admissionModels.ClassVerify),
		HealthLimit:    adm.Limit(admissionModels.ClassHealth),
		Metrics:        http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = io.WriteString(w, "ok") }),
	}, logger)
}

func (s *TwoTierSuite) verify(ip, body string) *httptest.ResponseRecorder {
	req := testutil.WithClient(testutil.NewRequestWithBody(s.T(), http.MethodPost, verifyHandler.VerifyRoute, body), ip, "Mozilla/5.0")
	req.RemoteAddr = ip + ":40000"
	return testutil.DoRequest(s.backend, req)
}

func (s *TwoTierSuite) TestMatchedVerification() {
	rr := s.verify("203.0.113.7", `{"chequeNumber":"123456","appliedAmount":1000.505,"paymentIssueDate":"2024-01-01T18:30:00Z"}`)
	testutil.AssertStatusOK(s.T(), rr)

	resp := testutil.UnmarshalResponse[verification.Response](s.T(), rr)
	s.True(resp.Success)
	s.Equal("123456", resp.Data.ChequeNumber)
	s.Equal("nosniff", rr.Header().Get("X-Content-Type-Options"))
	s.NotEmpty(rr.Header().Get("X-Request-ID"))
	s.Equal("5", rr.Header().Get("X-RateLimit-Limit"))
}

func (s *TwoTierSuite) TestMismatchBothReasons() {
	rr := s.verify("203.0.113.7", `{"chequeNumber":"123456","appliedAmount":"1","paymentIssueDate":"2023-12-31"}`)
	testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "Verification failed")

	body := testutil.UnmarshalErrorResponse(s.T(), rr)
	s.Equal([]string{verification.ReasonAmountMismatch, verification.ReasonDateMismatch}, body.Details)
}

func (s *TwoTierSuite) TestUnknownChequeIs404() {
	rr := s.verify("203.0.113.7", `{"chequeNumber":"999999","appliedAmount":"1","paymentIssueDate":"2024-01-01"}`)
	testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, "Cheque not found")
}

func (s *TwoTierSuite) TestInvalidNumberNeverReachesAPI() {
	rr := s.verify("203.0.113.7", `{"chequeNumber":"1' OR '1'='1","appliedAmount":"1","paymentIssueDate":"2024-01-01"}`)
	testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "Invalid input")
}

func (s *TwoTierSuite) TestSixthVerifyFromOneClientIs429() {
	body := `{"chequeNumber":"123456","appliedAmount":"1000.50","paymentIssueDate":"2024-01-01"}`
	for range 5 {
		s.Equal(http.StatusOK, s.verify("203.0.113.7", body).Code)
	}
	testutil.AssertRateLimited(s.T(), s.verify("203.0.113.7", body), 300)

	s.Equal(http.StatusOK, s.verify("198.51.100.1", body).Code)
}

func forwarded(t *testing.T, peer, xff string) *http.Request {
	req := testutil.NewRequestWithBody(t, http.MethodPost, verifyHandler.VerifyRoute,
		`{"chequeNumber":"123456","appliedAmount":"1000.50","paymentIssueDate":"2024-01-01"}`)
	req.RemoteAddr = peer
	req.Header.Set("User-Agent", "Mozilla/5.0")
	req.Header.Set("X-Forwarded-For", xff)
	return req
}

func (s *TwoTierSuite) TestRotatingForwardedForDoesNotResetVerifyLimit() {
	var codes []int
	for i := range 20 {
		xff := fmt.Sprintf("10.9.%d.%d", i/200, i%200+1)
		codes = append(codes, testutil.DoRequest(s.backend, forwarded(s.T(), "203.0.113.7:40000", xff)).Code)
	}
	for i, code := range codes {
		if i < 5 {
			s.Equal(http.StatusOK, code, "request %d", i+1)
		} else {
			s.Equal(http.StatusTooManyRequests, code, "request %d", i+1)
		}
	}
}

func (s *TwoTierSuite) TestTrustedProxyForwardsDistinctClients() {
	backend := s.newBackend([]netip.Prefix{netip.MustParsePrefix("10.0.0.0/8")})

	for range 5 {
		s.Equal(http.StatusOK, testutil.DoRequest(backend, forwarded(s.T(), "10.0.0.2:5000", "203.0.113.7")).Code)
	}
	testutil.AssertRateLimited(s.T(), testutil.DoRequest(backend, forwarded(s.T(), "10.0.0.2:5000", "203.0.113.7")), 300)

	// a client-supplied hop left of the real client is ignored
	rr := testutil.DoRequest(backend, forwarded(s.T(), "10.0.0.2:5000", "198.51.100.9, 203.0.113.7"))
	s.Equal(http.StatusTooManyRequests, rr.Code)

	s.Equal(http.StatusOK, testutil.DoRequest(backend, forwarded(s.T(), "10.0.0.2:5000", "198.51.100.1")).Code)
}

func (s *TwoTierSuite) TestHealth() {
	rr := testutil.DoRequest(s.backend, testutil.NewRequest(s.T(), http.MethodGet, verifyHandler.HealthRoute))
	testutil.AssertStatusOK(s.T(), rr)

	resp := testutil.UnmarshalResponse[verification.HealthResponse](s.T(), rr)
	s.Equal("ok", resp.Status)
	s.Equal("backend", resp.Service)
}

func (s *TwoTierSuite) TestMetricsRoute() {
	rr := testutil.DoRequest(s.backend, testutil.NewRequest(s.T(), http.MethodGet, MetricsRoute))
	testutil.AssertStatusOK(s.T(), rr)
}

func (s *TwoTierSuite) TestUnknownRouteAndMethod() {
	rr := testutil.DoRequest(s.backend, testutil.NewRequest(s.T(), http.MethodGet, "/api/cheque/unknown"))
	s.Equal(http.StatusNotFound, rr.Code)

	rr = testutil.DoRequest(s.backend, testutil.NewRequest(s.T(), http.MethodGet, verifyHandler.VerifyRoute))
	s.Equal(http.StatusMethodNotAllowed, rr.Code)
}

func (s *TwoTierSuite) TestAPIRequiresCredential() {
	resp, err := http.Get(s.api.URL + "/api/v1/cheque/123456")
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Equal(http.StatusUnauthorized, resp.StatusCode)

	resp, err = http.Get(s.api.URL + chequeHandler.HealthRoute)
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)
}

func TestAPIRouter_EmptySegmentIs404(t *testing.T) {
	r := NewAPIRouter(chequeHandler.New(chequeStore.NewInMemory(), discard(), nil, nil), APIConfig{}, discard())

	for _, path := range []string{"/api/v1/cheque/", "/api/v1/cheque"} {
		rr := testutil.DoRequest(r, testutil.NewRequest(t, http.MethodGet, path))
		assert.Equal(t, http.StatusNotFound, rr.Code, path)
	}
}

func TestAPIRouter_AuthDisabled(t *testing.T) {
	records := chequeStore.NewInMemory()
	number, err := domain.ParseChequeNumber("000123")
	require.NoError(t, err)
	records.Put(chequeModels.Record{Status: "active", ChequeNumber: number, AppliedAmount: decimal.NewFromInt(5)})

	r := NewAPIRouter(chequeHandler.New(records, discard(), nil, nil), APIConfig{
		RequireCredential: authmw.RequireCredential(nil, discard(), authmw.Options{Disabled: true}),
	}, discard())

	rr := testutil.DoRequest(r, testutil.NewRequest(t, http.MethodGet, "/api/v1/cheque/000123"))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRecovererReturns500(t *testing.T) {
	r := NewAPIRouter(panicRoutes{}, APIConfig{}, discard())
	rr := testutil.DoRequest(r, testutil.NewRequest(t, http.MethodGet, "/boom"))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

type panicRoutes struct{}

func (panicRoutes) Register(r chi.Router, _ func(http.Handler) http.Handler) {
	r.Get("/boom", func(http.ResponseWriter, *http.Request) { panic("boom") })
}
