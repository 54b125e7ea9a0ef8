package auth

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	dErrors "chequeverify/pkg/domain-errors"
	audit "chequeverify/pkg/platform/audit"
	"chequeverify/pkg/platform/audit/mocks"
	"chequeverify/pkg/platform/audit/store/memory"
	"chequeverify/pkg/requestcontext"
)

type stubVerifier struct {
	claims *CallerClaims
	err    error
	calls  int
}

func (s *stubVerifier) VerifyToken(string) (*CallerClaims, error) {
	s.calls++
	return s.claims, s.err
}

func (s *stubVerifier) RejectionReason(error) string { return "token_expired" }

type storePublisher struct{ store *memory.InMemoryStore }

func (p storePublisher) Emit(ctx context.Context, e audit.Event) { _ = p.store.Write(ctx, e) }

func newLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func okHandler(subject *string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*subject = requestcontext.CallerSubject(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireCredential(t *testing.T) {
	t.Run("valid token passes and sets caller subject", func(t *testing.T) {
		v := &stubVerifier{claims: &CallerClaims{Subject: "backend-service"}}
		var subject string
		h := RequireCredential(v, newLogger(), Options{})(okHandler(&subject))

		r := httptest.NewRequest(http.MethodGet, "/api/v1/cheque/123", nil)
		r.Header.Set("Authorization", "Bearer abc")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "backend-service", subject)
	})

	t.Run("missing header is 401 and never reaches verifier", func(t *testing.T) {
		v := &stubVerifier{}
		store := memory.NewInMemoryStore()
		var subject string
		var rejected []string
		h := RequireCredential(v, newLogger(), Options{
			Audit:    storePublisher{store},
			Route:    "/api/v1/cheque/{chequeNumber}",
			OnReject: func(reason string) { rejected = append(rejected, reason) },
		})(okHandler(&subject))

		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/cheque/123", nil))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, 0, v.calls)
		assert.Equal(t, []string{"missing_token"}, rejected)

		var body map[string]any
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		assert.Equal(t, false, body["success"])

		events, _ := store.ListByAction(context.Background(), audit.EventCredentialRejected)
		require.Len(t, events, 1)
		assert.Equal(t, "/api/v1/cheque/{chequeNumber}", events[0].Path)
		assert.NotContains(t, events[0].Path, "123")
	})

	t.Run("non-bearer scheme is 401", func(t *testing.T) {
		v := &stubVerifier{}
		var subject string
		h := RequireCredential(v, newLogger(), Options{})(okHandler(&subject))

		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, 0, v.calls)
	})

	t.Run("rejected token reports verifier reason", func(t *testing.T) {
		v := &stubVerifier{err: dErrors.Wrap(errors.New("exp"), dErrors.CodeUnauthorized, "Token has expired")}
		var subject string
		var rejected []string
		h := RequireCredential(v, newLogger(), Options{
			OnReject: func(reason string) { rejected = append(rejected, reason) },
		})(okHandler(&subject))

		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer expired")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "Token has expired")
		assert.Equal(t, []string{"token_expired"}, rejected)
		assert.Empty(t, subject)
	})

	t.Run("expired token is audited as a warning", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		pub := mocks.NewMockPublisher(ctrl)
		pub.EXPECT().Emit(gomock.Any(), audit.Event{
			Action:   string(audit.EventCredentialRejected),
			Outcome:  "rejected",
			Reason:   "token_expired",
			IP:       "unknown",
			Path:     "/api/v1/cheque/{chequeNumber}",
			Severity: audit.SeverityWarning,
		}).Times(1)

		v := &stubVerifier{err: dErrors.New(dErrors.CodeUnauthorized, "Token has expired")}
		var subject string
		h := RequireCredential(v, newLogger(), Options{
			Audit: pub,
			Route: "/api/v1/cheque/{chequeNumber}",
		})(okHandler(&subject))

		r := httptest.NewRequest(http.MethodGet, "/api/v1/cheque/000123", nil)
		r.Header.Set("Authorization", "Bearer expired")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("unconfigured verifier is a server error", func(t *testing.T) {
		var subject string
		h := RequireCredential(nil, newLogger(), Options{})(okHandler(&subject))

		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer abc")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Contains(t, w.Body.String(), "Internal server error")
	})

	t.Run("disabled lets everything through", func(t *testing.T) {
		var subject string
		h := RequireCredential(nil, newLogger(), Options{Disabled: true})(okHandler(&subject))

		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})
}
