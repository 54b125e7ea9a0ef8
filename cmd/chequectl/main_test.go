package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chequeverify/internal/credential"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCheckNumber(t *testing.T) {
	out, err := execute(t, "check-number", "000123")
	require.NoError(t, err)
	assert.Contains(t, out, "valid: 000123")

	_, err = execute(t, "check-number", "12 OR 1=1")
	assert.Error(t, err)
}

func TestMintToken(t *testing.T) {
	const secret = "cli-test-secret-long-enough-for-derivation"
	out, err := execute(t, "mint-token", "--secret", secret)
	require.NoError(t, err)

	v, err := credential.NewVerifier(credential.Config{Secret: secret}, nil)
	require.NoError(t, err)
	claims, err := v.Verify(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, credential.SubjectBackendService, claims.Subject)
	assert.Equal(t, credential.PurposeChequeVerification, claims.Purpose)
}

func TestMintToken_NoSecret(t *testing.T) {
	t.Setenv("INTER_TIER_SECRET", "")
	_, err := execute(t, "mint-token")
	assert.Error(t, err)
}

func TestVerify(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/cheque/verify", r.URL.Path)
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"message":"Cheque verified successfully"}`))
	}))
	defer srv.Close()

	out, err := execute(t, "verify", "--url", srv.URL+"/", "-n", "123456", "-a", "1000.50", "-d", "2024-01-01")
	require.NoError(t, err)
	assert.Contains(t, out, "HTTP 200")
	assert.Contains(t, out, "Cheque verified successfully")
	assert.Equal(t, "123456", got["chequeNumber"])
	assert.Equal(t, "1000.50", got["appliedAmount"])
}

func TestVerify_FailureStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"success":false,"error":"Verification failed","details":["Applied amount does not match"]}`))
	}))
	defer srv.Close()

	out, err := execute(t, "verify", "--url", srv.URL, "-n", "123456", "-a", "1", "-d", "2024-01-01")
	assert.Error(t, err)
	assert.Contains(t, out, "Applied amount does not match")
}

func TestVerify_MissingFlags(t *testing.T) {
	_, err := execute(t, "verify", "-n", "123456")
	assert.Error(t, err)
}
