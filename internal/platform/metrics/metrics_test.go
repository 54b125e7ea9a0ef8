package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryHandler(t *testing.T) {
	reg := New("backend", "test")
	assert.Equal(t, float64(1), promtest.ToFloat64(reg.BuildInfo.WithLabelValues("backend", "test")))

	rr := httptest.NewRecorder()
	reg.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	body, err := io.ReadAll(rr.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `cheque_build_info{service="backend",version="test"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
