package config

import (
	"net/netip"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackendFromEnv_Defaults(t *testing.T) {
	cfg, err := BackendFromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, 5*time.Second, cfg.APITimeout)
	assert.False(t, cfg.RequireAuth)
	assert.Equal(t, "memory", cfg.Admission.Store)
	assert.Equal(t, 5, cfg.Admission.Verify.Requests)
	assert.Equal(t, 5*time.Minute, cfg.Admission.Verify.Window)
	assert.Equal(t, 2, cfg.Admission.Verify.DelayAfter)
	assert.Equal(t, 100, cfg.Admission.General.Requests)
	assert.Equal(t, 60, cfg.Admission.Health.Requests)
	assert.Equal(t, 10*time.Second, cfg.Credential.Leeway)
	assert.False(t, cfg.Kafka.Enabled())
	assert.Empty(t, cfg.TrustedProxies)
}

func TestBackendFromEnv_Overrides(t *testing.T) {
	t.Setenv("API_TIMEOUT", "2500")
	t.Setenv("INTER_TIER_REQUIRE_AUTH", "true")
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.example , https://b.example,https://a.example,")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("ADMISSION_VERIFY_LIMIT", "10")
	t.Setenv("ADMISSION_VERIFY_DELAY_STEP", "250ms")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, 127.0.0.1")

	cfg, err := BackendFromEnv()
	require.NoError(t, err)

	assert.Equal(t, 2500*time.Millisecond, cfg.APITimeout)
	assert.True(t, cfg.RequireAuth)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.Kafka.Enabled())
	assert.Equal(t, 10, cfg.Admission.Verify.Requests)
	assert.Equal(t, 250*time.Millisecond, cfg.Admission.Verify.DelayStep)
	assert.Equal(t, []netip.Prefix{
		netip.MustParsePrefix("10.0.0.0/8"),
		netip.MustParsePrefix("127.0.0.1/32"),
	}, cfg.TrustedProxies)
}

func TestBackendFromEnv_CollectsErrors(t *testing.T) {
	t.Setenv("API_TIMEOUT", "soon")
	t.Setenv("ADMISSION_DISABLED", "maybe")
	t.Setenv("ADMISSION_STORE", "redis")
	t.Setenv("TRUSTED_PROXIES", "lb.internal")

	_, err := BackendFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API_TIMEOUT")
	assert.Contains(t, err.Error(), "ADMISSION_DISABLED")
	assert.Contains(t, err.Error(), "REDIS_URL")
	assert.Contains(t, err.Error(), "TRUSTED_PROXIES")
}

func TestAPIFromEnv(t *testing.T) {
	t.Run("postgres requires a URL", func(t *testing.T) {
		_, err := APIFromEnv()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "DATABASE_URL")
	})

	t.Run("memory store", func(t *testing.T) {
		t.Setenv("RECORD_STORE", "memory")
		t.Setenv("RECORD_SEED_FILE", "testdata/cheques.json")
		cfg, err := APIFromEnv()
		require.NoError(t, err)
		assert.Equal(t, "memory", cfg.RecordStore)
		assert.Equal(t, ":9090", cfg.Addr)
	})

	t.Run("postgres with lib/pq driver", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "postgres://localhost/cheques")
		t.Setenv("DB_DRIVER", "postgres")
		t.Setenv("DB_QUERY_TIMEOUT", "1s")
		cfg, err := APIFromEnv()
		require.NoError(t, err)
		assert.Equal(t, "postgres", cfg.Database.Driver)
		assert.Equal(t, time.Second, cfg.Database.QueryTimeout)
		assert.Equal(t, "cheques", cfg.Database.Table)
	})

	t.Run("unknown driver", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "postgres://localhost/cheques")
		t.Setenv("DB_DRIVER", "mysql")
		_, err := APIFromEnv()
		assert.Error(t, err)
	})
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("CHEQUEVERIFY_DOTENV_PROBE=from-file\nAPI_ADDR=:1\n"), 0o600))
	t.Setenv("API_ADDR", ":7777")
	t.Cleanup(func() { _ = os.Unsetenv("CHEQUEVERIFY_DOTENV_PROBE") })

	require.NoError(t, LoadDotEnv(path, filepath.Join(dir, "missing.env")))
	assert.Equal(t, "from-file", os.Getenv("CHEQUEVERIFY_DOTENV_PROBE"))
	assert.Equal(t, ":7777", os.Getenv("API_ADDR"), "real environment wins")
}
