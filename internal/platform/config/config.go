// Package config builds typed process configuration from the environment.
//
// Each binary calls its own FromEnv; shared sections (database, redis, kafka,
// credential) are parsed by the same helpers so both tiers read the same
// variable names. A .env file in the working directory is loaded first when
// present; real environment variables win.
package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"chequeverify/pkg/platform/middleware/metadata"
	liststrings "chequeverify/pkg/platform/strings"
)

// LoadDotEnv loads .env files without overriding variables already set.
// A missing file is not an error.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Credential configures inter-tier credential minting and verification.
type Credential struct {
	Secret   string
	Issuer   string
	Audience string
	TTL      time.Duration
	Leeway   time.Duration
}

// Database configures the record store connection pool.
type Database struct {
	Driver          string // "pgx" or "postgres"
	URL             string
	Table           string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	QueryTimeout    time.Duration
}

// Redis configures the optional shared admission store.
type Redis struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Kafka configures the optional audit sink. No brokers disables it.
type Kafka struct {
	Brokers           []string
	ClientID          string
	TopicPrefix       string
	Partitions        int32
	ReplicationFactor int16
}

func (k Kafka) Enabled() bool { return len(k.Brokers) > 0 }

// Limit is one admission class policy.
type Limit struct {
	Requests   int
	Window     time.Duration
	DelayAfter int
	DelayStep  time.Duration
	MaxDelay   time.Duration
}

// Admission configures backend admission control.
type Admission struct {
	Disabled bool
	Store    string // "memory" or "redis"
	General  Limit
	Verify   Limit
	Health   Limit
}

// Backend is the public verification tier.
type Backend struct {
	Addr                string
	LogLevel            string
	AllowedOrigins      []string
	TrustedProxies      []netip.Prefix
	APIBaseURL          string
	APITimeout          time.Duration
	RequireAuth         bool
	HealthCheckUpstream bool
	ShutdownTimeout     time.Duration
	Credential          Credential
	Admission           Admission
	Redis               Redis
	Kafka               Kafka
}

// API is the internal data-access tier.
type API struct {
	Addr            string
	LogLevel        string
	AuthDisabled    bool
	RecordStore     string // "postgres" or "memory"
	RecordSeedFile  string
	ShutdownTimeout time.Duration
	Credential      Credential
	Database        Database
	Kafka           Kafka
}

// BackendFromEnv reads the backend configuration.
func BackendFromEnv() (Backend, error) {
	e := &env{}
	cfg := Backend{
		Addr:                e.str("BACKEND_ADDR", ":8080"),
		LogLevel:            e.str("LOG_LEVEL", "info"),
		AllowedOrigins:      e.lowerList("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
		TrustedProxies:      e.prefixes("TRUSTED_PROXIES"),
		APIBaseURL:          e.str("API_BASE_URL", "http://localhost:9090"),
		APITimeout:          e.duration("API_TIMEOUT", 5*time.Second),
		RequireAuth:         e.boolean("INTER_TIER_REQUIRE_AUTH", false),
		HealthCheckUpstream: e.boolean("HEALTH_CHECK_UPSTREAM", false),
		ShutdownTimeout:     e.duration("SHUTDOWN_TIMEOUT", 10*time.Second),
		Credential:          credentialFromEnv(e),
		Admission: Admission{
			Disabled: e.boolean("ADMISSION_DISABLED", false),
			Store:    strings.ToLower(e.str("ADMISSION_STORE", "memory")),
			General:  limitFromEnv(e, "GENERAL", Limit{Requests: 100, Window: 15 * time.Minute}),
			Verify: limitFromEnv(e, "VERIFY", Limit{
				Requests:   5,
				Window:     5 * time.Minute,
				DelayAfter: 2,
				DelayStep:  500 * time.Millisecond,
				MaxDelay:   5 * time.Second,
			}),
			Health: limitFromEnv(e, "HEALTH", Limit{Requests: 60, Window: time.Minute}),
		},
		Redis: redisFromEnv(e),
		Kafka: kafkaFromEnv(e, "chequeverify-backend"),
	}

	if cfg.APIBaseURL == "" {
		e.fail("API_BASE_URL is required")
	}
	switch cfg.Admission.Store {
	case "memory":
	case "redis":
		if cfg.Redis.URL == "" {
			e.fail("ADMISSION_STORE=redis requires REDIS_URL")
		}
	default:
		e.fail("ADMISSION_STORE must be memory or redis")
	}
	return cfg, e.err()
}

// APIFromEnv reads the api tier configuration.
func APIFromEnv() (API, error) {
	e := &env{}
	cfg := API{
		Addr:            e.str("API_ADDR", ":9090"),
		LogLevel:        e.str("LOG_LEVEL", "info"),
		AuthDisabled:    e.boolean("API_AUTH_DISABLED", false),
		RecordStore:     strings.ToLower(e.str("RECORD_STORE", "postgres")),
		RecordSeedFile:  e.str("RECORD_SEED_FILE", ""),
		ShutdownTimeout: e.duration("SHUTDOWN_TIMEOUT", 10*time.Second),
		Credential:      credentialFromEnv(e),
		Database: Database{
			Driver:          strings.ToLower(e.str("DB_DRIVER", "pgx")),
			URL:             e.str("DATABASE_URL", ""),
			Table:           e.str("DB_TABLE", "cheques"),
			MaxOpenConns:    e.integer("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    e.integer("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: e.duration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			QueryTimeout:    e.duration("DB_QUERY_TIMEOUT", 3*time.Second),
		},
		Kafka: kafkaFromEnv(e, "chequeverify-api"),
	}

	switch cfg.RecordStore {
	case "postgres":
		if cfg.Database.URL == "" {
			e.fail("DATABASE_URL is required when RECORD_STORE=postgres")
		}
		if cfg.Database.Driver != "pgx" && cfg.Database.Driver != "postgres" {
			e.fail("DB_DRIVER must be pgx or postgres")
		}
	case "memory":
	default:
		e.fail("RECORD_STORE must be postgres or memory")
	}
	return cfg, e.err()
}

func credentialFromEnv(e *env) Credential {
	return Credential{
		Secret:   e.str("INTER_TIER_SECRET", ""),
		Issuer:   e.str("INTER_TIER_ISSUER", ""),
		Audience: e.str("INTER_TIER_AUDIENCE", ""),
		TTL:      e.duration("INTER_TIER_TOKEN_TTL", 60*time.Second),
		Leeway:   e.duration("INTER_TIER_CLOCK_SKEW", 10*time.Second),
	}
}

func redisFromEnv(e *env) Redis {
	return Redis{
		URL:          e.str("REDIS_URL", ""),
		PoolSize:     e.integer("REDIS_POOL_SIZE", 10),
		MinIdleConns: e.integer("REDIS_MIN_IDLE_CONNS", 2),
		DialTimeout:  e.duration("REDIS_DIAL_TIMEOUT", 2*time.Second),
		ReadTimeout:  e.duration("REDIS_READ_TIMEOUT", 500*time.Millisecond),
		WriteTimeout: e.duration("REDIS_WRITE_TIMEOUT", 500*time.Millisecond),
	}
}

func kafkaFromEnv(e *env, clientID string) Kafka {
	return Kafka{
		Brokers:           e.list("KAFKA_BROKERS", ""),
		ClientID:          e.str("KAFKA_CLIENT_ID", clientID),
		TopicPrefix:       e.str("KAFKA_TOPIC_PREFIX", "cheque.audit"),
		Partitions:        int32(e.integer("KAFKA_TOPIC_PARTITIONS", 1)),
		ReplicationFactor: int16(e.integer("KAFKA_REPLICATION_FACTOR", 1)),
	}
}

func limitFromEnv(e *env, class string, def Limit) Limit {
	prefix := "ADMISSION_" + class + "_"
	l := Limit{
		Requests:   e.integer(prefix+"LIMIT", def.Requests),
		Window:     e.duration(prefix+"WINDOW", def.Window),
		DelayAfter: e.integer(prefix+"DELAY_AFTER", def.DelayAfter),
		DelayStep:  e.duration(prefix+"DELAY_STEP", def.DelayStep),
		MaxDelay:   e.duration(prefix+"MAX_DELAY", def.MaxDelay),
	}
	if l.Requests <= 0 || l.Window <= 0 {
		e.fail(prefix + "LIMIT and " + prefix + "WINDOW must be positive")
	}
	return l
}

// env reads variables and collects parse errors so one run reports all of them.
type env struct {
	errs []error
}

func (e *env) fail(msg string) {
	e.errs = append(e.errs, errors.New(msg))
}

func (e *env) err() error {
	return errors.Join(e.errs...)
}

func (e *env) str(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(v)
	}
	return def
}

func (e *env) list(key, def string) []string {
	return liststrings.SplitList(e.str(key, def))
}

func (e *env) lowerList(key, def string) []string {
	return liststrings.SplitListLower(e.str(key, def))
}

// prefixes reads CIDRs of proxies allowed to set X-Forwarded-For. Unset
// means no proxy is trusted.
func (e *env) prefixes(key string) []netip.Prefix {
	p, err := metadata.ParseTrustedProxies(e.list(key, ""))
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return nil
	}
	return p
}

func (e *env) boolean(key string, def bool) bool {
	v := e.str(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: invalid boolean %q", key, v))
		return def
	}
	return b
}

func (e *env) integer(key string, def int) int {
	v := e.str(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: invalid integer %q", key, v))
		return def
	}
	return n
}

// duration accepts Go durations ("5s") or bare milliseconds ("5000").
func (e *env) duration(key string, def time.Duration) time.Duration {
	v := e.str(key, "")
	if v == "" {
		return def
	}
	if ms, err := strconv.Atoi(v); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: invalid duration %q", key, v))
		return def
	}
	return d
}
