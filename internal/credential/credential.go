// Package credential mints and verifies the short-lived bearer token the
// backend tier attaches to every call into the api tier.
//
// Tokens are HS256 JWTs signed with a key derived from the shared secret via
// HKDF-SHA256, so the raw secret is never used as a MAC key directly. A token
// is minted per outbound call and never cached.
package credential

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"

	dErrors "chequeverify/pkg/domain-errors"
)

const (
	PurposeChequeVerification = "cheque-verification"
	SubjectBackendService     = "backend-service"

	DefaultTTL    = 60 * time.Second
	DefaultLeeway = 10 * time.Second

	keyInfo = "chequeverify/inter-tier/hs256/v1"
	keySize = 32
)

// Claims carried by an inter-tier credential.
type Claims struct {
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}

// RequiredClaims is the fixed claim set a verifier insists on.
type RequiredClaims struct {
	Purpose string
	Subject string
}

// DefaultRequiredClaims is the only claim set used between the tiers.
var DefaultRequiredClaims = RequiredClaims{
	Purpose: PurposeChequeVerification,
	Subject: SubjectBackendService,
}

// Config configures both minting and verification. Issuer and Audience are
// optional; when set they are stamped on minted tokens and enforced on verify.
type Config struct {
	Secret   string
	Issuer   string
	Audience string
	TTL      time.Duration
	Leeway   time.Duration
	Required RequiredClaims
}

func (c Config) withDefaults() Config {
	if c.TTL <= 0 {
		c.TTL = DefaultTTL
	}
	if c.Leeway < 0 {
		c.Leeway = 0
	}
	if c.Required == (RequiredClaims{}) {
		c.Required = DefaultRequiredClaims
	}
	return c
}

// Rejection reasons, used as audit reasons and metric labels.
var (
	ErrMissingToken   = errors.New("missing_token")
	ErrTokenExpired   = errors.New("token_expired")
	ErrInvalidToken   = errors.New("invalid_token")
	ErrClaimsMismatch = errors.New("claims_mismatch")
)

// ErrNoSecret is returned when signing material is not configured.
var ErrNoSecret = dErrors.New(dErrors.CodeConfig, "inter-tier secret not configured")

// DeriveKey expands the shared secret into the HS256 signing key.
func DeriveKey(secret string) ([]byte, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrNoSecret
	}
	key := make([]byte, keySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(keyInfo)), key); err != nil {
		return nil, fmt.Errorf("derive signing key: %w", err)
	}
	return key, nil
}

// Issuer mints credentials on the backend tier.
type Issuer struct {
	key []byte
	cfg Config
}

func NewIssuer(cfg Config) (*Issuer, error) {
	key, err := DeriveKey(cfg.Secret)
	if err != nil {
		return nil, err
	}
	return &Issuer{key: key, cfg: cfg.withDefaults()}, nil
}

// Mint signs a fresh credential valid for the configured TTL from now.
func (i *Issuer) Mint(now time.Time) (string, error) {
	claims := Claims{
		Purpose: i.cfg.Required.Purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   i.cfg.Required.Subject,
			Issuer:    i.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.cfg.TTL)),
			ID:        uuid.NewString(),
		},
	}
	if i.cfg.Audience != "" {
		claims.Audience = jwt.ClaimStrings{i.cfg.Audience}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.key)
	if err != nil {
		return "", fmt.Errorf("sign credential: %w", err)
	}
	return signed, nil
}

// Verifier checks credentials on the api tier.
type Verifier struct {
	key    []byte
	cfg    Config
	parser *jwt.Parser
}

// NewVerifier builds a verifier. now may be nil to use time.Now.
func NewVerifier(cfg Config, now func() time.Time) (*Verifier, error) {
	key, err := DeriveKey(cfg.Secret)
	if err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(cfg.Leeway),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	if now != nil {
		opts = append(opts, jwt.WithTimeFunc(now))
	}

	return &Verifier{key: key, cfg: cfg, parser: jwt.NewParser(opts...)}, nil
}

// Verify parses and checks a token. Failures are CodeUnauthorized domain
// errors wrapping one of the rejection reasons above.
func (v *Verifier) Verify(tokenString string) (*Claims, error) {
	if strings.TrimSpace(tokenString) == "" {
		return nil, dErrors.Wrap(ErrMissingToken, dErrors.CodeUnauthorized, "Missing or invalid Authorization header")
	}

	claims := &Claims{}
	parsed, err := v.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return v.key, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.Wrap(ErrTokenExpired, dErrors.CodeUnauthorized, "Token has expired")
		}
		return nil, dErrors.Wrap(ErrInvalidToken, dErrors.CodeUnauthorized, "Invalid token")
	}
	if !parsed.Valid {
		return nil, dErrors.Wrap(ErrInvalidToken, dErrors.CodeUnauthorized, "Invalid token")
	}

	if claims.Purpose != v.cfg.Required.Purpose || claims.Subject != v.cfg.Required.Subject {
		return nil, dErrors.Wrap(ErrClaimsMismatch, dErrors.CodeUnauthorized, "Invalid token claims")
	}
	return claims, nil
}

// RejectionReason returns the short reason for a Verify failure.
func RejectionReason(err error) string {
	for _, reason := range []error{ErrMissingToken, ErrTokenExpired, ErrClaimsMismatch, ErrInvalidToken} {
		if errors.Is(err, reason) {
			return reason.Error()
		}
	}
	return "unknown"
}
