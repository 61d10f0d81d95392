package jwt

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrTokenInvalid indicates a malformed token, a bad signature or failed claim checks.
	ErrTokenInvalid = errors.New("token invalid")
	// ErrTokenExpired indicates a correctly signed token past its expiry.
	ErrTokenExpired = errors.New("token expired")
)

// SigningMethod selects the signature algorithm for session tokens.
type SigningMethod string

const (
	// MethodHS256 signs with a shared secret. This is the default.
	MethodHS256 SigningMethod = "hs256"
	// MethodEd25519 signs with an Ed25519 key pair.
	MethodEd25519 SigningMethod = "ed25519"
)

// Config defines a public type used by tenantAuth APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Lifetime      time.Duration
	SigningMethod SigningMethod
	// PrivateKey is the HS256 shared secret or the Ed25519 private key.
	PrivateKey   []byte
	PublicKey    []byte
	Issuer       string
	Audience     string
	Leeway       time.Duration
	MaxFutureIAT time.Duration
	KeyID        string
	VerifyKeys   map[string][]byte
	// Now overrides the clock for issuance and expiry checks.
	Now func() time.Time
}

// Claims is the session token payload.
type Claims struct {
	UID      string   `json:"uid"`
	TID      string   `json:"tid"`
	Username string   `json:"usr"`
	Roles    []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// Manager signs and verifies session tokens.
type Manager struct {
	config Config
}

// NewManager describes the newmanager operation and its observable behavior.
//
// NewManager returns an error when the lifetime, leeway or key material is unusable.
// NewManager does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Lifetime <= 0 {
		return nil, errors.New("invalid lifetime configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.MaxFutureIAT == 0 {
		cfg.MaxFutureIAT = 10 * time.Minute
	}
	if cfg.MaxFutureIAT < 0 || cfg.MaxFutureIAT > 24*time.Hour {
		return nil, errors.New("invalid MaxFutureIAT configuration")
	}
	if cfg.SigningMethod == "" {
		cfg.SigningMethod = MethodHS256
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	cfg.KeyID = strings.TrimSpace(cfg.KeyID)
	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.PrivateKey) == 0 {
			return nil, errors.New("hs256 requires a shared secret")
		}
	case MethodEd25519:
		if len(cfg.PrivateKey) > 0 {
			if _, err := parseEdPrivateKey(cfg.PrivateKey); err != nil {
				return nil, err
			}
		}
		if len(cfg.PublicKey) > 0 {
			if _, err := parseEdPublicKey(cfg.PublicKey); err != nil {
				return nil, err
			}
		}
		if len(cfg.VerifyKeys) == 0 && len(cfg.PublicKey) == 0 {
			return nil, errors.New("ed25519 requires public key or verify key set")
		}
		for kid, key := range cfg.VerifyKeys {
			if strings.TrimSpace(kid) == "" {
				return nil, errors.New("verify key map contains empty kid")
			}
			if _, err := parseEdPublicKey(key); err != nil {
				return nil, fmt.Errorf("invalid ed25519 verify key for kid %q: %w", kid, err)
			}
		}
	default:
		return nil, errors.New("unsupported signing method")
	}
	if cfg.KeyID != "" && len(cfg.VerifyKeys) > 0 {
		if _, ok := cfg.VerifyKeys[cfg.KeyID]; !ok {
			return nil, errors.New("KeyID is not present in VerifyKeys")
		}
	}

	return &Manager{config: cfg}, nil
}

// Lifetime returns the configured token lifetime.
func (j *Manager) Lifetime() time.Duration {
	return j.config.Lifetime
}

// Now returns the manager clock.
func (j *Manager) Now() time.Time {
	return j.config.Now()
}

// Create describes the create operation and its observable behavior.
//
// Create stamps iat, exp, iss and aud onto claims, signs them and returns the
// compact token together with the stamped claims. Subject and ID must already be set.
func (j *Manager) Create(claims Claims) (string, *Claims, error) {
	now := j.config.Now()
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(j.config.Lifetime))
	claims.Issuer = j.config.Issuer
	if j.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{j.config.Audience}
	}
	if claims.Roles != nil {
		claims.Roles = append([]string(nil), claims.Roles...)
	}

	token := jwt.NewWithClaims(j.getMethod(), &claims)
	if j.config.KeyID != "" {
		token.Header["kid"] = j.config.KeyID
	}

	signKey, err := j.getSignKey()
	if err != nil {
		return "", nil, err
	}
	signed, err := token.SignedString(signKey)
	if err != nil {
		return "", nil, err
	}
	return signed, &claims, nil
}

// Parse describes the parse operation and its observable behavior.
//
// Parse verifies the signature and every claim check (expiry with leeway, issuer, audience,
// future iat). Expired tokens fail with [ErrTokenExpired]; every other failure is [ErrTokenInvalid].
func (j *Manager) Parse(tokenStr string) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{j.getMethod().Alg()}),
		jwt.WithTimeFunc(j.config.Now),
		jwt.WithExpirationRequired(),
	}
	if j.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(j.config.Leeway))
	}
	if j.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(j.config.Issuer))
	}
	if j.config.Audience != "" {
		options = append(options, jwt.WithAudience(j.config.Audience))
	}

	claims, err := j.parse(tokenStr, options...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if claims.IssuedAt != nil && j.config.MaxFutureIAT > 0 {
		maxAllowed := j.config.Now().Add(j.config.MaxFutureIAT)
		if claims.IssuedAt.Time.After(maxAllowed) {
			return nil, fmt.Errorf("%w: iat too far in the future", ErrTokenInvalid)
		}
	}
	return claims, nil
}

// Verify checks the signature, algorithm, issuer and audience but not the
// time claims, so it also accepts expired tokens. It is used where the claims
// of an expired token are still needed.
func (j *Manager) Verify(tokenStr string) (*Claims, error) {
	claims, err := j.parse(tokenStr,
		jwt.WithValidMethods([]string{j.getMethod().Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	// WithoutClaimsValidation also skips iss and aud.
	if j.config.Issuer != "" && claims.Issuer != j.config.Issuer {
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, jwt.ErrTokenInvalidIssuer)
	}
	if j.config.Audience != "" && !slices.Contains(claims.Audience, j.config.Audience) {
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, jwt.ErrTokenInvalidAudience)
	}
	return claims, nil
}

func (j *Manager) parse(tokenStr string, options ...jwt.ParserOption) (*Claims, error) {
	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, j.keyFunc)
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

func (j *Manager) keyFunc(t *jwt.Token) (interface{}, error) {
	if t.Method.Alg() != j.getMethod().Alg() {
		return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
	}

	if len(j.config.VerifyKeys) > 0 {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("missing kid")
		}
		key, ok := j.config.VerifyKeys[kid]
		if !ok {
			return nil, errors.New("unknown kid")
		}
		return j.keyBytesToVerifyKey(key)
	}

	if j.config.KeyID != "" {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("missing kid")
		}
		if kid != j.config.KeyID {
			return nil, errors.New("unknown kid")
		}
	}

	return j.getVerifyKey()
}

func (j *Manager) getMethod() jwt.SigningMethod {
	switch j.config.SigningMethod {
	case MethodEd25519:
		return jwt.SigningMethodEdDSA
	default:
		return jwt.SigningMethodHS256
	}
}

func (j *Manager) getSignKey() (interface{}, error) {
	switch j.config.SigningMethod {
	case MethodEd25519:
		if len(j.config.PrivateKey) == 0 {
			return nil, errors.New("ed25519 private key not configured")
		}
		return parseEdPrivateKey(j.config.PrivateKey)
	default:
		return j.config.PrivateKey, nil
	}
}

func (j *Manager) getVerifyKey() (interface{}, error) {
	switch j.config.SigningMethod {
	case MethodEd25519:
		return parseEdPublicKey(j.config.PublicKey)
	default:
		return j.config.PrivateKey, nil
	}
}

func (j *Manager) keyBytesToVerifyKey(key []byte) (interface{}, error) {
	switch j.config.SigningMethod {
	case MethodEd25519:
		return parseEdPublicKey(key)
	default:
		return key, nil
	}
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
