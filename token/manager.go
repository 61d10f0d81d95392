// Package token owns the session token lifecycle: issuance, validation,
// decoding and revocation.
//
// Revocation is a negative cache. Each entry lives exactly as long as the token
// it blocks, so the set prunes itself and needs no cleanup job.
package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"pkt.systems/pslog"

	"github.com/MrEthical07/tenantAuth/cache"
	"github.com/MrEthical07/tenantAuth/internal/logging"
	"github.com/MrEthical07/tenantAuth/jwt"
	"github.com/MrEthical07/tenantAuth/keys"
)

var (
	// ErrInvalidToken indicates a malformed, forged or revoked token.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenExpired indicates a correctly signed token past its expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenRevoked indicates a token whose jti is in the revocation set.
	// It matches ErrInvalidToken.
	ErrTokenRevoked = fmt.Errorf("%w: revoked", ErrInvalidToken)
)

var revokedMarker = []byte("1")

// Subject identifies who a token is issued to.
type Subject struct {
	UserID   string
	TenantID string
	Username string
	Roles    []string
}

// Claims is the decoded content of a session token.
type Claims struct {
	UserID    string
	TenantID  string
	Username  string
	Roles     []string
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Issued is a freshly signed token and its claims.
type Issued struct {
	Token  string
	Claims Claims
}

// Manager issues, validates and revokes session tokens.
type Manager struct {
	codec  *jwt.Manager
	store  cache.Store
	keys   *keys.Generator
	logger pslog.Logger
	newID  func() string
}

// NewManager builds a Manager. store backs the revocation set.
func NewManager(codec *jwt.Manager, store cache.Store, keyGen *keys.Generator, logger pslog.Logger) *Manager {
	if keyGen == nil {
		keyGen = keys.New("")
	}
	return &Manager{
		codec:  codec,
		store:  store,
		keys:   keyGen,
		logger: logging.WithSubsystem(logger, "token"),
		newID:  uuid.NewString,
	}
}

// Lifetime returns the configured token lifetime.
func (m *Manager) Lifetime() time.Duration {
	return m.codec.Lifetime()
}

// Issue signs a new token for subject with a fresh jti. It has no cache side effect.
func (m *Manager) Issue(subject Subject) (Issued, error) {
	signed, claims, err := m.codec.Create(jwt.Claims{
		UID:      subject.UserID,
		TID:      subject.TenantID,
		Username: subject.Username,
		Roles:    subject.Roles,
		RegisteredClaims: gjwt.RegisteredClaims{
			ID:      m.newID(),
			Subject: subject.UserID,
		},
	})
	if err != nil {
		return Issued{}, err
	}
	return Issued{Token: signed, Claims: fromJWT(claims)}, nil
}

// Validate reports whether token is correctly signed, unexpired and not revoked.
// It never extends expiry and never fails open: a cache error yields false.
func (m *Manager) Validate(ctx context.Context, token string) bool {
	_, err := m.Check(ctx, token)
	return err == nil
}

// Check is Validate returning the claims and the reason for rejection.
func (m *Manager) Check(ctx context.Context, token string) (Claims, error) {
	parsed, err := m.codec.Parse(token)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrTokenExpired
		}
		return Claims{}, ErrInvalidToken
	}
	claims := fromJWT(parsed)
	if claims.TokenID == "" {
		return Claims{}, ErrInvalidToken
	}
	revoked, err := m.IsRevoked(ctx, claims.TokenID)
	if err != nil {
		m.logger.Error("token.validate.cache_error", "jti", claims.TokenID, "error", err)
		return Claims{}, err
	}
	if revoked {
		return Claims{}, ErrTokenRevoked
	}
	return claims, nil
}

// Decode verifies the signature and returns the claims without checking expiry
// or revocation. A bad signature fails with ErrInvalidToken.
func (m *Manager) Decode(token string) (Claims, error) {
	parsed, err := m.codec.Verify(token)
	if err != nil {
		return Claims{}, ErrInvalidToken
	}
	return fromJWT(parsed), nil
}

// Revoke adds tokenID to the revocation set for ttl. A non-positive ttl means
// the token is already expired and nothing is stored. Revoking twice is a no-op.
func (m *Manager) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if tokenID == "" {
		return ErrInvalidToken
	}
	if ttl <= 0 {
		return nil
	}
	if _, err := m.store.SetNX(ctx, m.keys.RevokedKey(tokenID), revokedMarker, ttl); err != nil {
		return err
	}
	return nil
}

// IsRevoked reports whether tokenID is in the revocation set.
func (m *Manager) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	return m.store.Exists(ctx, m.keys.RevokedKey(tokenID))
}

// RemainingValidity returns max(0, expires_at - now).
func (m *Manager) RemainingValidity(claims Claims) time.Duration {
	remaining := claims.ExpiresAt.Sub(m.codec.Now())
	if remaining < 0 {
		return 0
	}
	return remaining
}

func fromJWT(c *jwt.Claims) Claims {
	out := Claims{
		UserID:   c.UID,
		TenantID: c.TID,
		Username: c.Username,
		Roles:    append([]string(nil), c.Roles...),
		TokenID:  c.ID,
	}
	if out.UserID == "" {
		out.UserID = c.Subject
	}
	if c.IssuedAt != nil {
		out.IssuedAt = c.IssuedAt.Time
	}
	if c.ExpiresAt != nil {
		out.ExpiresAt = c.ExpiresAt.Time
	}
	return out
}
