// Package keys builds the cache and lock key names shared with other services.
//
// The formats are part of the interop contract and are produced verbatim:
//
//	lock:  {prefix}:lock:{tenantId}:{module}:{operation}:{resource}
//	cache: {prefix}:{module}:{tenantId}:{type}:{id}
//
// Components are not escaped or normalized. The context-derived variants take
// the tenant from the bound [tenancy.Scope] and fail closed without one.
package keys

import (
	"context"
	"strings"

	"github.com/MrEthical07/tenantAuth/tenancy"
)

// DefaultPrefix is used when no prefix is configured.
const DefaultPrefix = "rbac"

// Generator produces prefixed key names.
type Generator struct {
	prefix string
}

// New returns a generator for prefix, falling back to [DefaultPrefix].
func New(prefix string) *Generator {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Generator{prefix: prefix}
}

// Prefix returns the configured prefix.
func (g *Generator) Prefix() string {
	return g.prefix
}

// LockKey returns "{prefix}:lock:{tenantId}:{module}:{operation}:{resource}".
func (g *Generator) LockKey(tenantID, module, operation, resource string) string {
	return join(g.prefix, "lock", tenantID, module, operation, resource)
}

// CacheKey returns "{prefix}:{module}:{tenantId}:{type}:{id}".
func (g *Generator) CacheKey(module, tenantID, typ, id string) string {
	return join(g.prefix, module, tenantID, typ, id)
}

// TenantLockKey is LockKey with the tenant taken from ctx.
func (g *Generator) TenantLockKey(ctx context.Context, module, operation, resource string) (string, error) {
	tenantID, err := tenancy.Require(ctx)
	if err != nil {
		return "", err
	}
	return g.LockKey(tenantID, module, operation, resource), nil
}

// TenantCacheKey is CacheKey with the tenant taken from ctx.
func (g *Generator) TenantCacheKey(ctx context.Context, module, typ, id string) (string, error) {
	tenantID, err := tenancy.Require(ctx)
	if err != nil {
		return "", err
	}
	return g.CacheKey(module, tenantID, typ, id), nil
}

// Auth keys are keyed by username or token id only; they are shared across tenants.

// AttemptsKey names the failed-login counter for username.
func (g *Generator) AttemptsKey(username string) string {
	return join(g.prefix, "auth", "attempts", username)
}

// LockoutKey names the lockout record for username.
func (g *Generator) LockoutKey(username string) string {
	return join(g.prefix, "auth", "lockout", username)
}

// RevokedKey names the revocation entry for a token id.
func (g *Generator) RevokedKey(tokenID string) string {
	return join(g.prefix, "auth", "revoked", tokenID)
}

// LoginIPKey names the per-IP login throttle counter.
func (g *Generator) LoginIPKey(ip string) string {
	return join(g.prefix, "auth", "ip", ip)
}

func join(parts ...string) string {
	return strings.Join(parts, ":")
}
