package tenantAuth

import (
	"context"

	"github.com/MrEthical07/tenantAuth/tenancy"
)

type clientIPContextKey struct{}
type identityContextKey struct{}

// WithClientIP attaches the caller's IP address to ctx. The Engine uses it
// for the per-IP login throttle and audit records.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

func clientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	ip, _ := ctx.Value(clientIPContextKey{}).(string)
	return ip
}

// WithTenant binds tenantID to a fresh tenant scope on ctx. The caller must
// Clear the returned scope when the unit of work ends; prefer [RunInTenant].
func WithTenant(ctx context.Context, tenantID string) (context.Context, *tenancy.Scope, error) {
	return tenancy.WithTenant(ctx, tenantID)
}

// RunInTenant runs fn with tenantID bound and clears the binding on every exit path.
func RunInTenant(ctx context.Context, tenantID string, fn func(context.Context) error) error {
	return tenancy.Run(ctx, tenantID, fn)
}

// TenantFromContext returns the tenant bound to ctx.
func TenantFromContext(ctx context.Context) (string, bool) {
	return tenancy.FromContext(ctx)
}

// WithIdentity attaches a validated identity to ctx.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// IdentityFromContext returns the identity attached by [WithIdentity].
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	if ctx == nil {
		return nil, false
	}
	id, ok := ctx.Value(identityContextKey{}).(*Identity)
	return id, ok && id != nil
}
