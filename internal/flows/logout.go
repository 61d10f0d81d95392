package flows

import (
	"context"
	"time"
)

// LogoutClaims is the flow-local view of a decoded token.
type LogoutClaims struct {
	TokenID   string
	UserID    string
	TenantID  string
	ExpiresAt time.Time
}

// LogoutMetrics carries metric IDs needed by the logout flow.
type LogoutMetrics struct {
	Logout         int
	TokenRevoked   int
	TenantMismatch int
}

// LogoutEvents carries audit event names used by the logout flow.
type LogoutEvents struct {
	Logout         string
	TenantMismatch string
}

// LogoutErrors carries host-level sentinel errors used by the logout flow.
type LogoutErrors struct {
	EngineNotReady error
	TenantMismatch error
}

// LogoutDeps captures logout flow dependencies.
type LogoutDeps struct {
	Decode            func(string) (LogoutClaims, error)
	TenantFromContext func(context.Context) (string, bool)
	Remaining         func(LogoutClaims) time.Duration
	Revoke            func(context.Context, string, time.Duration) error

	MetricInc func(int)
	EmitAudit func(context.Context, string, bool, string, string, string, error, func() map[string]string)

	Metrics LogoutMetrics
	Events  LogoutEvents
	Errors  LogoutErrors
}

// RunLogout revokes the token's jti for the rest of its validity. Logging out
// an already revoked or expired token succeeds.
func RunLogout(ctx context.Context, tokenStr string, deps LogoutDeps) error {
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = func(context.Context, string, bool, string, string, string, error, func() map[string]string) {}
	}
	if deps.TenantFromContext == nil {
		deps.TenantFromContext = func(context.Context) (string, bool) { return "", false }
	}
	if deps.Decode == nil || deps.Remaining == nil || deps.Revoke == nil {
		return deps.Errors.EngineNotReady
	}

	claims, err := deps.Decode(tokenStr)
	if err != nil {
		return err
	}

	if bound, ok := deps.TenantFromContext(ctx); ok && bound != claims.TenantID {
		deps.MetricInc(deps.Metrics.TenantMismatch)
		deps.EmitAudit(ctx, deps.Events.TenantMismatch, false, claims.UserID, bound, claims.TokenID, deps.Errors.TenantMismatch, func() map[string]string {
			return map[string]string{
				"operation":    "logout",
				"token_tenant": claims.TenantID,
			}
		})
		return deps.Errors.TenantMismatch
	}

	ttl := deps.Remaining(claims)
	if err := deps.Revoke(ctx, claims.TokenID, ttl); err != nil {
		return err
	}
	if ttl > 0 {
		deps.MetricInc(deps.Metrics.TokenRevoked)
	}

	deps.MetricInc(deps.Metrics.Logout)
	deps.EmitAudit(ctx, deps.Events.Logout, true, claims.UserID, claims.TenantID, claims.TokenID, nil, nil)
	return nil
}
