package flows

import (
	"context"
	"errors"
	"time"
)

// ValidateClaims is the flow-local view of a validated token.
type ValidateClaims struct {
	UserID    string
	TenantID  string
	Username  string
	Roles     []string
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// ValidateMetrics carries metric IDs needed by the validate flow.
type ValidateMetrics struct {
	ValidateSuccess int
	TokenRejected   int
	TenantMismatch  int
}

// ValidateEvents carries audit event names used by the validate flow.
type ValidateEvents struct {
	TokenRejected  string
	TenantMismatch string
}

// ValidateErrors carries host-level sentinel errors used by the validate flow.
type ValidateErrors struct {
	EngineNotReady     error
	TenantMismatch     error
	BackendUnavailable error
}

// ValidateDeps captures token validation dependencies.
type ValidateDeps struct {
	Check             func(context.Context, string) (ValidateClaims, error)
	TenantFromContext func(context.Context) (string, bool)
	Now               func() time.Time
	ObserveLatency    func(time.Duration)

	MetricInc func(int)
	EmitAudit func(context.Context, string, bool, string, string, string, error, func() map[string]string)

	Metrics ValidateMetrics
	Events  ValidateEvents
	Errors  ValidateErrors
}

// RunValidate checks the token and, when a tenant is bound, that the token
// belongs to it.
func RunValidate(ctx context.Context, tokenStr string, deps ValidateDeps) (ValidateClaims, error) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.ObserveLatency == nil {
		deps.ObserveLatency = func(time.Duration) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = func(context.Context, string, bool, string, string, string, error, func() map[string]string) {}
	}
	if deps.TenantFromContext == nil {
		deps.TenantFromContext = func(context.Context) (string, bool) { return "", false }
	}
	if deps.Check == nil {
		return ValidateClaims{}, deps.Errors.EngineNotReady
	}

	start := deps.Now()
	defer func() {
		deps.ObserveLatency(deps.Now().Sub(start))
	}()

	claims, err := deps.Check(ctx, tokenStr)
	if err != nil {
		if deps.Errors.BackendUnavailable == nil || !errors.Is(err, deps.Errors.BackendUnavailable) {
			deps.MetricInc(deps.Metrics.TokenRejected)
			deps.EmitAudit(ctx, deps.Events.TokenRejected, false, "", "", "", err, nil)
		}
		return ValidateClaims{}, err
	}

	if bound, ok := deps.TenantFromContext(ctx); ok && bound != claims.TenantID {
		deps.MetricInc(deps.Metrics.TenantMismatch)
		deps.EmitAudit(ctx, deps.Events.TenantMismatch, false, claims.UserID, bound, claims.TokenID, deps.Errors.TenantMismatch, func() map[string]string {
			return map[string]string{
				"operation":    "validate",
				"token_tenant": claims.TenantID,
			}
		})
		return ValidateClaims{}, deps.Errors.TenantMismatch
	}

	deps.MetricInc(deps.Metrics.ValidateSuccess)
	return claims, nil
}
