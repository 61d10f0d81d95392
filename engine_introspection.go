package tenantAuth

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/tenantAuth/tenancy"
)

// LockoutStatus returns the lockout view of username, which must belong to
// the bound tenant. An expired lock is cleared as a side effect and reported
// open.
func (e *Engine) LockoutStatus(ctx context.Context, username string) (LockoutStatus, error) {
	if e == nil || e.lockout == nil {
		return LockoutStatus{}, ErrEngineNotReady
	}
	if err := e.requireTenantUser(ctx, username); err != nil {
		return LockoutStatus{}, err
	}
	state, err := e.lockout.Check(ctx, username)
	if err != nil {
		return LockoutStatus{}, err
	}
	return LockoutStatus{
		Locked:         state.Locked,
		LockUntil:      state.LockUntil,
		FailedAttempts: state.Attempts,
		MaxAttempts:    e.lockout.Threshold(),
	}, nil
}

// UnlockAccount clears the lockout record and failure counter of username,
// which must belong to the bound tenant. It is an administrative override and
// is always audited.
func (e *Engine) UnlockAccount(ctx context.Context, username string) error {
	if e == nil || e.lockout == nil {
		return ErrEngineNotReady
	}
	if err := e.requireTenantUser(ctx, username); err != nil {
		return err
	}
	if err := e.lockout.Unlock(ctx, username); err != nil {
		e.logger.Error("auth.unlock.failed", "username", username, "error", err)
		return err
	}
	e.emitAudit(ctx, auditEventAccountUnlocked, true, "", "", "", nil, func() map[string]string {
		return map[string]string{"identifier": username}
	})
	return nil
}

// requireTenantUser confirms username exists in the bound tenant. Lockout keys
// are shared across tenants, so without this an administrator of one tenant
// could read or clear the lock of another tenant's same-named user.
func (e *Engine) requireTenantUser(ctx context.Context, username string) error {
	if username == "" {
		return errors.New("username is empty")
	}
	tenantID, err := tenancy.Require(ctx)
	if err != nil {
		e.metricInc(MetricTenantMissing)
		return err
	}
	rec, found, err := e.userStore.FindByUsername(ctx, username)
	if err != nil {
		return err
	}
	if !found || (rec.TenantID != "" && rec.TenantID != tenantID) {
		return ErrUserNotFound
	}
	return nil
}

// Health pings the cache and reports its round-trip latency.
func (e *Engine) Health(ctx context.Context) HealthStatus {
	if e == nil || e.store == nil {
		return HealthStatus{}
	}
	start := time.Now()
	err := e.store.Ping(ctx)
	latency := time.Since(start)
	if err != nil {
		e.logger.Warn("auth.health.cache_unavailable", "error", err)
		return HealthStatus{CacheLatency: latency}
	}
	return HealthStatus{CacheAvailable: true, CacheLatency: latency}
}
