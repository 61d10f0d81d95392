package tenantAuth

import (
	"context"
	"sync"
	"time"

	"pkt.systems/pslog"

	"github.com/MrEthical07/tenantAuth/cache"
	internalaudit "github.com/MrEthical07/tenantAuth/internal/audit"
	internalflows "github.com/MrEthical07/tenantAuth/internal/flows"
	"github.com/MrEthical07/tenantAuth/internal/limiters"
	"github.com/MrEthical07/tenantAuth/internal/rate"
	"github.com/MrEthical07/tenantAuth/keys"
	"github.com/MrEthical07/tenantAuth/lock"
	"github.com/MrEthical07/tenantAuth/permission"
	"github.com/MrEthical07/tenantAuth/tenancy"
	"github.com/MrEthical07/tenantAuth/token"
)

// Engine is the authentication core. It is built once through [Builder] and
// is safe for concurrent use.
type Engine struct {
	config     Config
	logger     pslog.Logger
	baseLogger pslog.Logger

	store       cache.Store
	keys        *keys.Generator
	tokens      *token.Manager
	lockout     *limiters.LockoutLimiter
	rateLimiter *rate.Limiter

	registry    *permission.Registry
	roleManager *permission.RoleManager

	enforcer *tenancy.Enforcer
	workers  *tenancy.Pool

	userStore UserStore
	audit     *internalaudit.Dispatcher
	metrics   *Metrics
	flows     internalflows.Service
	now       func() time.Time

	closeOnce sync.Once
}

// Close drains the audit dispatcher and stops the tenant worker pool.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.closeOnce.Do(func() {
		if e.workers != nil {
			e.workers.Close()
		}
		if e.audit != nil {
			e.audit.Close()
		}
	})
}

// AuditDropped returns how many audit events were dropped on a full buffer.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of all counters and histograms.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) metricIncInt(id int) {
	e.metricInc(MetricID(id))
}

func (e *Engine) observeValidateLatency(d time.Duration) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Observe(MetricValidateLatency, d)
}

// Login authenticates username in the tenant bound to ctx and issues a
// session token.
//
// Failures collapse to [ErrInvalidCredentials] whether the user is unknown,
// disabled or the password is wrong. Once the failure threshold is reached
// Login returns an [*AccountLockedError] without consulting the user store,
// even for the correct password.
func (e *Engine) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	if e == nil || !e.flows.Initialized() {
		return nil, ErrEngineNotReady
	}
	res, err := e.flows.Login(ctx, username, password)
	if err != nil {
		return nil, err
	}
	return &LoginResult{
		Token:     res.Token,
		TokenID:   res.TokenID,
		ExpiresIn: res.ExpiresIn,
		ExpiresAt: res.ExpiresAt,
		UserID:    res.UserID,
		TenantID:  res.TenantID,
		Username:  res.Username,
		Roles:     res.Roles,
	}, nil
}

// Logout revokes tokenStr for the rest of its validity. Logging out an
// expired or already revoked token succeeds. When a tenant is bound it must
// match the token's tenant.
func (e *Engine) Logout(ctx context.Context, tokenStr string) error {
	if e == nil || !e.flows.Initialized() {
		return ErrEngineNotReady
	}
	return e.flows.Logout(ctx, tokenStr)
}

// ValidateAndExtract fully validates tokenStr (signature, expiry, revocation)
// and returns the caller it identifies. A cache failure yields
// [ErrBackendUnavailable], never an identity.
func (e *Engine) ValidateAndExtract(ctx context.Context, tokenStr string) (*Identity, error) {
	if e == nil || !e.flows.Initialized() {
		return nil, ErrEngineNotReady
	}
	claims, err := e.flows.Validate(ctx, tokenStr)
	if err != nil {
		return nil, err
	}
	return &Identity{
		UserID:    claims.UserID,
		TenantID:  claims.TenantID,
		Username:  claims.Username,
		Roles:     claims.Roles,
		TokenID:   claims.TokenID,
		IssuedAt:  claims.IssuedAt,
		ExpiresAt: claims.ExpiresAt,
	}, nil
}

// Validate reports whether tokenStr is usable. It never returns true on error.
func (e *Engine) Validate(ctx context.Context, tokenStr string) bool {
	_, err := e.ValidateAndExtract(ctx, tokenStr)
	return err == nil
}

// HasPermission reports whether any of the identity's roles grants perm.
func (e *Engine) HasPermission(id *Identity, perm string) bool {
	if e == nil || id == nil {
		return false
	}
	return e.roleManager.Allows(id.Roles, perm)
}

// RequirePermission is HasPermission returning [ErrPermissionDenied].
func (e *Engine) RequirePermission(id *Identity, perm string) error {
	if e.HasPermission(id, perm) {
		return nil
	}
	return ErrPermissionDenied
}

// Permissions lists the permissions granted to the identity's roles.
func (e *Engine) Permissions(id *Identity) []string {
	if e == nil || id == nil {
		return nil
	}
	return e.roleManager.Permissions(id.Roles)
}

// NewLocker returns a distributed lock owner sharing the engine's cache,
// logger and metrics. Each logical owner must use its own Locker.
func (e *Engine) NewLocker() *lock.Locker {
	if e == nil {
		return nil
	}
	return lock.New(e.store,
		lock.WithLogger(e.baseLogger),
		lock.WithRetryInterval(e.config.Lock.RetryInterval),
		lock.WithObserver(e.observeLock),
	)
}

func (e *Engine) observeLock(event lock.Event, name string) {
	switch event {
	case lock.EventAcquired:
		e.metricInc(MetricLockAcquired)
	case lock.EventContended:
		e.metricInc(MetricLockContended)
		e.emitAudit(context.Background(), auditEventLockContended, false, "", "", "", ErrLockAcquisitionFailed, func() map[string]string {
			return map[string]string{"lock": name}
		})
	case lock.EventReleased:
		e.metricInc(MetricLockReleased)
	case lock.EventReleaseFailed:
		e.metricInc(MetricLockReleaseFailed)
	case lock.EventTimeout:
		e.metricInc(MetricLockTimeout)
		e.emitAudit(context.Background(), auditEventLockTimeout, false, "", "", "", ErrLockTimeout, func() map[string]string {
			return map[string]string{"lock": name}
		})
	}
}

// ExecuteWithLock runs fn while holding the tenant-scoped lock
// "{prefix}:lock:{tenant}:{module}:{operation}:{resource}". It fails closed
// with [ErrMissingTenantContext] when no tenant is bound. A non-positive
// timeout uses Config.Lock.DefaultTimeout.
func (e *Engine) ExecuteWithLock(ctx context.Context, module, operation, resource string, timeout time.Duration, fn func(context.Context) error) error {
	if e == nil || e.keys == nil {
		return ErrEngineNotReady
	}
	name, err := e.keys.TenantLockKey(ctx, module, operation, resource)
	if err != nil {
		e.metricInc(MetricTenantMissing)
		e.emitAudit(ctx, auditEventTenantMissing, false, "", "", "", err, func() map[string]string {
			return map[string]string{"operation": "lock", "module": module}
		})
		return err
	}
	if timeout <= 0 {
		timeout = e.config.Lock.DefaultTimeout
	}
	return e.NewLocker().ExecuteWithLock(ctx, name, timeout, fn)
}

// Config returns a copy of the active configuration.
func (e *Engine) Config() Config {
	if e == nil {
		return Config{}
	}
	return cloneConfig(e.config)
}

// Keys returns the cache and lock key generator.
func (e *Engine) Keys() *keys.Generator {
	if e == nil {
		return nil
	}
	return e.keys
}

// Tokens returns the underlying token lifecycle manager.
func (e *Engine) Tokens() *token.Manager {
	if e == nil {
		return nil
	}
	return e.tokens
}

// Enforcer returns the tenant predicate enforcer used by the persistence layer.
func (e *Engine) Enforcer() *tenancy.Enforcer {
	if e == nil {
		return nil
	}
	return e.enforcer
}

// Workers returns the tenant-binding worker pool, or nil when
// Config.MultiTenant.WorkerPoolSize is zero.
func (e *Engine) Workers() *tenancy.Pool {
	if e == nil {
		return nil
	}
	return e.workers
}

// TenantHeader returns the configured inbound tenant header name.
func (e *Engine) TenantHeader() string {
	if e == nil || e.config.MultiTenant.TenantHeader == "" {
		return "X-Tenant-ID"
	}
	return e.config.MultiTenant.TenantHeader
}

// Logger returns the engine's base logger.
func (e *Engine) Logger() pslog.Logger {
	if e == nil {
		return nil
	}
	return e.baseLogger
}

func (e *Engine) buildFlows() internalflows.Service {
	return internalflows.New(internalflows.Deps{
		Login:    e.loginFlowDeps(),
		Logout:   e.logoutFlowDeps(),
		Validate: e.validateFlowDeps(),
	})
}

func (e *Engine) loginFlowDeps() internalflows.LoginDeps {
	return internalflows.LoginDeps{
		Now:                 e.now,
		TenantFromContext:   tenancy.Require,
		ClientIPFromContext: clientIPFromContext,
		CheckIPRate:         e.rateLimiter.CheckLogin,
		IncrementIPRate:     e.rateLimiter.IncrementLogin,
		CheckLockout: func(ctx context.Context, username string) (internalflows.LockoutState, error) {
			state, err := e.lockout.Check(ctx, username)
			return lockoutState(state), err
		},
		RecordFailure: func(ctx context.Context, username string) (internalflows.LockoutState, error) {
			state, err := e.lockout.RecordFailure(ctx, username)
			return lockoutState(state), err
		},
		ResetFailures: e.lockout.Reset,
		FindUser: func(ctx context.Context, username string) (internalflows.LoginUserRecord, bool, error) {
			user, found, err := e.userStore.FindByUsername(ctx, username)
			if err != nil || !found {
				return internalflows.LoginUserRecord{}, found, err
			}
			if user.Username == "" {
				user.Username = username
			}
			return internalflows.LoginUserRecord{
				UserID:   user.UserID,
				Username: user.Username,
				TenantID: user.TenantID,
				Roles:    append([]string(nil), user.Roles...),
				Enabled:  user.Enabled,
			}, true, nil
		},
		VerifyPassword:  e.userStore.VerifyPassword,
		UpdateLastLogin: e.userStore.UpdateLastLogin,
		IssueToken: func(_ context.Context, user internalflows.LoginUserRecord) (internalflows.LoginIssued, error) {
			issued, err := e.tokens.Issue(token.Subject{
				UserID:   user.UserID,
				TenantID: user.TenantID,
				Username: user.Username,
				Roles:    user.Roles,
			})
			if err != nil {
				return internalflows.LoginIssued{}, err
			}
			return internalflows.LoginIssued{
				Token:     issued.Token,
				TokenID:   issued.Claims.TokenID,
				Lifetime:  e.tokens.Lifetime(),
				ExpiresAt: issued.Claims.ExpiresAt,
			}, nil
		},
		MetricInc: e.metricIncInt,
		EmitAudit: e.emitAudit,
		Warn:      e.logger.Warn,
		Error:     e.logger.Error,
		Metrics: internalflows.LoginMetrics{
			LoginSuccess:     int(MetricLoginSuccess),
			LoginFailure:     int(MetricLoginFailure),
			LoginLocked:      int(MetricLoginLocked),
			LoginRateLimited: int(MetricLoginRateLimited),
			LockoutTriggered: int(MetricLockoutTriggered),
			TokenIssued:      int(MetricTokenIssued),
			TenantMissing:    int(MetricTenantMissing),
		},
		Events: internalflows.LoginEvents{
			LoginSuccess:     auditEventLoginSuccess,
			LoginFailure:     auditEventLoginFailure,
			LoginLocked:      auditEventLoginLocked,
			LoginRateLimited: auditEventLoginRateLimited,
			LockoutTriggered: auditEventLockoutTriggered,
			TenantMissing:    auditEventTenantMissing,
		},
		Errors: internalflows.LoginErrors{
			EngineNotReady:     ErrEngineNotReady,
			InvalidCredentials: ErrInvalidCredentials,
			LoginRateLimited:   ErrLoginRateLimited,
			AccountLocked: func(lockUntil time.Time) error {
				return &AccountLockedError{LockUntil: lockUntil}
			},
		},
	}
}

func (e *Engine) logoutFlowDeps() internalflows.LogoutDeps {
	return internalflows.LogoutDeps{
		Decode: func(tokenStr string) (internalflows.LogoutClaims, error) {
			claims, err := e.tokens.Decode(tokenStr)
			if err != nil {
				return internalflows.LogoutClaims{}, err
			}
			return internalflows.LogoutClaims{
				TokenID:   claims.TokenID,
				UserID:    claims.UserID,
				TenantID:  claims.TenantID,
				ExpiresAt: claims.ExpiresAt,
			}, nil
		},
		TenantFromContext: tenancy.FromContext,
		Remaining: func(claims internalflows.LogoutClaims) time.Duration {
			return e.tokens.RemainingValidity(token.Claims{ExpiresAt: claims.ExpiresAt})
		},
		Revoke:    e.tokens.Revoke,
		MetricInc: e.metricIncInt,
		EmitAudit: e.emitAudit,
		Metrics: internalflows.LogoutMetrics{
			Logout:         int(MetricLogout),
			TokenRevoked:   int(MetricTokenRevoked),
			TenantMismatch: int(MetricTenantMismatch),
		},
		Events: internalflows.LogoutEvents{
			Logout:         auditEventLogout,
			TenantMismatch: auditEventTenantMismatch,
		},
		Errors: internalflows.LogoutErrors{
			EngineNotReady: ErrEngineNotReady,
			TenantMismatch: ErrTenantMismatch,
		},
	}
}

func (e *Engine) validateFlowDeps() internalflows.ValidateDeps {
	return internalflows.ValidateDeps{
		Check: func(ctx context.Context, tokenStr string) (internalflows.ValidateClaims, error) {
			claims, err := e.tokens.Check(ctx, tokenStr)
			if err != nil {
				return internalflows.ValidateClaims{}, err
			}
			return internalflows.ValidateClaims{
				UserID:    claims.UserID,
				TenantID:  claims.TenantID,
				Username:  claims.Username,
				Roles:     claims.Roles,
				TokenID:   claims.TokenID,
				IssuedAt:  claims.IssuedAt,
				ExpiresAt: claims.ExpiresAt,
			}, nil
		},
		TenantFromContext: tenancy.FromContext,
		Now:               time.Now,
		ObserveLatency:    e.observeValidateLatency,
		MetricInc:         e.metricIncInt,
		EmitAudit:         e.emitAudit,
		Metrics: internalflows.ValidateMetrics{
			ValidateSuccess: int(MetricValidateSuccess),
			TokenRejected:   int(MetricTokenRejected),
			TenantMismatch:  int(MetricTenantMismatch),
		},
		Events: internalflows.ValidateEvents{
			TokenRejected:  auditEventTokenRejected,
			TenantMismatch: auditEventTenantMismatch,
		},
		Errors: internalflows.ValidateErrors{
			EngineNotReady:     ErrEngineNotReady,
			TenantMismatch:     ErrTenantMismatch,
			BackendUnavailable: ErrBackendUnavailable,
		},
	}
}

func lockoutState(s limiters.LockState) internalflows.LockoutState {
	return internalflows.LockoutState{
		Locked:    s.Locked,
		LockUntil: s.LockUntil,
		Attempts:  s.Attempts,
	}
}
