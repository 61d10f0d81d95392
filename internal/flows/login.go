package flows

import (
	"context"
	"errors"
	"time"
)

// LoginResult is the flow-local login response shape.
type LoginResult struct {
	Token     string
	TokenID   string
	ExpiresIn time.Duration
	ExpiresAt time.Time
	UserID    string
	TenantID  string
	Username  string
	Roles     []string
}

// LoginUserRecord is a flow-local user model used by the login flow.
type LoginUserRecord struct {
	UserID   string
	Username string
	TenantID string
	Roles    []string
	Enabled  bool
}

// LoginIssued is the flow-local view of a freshly issued token.
type LoginIssued struct {
	Token     string
	TokenID   string
	Lifetime  time.Duration
	ExpiresAt time.Time
}

// LockoutState is the flow-local lockout view of one username.
type LockoutState struct {
	Locked    bool
	LockUntil time.Time
	Attempts  int64
}

// LoginMetrics carries metric IDs needed by the login flow.
type LoginMetrics struct {
	LoginSuccess     int
	LoginFailure     int
	LoginLocked      int
	LoginRateLimited int
	LockoutTriggered int
	TokenIssued      int
	TenantMissing    int
}

// LoginEvents carries audit event names used by the login flow.
type LoginEvents struct {
	LoginSuccess     string
	LoginFailure     string
	LoginLocked      string
	LoginRateLimited string
	LockoutTriggered string
	TenantMissing    string
}

// LoginErrors carries host-level sentinel errors used by the login flow.
type LoginErrors struct {
	EngineNotReady     error
	InvalidCredentials error
	LoginRateLimited   error
	AccountLocked      func(lockUntil time.Time) error
}

// LoginDeps captures login dependencies.
type LoginDeps struct {
	Now                 func() time.Time
	TenantFromContext   func(context.Context) (string, error)
	ClientIPFromContext func(context.Context) string

	CheckIPRate     func(context.Context, string) error
	IncrementIPRate func(context.Context, string) error

	CheckLockout  func(context.Context, string) (LockoutState, error)
	RecordFailure func(context.Context, string) (LockoutState, error)
	ResetFailures func(context.Context, string) error

	FindUser        func(context.Context, string) (LoginUserRecord, bool, error)
	VerifyPassword  func(context.Context, string, string) (bool, error)
	UpdateLastLogin func(context.Context, string) error
	IssueToken      func(context.Context, LoginUserRecord) (LoginIssued, error)

	MetricInc func(int)
	EmitAudit func(context.Context, string, bool, string, string, string, error, func() map[string]string)
	Warn      func(string, ...any)
	Error     func(string, ...any)

	Metrics LoginMetrics
	Events  LoginEvents
	Errors  LoginErrors
}

// RunLogin executes the login flow: tenant check, throttle, lockout check,
// credential verification and token issuance.
func RunLogin(ctx context.Context, username, password string, deps LoginDeps) (*LoginResult, error) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = func(context.Context, string, bool, string, string, string, error, func() map[string]string) {}
	}
	if deps.Warn == nil {
		deps.Warn = func(string, ...any) {}
	}
	if deps.Error == nil {
		deps.Error = func(string, ...any) {}
	}
	if deps.ClientIPFromContext == nil {
		deps.ClientIPFromContext = func(context.Context) string { return "" }
	}
	if deps.TenantFromContext == nil ||
		deps.CheckLockout == nil ||
		deps.RecordFailure == nil ||
		deps.ResetFailures == nil ||
		deps.FindUser == nil ||
		deps.VerifyPassword == nil ||
		deps.IssueToken == nil ||
		deps.Errors.AccountLocked == nil {
		return nil, deps.Errors.EngineNotReady
	}

	tenantID, err := deps.TenantFromContext(ctx)
	if err != nil {
		deps.MetricInc(deps.Metrics.TenantMissing)
		deps.EmitAudit(ctx, deps.Events.TenantMissing, false, "", "", "", err, func() map[string]string {
			return map[string]string{
				"identifier": username,
				"operation":  "login",
			}
		})
		return nil, err
	}

	ip := deps.ClientIPFromContext(ctx)
	if deps.CheckIPRate != nil {
		if err := deps.CheckIPRate(ctx, ip); err != nil {
			if errors.Is(err, deps.Errors.LoginRateLimited) {
				deps.MetricInc(deps.Metrics.LoginRateLimited)
				deps.EmitAudit(ctx, deps.Events.LoginRateLimited, false, "", tenantID, "", err, func() map[string]string {
					return map[string]string{
						"identifier": username,
					}
				})
			} else {
				deps.Error("auth.login.ip_throttle_failed", "error", err)
			}
			return nil, err
		}
	}

	state, err := deps.CheckLockout(ctx, username)
	if err != nil {
		deps.Error("auth.login.lockout_check_failed", "username", username, "error", err)
		return nil, err
	}
	if state.Locked {
		lockedErr := deps.Errors.AccountLocked(state.LockUntil)
		deps.MetricInc(deps.Metrics.LoginLocked)
		deps.EmitAudit(ctx, deps.Events.LoginLocked, false, "", tenantID, "", lockedErr, func() map[string]string {
			return map[string]string{
				"identifier": username,
				"lock_until": state.LockUntil.UTC().Format(time.RFC3339),
			}
		})
		return nil, lockedErr
	}

	if deps.IncrementIPRate != nil {
		if err := deps.IncrementIPRate(ctx, ip); err != nil {
			deps.Warn("auth.login.ip_throttle_increment_failed", "error", err)
		}
	}

	fail := func(userID, reason string) (*LoginResult, error) {
		failed, err := deps.RecordFailure(ctx, username)
		if err != nil {
			deps.Error("auth.login.record_failure_failed", "username", username, "error", err)
		} else if failed.Locked {
			deps.MetricInc(deps.Metrics.LockoutTriggered)
			deps.EmitAudit(ctx, deps.Events.LockoutTriggered, false, userID, tenantID, "", nil, func() map[string]string {
				return map[string]string{
					"identifier": username,
					"attempts":   itoa(failed.Attempts),
					"lock_until": failed.LockUntil.UTC().Format(time.RFC3339),
				}
			})
		}
		deps.MetricInc(deps.Metrics.LoginFailure)
		deps.EmitAudit(ctx, deps.Events.LoginFailure, false, userID, tenantID, "", deps.Errors.InvalidCredentials, func() map[string]string {
			return map[string]string{
				"identifier": username,
				"reason":     reason,
			}
		})
		return nil, deps.Errors.InvalidCredentials
	}

	if password == "" {
		return fail("", "empty_password")
	}

	user, found, err := deps.FindUser(ctx, username)
	if err != nil {
		deps.Error("auth.login.user_lookup_failed", "username", username, "error", err)
		return nil, err
	}
	if !found || (user.TenantID != "" && user.TenantID != tenantID) {
		return fail("", "user_not_found")
	}

	ok, err := deps.VerifyPassword(ctx, username, password)
	if err != nil {
		deps.Error("auth.login.password_verify_failed", "username", username, "error", err)
		return nil, err
	}
	if !ok {
		return fail(user.UserID, "password_mismatch")
	}
	if !user.Enabled {
		return fail(user.UserID, "account_disabled")
	}

	if err := deps.ResetFailures(ctx, username); err != nil {
		deps.Error("auth.login.reset_failures_failed", "username", username, "error", err)
		return nil, err
	}

	user.TenantID = tenantID
	issued, err := deps.IssueToken(ctx, user)
	if err != nil {
		deps.Error("auth.login.issue_failed", "username", username, "error", err)
		return nil, err
	}
	deps.MetricInc(deps.Metrics.TokenIssued)

	if deps.UpdateLastLogin != nil {
		if err := deps.UpdateLastLogin(ctx, username); err != nil {
			deps.Warn("auth.login.update_last_login_failed", "username", username, "error", err)
		}
	}

	deps.MetricInc(deps.Metrics.LoginSuccess)
	deps.EmitAudit(ctx, deps.Events.LoginSuccess, true, user.UserID, tenantID, issued.TokenID, nil, func() map[string]string {
		return map[string]string{
			"identifier": username,
		}
	})

	return &LoginResult{
		Token:     issued.Token,
		TokenID:   issued.TokenID,
		ExpiresIn: issued.Lifetime,
		ExpiresAt: issued.ExpiresAt,
		UserID:    user.UserID,
		TenantID:  tenantID,
		Username:  user.Username,
		Roles:     append([]string(nil), user.Roles...),
	}, nil
}
