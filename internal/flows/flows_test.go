package flows

import (
	"context"
	"errors"
	"testing"
	"time"
)

var (
	errNotReady    = errors.New("not ready")
	errBadCreds    = errors.New("bad credentials")
	errRateLimited = errors.New("rate limited")
	errMismatch    = errors.New("tenant mismatch")
	errBackend     = errors.New("backend down")
	errNoTenant    = errors.New("no tenant")
)

type lockedErr struct{ until time.Time }

func (e lockedErr) Error() string { return "locked" }

type fakeLogin struct {
	tenant    string
	attempts  map[string]int64
	lockUntil map[string]time.Time
	lookups   int
	issued    int
	metrics   map[int]int
	events    []string
	now       time.Time
}

func newFakeLogin() *fakeLogin {
	return &fakeLogin{
		tenant:    "1",
		attempts:  map[string]int64{},
		lockUntil: map[string]time.Time{},
		metrics:   map[int]int{},
		now:       time.Unix(1_700_000_000, 0),
	}
}

func (f *fakeLogin) deps() LoginDeps {
	return LoginDeps{
		Now: func() time.Time { return f.now },
		TenantFromContext: func(context.Context) (string, error) {
			if f.tenant == "" {
				return "", errNoTenant
			}
			return f.tenant, nil
		},
		CheckLockout: func(_ context.Context, u string) (LockoutState, error) {
			if until, ok := f.lockUntil[u]; ok && until.After(f.now) {
				return LockoutState{Locked: true, LockUntil: until}, nil
			}
			return LockoutState{Attempts: f.attempts[u]}, nil
		},
		RecordFailure: func(_ context.Context, u string) (LockoutState, error) {
			f.attempts[u]++
			if f.attempts[u] >= 3 {
				f.lockUntil[u] = f.now.Add(time.Minute)
				return LockoutState{Locked: true, LockUntil: f.lockUntil[u], Attempts: f.attempts[u]}, nil
			}
			return LockoutState{Attempts: f.attempts[u]}, nil
		},
		ResetFailures: func(_ context.Context, u string) error {
			delete(f.attempts, u)
			return nil
		},
		FindUser: func(_ context.Context, u string) (LoginUserRecord, bool, error) {
			f.lookups++
			if u != "admin" {
				return LoginUserRecord{}, false, nil
			}
			return LoginUserRecord{UserID: "u-1", Username: "admin", TenantID: "1", Roles: []string{"ROLE_ADMIN"}, Enabled: true}, true, nil
		},
		VerifyPassword: func(_ context.Context, _ string, pw string) (bool, error) {
			return pw == "password123", nil
		},
		IssueToken: func(_ context.Context, u LoginUserRecord) (LoginIssued, error) {
			f.issued++
			return LoginIssued{Token: "tok-" + u.TenantID, TokenID: "jti", Lifetime: time.Hour, ExpiresAt: f.now.Add(time.Hour)}, nil
		},
		MetricInc: func(id int) { f.metrics[id]++ },
		EmitAudit: func(_ context.Context, event string, _ bool, _, _, _ string, _ error, meta func() map[string]string) {
			if meta != nil {
				_ = meta()
			}
			f.events = append(f.events, event)
		},
		Metrics: LoginMetrics{LoginSuccess: 1, LoginFailure: 2, LoginLocked: 3, LoginRateLimited: 4, LockoutTriggered: 5, TokenIssued: 6, TenantMissing: 7},
		Events:  LoginEvents{LoginSuccess: "success", LoginFailure: "failure", LoginLocked: "locked", LoginRateLimited: "rate", LockoutTriggered: "triggered", TenantMissing: "tenant"},
		Errors: LoginErrors{
			EngineNotReady:     errNotReady,
			InvalidCredentials: errBadCreds,
			LoginRateLimited:   errRateLimited,
			AccountLocked:      func(t time.Time) error { return lockedErr{until: t} },
		},
	}
}

func TestRunLoginSuccess(t *testing.T) {
	f := newFakeLogin()
	f.attempts["admin"] = 2

	res, err := RunLogin(context.Background(), "admin", "password123", f.deps())
	if err != nil {
		t.Fatalf("RunLogin failed: %v", err)
	}
	if res.Token != "tok-1" || res.ExpiresIn != time.Hour || res.TenantID != "1" {
		t.Fatalf("unexpected result %+v", res)
	}
	if _, ok := f.attempts["admin"]; ok {
		t.Fatal("success should reset failures")
	}
	if f.metrics[1] != 1 || f.metrics[6] != 1 {
		t.Fatalf("unexpected metrics %v", f.metrics)
	}
}

func TestRunLoginLocksAndShortCircuits(t *testing.T) {
	f := newFakeLogin()
	deps := f.deps()

	for i := 0; i < 3; i++ {
		if _, err := RunLogin(context.Background(), "admin", "nope", deps); !errors.Is(err, errBadCreds) {
			t.Fatalf("attempt %d: expected bad credentials, got %v", i, err)
		}
	}
	if f.metrics[5] != 1 {
		t.Fatalf("expected one lockout trigger, got %d", f.metrics[5])
	}

	lookups := f.lookups
	_, err := RunLogin(context.Background(), "admin", "password123", deps)
	var le lockedErr
	if !errors.As(err, &le) || !le.until.Equal(f.now.Add(time.Minute)) {
		t.Fatalf("expected locked error, got %v", err)
	}
	if f.lookups != lookups || f.issued != 0 {
		t.Fatal("locked login must not reach the user store or issue a token")
	}
}

func TestRunLoginTenantAndUserRules(t *testing.T) {
	f := newFakeLogin()
	f.tenant = ""
	if _, err := RunLogin(context.Background(), "admin", "password123", f.deps()); !errors.Is(err, errNoTenant) {
		t.Fatalf("expected missing tenant, got %v", err)
	}
	if f.metrics[7] != 1 || f.lookups != 0 {
		t.Fatalf("missing tenant should stop before lookup, metrics=%v lookups=%d", f.metrics, f.lookups)
	}

	f.tenant = "2"
	if _, err := RunLogin(context.Background(), "admin", "password123", f.deps()); !errors.Is(err, errBadCreds) {
		t.Fatalf("foreign tenant user should be rejected, got %v", err)
	}
	if f.attempts["admin"] != 1 {
		t.Fatalf("foreign tenant attempt should count, got %d", f.attempts["admin"])
	}

	f.tenant = "1"
	if _, err := RunLogin(context.Background(), "ghost", "password123", f.deps()); !errors.Is(err, errBadCreds) {
		t.Fatalf("unknown user should be rejected, got %v", err)
	}
}

func TestRunLoginIPThrottle(t *testing.T) {
	f := newFakeLogin()
	deps := f.deps()
	deps.ClientIPFromContext = func(context.Context) string { return "10.0.0.1" }
	deps.CheckIPRate = func(context.Context, string) error { return errRateLimited }

	if _, err := RunLogin(context.Background(), "admin", "password123", deps); !errors.Is(err, errRateLimited) {
		t.Fatalf("expected rate limited, got %v", err)
	}
	if f.metrics[4] != 1 || f.lookups != 0 {
		t.Fatalf("throttled login should stop early, metrics=%v", f.metrics)
	}
}

func TestRunLoginNotReady(t *testing.T) {
	deps := newFakeLogin().deps()
	deps.IssueToken = nil
	if _, err := RunLogin(context.Background(), "admin", "password123", deps); !errors.Is(err, errNotReady) {
		t.Fatalf("expected not ready, got %v", err)
	}
}

func validateDeps(check func(context.Context, string) (ValidateClaims, error), bound string) (ValidateDeps, map[int]int) {
	metrics := map[int]int{}
	return ValidateDeps{
		Check: check,
		TenantFromContext: func(context.Context) (string, bool) {
			return bound, bound != ""
		},
		MetricInc: func(id int) { metrics[id]++ },
		Metrics:   ValidateMetrics{ValidateSuccess: 1, TokenRejected: 2, TenantMismatch: 3},
		Errors:    ValidateErrors{EngineNotReady: errNotReady, TenantMismatch: errMismatch, BackendUnavailable: errBackend},
	}, metrics
}

func TestRunValidate(t *testing.T) {
	ok := func(context.Context, string) (ValidateClaims, error) {
		return ValidateClaims{UserID: "u-1", TenantID: "1"}, nil
	}

	deps, metrics := validateDeps(ok, "1")
	claims, err := RunValidate(context.Background(), "tok", deps)
	if err != nil || claims.UserID != "u-1" || metrics[1] != 1 {
		t.Fatalf("expected success, claims=%+v err=%v metrics=%v", claims, err, metrics)
	}

	deps, metrics = validateDeps(ok, "2")
	if _, err := RunValidate(context.Background(), "tok", deps); !errors.Is(err, errMismatch) || metrics[3] != 1 {
		t.Fatalf("expected mismatch, err=%v metrics=%v", err, metrics)
	}

	deps, metrics = validateDeps(func(context.Context, string) (ValidateClaims, error) {
		return ValidateClaims{}, errBackend
	}, "")
	if _, err := RunValidate(context.Background(), "tok", deps); !errors.Is(err, errBackend) || metrics[2] != 0 {
		t.Fatalf("backend errors are not rejections, err=%v metrics=%v", err, metrics)
	}

	var observed time.Duration = -1
	deps, _ = validateDeps(ok, "")
	deps.ObserveLatency = func(d time.Duration) { observed = d }
	if _, err := RunValidate(context.Background(), "tok", deps); err != nil || observed < 0 {
		t.Fatalf("expected latency observation, err=%v observed=%v", err, observed)
	}
}

func TestRunLogout(t *testing.T) {
	revoked := map[string]time.Duration{}
	metrics := map[int]int{}
	deps := LogoutDeps{
		Decode: func(tok string) (LogoutClaims, error) {
			if tok == "bad" {
				return LogoutClaims{}, errBadCreds
			}
			return LogoutClaims{TokenID: tok, TenantID: "1"}, nil
		},
		Remaining: func(c LogoutClaims) time.Duration {
			if c.TokenID == "expired" {
				return 0
			}
			return time.Hour
		},
		Revoke: func(_ context.Context, jti string, ttl time.Duration) error {
			revoked[jti] = ttl
			return nil
		},
		MetricInc: func(id int) { metrics[id]++ },
		Metrics:   LogoutMetrics{Logout: 1, TokenRevoked: 2, TenantMismatch: 3},
		Errors:    LogoutErrors{EngineNotReady: errNotReady, TenantMismatch: errMismatch},
	}

	if err := RunLogout(context.Background(), "jti-1", deps); err != nil {
		t.Fatalf("RunLogout failed: %v", err)
	}
	if revoked["jti-1"] != time.Hour || metrics[2] != 1 {
		t.Fatalf("expected revocation for 1h, revoked=%v metrics=%v", revoked, metrics)
	}
	if err := RunLogout(context.Background(), "expired", deps); err != nil || metrics[2] != 1 || metrics[1] != 2 {
		t.Fatalf("expired logout should succeed without counting a revocation, err=%v metrics=%v", err, metrics)
	}
	if err := RunLogout(context.Background(), "bad", deps); !errors.Is(err, errBadCreds) {
		t.Fatalf("expected decode error, got %v", err)
	}

	deps.TenantFromContext = func(context.Context) (string, bool) { return "2", true }
	if err := RunLogout(context.Background(), "jti-2", deps); !errors.Is(err, errMismatch) {
		t.Fatalf("expected mismatch, got %v", err)
	}
	if _, ok := revoked["jti-2"]; ok {
		t.Fatal("mismatched logout must not revoke")
	}
}

func TestServiceInitialized(t *testing.T) {
	if New(Deps{}).Initialized() {
		t.Fatal("empty service should not be initialized")
	}
	ok := func(context.Context, string) (ValidateClaims, error) { return ValidateClaims{}, nil }
	vd, _ := validateDeps(ok, "")
	s := New(Deps{Login: newFakeLogin().deps(), Validate: vd})
	if !s.Initialized() {
		t.Fatal("wired service should be initialized")
	}
}
