package tenantAuth

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/MrEthical07/tenantAuth/cache"
	"github.com/MrEthical07/tenantAuth/internal/rate"
	"github.com/MrEthical07/tenantAuth/lock"
	"github.com/MrEthical07/tenantAuth/tenancy"
	"github.com/MrEthical07/tenantAuth/token"
)

var (
	// ErrInvalidCredentials is returned for an unknown user, a wrong password or a
	// disabled account. The three cases are indistinguishable to callers.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountLocked is matched by every *AccountLockedError.
	ErrAccountLocked = errors.New("account locked")
	// ErrInvalidToken indicates a malformed, forged or revoked token.
	ErrInvalidToken = token.ErrInvalidToken
	// ErrTokenExpired indicates a correctly signed token past its expiry.
	ErrTokenExpired = token.ErrTokenExpired
	// ErrTokenRevoked indicates a revoked token. It also matches ErrInvalidToken.
	ErrTokenRevoked = token.ErrTokenRevoked
	// ErrMissingTenantContext is returned when an operation needs a bound tenant and none is bound.
	ErrMissingTenantContext = tenancy.ErrMissingTenantContext
	// ErrInvalidTenantID is returned when binding an empty or blank tenant id.
	ErrInvalidTenantID = tenancy.ErrInvalidTenantID
	// ErrTenantMismatch is returned when a token belongs to a different tenant than the bound one.
	ErrTenantMismatch = tenancy.ErrTenantMismatch
	// ErrLockAcquisitionFailed is returned when a lock is held by someone else.
	ErrLockAcquisitionFailed = lock.ErrLockAcquisitionFailed
	// ErrLockTimeout is returned when a blocking acquire runs out of time.
	ErrLockTimeout = lock.ErrLockTimeout
	// ErrBackendUnavailable wraps cache failures.
	ErrBackendUnavailable = cache.ErrUnavailable
	// ErrLoginRateLimited is returned when the per-IP login throttle trips.
	ErrLoginRateLimited = rate.ErrRateLimited
	// ErrUserNotFound is returned by administrative calls naming a user that
	// does not exist in the bound tenant.
	ErrUserNotFound = errors.New("user not found")
	// ErrPermissionDenied is returned when an identity lacks a required role or permission.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrEngineNotReady is returned by methods called on a nil or unbuilt Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrInvalidConfig wraps configuration validation failures.
	ErrInvalidConfig = errors.New("invalid config")
)

// AccountLockedError carries the instant a locked account reopens.
type AccountLockedError struct {
	LockUntil time.Time
}

func (e *AccountLockedError) Error() string {
	return fmt.Sprintf("account locked until %s", e.LockUntil.UTC().Format(time.RFC3339))
}

// Is makes errors.Is(err, ErrAccountLocked) true.
func (e *AccountLockedError) Is(target error) bool {
	return target == ErrAccountLocked
}

// RetryAfter returns how long until the lock lifts, never negative.
func (e *AccountLockedError) RetryAfter(now time.Time) time.Duration {
	d := e.LockUntil.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// HTTPStatus maps an error returned by the Engine to an HTTP status code.
// Unknown errors map to 500.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrInvalidToken),
		errors.Is(err, ErrTokenExpired):
		return http.StatusUnauthorized
	case errors.Is(err, ErrAccountLocked),
		errors.Is(err, ErrMissingTenantContext),
		errors.Is(err, ErrTenantMismatch),
		errors.Is(err, ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, ErrInvalidTenantID):
		return http.StatusBadRequest
	case errors.Is(err, ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrLoginRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrLockAcquisitionFailed),
		errors.Is(err, ErrLockTimeout),
		errors.Is(err, ErrBackendUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns a client-safe message for err. It never includes
// usernames, tenant ids or backend details.
func PublicMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid credentials"
	case errors.Is(err, ErrAccountLocked):
		return "account locked"
	case errors.Is(err, ErrTokenExpired):
		return "token expired"
	case errors.Is(err, ErrInvalidToken):
		return "invalid token"
	case errors.Is(err, ErrMissingTenantContext):
		return "tenant context required"
	case errors.Is(err, ErrTenantMismatch):
		return "tenant mismatch"
	case errors.Is(err, ErrInvalidTenantID):
		return "invalid tenant id"
	case errors.Is(err, ErrPermissionDenied):
		return "permission denied"
	case errors.Is(err, ErrUserNotFound):
		return "user not found"
	case errors.Is(err, ErrLoginRateLimited):
		return "too many login attempts"
	case errors.Is(err, ErrLockAcquisitionFailed), errors.Is(err, ErrLockTimeout):
		return "resource busy, retry later"
	case errors.Is(err, ErrBackendUnavailable):
		return "service unavailable"
	default:
		return "internal error"
	}
}
