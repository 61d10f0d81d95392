package tenantAuth

import (
	"context"
	"errors"
)

const (
	auditEventLoginSuccess     = "login_success"
	auditEventLoginFailure     = "login_failure"
	auditEventLoginLocked      = "login_locked"
	auditEventLoginRateLimited = "login_rate_limited"
	auditEventLockoutTriggered = "lockout_triggered"
	auditEventAccountUnlocked  = "account_unlocked"
	auditEventLogout           = "logout"
	auditEventTokenRejected    = "token_rejected"
	auditEventTenantMissing    = "tenant_missing"
	auditEventTenantMismatch   = "tenant_mismatch"
	auditEventLockContended    = "lock_contended"
	auditEventLockTimeout      = "lock_timeout"
)

// AuditErrorCode is the stable, non-leaking error classification written to
// [AuditEvent.Error].
type AuditErrorCode string

const (
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrAccountLocked      AuditErrorCode = "account_locked"
	auditErrRateLimited        AuditErrorCode = "rate_limited"
	auditErrInvalidToken       AuditErrorCode = "invalid_token"
	auditErrTokenExpired       AuditErrorCode = "token_expired"
	auditErrMissingTenant      AuditErrorCode = "missing_tenant"
	auditErrTenantMismatch     AuditErrorCode = "tenant_mismatch"
	auditErrLockUnavailable    AuditErrorCode = "lock_unavailable"
	auditErrUnavailable        AuditErrorCode = "backend_unavailable"
	auditErrPermissionDenied   AuditErrorCode = "permission_denied"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	tenantID string,
	tokenID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}
	if tenantID == "" {
		tenantID, _ = TenantFromContext(ctx)
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: e.now().UTC(),
		EventType: eventType,
		UserID:    userID,
		TenantID:  tenantID,
		TokenID:   tokenID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrAccountLocked):
		return auditErrAccountLocked
	case errors.Is(err, ErrLoginRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrTokenExpired):
		return auditErrTokenExpired
	case errors.Is(err, ErrInvalidToken):
		return auditErrInvalidToken
	case errors.Is(err, ErrMissingTenantContext),
		errors.Is(err, ErrInvalidTenantID):
		return auditErrMissingTenant
	case errors.Is(err, ErrTenantMismatch):
		return auditErrTenantMismatch
	case errors.Is(err, ErrLockAcquisitionFailed),
		errors.Is(err, ErrLockTimeout):
		return auditErrLockUnavailable
	case errors.Is(err, ErrBackendUnavailable):
		return auditErrUnavailable
	case errors.Is(err, ErrPermissionDenied):
		return auditErrPermissionDenied
	default:
		return auditErrInternal
	}
}
