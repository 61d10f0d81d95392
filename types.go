package tenantAuth

import (
	"context"
	"io"
	"time"

	"pkt.systems/pslog"

	internalaudit "github.com/MrEthical07/tenantAuth/internal/audit"
	internalmetrics "github.com/MrEthical07/tenantAuth/internal/metrics"
)

// UserRecord is the credential-free view of a user returned by a [UserStore].
type UserRecord struct {
	UserID   string
	Username string
	// TenantID is the tenant the user belongs to. An empty TenantID means the
	// store is already tenant-scoped and the bound tenant is used.
	TenantID string
	Roles    []string
	Enabled  bool
}

// UserStore is the persistence boundary consumed by [Engine.Login].
// Implementations must treat username lookups as tenant-scoped when the
// context carries a tenant.
type UserStore interface {
	// FindByUsername returns the user, or found=false when it does not exist.
	FindByUsername(ctx context.Context, username string) (UserRecord, bool, error)
	// VerifyPassword reports whether plaintext matches the stored hash.
	VerifyPassword(ctx context.Context, username, plaintext string) (bool, error)
	// UpdateLastLogin records a successful login. Failures are logged, not returned.
	UpdateLastLogin(ctx context.Context, username string) error
}

// LoginResult is returned by [Engine.Login].
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

// ExpiresInSeconds returns ExpiresIn in whole seconds, the unit used on the wire.
func (r *LoginResult) ExpiresInSeconds() int64 {
	if r == nil {
		return 0
	}
	return int64(r.ExpiresIn / time.Second)
}

// Identity is the caller extracted from a valid session token by
// [Engine.ValidateAndExtract].
type Identity struct {
	UserID    string
	TenantID  string
	Username  string
	Roles     []string
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// HasRole reports whether the identity carries role.
func (i *Identity) HasRole(role string) bool {
	if i == nil {
		return false
	}
	for _, r := range i.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// LockoutStatus is the lockout view of one username returned by
// [Engine.LockoutStatus].
type LockoutStatus struct {
	Locked         bool
	LockUntil      time.Time
	FailedAttempts int64
	MaxAttempts    int
}

// HealthStatus is returned by [Engine.Health].
type HealthStatus struct {
	CacheAvailable bool
	CacheLatency   time.Duration
}

// SecurityReport is a read-only snapshot of the engine's security posture,
// returned by [Engine.SecurityReport].
type SecurityReport struct {
	ProductionMode     bool
	SigningAlgorithm   string
	TokenLifetime      time.Duration
	LockoutEnabled     bool
	LockoutThreshold   int
	LockoutWindow      time.Duration
	LockoutDuration    time.Duration
	IPThrottleActive   bool
	KeyPrefix          string
	TenantHeader       string
	TenantExemptTables []string
	AuditEnabled       bool
	MetricsEnabled     bool
}

// AuditEvent is a structured audit record emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the engine's audit dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes JSON-encoded events to an
// [io.Writer].
type JSONWriterSink = internalaudit.JSONWriterSink

// TenantAuditSink routes events to a per-tenant [AuditSink] by
// [AuditEvent.TenantID], with a fallback for everything else.
type TenantAuditSink = internalaudit.TenantSink

// LogAuditSink is an [AuditSink] that writes events as pslog entries.
type LogAuditSink = internalaudit.LogSink

// NewTenantAuditSink creates a [TenantAuditSink] sending unrouted events to
// fallback.
func NewTenantAuditSink(fallback AuditSink) *TenantAuditSink {
	return internalaudit.NewTenantSink(fallback)
}

// NewLogAuditSink creates a [LogAuditSink] writing to logger.
func NewLogAuditSink(logger pslog.Logger) *LogAuditSink {
	return internalaudit.NewLogSink(logger)
}

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// MetricID identifies a specific counter or histogram in the in-process
// metrics system.
type MetricID = internalmetrics.MetricID

const (
	MetricLoginSuccess      = internalmetrics.MetricLoginSuccess
	MetricLoginFailure      = internalmetrics.MetricLoginFailure
	MetricLoginLocked       = internalmetrics.MetricLoginLocked
	MetricLoginRateLimited  = internalmetrics.MetricLoginRateLimited
	MetricLockoutTriggered  = internalmetrics.MetricLockoutTriggered
	MetricLogout            = internalmetrics.MetricLogout
	MetricTokenIssued       = internalmetrics.MetricTokenIssued
	MetricTokenRejected     = internalmetrics.MetricTokenRejected
	MetricTokenRevoked      = internalmetrics.MetricTokenRevoked
	MetricValidateSuccess   = internalmetrics.MetricValidateSuccess
	MetricTenantMissing     = internalmetrics.MetricTenantMissing
	MetricTenantMismatch    = internalmetrics.MetricTenantMismatch
	MetricLockAcquired      = internalmetrics.MetricLockAcquired
	MetricLockContended     = internalmetrics.MetricLockContended
	MetricLockReleased      = internalmetrics.MetricLockReleased
	MetricLockReleaseFailed = internalmetrics.MetricLockReleaseFailed
	MetricLockTimeout       = internalmetrics.MetricLockTimeout
	MetricValidateLatency   = internalmetrics.MetricValidateLatency

	metricIDCount = internalmetrics.MetricIDCount
)

// Metrics holds atomic counters and optional latency histograms.
type Metrics = internalmetrics.Metrics

// MetricsSnapshot is a point-in-time copy of all metrics.
type MetricsSnapshot = internalmetrics.Snapshot

// NewMetrics creates a [Metrics] instance configured by cfg. When Enabled
// is false, all operations are no-ops.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return internalmetrics.New(internalmetrics.Config{
		Enabled:       cfg.Enabled,
		EnableLatency: cfg.EnableLatencyHistograms,
	})
}
