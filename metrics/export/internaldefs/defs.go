package internaldefs

import (
	tenantAuth "github.com/MrEthical07/tenantAuth"
)

// CounterDef names one engine counter for exporters.
type CounterDef struct {
	ID   tenantAuth.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram for exporters.
type HistogramDef struct {
	ID   tenantAuth.MetricID
	Name string
	Help string
}

// AuditDroppedName is the counter of audit events lost to backpressure.
const AuditDroppedName = "tenantauth_audit_dropped_total"

// AuditDroppedHelp describes [AuditDroppedName].
const AuditDroppedHelp = "Dropped audit events due to dispatcher backpressure."

// Cache health gauges, read from Engine.Health on each collection.
const (
	CacheUpName      = "tenantauth_cache_up"
	CacheUpHelp      = "1 when the Redis cache answered the last health ping."
	CacheLatencyName = "tenantauth_cache_latency_seconds"
	CacheLatencyHelp = "Round-trip time of the last cache health ping."
)

// CounterDefs lists every exported counter in exposition order.
var CounterDefs = []CounterDef{
	{ID: tenantAuth.MetricLoginSuccess, Name: "tenantauth_login_success_total", Help: "Successful login attempts."},
	{ID: tenantAuth.MetricLoginFailure, Name: "tenantauth_login_failure_total", Help: "Failed login attempts."},
	{ID: tenantAuth.MetricLoginLocked, Name: "tenantauth_login_locked_total", Help: "Login attempts rejected because the account is locked."},
	{ID: tenantAuth.MetricLoginRateLimited, Name: "tenantauth_login_rate_limited_total", Help: "Login attempts rejected by the per-IP throttle."},
	{ID: tenantAuth.MetricLockoutTriggered, Name: "tenantauth_lockout_triggered_total", Help: "Accounts locked after reaching the failure threshold."},
	{ID: tenantAuth.MetricLogout, Name: "tenantauth_logout_total", Help: "Logout operations."},
	{ID: tenantAuth.MetricTokenIssued, Name: "tenantauth_token_issued_total", Help: "Session tokens issued."},
	{ID: tenantAuth.MetricTokenRejected, Name: "tenantauth_token_rejected_total", Help: "Session tokens rejected during validation."},
	{ID: tenantAuth.MetricTokenRevoked, Name: "tenantauth_token_revoked_total", Help: "Session tokens added to the revocation set."},
	{ID: tenantAuth.MetricValidateSuccess, Name: "tenantauth_validate_success_total", Help: "Successful token validations."},
	{ID: tenantAuth.MetricTenantMissing, Name: "tenantauth_tenant_missing_total", Help: "Tenant-scoped operations attempted without a bound tenant."},
	{ID: tenantAuth.MetricTenantMismatch, Name: "tenantauth_tenant_mismatch_total", Help: "Tokens presented in a tenant other than their own."},
	{ID: tenantAuth.MetricLockAcquired, Name: "tenantauth_lock_acquired_total", Help: "Distributed locks acquired."},
	{ID: tenantAuth.MetricLockContended, Name: "tenantauth_lock_contended_total", Help: "Lock attempts that found the lock held."},
	{ID: tenantAuth.MetricLockReleased, Name: "tenantauth_lock_released_total", Help: "Distributed locks released by their owner."},
	{ID: tenantAuth.MetricLockReleaseFailed, Name: "tenantauth_lock_release_failed_total", Help: "Lock releases that failed or found another owner."},
	{ID: tenantAuth.MetricLockTimeout, Name: "tenantauth_lock_timeout_total", Help: "Blocking lock attempts that timed out."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: tenantAuth.MetricValidateLatency, Name: "tenantauth_validate_latency_seconds", Help: "Token validation latency."},
}

// HistogramBounds are the bucket upper bounds as exposition labels.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramUpperBounds are the finite bucket bounds in seconds. The last
// engine bucket is the implicit +Inf bucket.
var HistogramUpperBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// HistogramBoundSuffix are [HistogramBounds] made safe for instrument names.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed array, padding with zeros.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
