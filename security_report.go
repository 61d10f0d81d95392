package tenantAuth

// SecurityReport summarises the active security posture for startup logs and
// health endpoints. It never includes key material.
func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}

	cfg := e.config
	return SecurityReport{
		ProductionMode:     cfg.Security.ProductionMode,
		SigningAlgorithm:   cfg.Token.SigningMethod,
		TokenLifetime:      cfg.Token.Lifetime,
		LockoutEnabled:     cfg.Lockout.Enabled,
		LockoutThreshold:   cfg.Lockout.MaxAttempts,
		LockoutWindow:      cfg.Lockout.AttemptWindow,
		LockoutDuration:    cfg.Lockout.LockDuration,
		IPThrottleActive:   cfg.Security.EnableIPThrottle && cfg.Security.MaxLoginAttemptsPerIP > 0,
		KeyPrefix:          cfg.Keys.Prefix,
		TenantHeader:       cfg.MultiTenant.TenantHeader,
		TenantExemptTables: append([]string(nil), cfg.MultiTenant.ExemptTables...),
		AuditEnabled:       cfg.Audit.Enabled,
		MetricsEnabled:     cfg.Metrics.Enabled,
	}
}
