package tenantAuth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/tenantAuth/tenancy"
)

// Config is the complete engine configuration. Start from [DefaultConfig]
// and override fields, or load it with [LoadConfig].
//
// Config instances are intended to be configured during initialization and then treated as immutable.
type Config struct {
	Token       TokenConfig
	Lockout     LockoutConfig
	Lock        LockConfig
	Keys        KeysConfig
	MultiTenant MultiTenantConfig
	Security    SecurityConfig
	Audit       AuditConfig
	Metrics     MetricsConfig
	Permission  PermissionConfig
	Redis       RedisConfig
	Database    DatabaseConfig
	Logging     LoggingConfig
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig controls session token signing and lifetime.
type TokenConfig struct {
	Lifetime      time.Duration
	SigningMethod string // "hs256" (default) or "ed25519"
	// Secret is the HS256 shared secret, or the Ed25519 private key.
	Secret    []byte
	PublicKey []byte
	Issuer    string
	Audience  string
	Leeway    time.Duration
}

/*
====================================
LOCKOUT CONFIG
====================================
*/

// LockoutConfig controls per-username brute-force lockout.
type LockoutConfig struct {
	Enabled       bool
	MaxAttempts   int
	AttemptWindow time.Duration
	LockDuration  time.Duration
}

/*
====================================
LOCK CONFIG
====================================
*/

// LockConfig controls the distributed lock helpers.
type LockConfig struct {
	DefaultTimeout time.Duration
	RetryInterval  time.Duration
	MaxWait        time.Duration
}

// KeysConfig controls cache key naming.
type KeysConfig struct {
	Prefix string
}

/*
====================================
MULTI TENANT CONFIG
====================================
*/

// MultiTenantConfig controls tenant binding and enforcement.
type MultiTenantConfig struct {
	TenantHeader    string
	TenantColumn    string
	ExemptTables    []string
	WorkerPoolSize  int
	WorkerQueueSize int
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig holds hardening toggles.
type SecurityConfig struct {
	ProductionMode        bool
	EnableIPThrottle      bool
	MaxLoginAttemptsPerIP int
	IPThrottleWindow      time.Duration
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process metrics.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// PermissionConfig controls the RBAC registry.
type PermissionConfig struct {
	RootBitReserved bool
}

/*
====================================
BACKEND CONFIG
====================================
*/

// RedisConfig describes the cache connection used by the CLI.
type RedisConfig struct {
	Addr     string
	Username string
	Password string
	DB       int
	PoolSize int
}

// DatabaseConfig describes the user store connection used by the CLI.
type DatabaseConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// LoggingConfig selects the log level used by the CLI.
type LoggingConfig struct {
	Level string
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the documented defaults: 24h tokens, lockout after 5
// failures within 1h for 15m, and lock keys under the "rbac" prefix.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Token: TokenConfig{
			Lifetime:      24 * time.Hour,
			SigningMethod: "hs256",
			Issuer:        "tenant-auth",
		},
		Lockout: LockoutConfig{
			Enabled:       true,
			MaxAttempts:   5,
			AttemptWindow: time.Hour,
			LockDuration:  15 * time.Minute,
		},
		Lock: LockConfig{
			DefaultTimeout: 30 * time.Second,
			RetryInterval:  25 * time.Millisecond,
			MaxWait:        5 * time.Second,
		},
		Keys: KeysConfig{
			Prefix: "rbac",
		},
		MultiTenant: MultiTenantConfig{
			TenantHeader:    "X-Tenant-ID",
			TenantColumn:    tenancy.DefaultColumn,
			ExemptTables:    append([]string(nil), tenancy.DefaultExemptTables...),
			WorkerPoolSize:  8,
			WorkerQueueSize: 64,
		},
		Security: SecurityConfig{
			ProductionMode:        false,
			EnableIPThrottle:      false,
			MaxLoginAttemptsPerIP: 50,
			IPThrottleWindow:      15 * time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
		Permission: PermissionConfig{
			RootBitReserved: true,
		},
		Redis: RedisConfig{
			PoolSize: 10,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Token.Secret = cloneBytes(cfg.Token.Secret)
	out.Token.PublicKey = cloneBytes(cfg.Token.PublicKey)
	out.MultiTenant.ExemptTables = append([]string(nil), cfg.MultiTenant.ExemptTables...)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate checks the configuration for unusable or unsafe values. Every
// returned error matches [ErrInvalidConfig].
func (c *Config) Validate() error {
	if err := c.validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

func (c *Config) validate() error {
	// Token
	if c.Token.Lifetime <= 0 {
		return errors.New("Token Lifetime must be > 0")
	}
	switch c.Token.SigningMethod {
	case "hs256":
		if len(c.Token.Secret) == 0 {
			return errors.New("hs256 requires Secret")
		}
	case "ed25519":
		if len(c.Token.PublicKey) == 0 {
			return errors.New("ed25519 requires PublicKey")
		}
		if len(c.Token.Secret) == 0 {
			return errors.New("ed25519 requires Secret (private key)")
		}
	default:
		return errors.New("unsupported Token signing method")
	}
	if c.Token.Leeway < 0 || c.Token.Leeway > 2*time.Minute {
		return errors.New("Token Leeway must be between 0 and 2m")
	}

	// Lockout
	if c.Lockout.Enabled {
		if c.Lockout.MaxAttempts <= 0 {
			return errors.New("Lockout MaxAttempts must be > 0")
		}
		if c.Lockout.AttemptWindow <= 0 {
			return errors.New("Lockout AttemptWindow must be > 0")
		}
		if c.Lockout.LockDuration <= 0 {
			return errors.New("Lockout LockDuration must be > 0")
		}
	}

	// Lock
	if c.Lock.DefaultTimeout <= 0 {
		return errors.New("Lock DefaultTimeout must be > 0")
	}
	if c.Lock.RetryInterval <= 0 {
		return errors.New("Lock RetryInterval must be > 0")
	}
	if c.Lock.MaxWait < 0 {
		return errors.New("Lock MaxWait must be >= 0")
	}

	// Keys
	if strings.TrimSpace(c.Keys.Prefix) == "" {
		return errors.New("Keys Prefix must not be empty")
	}
	if strings.Contains(c.Keys.Prefix, " ") {
		return errors.New("Keys Prefix must not contain spaces")
	}

	// Multi tenant
	if strings.TrimSpace(c.MultiTenant.TenantHeader) == "" {
		return errors.New("MultiTenant TenantHeader must not be empty")
	}
	if strings.TrimSpace(c.MultiTenant.TenantColumn) == "" {
		return errors.New("MultiTenant TenantColumn must not be empty")
	}
	if c.MultiTenant.WorkerPoolSize < 0 || c.MultiTenant.WorkerQueueSize < 0 {
		return errors.New("MultiTenant worker pool sizes must be >= 0")
	}

	// Security
	if c.Security.EnableIPThrottle {
		if c.Security.MaxLoginAttemptsPerIP <= 0 {
			return errors.New("Security MaxLoginAttemptsPerIP must be > 0 when IP throttle is enabled")
		}
		if c.Security.IPThrottleWindow <= 0 {
			return errors.New("Security IPThrottleWindow must be > 0 when IP throttle is enabled")
		}
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	if c.Security.ProductionMode {
		if c.Token.SigningMethod == "hs256" && len(c.Token.Secret) < 32 {
			return errors.New("ProductionMode requires hs256 secret length >= 256 bits")
		}
		if !c.Lockout.Enabled {
			return errors.New("ProductionMode requires Lockout Enabled")
		}
		if c.Token.Lifetime > 7*24*time.Hour {
			return errors.New("ProductionMode requires Token Lifetime <= 7d")
		}
	}

	return nil
}
