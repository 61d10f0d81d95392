package tenantAuth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is the environment variable prefix read by [LoadConfig].
// Nested keys map with "_", so token.secret is TENANTAUTH_TOKEN_SECRET.
const EnvPrefix = "TENANTAUTH"

// LoadConfig builds a Config from defaults, an optional config file (YAML,
// TOML or JSON, by extension) and TENANTAUTH_* environment variables, in
// increasing precedence. An empty path skips the file. The result is validated.
func LoadConfig(path string) (Config, error) {
	v := NewConfigViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("%w: read %s: %v", ErrInvalidConfig, path, err)
		}
	}
	return ConfigFromViper(v)
}

// NewConfigViper returns a viper instance preloaded with every default and
// bound to the TENANTAUTH_ environment. Callers may bind flags on it before
// calling [ConfigFromViper].
func NewConfigViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	d := defaultConfig()
	v.SetDefault("token.lifetime", d.Token.Lifetime)
	v.SetDefault("token.signing_method", d.Token.SigningMethod)
	v.SetDefault("token.secret", "")
	v.SetDefault("token.public_key", "")
	v.SetDefault("token.issuer", d.Token.Issuer)
	v.SetDefault("token.audience", d.Token.Audience)
	v.SetDefault("token.leeway", d.Token.Leeway)

	v.SetDefault("lockout.enabled", d.Lockout.Enabled)
	v.SetDefault("lockout.max_attempts", d.Lockout.MaxAttempts)
	v.SetDefault("lockout.attempt_window", d.Lockout.AttemptWindow)
	v.SetDefault("lockout.lock_duration", d.Lockout.LockDuration)

	v.SetDefault("lock.default_timeout", d.Lock.DefaultTimeout)
	v.SetDefault("lock.retry_interval", d.Lock.RetryInterval)
	v.SetDefault("lock.max_wait", d.Lock.MaxWait)

	v.SetDefault("keys.prefix", d.Keys.Prefix)

	v.SetDefault("multi_tenant.tenant_header", d.MultiTenant.TenantHeader)
	v.SetDefault("multi_tenant.tenant_column", d.MultiTenant.TenantColumn)
	v.SetDefault("multi_tenant.exempt_tables", d.MultiTenant.ExemptTables)
	v.SetDefault("multi_tenant.worker_pool_size", d.MultiTenant.WorkerPoolSize)
	v.SetDefault("multi_tenant.worker_queue_size", d.MultiTenant.WorkerQueueSize)

	v.SetDefault("security.production_mode", d.Security.ProductionMode)
	v.SetDefault("security.enable_ip_throttle", d.Security.EnableIPThrottle)
	v.SetDefault("security.max_login_attempts_per_ip", d.Security.MaxLoginAttemptsPerIP)
	v.SetDefault("security.ip_throttle_window", d.Security.IPThrottleWindow)

	v.SetDefault("audit.enabled", d.Audit.Enabled)
	v.SetDefault("audit.buffer_size", d.Audit.BufferSize)
	v.SetDefault("audit.drop_if_full", d.Audit.DropIfFull)

	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.enable_latency_histograms", d.Metrics.EnableLatencyHistograms)

	v.SetDefault("permission.root_bit_reserved", d.Permission.RootBitReserved)

	v.SetDefault("redis.addr", d.Redis.Addr)
	v.SetDefault("redis.username", d.Redis.Username)
	v.SetDefault("redis.password", d.Redis.Password)
	v.SetDefault("redis.db", d.Redis.DB)
	v.SetDefault("redis.pool_size", d.Redis.PoolSize)

	v.SetDefault("database.dsn", d.Database.DSN)
	v.SetDefault("database.max_open_conns", d.Database.MaxOpenConns)
	v.SetDefault("database.max_idle_conns", d.Database.MaxIdleConns)
	v.SetDefault("database.conn_max_lifetime", d.Database.ConnMaxLifetime)

	v.SetDefault("logging.level", d.Logging.Level)
	return v
}

// ConfigFromViper reads a Config out of v and validates it.
func ConfigFromViper(v *viper.Viper) (Config, error) {
	if v == nil {
		return Config{}, fmt.Errorf("%w: nil viper instance", ErrInvalidConfig)
	}

	cfg := Config{
		Token: TokenConfig{
			Lifetime:      v.GetDuration("token.lifetime"),
			SigningMethod: strings.ToLower(strings.TrimSpace(v.GetString("token.signing_method"))),
			Secret:        []byte(v.GetString("token.secret")),
			PublicKey:     []byte(v.GetString("token.public_key")),
			Issuer:        v.GetString("token.issuer"),
			Audience:      v.GetString("token.audience"),
			Leeway:        v.GetDuration("token.leeway"),
		},
		Lockout: LockoutConfig{
			Enabled:       v.GetBool("lockout.enabled"),
			MaxAttempts:   v.GetInt("lockout.max_attempts"),
			AttemptWindow: v.GetDuration("lockout.attempt_window"),
			LockDuration:  v.GetDuration("lockout.lock_duration"),
		},
		Lock: LockConfig{
			DefaultTimeout: v.GetDuration("lock.default_timeout"),
			RetryInterval:  v.GetDuration("lock.retry_interval"),
			MaxWait:        v.GetDuration("lock.max_wait"),
		},
		Keys: KeysConfig{
			Prefix: v.GetString("keys.prefix"),
		},
		MultiTenant: MultiTenantConfig{
			TenantHeader:    v.GetString("multi_tenant.tenant_header"),
			TenantColumn:    v.GetString("multi_tenant.tenant_column"),
			ExemptTables:    v.GetStringSlice("multi_tenant.exempt_tables"),
			WorkerPoolSize:  v.GetInt("multi_tenant.worker_pool_size"),
			WorkerQueueSize: v.GetInt("multi_tenant.worker_queue_size"),
		},
		Security: SecurityConfig{
			ProductionMode:        v.GetBool("security.production_mode"),
			EnableIPThrottle:      v.GetBool("security.enable_ip_throttle"),
			MaxLoginAttemptsPerIP: v.GetInt("security.max_login_attempts_per_ip"),
			IPThrottleWindow:      v.GetDuration("security.ip_throttle_window"),
		},
		Audit: AuditConfig{
			Enabled:    v.GetBool("audit.enabled"),
			BufferSize: v.GetInt("audit.buffer_size"),
			DropIfFull: v.GetBool("audit.drop_if_full"),
		},
		Metrics: MetricsConfig{
			Enabled:                 v.GetBool("metrics.enabled"),
			EnableLatencyHistograms: v.GetBool("metrics.enable_latency_histograms"),
		},
		Permission: PermissionConfig{
			RootBitReserved: v.GetBool("permission.root_bit_reserved"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Username: v.GetString("redis.username"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
			PoolSize: v.GetInt("redis.pool_size"),
		},
		Database: DatabaseConfig{
			DSN:             v.GetString("database.dsn"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetDuration("database.conn_max_lifetime"),
		},
		Logging: LoggingConfig{
			Level: v.GetString("logging.level"),
		},
	}
	if len(cfg.Token.Secret) == 0 {
		cfg.Token.Secret = nil
	}
	if len(cfg.Token.PublicKey) == 0 {
		cfg.Token.PublicKey = nil
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// IsConfigError reports whether err came from configuration loading or validation.
func IsConfigError(err error) bool {
	return errors.Is(err, ErrInvalidConfig)
}
