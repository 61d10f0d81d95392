package tenantAuth

import (
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"pkt.systems/pslog"

	"github.com/MrEthical07/tenantAuth/cache"
	internalaudit "github.com/MrEthical07/tenantAuth/internal/audit"
	"github.com/MrEthical07/tenantAuth/internal/limiters"
	"github.com/MrEthical07/tenantAuth/internal/logging"
	"github.com/MrEthical07/tenantAuth/internal/rate"
	"github.com/MrEthical07/tenantAuth/jwt"
	"github.com/MrEthical07/tenantAuth/keys"
	"github.com/MrEthical07/tenantAuth/permission"
	"github.com/MrEthical07/tenantAuth/tenancy"
	"github.com/MrEthical07/tenantAuth/token"
)

// Builder assembles an [Engine]. A Builder is single-use.
type Builder struct {
	config Config
	redis  redis.UniversalClient
	store  cache.Store

	permissions []string
	roles       map[string][]string

	userStore UserStore
	auditSink AuditSink
	logger    pslog.Logger
	now       func() time.Time

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the configuration. The config is copied.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the Redis client backing the revocation set, the lockout
// counters and distributed locks.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithStore sets the cache store directly. It takes precedence over WithRedis.
func (b *Builder) WithStore(store cache.Store) *Builder {
	b.store = store
	return b
}

// WithPermissions registers the permission names available to roles.
func (b *Builder) WithPermissions(perms []string) *Builder {
	b.permissions = perms
	return b
}

// WithRoles maps role names to permission names. [permission.RootPermission]
// grants every permission.
func (b *Builder) WithRoles(r map[string][]string) *Builder {
	b.roles = r
	return b
}

// WithUserStore sets the user store consulted by Login.
func (b *Builder) WithUserStore(us UserStore) *Builder {
	b.userStore = us
	return b
}

// WithAuditSink sets the audit sink. Audit must also be enabled in the config.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the structured logger. A nil logger disables logging.
func (b *Builder) WithLogger(logger pslog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock overrides the wall clock used for token and lockout timestamps.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithMetricsEnabled toggles in-process metrics.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the validate latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store := b.store
	if store == nil {
		if b.redis == nil {
			return nil, errors.New("redis client or cache store required")
		}
		store = cache.NewRedis(b.redis)
	}

	if b.userStore == nil {
		return nil, errors.New("user store required")
	}

	now := b.now
	if now == nil {
		now = time.Now
	}
	logger := logging.Ensure(b.logger)

	// -------- PERMISSION REGISTRY --------
	registry := permission.NewRegistry(cfg.Permission.RootBitReserved)
	for _, p := range b.permissions {
		if _, err := registry.Register(p); err != nil {
			return nil, err
		}
	}
	registry.Freeze()

	// -------- ROLE MANAGER --------
	roleManager := permission.NewRoleManager(registry)
	for roleName, permList := range b.roles {
		if err := roleManager.RegisterRole(roleName, permList); err != nil {
			return nil, err
		}
	}
	roleManager.Freeze()

	// -------- TOKENS --------
	keyGen := keys.New(cfg.Keys.Prefix)
	codec, err := jwt.NewManager(jwt.Config{
		Lifetime:      cfg.Token.Lifetime,
		SigningMethod: jwt.SigningMethod(cfg.Token.SigningMethod),
		PrivateKey:    cloneBytes(cfg.Token.Secret),
		PublicKey:     cloneBytes(cfg.Token.PublicKey),
		Issuer:        cfg.Token.Issuer,
		Audience:      cfg.Token.Audience,
		Leeway:        cfg.Token.Leeway,
		Now:           now,
	})
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:      cloneConfig(cfg),
		logger:      logging.WithSubsystem(logger, "engine"),
		baseLogger:  logger,
		store:       store,
		keys:        keyGen,
		tokens:      token.NewManager(codec, store, keyGen, logger),
		registry:    registry,
		roleManager: roleManager,
		enforcer:    tenancy.NewEnforcer(cfg.MultiTenant.TenantColumn, cfg.MultiTenant.ExemptTables...),
		userStore:   b.userStore,
		metrics:     NewMetrics(cfg.Metrics),
		now:         now,
	}

	engine.lockout = limiters.NewLockoutLimiter(store, keyGen, limiters.LockoutConfig{
		Enabled:   cfg.Lockout.Enabled,
		Threshold: cfg.Lockout.MaxAttempts,
		Window:    cfg.Lockout.AttemptWindow,
		Duration:  cfg.Lockout.LockDuration,
		Now:       now,
	})
	engine.rateLimiter = rate.New(store, keyGen, rate.Config{
		EnableIPThrottle: cfg.Security.EnableIPThrottle,
		MaxIPAttempts:    cfg.Security.MaxLoginAttemptsPerIP,
		IPWindow:         cfg.Security.IPThrottleWindow,
	})
	engine.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
		Logger:     logger,
		Now:        now,
	}, b.auditSink)
	if cfg.MultiTenant.WorkerPoolSize > 0 {
		engine.workers = tenancy.NewPool(cfg.MultiTenant.WorkerPoolSize, cfg.MultiTenant.WorkerQueueSize, logger)
	}
	engine.flows = engine.buildFlows()

	b.built = true

	return engine, nil
}
