package rate

import (
	"context"
	"strconv"
	"time"

	"github.com/MrEthical07/tenantAuth/cache"
	"github.com/MrEthical07/tenantAuth/keys"
)

// Config holds rate limiter tuning parameters.
type Config struct {
	EnableIPThrottle bool
	MaxIPAttempts    int
	IPWindow         time.Duration
}

// Limiter enforces a per-IP login budget using cache counters.
type Limiter struct {
	store  cache.Store
	keys   *keys.Generator
	config Config
}

// New creates a rate [Limiter] backed by store.
func New(store cache.Store, keyGen *keys.Generator, cfg Config) *Limiter {
	return &Limiter{
		store:  store,
		keys:   keyGen,
		config: cfg,
	}
}

// CheckLogin returns [ErrRateLimited] when ip already exhausted its budget.
func (l *Limiter) CheckLogin(ctx context.Context, ip string) error {
	if l == nil || !l.config.EnableIPThrottle || ip == "" {
		return nil
	}

	raw, found, err := l.store.Get(ctx, l.keys.LoginIPKey(ip))
	if err != nil || !found {
		return err
	}
	count, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return nil
	}
	if count >= int64(l.config.MaxIPAttempts) {
		return ErrRateLimited
	}
	return nil
}

// IncrementLogin records a login attempt from ip.
func (l *Limiter) IncrementLogin(ctx context.Context, ip string) error {
	if l == nil || !l.config.EnableIPThrottle || ip == "" {
		return nil
	}

	_, err := l.incrementWithTTL(ctx, l.keys.LoginIPKey(ip), l.config.IPWindow)
	return err
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	if ttl <= 0 {
		return l.store.Increment(ctx, key, 1)
	}
	// Fixed window: the TTL is set with the first hit, in the same script.
	return cache.IncrementWindow(ctx, l.store, key, 1, ttl)
}
