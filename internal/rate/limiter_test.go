package rate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/tenantAuth/cache"
	"github.com/MrEthical07/tenantAuth/keys"
)

func newRateTest(t *testing.T, cfg Config) (*miniredis.Miniredis, *Limiter) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return mr, New(cache.NewRedis(rdb), keys.New("t"), cfg)
}

func TestIPThrottleFixedWindow(t *testing.T) {
	mr, l := newRateTest(t, Config{EnableIPThrottle: true, MaxIPAttempts: 3, IPWindow: time.Minute})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := l.CheckLogin(ctx, "10.0.0.1"); err != nil {
			t.Fatalf("attempt %d should pass, got %v", i, err)
		}
		if err := l.IncrementLogin(ctx, "10.0.0.1"); err != nil {
			t.Fatalf("IncrementLogin: %v", err)
		}
	}
	if err := l.CheckLogin(ctx, "10.0.0.1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if err := l.CheckLogin(ctx, "10.0.0.2"); err != nil {
		t.Fatalf("other IP should not be throttled, got %v", err)
	}

	mr.FastForward(time.Minute + time.Second)
	if err := l.CheckLogin(ctx, "10.0.0.1"); err != nil {
		t.Fatalf("window should reset after ttl, got %v", err)
	}
}

func TestIPThrottleDisabled(t *testing.T) {
	mr, l := newRateTest(t, Config{MaxIPAttempts: 1, IPWindow: time.Minute})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := l.IncrementLogin(ctx, "10.0.0.1"); err != nil {
			t.Fatalf("IncrementLogin: %v", err)
		}
	}
	if err := l.CheckLogin(ctx, "10.0.0.1"); err != nil {
		t.Fatalf("disabled throttle should pass, got %v", err)
	}
	if len(mr.Keys()) != 0 {
		t.Fatalf("disabled throttle should not write keys, got %v", mr.Keys())
	}
}
