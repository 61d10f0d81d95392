package keys

import (
	"context"
	"errors"
	"testing"

	"github.com/MrEthical07/tenantAuth/tenancy"
)

func TestLockKeyFormat(t *testing.T) {
	g := New("app")

	got := g.LockKey("1", "orders", "approve", "42")
	if want := "app:lock:1:orders:approve:42"; got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestCacheKeyFormat(t *testing.T) {
	g := New("app")

	got := g.CacheKey("users", "1", "profile", "7")
	if want := "app:users:1:profile:7"; got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestKeysAreNotNormalized(t *testing.T) {
	g := New("App")

	got := g.CacheKey("Mod", " t ", "Type", "a:b")
	if want := "App:Mod: t :Type:a:b"; got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestDefaultPrefix(t *testing.T) {
	g := New("")

	if g.Prefix() != DefaultPrefix {
		t.Fatalf("expected default prefix, got %q", g.Prefix())
	}
	if got, want := g.AttemptsKey("admin"), "rbac:auth:attempts:admin"; got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
	if got, want := g.LockoutKey("admin"), "rbac:auth:lockout:admin"; got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
	if got, want := g.RevokedKey("jti-1"), "rbac:auth:revoked:jti-1"; got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestTenantKeysUseBoundTenant(t *testing.T) {
	g := New("app")

	ctx, _, err := tenancy.WithTenant(context.Background(), "9")
	if err != nil {
		t.Fatalf("WithTenant failed: %v", err)
	}
	lockKey, err := g.TenantLockKey(ctx, "billing", "close", "inv-1")
	if err != nil || lockKey != "app:lock:9:billing:close:inv-1" {
		t.Fatalf("unexpected lock key %q err=%v", lockKey, err)
	}
	cacheKey, err := g.TenantCacheKey(ctx, "billing", "invoice", "inv-1")
	if err != nil || cacheKey != "app:billing:9:invoice:inv-1" {
		t.Fatalf("unexpected cache key %q err=%v", cacheKey, err)
	}
}

func TestTenantKeysFailClosed(t *testing.T) {
	g := New("app")

	if _, err := g.TenantLockKey(context.Background(), "m", "o", "r"); !errors.Is(err, tenancy.ErrMissingTenantContext) {
		t.Fatalf("expected ErrMissingTenantContext, got %v", err)
	}
	if _, err := g.TenantCacheKey(context.Background(), "m", "t", "i"); !errors.Is(err, tenancy.ErrMissingTenantContext) {
		t.Fatalf("expected ErrMissingTenantContext, got %v", err)
	}
}
