package tenantAuth

import (
	"context"
	"testing"

	"github.com/MrEthical07/tenantAuth/password"
)

func TestMemoryUserStoreIsTenantScoped(t *testing.T) {
	s := NewMemoryUserStore(password.NewBcrypt(4))
	if err := s.Add(UserRecord{UserID: "u-1", Username: "alice", TenantID: "1", Enabled: true}, "pw-one"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := s.Add(UserRecord{UserID: "u-2", Username: "alice", TenantID: "2", Enabled: true}, "pw-two"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := s.Add(UserRecord{Username: "bob"}, "pw"); err == nil {
		t.Fatal("user without tenant must be rejected")
	}

	inTenant(t, "2", func(ctx context.Context) {
		rec, found, err := s.FindByUsername(ctx, "alice")
		if err != nil || !found || rec.UserID != "u-2" {
			t.Fatalf("FindByUsername = %+v %v %v", rec, found, err)
		}
		if ok, _ := s.VerifyPassword(ctx, "alice", "pw-one"); ok {
			t.Fatal("tenant 1 password must not verify in tenant 2")
		}
		if ok, _ := s.VerifyPassword(ctx, "alice", "pw-two"); !ok {
			t.Fatal("expected password to verify")
		}
	})

	if _, found, _ := s.FindByUsername(context.Background(), "alice"); found {
		t.Fatal("lookup without tenant must find nothing")
	}
}
