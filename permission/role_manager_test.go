package permission

import (
	"reflect"
	"testing"
)

func newTestRoles(t *testing.T) *RoleManager {
	t.Helper()

	reg := NewRegistry(true)
	for _, p := range []string{"user.read", "user.write", "report.read"} {
		if _, err := reg.Register(p); err != nil {
			t.Fatalf("Register(%s): %v", p, err)
		}
	}
	reg.Freeze()

	rm := NewRoleManager(reg)
	if err := rm.RegisterRole("ROLE_ADMIN", []string{RootPermission}); err != nil {
		t.Fatalf("RegisterRole admin: %v", err)
	}
	if err := rm.RegisterRole("ROLE_USER", []string{"user.read", "report.read"}); err != nil {
		t.Fatalf("RegisterRole user: %v", err)
	}
	rm.Freeze()
	return rm
}

func TestAllowsByRole(t *testing.T) {
	rm := newTestRoles(t)

	if !rm.Allows([]string{"ROLE_USER"}, "user.read") {
		t.Fatal("ROLE_USER should read users")
	}
	if rm.Allows([]string{"ROLE_USER"}, "user.write") {
		t.Fatal("ROLE_USER must not write users")
	}
	if !rm.Allows([]string{"ROLE_ADMIN"}, "user.write") {
		t.Fatal("root role should pass every check")
	}
	if rm.Allows([]string{"ROLE_UNKNOWN"}, "user.read") {
		t.Fatal("unknown role must grant nothing")
	}
	if rm.Allows([]string{"ROLE_ADMIN"}, "not.registered") {
		t.Fatal("unregistered permission must be denied")
	}
}

func TestPermissionsUnion(t *testing.T) {
	rm := newTestRoles(t)

	got := rm.Permissions([]string{"ROLE_USER"})
	if want := []string{"report.read", "user.read"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if got := rm.Permissions([]string{"ROLE_ADMIN"}); len(got) != 3 {
		t.Fatalf("root role should list every permission, got %v", got)
	}
}

func TestRegistryLimitsAndFreeze(t *testing.T) {
	reg := NewRegistry(true)
	for i := 0; i < 63; i++ {
		if _, err := reg.Register(string(rune('A'+i%26)) + string(rune('a'+i/26))); err != nil {
			t.Fatalf("Register %d: %v", i, err)
		}
	}
	if _, err := reg.Register("overflow"); err == nil {
		t.Fatal("expected the root bit to stay reserved")
	}

	reg.Freeze()
	if _, err := reg.Register("late"); err == nil {
		t.Fatal("expected frozen registry to reject registration")
	}
}

func TestRegisterRoleRejectsUnknownPermission(t *testing.T) {
	reg := NewRegistry(false)
	rm := NewRoleManager(reg)
	if err := rm.RegisterRole("ROLE_USER", []string{"missing"}); err == nil {
		t.Fatal("expected unknown permission to be rejected")
	}
	if err := rm.RegisterRole("", nil); err == nil {
		t.Fatal("expected empty role name to be rejected")
	}
}
