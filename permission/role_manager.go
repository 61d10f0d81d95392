package permission

import (
	"errors"
	"sort"
	"sync"
)

// RootPermission is the pseudo-permission that sets the reserved root bit.
const RootPermission = "*"

// RoleManager maps role names (for example ROLE_ADMIN) to permission masks.
//
// RoleManager instances are configured during initialization and then frozen.
type RoleManager struct {
	registry *Registry

	mu     sync.RWMutex
	roles  map[string]Mask64
	frozen bool
}

// NewRoleManager returns an empty RoleManager over registry.
func NewRoleManager(registry *Registry) *RoleManager {
	return &RoleManager{
		registry: registry,
		roles:    make(map[string]Mask64),
	}
}

// RegisterRole binds roleName to permissionNames. Every permission must
// already be registered. [RootPermission] grants all permissions when the
// registry reserves the root bit.
func (rm *RoleManager) RegisterRole(roleName string, permissionNames []string) error {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.frozen {
		return errors.New("role manager frozen")
	}

	if roleName == "" {
		return errors.New("role name empty")
	}

	if _, exists := rm.roles[roleName]; exists {
		return errors.New("role already registered")
	}

	var mask Mask64
	for _, perm := range permissionNames {
		if perm == RootPermission && rm.registry.RootReserved() {
			mask.Set(rootBit64)
			continue
		}
		bit, ok := rm.registry.Bit(perm)
		if !ok {
			return errors.New("permission not registered: " + perm)
		}
		mask.Set(bit)
	}

	rm.roles[roleName] = mask
	return nil
}

// GetMask returns the mask registered for roleName.
func (rm *RoleManager) GetMask(roleName string) (Mask64, bool) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	mask, ok := rm.roles[roleName]
	return mask, ok
}

// Allows reports whether any of roles grants perm. Unknown roles and
// unregistered permissions grant nothing.
func (rm *RoleManager) Allows(roles []string, perm string) bool {
	if rm == nil {
		return false
	}
	bit, ok := rm.registry.Bit(perm)
	if !ok {
		return false
	}

	rm.mu.RLock()
	defer rm.mu.RUnlock()

	for _, role := range roles {
		mask, ok := rm.roles[role]
		if !ok {
			continue
		}
		if mask.Has(bit, rm.registry.RootReserved()) {
			return true
		}
	}
	return false
}

// Permissions lists the permission names granted by roles, sorted.
func (rm *RoleManager) Permissions(roles []string) []string {
	if rm == nil {
		return nil
	}

	rm.mu.RLock()
	var union Mask64
	for _, role := range roles {
		union |= rm.roles[role]
	}
	rm.mu.RUnlock()

	out := make([]string, 0)
	for bit := 0; bit < MaxBits; bit++ {
		if !union.Has(bit, rm.registry.RootReserved()) {
			continue
		}
		if name, ok := rm.registry.Name(bit); ok {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Freeze prevents further role registration.
func (rm *RoleManager) Freeze() {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.frozen = true
}

// Count returns the number of registered roles.
func (rm *RoleManager) Count() int {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return len(rm.roles)
}
