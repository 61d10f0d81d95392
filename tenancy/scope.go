package tenancy

import (
	"context"
	"errors"
	"strings"
	"sync"
)

var (
	// ErrMissingTenantContext indicates a tenant-scoped operation ran without a bound tenant.
	ErrMissingTenantContext = errors.New("missing tenant context")
	// ErrInvalidTenantID indicates an empty or blank tenant identifier.
	ErrInvalidTenantID = errors.New("invalid tenant id")
	// ErrTenantMismatch indicates two sources disagree about the active tenant.
	ErrTenantMismatch = errors.New("tenant mismatch")
)

// Scope holds the tenant bound to one unit of work.
// The zero value is unbound and ready to use.
type Scope struct {
	mu       sync.RWMutex
	tenantID string
	bound    bool
}

// Set binds tenantID. Surrounding whitespace is trimmed; an empty result is rejected.
func (s *Scope) Set(tenantID string) error {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return ErrInvalidTenantID
	}
	s.mu.Lock()
	s.tenantID = tenantID
	s.bound = true
	s.mu.Unlock()
	return nil
}

// Get returns the bound tenant, if any.
func (s *Scope) Get() (string, bool) {
	if s == nil {
		return "", false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tenantID, s.bound
}

// Clear unbinds the scope. Calling it more than once is safe.
func (s *Scope) Clear() {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.tenantID = ""
	s.bound = false
	s.mu.Unlock()
}

type scopeContextKey struct{}

// NewContext returns a child of ctx carrying scope.
func NewContext(ctx context.Context, scope *Scope) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, scopeContextKey{}, scope)
}

// ScopeFromContext returns the scope carried by ctx, or nil.
func ScopeFromContext(ctx context.Context) *Scope {
	if ctx == nil {
		return nil
	}
	scope, _ := ctx.Value(scopeContextKey{}).(*Scope)
	return scope
}

// FromContext returns the tenant bound in ctx, if any.
func FromContext(ctx context.Context) (string, bool) {
	return ScopeFromContext(ctx).Get()
}

// Require returns the tenant bound in ctx or [ErrMissingTenantContext].
func Require(ctx context.Context) (string, error) {
	tenantID, ok := FromContext(ctx)
	if !ok {
		return "", ErrMissingTenantContext
	}
	return tenantID, nil
}

// WithTenant returns a child of ctx with a fresh scope bound to tenantID.
// Prefer [Run] when the caller controls the unit of work, so the binding is
// cleared on exit.
func WithTenant(ctx context.Context, tenantID string) (context.Context, *Scope, error) {
	scope := &Scope{}
	if err := scope.Set(tenantID); err != nil {
		return ctx, nil, err
	}
	return NewContext(ctx, scope), scope, nil
}

// Run binds tenantID for the duration of fn and clears the binding when fn
// returns or panics. Panics propagate after the scope is cleared.
func Run(ctx context.Context, tenantID string, fn func(context.Context) error) error {
	scoped, scope, err := WithTenant(ctx, tenantID)
	if err != nil {
		return err
	}
	defer scope.Clear()
	return fn(scoped)
}
