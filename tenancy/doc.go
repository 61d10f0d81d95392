// Package tenancy carries the active tenant through a unit of work and enforces
// its presence before tenant-scoped data access.
//
// # Model
//
// A [Scope] is a request-scoped container moving UNBOUND -> BOUND(id) -> UNBOUND.
// It travels inside context.Context, so nothing is ever stored in goroutine-local
// or global state. Binders ([Run], [Pool], the HTTP middleware) create a fresh
// scope per unit of work and clear it on every exit path, including panics.
// Code that leaked a context past its unit of work observes an unbound scope
// afterwards, never another tenant's binding.
//
// # Enforcement
//
// [Enforcer] is consulted by the persistence layer before each read or write.
// A missing binding fails with [ErrMissingTenantContext]; there is no default
// tenant. A short allow-list of system tables is exempt.
package tenancy
