// Package tenantAuth is a multi-tenant authentication core: signed session
// tokens with a self-pruning revocation set, per-username brute-force lockout,
// Redis distributed locks and fail-closed tenant context.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// tenantAuth is the public surface. It exposes [Engine], [Builder], [Config]
// and value types ([LoginResult], [Identity], [MetricsSnapshot]). Flow
// orchestration, lockout counting, rate limiting and audit dispatch live
// under internal/ and are never exported. The leaf packages (cache, keys,
// token, lock, tenancy, permission, password) are usable on their own.
//
// # Tenant context
//
// Every request binds exactly one tenant with [RunInTenant] (or the
// middleware package). Login and tenant-scoped locks fail with
// [ErrMissingTenantContext] when none is bound; nothing falls back to a
// default tenant.
//
// # What this package must NOT do
//
//   - Expose Redis clients, internal stores or token encoding details.
//   - Perform I/O outside of Engine methods.
//   - Import any sub-package that re-imports tenantAuth.
package tenantAuth
