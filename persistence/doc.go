// Package persistence is the GORM layer behind tenantAuth: the tenant
// predicate callbacks, actor stamping, the users table and a
// [tenantAuth.UserStore] backed by it.
//
// # Tenant scoping
//
// [RegisterTenantScope] installs callbacks that consult a [tenancy.Enforcer]
// on every query, row scan, update, delete, create and raw statement. A
// statement against a non-exempt table, or one whose table cannot be
// resolved, fails with [tenancy.ErrMissingTenantContext] before any SQL is
// sent when no tenant is bound. Raw SQL is not rewritten: with a tenant bound
// it runs as written, so add the predicate by hand.
//
// [SystemContext] marks a context for schema maintenance. It skips
// enforcement and must never reach request handling.
package persistence
