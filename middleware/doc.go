// Package middleware adapts a tenantAuth.Engine to HTTP handlers.
//
// # Handlers
//
//   - [Tenant] binds the request's tenant from the X-Tenant-ID header, or
//     from the tid claim of the bearer token, and clears it when the handler
//     returns. Requests without a tenant are rejected.
//   - [Guard] validates the bearer token and attaches the [tenantAuth.Identity].
//   - [RequireRole] and [RequirePermission] gate on the attached identity.
//
// [GinTenant], [GinGuard], [GinRequireRole] and [GinRequirePermission] are the
// gin equivalents.
//
// # What this package must NOT do
//
//   - Make authentication decisions itself (delegates to the Engine).
//   - Access Redis or the database.
//   - Echo backend error detail to clients; responses carry
//     [tenantAuth.PublicMessage] only.
package middleware
