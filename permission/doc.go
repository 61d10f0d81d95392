// Package permission provides the 64-bit permission mask, a permission
// registry and the role to permission mapping used by tenantAuth RBAC checks.
//
// # Model
//
// Permissions are registered once at startup and receive stable bit positions.
// Roles carried in a session token (ROLE_ADMIN, ROLE_USER, ...) are resolved
// to masks by [RoleManager]. With the root bit reserved, a role granted
// [RootPermission] passes every check.
//
// # What this package must NOT do
//
//   - Access Redis, databases, or the network.
//   - Import tenantAuth, jwt, or token.
package permission
