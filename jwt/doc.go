// Package jwt signs and verifies session tokens carrying user, tenant, username,
// roles and a unique jti, with strict algorithm pinning and optional key rotation.
package jwt
