// Package limiters provides the per-username brute-force lockout used by the
// login flow.
//
// # Keys
//
//   - {prefix}:auth:attempts:{username}: failure counter, TTL from the first
//     failure, realigned to the lock duration when the lock is written.
//   - {prefix}:auth:lockout:{username}: lock_until in epoch seconds, TTL = lock duration.
//
// Both are keyed by username only and therefore shared across tenants.
// Counting and locking run in one Lua script, so concurrent failures can
// neither skip the lock nor let a lockout check erase a fresh one.
//
// All limiters are nil-safe: calling any method on a nil receiver returns nil.
//
// # What this package must NOT do
//
//   - Import tenantAuth or any sibling internal package.
//   - Make policy decisions beyond counting. Flow functions decide consequences.
package limiters
