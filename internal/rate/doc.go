// Package rate provides the per-IP login throttle that sits in front of the
// per-username lockout.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit, keyed
// {prefix}:auth:ip:{ip}. Unlike the lockout counter, a successful login does
// not reset the IP counter, so one address cannot cycle through usernames.
//
// # What this package must NOT do
//
//   - Implement username lockout (that lives in internal/limiters).
//   - Be imported outside the tenantAuth module.
package rate
