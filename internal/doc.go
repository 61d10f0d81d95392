// Package internal holds the parts of tenantAuth that are private to the module.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher and Sink implementations)
//   - flows: login, logout and validate orchestration over injected deps
//   - limiters: the per-username lockout counter
//   - logging: pslog helpers shared by every package
//   - logtest: a recording pslog.Logger for tests
//   - metrics: lock-free counters and the validate latency histogram
//   - rate: the fixed-window per-IP login throttle
//
// # What this package must NOT do
//
//   - Export types that appear in the public tenantAuth API.
//   - Be imported by any package outside the tenantAuth module.
package internal
