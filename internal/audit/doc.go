// Package audit implements async event dispatching for security-relevant operations.
//
// # Components
//
//   - [Sink]: interface for event consumers (channel, JSON writer, pslog, no-op).
//   - [TenantSink]: routes events to a per-tenant sink with a fallback.
//   - [Dispatcher]: buffered async relay with drop-if-full or block-if-full
//     semantics. Drops are counted and logged as audit.dropped.
//   - [Event]: structured audit record with timestamp, type, user, tenant, token and metadata.
//
// # Architecture boundaries
//
// This package owns event buffering and sink delivery. It does NOT decide which
// events to emit. The Engine and flow functions do.
//
// # What this package must NOT do
//
//   - Filter or suppress events based on business logic.
//   - Import tenantAuth or any sibling internal package other than logging.
//   - Perform network I/O beyond what a caller-supplied Sink does.
package audit
