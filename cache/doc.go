// Package cache is the key-value store contract shared by the lock, token and
// lockout layers, plus its Redis implementation.
//
// # Contract
//
// Every operation is a single round-trip. Absence is reported as a value
// (found=false, deleted=false), never as an error. Backend failures are wrapped
// in [ErrUnavailable] so callers can classify them with errors.Is without
// depending on the driver.
//
// CompareAndDelete is the only release primitive for ownership-guarded keys. It
// runs as one server-side script so no other client can interleave between the
// comparison and the delete.
//
// # What this package must NOT do
//
//   - Know about tenants, tokens or lock semantics.
//   - Retry failed commands. Retry policy belongs to the caller.
package cache
