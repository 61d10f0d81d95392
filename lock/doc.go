// Package lock implements named, ownership-checked mutual exclusion over a
// [cache.Store].
//
// # Semantics
//
// Acquire is a single set-if-absent of a random ownership token with a TTL.
// Contention returns immediately; only [Locker.Lock] waits, and it does so by
// retrying TryLock with backoff until a caller-supplied deadline.
//
// Release is a server-side compare-and-delete against the token this Locker
// remembered. A lock that expired and was re-acquired by someone else is never
// deleted by the previous holder.
//
// Entries always carry a TTL, so a crashed holder cannot deadlock the name.
// There is no lease renewal: a protected action that outlives its timeout loses
// mutual exclusion without notice. Size timeouts to the longest expected action.
//
// # Ownership
//
// A Locker is one logical owner. Give each caller its own Locker (or use
// [Locker.ExecuteWithLock], which keeps the token on the stack) when callers
// must not be able to release each other's locks.
package lock
