// Package password verifies and produces bcrypt password hashes.
//
// Verification is treated as an opaque capability: callers get a boolean and
// never learn why a comparison failed.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords. Callers supply plaintext and receive hashes.
//   - Import any other tenantAuth package.
//   - Log plaintext passwords or hashes.
package password
