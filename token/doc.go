// Package token generates and verifies opaque secrets (password reset
// tokens, email verification tokens) using salted one-way hashing.
//
// Secrets are random base64url strings; storage holds only a per-token
// salted SHA-256 digest. Verification is constant-time.
//
// # What this package must NOT do
//
//   - Hash passwords (credential hashing belongs to the identity provider).
//   - Persist anything.
package token
