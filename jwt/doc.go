// Package jwt is the session token codec: signing and local verification
// of the claims payload (subject, session id, role, account status, email
// verification flag, issuance time).
//
// The exp claim is always iat + the configured absolute lifetime. Refresh
// reissues a token with the original iat, so expiry never slides.
//
// # What this package must NOT do
//
//   - Consult the blacklist or any store (that is the engine's job).
//   - Interpret role or status values beyond carrying them.
package jwt
