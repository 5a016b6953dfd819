// Package blacklist is the persisted set of revoked session identifiers.
//
// Every entry expires 24h after blacklisting (matching the absolute session
// lifetime), so storage growth is bounded and old session ids recycle to
// "unknown" rather than accumulating forever.
//
// Read-path failures are surfaced as [ErrStoreUnavailable]; the engine
// decides fail-open vs. fail-closed. Writes are fire-and-continue from the
// caller's perspective.
package blacklist
