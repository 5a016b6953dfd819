// Package lockout is the progressive account-lockout policy: a pure
// function over a queried window of audit rows, never a cached counter.
//
// Graduated thresholds over a trailing 24h failure window, strictest
// applicable tier first: ≥15 → 24h, ≥10 → 4h, ≥7 → 1h, ≥5 → 15m, ≥3 → 5m.
// Expiry is lastFailureAt + tier delay; successful logins are not counted,
// so old failures aging past the window implicitly clear the lockout.
package lockout
