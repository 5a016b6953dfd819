// Package middleware adapts the engine to net/http request handling.
//
// # Chain
//
//   - [RateLimit] — per-class request budget, headers on every response.
//   - [Authenticate] — bearer extraction, session validation, claims into
//     the request context.
//   - [RequirePermission] / [RequireRole] — authorization gates.
//   - [Protect] — the three stages composed in that order.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into engine calls. It makes no
// authentication or authorization decision itself; rejections come back
// from the engine as sentinel errors and are mapped to the status
// contract (401 session, 403 account state and permission, 429 rate
// limit) with a JSON {code, message} body.
package middleware
