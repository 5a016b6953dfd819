// Package sessionguard provides session issuance and request protection for
// retail backend services: JWT session tokens with a hard absolute lifetime,
// a revocation blacklist, sliding-window rate limiting, audit-driven login
// lockout, and role/status gating.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// sessionguard is the public surface. It exposes [Engine], [Builder],
// [Config], and value types (SessionClaims, LoginResult, RateLimitResult,
// AuditEvent, MetricsSnapshot). Store implementations and coordination —
// blacklist backends, the rate limiter, lockout evaluation, audit
// persistence — live under internal/ and are never exported.
//
// # Availability posture
//
// Durable backends are optional at every layer. Blacklist reads fail open by
// default, rate limiting degrades to an in-memory window when Redis is
// unreachable, and refresh keeps prior claim values when the identity
// provider is down. The absolute session lifetime bounds the exposure of
// every degraded path: no token outlives it regardless of store health.
//
// # Performance contract
//
// Validate is the hot path. It performs one signature verification and at
// most one blacklist read per call; audit emission is asynchronous and never
// blocks the request.
package sessionguard
