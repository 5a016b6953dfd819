// Package ratelimit is the dual-backend request rate limiter.
//
// The durable backend keeps a per-key sorted set of request timestamps in
// Redis and runs prune + count + insert + expire as one Lua script, so
// concurrent checks for the same key cannot both take the last slot. When
// Redis is unreachable, a probe-gated in-memory fixed-window backend takes
// over; over-counting there is accepted, under-counting is not.
//
// Checks never fail the request: dependency failure degrades, it does not
// propagate.
package ratelimit
