package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	sessionguard "github.com/retailcore/sessionguard"
)

// Rate-limit presets per sensitivity class. The limiter itself is
// policy-agnostic; routes pick the class that matches what they expose.
var (
	// AuthLimit is the tightest class, for credential endpoints.
	AuthLimit = sessionguard.RateLimitPolicy{Window: time.Minute, MaxRequests: 10}
	// DefaultLimit covers authenticated application routes.
	DefaultLimit = sessionguard.RateLimitPolicy{Window: time.Minute, MaxRequests: 100}
	// PublicLimit is the loosest class, for public data endpoints.
	PublicLimit = sessionguard.RateLimitPolicy{Window: time.Minute, MaxRequests: 300}
)

// RateLimit enforces the given policy keyed by client IP and route. The
// X-RateLimit headers are attached to allowed responses too; blocked
// requests get a 429 with a Retry-After hint.
func RateLimit(engine *sessionguard.Engine, policy sessionguard.RateLimitPolicy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				next.ServeHTTP(w, r)
				return
			}

			key := clientIP(r) + ":" + r.URL.Path
			result := engine.CheckRateLimit(requestContext(r), key, policy)

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
			if !result.ResetAt.IsZero() {
				w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
			}

			if !result.Allowed {
				w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfterSeconds))
				writeError(w, http.StatusTooManyRequests, sessionguard.ErrRateLimited)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientIP resolves the originating client address, preferring the first
// X-Forwarded-For hop over the socket peer.
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		if first, _, found := strings.Cut(forwarded, ","); found || first != "" {
			return strings.TrimSpace(first)
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
