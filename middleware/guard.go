package middleware

import (
	"context"
	"net/http"
	"strings"

	sessionguard "github.com/retailcore/sessionguard"
	"github.com/retailcore/sessionguard/permission"
)

type claimsContextKey struct{}

// ClaimsFromContext returns the validated session claims injected by
// [Authenticate].
func ClaimsFromContext(ctx context.Context) (*sessionguard.SessionClaims, bool) {
	claims, ok := ctx.Value(claimsContextKey{}).(*sessionguard.SessionClaims)
	return claims, ok
}

// Authenticate reads the bearer token, validates the session, and injects
// the claims into the request context. Rejections map to the stable
// status contract: 401 for missing, invalid, or expired sessions, 403 for
// account-state failures.
func Authenticate(engine *sessionguard.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				writeError(w, http.StatusUnauthorized, sessionguard.ErrEngineNotReady)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				writeError(w, http.StatusUnauthorized, sessionguard.ErrInvalidSession)
				return
			}

			ctx := requestContext(r)
			claims, err := engine.Validate(ctx, token)
			if err != nil {
				writeError(w, statusFor(err), err)
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(ctx, claimsContextKey{}, claims)))
		})
	}
}

// RequirePermission gates a route on one permission. Must run after
// [Authenticate].
func RequirePermission(perm permission.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, sessionguard.ErrInvalidSession)
				return
			}
			if !permission.HasPermission(claims.Role, perm) {
				writeError(w, http.StatusForbidden, sessionguard.ErrPermissionDenied)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole gates a route on role membership. Must run after
// [Authenticate].
func RequireRole(allowed ...permission.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, sessionguard.ErrInvalidSession)
				return
			}
			if !permission.HasRole(claims.Role, allowed...) {
				writeError(w, http.StatusForbidden, sessionguard.ErrPermissionDenied)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Protect is the standard chain for a protected route: rate limit, then
// session validation, then the permission gate.
func Protect(engine *sessionguard.Engine, policy sessionguard.RateLimitPolicy, perm permission.Permission) func(http.Handler) http.Handler {
	limit := RateLimit(engine, policy)
	auth := Authenticate(engine)
	gate := RequirePermission(perm)
	return func(next http.Handler) http.Handler {
		return limit(auth(gate(next)))
	}
}

// requestContext attaches the client network attributes so engine audit
// events carry them.
func requestContext(r *http.Request) context.Context {
	ctx := sessionguard.WithClientIP(r.Context(), clientIP(r))
	return sessionguard.WithUserAgent(ctx, r.UserAgent())
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}
