// Package ginmw provides Gin adapters for the engine middleware chain.
//
// The adapters mirror the net/http middleware package: rate limit, then
// session validation, then permission gates, with the same status
// contract and JSON error bodies.
package ginmw

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	sessionguard "github.com/retailcore/sessionguard"
	"github.com/retailcore/sessionguard/permission"
)

// Context keys for values stored in gin.Context.
const (
	KeyClaims    = "sessionguard_claims"
	KeySubjectID = "sessionguard_subject_id"
	KeyRole      = "sessionguard_role"
)

// AuthOption configures Auth middleware behavior.
type AuthOption func(*authConfig)

type authConfig struct {
	excludedPaths map[string]bool
}

// WithExcludedPaths sets paths that skip authentication, such as health
// checks.
func WithExcludedPaths(paths ...string) AuthOption {
	return func(cfg *authConfig) {
		for _, p := range paths {
			cfg.excludedPaths[p] = true
		}
	}
}

// Auth validates the bearer session and stores the claims in the context.
// Responds 401 for missing, invalid, or expired sessions and 403 for
// account-state failures.
func Auth(engine *sessionguard.Engine, opts ...AuthOption) gin.HandlerFunc {
	cfg := &authConfig{excludedPaths: make(map[string]bool)}
	for _, o := range opts {
		o(cfg)
	}

	return func(c *gin.Context) {
		if cfg.excludedPaths[c.Request.URL.Path] {
			c.Next()
			return
		}

		if engine == nil {
			abort(c, http.StatusUnauthorized, sessionguard.ErrEngineNotReady)
			return
		}

		token := extractBearerToken(c.Request)
		if token == "" {
			abort(c, http.StatusUnauthorized, sessionguard.ErrInvalidSession)
			return
		}

		claims, err := engine.Validate(requestContext(c), token)
		if err != nil {
			abort(c, statusFor(err), err)
			return
		}

		c.Set(KeyClaims, claims)
		c.Set(KeySubjectID, claims.SubjectID)
		c.Set(KeyRole, claims.Role)

		c.Next()
	}
}

// RateLimit enforces the given policy keyed by client IP and route.
func RateLimit(engine *sessionguard.Engine, policy sessionguard.RateLimitPolicy) gin.HandlerFunc {
	return func(c *gin.Context) {
		if engine == nil {
			c.Next()
			return
		}

		key := c.ClientIP() + ":" + c.Request.URL.Path
		result := engine.CheckRateLimit(requestContext(c), key, policy)

		c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		if !result.ResetAt.IsZero() {
			c.Header("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
		}

		if !result.Allowed {
			c.Header("Retry-After", strconv.Itoa(result.RetryAfterSeconds))
			abort(c, http.StatusTooManyRequests, sessionguard.ErrRateLimited)
			return
		}

		c.Next()
	}
}

// Require checks a single permission. Requires Auth to have run first.
func Require(perm permission.Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := GetClaims(c)
		if !ok {
			abort(c, http.StatusUnauthorized, sessionguard.ErrInvalidSession)
			return
		}
		if !permission.HasPermission(claims.Role, perm) {
			abort(c, http.StatusForbidden, sessionguard.ErrPermissionDenied)
			return
		}
		c.Next()
	}
}

// RequireRole checks role membership. Requires Auth to have run first.
func RequireRole(allowed ...permission.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := GetClaims(c)
		if !ok {
			abort(c, http.StatusUnauthorized, sessionguard.ErrInvalidSession)
			return
		}
		if !permission.HasRole(claims.Role, allowed...) {
			abort(c, http.StatusForbidden, sessionguard.ErrPermissionDenied)
			return
		}
		c.Next()
	}
}

// GetClaims returns the validated claims stored by [Auth].
func GetClaims(c *gin.Context) (*sessionguard.SessionClaims, bool) {
	v, ok := c.Get(KeyClaims)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*sessionguard.SessionClaims)
	return claims, ok
}

// GetSubjectID returns the authenticated subject id, or "".
func GetSubjectID(c *gin.Context) string {
	return c.GetString(KeySubjectID)
}

func requestContext(c *gin.Context) context.Context {
	ctx := sessionguard.WithClientIP(c.Request.Context(), c.ClientIP())
	return sessionguard.WithUserAgent(ctx, c.Request.UserAgent())
}

func abort(c *gin.Context, status int, err error) {
	c.AbortWithStatusJSON(status, gin.H{
		"code":    sessionguard.ReasonCode(err),
		"message": publicMessage(err),
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, sessionguard.ErrInvalidSession),
		errors.Is(err, sessionguard.ErrSessionExpired):
		return http.StatusUnauthorized
	case errors.Is(err, sessionguard.ErrEmailVerificationRequired),
		errors.Is(err, sessionguard.ErrAccountNotApproved),
		errors.Is(err, sessionguard.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, sessionguard.ErrRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func publicMessage(err error) string {
	for _, sentinel := range []error{
		sessionguard.ErrInvalidSession,
		sessionguard.ErrSessionExpired,
		sessionguard.ErrEmailVerificationRequired,
		sessionguard.ErrAccountNotApproved,
		sessionguard.ErrPermissionDenied,
		sessionguard.ErrAccountLocked,
		sessionguard.ErrRateLimited,
		sessionguard.ErrInvalidCredentials,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return "internal error"
}

func extractBearerToken(r *http.Request) string {
	const bearer = "Bearer "
	value := r.Header.Get("Authorization")
	if !strings.HasPrefix(value, bearer) {
		return ""
	}
	return strings.TrimSpace(value[len(bearer):])
}
