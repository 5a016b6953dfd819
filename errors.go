package sessionguard

import (
	"errors"

	"github.com/retailcore/sessionguard/internal/blacklist"
)

// ErrStoreUnavailable indicates a durable store could not be reached on a
// path that requires the write to land.
var ErrStoreUnavailable = blacklist.ErrStoreUnavailable

var (
	// ErrInvalidSession is returned for malformed or unverifiable tokens.
	// Terminal; re-authentication required.
	ErrInvalidSession = errors.New("invalid session")
	// ErrSessionExpired is returned for blacklisted tokens and tokens past
	// the absolute session lifetime. Terminal; re-authentication required.
	ErrSessionExpired = errors.New("session expired")
	// ErrEmailVerificationRequired is returned for valid sessions whose
	// account has not verified its email. Recoverable by verifying.
	ErrEmailVerificationRequired = errors.New("email verification required")
	// ErrAccountNotApproved is returned for valid sessions whose account
	// status is outside the approved set. Recoverable by admin action.
	ErrAccountNotApproved = errors.New("account not approved")
	// ErrPermissionDenied is returned when an approved session lacks the
	// required role permission. Terminal for this action.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrAccountLocked is returned when the lockout policy blocks a login
	// attempt. Recoverable after the lockout delay.
	ErrAccountLocked = errors.New("account locked")
	// ErrRateLimited is returned when a request exceeds its rate budget.
	// Recoverable after the retry hint.
	ErrRateLimited = errors.New("rate limited")
	// ErrInvalidCredentials is returned for failed credential checks.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrIdentityUnavailable is returned when the identity provider cannot
	// be reached on a path that requires it.
	ErrIdentityUnavailable = errors.New("identity provider unavailable")
	// ErrEngineNotReady is returned when the engine was not built.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// ReasonCode maps a rejection to its stable machine-readable code. Unknown
// errors map to "internal_error"; internal detail never reaches responses.
func ReasonCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidSession):
		return "invalid_session"
	case errors.Is(err, ErrSessionExpired):
		return "session_expired"
	case errors.Is(err, ErrEmailVerificationRequired):
		return "email_verification_required"
	case errors.Is(err, ErrAccountNotApproved):
		return "account_not_approved"
	case errors.Is(err, ErrPermissionDenied):
		return "forbidden"
	case errors.Is(err, ErrAccountLocked):
		return "account_locked"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	default:
		return "internal_error"
	}
}
