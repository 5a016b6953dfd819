package sessionguard

import (
	"context"
	"time"

	"github.com/retailcore/sessionguard/permission"
)

// SessionClaims is the decoded, verified payload of a session token. Owned
// by the engine for the duration of one request; reconstructed fresh from
// the wire token every time, never persisted as a mutable object.
type SessionClaims struct {
	SubjectID     string
	SessionID     string
	Role          permission.Role
	Status        permission.AccountStatus
	EmailVerified bool
	IssuedAt      time.Time

	// Expired marks claims returned from the absolute-lifetime path.
	// Callers must treat expired claims as "no session" regardless of any
	// other field.
	Expired bool
}

// IdentityRecord is the authoritative account record returned by the
// [IdentityProvider]. The engine re-derives role, status, and verification
// state from it on login and on explicit refresh.
type IdentityRecord struct {
	ID            string
	Email         string
	Role          permission.Role
	Status        permission.AccountStatus
	EmailVerified bool
	LastLogoutAt  time.Time
}

// IdentityProvider is the external credential-validation collaborator.
// Credential hashing and storage live behind it; this core only consumes
// the resulting record.
type IdentityProvider interface {
	// VerifyCredentials checks raw credentials and returns the canonical
	// record on success, or [ErrInvalidCredentials].
	VerifyCredentials(ctx context.Context, identifier, credential string) (IdentityRecord, error)
	// GetByID fetches the record for claim re-derivation.
	GetByID(ctx context.Context, id string) (IdentityRecord, error)
	// RecordLogout stamps the last-logout time. Best effort.
	RecordLogout(ctx context.Context, id string, at time.Time) error
}

// LoginResult carries the issued token and its claims.
type LoginResult struct {
	Token  string
	Claims SessionClaims
}

// RefreshResult carries the reissued token. Enriched is false when the
// identity fetch failed and prior claim values were kept (fail soft).
type RefreshResult struct {
	Token    string
	Claims   SessionClaims
	Enriched bool
}

// IdentifierKind selects the lockout-matching axis.
type IdentifierKind int

const (
	// IdentifierEmail matches lockout state by account email.
	IdentifierEmail IdentifierKind = iota
	// IdentifierIP matches lockout state by client IP.
	IdentifierIP
)

// LockoutStatus is the derived lockout state for one identifier.
type LockoutStatus struct {
	Locked           bool
	FailedAttempts   int
	RemainingSeconds int
	NextAttemptAt    time.Time
}

// RateLimitPolicy is one named rate budget. Distinct sensitivity classes
// (auth endpoints tightest, public data loosest) are caller presets; see
// the middleware package.
type RateLimitPolicy struct {
	Window      time.Duration
	MaxRequests int
}

// RateLimitResult is the outcome of one rate check, carrying the header
// values attached to both allowed and blocked responses.
type RateLimitResult struct {
	Allowed           bool
	Limit             int
	Remaining         int
	ResetAt           time.Time
	RetryAfterSeconds int
}
