package sessionguard

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/retailcore/sessionguard/internal/auditstore"
	"github.com/retailcore/sessionguard/internal/blacklist"
	"github.com/retailcore/sessionguard/internal/lockout"
	"github.com/retailcore/sessionguard/internal/ratelimit"
	"github.com/retailcore/sessionguard/jwt"
	"github.com/retailcore/sessionguard/permission"
)

// Engine is the session and request protection core. It owns token
// issuance and validation, the session blacklist, the audit trail, the
// lockout policy, and the rate limiter. Safe for concurrent use; build it
// once via [Builder] and share it.
type Engine struct {
	cfg        Config
	jwt        *jwt.Manager
	blacklist  blacklist.Store
	sweeper    *blacklist.Sweeper
	auditStore auditstore.Store
	dispatcher *auditDispatcher
	lockout    *lockout.Policy
	limiter    *ratelimit.Limiter
	identity   IdentityProvider
	metrics    *Metrics

	now       func() time.Time
	closeOnce sync.Once
}

type engineDeps struct {
	config     Config
	jwt        *jwt.Manager
	blacklist  blacklist.Store
	auditStore auditstore.Store
	dispatcher *auditDispatcher
	lockout    *lockout.Policy
	limiter    *ratelimit.Limiter
	identity   IdentityProvider
	metrics    *Metrics
}

func newEngine(deps engineDeps) *Engine {
	return &Engine{
		cfg:        deps.config,
		jwt:        deps.jwt,
		blacklist:  deps.blacklist,
		auditStore: deps.auditStore,
		dispatcher: deps.dispatcher,
		lockout:    deps.lockout,
		limiter:    deps.limiter,
		identity:   deps.identity,
		metrics:    deps.metrics,
		now:        time.Now,
	}
}

// setClock overrides the engine clock and propagates it to the lockout
// policy. Test hook.
func (e *Engine) setClock(now func() time.Time) {
	e.now = now
	e.lockout.SetClock(now)
}

// RefreshOptions tunes a single Refresh call.
type RefreshOptions struct {
	// SkipEnrichment reissues from the token's own claims without
	// consulting the identity provider.
	SkipEnrichment bool
}

// Login verifies credentials and issues a signed session token with a
// fresh session id. The lockout policy is consulted before the identity
// provider so locked identifiers never reach credential verification.
func (e *Engine) Login(ctx context.Context, identifier, credential string) (*LoginResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	ip := clientIPFromContext(ctx)

	if status, locked := e.lockedOut(ctx, identifier, ip); locked {
		e.audit(ctx, AuditEvent{
			Action:       ActionLoginLocked,
			SubjectEmail: identifier,
			Success:      false,
			Error:        lockout.LockedMessage(status),
		})
		e.metrics.Inc(MetricLoginLocked)
		return nil, fmt.Errorf("%w: %s", ErrAccountLocked, lockout.LockedMessage(status))
	}

	record, err := e.identity.VerifyCredentials(ctx, identifier, credential)
	if err != nil {
		if isInvalidCredentials(err) {
			e.audit(ctx, AuditEvent{
				Action:       ActionLogin,
				SubjectEmail: identifier,
				Success:      false,
				Error:        "invalid credentials",
				Details:      e.failureWarning(ctx, identifier),
			})
			e.metrics.Inc(MetricLoginFailure)
			return nil, ErrInvalidCredentials
		}
		log.Print("sessionguard: identity provider unreachable during login")
		return nil, fmt.Errorf("%w: %v", ErrIdentityUnavailable, err)
	}

	if record.Status == permission.StatusRejected || record.Status == permission.StatusSuspended {
		e.audit(ctx, AuditEvent{
			Action:       ActionLoginDenied,
			SubjectID:    record.ID,
			SubjectEmail: record.Email,
			Success:      false,
			Error:        "account not approved",
			Details:      map[string]string{"status": record.Status.String()},
		})
		return nil, ErrAccountNotApproved
	}

	issuedAt := e.now()
	sessionID := uuid.NewString()
	token, err := e.jwt.Create(record.ID, sessionID, uint8(record.Role), uint8(record.Status), record.EmailVerified, issuedAt)
	if err != nil {
		return nil, err
	}

	e.audit(ctx, AuditEvent{
		Action:       ActionLogin,
		SubjectID:    record.ID,
		SubjectEmail: record.Email,
		Success:      true,
		Details:      map[string]string{"session_id": sessionID},
	})
	e.metrics.Inc(MetricLoginSuccess)

	return &LoginResult{
		Token: token,
		Claims: SessionClaims{
			SubjectID:     record.ID,
			SessionID:     sessionID,
			Role:          record.Role,
			Status:        record.Status,
			EmailVerified: record.EmailVerified,
			IssuedAt:      issuedAt,
		},
	}, nil
}

// Validate decodes and verifies a session token locally, consults the
// blacklist, enforces the absolute session lifetime, and applies the
// account gates. Expired sessions are blacklisted as a side effect and
// returned with claims populated and Expired set, alongside
// [ErrSessionExpired], so callers can surface who timed out.
func (e *Engine) Validate(ctx context.Context, rawToken string) (*SessionClaims, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	claims, err := e.validateCore(ctx, rawToken)
	if err != nil {
		return claims, err
	}

	if err := e.applyGates(claims); err != nil {
		e.metrics.Inc(MetricValidateRejected)
		return nil, err
	}

	e.metrics.Inc(MetricValidateSuccess)
	return claims, nil
}

// validateCore does everything Validate does except the account gates:
// signature, absolute lifetime, blacklist. Refresh shares it so a token
// whose account just got verified can still be enriched.
func (e *Engine) validateCore(ctx context.Context, rawToken string) (*SessionClaims, error) {
	parsed, err := e.jwt.Parse(rawToken)
	if err != nil {
		if jwt.IsExpired(err) {
			return e.expireSession(ctx, rawToken)
		}
		e.metrics.Inc(MetricValidateRejected)
		return nil, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}

	claims := fromJWTClaims(parsed)

	// The token codec enforces exp against wall time; the engine clock is
	// authoritative so lifetime tests can run on an injected clock.
	if e.now().Sub(claims.IssuedAt) > e.jwt.Lifetime() {
		return e.expireSession(ctx, rawToken)
	}

	revoked, err := e.checkBlacklist(ctx, claims.SessionID)
	if err != nil {
		e.metrics.Inc(MetricValidateRejected)
		return nil, err
	}
	if revoked {
		e.metrics.Inc(MetricValidateRejected)
		return nil, ErrSessionExpired
	}

	return claims, nil
}

// expireSession handles a token past its absolute lifetime: blacklist the
// session id so every node agrees it is dead, audit it, and hand back the
// expired claims.
func (e *Engine) expireSession(ctx context.Context, rawToken string) (*SessionClaims, error) {
	parsed, err := e.jwt.ParseExpired(rawToken)
	if err != nil {
		e.metrics.Inc(MetricValidateRejected)
		return nil, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	claims := fromJWTClaims(parsed)
	claims.Expired = true

	e.addToBlacklist(ctx, claims, blacklist.ReasonSessionExpired)

	e.audit(ctx, AuditEvent{
		Action:    ActionSessionExpired,
		SubjectID: claims.SubjectID,
		Success:   true,
		Details:   map[string]string{"session_id": claims.SessionID},
	})
	e.metrics.Inc(MetricSessionExpired)
	e.metrics.Inc(MetricValidateRejected)

	return claims, ErrSessionExpired
}

// Refresh reissues a token with the same session id and the original
// issuance time, so refreshing never extends the absolute lifetime. Claim
// values are re-derived from the identity provider; if that fetch fails
// the prior values are kept and the refresh still succeeds.
func (e *Engine) Refresh(ctx context.Context, rawToken string, opts RefreshOptions) (*RefreshResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	claims, err := e.validateCore(ctx, rawToken)
	if err != nil {
		return nil, err
	}

	enriched := false
	if !opts.SkipEnrichment {
		record, err := e.identity.GetByID(ctx, claims.SubjectID)
		if err != nil {
			log.Print("sessionguard: identity fetch failed during refresh, keeping prior claims")
			e.metrics.Inc(MetricRefreshDegraded)
		} else {
			claims.Role = record.Role
			claims.Status = record.Status
			claims.EmailVerified = record.EmailVerified
			enriched = true
		}
	}

	if err := e.applyGates(claims); err != nil {
		return nil, err
	}

	token, err := e.jwt.Create(claims.SubjectID, claims.SessionID, uint8(claims.Role), uint8(claims.Status), claims.EmailVerified, claims.IssuedAt)
	if err != nil {
		return nil, err
	}

	e.audit(ctx, AuditEvent{
		Action:    ActionSessionRefresh,
		SubjectID: claims.SubjectID,
		Success:   true,
		Details:   map[string]string{"session_id": claims.SessionID},
	})
	e.metrics.Inc(MetricRefreshSuccess)

	return &RefreshResult{
		Token:    token,
		Claims:   *claims,
		Enriched: enriched,
	}, nil
}

// Logout blacklists the session so the token is dead everywhere from this
// point on. Expired tokens are accepted; the signature must still verify.
func (e *Engine) Logout(ctx context.Context, rawToken string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	parsed, err := e.jwt.ParseExpired(rawToken)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	claims := fromJWTClaims(parsed)

	writeCtx, cancel := e.writeContext(ctx)
	defer cancel()

	err = e.blacklist.Add(writeCtx, blacklist.Entry{
		SessionID:     claims.SessionID,
		SubjectID:     claims.SubjectID,
		Reason:        blacklist.ReasonManualLogout,
		BlacklistedAt: e.now(),
		ExpiresAt:     e.now().Add(e.cfg.Blacklist.EntryTTL),
	})
	if err != nil {
		// Logout must actually invalidate. Unlike reads, a failed
		// blacklist write is surfaced to the caller.
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if logoutErr := e.identity.RecordLogout(ctx, claims.SubjectID, e.now()); logoutErr != nil {
		log.Print("sessionguard: recording last-logout time failed")
	}

	e.audit(ctx, AuditEvent{
		Action:    ActionLogout,
		SubjectID: claims.SubjectID,
		Success:   true,
		Details:   map[string]string{"session_id": claims.SessionID},
	})
	e.metrics.Inc(MetricLogout)

	return nil
}

// ForceInvalidate blacklists a session id directly, without the token.
// Admin revocation path.
func (e *Engine) ForceInvalidate(ctx context.Context, sessionID, subjectID string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	writeCtx, cancel := e.writeContext(ctx)
	defer cancel()

	err := e.blacklist.Add(writeCtx, blacklist.Entry{
		SessionID:     sessionID,
		SubjectID:     subjectID,
		Reason:        blacklist.ReasonForcedInvalid,
		BlacklistedAt: e.now(),
		ExpiresAt:     e.now().Add(e.cfg.Blacklist.EntryTTL),
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.audit(ctx, AuditEvent{
		Action:    ActionSessionRevoked,
		SubjectID: subjectID,
		Success:   true,
		Details:   map[string]string{"session_id": sessionID},
	})

	return nil
}

// CheckRateLimit runs one check-and-increment against the given policy.
// It never fails: backend outages degrade to the in-memory fallback
// inside the limiter.
func (e *Engine) CheckRateLimit(ctx context.Context, key string, policy RateLimitPolicy) RateLimitResult {
	if e == nil {
		return RateLimitResult{Allowed: true}
	}

	result := e.limiter.Check(ctx, key, ratelimit.Config{
		Window:      policy.Window,
		MaxRequests: policy.MaxRequests,
	})

	if !result.Allowed {
		e.metrics.Inc(MetricRateLimitBlocked)
		e.audit(ctx, AuditEvent{
			Action:  ActionRateLimited,
			Success: false,
			Details: map[string]string{"key": key},
		})
	}

	return RateLimitResult{
		Allowed:           result.Allowed,
		Limit:             result.Limit,
		Remaining:         result.Remaining,
		ResetAt:           result.ResetAt,
		RetryAfterSeconds: retryAfterSeconds(result.RetryAfter),
	}
}

// LockoutStatus reports the derived lockout state for one identifier.
func (e *Engine) LockoutStatus(ctx context.Context, identifier string, kind IdentifierKind) (LockoutStatus, error) {
	if e == nil {
		return LockoutStatus{}, ErrEngineNotReady
	}

	lk := lockout.ByEmail
	if kind == IdentifierIP {
		lk = lockout.ByIP
	}

	status, err := e.lockout.Status(ctx, identifier, lk)
	if err != nil {
		return LockoutStatus{}, err
	}
	return LockoutStatus{
		Locked:           status.Locked,
		FailedAttempts:   status.FailedAttempts,
		RemainingSeconds: status.RemainingSeconds,
		NextAttemptAt:    status.NextAttemptAt,
	}, nil
}

// RecentAuditEvents returns the newest events, optionally filtered to one
// subject.
func (e *Engine) RecentAuditEvents(ctx context.Context, limit int, subjectID string) ([]AuditEvent, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	rows, err := e.auditStore.RecentEvents(ctx, limit, subjectID)
	if err != nil {
		return nil, err
	}

	events := make([]AuditEvent, 0, len(rows))
	for _, row := range rows {
		events = append(events, AuditEvent{
			Timestamp:    row.Timestamp,
			Action:       row.Action,
			SubjectID:    row.SubjectID,
			SubjectEmail: row.SubjectEmail,
			IP:           row.IP,
			UserAgent:    row.UserAgent,
			Success:      row.Success,
			Error:        row.ErrorMessage,
			Details:      row.Details,
		})
	}
	return events, nil
}

// FailedLoginCount reports failed login attempts matching the ip or email
// since the given time.
func (e *Engine) FailedLoginCount(ctx context.Context, ip, email string, since time.Time) (int, error) {
	if e == nil {
		return 0, ErrEngineNotReady
	}

	window, err := e.auditStore.FailedLogins(ctx, ip, email, since)
	if err != nil {
		return 0, err
	}
	return window.Count, nil
}

// MetricsSnapshot returns a point-in-time copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil {
		return MetricsSnapshot{}
	}
	return e.metrics.Snapshot()
}

// AuditDropped reports audit events dropped under buffer overload.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.dispatcher.Dropped()
}

// Close stops background workers and drains the audit buffer. The engine
// must not be used after Close.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.closeOnce.Do(func() {
		if e.sweeper != nil {
			e.sweeper.Close()
		}
		if e.limiter != nil {
			e.limiter.Close()
		}
		e.dispatcher.Close()
	})
}

// applyGates enforces the account-state checks shared by Validate and
// Refresh. Admin does not bypass these.
func (e *Engine) applyGates(claims *SessionClaims) error {
	if !claims.EmailVerified {
		return ErrEmailVerificationRequired
	}
	if !permission.ApprovedForAccess(claims.Status) {
		return ErrAccountNotApproved
	}
	return nil
}

// checkBlacklist consults the revocation store. Read failures default to
// fail open: a dead store must not take every session down with it. The
// FailClosed knob inverts that for deployments that prefer lockout over
// exposure.
func (e *Engine) checkBlacklist(ctx context.Context, sessionID string) (bool, error) {
	checkCtx, cancel := context.WithTimeout(ctx, e.cfg.Blacklist.CheckTimeout)
	defer cancel()

	revoked, err := e.blacklist.Contains(checkCtx, sessionID)
	if err != nil {
		if e.cfg.Blacklist.FailClosed {
			return false, fmt.Errorf("%w: %v", ErrInvalidSession, err)
		}
		log.Print("sessionguard: blacklist check failed, allowing session")
		e.metrics.Inc(MetricBlacklistDegraded)
		return false, nil
	}
	return revoked, nil
}

// addToBlacklist is the best-effort write used on the expiry path; the
// session is already being rejected, so a failed write only costs
// cross-node agreement until the token ages out everywhere.
func (e *Engine) addToBlacklist(ctx context.Context, claims *SessionClaims, reason string) {
	writeCtx, cancel := e.writeContext(ctx)
	defer cancel()

	err := e.blacklist.Add(writeCtx, blacklist.Entry{
		SessionID:     claims.SessionID,
		SubjectID:     claims.SubjectID,
		Reason:        reason,
		BlacklistedAt: e.now(),
		ExpiresAt:     e.now().Add(e.cfg.Blacklist.EntryTTL),
	})
	if err != nil {
		log.Print("sessionguard: blacklist write failed for expired session")
	}
}

func (e *Engine) writeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, e.cfg.Blacklist.WriteTimeout)
}

// lockedOut checks both lockout axes. The policy source failing is treated
// as not locked; blocking every login on an audit-store outage would turn
// a read failure into a full outage.
func (e *Engine) lockedOut(ctx context.Context, email, ip string) (lockout.Status, bool) {
	if email != "" {
		status, err := e.lockout.Status(ctx, email, lockout.ByEmail)
		if err != nil {
			log.Print("sessionguard: lockout check failed, allowing attempt")
		} else if status.Locked {
			return status, true
		}
	}
	if ip != "" {
		status, err := e.lockout.Status(ctx, ip, lockout.ByIP)
		if err != nil {
			log.Print("sessionguard: lockout check failed, allowing attempt")
		} else if status.Locked {
			return status, true
		}
	}
	return lockout.Status{}, false
}

// failureWarning attaches the approaching-lockout warning to a failed
// login audit event, so the caller can surface it.
func (e *Engine) failureWarning(ctx context.Context, email string) map[string]string {
	status, err := e.lockout.Status(ctx, email, lockout.ByEmail)
	if err != nil {
		return nil
	}
	// The failure being audited has not landed in the store yet.
	msg := lockout.WarningMessage(status.FailedAttempts + 1)
	if msg == "" {
		return nil
	}
	return map[string]string{"warning": msg}
}

// audit stamps and dispatches one event. Client network attributes ride
// in on the context.
func (e *Engine) audit(ctx context.Context, event AuditEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = e.now()
	}
	if event.IP == "" {
		event.IP = clientIPFromContext(ctx)
	}
	if event.UserAgent == "" {
		event.UserAgent = userAgentFromContext(ctx)
	}
	e.dispatcher.Emit(ctx, event)
}

func fromJWTClaims(c *jwt.SessionClaims) *SessionClaims {
	return &SessionClaims{
		SubjectID:     c.UID,
		SessionID:     c.SID,
		Role:          permission.Role(c.Role),
		Status:        permission.AccountStatus(c.Status),
		EmailVerified: c.EmailVerified,
		IssuedAt:      c.IssuedAt.Time,
	}
}

func retryAfterSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}

func isInvalidCredentials(err error) bool {
	return errors.Is(err, ErrInvalidCredentials)
}
