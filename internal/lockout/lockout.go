package lockout

import (
	"context"
	"fmt"
	"time"

	"github.com/retailcore/sessionguard/internal/auditstore"
)

// IdentifierKind selects which axis of the audit trail a status query
// matches on.
type IdentifierKind int

const (
	// ByEmail matches failed logins by subject email.
	ByEmail IdentifierKind = iota
	// ByIP matches failed logins by client IP.
	ByIP
)

// tier is one graduated threshold: at or above Failures, lock for Delay.
type tier struct {
	Failures int
	Delay    time.Duration
}

// tiers are evaluated highest first so the strictest applicable rule wins.
var tiers = []tier{
	{15, 24 * time.Hour},
	{10, 4 * time.Hour},
	{7, time.Hour},
	{5, 15 * time.Minute},
	{3, 5 * time.Minute},
}

// Window is the trailing period failures are counted over. Failures older
// than this age out naturally; no explicit unlock exists or is needed.
const Window = 24 * time.Hour

// Status is the derived lockout state for one identifier. Never persisted;
// recomputed from committed audit rows on every evaluation.
type Status struct {
	Locked           bool
	FailedAttempts   int
	RemainingSeconds int
	NextAttemptAt    time.Time
}

// Policy derives lockout state from the audit trail.
type Policy struct {
	source auditstore.Store
	now    func() time.Time
}

// New creates a lockout [Policy] reading from the given audit store.
func New(source auditstore.Store) *Policy {
	return &Policy{
		source: source,
		now:    time.Now,
	}
}

// SetClock overrides the policy clock. Test hook.
func (p *Policy) SetClock(now func() time.Time) {
	p.now = now
}

// Status evaluates the identifier against the graduated thresholds.
// Lockout expiry is lastFailureAt + tier delay, so lockouts self-expire
// without any stored "locked until" field.
func (p *Policy) Status(ctx context.Context, identifier string, kind IdentifierKind) (Status, error) {
	var ip, email string
	switch kind {
	case ByIP:
		ip = identifier
	default:
		email = identifier
	}

	now := p.now()
	window, err := p.source.FailedLogins(ctx, ip, email, now.Add(-Window))
	if err != nil {
		return Status{}, err
	}

	status := Status{FailedAttempts: window.Count}
	for _, t := range tiers {
		if window.Count < t.Failures {
			continue
		}
		until := window.LastFailureAt.Add(t.Delay)
		if now.Before(until) {
			status.Locked = true
			status.NextAttemptAt = until
			status.RemainingSeconds = int(until.Sub(now).Round(time.Second).Seconds())
		}
		// Strictest applicable tier decides, locked or already expired.
		break
	}

	return status, nil
}

// WarningMessage returns a caller-facing warning for attempts approaching
// the next threshold, or "" when no warning applies.
func WarningMessage(failedAttempts int) string {
	next := nextTier(failedAttempts)
	if next == nil {
		return ""
	}
	remaining := next.Failures - failedAttempts
	if remaining > 2 || failedAttempts == 0 {
		return ""
	}
	return fmt.Sprintf("%d failed attempts; %d more will lock the account for %s",
		failedAttempts, remaining, formatDelay(next.Delay))
}

// LockedMessage returns the caller-facing message for an active lockout.
func LockedMessage(status Status) string {
	if !status.Locked {
		return ""
	}
	return fmt.Sprintf("account temporarily locked after %d failed attempts; try again in %s",
		status.FailedAttempts, formatDelay(time.Duration(status.RemainingSeconds)*time.Second))
}

func nextTier(failedAttempts int) *tier {
	for i := len(tiers) - 1; i >= 0; i-- {
		if failedAttempts < tiers[i].Failures {
			return &tiers[i]
		}
	}
	return nil
}

func formatDelay(d time.Duration) string {
	switch {
	case d >= time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	case d >= time.Minute:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	default:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
}
