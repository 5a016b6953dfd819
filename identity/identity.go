package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	sessionguard "github.com/retailcore/sessionguard"
	"github.com/retailcore/sessionguard/password"
	"github.com/retailcore/sessionguard/permission"
	"github.com/retailcore/sessionguard/token"
)

var (
	// ErrDuplicateEmail is returned when registering an email that already
	// has an account.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrAccountNotFound is returned for lookups of unknown accounts.
	ErrAccountNotFound = errors.New("account not found")
	// ErrInvalidTransition is returned for disallowed status changes.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrInvalidVerificationToken is returned when an email verification
	// secret does not match the one on file.
	ErrInvalidVerificationToken = errors.New("invalid verification token")
)

type account struct {
	record             sessionguard.IdentityRecord
	passwordHash       string
	verificationDigest token.Digest
	verificationSet    bool
}

// MemoryProvider is an in-process IdentityProvider with argon2id
// credential hashes. It backs the example binary and tests; production
// deployments put their own user store behind the same interface.
type MemoryProvider struct {
	mu      sync.RWMutex
	hasher  *password.Argon2
	byID    map[string]*account
	byEmail map[string]*account
}

// NewMemoryProvider creates an empty provider with default argon2id cost
// parameters.
func NewMemoryProvider() (*MemoryProvider, error) {
	hasher, err := password.NewArgon2(password.DefaultConfig())
	if err != nil {
		return nil, err
	}
	return &MemoryProvider{
		hasher:  hasher,
		byID:    make(map[string]*account),
		byEmail: make(map[string]*account),
	}, nil
}

// Register creates a pending account and returns it. New accounts start
// unverified and cannot obtain a session until verified and approved. The
// verification secret for the email round trip comes from
// [MemoryProvider.IssueVerificationToken].
func (p *MemoryProvider) Register(email, pass string, role permission.Role) (sessionguard.IdentityRecord, error) {
	email = normalizeEmail(email)
	if email == "" {
		return sessionguard.IdentityRecord{}, errors.New("email is required")
	}

	hash, err := p.hasher.Hash(pass)
	if err != nil {
		return sessionguard.IdentityRecord{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.byEmail[email]; exists {
		return sessionguard.IdentityRecord{}, ErrDuplicateEmail
	}

	acct := &account{
		record: sessionguard.IdentityRecord{
			ID:     uuid.NewString(),
			Email:  email,
			Role:   role,
			Status: permission.StatusPending,
		},
		passwordHash: hash,
	}
	p.byID[acct.record.ID] = acct
	p.byEmail[email] = acct

	return acct.record, nil
}

// IssueVerificationToken generates a fresh email verification secret for
// the account and stores only its salted digest. Reissuing replaces any
// prior secret.
func (p *MemoryProvider) IssueVerificationToken(id string) (string, error) {
	secret, err := token.Generate(token.DefaultSecretSize)
	if err != nil {
		return "", err
	}
	digest, err := token.Hash(secret)
	if err != nil {
		return "", err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	acct, ok := p.byID[id]
	if !ok {
		return "", ErrAccountNotFound
	}
	acct.verificationDigest = digest
	acct.verificationSet = true
	return secret, nil
}

// ConfirmEmail verifies the account's email with the secret issued by
// [MemoryProvider.IssueVerificationToken]. The secret is single-use.
func (p *MemoryProvider) ConfirmEmail(id, secret string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	acct, ok := p.byID[id]
	if !ok {
		return ErrAccountNotFound
	}
	if !acct.verificationSet || !token.Verify(secret, acct.verificationDigest) {
		return ErrInvalidVerificationToken
	}
	acct.verificationSet = false
	return p.markVerified(acct)
}

// VerifyEmail marks the account's email as verified and moves a pending
// account to verified status. Admin path; the self-service flow goes
// through [MemoryProvider.ConfirmEmail].
func (p *MemoryProvider) VerifyEmail(id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	acct, ok := p.byID[id]
	if !ok {
		return ErrAccountNotFound
	}
	return p.markVerified(acct)
}

func (p *MemoryProvider) markVerified(acct *account) error {
	if acct.record.Status == permission.StatusPending {
		if err := transition(acct, permission.StatusVerified); err != nil {
			return err
		}
	}
	acct.record.EmailVerified = true
	return nil
}

// Approve moves the account into approved status, from verified or from a
// rejected or suspended state an admin is reinstating.
func (p *MemoryProvider) Approve(id string) error {
	return p.setStatus(id, permission.StatusApproved)
}

// Reject declines a verified account.
func (p *MemoryProvider) Reject(id string) error {
	return p.setStatus(id, permission.StatusRejected)
}

// Suspend disables an approved account.
func (p *MemoryProvider) Suspend(id string) error {
	return p.setStatus(id, permission.StatusSuspended)
}

func (p *MemoryProvider) setStatus(id string, to permission.AccountStatus) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	acct, ok := p.byID[id]
	if !ok {
		return ErrAccountNotFound
	}
	return transition(acct, to)
}

func transition(acct *account, to permission.AccountStatus) error {
	from := acct.record.Status
	if !permission.CanTransition(from, to) {
		return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, from, to)
	}
	acct.record.Status = to
	return nil
}

// VerifyCredentials implements sessionguard.IdentityProvider.
func (p *MemoryProvider) VerifyCredentials(_ context.Context, identifier, credential string) (sessionguard.IdentityRecord, error) {
	p.mu.RLock()
	acct, ok := p.byEmail[normalizeEmail(identifier)]
	p.mu.RUnlock()
	if !ok {
		return sessionguard.IdentityRecord{}, sessionguard.ErrInvalidCredentials
	}

	match, err := p.hasher.Verify(credential, acct.passwordHash)
	if err != nil || !match {
		return sessionguard.IdentityRecord{}, sessionguard.ErrInvalidCredentials
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	return acct.record, nil
}

// GetByID implements sessionguard.IdentityProvider.
func (p *MemoryProvider) GetByID(_ context.Context, id string) (sessionguard.IdentityRecord, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	acct, ok := p.byID[id]
	if !ok {
		return sessionguard.IdentityRecord{}, ErrAccountNotFound
	}
	return acct.record, nil
}

// RecordLogout implements sessionguard.IdentityProvider.
func (p *MemoryProvider) RecordLogout(_ context.Context, id string, at time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	acct, ok := p.byID[id]
	if !ok {
		return ErrAccountNotFound
	}
	acct.record.LastLogoutAt = at
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
