package blacklist

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrStoreUnavailable indicates the backing store is unreachable. Callers
// on the read path treat it as "not blacklisted" unless configured
// fail-closed.
var ErrStoreUnavailable = errors.New("blacklist store unavailable")

// Revocation reasons recorded with each entry.
const (
	ReasonManualLogout   = "manual_logout"
	ReasonSessionExpired = "session_expired"
	ReasonForcedInvalid  = "forced_invalidation"
)

// Entry is one revoked session id. Write-once; read until ExpiresAt, then
// recycled as unknown by the sweep.
type Entry struct {
	SessionID     string
	SubjectID     string
	Reason        string
	BlacklistedAt time.Time
	ExpiresAt     time.Time
}

// Store is the persisted set of revoked session identifiers.
type Store interface {
	// Add records a revocation. Adding an already-present session id is
	// not an error.
	Add(ctx context.Context, entry Entry) error
	// Contains reports whether sessionID is revoked and unexpired.
	Contains(ctx context.Context, sessionID string) (bool, error)
	// CleanupExpired deletes entries whose expiry has passed and returns
	// how many were removed. Idempotent and safe to run concurrently.
	CleanupExpired(ctx context.Context) (int64, error)
}

// MemoryStore is an in-process Store used by tests and the example binary.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
	now     func() time.Time
}

// NewMemoryStore creates an empty in-memory blacklist.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]Entry),
		now:     time.Now,
	}
}

// SetClock overrides the store clock. Test hook.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *MemoryStore) Add(_ context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[entry.SessionID]; exists {
		return nil
	}
	s.entries[entry.SessionID] = entry
	return nil
}

func (s *MemoryStore) Contains(_ context.Context, sessionID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[sessionID]
	if !ok {
		return false, nil
	}
	return s.now().Before(entry.ExpiresAt), nil
}

func (s *MemoryStore) CleanupExpired(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var removed int64
	for sid, entry := range s.entries {
		if !now.Before(entry.ExpiresAt) {
			delete(s.entries, sid)
			removed++
		}
	}
	return removed, nil
}

// Len returns the current entry count. Test hook.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
