package auditstore

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrStoreUnavailable indicates the backing store is unreachable.
var ErrStoreUnavailable = errors.New("audit store unavailable")

// Event is one append-only audit row. Rows are never mutated or deleted by
// this core; retention is an external job.
type Event struct {
	Action       string
	SubjectID    string
	SubjectEmail string
	IP           string
	UserAgent    string
	Success      bool
	ErrorMessage string
	Details      map[string]string
	Timestamp    time.Time
}

// FailureWindow summarizes failed logins for an identifier over a window.
// LastFailureAt is zero when Count is zero.
type FailureWindow struct {
	Count         int
	LastFailureAt time.Time
}

// Store is the append-only audit trail with the two query shapes the core
// needs: operator-facing recent events and lockout failure counting.
type Store interface {
	// Insert appends one event.
	Insert(ctx context.Context, event Event) error
	// RecentEvents returns up to limit events, newest first, optionally
	// filtered by subject id.
	RecentEvents(ctx context.Context, limit int, subjectID string) ([]Event, error)
	// FailedLogins counts failed login events since the given time whose
	// IP matches ip OR (when email is non-empty) whose subject email
	// matches email. Either axis alone is sufficient abuse signal.
	FailedLogins(ctx context.Context, ip, email string, since time.Time) (FailureWindow, error)
}

// ActionLogin is the action recorded for login attempts, success or
// failure. FailedLogins counts rows with this action and Success false.
const ActionLogin = "login"

// MemoryStore is an in-process Store used by tests and the example binary.
type MemoryStore struct {
	mu     sync.RWMutex
	events []Event
}

// NewMemoryStore creates an empty in-memory audit trail.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Insert(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *MemoryStore) RecentEvents(_ context.Context, limit int, subjectID string) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}

	out := make([]Event, 0, limit)
	for i := len(s.events) - 1; i >= 0 && len(out) < limit; i-- {
		if subjectID != "" && s.events[i].SubjectID != subjectID {
			continue
		}
		out = append(out, s.events[i])
	}
	return out, nil
}

func (s *MemoryStore) FailedLogins(_ context.Context, ip, email string, since time.Time) (FailureWindow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var window FailureWindow
	for _, e := range s.events {
		if e.Action != ActionLogin || e.Success || e.Timestamp.Before(since) {
			continue
		}
		ipMatch := ip != "" && e.IP == ip
		emailMatch := email != "" && e.SubjectEmail == email
		if !ipMatch && !emailMatch {
			continue
		}
		window.Count++
		if e.Timestamp.After(window.LastFailureAt) {
			window.LastFailureAt = e.Timestamp
		}
	}
	return window, nil
}

// Len returns the stored event count. Test hook.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}
