package auditstore

import (
	"context"
	"testing"
	"time"
)

func failedLogin(ip, email string, at time.Time) Event {
	return Event{
		Action:       ActionLogin,
		SubjectEmail: email,
		IP:           ip,
		Success:      false,
		ErrorMessage: "invalid credentials",
		Timestamp:    at,
	}
}

func TestFailedLoginsMatchesByIPOrEmail(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Now()

	seed := []Event{
		failedLogin("10.0.0.1", "a@x.com", now.Add(-time.Hour)),
		failedLogin("10.0.0.2", "a@x.com", now.Add(-2*time.Hour)), // email only
		failedLogin("10.0.0.1", "b@x.com", now.Add(-3*time.Hour)), // ip only
		failedLogin("10.0.0.3", "c@x.com", now.Add(-time.Hour)),   // neither
	}
	for _, e := range seed {
		if err := store.Insert(ctx, e); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	window, err := store.FailedLogins(ctx, "10.0.0.1", "a@x.com", now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("FailedLogins failed: %v", err)
	}
	if window.Count != 3 {
		t.Errorf("Count = %d, want 3 (ip OR email match)", window.Count)
	}
	if !window.LastFailureAt.Equal(now.Add(-time.Hour)) {
		t.Errorf("LastFailureAt = %v, want most recent failure", window.LastFailureAt)
	}
}

func TestFailedLoginsIgnoresSuccessesAndOldRows(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Now()

	if err := store.Insert(ctx, failedLogin("10.0.0.1", "a@x.com", now.Add(-25*time.Hour))); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	success := failedLogin("10.0.0.1", "a@x.com", now.Add(-time.Hour))
	success.Success = true
	success.ErrorMessage = ""
	if err := store.Insert(ctx, success); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	other := Event{Action: "logout", IP: "10.0.0.1", Success: false, Timestamp: now}
	if err := store.Insert(ctx, other); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	window, err := store.FailedLogins(ctx, "10.0.0.1", "a@x.com", now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("FailedLogins failed: %v", err)
	}
	if window.Count != 0 {
		t.Errorf("Count = %d, want 0 (successes, old rows, non-login actions excluded)", window.Count)
	}
	if !window.LastFailureAt.IsZero() {
		t.Errorf("LastFailureAt = %v, want zero for empty window", window.LastFailureAt)
	}
}

func TestFailedLoginsEmptyEmailMatchesIPOnly(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Now()

	if err := store.Insert(ctx, failedLogin("10.0.0.2", "someone@x.com", now.Add(-time.Hour))); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	window, err := store.FailedLogins(ctx, "10.0.0.1", "", now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("FailedLogins failed: %v", err)
	}
	if window.Count != 0 {
		t.Errorf("Count = %d, want 0 when neither axis matches", window.Count)
	}
}

func TestRecentEventsNewestFirstWithFilter(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Now()

	for i := 0; i < 5; i++ {
		subject := "user-1"
		if i%2 == 1 {
			subject = "user-2"
		}
		err := store.Insert(ctx, Event{
			Action:    ActionLogin,
			SubjectID: subject,
			Success:   true,
			Timestamp: now.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	events, err := store.RecentEvents(ctx, 10, "")
	if err != nil {
		t.Fatalf("RecentEvents failed: %v", err)
	}
	if len(events) != 5 {
		t.Fatalf("len = %d, want 5", len(events))
	}
	for i := 1; i < len(events); i++ {
		if events[i].Timestamp.After(events[i-1].Timestamp) {
			t.Fatal("events must be ordered newest first")
		}
	}

	filtered, err := store.RecentEvents(ctx, 10, "user-2")
	if err != nil {
		t.Fatalf("RecentEvents failed: %v", err)
	}
	if len(filtered) != 2 {
		t.Errorf("filtered len = %d, want 2", len(filtered))
	}
	for _, e := range filtered {
		if e.SubjectID != "user-2" {
			t.Errorf("filter leaked subject %q", e.SubjectID)
		}
	}

	limited, err := store.RecentEvents(ctx, 2, "")
	if err != nil {
		t.Fatalf("RecentEvents failed: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("limited len = %d, want 2", len(limited))
	}
}
