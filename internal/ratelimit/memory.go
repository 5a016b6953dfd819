package ratelimit

import (
	"context"
	"sync"
	"time"
)

type fixedWindow struct {
	start   time.Time
	expires time.Time
	count   int
}

// MemoryBackend is the degraded-mode backend: process-local fixed-window
// counters. Fixed rather than sliding is an accepted precision loss during
// outages; it may deny slightly early at a window edge but never allows
// more than MaxRequests inside one window.
type MemoryBackend struct {
	mu      sync.Mutex
	windows map[string]*fixedWindow
	now     func() time.Time
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		windows: make(map[string]*fixedWindow),
		now:     time.Now,
	}
}

// SetClock overrides the backend clock. Test hook.
func (b *MemoryBackend) SetClock(now func() time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.now = now
}

func (b *MemoryBackend) Check(_ context.Context, key string, cfg Config) (Result, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()

	w, ok := b.windows[key]
	if !ok || !now.Before(w.expires) {
		w = &fixedWindow{start: now, expires: now.Add(cfg.Window)}
		b.windows[key] = w
	}

	res := Result{
		Limit:   cfg.MaxRequests,
		ResetAt: w.expires,
	}

	if w.count < cfg.MaxRequests {
		w.count++
		res.Allowed = true
	} else {
		retry := res.ResetAt.Sub(now)
		if retry < time.Second {
			retry = time.Second
		}
		res.RetryAfter = retry.Round(time.Second)
	}

	res.Remaining = cfg.MaxRequests - w.count
	if res.Remaining < 0 {
		res.Remaining = 0
	}
	return res, nil
}

// Prune drops windows whose period has fully elapsed. A live window is
// never deleted, whatever its length; dropping one mid-period would hand
// the key a fresh budget.
func (b *MemoryBackend) Prune() {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	for key, w := range b.windows {
		if !now.Before(w.expires) {
			delete(b.windows, key)
		}
	}
}

// Len returns the tracked key count. Test hook.
func (b *MemoryBackend) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.windows)
}
