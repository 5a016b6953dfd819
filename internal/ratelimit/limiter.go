package ratelimit

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// ErrBackendUnavailable indicates the durable backend is unreachable.
var ErrBackendUnavailable = errors.New("rate limit backend unavailable")

// Config is one named rate-limit policy. The limiter itself is
// configuration-agnostic; sensitivity classes are a caller concern.
type Config struct {
	Window      time.Duration
	MaxRequests int
}

// Result is the outcome of one rate-limit check. Header values are
// attached to allowed responses too, for client-side backoff planning.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

// Backend answers check-and-increment for one key atomically.
type Backend interface {
	Check(ctx context.Context, key string, cfg Config) (Result, error)
}

// KeyFunc derives the rate-limit key for a request. The default is
// clientIP + ":" + route; higher-trust routes may key per-user instead.
type KeyFunc func(clientIP, route, subjectID string) string

// DefaultKey keys by client IP and route.
func DefaultKey(clientIP, route, _ string) string {
	return clientIP + ":" + route
}

// PerSubjectKey keys by authenticated subject and route, falling back to
// the IP key when no subject is known.
func PerSubjectKey(clientIP, route, subjectID string) string {
	if subjectID == "" {
		return DefaultKey(clientIP, route, "")
	}
	return subjectID + ":" + route
}

// Limiter fronts a durable sliding-window backend with a process-local
// fixed-window fallback. Backend failures trip a probe timer; until it
// elapses every check goes straight to the fallback, then one call probes
// the durable backend again.
type Limiter struct {
	primary       Backend
	fallback      *MemoryBackend
	storeTimeout  time.Duration
	probeInterval time.Duration

	downUntil atomic.Int64 // unix nanos; 0 = healthy

	degraded func() // optional metrics hook

	janitorOnce sync.Once
	janitorDone chan struct{}
}

// Option configures a [Limiter].
type Option func(*Limiter)

// WithStoreTimeout bounds each durable-backend call. A call that cannot
// complete in time falls through to the fallback rather than hanging the
// request.
func WithStoreTimeout(d time.Duration) Option {
	return func(l *Limiter) { l.storeTimeout = d }
}

// WithProbeInterval sets how long the durable backend is considered down
// after a failure before the next probe.
func WithProbeInterval(d time.Duration) Option {
	return func(l *Limiter) { l.probeInterval = d }
}

// WithDegradedHook registers a callback invoked each time a check degrades
// to the fallback.
func WithDegradedHook(hook func()) Option {
	return func(l *Limiter) { l.degraded = hook }
}

// NewLimiter creates a [Limiter]. primary may be nil (no durable backend
// configured); all checks then use the in-memory fallback.
func NewLimiter(primary Backend, opts ...Option) *Limiter {
	l := &Limiter{
		primary:       primary,
		fallback:      NewMemoryBackend(),
		storeTimeout:  500 * time.Millisecond,
		probeInterval: 10 * time.Second,
		janitorDone:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}

	go l.janitor()

	return l
}

// Check runs the check-and-increment for key under cfg. It never returns
// an error: dependency failure is a degraded-mode continuation, not a
// caller-facing fault.
func (l *Limiter) Check(ctx context.Context, key string, cfg Config) Result {
	if l.primary != nil && l.healthy() {
		checkCtx := ctx
		cancel := func() {}
		if l.storeTimeout > 0 {
			checkCtx, cancel = context.WithTimeout(ctx, l.storeTimeout)
		}
		res, err := l.primary.Check(checkCtx, key, cfg)
		cancel()
		if err == nil {
			return res
		}

		l.downUntil.Store(time.Now().Add(l.probeInterval).UnixNano())
		log.Print("sessionguard: rate limit backend unavailable, using in-memory fallback")
	}

	if l.degraded != nil && l.primary != nil {
		l.degraded()
	}

	res, _ := l.fallback.Check(ctx, key, cfg)
	return res
}

// Close stops the fallback pruning loop.
func (l *Limiter) Close() {
	l.janitorOnce.Do(func() {
		close(l.janitorDone)
	})
}

func (l *Limiter) healthy() bool {
	until := l.downUntil.Load()
	return until == 0 || time.Now().UnixNano() >= until
}

func (l *Limiter) janitor() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.fallback.Prune()
		case <-l.janitorDone:
			return
		}
	}
}
