package sessionguard

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/retailcore/sessionguard/permission"
)

type countingSink struct {
	count atomic.Int64
}

func (s *countingSink) Emit(context.Context, AuditEvent) {
	s.count.Add(1)
}

func (s *countingSink) Count() int64 {
	return s.count.Load()
}

type captureSink struct {
	events chan AuditEvent
}

func newCaptureSink(buffer int) *captureSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &captureSink{
		events: make(chan AuditEvent, buffer),
	}
}

func (s *captureSink) Emit(ctx context.Context, event AuditEvent) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

// waitEvent blocks until the sink delivers an event with the given
// action. The dispatcher emits to the durable store before the extra
// sink, so once an event arrives here its audit row is committed.
func waitEvent(t *testing.T, sink *captureSink, action string) AuditEvent {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case event := <-sink.events:
			if event.Action == action {
				return event
			}
		case <-deadline:
			t.Fatalf("timed out waiting for audit event %q", action)
		}
	}
}

type gateSink struct {
	gate chan struct{}
}

func newGateSink() *gateSink {
	return &gateSink{
		gate: make(chan struct{}),
	}
}

func (s *gateSink) Emit(context.Context, AuditEvent) {
	<-s.gate
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Now().Truncate(time.Second)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type stubProvider struct {
	mu         sync.Mutex
	byEmail    map[string]IdentityRecord
	byID       map[string]IdentityRecord
	password   string
	getErr     error
	lastLogout map[string]time.Time
}

func newStubProvider() *stubProvider {
	return &stubProvider{
		byEmail:    make(map[string]IdentityRecord),
		byID:       make(map[string]IdentityRecord),
		password:   "correct-horse-battery",
		lastLogout: make(map[string]time.Time),
	}
}

func (p *stubProvider) put(record IdentityRecord) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.byEmail[record.Email] = record
	p.byID[record.ID] = record
}

func (p *stubProvider) setGetErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.getErr = err
}

func (p *stubProvider) VerifyCredentials(_ context.Context, identifier, credential string) (IdentityRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	record, ok := p.byEmail[identifier]
	if !ok || credential != p.password {
		return IdentityRecord{}, ErrInvalidCredentials
	}
	return record, nil
}

func (p *stubProvider) GetByID(_ context.Context, id string) (IdentityRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.getErr != nil {
		return IdentityRecord{}, p.getErr
	}
	record, ok := p.byID[id]
	if !ok {
		return IdentityRecord{}, errors.New("unknown account")
	}
	return record, nil
}

func (p *stubProvider) RecordLogout(_ context.Context, id string, at time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastLogout[id] = at
	return nil
}

func approvedRecord(id, email string, role permission.Role) IdentityRecord {
	return IdentityRecord{
		ID:            id,
		Email:         email,
		Role:          role,
		Status:        permission.StatusApproved,
		EmailVerified: true,
	}
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func testConfig(t *testing.T) Config {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate keys: %v", err)
	}

	cfg := DefaultConfig()
	cfg.JWT.PrivateKey = priv
	cfg.JWT.PublicKey = pub
	cfg.Audit.BufferSize = 64
	return cfg
}

type testEngine struct {
	engine   *Engine
	provider *stubProvider
	sink     *captureSink
	clock    *fakeClock
}

func newTestEngine(t *testing.T, mutate func(*Config)) *testEngine {
	t.Helper()

	_, rdb := newTestRedis(t)
	cfg := testConfig(t)
	if mutate != nil {
		mutate(&cfg)
	}

	provider := newStubProvider()
	sink := newCaptureSink(64)

	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithIdentityProvider(provider).
		WithAuditSink(sink).
		Build()
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	t.Cleanup(engine.Close)

	clock := newFakeClock()
	engine.setClock(clock.Now)

	return &testEngine{
		engine:   engine,
		provider: provider,
		sink:     sink,
		clock:    clock,
	}
}
