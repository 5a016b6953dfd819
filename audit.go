package sessionguard

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"sync"
	"time"

	"github.com/retailcore/sessionguard/internal/auditstore"
)

// Audit action names. ActionLoginLocked is deliberately distinct from
// ActionLogin so lockout-blocked attempts do not feed back into the
// failure count that produced the lockout.
const (
	ActionLogin          = auditstore.ActionLogin
	ActionLoginLocked    = "login_locked"
	ActionLoginDenied    = "login_denied"
	ActionLogout         = "logout"
	ActionSessionExpired = "session_expired"
	ActionSessionRefresh = "session_refresh"
	ActionSessionRevoked = "session_revoked"
	ActionRateLimited    = "rate_limited"
)

// AuditEvent is one security-relevant event. Append-only by contract.
type AuditEvent struct {
	Timestamp    time.Time         `json:"timestamp"`
	Action       string            `json:"action"`
	SubjectID    string            `json:"subject_id,omitempty"`
	SubjectEmail string            `json:"subject_email,omitempty"`
	IP           string            `json:"ip,omitempty"`
	UserAgent    string            `json:"user_agent,omitempty"`
	Success      bool              `json:"success"`
	Error        string            `json:"error,omitempty"`
	Details      map[string]string `json:"details,omitempty"`
}

// AuditSink receives emitted audit events. Sinks must never propagate
// failures to the request path; failures are theirs to contain.
type AuditSink interface {
	Emit(ctx context.Context, event AuditEvent)
}

// NoOpSink drops audit events.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, AuditEvent) {}

// ChannelSink writes audit events into a buffered channel.
type ChannelSink struct {
	events chan AuditEvent
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{
		events: make(chan AuditEvent, buffer),
	}
}

func (s *ChannelSink) Emit(ctx context.Context, event AuditEvent) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Events() <-chan AuditEvent {
	return s.events
}

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{
		writer: w,
	}
}

func (s *JSONWriterSink) Emit(ctx context.Context, event AuditEvent) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.writer.Write(data)
	_, _ = s.writer.Write([]byte("\n"))
}

// storeSink persists events into the durable audit store. Insert failures
// are logged to the fallback channel and swallowed; a lost audit row must
// never abort the request that produced it.
type storeSink struct {
	store auditstore.Store
}

func newStoreSink(store auditstore.Store) *storeSink {
	return &storeSink{store: store}
}

func (s *storeSink) Emit(ctx context.Context, event AuditEvent) {
	if s == nil || s.store == nil {
		return
	}

	err := s.store.Insert(ctx, auditstore.Event{
		Action:       event.Action,
		SubjectID:    event.SubjectID,
		SubjectEmail: event.SubjectEmail,
		IP:           event.IP,
		UserAgent:    event.UserAgent,
		Success:      event.Success,
		ErrorMessage: event.Error,
		Details:      event.Details,
		Timestamp:    event.Timestamp,
	})
	if err != nil {
		log.Print("sessionguard: audit store insert failed")
	}
}

// teeSink fans an event out to multiple sinks.
type teeSink struct {
	sinks []AuditSink
}

func (s *teeSink) Emit(ctx context.Context, event AuditEvent) {
	for _, sink := range s.sinks {
		sink.Emit(ctx, event)
	}
}
