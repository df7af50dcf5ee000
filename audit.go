package authkit

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Audit event types emitted by the coordinator.
const (
	EventLogin          = "login"
	EventLoginDenied    = "login_denied"
	EventLockout        = "lockout"
	EventRefresh        = "refresh"
	EventLogout         = "logout"
	EventForcedLogout   = "forced_logout"
	EventSessionResumed = "session_resumed"
	EventSessionExpired = "session_expired"
)

// AuditEvent is a structured record of one lifecycle transition.
type AuditEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType string            `json:"event_type"`
	Identity  string            `json:"identity,omitempty"`
	UserID    string            `json:"user_id,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
	Success   bool              `json:"success"`
	Error     string            `json:"error,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// AuditSink receives [AuditEvent] values from the coordinator's audit
// dispatcher.
type AuditSink interface {
	Emit(ctx context.Context, event AuditEvent)
}

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink struct{}

// Emit implements [AuditSink].
func (NoOpSink) Emit(context.Context, AuditEvent) {}

// ChannelSink is a buffered channel-based [AuditSink] for consumers that
// process events on their own goroutine.
type ChannelSink struct {
	events chan AuditEvent
}

// NewChannelSink creates a [ChannelSink] with the given buffer.
func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{events: make(chan AuditEvent, buffer)}
}

// Emit implements [AuditSink].
func (s *ChannelSink) Emit(ctx context.Context, event AuditEvent) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

// Events exposes the sink's channel.
func (s *ChannelSink) Events() <-chan AuditEvent {
	return s.events
}

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

// NewJSONWriterSink creates a [JSONWriterSink] over w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{writer: w}
}

// Emit implements [AuditSink].
func (s *JSONWriterSink) Emit(_ context.Context, event AuditEvent) {
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

// ZerologSink forwards audit events into a zerolog logger, one info-level
// entry per event, so deployments with an existing log pipeline need no
// separate audit channel.
type ZerologSink struct {
	logger zerolog.Logger
}

// NewZerologSink creates a [ZerologSink] over the given logger.
func NewZerologSink(logger zerolog.Logger) *ZerologSink {
	return &ZerologSink{logger: logger}
}

// Emit implements [AuditSink].
func (s *ZerologSink) Emit(_ context.Context, event AuditEvent) {
	entry := s.logger.Info().
		Time("timestamp", event.Timestamp).
		Str("event_type", event.EventType).
		Bool("success", event.Success)
	if event.Identity != "" {
		entry = entry.Str("identity", event.Identity)
	}
	if event.UserID != "" {
		entry = entry.Str("user_id", event.UserID)
	}
	if event.RequestID != "" {
		entry = entry.Str("request_id", event.RequestID)
	}
	if event.Error != "" {
		entry = entry.Str("error", event.Error)
	}
	for k, v := range event.Metadata {
		entry = entry.Str("meta_"+k, v)
	}
	entry.Msg("audit")
}
