package authkit

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestDispatcherDeliversInOrder(t *testing.T) {
	sink := NewChannelSink(8)
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 8}, sink)

	for i, typ := range []string{EventLogin, EventRefresh, EventLogout} {
		d.Emit(context.Background(), AuditEvent{EventType: typ, RequestID: string(rune('a' + i))})
	}
	d.Close()

	for _, want := range []string{EventLogin, EventRefresh, EventLogout} {
		select {
		case got := <-sink.Events():
			if got.EventType != want {
				t.Fatalf("event = %q, want %q", got.EventType, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("missing %q event", want)
		}
	}
}

func TestDispatcherDisabledIsNil(t *testing.T) {
	d := newAuditDispatcher(AuditConfig{Enabled: false}, NewChannelSink(1))
	if d != nil {
		t.Fatal("disabled dispatcher not nil")
	}
	// All methods must be nil-safe.
	d.Emit(context.Background(), AuditEvent{EventType: EventLogin})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("nil dispatcher reported drops")
	}
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	block := make(chan struct{})
	sink := &blockingSink{release: block}
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)
	defer d.Close()

	// First event occupies the worker, second fills the buffer, the rest
	// must be dropped rather than blocking a lifecycle transition.
	for i := 0; i < 5; i++ {
		d.Emit(context.Background(), AuditEvent{EventType: EventLogin})
	}

	waitFor(t, 2*time.Second, func() bool {
		return d.Dropped() >= 2
	}, "drop counter to advance")
	close(block)
}

type blockingSink struct {
	release chan struct{}
}

func (s *blockingSink) Emit(ctx context.Context, event AuditEvent) {
	<-s.release
}

func TestJSONWriterSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)

	sink.Emit(context.Background(), AuditEvent{
		Timestamp: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		EventType: EventLockout,
		Identity:  "alice",
		Error:     "locked out",
	})

	var decoded AuditEvent
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output not valid JSON: %v", err)
	}
	if decoded.EventType != EventLockout || decoded.Identity != "alice" {
		t.Fatalf("decoded = %+v", decoded)
	}
}

func TestZerologSink(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	sink := NewZerologSink(logger)

	sink.Emit(context.Background(), AuditEvent{
		EventType: EventLogin,
		Identity:  "alice",
		UserID:    "u1",
		Success:   true,
	})

	line := buf.String()
	for _, want := range []string{EventLogin, "alice", "u1"} {
		if !strings.Contains(line, want) {
			t.Fatalf("log line %q missing %q", line, want)
		}
	}
}

func TestCoordinatorEmitsAuditTrail(t *testing.T) {
	clk := newFakeClock(time.Now())
	backend := &fakeBackend{
		loginFn: func(ctx context.Context, creds Credentials) (*TokenGrant, error) {
			return grantAt(clk.Now()), nil
		},
	}
	sink := NewChannelSink(16)

	c, err := New().
		WithConfig(testConfig()).
		WithBackend(backend).
		WithNow(clk.Now).
		WithAuditSink(sink).
		Build(context.Background())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer func() { _ = c.Close() }()

	loginOK(t, c, false)
	if err := c.Logout(context.Background()); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}

	seen := map[string]AuditEvent{}
	deadline := time.After(2 * time.Second)
	for len(seen) < 2 {
		select {
		case ev := <-sink.Events():
			seen[ev.EventType] = ev
		case <-deadline:
			t.Fatalf("audit trail incomplete, saw %v", seen)
		}
	}

	login, ok := seen[EventLogin]
	if !ok || !login.Success || login.Identity != "alice" || login.UserID != "u1" {
		t.Fatalf("login event = %+v", login)
	}
	if login.RequestID == "" {
		t.Fatal("login event missing request id")
	}
	if _, ok := seen[EventLogout]; !ok {
		t.Fatal("logout event missing")
	}
}
