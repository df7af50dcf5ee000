package credstore

import (
	"context"
	"sync"
	"time"

	"github.com/ferrytech/authkit/session"
)

// Memory is an in-process [Store] used by tests and by embedders that do not
// want sessions to survive a restart. It keeps the same two-tier layout as
// the durable implementations so tier-specific behavior stays testable.
type Memory struct {
	mu     sync.Mutex
	tokens *tokenRecord
	state  *stateRecord
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{}
}

// Store implements [Store].
func (m *Memory) Store(_ context.Context, sess *session.Session, persistent bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.tokens = &tokenRecord{
		AccessToken:  sess.AccessToken,
		RefreshToken: sess.RefreshToken,
	}
	m.state = &stateRecord{
		User:          sess.Clone().User,
		AccessExpiry:  sess.AccessExpiry.Format(time.RFC3339Nano),
		RefreshExpiry: sess.RefreshExpiry.Format(time.RFC3339Nano),
		Persistent:    persistent,
	}
	return nil
}

// Load implements [Store].
func (m *Memory) Load(_ context.Context) (*session.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.tokens == nil || m.state == nil {
		return nil, nil
	}
	return assembleSession(m.tokens, m.state)
}

// Clear implements [Store].
func (m *Memory) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.tokens = nil
	m.state = nil
	return nil
}

// DropTokens erases the token tier only, leaving the state tier in place.
// It models token revocation and lets tests exercise the
// malformed-record-as-absence rule.
func (m *Memory) DropTokens() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.tokens = nil
}

// assembleSession rebuilds a session from the two tiers, returning
// (nil, nil) unless every required field is present and parseable.
func assembleSession(tokens *tokenRecord, state *stateRecord) (*session.Session, error) {
	if tokens.AccessToken == "" || tokens.RefreshToken == "" {
		return nil, nil
	}

	accessExpiry, err := time.Parse(time.RFC3339Nano, state.AccessExpiry)
	if err != nil {
		return nil, nil
	}
	refreshExpiry, err := time.Parse(time.RFC3339Nano, state.RefreshExpiry)
	if err != nil {
		return nil, nil
	}

	sess := &session.Session{
		AccessToken:   tokens.AccessToken,
		RefreshToken:  tokens.RefreshToken,
		User:          state.User,
		AccessExpiry:  accessExpiry,
		RefreshExpiry: refreshExpiry,
	}
	if !sess.Valid() {
		return nil, nil
	}
	return sess, nil
}
