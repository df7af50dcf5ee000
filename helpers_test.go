package authkit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ferrytech/authkit/credstore"
	"github.com/ferrytech/authkit/session"
	"github.com/ferrytech/authkit/sessionclock"
)

// fakeClock is a mutable time source shared between the coordinator, the
// limiter, and the session clock under test.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{t: start}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.t = f.t.Add(d)
	f.mu.Unlock()
}

// fakeBackend scripts backend behavior per test and counts calls.
type fakeBackend struct {
	mu           sync.Mutex
	loginCalls   int
	refreshCalls int
	logoutCalls  int

	loginFn   func(ctx context.Context, creds Credentials) (*TokenGrant, error)
	refreshFn func(ctx context.Context, refreshToken string) (*TokenGrant, error)
	logoutFn  func(ctx context.Context, accessToken string) error
}

func (b *fakeBackend) Login(ctx context.Context, creds Credentials) (*TokenGrant, error) {
	b.mu.Lock()
	b.loginCalls++
	fn := b.loginFn
	b.mu.Unlock()
	if fn == nil {
		return nil, ErrBackendUnavailable
	}
	return fn(ctx, creds)
}

func (b *fakeBackend) Refresh(ctx context.Context, refreshToken string) (*TokenGrant, error) {
	b.mu.Lock()
	b.refreshCalls++
	fn := b.refreshFn
	b.mu.Unlock()
	if fn == nil {
		return nil, ErrBackendUnavailable
	}
	return fn(ctx, refreshToken)
}

func (b *fakeBackend) Logout(ctx context.Context, accessToken string) error {
	b.mu.Lock()
	b.logoutCalls++
	fn := b.logoutFn
	b.mu.Unlock()
	if fn == nil {
		return nil
	}
	return fn(ctx, accessToken)
}

func (b *fakeBackend) calls() (login, refresh, logout int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.loginCalls, b.refreshCalls, b.logoutCalls
}

func testUser() *session.User {
	return &session.User{
		ID:          "u1",
		Username:    "alice",
		DisplayName: "Alice",
		Role:        "operator",
		Permissions: []string{"inventory.read"},
	}
}

// grantAt builds a healthy grant relative to now.
func grantAt(now time.Time) *TokenGrant {
	return &TokenGrant{
		AccessToken:   "access-" + now.Format("150405.000000000"),
		RefreshToken:  "refresh-" + now.Format("150405.000000000"),
		User:          testUser(),
		AccessExpiry:  now.Add(8 * time.Hour),
		RefreshExpiry: now.Add(24 * time.Hour),
	}
}

func storedSessionAt(now time.Time) *session.Session {
	return &session.Session{
		AccessToken:   "stored-access",
		RefreshToken:  "stored-refresh",
		User:          *testUser(),
		AccessExpiry:  now.Add(8 * time.Hour),
		RefreshExpiry: now.Add(24 * time.Hour),
	}
}

// testConfig keeps clock timers short so scheduled transitions land
// within a polling deadline.
func testConfig() Config {
	cfg := defaultConfig()
	cfg.Clock = sessionclock.Config{
		PolicyInterval:   10 * time.Millisecond,
		DisplayInterval:  time.Hour,
		RefreshThreshold: 30 * time.Minute,
		WarningThreshold: 5 * time.Minute,
	}
	return cfg
}

func newTestCoordinator(t *testing.T, backend Backend, clk *fakeClock, store credstore.Store) *Coordinator {
	t.Helper()

	b := New().
		WithConfig(testConfig()).
		WithBackend(backend).
		WithNow(clk.Now)
	if store != nil {
		b.WithStore(store)
	}

	c, err := b.Build(context.Background())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func loginOK(t *testing.T, c *Coordinator, remember bool) {
	t.Helper()
	err := c.Login(context.Background(), Credentials{Identity: "alice", Password: "pw", Remember: remember})
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", msg)
}
