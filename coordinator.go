package authkit

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ferrytech/authkit/credstore"
	"github.com/ferrytech/authkit/permission"
	"github.com/ferrytech/authkit/ratelimit"
	"github.com/ferrytech/authkit/session"
	"github.com/ferrytech/authkit/sessionclock"
)

// refreshAttempt is the single-slot record of an in-flight refresh.
// Concurrent callers wait on done and share err instead of issuing a
// second backend call.
type refreshAttempt struct {
	done chan struct{}
	err  error
}

// Coordinator owns the session lifecycle: the
// unauthenticated/authenticated state machine, the persisted session, the
// session clock, and the login rate limiter gate. It is the sole writer of
// the stored session; every collaborator only reads it.
//
// Construct exactly one Coordinator per process with [Builder] and pass it
// by reference to consumers. All methods are safe for concurrent use.
type Coordinator struct {
	config   Config
	backend  Backend
	store    credstore.Store
	limiter  ratelimit.Limiter
	resolver *permission.Resolver
	auditor  *auditDispatcher
	metrics  *Metrics
	log      zerolog.Logger
	now      func() time.Time

	countdowns chan sessionclock.Countdown

	mu          sync.Mutex
	state       State
	sess        *session.Session
	persistent  bool
	lastErr     error
	clock       *sessionclock.Clock
	refresh     *refreshAttempt
	subscribers map[int]Subscriber
	nextSubID   int
	closed      bool
}

// Login authenticates against the backend. Valid only from the
// unauthenticated state. The rate limiter is consulted first; a locked-out
// identity fails with a [LockoutError] before any network call. On success
// the session is stored, the session clock starts, and the state becomes
// authenticated.
func (c *Coordinator) Login(ctx context.Context, creds Credentials) error {
	identity := strings.TrimSpace(creds.Identity)
	if identity == "" || creds.Password == "" {
		return ErrInvalidCredentials
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrCoordinatorClosed
	}
	switch c.state {
	case StateUnauthenticated:
	case StateAuthenticating, StateLoggingOut:
		c.mu.Unlock()
		return ErrLoginInProgress
	default:
		c.mu.Unlock()
		return ErrAlreadyAuthenticated
	}
	c.state = StateAuthenticating
	c.lastErr = nil
	c.mu.Unlock()
	c.notify()

	opID := uuid.NewString()
	log := c.log.With().Str("op", "login").Str("request_id", opID).Str("identity", identity).Logger()

	dec, err := c.limiter.Check(ctx, identity)
	if err != nil {
		log.Error().Err(err).Msg("rate limiter check failed")
		return c.failLogin(err)
	}
	if !dec.Allowed {
		lockErr := &LockoutError{Identity: identity, Remaining: dec.Remaining}
		log.Warn().Dur("remaining", dec.Remaining).Msg("login denied by lockout")
		c.metrics.Inc(MetricLoginLockedOut)
		c.emitAudit(AuditEvent{
			EventType: EventLockout,
			Identity:  identity,
			RequestID: opID,
			Error:     lockErr.Error(),
		})
		return c.failLogin(lockErr)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.config.Backend.RequestTimeout)
	defer cancel()

	grant, err := c.backend.Login(reqCtx, creds)
	var sess *session.Session
	if err == nil {
		if grant == nil {
			err = ErrMalformedGrant
		} else {
			sess, err = c.sessionFromGrant(grant, nil)
		}
	}
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			// Only genuine rejections count against the lockout
			// budget; a network blip is not a failed login.
			if recErr := c.limiter.RecordFailure(ctx, identity); recErr != nil {
				log.Warn().Err(recErr).Msg("failed to record login failure")
			}
		}
		log.Warn().Err(err).Msg("login failed")
		c.metrics.Inc(MetricLoginFailure)
		c.emitAudit(AuditEvent{
			EventType: EventLoginDenied,
			Identity:  identity,
			RequestID: opID,
			Error:     err.Error(),
		})
		return c.failLogin(err)
	}

	if clearErr := c.limiter.Clear(ctx, identity); clearErr != nil {
		log.Warn().Err(clearErr).Msg("failed to clear login failures")
	}
	if storeErr := c.store.Store(ctx, sess, creds.Remember); storeErr != nil {
		// The in-memory session still works for this process; only
		// restart survival is lost.
		log.Warn().Err(storeErr).Msg("failed to persist session")
	}

	c.mu.Lock()
	c.sess = sess
	c.persistent = creds.Remember
	c.state = StateAuthenticated
	c.lastErr = nil
	c.startClockLocked(sess)
	c.mu.Unlock()
	c.notify()

	log.Info().Str("user_id", sess.User.ID).Time("access_expiry", sess.AccessExpiry).Msg("login succeeded")
	c.metrics.Inc(MetricLoginSuccess)
	c.emitAudit(AuditEvent{
		EventType: EventLogin,
		Identity:  identity,
		UserID:    sess.User.ID,
		RequestID: opID,
		Success:   true,
	})
	return nil
}

// failLogin returns the coordinator to the unauthenticated state and
// records err as the surfaced error.
func (c *Coordinator) failLogin(err error) error {
	c.mu.Lock()
	c.state = StateUnauthenticated
	c.lastErr = err
	c.mu.Unlock()
	c.notify()
	return err
}

// Refresh renews the token pair. At most one refresh is in flight at a
// time: concurrent callers, including the session clock, wait on the
// existing attempt and share its outcome. On success the session is
// replaced wholesale; on any failure the coordinator fails closed and logs
// out.
func (c *Coordinator) Refresh(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrCoordinatorClosed
	}
	if att := c.refresh; att != nil {
		c.mu.Unlock()
		c.metrics.Inc(MetricRefreshCollapsed)
		select {
		case <-att.done:
			return att.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if c.state != StateAuthenticated || c.sess == nil {
		c.mu.Unlock()
		return ErrNotAuthenticated
	}

	sess := c.sess
	if sess.RefreshExpired(c.now()) {
		c.mu.Unlock()
		c.forceLogout(EventSessionExpired, ErrRefreshExpired)
		return ErrRefreshExpired
	}

	att := &refreshAttempt{done: make(chan struct{})}
	c.refresh = att
	c.state = StateRefreshing
	refreshToken := sess.RefreshToken
	priorUser := sess.Clone().User
	persistent := c.persistent
	c.mu.Unlock()
	c.notify()

	err := c.doRefresh(ctx, refreshToken, priorUser, persistent)

	c.mu.Lock()
	att.err = err
	c.refresh = nil
	c.mu.Unlock()
	close(att.done)
	return err
}

func (c *Coordinator) doRefresh(ctx context.Context, refreshToken string, priorUser session.User, persistent bool) error {
	opID := uuid.NewString()
	log := c.log.With().Str("op", "refresh").Str("request_id", opID).Logger()

	reqCtx, cancel := context.WithTimeout(ctx, c.config.Backend.RequestTimeout)
	defer cancel()

	grant, err := c.backend.Refresh(reqCtx, refreshToken)
	var sess *session.Session
	if err == nil {
		if grant == nil {
			err = ErrMalformedGrant
		} else {
			sess, err = c.sessionFromGrant(grant, &priorUser)
		}
	}
	if err != nil {
		// Fail closed: an unreachable or rejecting backend during
		// refresh is treated as an expired session, never retried.
		log.Warn().Err(err).Msg("refresh failed, forcing logout")
		c.metrics.Inc(MetricRefreshFailure)
		c.emitAudit(AuditEvent{
			EventType: EventRefresh,
			UserID:    priorUser.ID,
			RequestID: opID,
			Error:     err.Error(),
		})
		c.forceLogout(EventForcedLogout, err)
		return err
	}

	if storeErr := c.store.Store(ctx, sess, persistent); storeErr != nil {
		log.Warn().Err(storeErr).Msg("failed to persist refreshed session")
	}

	c.mu.Lock()
	if c.closed || c.state != StateRefreshing {
		// A logout raced the renewal; the fresh grant is discarded
		// rather than resurrecting a cleared session.
		c.mu.Unlock()
		if clearErr := c.store.Clear(ctx); clearErr != nil {
			log.Warn().Err(clearErr).Msg("failed to discard raced refresh")
		}
		return ErrNotAuthenticated
	}
	c.sess = sess
	c.state = StateAuthenticated
	c.lastErr = nil
	if c.clock != nil {
		c.clock.SetExpiries(sess.AccessExpiry, sess.RefreshExpiry)
	}
	c.mu.Unlock()
	c.notify()

	log.Info().Str("user_id", sess.User.ID).Time("access_expiry", sess.AccessExpiry).Msg("session refreshed")
	c.metrics.Inc(MetricRefreshSuccess)
	c.emitAudit(AuditEvent{
		EventType: EventRefresh,
		UserID:    sess.User.ID,
		RequestID: opID,
		Success:   true,
	})
	return nil
}

// Logout tears the session down. Valid from any state, and local effect is
// unconditional: the clock stops, the credential store is cleared, and
// subscribers are notified regardless of whether the best-effort backend
// notice succeeds.
func (c *Coordinator) Logout(ctx context.Context) error {
	_, err := c.logout(ctx, true, EventLogout, nil)
	return err
}

// forceLogout is the expiry/failure path: local teardown without the
// backend notice, since the credentials are already unusable.
func (c *Coordinator) forceLogout(eventType string, cause error) {
	if performed, _ := c.logout(context.Background(), false, eventType, cause); performed {
		c.metrics.Inc(MetricForcedLogout)
	}
}

func (c *Coordinator) logout(ctx context.Context, notifyBackend bool, eventType string, cause error) (bool, error) {
	opID := uuid.NewString()

	c.mu.Lock()
	if c.sess == nil && c.state == StateUnauthenticated {
		// Already torn down; a second logout is a no-op.
		c.mu.Unlock()
		return false, nil
	}
	var accessToken, userID string
	if c.sess != nil {
		accessToken = c.sess.AccessToken
		userID = c.sess.User.ID
	}
	clock := c.clock
	c.clock = nil
	c.sess = nil
	c.state = StateLoggingOut
	c.mu.Unlock()
	c.notify()

	if clock != nil {
		clock.Stop()
	}
	if err := c.store.Clear(ctx); err != nil {
		// Local clear is mandatory; surface the failure but finish
		// the transition regardless.
		c.log.Error().Err(err).Str("request_id", opID).Msg("credential store clear failed")
	}

	if notifyBackend && accessToken != "" {
		// Fire and forget: the response never influences local state.
		go func() {
			lctx, cancel := context.WithTimeout(context.Background(), c.config.Backend.LogoutTimeout)
			defer cancel()
			if err := c.backend.Logout(lctx, accessToken); err != nil {
				c.log.Debug().Err(err).Str("request_id", opID).Msg("backend logout notice failed")
			}
		}()
	}

	c.mu.Lock()
	c.state = StateUnauthenticated
	c.lastErr = cause
	c.mu.Unlock()
	c.notify()

	if eventType == EventLogout {
		c.metrics.Inc(MetricLogout)
	}
	event := AuditEvent{
		EventType: eventType,
		UserID:    userID,
		RequestID: opID,
		Success:   cause == nil,
	}
	if cause != nil {
		event.Error = cause.Error()
	}
	c.emitAudit(event)
	return true, nil
}

// resume restores a stored session at construction time. A missing or
// malformed record leaves the coordinator unauthenticated; a record whose
// refresh token already expired is cleared without any network call. A
// session whose access token expired but whose refresh token is still
// valid is resumed, and the clock's first tick immediately requests the
// renewal.
func (c *Coordinator) resume(ctx context.Context) {
	sess, err := c.store.Load(ctx)
	if err != nil {
		c.log.Warn().Err(err).Msg("credential store unavailable at startup")
		return
	}
	if sess == nil {
		return
	}

	if sess.RefreshExpired(c.now()) {
		if clearErr := c.store.Clear(ctx); clearErr != nil {
			c.log.Warn().Err(clearErr).Msg("failed to clear expired session")
		}
		c.metrics.Inc(MetricSessionExpired)
		c.emitAudit(AuditEvent{
			EventType: EventSessionExpired,
			UserID:    sess.User.ID,
			Error:     ErrRefreshExpired.Error(),
		})
		return
	}

	c.mu.Lock()
	c.sess = sess
	// Only durably stored sessions survive a restart, so a resumed
	// session keeps long-lived retention.
	c.persistent = true
	c.state = StateAuthenticated
	c.startClockLocked(sess)
	c.mu.Unlock()

	c.log.Info().Str("user_id", sess.User.ID).Time("access_expiry", sess.AccessExpiry).Msg("session resumed")
	c.metrics.Inc(MetricSessionResumed)
	c.emitAudit(AuditEvent{
		EventType: EventSessionResumed,
		UserID:    sess.User.ID,
		Success:   true,
	})
}

// Close stops the clock and the audit worker. The stored session is left
// intact so the next process start can resume it. Safe to call repeatedly.
func (c *Coordinator) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	clock := c.clock
	c.clock = nil
	c.subscribers = nil
	c.mu.Unlock()

	if clock != nil {
		clock.Stop()
	}
	c.auditor.Close()
	return nil
}

/*
====================================
CLOCK WIRING
====================================
*/

// startClockLocked launches a fresh session clock and its event pump.
// Caller holds c.mu.
func (c *Coordinator) startClockLocked(sess *session.Session) {
	clock := sessionclock.New(c.config.Clock, sessionclock.WithNow(c.now))
	c.clock = clock
	clock.Start(sess.AccessExpiry, sess.RefreshExpiry)
	go c.pump(clock)
}

// pump routes one clock's events until that clock is stopped. Each session
// gets its own clock and pump, so a tick can never act on a newer session.
func (c *Coordinator) pump(clock *sessionclock.Clock) {
	for {
		select {
		case ev := <-clock.Events():
			c.handleClockEvent(clock, ev)
		case cd := <-clock.Countdowns():
			c.publishCountdown(cd)
		case <-clock.Done():
			return
		}
	}
}

func (c *Coordinator) handleClockEvent(clock *sessionclock.Clock, ev sessionclock.Event) {
	c.mu.Lock()
	current := c.clock == clock
	c.mu.Unlock()
	if !current {
		return
	}

	switch ev.Phase {
	case sessionclock.PhaseForceLogout:
		// Unrecoverable: no network call, just local teardown.
		c.log.Info().Time("at", ev.At).Msg("refresh token expired, forcing logout")
		c.metrics.Inc(MetricSessionExpired)
		c.forceLogout(EventSessionExpired, ErrRefreshExpired)
	case sessionclock.PhaseMustRefresh, sessionclock.PhaseShouldRefresh:
		if err := c.Refresh(context.Background()); err != nil &&
			!errors.Is(err, ErrNotAuthenticated) && !errors.Is(err, ErrCoordinatorClosed) {
			c.log.Warn().Err(err).Str("phase", ev.Phase.String()).Msg("scheduled refresh failed")
		}
	}
}

// publishCountdown forwards a display tick to Countdowns, latest-wins.
func (c *Coordinator) publishCountdown(cd sessionclock.Countdown) {
	select {
	case c.countdowns <- cd:
		return
	default:
	}
	select {
	case <-c.countdowns:
	default:
	}
	select {
	case c.countdowns <- cd:
	default:
	}
}

/*
====================================
OBSERVATION
====================================
*/

// Snapshot returns the current consumer-facing view.
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Coordinator) snapshotLocked() Snapshot {
	snap := Snapshot{
		State: c.state,
		Err:   c.lastErr,
		IsLoading: c.state == StateAuthenticating ||
			c.state == StateRefreshing ||
			c.state == StateLoggingOut,
	}
	if c.sess != nil {
		clone := c.sess.Clone()
		snap.User = &clone.User
		snap.AccessExpiry = c.sess.AccessExpiry
		snap.RefreshExpiry = c.sess.RefreshExpiry
		snap.IsAuthenticated = c.sess.Active(c.now())
	}
	return snap
}

// Subscribe registers fn for snapshot delivery on every state change and
// returns its cancel function.
func (c *Coordinator) Subscribe(fn Subscriber) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || fn == nil {
		return func() {}
	}
	id := c.nextSubID
	c.nextSubID++
	if c.subscribers == nil {
		c.subscribers = make(map[int]Subscriber)
	}
	c.subscribers[id] = fn

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subscribers, id)
	}
}

// notify delivers the current snapshot to all subscribers. Never called
// with c.mu held.
func (c *Coordinator) notify() {
	c.mu.Lock()
	snap := c.snapshotLocked()
	subs := make([]Subscriber, 0, len(c.subscribers))
	for _, fn := range c.subscribers {
		subs = append(subs, fn)
	}
	c.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
}

// State returns the current lifecycle state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsAuthenticated reports whether a session with non-empty tokens exists
// and its access token has not expired.
func (c *Coordinator) IsAuthenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess.Active(c.now())
}

// CurrentUser returns a copy of the cached user record, or nil.
func (c *Coordinator) CurrentUser() *session.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil {
		return nil
	}
	clone := c.sess.Clone()
	return &clone.User
}

// HasPermission checks the cached user against the permission resolver.
// False when unauthenticated.
func (c *Coordinator) HasPermission(perm string) bool {
	return c.resolver.HasPermission(c.CurrentUser(), perm)
}

// HasRole checks the cached user's role identifier. False when
// unauthenticated.
func (c *Coordinator) HasRole(roleID string) bool {
	return c.resolver.HasRole(c.CurrentUser(), roleID)
}

// ExpiringSoon reports whether the access token is inside the warning
// threshold. Presentation only; renewal is driven by the refresh
// threshold.
func (c *Coordinator) ExpiringSoon() bool {
	c.mu.Lock()
	clock := c.clock
	c.mu.Unlock()
	if clock == nil {
		return false
	}
	return clock.ExpiringSoon(c.now())
}

// Remaining returns the time left on both tokens, clamped at zero, for
// display. Zeros when unauthenticated.
func (c *Coordinator) Remaining() (access, refresh time.Duration) {
	c.mu.Lock()
	clock := c.clock
	c.mu.Unlock()
	if clock == nil {
		return 0, 0
	}
	return clock.Remaining(c.now())
}

// Countdowns exposes the 1-second display tick stream. Delivery is
// latest-wins; the stream survives session replacement.
func (c *Coordinator) Countdowns() <-chan sessionclock.Countdown {
	return c.countdowns
}

// MetricsSnapshot copies the coordinator's counters.
func (c *Coordinator) MetricsSnapshot() MetricsSnapshot {
	return c.metrics.Snapshot()
}

// AuditDropped reports audit events discarded under a full buffer.
func (c *Coordinator) AuditDropped() uint64 {
	return c.auditor.Dropped()
}

/*
====================================
HELPERS
====================================
*/

// sessionFromGrant validates a backend grant and assembles the replacement
// session. priorUser fills in when a refresh response omits the user
// record; login grants must carry one. An access expiry past the refresh
// expiry is clamped to preserve the ordering invariant.
func (c *Coordinator) sessionFromGrant(grant *TokenGrant, priorUser *session.User) (*session.Session, error) {
	if grant.AccessToken == "" || grant.RefreshToken == "" {
		return nil, ErrMalformedGrant
	}
	if grant.AccessExpiry.IsZero() || grant.RefreshExpiry.IsZero() {
		return nil, ErrMalformedGrant
	}

	user := grant.User
	if user == nil {
		if priorUser == nil {
			return nil, ErrMalformedGrant
		}
		user = priorUser
	}

	accessExpiry := grant.AccessExpiry
	if accessExpiry.After(grant.RefreshExpiry) {
		c.log.Warn().
			Time("access_expiry", accessExpiry).
			Time("refresh_expiry", grant.RefreshExpiry).
			Msg("backend returned access expiry past refresh expiry, clamping")
		accessExpiry = grant.RefreshExpiry
	}

	sess := &session.Session{
		AccessToken:   grant.AccessToken,
		RefreshToken:  grant.RefreshToken,
		User:          *user,
		AccessExpiry:  accessExpiry,
		RefreshExpiry: grant.RefreshExpiry,
	}
	if !sess.Valid() {
		return nil, ErrMalformedGrant
	}
	return sess.Clone(), nil
}

func (c *Coordinator) emitAudit(event AuditEvent) {
	if c.auditor == nil {
		return
	}
	event.Timestamp = c.now()
	c.auditor.Emit(context.Background(), event)
}
