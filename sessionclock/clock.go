package sessionclock

import (
	"sync"
	"time"
)

// Default tick periods and thresholds.
const (
	DefaultPolicyInterval   = time.Minute
	DefaultDisplayInterval  = time.Second
	DefaultRefreshThreshold = 30 * time.Minute
	DefaultWarningThreshold = 5 * time.Minute
)

// Phase classifies the session at a policy tick.
type Phase int

const (
	// PhaseHealthy means no action is needed.
	PhaseHealthy Phase = iota
	// PhaseShouldRefresh means the access token is inside the refresh
	// threshold; renewal should be attempted opportunistically.
	PhaseShouldRefresh
	// PhaseMustRefresh means the access token is already unusable while
	// the refresh token is still valid; renewal is required now.
	PhaseMustRefresh
	// PhaseForceLogout means the refresh token itself has expired; the
	// session is unrecoverable locally.
	PhaseForceLogout
)

// String implements fmt.Stringer.
func (p Phase) String() string {
	switch p {
	case PhaseHealthy:
		return "healthy"
	case PhaseShouldRefresh:
		return "should_refresh"
	case PhaseMustRefresh:
		return "must_refresh"
	case PhaseForceLogout:
		return "force_logout"
	default:
		return "unknown"
	}
}

// Event is emitted on every policy tick, including one immediately at
// Start.
type Event struct {
	Phase Phase
	At    time.Time
}

// Countdown is emitted on every display tick. Remaining durations are
// clamped at zero. Presentation data only.
type Countdown struct {
	AccessRemaining  time.Duration
	RefreshRemaining time.Duration
	At               time.Time
}

// Config holds clock tuning parameters. Zero values fall back to defaults.
// The warning threshold is independent of the refresh threshold so the
// automatic-renewal point and the user-facing warning point stay separately
// tunable.
type Config struct {
	PolicyInterval   time.Duration
	DisplayInterval  time.Duration
	RefreshThreshold time.Duration
	WarningThreshold time.Duration
}

// WithDefaults returns the config with zero fields replaced by package
// defaults.
func (c Config) WithDefaults() Config {
	if c.PolicyInterval <= 0 {
		c.PolicyInterval = DefaultPolicyInterval
	}
	if c.DisplayInterval <= 0 {
		c.DisplayInterval = DefaultDisplayInterval
	}
	if c.RefreshThreshold <= 0 {
		c.RefreshThreshold = DefaultRefreshThreshold
	}
	if c.WarningThreshold <= 0 {
		c.WarningThreshold = DefaultWarningThreshold
	}
	return c
}

// Clock is a recurring expiry watcher. A clock is single-use: Start launches
// its tickers, SetExpiries re-points a running clock after a refresh, and
// Stop cancels both tickers permanently.
type Clock struct {
	config Config
	now    func() time.Time

	mu            sync.RWMutex
	accessExpiry  time.Time
	refreshExpiry time.Time
	started       bool

	events     chan Event
	countdowns chan Countdown
	done       chan struct{}
	wg         sync.WaitGroup
	stopOnce   sync.Once
}

// Option configures a [Clock].
type Option func(*Clock)

// WithNow overrides the clock's time source. Intended for tests.
func WithNow(now func() time.Time) Option {
	return func(c *Clock) {
		c.now = now
	}
}

// New creates a stopped clock.
func New(cfg Config, opts ...Option) *Clock {
	c := &Clock{
		config:     cfg.WithDefaults(),
		now:        time.Now,
		events:     make(chan Event),
		countdowns: make(chan Countdown, 1),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start records the expiries and launches the policy and display tickers.
// The first policy event is emitted immediately so an already-expired
// session is caught without waiting a full interval. Calling Start on a
// running clock only updates the expiries.
func (c *Clock) Start(accessExpiry, refreshExpiry time.Time) {
	c.mu.Lock()
	c.accessExpiry = accessExpiry
	c.refreshExpiry = refreshExpiry
	if c.started {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.mu.Unlock()

	c.wg.Add(2)
	go c.policyLoop()
	go c.displayLoop()
}

// SetExpiries re-points a running clock at the new expiries. Called after a
// successful refresh replaces the session.
func (c *Clock) SetExpiries(accessExpiry, refreshExpiry time.Time) {
	c.mu.Lock()
	c.accessExpiry = accessExpiry
	c.refreshExpiry = refreshExpiry
	c.mu.Unlock()
}

// Stop cancels both tickers and waits for them to exit. Idempotent. A
// stopped clock cannot be restarted; the coordinator creates a fresh clock
// per session.
func (c *Clock) Stop() {
	c.stopOnce.Do(func() {
		close(c.done)
	})
	c.wg.Wait()
}

// Done is closed when the clock has been stopped.
func (c *Clock) Done() <-chan struct{} {
	return c.done
}

// Events returns the policy tick stream.
func (c *Clock) Events() <-chan Event {
	return c.events
}

// Countdowns returns the display tick stream. Delivery is latest-wins: a
// slow consumer sees the most recent countdown, never a backlog.
func (c *Clock) Countdowns() <-chan Countdown {
	return c.countdowns
}

// Classify evaluates the stored expiries at the given instant.
func (c *Clock) Classify(now time.Time) Phase {
	c.mu.RLock()
	access, refresh := c.accessExpiry, c.refreshExpiry
	c.mu.RUnlock()
	return classify(now, access, refresh, c.config.RefreshThreshold)
}

// ExpiringSoon reports whether the access token is inside the warning
// threshold at the given instant. Used only for user-facing warnings.
func (c *Clock) ExpiringSoon(now time.Time) bool {
	c.mu.RLock()
	access := c.accessExpiry
	c.mu.RUnlock()
	return access.Sub(now) <= c.config.WarningThreshold
}

// Remaining returns the time left on both tokens, clamped at zero.
func (c *Clock) Remaining(now time.Time) (access, refresh time.Duration) {
	c.mu.RLock()
	accessExpiry, refreshExpiry := c.accessExpiry, c.refreshExpiry
	c.mu.RUnlock()
	return clampRemaining(accessExpiry.Sub(now)), clampRemaining(refreshExpiry.Sub(now))
}

func classify(now, accessExpiry, refreshExpiry time.Time, refreshThreshold time.Duration) Phase {
	switch {
	case !now.Before(refreshExpiry):
		return PhaseForceLogout
	case !now.Before(accessExpiry):
		return PhaseMustRefresh
	case accessExpiry.Sub(now) <= refreshThreshold:
		return PhaseShouldRefresh
	default:
		return PhaseHealthy
	}
}

func clampRemaining(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}

func (c *Clock) policyLoop() {
	defer c.wg.Done()

	if !c.emitPolicy() {
		return
	}

	ticker := time.NewTicker(c.config.PolicyInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if !c.emitPolicy() {
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *Clock) emitPolicy() bool {
	now := c.now()
	ev := Event{Phase: c.Classify(now), At: now}
	select {
	case c.events <- ev:
		return true
	case <-c.done:
		return false
	}
}

func (c *Clock) displayLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.DisplayInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := c.now()
			access, refresh := c.Remaining(now)
			c.publishCountdown(Countdown{
				AccessRemaining:  access,
				RefreshRemaining: refresh,
				At:               now,
			})
		case <-c.done:
			return
		}
	}
}

// publishCountdown replaces any undelivered countdown with the fresh one.
func (c *Clock) publishCountdown(cd Countdown) {
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
