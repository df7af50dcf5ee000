package authkit

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/ferrytech/authkit/credstore"
	"github.com/ferrytech/authkit/permission"
	"github.com/ferrytech/authkit/ratelimit"
	"github.com/ferrytech/authkit/sessionclock"
)

// Builder assembles a [Coordinator]. Configure it during initialization
// and call Build once; a builder is single use.
type Builder struct {
	config    Config
	backend   Backend
	store     credstore.Store
	limiter   ratelimit.Limiter
	auditSink AuditSink
	logger    *zerolog.Logger
	now       func() time.Time

	built bool
}

// New returns a builder preloaded with defaults.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration tree. Zero fields inside cfg
// are not backfilled; start from the defaults when in doubt.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithBackend sets the authentication backend. Required.
func (b *Builder) WithBackend(backend Backend) *Builder {
	b.backend = backend
	return b
}

// WithStore sets the credential store. Defaults to an in-memory store,
// which does not survive a restart.
func (b *Builder) WithStore(store credstore.Store) *Builder {
	b.store = store
	return b
}

// WithLimiter sets the login rate limiter. Defaults to an in-memory
// limiter using the configured attempt budget and window.
func (b *Builder) WithLimiter(limiter ratelimit.Limiter) *Builder {
	b.limiter = limiter
	return b
}

// WithAuditSink sets the destination for audit events. Defaults to a
// no-op sink.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the structured logger. Defaults to a disabled logger.
func (b *Builder) WithLogger(logger zerolog.Logger) *Builder {
	b.logger = &logger
	return b
}

// WithNow overrides the time source for the coordinator, the default
// limiter, and the session clock. Tests only.
func (b *Builder) WithNow(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the configuration, wires the coordinator, and restores
// any persisted session. The returned coordinator is ready for use; an
// expired-but-refreshable restored session triggers its renewal on the
// clock's first tick.
func (b *Builder) Build(ctx context.Context) (*Coordinator, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	b.built = true

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.backend == nil {
		return nil, errors.New("backend required")
	}

	now := b.now
	if now == nil {
		now = time.Now
	}

	store := b.store
	if store == nil {
		store = credstore.NewMemory()
	}

	limiter := b.limiter
	if limiter == nil {
		var opts []ratelimit.MemoryOption
		if b.now != nil {
			opts = append(opts, ratelimit.WithNow(b.now))
		}
		limiter = ratelimit.NewMemory(cfg.Limiter, opts...)
	}

	logger := zerolog.Nop()
	if b.logger != nil {
		logger = *b.logger
	}

	sink := b.auditSink
	if sink == nil {
		sink = NoOpSink{}
	}

	cfg.Clock = cfg.Clock.WithDefaults()

	c := &Coordinator{
		config:     cfg,
		backend:    b.backend,
		store:      store,
		limiter:    limiter,
		resolver:   permission.NewResolver(cfg.AdminRole),
		auditor:    newAuditDispatcher(cfg.Audit, sink),
		metrics:    NewMetrics(cfg.Metrics),
		log:        logger,
		now:        now,
		countdowns: make(chan sessionclock.Countdown, 1),
		state:      StateUnauthenticated,
	}
	c.resume(ctx)
	return c, nil
}
