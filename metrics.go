package authkit

import "sync/atomic"

// MetricID indexes one coordinator counter.
type MetricID uint16

const (
	// MetricLoginSuccess counts successful logins.
	MetricLoginSuccess MetricID = iota
	// MetricLoginFailure counts logins the backend rejected or that
	// failed in transit.
	MetricLoginFailure
	// MetricLoginLockedOut counts logins denied by the rate limiter.
	MetricLoginLockedOut
	// MetricRefreshSuccess counts successful token renewals.
	MetricRefreshSuccess
	// MetricRefreshFailure counts renewals that forced a logout.
	MetricRefreshFailure
	// MetricRefreshCollapsed counts refresh calls that joined an
	// in-flight attempt instead of issuing their own backend call.
	MetricRefreshCollapsed
	// MetricLogout counts explicit logouts.
	MetricLogout
	// MetricForcedLogout counts logouts forced by expiry or refresh
	// failure.
	MetricForcedLogout
	// MetricSessionResumed counts sessions restored from the credential
	// store at startup.
	MetricSessionResumed
	// MetricSessionExpired counts stored sessions discarded because the
	// refresh token had already expired.
	MetricSessionExpired
	metricIDCount
)

const cacheLineSize = 64

// paddedCounter keeps each counter on its own cache line so concurrent
// increments on different IDs do not contend.
type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// MetricsSnapshot is a point-in-time copy of every counter, indexed by
// [MetricID].
type MetricsSnapshot [metricIDCount]uint64

// Metrics is the coordinator's in-process counter block. A nil or disabled
// Metrics accepts increments and reports zeros.
type Metrics struct {
	enabled  bool
	counters [metricIDCount]paddedCounter
}

// NewMetrics creates the counter block.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{enabled: cfg.Enabled}
}

// Inc increments one counter.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Get reads one counter.
func (m *Metrics) Get(id MetricID) uint64 {
	if m == nil || !m.enabled || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies all counters at once.
func (m *Metrics) Snapshot() MetricsSnapshot {
	var snap MetricsSnapshot
	if m == nil || !m.enabled {
		return snap
	}
	for i := range snap {
		snap[i] = atomic.LoadUint64(&m.counters[i].value)
	}
	return snap
}
