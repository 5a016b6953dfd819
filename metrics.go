package sessionguard

import "sync/atomic"

// MetricID identifies one engine counter.
type MetricID uint16

const (
	// MetricLoginSuccess counts successful logins.
	MetricLoginSuccess MetricID = iota
	// MetricLoginFailure counts failed credential checks.
	MetricLoginFailure
	// MetricLoginLocked counts logins blocked by the lockout policy.
	MetricLoginLocked
	// MetricValidateSuccess counts successful session validations.
	MetricValidateSuccess
	// MetricValidateRejected counts rejected session validations.
	MetricValidateRejected
	// MetricSessionExpired counts sessions expired by the absolute
	// lifetime rule.
	MetricSessionExpired
	// MetricRefreshSuccess counts successful refresh operations.
	MetricRefreshSuccess
	// MetricRefreshDegraded counts refreshes that kept prior claims
	// because the identity fetch failed.
	MetricRefreshDegraded
	// MetricLogout counts logout operations.
	MetricLogout
	// MetricRateLimitBlocked counts rate-limit checks that denied.
	MetricRateLimitBlocked
	// MetricRateLimitDegraded counts rate checks served by the in-memory
	// fallback.
	MetricRateLimitDegraded
	// MetricBlacklistDegraded counts blacklist reads that failed open.
	MetricBlacklistDegraded

	metricIDCount
)

const cacheLineSize = 64

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics is the engine counter table. Increment-only, lock-free.
type Metrics struct {
	enabled  bool
	counters [metricIDCount]paddedCounter
}

// MetricsSnapshot is a point-in-time copy of all counters.
type MetricsSnapshot struct {
	Counters map[MetricID]uint64
}

// NewMetrics creates a counter table. Disabled tables drop increments.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{enabled: cfg.Enabled}
}

// Enabled reports whether the table records increments.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// Inc adds one to the counter.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Value reads one counter.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies all counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		Counters: make(map[MetricID]uint64, metricIDCount),
	}
	if m == nil {
		return snap
	}
	for id := MetricID(0); id < metricIDCount; id++ {
		snap.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}
	return snap
}
