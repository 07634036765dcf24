package metrics

import (
	"sync/atomic"
	"time"
)

// MetricID indexes one counter or histogram slot.
type MetricID uint16

const (
	MetricAuthenticateSuccess MetricID = iota
	MetricAuthenticateFailure
	MetricAuthenticateThrottled
	MetricTokenIssued
	MetricValidateSuccess
	MetricValidateFailure
	MetricRefreshSuccess
	MetricRefreshFailure
	MetricRefreshReplay
	MetricRevoke
	MetricEpochBump
	MetricGrantIssued
	MetricGrantConsumed
	MetricGrantReplay
	MetricLeaseAcquired
	MetricLeaseConflict
	MetricLeaseRenewed
	MetricLeaseReleased
	MetricLeaseLapsed
	MetricStoreRetry
	MetricValidateLatency
	metricIDCount
)

// IDCount reports how many metric slots exist. Exporters size their tables
// with it.
func IDCount() int {
	return int(metricIDCount)
}

const histBucketCount = 8

// latencyBounds are the upper edges of the first seven histogram buckets.
// Anything slower lands in the trailing +Inf bucket.
var latencyBounds = [histBucketCount - 1]time.Duration{
	5 * time.Millisecond,
	10 * time.Millisecond,
	25 * time.Millisecond,
	50 * time.Millisecond,
	100 * time.Millisecond,
	250 * time.Millisecond,
	500 * time.Millisecond,
}

// slot is one counter padded out to a full cache line so that neighboring
// metrics never false-share under parallel increments.
type slot struct {
	n atomic.Uint64
	_ [64 - 8]byte
}

// Config controls which instrument families record.
type Config struct {
	Enabled       bool
	EnableLatency bool
}

// Metrics is a fixed-size set of lock-free counters plus the validate
// latency histogram. A nil *Metrics accepts every call and records nothing.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]slot
	latency       [histBucketCount]atomic.Uint64
}

func New(cfg Config) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatency,
	}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to the counter for id.
func (m *Metrics) Inc(id MetricID) {
	if !m.Enabled() || id >= metricIDCount {
		return
	}
	m.counters[id].n.Add(1)
}

// Observe records d into the latency histogram for id. Only the validate
// latency histogram exists today; other ids are ignored.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if !m.LatencyEnabled() || id != MetricValidateLatency {
		return
	}
	m.latency[bucketFor(d)].Add(1)
}

// Value reads one counter.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return m.counters[id].n.Load()
}

// Snapshot is a point-in-time copy of every instrument.
type Snapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// Collect copies all counters and histograms. Each read is individually
// atomic; the snapshot as a whole is not.
func (m *Metrics) Collect() Snapshot {
	if !m.Enabled() {
		return Snapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := Snapshot{
		Counters:   make(map[MetricID]uint64, IDCount()),
		Histograms: make(map[MetricID][]uint64, 1),
	}
	for id := range m.counters {
		s.Counters[MetricID(id)] = m.counters[id].n.Load()
	}
	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := range m.latency {
			buckets[i] = m.latency[i].Load()
		}
		s.Histograms[MetricValidateLatency] = buckets
	}
	return s
}

// bucketFor maps a latency to its histogram bucket using latencyBounds as
// inclusive upper edges.
func bucketFor(d time.Duration) int {
	for i, bound := range latencyBounds {
		if d <= bound {
			return i
		}
	}
	return histBucketCount - 1
}
