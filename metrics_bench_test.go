package secstate

import (
	"sync/atomic"
	"testing"
	"time"

	internalmetrics "github.com/strayhome/secstate/internal/metrics"
)

func BenchmarkMetricsInc(b *testing.B) {
	for _, state := range []struct {
		name    string
		enabled bool
	}{
		{"enabled", true},
		{"disabled", false},
	} {
		b.Run(state.name, func(b *testing.B) {
			m := NewMetrics(MetricsConfig{Enabled: state.enabled})
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				m.Inc(MetricAuthenticateSuccess)
			}
		})
		b.Run(state.name+"-parallel", func(b *testing.B) {
			m := NewMetrics(MetricsConfig{Enabled: state.enabled})
			b.ReportAllocs()
			b.ResetTimer()
			b.RunParallel(func(pb *testing.PB) {
				for pb.Next() {
					m.Inc(MetricAuthenticateSuccess)
				}
			})
		})
	}
}

func BenchmarkMetricsObserveLatencyParallel(b *testing.B) {
	m := NewMetrics(MetricsConfig{
		Enabled:                 true,
		EnableLatencyHistograms: true,
	})
	d := 12 * time.Millisecond
	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			m.Observe(MetricValidateLatency, d)
		}
	})
}

// contentionIDs spreads increments across the counters the hot paths touch
// most, so the padded and packed layouts below see the same mixed load.
var contentionIDs = [...]MetricID{
	MetricAuthenticateSuccess,
	MetricAuthenticateFailure,
	MetricTokenIssued,
	MetricRefreshSuccess,
	MetricRefreshFailure,
	MetricGrantConsumed,
	MetricLeaseAcquired,
	MetricRevoke,
}

// flatCounters packs all counters into adjacent words. It exists only to
// measure what the cache-line padding in internal/metrics buys under
// parallel mixed-id load; it is not a production layout.
type flatCounters struct {
	slots []uint64
}

func newFlatCounters() *flatCounters {
	return &flatCounters{slots: make([]uint64, internalmetrics.IDCount())}
}

func (c *flatCounters) Inc(id MetricID) {
	atomic.AddUint64(&c.slots[id], 1)
}

// splitmix64 is the SplitMix64 step function. Deterministic per goroutine,
// cheap enough to stay out of the measurement.
func splitmix64(s *uint64) uint64 {
	*s += 0x9e3779b97f4a7c15
	z := *s
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4aeb1
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

func BenchmarkMetricsIncContention(b *testing.B) {
	padded := NewMetrics(MetricsConfig{Enabled: true})
	packed := newFlatCounters()

	layouts := []struct {
		name string
		inc  func(MetricID)
	}{
		{"padded", padded.Inc},
		{"packed", packed.Inc},
	}

	for _, layout := range layouts {
		b.Run(layout.name+"/round-robin", func(b *testing.B) {
			b.ReportAllocs()
			b.ResetTimer()
			b.RunParallel(func(pb *testing.PB) {
				next := 0
				for pb.Next() {
					layout.inc(contentionIDs[next])
					next = (next + 1) % len(contentionIDs)
				}
			})
		})
		b.Run(layout.name+"/scattered", func(b *testing.B) {
			b.ReportAllocs()
			b.ResetTimer()
			b.RunParallel(func(pb *testing.PB) {
				seed := uint64(0x51ed2701)
				for pb.Next() {
					n := splitmix64(&seed)
					layout.inc(contentionIDs[n%uint64(len(contentionIDs))])
				}
			})
		})
	}
}
