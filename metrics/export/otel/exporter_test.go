package otel

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/strayhome/secstate"
)

// stubSource serves deep-copied snapshots under a lock so the collection
// callback can race with test mutations.
type stubSource struct {
	mu       sync.RWMutex
	counters map[secstate.MetricID]uint64
	latency  []uint64
	dropped  uint64
}

func (s *stubSource) MetricsSnapshot() secstate.MetricsSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := secstate.MetricsSnapshot{
		Counters:   make(map[secstate.MetricID]uint64, len(s.counters)),
		Histograms: map[secstate.MetricID][]uint64{},
	}
	for id, v := range s.counters {
		snap.Counters[id] = v
	}
	if len(s.latency) > 0 {
		snap.Histograms[secstate.MetricValidateLatency] = append([]uint64(nil), s.latency...)
	}
	return snap
}

func (s *stubSource) AuditDropped() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dropped
}

func (s *stubSource) setCounter(id secstate.MetricID, v uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[id] = v
}

func newTestMeter() (*sdkmetric.ManualReader, metric.Meter) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	return reader, provider.Meter("secstate-test")
}

// collectedValue digs name out of a collected batch, whichever observable
// instrument kind produced it.
func collectedValue(rm metricdata.ResourceMetrics, name string) (int64, bool) {
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name != name {
				continue
			}
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				if len(data.DataPoints) > 0 {
					return data.DataPoints[0].Value, true
				}
			case metricdata.Gauge[int64]:
				if len(data.DataPoints) > 0 {
					return data.DataPoints[0].Value, true
				}
			}
		}
	}
	return 0, false
}

func TestExporterObservesSnapshotValues(t *testing.T) {
	reader, meter := newTestMeter()

	src := &stubSource{
		counters: map[secstate.MetricID]uint64{
			secstate.MetricAuthenticateSuccess: 3,
		},
		latency: []uint64{1, 1, 1, 1, 1, 1, 1, 1},
		dropped: 1,
	}

	exp, err := NewOTelExporterFromSource(meter, src)
	if err != nil {
		t.Fatalf("NewOTelExporterFromSource failed: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}

	checks := []struct {
		name string
		want int64
	}{
		{"secstate_authenticate_success_total", 3},
		{"secstate_validate_latency_seconds_bucket_le_0_05", 4},
		{"secstate_validate_latency_seconds_count", 8},
		{"secstate_audit_dropped_total", 1},
	}
	for _, check := range checks {
		got, ok := collectedValue(rm, check.name)
		if !ok {
			t.Fatalf("metric %s missing from collection", check.name)
		}
		if got != check.want {
			t.Fatalf("metric %s = %d, want %d", check.name, got, check.want)
		}
	}
}

func TestExporterNilArguments(t *testing.T) {
	_, meter := newTestMeter()

	if _, err := NewOTelExporterFromSource(meter, nil); !errors.Is(err, ErrNilSource) {
		t.Fatalf("nil source error = %v, want ErrNilSource", err)
	}
	if _, err := NewOTelExporterFromSource(nil, &stubSource{}); !errors.Is(err, ErrNilMeter) {
		t.Fatalf("nil meter error = %v, want ErrNilMeter", err)
	}
	if _, err := NewOTelExporter(meter, nil); !errors.Is(err, ErrNilSource) {
		t.Fatalf("nil engine error = %v, want ErrNilSource", err)
	}
}

func TestExporterCloseNilSafe(t *testing.T) {
	var exp *OTelExporter
	if err := exp.Close(); err != nil {
		t.Fatalf("Close on nil exporter returned %v", err)
	}
}

func TestExporterConcurrentCollectNoPanic(t *testing.T) {
	reader, meter := newTestMeter()

	src := &stubSource{
		counters: map[secstate.MetricID]uint64{
			secstate.MetricAuthenticateSuccess: 1,
		},
		latency: []uint64{1, 0, 0, 0, 0, 0, 0, 0},
	}

	exp, err := NewOTelExporterFromSource(meter, src)
	if err != nil {
		t.Fatalf("NewOTelExporterFromSource failed: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}()

	var wg sync.WaitGroup
	for i := 1; i <= 8; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			src.setCounter(secstate.MetricAuthenticateSuccess, v)

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i))
	}
	wg.Wait()
}
