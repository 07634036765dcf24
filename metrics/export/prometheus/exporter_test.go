package prometheus

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/strayhome/secstate"
)

type staticSource struct {
	snap    secstate.MetricsSnapshot
	dropped uint64
}

func (s staticSource) MetricsSnapshot() secstate.MetricsSnapshot { return s.snap }
func (s staticSource) AuditDropped() uint64                      { return s.dropped }

// exporterWith builds an exporter over a canned snapshot. A nil latency slice
// leaves the histogram map empty rather than mapping the ID to nil, which is
// what a disabled-metrics snapshot looks like.
func exporterWith(counters map[secstate.MetricID]uint64, latency []uint64, dropped uint64) *PrometheusExporter {
	snap := secstate.MetricsSnapshot{
		Counters:   counters,
		Histograms: map[secstate.MetricID][]uint64{},
	}
	if counters == nil {
		snap.Counters = map[secstate.MetricID]uint64{}
	}
	if latency != nil {
		snap.Histograms[secstate.MetricValidateLatency] = latency
	}
	return NewPrometheusExporterFromSource(staticSource{snap: snap, dropped: dropped})
}

func TestRenderIdleEngineIsEmpty(t *testing.T) {
	if got := exporterWith(nil, nil, 0).Render(); got != "" {
		t.Fatalf("idle snapshot should render empty, got:\n%s", got)
	}
}

func TestRenderExpositionFormat(t *testing.T) {
	exp := exporterWith(
		map[secstate.MetricID]uint64{secstate.MetricAuthenticateSuccess: 7},
		[]uint64{1, 2, 3, 4, 5, 6, 7, 8},
		2,
	)
	out := exp.Render()

	wants := []string{
		"# TYPE secstate_authenticate_success_total counter",
		"secstate_authenticate_success_total 7",
		"# TYPE secstate_validate_latency_seconds histogram",
		`secstate_validate_latency_seconds_bucket{le="0.005"} 1`,
		`secstate_validate_latency_seconds_bucket{le="+Inf"} 36`,
		"secstate_validate_latency_seconds_count 36",
		"secstate_audit_dropped_total 2",
	}
	pos := -1
	for _, want := range wants {
		at := strings.Index(out, want)
		if at < 0 {
			t.Fatalf("missing %q in output:\n%s", want, out)
		}
		if at < pos {
			t.Fatalf("%q rendered out of order:\n%s", want, out)
		}
		pos = at
	}
}

func TestRenderDroppedAuditAloneStillRenders(t *testing.T) {
	out := exporterWith(nil, nil, 3).Render()
	if !strings.Contains(out, "secstate_audit_dropped_total 3") {
		t.Fatalf("dropped-only snapshot should still render the audit counter, got:\n%s", out)
	}
}

func TestRenderNilReceiverAndNilSource(t *testing.T) {
	var exp *PrometheusExporter
	if got := exp.Render(); got != "" {
		t.Fatalf("nil exporter rendered %q", got)
	}
	if got := NewPrometheusExporterFromSource(nil).Render(); got != "" {
		t.Fatalf("nil source rendered %q", got)
	}
}

func TestHandlerServesRenderedText(t *testing.T) {
	exp := exporterWith(map[secstate.MetricID]uint64{secstate.MetricAuthenticateSuccess: 1}, nil, 0)

	rec := httptest.NewRecorder()
	exp.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got, want := rec.Header().Get("Content-Type"), "text/plain; version=0.0.4; charset=utf-8"; got != want {
		t.Fatalf("Content-Type = %q, want %q", got, want)
	}
	if rec.Body.String() != exp.Render() {
		t.Fatalf("handler body diverges from Render output:\n%s", rec.Body.String())
	}
}

func BenchmarkRender(b *testing.B) {
	counters := make(map[secstate.MetricID]uint64)
	for i, id := range []secstate.MetricID{
		secstate.MetricAuthenticateSuccess,
		secstate.MetricAuthenticateFailure,
		secstate.MetricRefreshSuccess,
		secstate.MetricRefreshFailure,
		secstate.MetricLeaseAcquired,
		secstate.MetricLeaseReleased,
		secstate.MetricGrantReplay,
	} {
		counters[id] = uint64(i+1) * 17
	}
	exp := exporterWith(counters, []uint64{10, 20, 30, 40, 50, 60, 70, 80}, 1)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = exp.Render()
	}
}
