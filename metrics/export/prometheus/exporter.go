package prometheus

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/strayhome/secstate"
	"github.com/strayhome/secstate/metrics/export/internaldefs"
)

type metricsSource interface {
	MetricsSnapshot() secstate.MetricsSnapshot
	AuditDropped() uint64
}

// PrometheusExporter renders secstate metrics in Prometheus text exposition format.
type PrometheusExporter struct {
	source metricsSource
}

// NewPrometheusExporter creates a Prometheus exporter that reads from the given [secstate.Engine].
func NewPrometheusExporter(engine *secstate.Engine) *PrometheusExporter {
	return &PrometheusExporter{source: engine}
}

// NewPrometheusExporterFromSource creates a Prometheus exporter from a
// custom metrics source.
func NewPrometheusExporterFromSource(source metricsSource) *PrometheusExporter {
	return &PrometheusExporter{source: source}
}

// Handler returns an http.Handler that serves Prometheus metrics.
func (p *PrometheusExporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = w.Write([]byte(p.Render()))
	})
}

// Render writes the current metrics in Prometheus text exposition format.
// Counters come first in definition order, then histograms, then the audit
// drop counter. A snapshot with nothing recorded renders as the empty string
// so scrapes of an idle engine stay cheap.
func (p *PrometheusExporter) Render() string {
	if p == nil || p.source == nil {
		return ""
	}

	snap := p.source.MetricsSnapshot()
	dropped := p.source.AuditDropped()
	if len(snap.Counters) == 0 && len(snap.Histograms) == 0 && dropped == 0 {
		return ""
	}

	var w expositionWriter
	w.buf.Grow(8192)

	for _, def := range internaldefs.CounterDefs {
		w.counter(def.Name, def.Help, snap.Counters[def.ID])
	}
	for _, def := range internaldefs.HistogramDefs {
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snap.Histograms[def.ID]))
		w.histogram(def.Name, def.Help, cumulative)
	}
	w.counter("secstate_audit_dropped_total", "Dropped audit events due to dispatcher backpressure.", dropped)

	return w.buf.String()
}

// expositionWriter accumulates text exposition format 0.0.4 output.
type expositionWriter struct {
	buf strings.Builder
}

func (w *expositionWriter) header(name, kind, help string) {
	help = strings.ReplaceAll(help, "\\", "\\\\")
	help = strings.ReplaceAll(help, "\n", "\\n")
	fmt.Fprintf(&w.buf, "# HELP %s %s\n# TYPE %s %s\n", name, help, name, kind)
}

func (w *expositionWriter) counter(name, help string, value uint64) {
	w.header(name, "counter", help)
	fmt.Fprintf(&w.buf, "%s %d\n", name, value)
}

func (w *expositionWriter) histogram(name, help string, cumulative [8]uint64) {
	w.header(name, "histogram", help)
	for i, le := range internaldefs.HistogramBounds {
		fmt.Fprintf(&w.buf, "%s_bucket{le=%q} %d\n", name, le, cumulative[i])
	}
	fmt.Fprintf(&w.buf, "%s_count %d\n", name, cumulative[len(cumulative)-1])

	// No sum in core snapshots; emit a stable zero so scrapers keep a series.
	fmt.Fprintf(&w.buf, "%s_sum 0\n", name)
}
