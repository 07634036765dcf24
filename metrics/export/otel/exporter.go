package otel

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/metric"

	"github.com/strayhome/secstate"
	"github.com/strayhome/secstate/metrics/export/internaldefs"
)

var (
	// ErrNilMeter reports a missing OTel meter.
	ErrNilMeter = errors.New("nil meter")
	// ErrNilSource reports a missing snapshot source.
	ErrNilSource = errors.New("nil metrics source")
)

// metricsSource is the engine-shaped surface the exporter polls on every
// collection cycle.
type metricsSource interface {
	MetricsSnapshot() secstate.MetricsSnapshot
	AuditDropped() uint64
}

// latencyGauges carries the per-bucket instruments for one histogram: eight
// cumulative bucket gauges plus the total sample count.
type latencyGauges struct {
	id      secstate.MetricID
	buckets [8]metric.Int64ObservableGauge
	total   metric.Int64ObservableGauge
}

// instrumentSet owns every instrument registered with the meter and knows how
// to fill them from one snapshot.
type instrumentSet struct {
	counters     map[secstate.MetricID]metric.Int64ObservableCounter
	histograms   []latencyGauges
	auditDropped metric.Int64ObservableCounter
	all          []metric.Observable
}

func newInstrumentSet(meter metric.Meter) (*instrumentSet, error) {
	set := &instrumentSet{
		counters: make(map[secstate.MetricID]metric.Int64ObservableCounter, len(internaldefs.CounterDefs)),
	}

	for _, def := range internaldefs.CounterDefs {
		counter, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("create observable counter %s: %w", def.Name, err)
		}
		set.counters[def.ID] = counter
		set.all = append(set.all, counter)
	}

	for _, def := range internaldefs.HistogramDefs {
		gauges := latencyGauges{id: def.ID}
		for i, suffix := range internaldefs.HistogramBoundSuffix {
			name := def.Name + "_bucket_le_" + suffix
			gauge, err := meter.Int64ObservableGauge(name, metric.WithDescription("Cumulative histogram bucket count."))
			if err != nil {
				return nil, fmt.Errorf("create histogram bucket gauge %s: %w", name, err)
			}
			gauges.buckets[i] = gauge
			set.all = append(set.all, gauge)
		}

		total, err := meter.Int64ObservableGauge(def.Name+"_count", metric.WithDescription("Histogram total sample count."))
		if err != nil {
			return nil, fmt.Errorf("create histogram count gauge %s_count: %w", def.Name, err)
		}
		gauges.total = total
		set.all = append(set.all, total)
		set.histograms = append(set.histograms, gauges)
	}

	dropped, err := meter.Int64ObservableCounter(
		"secstate_audit_dropped_total",
		metric.WithDescription("Dropped audit events due to dispatcher backpressure."),
	)
	if err != nil {
		return nil, fmt.Errorf("create audit dropped counter: %w", err)
	}
	set.auditDropped = dropped
	set.all = append(set.all, dropped)

	return set, nil
}

// observe pushes one snapshot into every instrument. Bucket gauges receive
// cumulative counts, so downstream views line up with the Prometheus
// exposition of the same histogram.
func (s *instrumentSet) observe(observer metric.Observer, snap secstate.MetricsSnapshot, dropped uint64) {
	for id, counter := range s.counters {
		observer.ObserveInt64(counter, int64(snap.Counters[id]))
	}
	for _, gauges := range s.histograms {
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snap.Histograms[gauges.id]))
		for i, gauge := range gauges.buckets {
			observer.ObserveInt64(gauge, int64(cumulative[i]))
		}
		observer.ObserveInt64(gauges.total, int64(cumulative[len(cumulative)-1]))
	}
	observer.ObserveInt64(s.auditDropped, int64(dropped))
}

// OTelExporter bridges engine metrics onto OpenTelemetry observable
// instruments. A single registered callback reads one snapshot per collection
// cycle, so all instruments within a cycle agree with each other.
type OTelExporter struct {
	registration metric.Registration
}

// NewOTelExporter registers an instrument for every engine metric on meter
// and reads engine on each collection cycle.
func NewOTelExporter(meter metric.Meter, engine *secstate.Engine) (*OTelExporter, error) {
	if engine == nil {
		return nil, ErrNilSource
	}
	return NewOTelExporterFromSource(meter, engine)
}

// NewOTelExporterFromSource is [NewOTelExporter] for any snapshot source.
func NewOTelExporterFromSource(meter metric.Meter, source metricsSource) (*OTelExporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	set, err := newInstrumentSet(meter)
	if err != nil {
		return nil, err
	}

	registration, err := meter.RegisterCallback(func(_ context.Context, observer metric.Observer) error {
		set.observe(observer, source.MetricsSnapshot(), source.AuditDropped())
		return nil
	}, set.all...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}

	return &OTelExporter{registration: registration}, nil
}

// Close unregisters the collection callback. Safe on a nil receiver.
func (e *OTelExporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
