// Package prometheus provides Prometheus collectors for secstate metrics.
//
// [NewPrometheusExporter] accepts a [secstate.Engine] and exposes an [http.Handler]
// that renders all secstate counters and histograms in Prometheus text exposition format.
// Counter names are prefixed secstate_*_total; the single histogram is
// secstate_validate_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry — callers mount the Handler.
//   - Mutate engine state.
package prometheus
