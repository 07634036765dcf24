package secstate

import (
	internalmetrics "github.com/strayhome/secstate/internal/metrics"
)

// MetricID identifies a specific counter or histogram in the in-process
// metrics system.
type MetricID = internalmetrics.MetricID

const (
	// MetricAuthenticateSuccess is an exported constant or variable used by the security-state engine.
	MetricAuthenticateSuccess = internalmetrics.MetricAuthenticateSuccess
	// MetricAuthenticateFailure is an exported constant or variable used by the security-state engine.
	MetricAuthenticateFailure = internalmetrics.MetricAuthenticateFailure
	// MetricAuthenticateThrottled is an exported constant or variable used by the security-state engine.
	MetricAuthenticateThrottled = internalmetrics.MetricAuthenticateThrottled
	// MetricTokenIssued is an exported constant or variable used by the security-state engine.
	MetricTokenIssued = internalmetrics.MetricTokenIssued
	// MetricValidateSuccess is an exported constant or variable used by the security-state engine.
	MetricValidateSuccess = internalmetrics.MetricValidateSuccess
	// MetricValidateFailure is an exported constant or variable used by the security-state engine.
	MetricValidateFailure = internalmetrics.MetricValidateFailure
	// MetricRefreshSuccess is an exported constant or variable used by the security-state engine.
	MetricRefreshSuccess = internalmetrics.MetricRefreshSuccess
	// MetricRefreshFailure is an exported constant or variable used by the security-state engine.
	MetricRefreshFailure = internalmetrics.MetricRefreshFailure
	// MetricRefreshReplay is an exported constant or variable used by the security-state engine.
	MetricRefreshReplay = internalmetrics.MetricRefreshReplay
	// MetricRevoke is an exported constant or variable used by the security-state engine.
	MetricRevoke = internalmetrics.MetricRevoke
	// MetricEpochBump is an exported constant or variable used by the security-state engine.
	MetricEpochBump = internalmetrics.MetricEpochBump
	// MetricGrantIssued is an exported constant or variable used by the security-state engine.
	MetricGrantIssued = internalmetrics.MetricGrantIssued
	// MetricGrantConsumed is an exported constant or variable used by the security-state engine.
	MetricGrantConsumed = internalmetrics.MetricGrantConsumed
	// MetricGrantReplay is an exported constant or variable used by the security-state engine.
	MetricGrantReplay = internalmetrics.MetricGrantReplay
	// MetricLeaseAcquired is an exported constant or variable used by the security-state engine.
	MetricLeaseAcquired = internalmetrics.MetricLeaseAcquired
	// MetricLeaseConflict is an exported constant or variable used by the security-state engine.
	MetricLeaseConflict = internalmetrics.MetricLeaseConflict
	// MetricLeaseRenewed is an exported constant or variable used by the security-state engine.
	MetricLeaseRenewed = internalmetrics.MetricLeaseRenewed
	// MetricLeaseReleased is an exported constant or variable used by the security-state engine.
	MetricLeaseReleased = internalmetrics.MetricLeaseReleased
	// MetricLeaseLapsed is an exported constant or variable used by the security-state engine.
	MetricLeaseLapsed = internalmetrics.MetricLeaseLapsed
	// MetricStoreRetry is an exported constant or variable used by the security-state engine.
	MetricStoreRetry = internalmetrics.MetricStoreRetry
	// MetricValidateLatency is an exported constant or variable used by the security-state engine.
	MetricValidateLatency = internalmetrics.MetricValidateLatency
)

// Metrics holds atomic counters and the optional validate latency histogram.
type Metrics = internalmetrics.Metrics

// MetricsSnapshot is a point-in-time deep copy of all metrics.
type MetricsSnapshot = internalmetrics.Snapshot

// NewMetrics creates a new [Metrics] instance configured by the given
// [MetricsConfig]. When Enabled is false, all operations are no-ops.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return internalmetrics.New(internalmetrics.Config{
		Enabled:       cfg.Enabled,
		EnableLatency: cfg.EnableLatencyHistograms,
	})
}
