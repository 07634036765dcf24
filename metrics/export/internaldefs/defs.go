package internaldefs

import (
	"github.com/strayhome/secstate"
)

// CounterDef defines a public type used by secstate APIs.
//
// CounterDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type CounterDef struct {
	ID   secstate.MetricID
	Name string
	Help string
}

// HistogramDef defines a public type used by secstate APIs.
//
// HistogramDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type HistogramDef struct {
	ID   secstate.MetricID
	Name string
	Help string
}

// CounterDefs is an exported constant or variable used by the security-state engine.
var CounterDefs = []CounterDef{
	{ID: secstate.MetricAuthenticateSuccess, Name: "secstate_authenticate_success_total", Help: "Successful password grants."},
	{ID: secstate.MetricAuthenticateFailure, Name: "secstate_authenticate_failure_total", Help: "Failed password grants."},
	{ID: secstate.MetricAuthenticateThrottled, Name: "secstate_authenticate_throttled_total", Help: "Throttled password grants."},
	{ID: secstate.MetricTokenIssued, Name: "secstate_token_issued_total", Help: "Issued tokens, counting a pair once."},
	{ID: secstate.MetricValidateSuccess, Name: "secstate_validate_success_total", Help: "Successful token validations."},
	{ID: secstate.MetricValidateFailure, Name: "secstate_validate_failure_total", Help: "Failed token validations."},
	{ID: secstate.MetricRefreshSuccess, Name: "secstate_refresh_success_total", Help: "Successful refresh rotations."},
	{ID: secstate.MetricRefreshFailure, Name: "secstate_refresh_failure_total", Help: "Failed refresh rotations."},
	{ID: secstate.MetricRefreshReplay, Name: "secstate_refresh_replay_total", Help: "Detected refresh token reuses."},
	{ID: secstate.MetricRevoke, Name: "secstate_revoke_total", Help: "Revocations that wrote at least one tombstone."},
	{ID: secstate.MetricEpochBump, Name: "secstate_epoch_bump_total", Help: "Per-principal epoch bumps."},
	{ID: secstate.MetricGrantIssued, Name: "secstate_grant_issued_total", Help: "Issued invitation and reset grants."},
	{ID: secstate.MetricGrantConsumed, Name: "secstate_grant_consumed_total", Help: "Consumed single-use grants."},
	{ID: secstate.MetricGrantReplay, Name: "secstate_grant_replay_total", Help: "Replayed single-use grants."},
	{ID: secstate.MetricLeaseAcquired, Name: "secstate_lease_acquired_total", Help: "Acquired record leases."},
	{ID: secstate.MetricLeaseConflict, Name: "secstate_lease_conflict_total", Help: "Lease acquisitions denied by a live holder."},
	{ID: secstate.MetricLeaseRenewed, Name: "secstate_lease_renewed_total", Help: "Renewed record leases."},
	{ID: secstate.MetricLeaseReleased, Name: "secstate_lease_released_total", Help: "Released record leases."},
	{ID: secstate.MetricLeaseLapsed, Name: "secstate_lease_lapsed_total", Help: "Renew attempts on a lapsed lease."},
	{ID: secstate.MetricStoreRetry, Name: "secstate_store_retry_total", Help: "Single-shot retries after a store failure."},
}

// HistogramDefs is an exported constant or variable used by the security-state engine.
var HistogramDefs = []HistogramDef{
	{ID: secstate.MetricValidateLatency, Name: "secstate_validate_latency_seconds", Help: "Validate latency histogram."},
}

// HistogramBounds is an exported constant or variable used by the security-state engine.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix is an exported constant or variable used by the security-state engine.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets describes the normalizebuckets operation and its observable behavior.
//
// NormalizeBuckets may return an error when input validation, dependency calls, or security checks fail.
// NormalizeBuckets does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets describes the cumulativebuckets operation and its observable behavior.
//
// CumulativeBuckets may return an error when input validation, dependency calls, or security checks fail.
// CumulativeBuckets does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
