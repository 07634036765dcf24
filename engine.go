package secstate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/strayhome/secstate/cache"
	internalaudit "github.com/strayhome/secstate/internal/audit"
	"github.com/strayhome/secstate/internal/flows"
	"github.com/strayhome/secstate/internal/stores"
	"github.com/strayhome/secstate/lease"
	"github.com/strayhome/secstate/password"
	"github.com/strayhome/secstate/token"
)

// Engine defines a public type used by secstate APIs.
//
// Engine instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Engine struct {
	config   Config
	store    cache.Store
	codec    *token.Codec
	denylist *stores.Denylist
	epochs   EpochSource
	leases   *lease.Manager
	identity IdentityStore
	throttle LoginThrottle
	hasher   *password.Hasher
	audit    *internalaudit.Dispatcher
	metrics  *Metrics
	flows    flows.Service
	now      func() time.Time
}

// Close describes the close operation and its observable behavior.
//
// Close may return an error when input validation, dependency calls, or security checks fail.
// Close does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped describes the auditdropped operation and its observable behavior.
//
// AuditDropped may return an error when input validation, dependency calls, or security checks fail.
// AuditDropped does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// MetricsSnapshot may return an error when input validation, dependency calls, or security checks fail.
// MetricsSnapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Collect()
}

// HealthStatus is an on-demand state-store health result.
type HealthStatus struct {
	StoreAvailable bool
	StoreLatency   time.Duration
}

// Health describes the health operation and its observable behavior.
//
// Health may return an error when input validation, dependency calls, or security checks fail.
// Health does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Health(ctx context.Context) HealthStatus {
	if e == nil || e.store == nil {
		return HealthStatus{}
	}

	type pinger interface {
		Ping(ctx context.Context) error
	}

	start := time.Now()
	var err error
	if p, ok := e.store.(pinger); ok {
		err = p.Ping(ctx)
	} else {
		// Stores without a ping are probed with a read; a missing key still
		// proves the backend answered.
		_, err = e.store.Get(ctx, "healthcheck")
		if errors.Is(err, cache.ErrNotFound) {
			err = nil
		}
	}

	return HealthStatus{
		StoreAvailable: err == nil,
		StoreLatency:   time.Since(start),
	}
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// flowMetricInc adapts metricInc to the untyped id the flow packages carry.
func (e *Engine) flowMetricInc(id int) {
	if id < 0 {
		return
	}
	e.metricInc(MetricID(id))
}

func (e *Engine) ready() bool {
	return e != nil && e.flows.Initialized()
}

// wrapStoreErr folds any state-store failure under [ErrStoreUnavailable].
// Errors already carrying the sentinel pass through unchanged, so layered
// wrapping stays flat.
func wrapStoreErr(err error) error {
	if err == nil || errors.Is(err, ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

func (e *Engine) currentEpoch(ctx context.Context, principal string) (uint64, error) {
	current, err := e.epochs.Current(ctx, principal)
	if err != nil {
		return 0, wrapStoreErr(err)
	}
	return current, nil
}

func (e *Engine) bumpEpoch(ctx context.Context, principal string) (uint64, error) {
	epoch, err := e.epochs.Bump(ctx, principal)
	if err != nil {
		return 0, wrapStoreErr(err)
	}
	e.metricInc(MetricEpochBump)
	return epoch, nil
}

func (e *Engine) lookupByUsername(ctx context.Context, username string) (*flows.PrincipalRecord, error) {
	p, err := e.identity.LookupByUsername(ctx, username)
	return principalRecord(p, err)
}

func (e *Engine) lookupByID(ctx context.Context, principalID string) (*flows.PrincipalRecord, error) {
	p, err := e.identity.LookupByID(ctx, principalID)
	return principalRecord(p, err)
}

// principalRecord converts the public identity model into the flow-local
// shape. A missing principal is reported as (nil, nil) whether the store
// returned nil or [ErrPrincipalNotFound]; flows treat absence uniformly.
func principalRecord(p *Principal, err error) (*flows.PrincipalRecord, error) {
	if err != nil {
		if errors.Is(err, ErrPrincipalNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if p == nil {
		return nil, nil
	}
	return &flows.PrincipalRecord{
		ID:           p.ID,
		Username:     p.Username,
		PasswordHash: p.PasswordHash,
		Role:         p.Role,
		Permissions:  p.Permissions,
		Domains:      p.Domains,
	}, nil
}
