package secstate

import (
	"context"
	"errors"

	"github.com/strayhome/secstate/cache"
)

// AcquireLease describes the acquirelease operation and its observable behavior.
//
// AcquireLease may return an error when input validation, dependency calls, or security checks fail.
// AcquireLease does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// A record held by another principal fails with [AlreadyLockedError] naming
// the current holder. Re-acquiring a record the principal already holds
// extends the lease instead of failing.
func (e *Engine) AcquireLease(ctx context.Context, recordID, principalID string) (*Lease, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	if recordID == "" || principalID == "" {
		return nil, ErrInvalidRequest
	}

	l, err := e.leases.Acquire(ctx, recordID, principalID)
	if err != nil {
		var conflict *AlreadyLockedError
		if errors.As(err, &conflict) {
			e.metricInc(MetricLeaseConflict)
			e.emitAudit(ctx, auditEventLeaseConflict, false, principalID, "", "", recordID, err, func() map[string]string {
				return map[string]string{"holder": conflict.Holder}
			})
			return nil, err
		}

		err = mapLeaseErr(err)
		e.emitAudit(ctx, auditEventLeaseAcquired, false, principalID, "", "", recordID, err, nil)
		return nil, err
	}

	e.metricInc(MetricLeaseAcquired)
	e.emitAudit(ctx, auditEventLeaseAcquired, true, principalID, "", "", recordID, nil, nil)

	return l, nil
}

// RenewLease describes the renewlease operation and its observable behavior.
//
// RenewLease may return an error when input validation, dependency calls, or security checks fail.
// RenewLease does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// Only the current holder may renew. A lease that lapsed before the renew
// reports [ErrLeaseNotHeld]; the caller must re-acquire and re-check the
// record rather than keep editing on a dead lease.
func (e *Engine) RenewLease(ctx context.Context, recordID, principalID string) (*Lease, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	if recordID == "" || principalID == "" {
		return nil, ErrInvalidRequest
	}

	l, err := e.leases.Renew(ctx, recordID, principalID)
	if err != nil {
		if errors.Is(err, ErrLeaseNotHeld) {
			e.metricInc(MetricLeaseLapsed)
		}
		err = mapLeaseErr(err)
		e.emitAudit(ctx, auditEventLeaseRenewed, false, principalID, "", "", recordID, err, nil)
		return nil, err
	}

	e.metricInc(MetricLeaseRenewed)
	e.emitAudit(ctx, auditEventLeaseRenewed, true, principalID, "", "", recordID, nil, nil)

	return l, nil
}

// ReleaseLease describes the releaselease operation and its observable behavior.
//
// ReleaseLease may return an error when input validation, dependency calls, or security checks fail.
// ReleaseLease does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// Releasing a record that is not held succeeds, so duplicate releases and
// releases after a lapse stay safe to retry. Releasing a record held by
// someone else reports [ErrNotHolder].
func (e *Engine) ReleaseLease(ctx context.Context, recordID, principalID string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if recordID == "" || principalID == "" {
		return ErrInvalidRequest
	}

	if err := e.leases.Release(ctx, recordID, principalID); err != nil {
		err = mapLeaseErr(err)
		e.emitAudit(ctx, auditEventLeaseReleased, false, principalID, "", "", recordID, err, nil)
		return err
	}

	e.metricInc(MetricLeaseReleased)
	e.emitAudit(ctx, auditEventLeaseReleased, true, principalID, "", "", recordID, nil, nil)

	return nil
}

// LeaseStatus describes the leasestatus operation and its observable behavior.
//
// LeaseStatus may return an error when input validation, dependency calls, or security checks fail.
// LeaseStatus does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// This is a point-in-time read for conflict messages and UI; it takes no
// part in mutual exclusion and emits no audit events.
func (e *Engine) LeaseStatus(ctx context.Context, recordID string) (LeaseStatus, error) {
	if !e.ready() {
		return LeaseStatus{}, ErrEngineNotReady
	}
	if recordID == "" {
		return LeaseStatus{}, ErrInvalidRequest
	}

	status, err := e.leases.Status(ctx, recordID)
	if err != nil {
		return LeaseStatus{}, mapLeaseErr(err)
	}

	return status, nil
}

// mapLeaseErr folds store transport failures under [ErrStoreUnavailable]
// while leaving lease verdicts (conflict, wrong holder, not held, corrupt
// record) with their own identity.
func mapLeaseErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, cache.ErrUnavailable) {
		return wrapStoreErr(err)
	}
	return err
}
