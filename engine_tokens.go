package secstate

import (
	"context"
	"strconv"
	"time"

	"github.com/strayhome/secstate/internal/flows"
)

// Issue describes the issue operation and its observable behavior.
//
// Issue may return an error when input validation, dependency calls, or security checks fail.
// Issue does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// The minted token carries the subject's current epoch, so a later
// [Engine.RevokeAllForPrincipal] invalidates it without per-token bookkeeping.
func (e *Engine) Issue(ctx context.Context, req IssueRequest) (string, Claims, error) {
	if !e.ready() {
		return "", Claims{}, ErrEngineNotReady
	}
	if req.Subject == "" || !req.Kind.Valid() {
		return "", Claims{}, ErrInvalidRequest
	}

	signed, claims, err := e.flows.IssueToken(ctx, flows.IssueRequest{
		Subject:     req.Subject,
		Domain:      req.Domain,
		Kind:        req.Kind,
		Role:        req.Role,
		Permissions: req.Permissions,
		TTL:         req.TTL,
	})
	if err != nil {
		e.emitAudit(ctx, auditEventTokenIssued, false, req.Subject, req.Domain, string(req.Kind), "", err, nil)
		return "", Claims{}, err
	}

	e.metricInc(MetricTokenIssued)
	e.emitAudit(ctx, auditEventTokenIssued, true, req.Subject, req.Domain, string(req.Kind), "", nil, nil)

	return signed, claims, nil
}

// Validate describes the validate operation and its observable behavior.
//
// Validate may return an error when input validation, dependency calls, or security checks fail.
// Validate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// An empty expect accepts any kind. Single-use kinds are consumed by a
// successful validation; presenting the same invitation or reset token again
// reports [ErrRevoked]. Validate emits no audit events: it sits on the
// per-request hot path and is accounted through metrics only.
func (e *Engine) Validate(ctx context.Context, raw string, expect Kind) (*Claims, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	if e.metrics != nil && e.metrics.LatencyEnabled() {
		start := time.Now()
		defer func() {
			e.metrics.Observe(MetricValidateLatency, time.Since(start))
		}()
	}

	res := e.flows.Validate(ctx, raw, expect)
	if res.Failure != flows.ValidateFailureNone {
		e.metricInc(MetricValidateFailure)
		if res.Failure == flows.ValidateFailureRevoked && res.Claims != nil && res.Claims.Kind.SingleUse() {
			e.metricInc(MetricGrantReplay)
		}
		return nil, mapValidateResult(res)
	}

	e.metricInc(MetricValidateSuccess)
	if res.Claims.Kind.SingleUse() {
		e.metricInc(MetricGrantConsumed)
	}

	return res.Claims, nil
}

// ValidateAccess describes the validateaccess operation and its observable behavior.
//
// ValidateAccess may return an error when input validation, dependency calls, or security checks fail.
// ValidateAccess does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) ValidateAccess(ctx context.Context, raw string) (*Claims, error) {
	return e.Validate(ctx, raw, KindAccess)
}

// Decode describes the decode operation and its observable behavior.
//
// Decode may return an error when input validation, dependency calls, or security checks fail.
// Decode does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// Decode verifies signature, shape, and expiry only; it never touches the
// state store, so revocation is NOT consulted. A revoked token still decodes
// until it expires. Use it where staying up during a store outage matters
// more than immediate revocation, and [Engine.Validate] everywhere else.
func (e *Engine) Decode(raw string) (*Claims, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	return e.codec.Decode(raw)
}

// Refresh describes the refresh operation and its observable behavior.
//
// Refresh may return an error when input validation, dependency calls, or security checks fail.
// Refresh does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// Rotation consumes the presented refresh token before minting its
// replacement, so two concurrent presentations produce exactly one new pair;
// the loser sees [ErrRevoked]. Role and domain material is re-read from the
// identity store, never copied forward from the old claims.
func (e *Engine) Refresh(ctx context.Context, raw string) (*TokenPair, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	res := e.flows.Refresh(ctx, raw)
	if res.Failure != flows.RefreshFailureNone {
		return nil, e.failRefresh(ctx, res)
	}

	e.metricInc(MetricTokenIssued)
	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefreshSuccess, true, res.Claims.Subject, res.Claims.Domain, string(KindRefresh), "", nil, nil)

	return res.Pair, nil
}

// failRefresh maps one refresh flow failure onto the public error taxonomy,
// recording metrics and audit attribution along the way.
func (e *Engine) failRefresh(ctx context.Context, res flows.RefreshResult) error {
	var err error
	event := auditEventRefreshFailure

	switch res.Failure {
	case flows.RefreshFailureDecode:
		err = res.Err
	case flows.RefreshFailureWrongKind:
		err = ErrWrongKind
	case flows.RefreshFailureRevoked:
		err = ErrRevoked
	case flows.RefreshFailureReuse:
		// A consumed nonce presented again is the rotation replay signal.
		event = auditEventRefreshReuse
		e.metricInc(MetricRefreshReplay)
		err = ErrRevoked
	case flows.RefreshFailurePrincipalGone:
		err = ErrRevoked
	case flows.RefreshFailureDomain:
		err = ErrDomainNotAuthorized
	case flows.RefreshFailureStore:
		err = wrapStoreErr(res.Err)
	default:
		err = res.Err
	}

	e.metricInc(MetricRefreshFailure)

	principal, domain := "", ""
	if res.Claims != nil {
		principal, domain = res.Claims.Subject, res.Claims.Domain
	}
	e.emitAudit(ctx, event, false, principal, domain, string(KindRefresh), "", err, nil)

	return err
}

// Revoke describes the revoke operation and its observable behavior.
//
// Revoke may return an error when input validation, dependency calls, or security checks fail.
// Revoke does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// Only the signature gates revocation: a token past its expiry still decodes
// and the call reports success without writing a tombstone, since the token
// is already dead.
func (e *Engine) Revoke(ctx context.Context, raw string) error {
	return e.revoke(ctx, raw, false, auditEventTokenRevoked)
}

// Logout describes the logout operation and its observable behavior.
//
// Logout may return an error when input validation, dependency calls, or security checks fail.
// Logout does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// The access token carries its refresh partner's nonce, so one call
// tombstones both halves of the pair.
func (e *Engine) Logout(ctx context.Context, accessToken string) error {
	return e.revoke(ctx, accessToken, true, auditEventLogout)
}

func (e *Engine) revoke(ctx context.Context, raw string, includePair bool, event string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}

	res := e.flows.Revoke(ctx, raw, includePair)
	switch res.Failure {
	case flows.RevokeFailureNone:
	case flows.RevokeFailureStore:
		err := wrapStoreErr(res.Err)
		e.emitAudit(ctx, event, false, res.Claims.Subject, res.Claims.Domain, string(res.Claims.Kind), "", err, nil)
		return err
	default:
		e.emitAudit(ctx, event, false, "", "", "", "", res.Err, nil)
		return res.Err
	}

	if res.Revoked || res.PairRevoked {
		e.metricInc(MetricRevoke)
	}
	e.emitAudit(ctx, event, true, res.Claims.Subject, res.Claims.Domain, string(res.Claims.Kind), "", nil, func() map[string]string {
		return map[string]string{
			"revoked":      strconv.FormatBool(res.Revoked),
			"pair_revoked": strconv.FormatBool(res.PairRevoked),
		}
	})

	return nil
}

// RevokeAllForPrincipal describes the revokeallforprincipal operation and its observable behavior.
//
// RevokeAllForPrincipal may return an error when input validation, dependency calls, or security checks fail.
// RevokeAllForPrincipal does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// The bump invalidates every outstanding token of every kind for the
// principal; tokens issued after the call carry the new epoch and validate
// normally.
func (e *Engine) RevokeAllForPrincipal(ctx context.Context, principalID string) (uint64, error) {
	if !e.ready() {
		return 0, ErrEngineNotReady
	}
	if principalID == "" {
		return 0, ErrInvalidRequest
	}

	epoch, err := e.flows.RevokeAll(ctx, principalID)
	if err != nil {
		e.emitAudit(ctx, auditEventRevokeAll, false, principalID, "", "", "", err, nil)
		return 0, err
	}

	e.emitAudit(ctx, auditEventRevokeAll, true, principalID, "", "", "", nil, nil)

	return epoch, nil
}

// mapValidateResult converts one classified validation failure into the
// public error taxonomy. Decode failures pass through unchanged: their
// sentinel identity already matches the root taxonomy.
func mapValidateResult(res flows.ValidateResult) error {
	switch res.Failure {
	case flows.ValidateFailureNone:
		return nil
	case flows.ValidateFailureWrongKind:
		return ErrWrongKind
	case flows.ValidateFailureRevoked:
		return ErrRevoked
	case flows.ValidateFailureStore:
		return wrapStoreErr(res.Err)
	default:
		if res.Err != nil {
			return res.Err
		}
		return ErrMalformed
	}
}
