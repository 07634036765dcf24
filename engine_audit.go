package secstate

import (
	"context"
	"errors"
	"time"
)

const (
	auditEventLoginSuccess       = "login_success"
	auditEventLoginFailure       = "login_failure"
	auditEventLoginThrottled     = "login_throttled"
	auditEventTokenIssued        = "token_issued"
	auditEventTokenRevoked       = "token_revoked"
	auditEventRefreshSuccess     = "refresh_success"
	auditEventRefreshFailure     = "refresh_failure"
	auditEventRefreshReuse       = "refresh_reuse_detected"
	auditEventLogout             = "logout"
	auditEventRevokeAll          = "revoke_all"
	auditEventInvitationIssued   = "invitation_issued"
	auditEventInvitationAccepted = "invitation_accepted"
	auditEventResetRequest       = "password_reset_request"
	auditEventResetConfirm       = "password_reset_confirm"
	auditEventLeaseAcquired      = "lease_acquired"
	auditEventLeaseConflict      = "lease_conflict"
	auditEventLeaseRenewed       = "lease_renewed"
	auditEventLeaseReleased      = "lease_released"
)

// AuditErrorCode defines a public type used by secstate APIs.
//
// AuditErrorCode instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditErrorCode string

const (
	auditErrBadCredentials      AuditErrorCode = "invalid_credentials"
	auditErrThrottled           AuditErrorCode = "rate_limited"
	auditErrMalformed           AuditErrorCode = "token_malformed"
	auditErrExpired             AuditErrorCode = "token_expired"
	auditErrRevoked             AuditErrorCode = "token_revoked"
	auditErrWrongKind           AuditErrorCode = "wrong_token_kind"
	auditErrUnknownDomain       AuditErrorCode = "unknown_domain"
	auditErrDomainNotAuthorized AuditErrorCode = "domain_not_authorized"
	auditErrPrincipalNotFound   AuditErrorCode = "principal_not_found"
	auditErrInvalidRequest      AuditErrorCode = "invalid_request"
	auditErrPasswordPolicy      AuditErrorCode = "password_policy"
	auditErrLeaseConflict       AuditErrorCode = "lease_conflict"
	auditErrLeaseNotHolder      AuditErrorCode = "lease_not_holder"
	auditErrLeaseNotHeld        AuditErrorCode = "lease_not_held"
	auditErrLeaseCorrupt        AuditErrorCode = "lease_record_corrupt"
	auditErrNotReady            AuditErrorCode = "engine_not_ready"
	auditErrUnavailable         AuditErrorCode = "backend_unavailable"
	auditErrInternal            AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	action string,
	success bool,
	principal string,
	domain string,
	tokenKind string,
	recordID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	now := time.Now
	if e.now != nil {
		now = e.now
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: now().UTC(),
		Action:    action,
		Success:   success,
		Principal: principal,
		Domain:    domain,
		TokenKind: tokenKind,
		RecordID:  recordID,
		IP:        clientIPFromContext(ctx),
		RequestID: requestIDFromContext(ctx),
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

// flowEmitAudit adapts emitAudit to the narrower shape flow packages carry.
// Flows never attribute events to a token kind or a record, so those fields
// stay empty here.
func (e *Engine) flowEmitAudit(
	ctx context.Context,
	action string,
	success bool,
	principal string,
	domain string,
	err error,
	fields func() map[string]string,
) {
	e.emitAudit(ctx, action, success, principal, domain, "", "", err, fields)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrBadCredentials):
		return auditErrBadCredentials
	case errors.Is(err, ErrThrottled):
		return auditErrThrottled
	case errors.Is(err, ErrExpired):
		return auditErrExpired
	case errors.Is(err, ErrRevoked):
		return auditErrRevoked
	case errors.Is(err, ErrWrongKind):
		return auditErrWrongKind
	case errors.Is(err, ErrMalformed),
		errors.Is(err, ErrUnsupportedAlgorithm):
		return auditErrMalformed
	case errors.Is(err, ErrUnknownDomain):
		return auditErrUnknownDomain
	case errors.Is(err, ErrDomainNotAuthorized):
		return auditErrDomainNotAuthorized
	case errors.Is(err, ErrPrincipalNotFound):
		return auditErrPrincipalNotFound
	case errors.Is(err, ErrInvalidRequest):
		return auditErrInvalidRequest
	case errors.Is(err, ErrPasswordPolicy):
		return auditErrPasswordPolicy
	case errors.Is(err, ErrAlreadyLocked):
		return auditErrLeaseConflict
	case errors.Is(err, ErrNotHolder):
		return auditErrLeaseNotHolder
	case errors.Is(err, ErrLeaseNotHeld):
		return auditErrLeaseNotHeld
	case errors.Is(err, ErrLeaseRecordCorrupt):
		return auditErrLeaseCorrupt
	case errors.Is(err, ErrEngineNotReady):
		return auditErrNotReady
	case errors.Is(err, ErrStoreUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
