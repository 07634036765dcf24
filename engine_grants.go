package secstate

import (
	"context"
)

// IssueInvitation describes the issueinvitation operation and its observable behavior.
//
// IssueInvitation may return an error when input validation, dependency calls, or security checks fail.
// IssueInvitation does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// The returned token is single-use and bound to the named domain and role.
// Delivery is the caller's concern; nothing is persisted until the invitee
// accepts.
func (e *Engine) IssueInvitation(ctx context.Context, email, domain, role string) (string, Claims, error) {
	if !e.ready() {
		return "", Claims{}, ErrEngineNotReady
	}

	return e.flows.IssueInvitation(ctx, email, domain, role)
}

// AcceptInvitation describes the acceptinvitation operation and its observable behavior.
//
// AcceptInvitation may return an error when input validation, dependency calls, or security checks fail.
// AcceptInvitation does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// The invitation token is consumed atomically on success, so a second accept
// with the same token reports [ErrRevoked] even under concurrent calls. The
// caller creates the account from the returned grant.
func (e *Engine) AcceptInvitation(ctx context.Context, invitationToken, password string) (*InvitationGrant, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	return e.flows.AcceptInvitation(ctx, invitationToken, password)
}

// RequestPasswordReset describes the requestpasswordreset operation and its observable behavior.
//
// RequestPasswordReset may return an error when input validation, dependency calls, or security checks fail.
// RequestPasswordReset does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// An unknown username still yields a syntactically valid token, bound to a
// subject no principal has, so callers cannot probe which accounts exist.
func (e *Engine) RequestPasswordReset(ctx context.Context, username string) (string, error) {
	if !e.ready() {
		return "", ErrEngineNotReady
	}

	return e.flows.IssueReset(ctx, username)
}

// ConfirmPasswordReset describes the confirmpasswordreset operation and its observable behavior.
//
// ConfirmPasswordReset may return an error when input validation, dependency calls, or security checks fail.
// ConfirmPasswordReset does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// The reset token is consumed atomically, the replacement password is hashed,
// and the principal's epoch is bumped so every token issued under the old
// credential dies with it. The caller persists the returned hash.
func (e *Engine) ConfirmPasswordReset(ctx context.Context, resetToken, newPassword string) (*ResetGrant, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	return e.flows.ConfirmReset(ctx, resetToken, newPassword)
}
