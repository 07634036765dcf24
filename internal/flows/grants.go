package flows

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/strayhome/secstate/token"
)

// InvitationGrant is what a consumed invitation token authorizes: one
// account creation with the invited role inside the invited shelter.
type InvitationGrant struct {
	Email        string
	Domain       string
	Role         string
	PasswordHash string
}

// ResetGrant is what a consumed reset token authorizes: one credential
// replacement for the principal.
type ResetGrant struct {
	PrincipalID  string
	PasswordHash string
}

// GrantMetrics carries metric IDs needed by the grant flows.
type GrantMetrics struct {
	Issued   int
	Consumed int
	Replay   int
}

// GrantEvents carries audit action names used by the grant flows.
type GrantEvents struct {
	InvitationIssued   string
	InvitationAccepted string
	ResetIssued        string
	ResetConfirmed     string
}

// GrantErrors carries host-level sentinel errors used by the grant flows.
type GrantErrors struct {
	EngineNotReady error
	InvalidRequest error
	UnknownDomain  error
	PasswordPolicy error
	PrincipalGone  error
}

// GrantDeps captures invitation and reset flow dependencies.
type GrantDeps struct {
	MinPasswordLength int

	Now func() time.Time

	LookupByUsername func(ctx context.Context, username string) (*PrincipalRecord, error)
	LookupByID       func(ctx context.Context, principalID string) (*PrincipalRecord, error)
	DomainExists     func(ctx context.Context, domain string) (bool, error)

	IssueToken         func(ctx context.Context, req IssueRequest) (string, token.Claims, error)
	Validate           func(ctx context.Context, raw string, expect token.Kind) ValidateResult
	MapValidateFailure func(ValidateResult) error
	HashPassword       func(password string) (string, error)
	BumpEpoch          func(ctx context.Context, principal string) (uint64, error)
	NewDecoySubject    func() string

	MetricInc func(int)
	EmitAudit func(ctx context.Context, action string, success bool, principal, domain string, err error, fields func() map[string]string)

	Metrics GrantMetrics
	Events  GrantEvents
	Errors  GrantErrors
}

func normalizeGrantDeps(deps *GrantDeps) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = func(context.Context, string, bool, string, string, error, func() map[string]string) {}
	}
}

// RunIssueInvitation mints a single-use invitation token for email, bound to
// the named shelter and role. The host delivers the token; nothing is
// persisted until the invitee accepts.
func RunIssueInvitation(ctx context.Context, email, domain, role string, deps GrantDeps) (string, token.Claims, error) {
	normalizeGrantDeps(&deps)
	if deps.IssueToken == nil || deps.DomainExists == nil {
		return "", token.Claims{}, deps.Errors.EngineNotReady
	}

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || domain == "" || role == "" {
		return "", token.Claims{}, deps.Errors.InvalidRequest
	}

	exists, err := deps.DomainExists(ctx, domain)
	if err != nil {
		deps.EmitAudit(ctx, deps.Events.InvitationIssued, false, "", domain, err, func() map[string]string {
			return map[string]string{"email": email, "reason": "domain_lookup_failed"}
		})
		return "", token.Claims{}, err
	}
	if !exists {
		deps.EmitAudit(ctx, deps.Events.InvitationIssued, false, "", domain, deps.Errors.UnknownDomain, func() map[string]string {
			return map[string]string{"email": email, "reason": "domain_unknown"}
		})
		return "", token.Claims{}, deps.Errors.UnknownDomain
	}

	signed, claims, err := deps.IssueToken(ctx, IssueRequest{
		Subject: email,
		Domain:  domain,
		Kind:    token.KindInvitation,
		Role:    role,
	})
	if err != nil {
		deps.EmitAudit(ctx, deps.Events.InvitationIssued, false, "", domain, err, func() map[string]string {
			return map[string]string{"email": email}
		})
		return "", token.Claims{}, err
	}

	deps.MetricInc(deps.Metrics.Issued)
	deps.EmitAudit(ctx, deps.Events.InvitationIssued, true, "", domain, nil, func() map[string]string {
		return map[string]string{"email": email, "role": role}
	})
	return signed, claims, nil
}

// RunAcceptInvitation consumes an invitation token and returns the grant the
// host needs to create the account. The chosen password is hashed here so
// the host never handles raw credential material beyond this call.
func RunAcceptInvitation(ctx context.Context, raw, password string, deps GrantDeps) (*InvitationGrant, error) {
	normalizeGrantDeps(&deps)
	if deps.Validate == nil || deps.MapValidateFailure == nil || deps.HashPassword == nil {
		return nil, deps.Errors.EngineNotReady
	}
	if len(password) < deps.MinPasswordLength {
		return nil, deps.Errors.PasswordPolicy
	}

	res := deps.Validate(ctx, raw, token.KindInvitation)
	if res.Failure != ValidateFailureNone {
		err := deps.MapValidateFailure(res)
		if res.Failure == ValidateFailureRevoked {
			deps.MetricInc(deps.Metrics.Replay)
		}
		deps.EmitAudit(ctx, deps.Events.InvitationAccepted, false, grantSubject(res.Claims), grantDomain(res.Claims), err, nil)
		return nil, err
	}

	hash, err := deps.HashPassword(password)
	if err != nil {
		deps.EmitAudit(ctx, deps.Events.InvitationAccepted, false, res.Claims.Subject, res.Claims.Domain, err, func() map[string]string {
			return map[string]string{"reason": "hash_failed"}
		})
		return nil, err
	}

	deps.MetricInc(deps.Metrics.Consumed)
	deps.EmitAudit(ctx, deps.Events.InvitationAccepted, true, res.Claims.Subject, res.Claims.Domain, nil, func() map[string]string {
		return map[string]string{"role": res.Claims.Role}
	})
	return &InvitationGrant{
		Email:        res.Claims.Subject,
		Domain:       res.Claims.Domain,
		Role:         res.Claims.Role,
		PasswordHash: hash,
	}, nil
}

// RunIssueReset mints a single-use reset token for the named principal. An
// unknown username yields a decoy token bound to a subject that matches no
// principal, so callers cannot probe which usernames exist.
func RunIssueReset(ctx context.Context, username string, deps GrantDeps) (string, error) {
	normalizeGrantDeps(&deps)
	if deps.IssueToken == nil || deps.LookupByUsername == nil || deps.NewDecoySubject == nil {
		return "", deps.Errors.EngineNotReady
	}

	username = strings.TrimSpace(username)
	if username == "" {
		return "", deps.Errors.InvalidRequest
	}

	rec, err := deps.LookupByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", err
		}
		deps.EmitAudit(ctx, deps.Events.ResetIssued, false, "", "", err, func() map[string]string {
			return map[string]string{"identifier": username, "reason": "lookup_failed"}
		})
		return "", err
	}

	subject := ""
	decoy := rec == nil
	if decoy {
		subject = deps.NewDecoySubject()
	} else {
		subject = rec.ID
	}

	signed, _, err := deps.IssueToken(ctx, IssueRequest{
		Subject: subject,
		Kind:    token.KindReset,
	})
	if err != nil {
		deps.EmitAudit(ctx, deps.Events.ResetIssued, false, subject, "", err, func() map[string]string {
			return map[string]string{"identifier": username}
		})
		return "", err
	}

	deps.MetricInc(deps.Metrics.Issued)
	deps.EmitAudit(ctx, deps.Events.ResetIssued, true, subject, "", nil, func() map[string]string {
		fields := map[string]string{"identifier": username}
		if decoy {
			fields["enumeration_safe"] = "true"
		}
		return fields
	})
	return signed, nil
}

// RunConfirmReset consumes a reset token, hashes the replacement password,
// and bumps the principal's epoch so every outstanding token dies with the
// old credential.
func RunConfirmReset(ctx context.Context, raw, newPassword string, deps GrantDeps) (*ResetGrant, error) {
	normalizeGrantDeps(&deps)
	if deps.Validate == nil || deps.MapValidateFailure == nil || deps.HashPassword == nil ||
		deps.LookupByID == nil || deps.BumpEpoch == nil {
		return nil, deps.Errors.EngineNotReady
	}
	if len(newPassword) < deps.MinPasswordLength {
		return nil, deps.Errors.PasswordPolicy
	}

	res := deps.Validate(ctx, raw, token.KindReset)
	if res.Failure != ValidateFailureNone {
		err := deps.MapValidateFailure(res)
		if res.Failure == ValidateFailureRevoked {
			deps.MetricInc(deps.Metrics.Replay)
		}
		deps.EmitAudit(ctx, deps.Events.ResetConfirmed, false, grantSubject(res.Claims), "", err, nil)
		return nil, err
	}

	rec, err := deps.LookupByID(ctx, res.Claims.Subject)
	if err != nil {
		deps.EmitAudit(ctx, deps.Events.ResetConfirmed, false, res.Claims.Subject, "", err, func() map[string]string {
			return map[string]string{"reason": "lookup_failed"}
		})
		return nil, err
	}
	if rec == nil {
		// Decoy tokens land here: valid signature, no principal behind it.
		deps.EmitAudit(ctx, deps.Events.ResetConfirmed, false, res.Claims.Subject, "", deps.Errors.PrincipalGone, func() map[string]string {
			return map[string]string{"reason": "principal_not_found"}
		})
		return nil, deps.Errors.PrincipalGone
	}

	hash, err := deps.HashPassword(newPassword)
	if err != nil {
		deps.EmitAudit(ctx, deps.Events.ResetConfirmed, false, rec.ID, "", err, func() map[string]string {
			return map[string]string{"reason": "hash_failed"}
		})
		return nil, err
	}

	if _, err := deps.BumpEpoch(ctx, rec.ID); err != nil {
		deps.EmitAudit(ctx, deps.Events.ResetConfirmed, false, rec.ID, "", err, func() map[string]string {
			return map[string]string{"reason": "epoch_bump_failed"}
		})
		return nil, err
	}

	deps.MetricInc(deps.Metrics.Consumed)
	deps.EmitAudit(ctx, deps.Events.ResetConfirmed, true, rec.ID, "", nil, nil)
	return &ResetGrant{
		PrincipalID:  rec.ID,
		PasswordHash: hash,
	}, nil
}

func grantSubject(c *token.Claims) string {
	if c == nil {
		return ""
	}
	return c.Subject
}

func grantDomain(c *token.Claims) string {
	if c == nil {
		return ""
	}
	return c.Domain
}
