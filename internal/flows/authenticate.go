package flows

import (
	"context"
	"errors"
	"time"
)

// AuthResult is the flow-local authentication response shape.
type AuthResult struct {
	PrincipalID string
	Domain      string
	Role        string
	Pair        *TokenPair
}

// AuthMetrics carries metric IDs needed by the authentication flow.
type AuthMetrics struct {
	Success   int
	Failure   int
	Throttled int
	Issued    int
}

// AuthEvents carries audit action names used by the authentication flow.
type AuthEvents struct {
	Success   string
	Failure   string
	Throttled string
}

// AuthErrors carries host-level sentinel errors used by the authentication flow.
type AuthErrors struct {
	EngineNotReady      error
	BadCredentials      error
	Throttled           error
	UnknownDomain       error
	DomainNotAuthorized error
}

// AuthenticateDeps captures password-grant authentication dependencies.
type AuthenticateDeps struct {
	Now                 func() time.Time
	ClientIPFromContext func(context.Context) string

	CheckLoginRate   func(ctx context.Context, identifier, ip string) error
	NoteLoginFailure func(ctx context.Context, identifier, ip string) error
	ResetLoginRate   func(ctx context.Context, identifier, ip string) error

	LookupByUsername func(ctx context.Context, username string) (*PrincipalRecord, error)
	DomainExists     func(ctx context.Context, domain string) (bool, error)

	VerifyPassword func(password, hash string) (bool, error)
	VerifyDummy    func(password string)

	IssuePair func(ctx context.Context, rec PrincipalRecord, domain string) (*TokenPair, error)

	MetricInc func(int)
	EmitAudit func(ctx context.Context, action string, success bool, principal, domain string, err error, fields func() map[string]string)

	Metrics AuthMetrics
	Events  AuthEvents
	Errors  AuthErrors
}

// RunAuthenticate executes the password grant: throttle check, credential
// verification, domain resolution, then pair issuance. Credential failures
// feed the login throttle; domain failures do not, since the password was
// already proven correct.
func RunAuthenticate(ctx context.Context, username, password, requested string, deps AuthenticateDeps) (*AuthResult, error) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = func(context.Context, string, bool, string, string, error, func() map[string]string) {}
	}
	if deps.ClientIPFromContext == nil {
		deps.ClientIPFromContext = func(context.Context) string { return "" }
	}
	if deps.LookupByUsername == nil || deps.VerifyPassword == nil || deps.IssuePair == nil {
		return nil, deps.Errors.EngineNotReady
	}

	ip := deps.ClientIPFromContext(ctx)

	if deps.CheckLoginRate != nil {
		if err := deps.CheckLoginRate(ctx, username, ip); err != nil {
			if errors.Is(err, deps.Errors.Throttled) {
				deps.MetricInc(deps.Metrics.Throttled)
				deps.EmitAudit(ctx, deps.Events.Throttled, false, "", requested, err, func() map[string]string {
					return map[string]string{"identifier": username}
				})
				return nil, err
			}
			deps.EmitAudit(ctx, deps.Events.Failure, false, "", requested, err, func() map[string]string {
				return map[string]string{"identifier": username, "reason": "throttle_unavailable"}
			})
			return nil, err
		}
	}

	if username == "" || password == "" {
		return failCredentials(ctx, username, ip, "", requested, "empty_credentials", deps)
	}

	rec, err := deps.LookupByUsername(ctx, username)
	if err != nil {
		deps.MetricInc(deps.Metrics.Failure)
		deps.EmitAudit(ctx, deps.Events.Failure, false, "", requested, err, func() map[string]string {
			return map[string]string{"identifier": username, "reason": "lookup_failed"}
		})
		return nil, err
	}
	if rec == nil {
		// Burn the same hashing work an existing principal would cost, so
		// response timing does not reveal which usernames exist.
		if deps.VerifyDummy != nil {
			deps.VerifyDummy(password)
		}
		return failCredentials(ctx, username, ip, "", requested, "principal_not_found", deps)
	}

	ok, err := deps.VerifyPassword(password, rec.PasswordHash)
	if err != nil || !ok {
		return failCredentials(ctx, username, ip, rec.ID, requested, "password_mismatch", deps)
	}

	domain := requested
	if domain == "" {
		switch len(rec.Domains) {
		case 1:
			domain = rec.Domains[0]
		case 0:
			return failDomain(ctx, username, rec.ID, requested, "no_domains", deps.Errors.DomainNotAuthorized, deps)
		default:
			return failDomain(ctx, username, rec.ID, requested, "domain_ambiguous", deps.Errors.DomainNotAuthorized, deps)
		}
	} else if !rec.AuthorizedFor(domain) {
		if deps.DomainExists != nil {
			exists, err := deps.DomainExists(ctx, domain)
			if err != nil {
				deps.MetricInc(deps.Metrics.Failure)
				deps.EmitAudit(ctx, deps.Events.Failure, false, rec.ID, domain, err, func() map[string]string {
					return map[string]string{"identifier": username, "reason": "domain_lookup_failed"}
				})
				return nil, err
			}
			if !exists {
				return failDomain(ctx, username, rec.ID, domain, "domain_unknown", deps.Errors.UnknownDomain, deps)
			}
		}
		return failDomain(ctx, username, rec.ID, domain, "domain_not_authorized", deps.Errors.DomainNotAuthorized, deps)
	}

	if deps.ResetLoginRate != nil {
		if err := deps.ResetLoginRate(ctx, username, ip); err != nil {
			deps.EmitAudit(ctx, deps.Events.Failure, false, rec.ID, domain, err, func() map[string]string {
				return map[string]string{"identifier": username, "reason": "reset_limiter_failed"}
			})
			return nil, err
		}
	}

	pair, err := deps.IssuePair(ctx, *rec, domain)
	if err != nil {
		deps.MetricInc(deps.Metrics.Failure)
		deps.EmitAudit(ctx, deps.Events.Failure, false, rec.ID, domain, err, func() map[string]string {
			return map[string]string{"identifier": username, "reason": "issue_failed"}
		})
		return nil, err
	}

	deps.MetricInc(deps.Metrics.Issued)
	deps.MetricInc(deps.Metrics.Success)
	deps.EmitAudit(ctx, deps.Events.Success, true, rec.ID, domain, nil, func() map[string]string {
		return map[string]string{"identifier": username}
	})

	return &AuthResult{
		PrincipalID: rec.ID,
		Domain:      domain,
		Role:        rec.Role,
		Pair:        pair,
	}, nil
}

// failCredentials records one credential failure against the login throttle
// and reports bad credentials. A throttle error takes precedence so a caller
// over budget sees the throttled verdict, not another credential prompt.
func failCredentials(ctx context.Context, identifier, ip, principal, domain, reason string, deps AuthenticateDeps) (*AuthResult, error) {
	if deps.NoteLoginFailure != nil {
		if err := deps.NoteLoginFailure(ctx, identifier, ip); err != nil {
			if errors.Is(err, deps.Errors.Throttled) {
				deps.MetricInc(deps.Metrics.Throttled)
				deps.EmitAudit(ctx, deps.Events.Throttled, false, principal, domain, err, func() map[string]string {
					return map[string]string{"identifier": identifier}
				})
				return nil, err
			}
			deps.EmitAudit(ctx, deps.Events.Failure, false, principal, domain, err, func() map[string]string {
				return map[string]string{"identifier": identifier, "reason": "throttle_unavailable"}
			})
			return nil, err
		}
	}
	deps.MetricInc(deps.Metrics.Failure)
	deps.EmitAudit(ctx, deps.Events.Failure, false, principal, domain, deps.Errors.BadCredentials, func() map[string]string {
		return map[string]string{"identifier": identifier, "reason": reason}
	})
	return nil, deps.Errors.BadCredentials
}

func failDomain(ctx context.Context, identifier, principal, domain, reason string, cause error, deps AuthenticateDeps) (*AuthResult, error) {
	deps.MetricInc(deps.Metrics.Failure)
	deps.EmitAudit(ctx, deps.Events.Failure, false, principal, domain, cause, func() map[string]string {
		return map[string]string{"identifier": identifier, "reason": reason}
	})
	return nil, cause
}
