package secstate

import (
	"context"
)

// Authenticate describes the authenticate operation and its observable behavior.
//
// Authenticate may return an error when input validation, dependency calls, or security checks fail.
// Authenticate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// An empty domain is resolved automatically when the principal is authorized
// for exactly one; otherwise the caller must name it. Credential failures are
// indistinguishable between a wrong password and an unknown username, and
// both count against the login throttle. Domain failures do not: the password
// was already proven correct.
func (e *Engine) Authenticate(ctx context.Context, username, password, domain string) (*AuthResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	res, err := e.flows.Authenticate(ctx, username, password, domain)
	if err != nil {
		return nil, err
	}

	return &AuthResult{
		PrincipalID:   res.PrincipalID,
		Domain:        res.Domain,
		Role:          res.Role,
		AccessToken:   res.Pair.AccessToken,
		RefreshToken:  res.Pair.RefreshToken,
		AccessClaims:  res.Pair.AccessClaims,
		RefreshClaims: res.Pair.RefreshClaims,
	}, nil
}
