package flows

import (
	"context"
	"time"

	"github.com/strayhome/secstate/token"
)

// IssueRequest is the flow-local shape of a single token issuance.
type IssueRequest struct {
	Subject     string
	Domain      string
	Kind        token.Kind
	Role        string
	Permissions []string
	PairNonce   string
	TTL         time.Duration // zero means the configured default for the kind
}

// IssueDeps captures minting dependencies shared by every flow that issues
// tokens.
type IssueDeps struct {
	Now          func() time.Time
	NewNonce     func() string
	Encode       func(token.Claims) (string, error)
	TTLForKind   func(token.Kind) time.Duration
	CurrentEpoch func(ctx context.Context, principal string) (uint64, error)

	EngineNotReadyErr error
}

func (d IssueDeps) ready() bool {
	return d.NewNonce != nil && d.Encode != nil && d.TTLForKind != nil
}

// mint stamps and signs one claim set. Epoch reads happen in the callers so
// a pair issuance hits the store once, not twice.
func mint(req IssueRequest, epoch uint64, deps IssueDeps) (string, token.Claims, error) {
	claims := token.Claims{
		Domain:      req.Domain,
		Kind:        req.Kind,
		Epoch:       epoch,
		Role:        req.Role,
		Permissions: req.Permissions,
		PairNonce:   req.PairNonce,
	}
	claims.Subject = req.Subject
	claims.ID = deps.NewNonce()

	ttl := req.TTL
	if ttl <= 0 {
		ttl = deps.TTLForKind(req.Kind)
	}
	token.Stamp(&claims, deps.Now(), ttl)

	signed, err := deps.Encode(claims)
	if err != nil {
		return "", token.Claims{}, err
	}
	return signed, claims, nil
}

// RunIssueToken mints one token of the requested kind. The subject's current
// epoch is stamped into the claims at issue time, so a later bump invalidates
// the token without any per-token bookkeeping.
func RunIssueToken(ctx context.Context, req IssueRequest, deps IssueDeps) (string, token.Claims, error) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if !deps.ready() {
		return "", token.Claims{}, deps.EngineNotReadyErr
	}

	var epoch uint64
	if deps.CurrentEpoch != nil {
		current, err := deps.CurrentEpoch(ctx, req.Subject)
		if err != nil {
			return "", token.Claims{}, err
		}
		epoch = current
	}
	return mint(req, epoch, deps)
}

// RunIssuePair mints a refresh token and an access token bound to it. Both
// carry the principal's claims material; the access token records the refresh
// nonce so the pair can be tombstoned together on revocation.
func RunIssuePair(ctx context.Context, rec PrincipalRecord, domain string, deps IssueDeps) (*TokenPair, error) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if !deps.ready() {
		return nil, deps.EngineNotReadyErr
	}

	var epoch uint64
	if deps.CurrentEpoch != nil {
		current, err := deps.CurrentEpoch(ctx, rec.ID)
		if err != nil {
			return nil, err
		}
		epoch = current
	}

	refresh, refreshClaims, err := mint(IssueRequest{
		Subject:     rec.ID,
		Domain:      domain,
		Kind:        token.KindRefresh,
		Role:        rec.Role,
		Permissions: rec.Permissions,
	}, epoch, deps)
	if err != nil {
		return nil, err
	}

	access, accessClaims, err := mint(IssueRequest{
		Subject:     rec.ID,
		Domain:      domain,
		Kind:        token.KindAccess,
		Role:        rec.Role,
		Permissions: rec.Permissions,
		PairNonce:   refreshClaims.Nonce(),
	}, epoch, deps)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:   access,
		RefreshToken:  refresh,
		AccessClaims:  accessClaims,
		RefreshClaims: refreshClaims,
	}, nil
}
