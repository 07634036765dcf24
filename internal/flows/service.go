package flows

import (
	"context"

	"github.com/strayhome/secstate/token"
)

// Service is the centralized flow runner built once by the root engine.
type Service struct {
	deps Deps
}

// New returns a flow service with immutable dependency wiring.
func New(deps Deps) Service {
	return Service{deps: deps}
}

// Initialized reports whether the service has been wired with flow deps.
func (s Service) Initialized() bool {
	return s.deps.Validate.Decode != nil
}

func (s Service) IssueToken(ctx context.Context, req IssueRequest) (string, token.Claims, error) {
	return RunIssueToken(ctx, req, s.deps.Issue)
}

func (s Service) IssuePair(ctx context.Context, rec PrincipalRecord, domain string) (*TokenPair, error) {
	return RunIssuePair(ctx, rec, domain, s.deps.Issue)
}

func (s Service) Authenticate(ctx context.Context, username, password, domain string) (*AuthResult, error) {
	return RunAuthenticate(ctx, username, password, domain, s.deps.Authenticate)
}

func (s Service) Validate(ctx context.Context, raw string, expect token.Kind) ValidateResult {
	return RunValidate(ctx, raw, expect, s.deps.Validate)
}

func (s Service) Refresh(ctx context.Context, raw string) RefreshResult {
	return RunRefresh(ctx, raw, s.deps.Refresh)
}

func (s Service) Revoke(ctx context.Context, raw string, includePair bool) RevokeResult {
	return RunRevoke(ctx, raw, includePair, s.deps.Revoke)
}

func (s Service) RevokeAll(ctx context.Context, principalID string) (uint64, error) {
	return RunRevokeAll(ctx, principalID, s.deps.Revoke)
}

func (s Service) IssueInvitation(ctx context.Context, email, domain, role string) (string, token.Claims, error) {
	return RunIssueInvitation(ctx, email, domain, role, s.deps.Grants)
}

func (s Service) AcceptInvitation(ctx context.Context, raw, password string) (*InvitationGrant, error) {
	return RunAcceptInvitation(ctx, raw, password, s.deps.Grants)
}

func (s Service) IssueReset(ctx context.Context, username string) (string, error) {
	return RunIssueReset(ctx, username, s.deps.Grants)
}

func (s Service) ConfirmReset(ctx context.Context, raw, newPassword string) (*ResetGrant, error) {
	return RunConfirmReset(ctx, raw, newPassword, s.deps.Grants)
}
