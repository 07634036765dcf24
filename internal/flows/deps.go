package flows

import "github.com/strayhome/secstate/token"

// Deps groups flow dependency sets. The root engine builds this once and
// delegates request methods to the matching flow implementation.
type Deps struct {
	Issue        IssueDeps
	Authenticate AuthenticateDeps
	Validate     ValidateDeps
	Refresh      RefreshDeps
	Revoke       RevokeDeps
	Grants       GrantDeps
}

// PrincipalRecord is the flow-local identity model. The root engine converts
// its public principal type into this shape when wiring flow deps, so flows
// never import the root package.
type PrincipalRecord struct {
	ID           string
	Username     string
	PasswordHash string
	Role         string
	Permissions  []string
	Domains      []string
}

// AuthorizedFor reports whether the record lists domain among the shelters
// the principal may act in.
func (r PrincipalRecord) AuthorizedFor(domain string) bool {
	for _, d := range r.Domains {
		if d == domain {
			return true
		}
	}
	return false
}

// TokenPair couples a linked access and refresh token. The access token
// carries the refresh token's nonce, so revoking by access token can
// tombstone both halves.
type TokenPair struct {
	AccessToken   string
	RefreshToken  string
	AccessClaims  token.Claims
	RefreshClaims token.Claims
}
