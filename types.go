package secstate

import (
	"context"
	"time"

	"github.com/strayhome/secstate/internal/flows"
	"github.com/strayhome/secstate/lease"
	"github.com/strayhome/secstate/token"
)

// Kind identifies which of the four token families a token belongs to. The
// kind is covered by the signature, so it cannot be rewritten after issuance.
type Kind = token.Kind

const (
	// KindAccess is an exported constant or variable used by the security-state engine.
	KindAccess = token.KindAccess
	// KindRefresh is an exported constant or variable used by the security-state engine.
	KindRefresh = token.KindRefresh
	// KindInvitation is an exported constant or variable used by the security-state engine.
	KindInvitation = token.KindInvitation
	// KindReset is an exported constant or variable used by the security-state engine.
	KindReset = token.KindReset
)

// Claims is the decoded payload of a verified token: subject, domain, kind,
// epoch, role material, and the nonce used for revocation tracking.
type Claims = token.Claims

// Algorithm selects the HMAC family used to sign tokens.
type Algorithm = token.Algorithm

const (
	// AlgHS256 is an exported constant or variable used by the security-state engine.
	AlgHS256 = token.AlgHS256
	// AlgHS384 is an exported constant or variable used by the security-state engine.
	AlgHS384 = token.AlgHS384
	// AlgHS512 is an exported constant or variable used by the security-state engine.
	AlgHS512 = token.AlgHS512
)

// Principal is the engine's view of one account in the host's identity
// store: a staff member, volunteer, or service identity. The engine never
// persists principals; it only reads them through [IdentityStore].
type Principal struct {
	ID           string
	Username     string
	PasswordHash string
	Role         string
	Permissions  []string
	Domains      []string
}

// AuthorizedFor reports whether the principal may act in domain.
func (p *Principal) AuthorizedFor(domain string) bool {
	if p == nil {
		return false
	}
	for _, d := range p.Domains {
		if d == domain {
			return true
		}
	}
	return false
}

// IdentityStore is the interface callers must implement to integrate
// secstate with their principal database. Lookups return (nil, nil) for a
// principal that does not exist; returning [ErrPrincipalNotFound] is also
// accepted and treated the same way. Any other error is surfaced to the
// caller unchanged.
type IdentityStore interface {
	LookupByUsername(ctx context.Context, username string) (*Principal, error)
	LookupByID(ctx context.Context, principalID string) (*Principal, error)
	DomainExists(ctx context.Context, domain string) (bool, error)
}

// EpochSource tracks the per-principal revocation epoch. Current returns the
// value stamped into new tokens; Bump advances it, invalidating everything
// stamped earlier. The default implementation lives on the engine's cache
// store; provide your own to keep epochs in a durable database instead.
type EpochSource interface {
	Current(ctx context.Context, principalID string) (uint64, error)
	Bump(ctx context.Context, principalID string) (uint64, error)
}

// LoginThrottle bounds failed password grants. Check runs before credential
// verification, NoteFailure records a miss, Reset clears the budget after a
// success. Implementations return [ErrThrottled] when the caller is over
// budget and [ErrStoreUnavailable] when the backing store cannot answer.
type LoginThrottle interface {
	Check(ctx context.Context, identifier, ip string) error
	NoteFailure(ctx context.Context, identifier, ip string) error
	Reset(ctx context.Context, identifier, ip string) error
}

// TokenPair couples a linked access and refresh token from one issuance.
// The access token records its partner's nonce, so revoking by access token
// can tombstone both halves.
type TokenPair = flows.TokenPair

// InvitationGrant is returned by [Engine.AcceptInvitation]: the material the
// host needs to create the invited account. Nothing is persisted by the
// engine itself.
type InvitationGrant = flows.InvitationGrant

// ResetGrant is returned by [Engine.ConfirmPasswordReset]: the principal and
// replacement password hash the host must store.
type ResetGrant = flows.ResetGrant

// IssueRequest describes one token to mint via [Engine.Issue]. TTL overrides
// the configured default for the kind when positive.
type IssueRequest struct {
	Subject     string
	Domain      string
	Kind        Kind
	Role        string
	Permissions []string
	TTL         time.Duration
}

// AuthResult is returned by [Engine.Authenticate]. It carries the resolved
// principal, the domain the grant was scoped to, and the issued pair.
type AuthResult struct {
	PrincipalID string
	Domain      string
	Role        string

	AccessToken   string
	RefreshToken  string
	AccessClaims  Claims
	RefreshClaims Claims
}

// Lease is one held record lease: who holds it and until when.
type Lease = lease.Lease

// LeaseStatus is a point-in-time read of a record's lease slot, returned by
// [Engine.LeaseStatus].
type LeaseStatus = lease.Status
