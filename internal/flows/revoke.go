package flows

import (
	"context"
	"errors"
	"time"

	"github.com/strayhome/secstate/token"
)

// RevokeFailureKind classifies revocation failures for root-level mapping.
type RevokeFailureKind int

const (
	RevokeFailureNone RevokeFailureKind = iota
	RevokeFailureDecode
	RevokeFailureStore
)

// RevokeResult reports what was tombstoned. Revoked is false when the
// presented token had already expired, which makes revocation a no-op.
type RevokeResult struct {
	Failure     RevokeFailureKind
	Err         error
	Claims      *token.Claims
	Revoked     bool
	PairRevoked bool
}

// RevokeDenylist is the tombstone surface revocation writes through.
type RevokeDenylist interface {
	Revoke(ctx context.Context, nonce string, ttl time.Duration) error
}

// RevokeDeps captures revocation dependencies. PairTTL bounds the partner
// token's lifetime when revoking a linked pair.
type RevokeDeps struct {
	Decode    func(string) (*token.Claims, error)
	Now       func() time.Time
	Denylist  RevokeDenylist
	BumpEpoch func(ctx context.Context, principal string) (uint64, error)
	PairTTL   time.Duration
	Leeway    time.Duration
}

// RunRevoke tombstones one token for the rest of its validity window. Only
// the signature gates revocation; an expired token is already dead, so the
// flow skips its tombstone but still handles the linked pair, which may
// outlive the presented half.
func RunRevoke(ctx context.Context, raw string, includePair bool, deps RevokeDeps) RevokeResult {
	if deps.Now == nil {
		deps.Now = time.Now
	}

	claims, err := deps.Decode(raw)
	if err != nil && !errors.Is(err, token.ErrExpired) {
		return RevokeResult{Failure: RevokeFailureDecode, Err: err}
	}
	expired := err != nil

	now := deps.Now()
	result := RevokeResult{Claims: claims}

	if !expired {
		ttl := claims.Remaining(now) + deps.Leeway
		if ttl > 0 {
			if err := deps.Denylist.Revoke(ctx, claims.Nonce(), ttl); err != nil {
				return RevokeResult{Failure: RevokeFailureStore, Err: err, Claims: claims}
			}
			result.Revoked = true
		}
	}

	if includePair && claims.PairNonce != "" {
		// The partner was stamped with the same iat, so its remaining
		// lifetime is bounded by PairTTL measured from that instant.
		ttl := claims.IssuedAt.Time.Add(deps.PairTTL).Sub(now) + deps.Leeway
		if ttl > 0 {
			if err := deps.Denylist.Revoke(ctx, claims.PairNonce, ttl); err != nil {
				return RevokeResult{Failure: RevokeFailureStore, Err: err, Claims: claims}
			}
			result.PairRevoked = true
		}
	}

	return result
}

// RunRevokeAll bumps the principal's epoch, invalidating every token stamped
// before the bump regardless of kind.
func RunRevokeAll(ctx context.Context, principalID string, deps RevokeDeps) (uint64, error) {
	return deps.BumpEpoch(ctx, principalID)
}
