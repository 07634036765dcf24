package flows

import (
	"context"
	"errors"
	"time"

	"github.com/strayhome/secstate/cache"
	"github.com/strayhome/secstate/token"
)

// RefreshFailureKind classifies refresh flow failures for root-level mapping.
type RefreshFailureKind int

const (
	RefreshFailureNone RefreshFailureKind = iota
	RefreshFailureDecode
	RefreshFailureWrongKind
	RefreshFailureRevoked
	RefreshFailureReuse
	RefreshFailurePrincipalGone
	RefreshFailureDomain
	RefreshFailureStore
	RefreshFailureIssue
)

// RefreshResult carries either the rotated token pair or failure metadata.
// Claims are the presented refresh token's claims whenever decoding got far
// enough to produce them.
type RefreshResult struct {
	Failure RefreshFailureKind
	Err     error
	Claims  *token.Claims
	Pair    *TokenPair
}

// RefreshDenylist is the tombstone surface rotation consumes through.
type RefreshDenylist interface {
	Contains(ctx context.Context, nonce string) (bool, error)
	Consume(ctx context.Context, nonce string, ttl time.Duration) (bool, error)
}

// RefreshDeps captures refresh rotation dependencies.
type RefreshDeps struct {
	Decode       func(string) (*token.Claims, error)
	Now          func() time.Time
	Denylist     RefreshDenylist
	CurrentEpoch func(ctx context.Context, principal string) (uint64, error)
	LookupByID   func(ctx context.Context, principalID string) (*PrincipalRecord, error)
	IssuePair    func(ctx context.Context, rec PrincipalRecord, domain string) (*TokenPair, error)
	NoteRetry    func()
}

// RunRefresh rotates one refresh token: the presented nonce is consumed
// before the replacement pair is minted, so two concurrent presentations of
// the same token produce exactly one winner. The loser reports reuse, which
// the root engine surfaces as a revoked token.
func RunRefresh(ctx context.Context, raw string, deps RefreshDeps) RefreshResult {
	if deps.Now == nil {
		deps.Now = time.Now
	}

	claims, err := deps.Decode(raw)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureDecode, Err: err, Claims: claims}
	}
	if claims.Kind != token.KindRefresh {
		return RefreshResult{Failure: RefreshFailureWrongKind, Claims: claims}
	}

	denied, err := deps.Denylist.Contains(ctx, claims.Nonce())
	if err != nil && errors.Is(err, cache.ErrUnavailable) {
		if deps.NoteRetry != nil {
			deps.NoteRetry()
		}
		denied, err = deps.Denylist.Contains(ctx, claims.Nonce())
	}
	if err != nil {
		return RefreshResult{Failure: RefreshFailureStore, Err: err, Claims: claims}
	}
	if denied {
		return RefreshResult{Failure: RefreshFailureRevoked, Claims: claims}
	}

	if deps.CurrentEpoch != nil {
		current, err := deps.CurrentEpoch(ctx, claims.Subject)
		if err != nil {
			return RefreshResult{Failure: RefreshFailureStore, Err: err, Claims: claims}
		}
		if claims.Epoch < current {
			return RefreshResult{Failure: RefreshFailureRevoked, Claims: claims}
		}
	}

	// Re-read the principal so rotation picks up role and authorization
	// changes instead of copying stale claims forward.
	rec, err := deps.LookupByID(ctx, claims.Subject)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureStore, Err: err, Claims: claims}
	}
	if rec == nil {
		return RefreshResult{Failure: RefreshFailurePrincipalGone, Claims: claims}
	}
	if !rec.AuthorizedFor(claims.Domain) {
		return RefreshResult{Failure: RefreshFailureDomain, Claims: claims}
	}

	won, err := deps.Denylist.Consume(ctx, claims.Nonce(), claims.Remaining(deps.Now()))
	if err != nil && errors.Is(err, cache.ErrUnavailable) {
		if deps.NoteRetry != nil {
			deps.NoteRetry()
		}
		won, err = deps.Denylist.Consume(ctx, claims.Nonce(), claims.Remaining(deps.Now()))
	}
	if err != nil {
		return RefreshResult{Failure: RefreshFailureStore, Err: err, Claims: claims}
	}
	if !won {
		return RefreshResult{Failure: RefreshFailureReuse, Claims: claims}
	}

	pair, err := deps.IssuePair(ctx, *rec, claims.Domain)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureIssue, Err: err, Claims: claims}
	}

	return RefreshResult{Claims: claims, Pair: pair}
}
