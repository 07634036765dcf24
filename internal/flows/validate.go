package flows

import (
	"context"
	"errors"
	"time"

	"github.com/strayhome/secstate/cache"
	"github.com/strayhome/secstate/token"
)

// ValidateFailureKind classifies validation failures for root-level mapping.
type ValidateFailureKind int

const (
	ValidateFailureNone ValidateFailureKind = iota
	ValidateFailureMalformed
	ValidateFailureExpired
	ValidateFailureWrongKind
	ValidateFailureRevoked
	ValidateFailureStore
)

// ValidateResult returns the decoded claims on success or a classified
// failure. Claims may be set alongside a failure when the token decoded but
// was rejected, so the root engine can still attribute the attempt.
type ValidateResult struct {
	Failure ValidateFailureKind
	Err     error
	Claims  *token.Claims
}

// ValidateDenylist is the tombstone surface validation consults.
type ValidateDenylist interface {
	Contains(ctx context.Context, nonce string) (bool, error)
	Consume(ctx context.Context, nonce string, ttl time.Duration) (bool, error)
}

// ValidateDeps captures token validation dependencies.
type ValidateDeps struct {
	Decode       func(string) (*token.Claims, error)
	Now          func() time.Time
	Denylist     ValidateDenylist
	CurrentEpoch func(ctx context.Context, principal string) (uint64, error)
	NoteRetry    func()
}

// RunValidate checks one token end to end: signature and shape, expected
// kind, expiry, denylist, and epoch. Single-use kinds are consumed on the
// way through, so a second validation of the same invitation or reset token
// reports a revoked token.
func RunValidate(ctx context.Context, raw string, expect token.Kind, deps ValidateDeps) ValidateResult {
	if deps.Now == nil {
		deps.Now = time.Now
	}

	claims, err := deps.Decode(raw)
	if err != nil {
		if errors.Is(err, token.ErrExpired) {
			return ValidateResult{Failure: ValidateFailureExpired, Err: err, Claims: claims}
		}
		return ValidateResult{Failure: ValidateFailureMalformed, Err: err}
	}

	if expect != "" && claims.Kind != expect {
		return ValidateResult{Failure: ValidateFailureWrongKind, Claims: claims}
	}

	denied, err := deps.Denylist.Contains(ctx, claims.Nonce())
	if err != nil && errors.Is(err, cache.ErrUnavailable) {
		if deps.NoteRetry != nil {
			deps.NoteRetry()
		}
		denied, err = deps.Denylist.Contains(ctx, claims.Nonce())
	}
	if err != nil {
		return ValidateResult{Failure: ValidateFailureStore, Err: err, Claims: claims}
	}
	if denied {
		return ValidateResult{Failure: ValidateFailureRevoked, Claims: claims}
	}

	if deps.CurrentEpoch != nil {
		current, err := deps.CurrentEpoch(ctx, claims.Subject)
		if err != nil {
			return ValidateResult{Failure: ValidateFailureStore, Err: err, Claims: claims}
		}
		if claims.Epoch < current {
			return ValidateResult{Failure: ValidateFailureRevoked, Claims: claims}
		}
	}

	if claims.Kind.SingleUse() {
		ttl := claims.Remaining(deps.Now())
		won, err := deps.Denylist.Consume(ctx, claims.Nonce(), ttl)
		if err != nil && errors.Is(err, cache.ErrUnavailable) {
			if deps.NoteRetry != nil {
				deps.NoteRetry()
			}
			won, err = deps.Denylist.Consume(ctx, claims.Nonce(), ttl)
		}
		if err != nil {
			return ValidateResult{Failure: ValidateFailureStore, Err: err, Claims: claims}
		}
		if !won {
			return ValidateResult{Failure: ValidateFailureRevoked, Claims: claims}
		}
	}

	return ValidateResult{Claims: claims}
}
