package test

import (
	"context"
	"net/http"
	"testing"

	"github.com/strayhome/secstate"
	"github.com/strayhome/secstate/middleware"
)

// This test intentionally guards public API compile-compat for consumers.
func TestPublicAPISurfaceCompile(t *testing.T) {
	_ = secstate.New

	var _ *secstate.Engine
	var _ secstate.Config
	var _ secstate.AuthResult
	var _ *secstate.TokenPair
	var _ secstate.IssueRequest
	var _ *secstate.Claims
	var _ secstate.Kind
	var _ secstate.Principal
	var _ secstate.IdentityStore
	var _ secstate.EpochSource
	var _ secstate.LoginThrottle
	var _ secstate.AuditSink
	var _ secstate.AuditEvent
	var _ *secstate.InvitationGrant
	var _ *secstate.ResetGrant
	var _ *secstate.Lease
	var _ secstate.LeaseStatus
	var _ *secstate.AlreadyLockedError
	var _ secstate.MetricsSnapshot

	var _ error = secstate.ErrBadCredentials
	var _ error = secstate.ErrThrottled
	var _ error = secstate.ErrMalformed
	var _ error = secstate.ErrExpired
	var _ error = secstate.ErrRevoked
	var _ error = secstate.ErrWrongKind
	var _ error = secstate.ErrUnknownDomain
	var _ error = secstate.ErrDomainNotAuthorized
	var _ error = secstate.ErrStoreUnavailable
	var _ error = secstate.ErrAlreadyLocked
	var _ error = secstate.ErrNotHolder
	var _ error = secstate.ErrLeaseNotHeld

	var _ func(*secstate.Engine) func(http.Handler) http.Handler = middleware.Guard
	var _ func(*secstate.Engine, secstate.Kind) func(http.Handler) http.Handler = middleware.RequireKind
	var _ func(*secstate.Engine) func(http.Handler) http.Handler = middleware.RequireSigned
	var _ func(*secstate.Engine, func(*http.Request) string) func(http.Handler) http.Handler = middleware.RequireLease

	var _ func(*secstate.Engine, context.Context, string, string, string) (*secstate.AuthResult, error) = (*secstate.Engine).Authenticate
	var _ func(*secstate.Engine, context.Context, string) (*secstate.TokenPair, error) = (*secstate.Engine).Refresh
	var _ func(*secstate.Engine, context.Context, string, secstate.Kind) (*secstate.Claims, error) = (*secstate.Engine).Validate
	var _ func(*secstate.Engine, string) (*secstate.Claims, error) = (*secstate.Engine).Decode
	var _ func(*secstate.Engine, context.Context, string) error = (*secstate.Engine).Logout
	var _ func(*secstate.Engine, context.Context, string) error = (*secstate.Engine).Revoke
	var _ func(*secstate.Engine, context.Context, string) (uint64, error) = (*secstate.Engine).RevokeAllForPrincipal
	var _ func(*secstate.Engine, context.Context, string, string) (*secstate.Lease, error) = (*secstate.Engine).AcquireLease
	var _ func(*secstate.Engine, context.Context, string, string) (*secstate.Lease, error) = (*secstate.Engine).RenewLease
	var _ func(*secstate.Engine, context.Context, string, string) error = (*secstate.Engine).ReleaseLease
	var _ func(*secstate.Engine, context.Context, string) (secstate.LeaseStatus, error) = (*secstate.Engine).LeaseStatus
}
