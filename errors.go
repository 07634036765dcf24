package secstate

import (
	"errors"

	"github.com/strayhome/secstate/lease"
	"github.com/strayhome/secstate/token"
)

var (
	// ErrEngineNotReady is an exported constant or variable used by the security-state engine.
	ErrEngineNotReady = errors.New("engine not ready")
	// ErrStoreUnavailable is an exported constant or variable used by the security-state engine.
	ErrStoreUnavailable = errors.New("state store unavailable")
	// ErrRevoked is an exported constant or variable used by the security-state engine.
	ErrRevoked = errors.New("token revoked")
	// ErrWrongKind is an exported constant or variable used by the security-state engine.
	ErrWrongKind = errors.New("unexpected token kind")
	// ErrBadCredentials is an exported constant or variable used by the security-state engine.
	ErrBadCredentials = errors.New("invalid credentials")
	// ErrThrottled is an exported constant or variable used by the security-state engine.
	ErrThrottled = errors.New("too many attempts")
	// ErrUnknownDomain is an exported constant or variable used by the security-state engine.
	ErrUnknownDomain = errors.New("unknown domain")
	// ErrDomainNotAuthorized is an exported constant or variable used by the security-state engine.
	ErrDomainNotAuthorized = errors.New("domain not authorized for principal")
	// ErrPrincipalNotFound is an exported constant or variable used by the security-state engine.
	ErrPrincipalNotFound = errors.New("principal not found")
	// ErrInvalidRequest is an exported constant or variable used by the security-state engine.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrPasswordPolicy is an exported constant or variable used by the security-state engine.
	ErrPasswordPolicy = errors.New("password policy violation")
)

// Decode failures keep their identity from the token package, so errors.Is
// works the same whether callers go through the Engine or use a [token.Codec]
// directly.
var (
	// ErrMalformed is an exported constant or variable used by the security-state engine.
	ErrMalformed = token.ErrMalformed
	// ErrExpired is an exported constant or variable used by the security-state engine.
	ErrExpired = token.ErrExpired
	// ErrUnsupportedAlgorithm is an exported constant or variable used by the security-state engine.
	ErrUnsupportedAlgorithm = token.ErrUnsupportedAlgorithm
)

// Lease failures keep their identity from the lease package, so errors.Is
// works the same whether callers go through the Engine or use a
// [lease.Manager] directly.
var (
	// ErrAlreadyLocked is an exported constant or variable used by the security-state engine.
	ErrAlreadyLocked = lease.ErrAlreadyLocked
	// ErrNotHolder is an exported constant or variable used by the security-state engine.
	ErrNotHolder = lease.ErrNotHolder
	// ErrLeaseNotHeld is an exported constant or variable used by the security-state engine.
	ErrLeaseNotHeld = lease.ErrNotHeld
	// ErrLeaseRecordCorrupt is an exported constant or variable used by the security-state engine.
	ErrLeaseRecordCorrupt = lease.ErrRecordCorrupt
)

// AlreadyLockedError is the detailed form of [ErrAlreadyLocked]. Use
// errors.As to recover the current holder for conflict messages.
type AlreadyLockedError = lease.AlreadyLockedError
