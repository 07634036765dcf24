package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Kind defines a public type used by secstate APIs.
//
// Kind instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Kind string

const (
	// KindAccess is an exported constant or variable used by the security-state engine.
	KindAccess Kind = "access"
	// KindRefresh is an exported constant or variable used by the security-state engine.
	KindRefresh Kind = "refresh"
	// KindInvitation is an exported constant or variable used by the security-state engine.
	KindInvitation Kind = "invitation"
	// KindReset is an exported constant or variable used by the security-state engine.
	KindReset Kind = "reset"
)

// Kinds returns every token kind in a fixed order. Key derivation and metric
// registration iterate over it.
func Kinds() []Kind {
	return []Kind{KindAccess, KindRefresh, KindInvitation, KindReset}
}

// Valid reports whether k names one of the four token kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindAccess, KindRefresh, KindInvitation, KindReset:
		return true
	}
	return false
}

// SingleUse reports whether tokens of this kind are consumed on first
// successful validation.
func (k Kind) SingleUse() bool {
	return k == KindInvitation || k == KindReset
}

// Claims defines a public type used by secstate APIs.
//
// Claims instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
//
// The kind rides in the scope claim, the nonce in jti, and the paired refresh
// nonce (access tokens only) in rid.
type Claims struct {
	Domain      string   `json:"domain,omitempty"`
	Kind        Kind     `json:"scope"`
	Epoch       uint64   `json:"epoch,omitempty"`
	Role        string   `json:"role,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
	PairNonce   string   `json:"rid,omitempty"`

	jwt.RegisteredClaims
}

// Nonce returns the token's unique issuance ID (the jti claim). It is the
// unit of revocation and single-use tracking.
func (c *Claims) Nonce() string {
	return c.ID
}

// Stamp fills the time-bound registered claims: iat = now, exp = now + ttl.
func Stamp(c *Claims, now time.Time, ttl time.Duration) {
	c.IssuedAt = jwt.NewNumericDate(now)
	c.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
}

// Remaining reports how long the token stays valid after now, negative once
// past expiry. Denylist tombstones use it as their TTL.
func (c *Claims) Remaining(now time.Time) time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}
	return c.ExpiresAt.Time.Sub(now)
}
