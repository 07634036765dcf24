package internal

import (
	"crypto/rand"

	"github.com/google/uuid"
)

// NewNonce returns a fresh token nonce (the jti claim). UUIDv4 gives 122 bits
// of randomness, which is plenty for denylist keys that live at most one
// token lifetime.
func NewNonce() string {
	return uuid.NewString()
}

// NewDecoySubject returns a principal ID that matches no stored principal.
// Reset tokens minted for unknown usernames carry one, so the response shape
// never reveals whether a username exists.
func NewDecoySubject() string {
	return uuid.NewString()
}

// NewSecret returns size bytes from the system CSPRNG. The bundled load tool
// mints throwaway signing secrets with it.
func NewSecret(size int) ([]byte, error) {
	secret := make([]byte, size)
	if _, err := rand.Read(secret); err != nil {
		return nil, err
	}
	return secret, nil
}
