package token

import (
	"crypto/sha256"
	"crypto/sha512"
	"errors"
	"fmt"
	"hash"
	"io"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/hkdf"
)

// Algorithm defines a public type used by secstate APIs.
//
// Algorithm instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Algorithm string

const (
	// AlgHS256 is an exported constant or variable used by the security-state engine.
	AlgHS256 Algorithm = "hs256"
	// AlgHS384 is an exported constant or variable used by the security-state engine.
	AlgHS384 Algorithm = "hs384"
	// AlgHS512 is an exported constant or variable used by the security-state engine.
	AlgHS512 Algorithm = "hs512"
)

var (
	// ErrMalformed is returned when a token cannot be parsed, fails signature
	// verification, or lacks a required claim.
	ErrMalformed = errors.New("token malformed")
	// ErrExpired is returned when a token verifies but is past its expiry.
	// Decode still returns the claims alongside it.
	ErrExpired = errors.New("token expired")
	// ErrUnsupportedAlgorithm is returned when a token's header names a signing
	// method outside the configured one.
	ErrUnsupportedAlgorithm = errors.New("unsupported signing algorithm")

	errUnknownKind = errors.New("unknown token kind")
)

const (
	minSecretBytes      = 32
	maxTokenBytes       = 8 << 10
	maxLeeway           = 2 * time.Minute
	defaultMaxFutureIAT = 10 * time.Minute
	maxFutureIATCeiling = 24 * time.Hour
	kindKeyBytes        = 32
	kindKeyInfoPrefix   = "secstate/v1/"
)

// Config defines a public type used by secstate APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Secret       []byte
	Algorithm    Algorithm
	Issuer       string
	Leeway       time.Duration
	MaxFutureIAT time.Duration
	Now          func() time.Time
}

// Codec defines a public type used by secstate APIs.
//
// Codec instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Codec struct {
	method       jwt.SigningMethod
	issuer       string
	leeway       time.Duration
	maxFutureIAT time.Duration
	now          func() time.Time
	keys         map[Kind][]byte
	parser       *jwt.Parser
}

// NewCodec describes the newcodec operation and its observable behavior.
//
// NewCodec may return an error when input validation, dependency calls, or security checks fail.
// NewCodec does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewCodec(cfg Config) (*Codec, error) {
	if len(cfg.Secret) < minSecretBytes {
		return nil, errors.New("token secret must be at least 32 bytes")
	}

	var (
		method jwt.SigningMethod
		hashFn func() hash.Hash
	)
	switch cfg.Algorithm {
	case AlgHS256:
		method, hashFn = jwt.SigningMethodHS256, sha256.New
	case AlgHS384:
		method, hashFn = jwt.SigningMethodHS384, sha512.New384
	case AlgHS512:
		method, hashFn = jwt.SigningMethodHS512, sha512.New
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, cfg.Algorithm)
	}

	if cfg.Leeway < 0 || cfg.Leeway > maxLeeway {
		return nil, errors.New("token leeway must be between 0 and 2 minutes")
	}

	maxFutureIAT := cfg.MaxFutureIAT
	if maxFutureIAT == 0 {
		maxFutureIAT = defaultMaxFutureIAT
	}
	if maxFutureIAT < 0 || maxFutureIAT > maxFutureIATCeiling {
		return nil, errors.New("token MaxFutureIAT must be between 0 and 24 hours")
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	keys, err := deriveKindKeys(cfg.Secret, hashFn)
	if err != nil {
		return nil, err
	}

	opts := []jwt.ParserOption{
		jwt.WithLeeway(cfg.Leeway),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(now),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}

	return &Codec{
		method:       method,
		issuer:       cfg.Issuer,
		leeway:       cfg.Leeway,
		maxFutureIAT: maxFutureIAT,
		now:          now,
		keys:         keys,
		parser:       jwt.NewParser(opts...),
	}, nil
}

// deriveKindKeys expands the master secret into one independent signing key
// per token kind via HKDF, with the kind name as the info input. Two kinds can
// never share a key, so altering the scope claim always breaks the signature.
func deriveKindKeys(secret []byte, hashFn func() hash.Hash) (map[Kind][]byte, error) {
	kinds := Kinds()
	keys := make(map[Kind][]byte, len(kinds))
	for _, kind := range kinds {
		key := make([]byte, kindKeyBytes)
		r := hkdf.New(hashFn, secret, nil, []byte(kindKeyInfoPrefix+string(kind)))
		if _, err := io.ReadFull(r, key); err != nil {
			return nil, fmt.Errorf("derive %s signing key: %w", kind, err)
		}
		keys[kind] = key
	}

	return keys, nil
}

// Encode describes the encode operation and its observable behavior.
//
// Encode may return an error when input validation, dependency calls, or security checks fail.
// Encode does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Codec) Encode(claims Claims) (string, error) {
	if !claims.Kind.Valid() {
		return "", fmt.Errorf("encode: unknown token kind %q", claims.Kind)
	}
	if claims.Subject == "" {
		return "", errors.New("encode: subject required")
	}
	if claims.ID == "" {
		return "", errors.New("encode: nonce required")
	}
	if claims.IssuedAt == nil || claims.ExpiresAt == nil {
		return "", errors.New("encode: iat and exp required")
	}
	if claims.Issuer == "" {
		claims.Issuer = c.issuer
	}

	signed, err := jwt.NewWithClaims(c.method, &claims).SignedString(c.keys[claims.Kind])
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return signed, nil
}

// Decode describes the decode operation and its observable behavior.
//
// Decode may return an error when input validation, dependency calls, or security checks fail.
// Decode does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// Expiry is reported as [ErrExpired] with the verified claims still returned,
// so revocation can address tokens past their natural lifetime. Every other
// failure returns nil claims.
func (c *Codec) Decode(raw string) (*Claims, error) {
	if raw == "" || len(raw) > maxTokenBytes {
		return nil, fmt.Errorf("%w: bad length", ErrMalformed)
	}

	claims := &Claims{}
	_, err := c.parser.ParseWithClaims(raw, claims, c.keyFor)
	if err != nil {
		switch {
		case errors.Is(err, ErrUnsupportedAlgorithm):
			return nil, fmt.Errorf("%w: %v", ErrUnsupportedAlgorithm, err)
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, fmt.Errorf("%w: signature mismatch", ErrMalformed)
		case errors.Is(err, jwt.ErrTokenInvalidIssuer),
			errors.Is(err, jwt.ErrTokenUsedBeforeIssued),
			errors.Is(err, jwt.ErrTokenNotValidYet):
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		case errors.Is(err, jwt.ErrTokenExpired):
			// Signature verification precedes claim validation, so an expired
			// verdict means the token is authentic.
			if shapeErr := c.checkShape(claims); shapeErr != nil {
				return nil, shapeErr
			}
			return claims, ErrExpired
		default:
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	}

	if err := c.checkShape(claims); err != nil {
		return nil, err
	}
	if claims.IssuedAt != nil && claims.IssuedAt.Time.Sub(c.now()) > c.maxFutureIAT {
		return nil, fmt.Errorf("%w: iat too far in the future", ErrMalformed)
	}

	return claims, nil
}

// keyFor enforces the configured algorithm and selects the signing key for the
// kind the token says it is. A tampered scope claim selects the wrong key and
// fails verification.
func (c *Codec) keyFor(t *jwt.Token) (any, error) {
	if t.Method.Alg() != c.method.Alg() {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, t.Method.Alg())
	}

	claims, ok := t.Claims.(*Claims)
	if !ok || !claims.Kind.Valid() {
		return nil, errUnknownKind
	}

	return c.keys[claims.Kind], nil
}

// checkShape rejects structurally incomplete tokens that nevertheless carry a
// valid signature, such as tokens minted by an older build sharing the secret.
func (c *Codec) checkShape(claims *Claims) error {
	switch {
	case !claims.Kind.Valid():
		return fmt.Errorf("%w: unknown kind", ErrMalformed)
	case claims.Subject == "":
		return fmt.Errorf("%w: missing subject", ErrMalformed)
	case claims.ID == "":
		return fmt.Errorf("%w: missing nonce", ErrMalformed)
	case claims.IssuedAt == nil:
		return fmt.Errorf("%w: missing iat", ErrMalformed)
	case claims.ExpiresAt == nil:
		return fmt.Errorf("%w: missing exp", ErrMalformed)
	}

	return nil
}
