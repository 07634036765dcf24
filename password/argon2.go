package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	minMemoryKB    uint32 = 8 * 1024
	minTimeCost    uint32 = 1
	minParallelism uint8  = 1
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16
	maxPassBytes          = 1024
	algorithmID           = "argon2id"
)

// dummyMaterial seeds the reference hash used by [Hasher.DummyVerify]. The
// plaintext never matches a caller-supplied password because verification
// against the dummy hash is done only for its cost, never its outcome.
const dummyMaterial = "secstate-dummy-credential"

// Config defines a public type used by secstate APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// Hasher defines a public type used by secstate APIs.
//
// Hasher instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Hasher struct {
	config Config
	dummy  string
}

// NewHasher describes the newhasher operation and its observable behavior.
//
// NewHasher may return an error when input validation, dependency calls, or security checks fail.
// NewHasher does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewHasher(cfg Config) (*Hasher, error) {
	if err := checkConfig(cfg); err != nil {
		return nil, err
	}

	h := &Hasher{config: cfg}

	// The dummy hash costs one argon2 invocation here so login paths can burn
	// identical work on unknown usernames later.
	dummy, err := h.Hash(dummyMaterial)
	if err != nil {
		return nil, err
	}
	h.dummy = dummy

	return h, nil
}

// Hash describes the hash operation and its observable behavior.
//
// Hash may return an error when input validation, dependency calls, or security checks fail.
// Hash does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// Password bytes are used exactly as provided; no Unicode normalization is
// applied. Length policy lives with the caller, so Hash only rejects empty
// and absurdly large inputs.
func (h *Hasher) Hash(password string) (string, error) {
	if password == "" {
		return "", errors.New("password must not be empty")
	}
	if len(password) > maxPassBytes {
		return "", errors.New("password exceeds 1024 bytes")
	}

	salt := make([]byte, h.config.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}

	key := argon2.IDKey(
		[]byte(password),
		salt,
		h.config.Time,
		h.config.Memory,
		h.config.Parallelism,
		h.config.KeyLength,
	)

	return fmt.Sprintf(
		"$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithmID,
		argon2.Version,
		h.config.Memory,
		h.config.Time,
		h.config.Parallelism,
		base64.StdEncoding.EncodeToString(salt),
		base64.StdEncoding.EncodeToString(key),
	), nil
}

// Verify describes the verify operation and its observable behavior.
//
// Verify may return an error when input validation, dependency calls, or security checks fail.
// Verify does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// The stored hash's own parameters drive the comparison, so hashes created
// under older settings keep verifying after a config change.
func (h *Hasher) Verify(password, encoded string) (bool, error) {
	rec, err := decodePHC(encoded)
	if err != nil {
		return false, err
	}

	computed := argon2.IDKey(
		[]byte(password),
		rec.salt,
		rec.time,
		rec.memory,
		rec.parallelism,
		uint32(len(rec.key)),
	)

	return subtle.ConstantTimeCompare(computed, rec.key) == 1, nil
}

// DummyVerify burns one full verification against a fixed reference hash and
// discards the result. Login paths call it when a username does not resolve,
// so lookup misses cost the same time as password mismatches.
func (h *Hasher) DummyVerify(password string) {
	_, _ = h.Verify(password, h.dummy)
}

// NeedsRehash describes the needsrehash operation and its observable behavior.
//
// NeedsRehash may return an error when input validation, dependency calls, or security checks fail.
// NeedsRehash does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// It reports true when the stored hash was produced under parameters weaker
// than the active config, so callers can re-hash on the next successful
// verification.
func (h *Hasher) NeedsRehash(encoded string) (bool, error) {
	rec, err := decodePHC(encoded)
	if err != nil {
		return false, err
	}

	switch {
	case rec.memory < h.config.Memory:
		return true, nil
	case rec.time < h.config.Time:
		return true, nil
	case rec.parallelism < h.config.Parallelism:
		return true, nil
	case uint32(len(rec.key)) != h.config.KeyLength:
		return true, nil
	}

	return false, nil
}

// phcRecord is one parsed PHC string: parameters plus raw salt and key bytes.
type phcRecord struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	key         []byte
}

// decodePHC splits and validates a $argon2id$v=19$m=..,t=..,p=..$salt$hash
// string. Any deviation is an error; there is no lenient mode.
func decodePHC(encoded string) (*phcRecord, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" {
		return nil, errors.New("invalid PHC format")
	}
	if parts[1] != algorithmID {
		return nil, errors.New("unsupported password algorithm")
	}

	version, ok := strings.CutPrefix(parts[2], "v=")
	if !ok {
		return nil, errors.New("missing argon2 version")
	}
	v, err := strconv.Atoi(version)
	if err != nil {
		return nil, errors.New("invalid argon2 version")
	}
	if v != argon2.Version {
		return nil, errors.New("unsupported argon2 version")
	}

	rec := &phcRecord{}
	if err := parseParams(parts[3], rec); err != nil {
		return nil, err
	}

	salt, err := base64.StdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, errors.New("invalid salt encoding")
	}
	if len(salt) < int(minSaltLength) {
		return nil, errors.New("invalid salt length")
	}
	rec.salt = salt

	key, err := base64.StdEncoding.DecodeString(parts[5])
	if err != nil {
		return nil, errors.New("invalid hash encoding")
	}
	if len(key) < int(minKeyLength) {
		return nil, errors.New("invalid hash length")
	}
	rec.key = key

	return rec, nil
}

// parseParams fills rec from the "m=..,t=..,p=.." segment. All three keys are
// required, in any order, with no repeats or extras.
func parseParams(segment string, rec *phcRecord) error {
	pairs := strings.Split(segment, ",")
	if len(pairs) != 3 {
		return errors.New("invalid parameter format")
	}

	var haveMemory, haveTime, haveParallelism bool
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok {
			return errors.New("invalid parameter entry")
		}

		switch name {
		case "m":
			n, err := strconv.ParseUint(value, 10, 32)
			if err != nil || n < uint64(minMemoryKB) || haveMemory {
				return errors.New("invalid memory parameter")
			}
			rec.memory = uint32(n)
			haveMemory = true
		case "t":
			n, err := strconv.ParseUint(value, 10, 32)
			if err != nil || n < uint64(minTimeCost) || haveTime {
				return errors.New("invalid time parameter")
			}
			rec.time = uint32(n)
			haveTime = true
		case "p":
			n, err := strconv.ParseUint(value, 10, 8)
			if err != nil || n < uint64(minParallelism) || haveParallelism {
				return errors.New("invalid parallelism parameter")
			}
			rec.parallelism = uint8(n)
			haveParallelism = true
		default:
			return errors.New("unsupported parameter")
		}
	}

	if !haveMemory || !haveTime || !haveParallelism {
		return errors.New("missing parameters")
	}

	return nil
}

func checkConfig(cfg Config) error {
	if cfg.Memory < minMemoryKB {
		return errors.New("password memory must be >= 8192 KB")
	}
	if cfg.Time < minTimeCost {
		return errors.New("password time must be >= 1")
	}
	if cfg.Parallelism < minParallelism {
		return errors.New("password parallelism must be >= 1")
	}
	if cfg.SaltLength < minSaltLength {
		return errors.New("password salt length must be >= 16")
	}
	if cfg.KeyLength < minKeyLength {
		return errors.New("password key length must be >= 16")
	}

	return nil
}
