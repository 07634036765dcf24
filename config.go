package secstate

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/strayhome/secstate/token"
)

// Config defines a public type used by secstate APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Tokens   TokenConfig
	Throttle ThrottleConfig
	Password PasswordConfig
	Lease    LeaseConfig
	Store    StoreConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig defines a public type used by secstate APIs.
//
// TokenConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type TokenConfig struct {
	Secret    []byte
	Algorithm Algorithm
	Issuer    string

	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	InvitationTTL time.Duration
	ResetTTL      time.Duration

	// Leeway widens expiry checks during validation and pads denylist
	// tombstones during revocation, absorbing clock skew between nodes.
	Leeway time.Duration

	// MaxFutureIAT bounds how far in the future an iat claim may sit before
	// the token is rejected as malformed. Zero applies the codec default.
	MaxFutureIAT time.Duration
}

// TTLFor returns the configured lifetime for tokens of the given kind.
func (c TokenConfig) TTLFor(kind Kind) time.Duration {
	switch kind {
	case KindAccess:
		return c.AccessTTL
	case KindRefresh:
		return c.RefreshTTL
	case KindInvitation:
		return c.InvitationTTL
	case KindReset:
		return c.ResetTTL
	}
	return 0
}

// longestTTL is the upper bound on any token's lifetime. Epoch entries must
// outlive it, since an epoch that lapses early would resurrect revoked
// tokens that have not yet expired.
func (c TokenConfig) longestTTL() time.Duration {
	longest := time.Duration(0)
	for _, kind := range token.Kinds() {
		if ttl := c.TTLFor(kind); ttl > longest {
			longest = ttl
		}
	}
	return longest
}

/*
====================================
THROTTLE CONFIG
====================================
*/

// ThrottleConfig defines a public type used by secstate APIs.
//
// ThrottleConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type ThrottleConfig struct {
	Enabled          bool
	EnableIPThrottle bool
	MaxAttempts      int
	Cooldown         time.Duration
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig defines a public type used by secstate APIs.
//
// PasswordConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type PasswordConfig struct {
	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32

	// MinLength is the policy floor applied when invitations are accepted
	// and resets are confirmed. Hash format limits are enforced separately
	// by the password package.
	MinLength int
}

/*
====================================
LEASE CONFIG
====================================
*/

// LeaseConfig defines a public type used by secstate APIs.
//
// LeaseConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type LeaseConfig struct {
	TTL       time.Duration
	KeyPrefix string
}

/*
====================================
STORE CONFIG
====================================
*/

// StoreConfig defines a public type used by secstate APIs.
//
// StoreConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type StoreConfig struct {
	// KeyPrefix namespaces every engine key when the store is built from a
	// Redis client, so one Redis database can serve several deployments.
	KeyPrefix string
}

/*
====================================
AUDIT CONFIG
====================================
*/

// AuditConfig defines a public type used by secstate APIs.
//
// AuditConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig defines a public type used by secstate APIs.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig describes the defaultconfig operation and its observable behavior.
//
// DefaultConfig may return an error when input validation, dependency calls, or security checks fail.
// DefaultConfig does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// The returned Config carries the recommended lifetimes and hashing
// parameters but no signing secret; set Tokens.Secret (or use
// Builder.WithSecret) before Build.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Tokens: TokenConfig{
			Algorithm:     AlgHS256,
			AccessTTL:     45 * time.Minute,
			RefreshTTL:    7 * 24 * time.Hour,
			InvitationTTL: 7 * 24 * time.Hour,
			ResetTTL:      30 * time.Minute,
			Leeway:        30 * time.Second,
		},
		Throttle: ThrottleConfig{
			Enabled:          true,
			EnableIPThrottle: true,
			MaxAttempts:      5,
			Cooldown:         15 * time.Minute,
		},
		Password: PasswordConfig{
			Memory:      65536,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
			MinLength:   10,
		},
		Lease: LeaseConfig{
			TTL:       15 * time.Minute,
			KeyPrefix: "lease",
		},
		Store: StoreConfig{
			KeyPrefix: "sec",
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

/*
====================================
PRESETS
====================================
*/

// HighSecurityConfig describes the highsecurityconfig operation and its observable behavior.
//
// HighSecurityConfig may return an error when input validation, dependency calls, or security checks fail.
// HighSecurityConfig does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// The preset trades convenience for posture: short lifetimes, a wider HMAC,
// heavier hashing, a tight login budget, and audit delivery that blocks
// rather than drops. Like [DefaultConfig] it carries no signing secret.
func HighSecurityConfig() Config {
	cfg := defaultConfig()

	cfg.Tokens.Algorithm = AlgHS512
	cfg.Tokens.AccessTTL = 15 * time.Minute
	cfg.Tokens.RefreshTTL = 24 * time.Hour
	cfg.Tokens.InvitationTTL = 72 * time.Hour
	cfg.Tokens.ResetTTL = 15 * time.Minute
	cfg.Tokens.Leeway = 10 * time.Second
	cfg.Tokens.MaxFutureIAT = 2 * time.Minute

	cfg.Throttle.MaxAttempts = 3
	cfg.Throttle.Cooldown = 30 * time.Minute

	cfg.Password.Memory = 128 * 1024
	cfg.Password.Time = 4
	cfg.Password.MinLength = 12

	cfg.Lease.TTL = 5 * time.Minute

	cfg.Audit.Enabled = true
	cfg.Audit.BufferSize = 4096
	cfg.Audit.DropIfFull = false

	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true

	return cfg
}

// HighThroughputConfig describes the highthroughputconfig operation and its observable behavior.
//
// HighThroughputConfig may return an error when input validation, dependency calls, or security checks fail.
// HighThroughputConfig does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// The preset keeps the hot validate path as cheap as possible: the fastest
// HMAC family, a longer access lifetime so refreshes are rarer, per-IP
// throttling off, audit under drop-if-full backpressure, and no latency
// histograms. Like [DefaultConfig] it carries no signing secret.
func HighThroughputConfig() Config {
	cfg := defaultConfig()

	cfg.Tokens.Algorithm = AlgHS256
	cfg.Tokens.AccessTTL = time.Hour

	cfg.Throttle.EnableIPThrottle = false
	cfg.Throttle.MaxAttempts = 10
	cfg.Throttle.Cooldown = 5 * time.Minute

	cfg.Password.Parallelism = 4

	cfg.Audit.Enabled = true
	cfg.Audit.BufferSize = 8192
	cfg.Audit.DropIfFull = true

	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = false

	return cfg
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Tokens.Secret = cloneBytes(cfg.Tokens.Secret)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate describes the validate operation and its observable behavior.
//
// Validate may return an error when input validation, dependency calls, or security checks fail.
// Validate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Config) Validate() error {
	// Tokens
	if len(c.Tokens.Secret) < 32 {
		return errors.New("Tokens Secret must be at least 32 bytes")
	}
	switch c.Tokens.Algorithm {
	case AlgHS256, AlgHS384, AlgHS512:
	default:
		return errors.New("Tokens Algorithm must be hs256, hs384, or hs512")
	}
	if c.Tokens.AccessTTL <= 0 {
		return errors.New("Tokens AccessTTL must be > 0")
	}
	if c.Tokens.RefreshTTL <= 0 {
		return errors.New("Tokens RefreshTTL must be > 0")
	}
	if c.Tokens.InvitationTTL <= 0 {
		return errors.New("Tokens InvitationTTL must be > 0")
	}
	if c.Tokens.ResetTTL <= 0 {
		return errors.New("Tokens ResetTTL must be > 0")
	}
	if c.Tokens.Leeway < 0 || c.Tokens.Leeway > 2*time.Minute {
		return errors.New("Tokens Leeway must be between 0 and 2 minutes")
	}
	if c.Tokens.MaxFutureIAT < 0 {
		return errors.New("Tokens MaxFutureIAT must be >= 0")
	}

	// Throttle
	if c.Throttle.Enabled {
		if c.Throttle.MaxAttempts <= 0 {
			return errors.New("Throttle MaxAttempts must be > 0")
		}
		if c.Throttle.Cooldown <= 0 {
			return errors.New("Throttle Cooldown must be > 0")
		}
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}
	if c.Password.MinLength < 8 {
		return errors.New("Password MinLength must be >= 8")
	}

	// Lease
	if c.Lease.TTL <= 0 {
		return errors.New("Lease TTL must be > 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	return nil
}

/*
====================================
LINT
====================================
*/

// LintSeverity ranks how much a lint finding weakens the deployment.
type LintSeverity int

const (
	// LintLow is an exported constant or variable used by the security-state engine.
	LintLow LintSeverity = iota
	// LintMedium is an exported constant or variable used by the security-state engine.
	LintMedium
	// LintHigh is an exported constant or variable used by the security-state engine.
	LintHigh
)

func (s LintSeverity) String() string {
	switch s {
	case LintLow:
		return "LOW"
	case LintMedium:
		return "MEDIUM"
	case LintHigh:
		return "HIGH"
	}
	return "UNKNOWN"
}

// LintWarning is one posture finding from [Config.Lint]. Code is stable and
// machine-matchable; Message is for humans.
type LintWarning struct {
	Code     string
	Severity LintSeverity
	Message  string
}

// LintWarnings defines a public type used by secstate APIs.
//
// LintWarnings instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type LintWarnings []LintWarning

// Codes returns the warning codes in emission order.
func (ws LintWarnings) Codes() []string {
	codes := make([]string, 0, len(ws))
	for _, w := range ws {
		codes = append(codes, w.Code)
	}
	return codes
}

// BySeverity returns the warnings at or above min.
func (ws LintWarnings) BySeverity(min LintSeverity) LintWarnings {
	var out LintWarnings
	for _, w := range ws {
		if w.Severity >= min {
			out = append(out, w)
		}
	}
	return out
}

// AsError folds the warnings at or above min into a single error, or nil when
// none reach it. Deploy gates use it to turn posture drift into a hard stop.
func (ws LintWarnings) AsError(min LintSeverity) error {
	matched := ws.BySeverity(min)
	if len(matched) == 0 {
		return nil
	}
	return fmt.Errorf("config lint: %s", strings.Join(matched.Codes(), ", "))
}

// Lint describes the lint operation and its observable behavior.
//
// Lint may return an error when input validation, dependency calls, or security checks fail.
// Lint does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// Lint reports hardening opportunities in a config [Config.Validate] would
// accept. Validate rejects configs that cannot work; Lint flags ones that
// work but leave the deployment softer than it needs to be.
func (c *Config) Lint() LintWarnings {
	var ws LintWarnings

	warn := func(code string, severity LintSeverity, format string, args ...any) {
		ws = append(ws, LintWarning{
			Code:     code,
			Severity: severity,
			Message:  fmt.Sprintf(format, args...),
		})
	}

	if c.Tokens.Algorithm == AlgHS256 {
		warn("signing_hs256", LintLow, "hs384 or hs512 leaves more security margin than hs256")
	}
	if c.Tokens.Leeway > time.Minute {
		warn("leeway_large", LintLow, "leeway %s widens every expiry check; keep it under a minute", c.Tokens.Leeway)
	}
	if c.Tokens.AccessTTL > time.Hour {
		warn("access_ttl_long", LintMedium, "access tokens live %s; a stolen token stays usable that long between epoch bumps", c.Tokens.AccessTTL)
	}
	if c.Tokens.RefreshTTL > 14*24*time.Hour {
		warn("refresh_ttl_long", LintLow, "refresh tokens live %s; long idle sessions stay resumable", c.Tokens.RefreshTTL)
	}
	if c.Tokens.ResetTTL > time.Hour {
		warn("reset_ttl_long", LintMedium, "reset tokens live %s; a leaked reset link stays usable that long", c.Tokens.ResetTTL)
	}
	if c.Tokens.InvitationTTL > 30*24*time.Hour {
		warn("invitation_ttl_long", LintLow, "invitations live %s; stale invites keep granting the offered role", c.Tokens.InvitationTTL)
	}

	if !c.Throttle.Enabled {
		warn("throttle_disabled", LintHigh, "password grants run with no failure budget; online guessing is unbounded")
	} else if !c.Throttle.EnableIPThrottle {
		warn("ip_throttle_disabled", LintLow, "per-identifier throttling only; one source can spread guesses across usernames")
	}

	if c.Password.Memory < 64*1024 {
		warn("argon2_memory_low", LintMedium, "argon2 memory %d KB is below the 64 MB recommendation", c.Password.Memory)
	}

	if c.Lease.TTL > 4*time.Hour {
		warn("lease_ttl_long", LintMedium, "leases live %s without renewal; abandoned edits lock records out that long", c.Lease.TTL)
	}

	if !c.Audit.Enabled {
		warn("audit_disabled", LintLow, "security decisions leave no audit trail")
	}

	return ws
}
