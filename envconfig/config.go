// Package envconfig provides secstate configuration through environment variables.
package envconfig

import (
	"os"
	"path/filepath"
	"time"

	"github.com/allisson/go-env"
	"github.com/joho/godotenv"

	"github.com/strayhome/secstate"
)

// Load builds a [secstate.Config] from SECSTATE_* environment variables and an
// optional .env file. Variables that are unset keep their
// [secstate.DefaultConfig] value, so a deployment only has to set what it
// changes plus the secret.
//
// Recognized variables:
//
//	SECSTATE_SECRET                     signing secret, at least 32 bytes
//	SECSTATE_ALGORITHM                  hs256, hs384, or hs512
//	SECSTATE_ISSUER                     iss claim stamped on every token
//	SECSTATE_ACCESS_TTL_MINUTES         access token lifetime
//	SECSTATE_REFRESH_TTL_DAYS           refresh token lifetime
//	SECSTATE_INVITATION_TTL_DAYS        invitation grant lifetime
//	SECSTATE_RESET_TTL_MINUTES          password reset grant lifetime
//	SECSTATE_LEEWAY_SECONDS             clock skew allowance on expiry checks
//	SECSTATE_LEASE_TTL_MINUTES          record edit lease lifetime
//	SECSTATE_KEY_PREFIX                 Redis key namespace
//	SECSTATE_THROTTLE_ENABLED           login throttling on or off
//	SECSTATE_THROTTLE_BY_IP             add per-IP counters to throttling
//	SECSTATE_THROTTLE_MAX_ATTEMPTS      failed logins before cooldown
//	SECSTATE_THROTTLE_COOLDOWN_MINUTES  cooldown length after max attempts
//	SECSTATE_AUDIT_ENABLED              audit event emission on or off
//	SECSTATE_AUDIT_BUFFER               audit dispatcher queue size
//	SECSTATE_METRICS_ENABLED            counter collection on or off
//	SECSTATE_METRICS_LATENCY            validation latency histogram on or off
//
// Load does not validate the result; Builder.Build does.
func Load() secstate.Config {
	// Try to load .env file recursively
	loadDotEnv()

	cfg := secstate.DefaultConfig()

	// Tokens
	cfg.Tokens.Secret = []byte(env.GetString("SECSTATE_SECRET", ""))
	cfg.Tokens.Algorithm = secstate.Algorithm(env.GetString("SECSTATE_ALGORITHM", string(cfg.Tokens.Algorithm)))
	cfg.Tokens.Issuer = env.GetString("SECSTATE_ISSUER", cfg.Tokens.Issuer)
	cfg.Tokens.AccessTTL = env.GetDuration("SECSTATE_ACCESS_TTL_MINUTES", 45, time.Minute)
	cfg.Tokens.RefreshTTL = env.GetDuration("SECSTATE_REFRESH_TTL_DAYS", 7, 24*time.Hour)
	cfg.Tokens.InvitationTTL = env.GetDuration("SECSTATE_INVITATION_TTL_DAYS", 7, 24*time.Hour)
	cfg.Tokens.ResetTTL = env.GetDuration("SECSTATE_RESET_TTL_MINUTES", 30, time.Minute)
	cfg.Tokens.Leeway = env.GetDuration("SECSTATE_LEEWAY_SECONDS", 30, time.Second)

	// Login throttling
	cfg.Throttle.Enabled = env.GetBool("SECSTATE_THROTTLE_ENABLED", cfg.Throttle.Enabled)
	cfg.Throttle.EnableIPThrottle = env.GetBool("SECSTATE_THROTTLE_BY_IP", cfg.Throttle.EnableIPThrottle)
	cfg.Throttle.MaxAttempts = env.GetInt("SECSTATE_THROTTLE_MAX_ATTEMPTS", cfg.Throttle.MaxAttempts)
	cfg.Throttle.Cooldown = env.GetDuration("SECSTATE_THROTTLE_COOLDOWN_MINUTES", 15, time.Minute)

	// Record edit leases
	cfg.Lease.TTL = env.GetDuration("SECSTATE_LEASE_TTL_MINUTES", 15, time.Minute)

	// Store
	cfg.Store.KeyPrefix = env.GetString("SECSTATE_KEY_PREFIX", cfg.Store.KeyPrefix)

	// Audit
	cfg.Audit.Enabled = env.GetBool("SECSTATE_AUDIT_ENABLED", cfg.Audit.Enabled)
	cfg.Audit.BufferSize = env.GetInt("SECSTATE_AUDIT_BUFFER", cfg.Audit.BufferSize)

	// Metrics
	cfg.Metrics.Enabled = env.GetBool("SECSTATE_METRICS_ENABLED", cfg.Metrics.Enabled)
	cfg.Metrics.EnableLatencyHistograms = env.GetBool("SECSTATE_METRICS_LATENCY", cfg.Metrics.EnableLatencyHistograms)

	return cfg
}

// RedisAddr returns the Redis address from SECSTATE_REDIS_ADDR, or fallback
// when unset. The bundled tools treat an empty address as "run in-memory".
func RedisAddr(fallback string) string {
	loadDotEnv()
	return env.GetString("SECSTATE_REDIS_ADDR", fallback)
}

// loadDotEnv searches for a .env file from the current directory up to the
// root directory and loads the first one it finds. Variables already set in
// the environment win over .env values.
func loadDotEnv() {
	cwd, err := os.Getwd()
	if err != nil {
		return
	}

	dir := cwd
	for {
		envPath := filepath.Join(dir, ".env")
		if _, err := os.Stat(envPath); err == nil {
			_ = godotenv.Load(envPath)
			return
		}

		// Move to parent directory
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
}
