package envconfig

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/strayhome/secstate"
)

// clearSecstateEnv unsets every SECSTATE_* variable for the duration of the
// test, so results do not depend on the machine running the suite.
func clearSecstateEnv(t *testing.T) {
	t.Helper()
	for _, kv := range os.Environ() {
		if !strings.HasPrefix(kv, "SECSTATE_") {
			continue
		}
		key, _, _ := strings.Cut(kv, "=")
		t.Setenv(key, "") // registers restore of the original value
		os.Unsetenv(key)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearSecstateEnv(t)
	t.Chdir(t.TempDir()) // keep the .env walk away from the developer's tree

	cfg := Load()

	if len(cfg.Tokens.Secret) != 0 {
		t.Fatalf("expected no secret from empty environment, got %d bytes", len(cfg.Tokens.Secret))
	}
	if cfg.Tokens.Algorithm != secstate.AlgHS256 {
		t.Fatalf("default algorithm = %q, want hs256", cfg.Tokens.Algorithm)
	}
	if cfg.Tokens.AccessTTL != 45*time.Minute {
		t.Fatalf("default access TTL = %v, want 45m", cfg.Tokens.AccessTTL)
	}
	if cfg.Tokens.RefreshTTL != 7*24*time.Hour {
		t.Fatalf("default refresh TTL = %v, want 168h", cfg.Tokens.RefreshTTL)
	}
	if cfg.Tokens.InvitationTTL != 7*24*time.Hour {
		t.Fatalf("default invitation TTL = %v, want 168h", cfg.Tokens.InvitationTTL)
	}
	if cfg.Tokens.ResetTTL != 30*time.Minute {
		t.Fatalf("default reset TTL = %v, want 30m", cfg.Tokens.ResetTTL)
	}
	if cfg.Lease.TTL != 15*time.Minute {
		t.Fatalf("default lease TTL = %v, want 15m", cfg.Lease.TTL)
	}
	if !cfg.Throttle.Enabled {
		t.Fatal("throttling should default on")
	}
	if cfg.Audit.Enabled || cfg.Metrics.Enabled {
		t.Fatal("audit and metrics should default off")
	}
}

func TestLoadReadsEnvironment(t *testing.T) {
	clearSecstateEnv(t)
	t.Chdir(t.TempDir())

	t.Setenv("SECSTATE_SECRET", strings.Repeat("s", 32))
	t.Setenv("SECSTATE_ALGORITHM", "hs384")
	t.Setenv("SECSTATE_ISSUER", "strayhome-test")
	t.Setenv("SECSTATE_ACCESS_TTL_MINUTES", "5")
	t.Setenv("SECSTATE_REFRESH_TTL_DAYS", "1")
	t.Setenv("SECSTATE_INVITATION_TTL_DAYS", "3")
	t.Setenv("SECSTATE_RESET_TTL_MINUTES", "10")
	t.Setenv("SECSTATE_LEASE_TTL_MINUTES", "2")
	t.Setenv("SECSTATE_KEY_PREFIX", "stage")
	t.Setenv("SECSTATE_THROTTLE_ENABLED", "false")
	t.Setenv("SECSTATE_AUDIT_ENABLED", "true")
	t.Setenv("SECSTATE_AUDIT_BUFFER", "64")
	t.Setenv("SECSTATE_METRICS_ENABLED", "true")
	t.Setenv("SECSTATE_METRICS_LATENCY", "true")

	cfg := Load()

	if string(cfg.Tokens.Secret) != strings.Repeat("s", 32) {
		t.Fatal("secret not taken from environment")
	}
	if cfg.Tokens.Algorithm != secstate.AlgHS384 {
		t.Fatalf("algorithm = %q, want hs384", cfg.Tokens.Algorithm)
	}
	if cfg.Tokens.Issuer != "strayhome-test" {
		t.Fatalf("issuer = %q", cfg.Tokens.Issuer)
	}
	if cfg.Tokens.AccessTTL != 5*time.Minute {
		t.Fatalf("access TTL = %v, want 5m", cfg.Tokens.AccessTTL)
	}
	if cfg.Tokens.RefreshTTL != 24*time.Hour {
		t.Fatalf("refresh TTL = %v, want 24h", cfg.Tokens.RefreshTTL)
	}
	if cfg.Tokens.InvitationTTL != 3*24*time.Hour {
		t.Fatalf("invitation TTL = %v, want 72h", cfg.Tokens.InvitationTTL)
	}
	if cfg.Tokens.ResetTTL != 10*time.Minute {
		t.Fatalf("reset TTL = %v, want 10m", cfg.Tokens.ResetTTL)
	}
	if cfg.Lease.TTL != 2*time.Minute {
		t.Fatalf("lease TTL = %v, want 2m", cfg.Lease.TTL)
	}
	if cfg.Store.KeyPrefix != "stage" {
		t.Fatalf("key prefix = %q", cfg.Store.KeyPrefix)
	}
	if cfg.Throttle.Enabled {
		t.Fatal("throttling should be disabled by SECSTATE_THROTTLE_ENABLED=false")
	}
	if !cfg.Audit.Enabled || cfg.Audit.BufferSize != 64 {
		t.Fatalf("audit config not taken from environment: %+v", cfg.Audit)
	}
	if !cfg.Metrics.Enabled || !cfg.Metrics.EnableLatencyHistograms {
		t.Fatalf("metrics config not taken from environment: %+v", cfg.Metrics)
	}
}

func TestLoadedConfigValidates(t *testing.T) {
	clearSecstateEnv(t)
	t.Chdir(t.TempDir())

	t.Setenv("SECSTATE_SECRET", strings.Repeat("k", 48))

	cfg := Load()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("environment-loaded config should validate: %v", err)
	}
}

func TestRedisAddr(t *testing.T) {
	clearSecstateEnv(t)
	t.Chdir(t.TempDir())

	if got := RedisAddr("localhost:6379"); got != "localhost:6379" {
		t.Fatalf("fallback addr = %q", got)
	}

	t.Setenv("SECSTATE_REDIS_ADDR", "redis.internal:6380")
	if got := RedisAddr("localhost:6379"); got != "redis.internal:6380" {
		t.Fatalf("env addr = %q", got)
	}
}

func TestLoadFindsDotEnvInParentDirectory(t *testing.T) {
	clearSecstateEnv(t)

	root := t.TempDir()
	content := "SECSTATE_ISSUER=dotenv-issuer\n"
	if err := os.WriteFile(filepath.Join(root, ".env"), []byte(content), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}

	nested := filepath.Join(root, "cmd", "api")
	if err := os.MkdirAll(nested, 0o700); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	t.Chdir(nested)

	// godotenv writes into the process environment; undo after the test.
	t.Cleanup(func() { os.Unsetenv("SECSTATE_ISSUER") })

	cfg := Load()
	if cfg.Tokens.Issuer != "dotenv-issuer" {
		t.Fatalf("issuer = %q, want value from .env two directories up", cfg.Tokens.Issuer)
	}
}
