package secstate

import (
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{
			name: "leeway valid",
			mutate: func(c *Config) {
				c.Tokens.Leeway = 45 * time.Second
			},
			wantValid: true,
		},
		{
			name: "leeway invalid",
			mutate: func(c *Config) {
				c.Tokens.Leeway = 3 * time.Minute
			},
			wantValid: false,
		},
		{
			name: "secret too short invalid",
			mutate: func(c *Config) {
				c.Tokens.Secret = []byte("0123456789abcdef0123456789abcde")
			},
			wantValid: false,
		},
		{
			name: "algorithm valid",
			mutate: func(c *Config) {
				c.Tokens.Algorithm = AlgHS512
			},
			wantValid: true,
		},
		{
			name: "algorithm invalid",
			mutate: func(c *Config) {
				c.Tokens.Algorithm = Algorithm("rs256")
			},
			wantValid: false,
		},
		{
			name: "access ttl zero invalid",
			mutate: func(c *Config) {
				c.Tokens.AccessTTL = 0
			},
			wantValid: false,
		},
		{
			name: "refresh ttl negative invalid",
			mutate: func(c *Config) {
				c.Tokens.RefreshTTL = -time.Hour
			},
			wantValid: false,
		},
		{
			name: "invitation ttl zero invalid",
			mutate: func(c *Config) {
				c.Tokens.InvitationTTL = 0
			},
			wantValid: false,
		},
		{
			name: "reset ttl zero invalid",
			mutate: func(c *Config) {
				c.Tokens.ResetTTL = 0
			},
			wantValid: false,
		},
		{
			name: "max future iat negative invalid",
			mutate: func(c *Config) {
				c.Tokens.MaxFutureIAT = -time.Second
			},
			wantValid: false,
		},
		{
			name: "throttle attempts invalid when enabled",
			mutate: func(c *Config) {
				c.Throttle.Enabled = true
				c.Throttle.MaxAttempts = 0
			},
			wantValid: false,
		},
		{
			name: "throttle attempts ignored when disabled",
			mutate: func(c *Config) {
				c.Throttle.Enabled = false
				c.Throttle.MaxAttempts = 0
			},
			wantValid: true,
		},
		{
			name: "throttle cooldown invalid when enabled",
			mutate: func(c *Config) {
				c.Throttle.Enabled = true
				c.Throttle.Cooldown = 0
			},
			wantValid: false,
		},
		{
			name: "password memory below floor invalid",
			mutate: func(c *Config) {
				c.Password.Memory = 4 * 1024
			},
			wantValid: false,
		},
		{
			name: "password memory at floor valid",
			mutate: func(c *Config) {
				c.Password.Memory = 8 * 1024
			},
			wantValid: true,
		},
		{
			name: "password time zero invalid",
			mutate: func(c *Config) {
				c.Password.Time = 0
			},
			wantValid: false,
		},
		{
			name: "password parallelism zero invalid",
			mutate: func(c *Config) {
				c.Password.Parallelism = 0
			},
			wantValid: false,
		},
		{
			name: "salt length short invalid",
			mutate: func(c *Config) {
				c.Password.SaltLength = 8
			},
			wantValid: false,
		},
		{
			name: "key length short invalid",
			mutate: func(c *Config) {
				c.Password.KeyLength = 8
			},
			wantValid: false,
		},
		{
			name: "password min length short invalid",
			mutate: func(c *Config) {
				c.Password.MinLength = 4
			},
			wantValid: false,
		},
		{
			name: "lease ttl zero invalid",
			mutate: func(c *Config) {
				c.Lease.TTL = 0
			},
			wantValid: false,
		},
		{
			name: "audit buffer invalid when enabled",
			mutate: func(c *Config) {
				c.Audit.Enabled = true
				c.Audit.BufferSize = 0
			},
			wantValid: false,
		},
		{
			name: "audit buffer ignored when disabled",
			mutate: func(c *Config) {
				c.Audit.Enabled = false
				c.Audit.BufferSize = 0
			},
			wantValid: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantValid && err != nil {
				t.Fatalf("expected valid config, got %v", err)
			}
			if !tc.wantValid && err == nil {
				t.Fatal("expected invalid config, got nil")
			}
		})
	}
}

func TestDefaultConfigCarriesNoSecret(t *testing.T) {
	cfg := DefaultConfig()
	if len(cfg.Tokens.Secret) != 0 {
		t.Fatal("default config must not ship a signing secret")
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("default config must not validate until a secret is set")
	}

	cfg.Tokens.Secret = []byte("0123456789abcdef0123456789abcdef")
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config with secret must validate, got %v", err)
	}
}
