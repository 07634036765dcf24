//go:build integration
// +build integration

package test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/strayhome/secstate"
	"github.com/strayhome/secstate/password"
)

const integrationPassword = "correct-password-123"

type stubIdentity struct {
	principals map[string]secstate.Principal
	byUsername map[string]string
	domains    map[string]bool
}

func (s *stubIdentity) LookupByUsername(_ context.Context, username string) (*secstate.Principal, error) {
	id, ok := s.byUsername[username]
	if !ok {
		return nil, nil
	}
	p := s.principals[id]
	return &p, nil
}

func (s *stubIdentity) LookupByID(_ context.Context, principalID string) (*secstate.Principal, error) {
	p, ok := s.principals[principalID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (s *stubIdentity) DomainExists(_ context.Context, domain string) (bool, error) {
	return s.domains[domain], nil
}

func newIntegrationIdentity(t testing.TB) *stubIdentity {
	t.Helper()

	return &stubIdentity{
		principals: map[string]secstate.Principal{
			"u1": {
				ID:           "u1",
				Username:     "alice",
				PasswordHash: mustIntegrationHash(t, integrationPassword),
				Role:         "staff",
				Permissions:  []string{"records.read", "records.write"},
				Domains:      []string{"shelter-north"},
			},
		},
		byUsername: map[string]string{"alice": "u1"},
		domains:    map[string]bool{"shelter-north": true},
	}
}

func mustIntegrationHash(t testing.TB, plaintext string) string {
	t.Helper()

	hasher, err := password.NewHasher(password.Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
	if err != nil {
		t.Fatalf("NewHasher failed: %v", err)
	}
	hash, err := hasher.Hash(plaintext)
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	return hash
}

func integrationConfig() secstate.Config {
	cfg := secstate.DefaultConfig()
	cfg.Tokens.Secret = []byte("0123456789abcdef0123456789abcdef")
	cfg.Tokens.Issuer = "secstate-integration"
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	return cfg
}

func newIntegrationRedis(t testing.TB) (*miniredis.Miniredis, *redis.Client, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	return mr, rdb, func() {
		_ = rdb.Close()
		mr.Close()
	}
}

func newIntegrationEngine(t testing.TB, rdb redis.UniversalClient) *secstate.Engine {
	t.Helper()

	engine, err := secstate.New().
		WithConfig(integrationConfig()).
		WithRedis(rdb).
		WithIdentityStore(newIntegrationIdentity(t)).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine
}
