//go:build integration
// +build integration

package test

import (
	"context"
	"net"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/strayhome/secstate"
)

// cmdCounter is a go-redis Hook that counts the number of Redis round-trips
// (individual commands and pipeline calls).
type cmdCounter struct {
	commands  atomic.Int64
	pipelines atomic.Int64
}

func (h *cmdCounter) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return next(ctx, network, addr)
	}
}

func (h *cmdCounter) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		h.commands.Add(1)
		return next(ctx, cmd)
	}
}

func (h *cmdCounter) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		// Each pipeline call is one network round-trip regardless of command count.
		h.pipelines.Add(1)
		h.commands.Add(int64(len(cmds)))
		return next(ctx, cmds)
	}
}

func (h *cmdCounter) Reset() {
	h.commands.Store(0)
	h.pipelines.Store(0)
}

func (h *cmdCounter) Commands() int64  { return h.commands.Load() }
func (h *cmdCounter) Pipelines() int64 { return h.pipelines.Load() }

// newCountedEngine builds an engine over miniredis with a cmdCounter hook
// installed. Reset the counter before each measured operation.
func newCountedEngine(t *testing.T) (*secstate.Engine, *cmdCounter, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	counter := &cmdCounter{}
	rdb.AddHook(counter)

	// Warm the connection: go-redis may emit extra commands on first use
	// (handshake, AUTH, SELECT, CLIENT SETNAME, etc.). Issuing a PING
	// before measuring avoids counting that noise.
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Fatalf("warmup ping: %v", err)
	}

	engine, err := secstate.New().
		WithConfig(integrationConfig()).
		WithRedis(rdb).
		WithIdentityStore(newIntegrationIdentity(t)).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	counter.Reset()

	return engine, counter, func() {
		engine.Close()
		_ = rdb.Close()
		mr.Close()
	}
}

// TestValidateRedisBudget verifies that validating an access token costs at
// most the denylist probe plus the epoch read.
func TestValidateRedisBudget(t *testing.T) {
	engine, counter, cleanup := newCountedEngine(t)
	defer cleanup()

	ctx := context.Background()
	res, err := engine.Authenticate(ctx, "alice", integrationPassword, "shelter-north")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}

	counter.Reset()

	if _, err := engine.ValidateAccess(ctx, res.AccessToken); err != nil {
		t.Fatalf("validate: %v", err)
	}

	// Denylist EXISTS + epoch GET = 2 commands.
	cmds := counter.Commands()
	if cmds > 3 {
		t.Errorf("ValidateAccess used %d Redis commands; budget is ≤ 3 (denylist+epoch)", cmds)
	}
	t.Logf("ValidateAccess: %d commands, %d pipelines", cmds, counter.Pipelines())
}

// TestRefreshRedisBudget verifies that one rotation stays within the
// denylist probe, epoch read, consume write, and the mint-time epoch read.
func TestRefreshRedisBudget(t *testing.T) {
	engine, counter, cleanup := newCountedEngine(t)
	defer cleanup()

	ctx := context.Background()
	res, err := engine.Authenticate(ctx, "alice", integrationPassword, "shelter-north")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}

	counter.Reset()

	if _, err := engine.Refresh(ctx, res.RefreshToken); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	// EXISTS + GET + SETNX + GET = 4 commands.
	cmds := counter.Commands()
	if cmds > 6 {
		t.Errorf("Refresh used %d Redis commands; budget is ≤ 6", cmds)
	}
	t.Logf("Refresh: %d commands, %d pipelines", cmds, counter.Pipelines())
}

// TestLogoutRedisBudget verifies that killing a pair writes exactly the two
// tombstones.
func TestLogoutRedisBudget(t *testing.T) {
	engine, counter, cleanup := newCountedEngine(t)
	defer cleanup()

	ctx := context.Background()
	res, err := engine.Authenticate(ctx, "alice", integrationPassword, "shelter-north")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}

	counter.Reset()

	if err := engine.Logout(ctx, res.AccessToken); err != nil {
		t.Fatalf("logout: %v", err)
	}

	// SET tombstone for each half = 2 commands.
	cmds := counter.Commands()
	if cmds > 4 {
		t.Errorf("Logout used %d Redis commands; budget is ≤ 4 (two tombstones)", cmds)
	}
	t.Logf("Logout: %d commands, %d pipelines", cmds, counter.Pipelines())
}

// TestAcquireLeaseRedisBudget verifies that taking a free lease is one read
// plus one conditional write.
func TestAcquireLeaseRedisBudget(t *testing.T) {
	engine, counter, cleanup := newCountedEngine(t)
	defer cleanup()

	ctx := context.Background()

	counter.Reset()

	if _, err := engine.AcquireLease(ctx, "dog-041", "u1"); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	// GET + SETNX = 2 commands for an uncontended slot.
	cmds := counter.Commands()
	if cmds > 4 {
		t.Errorf("AcquireLease used %d Redis commands; budget is ≤ 4", cmds)
	}
	t.Logf("AcquireLease: %d commands, %d pipelines", cmds, counter.Pipelines())
}

// TestAuthenticateRedisBudget verifies the password grant stays within the
// throttle reads, the post-success reset, and the mint-time epoch read.
func TestAuthenticateRedisBudget(t *testing.T) {
	engine, counter, cleanup := newCountedEngine(t)
	defer cleanup()

	ctx := context.Background()

	counter.Reset()

	if _, err := engine.Authenticate(ctx, "alice", integrationPassword, "shelter-north"); err != nil {
		t.Fatalf("authenticate: %v", err)
	}

	// Throttle GET(s) + DEL on success + epoch GET; argon2 dominates the
	// wall clock either way.
	cmds := counter.Commands()
	if cmds > 8 {
		t.Errorf("Authenticate used %d Redis commands; budget is ≤ 8", cmds)
	}
	t.Logf("Authenticate: %d commands, %d pipelines", cmds, counter.Pipelines())
}
