// Command secstate-loadtest drives a security-state engine through its three
// hot paths: access validation, refresh rotation, and record leasing. It
// seeds a population of principals with live token pairs, then hammers each
// path from a worker pool and reports wall time, throughput, and latency
// quantiles per phase.
//
// With no -redis-addr flag and no SECSTATE_REDIS_ADDR in the environment, the
// tool boots a throwaway in-process miniredis so it can run anywhere.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/strayhome/secstate"
	"github.com/strayhome/secstate/envconfig"
	"github.com/strayhome/secstate/internal"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "secstate-loadtest:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		principals  = flag.Int("principals", 50000, "number of principals to seed tokens for")
		concurrency = flag.Int("concurrency", 256, "number of concurrent workers")
		ops         = flag.Int("ops", 200000, "operations per phase (validate + refresh + lease)")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, SECSTATE_REDIS_ADDR or miniredis is used")
		prefix      = flag.String("prefix", "lt", "state key prefix")
	)
	flag.Parse()

	if *principals < 1 || *concurrency < 1 || *ops < 1 {
		return errors.New("principals, concurrency, and ops must all be positive")
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = envconfig.RedisAddr("")
	}
	client, stop, err := dialRedis(addr)
	if err != nil {
		return err
	}
	defer stop()

	cfg := envconfig.Load()
	if len(cfg.Tokens.Secret) == 0 {
		// Throwaway secret; tokens never outlive the run.
		secret, err := internal.NewSecret(32)
		if err != nil {
			return fmt.Errorf("generate secret: %w", err)
		}
		cfg.Tokens.Secret = secret
	}
	cfg.Store.KeyPrefix = *prefix
	cfg.Throttle.Enabled = false

	engine, err := secstate.New().
		WithConfig(cfg).
		WithRedis(client).
		WithIdentityStore(seedIdentity(*principals)).
		Build()
	if err != nil {
		return fmt.Errorf("engine build failed: %w", err)
	}
	defer engine.Close()

	fmt.Printf("issuing %d access/refresh pairs\n", *principals)
	t0 := time.Now()
	states, err := seedTokens(ctx, engine, *principals)
	if err != nil {
		return err
	}
	fmt.Printf("issued in %s\n", time.Since(t0).Round(time.Millisecond))

	fmt.Println(runPhase(ctx, "validate", *ops, *concurrency, func(ctx context.Context, r *rand.Rand) error {
		_, err := engine.ValidateAccess(ctx, states[r.Intn(len(states))].access)
		return err
	}))

	fmt.Println(runPhase(ctx, "refresh", *ops, *concurrency, func(ctx context.Context, r *rand.Rand) error {
		st := &states[r.Intn(len(states))]
		// Per-chain lock: rotating one chain from two workers at once
		// would trip replay detection.
		st.mu.Lock()
		defer st.mu.Unlock()
		pair, err := engine.Refresh(ctx, st.refresh)
		if err != nil {
			return err
		}
		st.access, st.refresh = pair.AccessToken, pair.RefreshToken
		return nil
	}))

	// The lease phase cycles acquire/release over a record space a tenth
	// the size of the principal set, so workers genuinely collide.
	// Conflicts are the point of the exercise and are counted apart from
	// failures.
	records := len(states) / 10
	if records == 0 {
		records = 1
	}
	var conflicts atomic.Int64
	fmt.Println(runPhase(ctx, "lease", *ops, *concurrency, func(ctx context.Context, r *rand.Rand) error {
		record := fmt.Sprintf("animal:%d:card", r.Intn(records))
		holder := states[r.Intn(len(states))].principalID
		if _, err := engine.AcquireLease(ctx, record, holder); err != nil {
			if errors.Is(err, secstate.ErrAlreadyLocked) {
				conflicts.Add(1)
				return nil
			}
			return err
		}
		return engine.ReleaseLease(ctx, record, holder)
	}))
	fmt.Printf("lease contention: %d of %d acquires hit a held lock\n", conflicts.Load(), *ops)

	return nil
}

// dialRedis connects to addr, or boots a throwaway miniredis when addr is
// empty. The returned stop func tears down the client and, when applicable,
// the embedded server.
func dialRedis(addr string) (redis.UniversalClient, func(), error) {
	if addr != "" {
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		fmt.Printf("redis target: %s\n", addr)
		return client, func() { _ = client.Close() }, nil
	}
	mr, err := miniredis.Run()
	if err != nil {
		return nil, nil, fmt.Errorf("start miniredis: %w", err)
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
	fmt.Printf("embedded miniredis: %s\n", mr.Addr())
	return client, func() {
		_ = client.Close()
		mr.Close()
	}, nil
}

// tokenState is one principal's live token pair. The mutex serializes
// refresh rotation for the chain it guards.
type tokenState struct {
	principalID string
	access      string
	refresh     string
	mu          sync.Mutex
}

func seedTokens(ctx context.Context, engine *secstate.Engine, n int) ([]tokenState, error) {
	states := make([]tokenState, n)
	for i := range states {
		pid := fmt.Sprintf("p-%d", i)
		access, _, err := engine.Issue(ctx, secstate.IssueRequest{
			Subject: pid,
			Domain:  "loadtest",
			Kind:    secstate.KindAccess,
		})
		if err != nil {
			return nil, fmt.Errorf("seed access token for %s: %w", pid, err)
		}
		refresh, _, err := engine.Issue(ctx, secstate.IssueRequest{
			Subject: pid,
			Domain:  "loadtest",
			Kind:    secstate.KindRefresh,
		})
		if err != nil {
			return nil, fmt.Errorf("seed refresh token for %s: %w", pid, err)
		}
		states[i].principalID = pid
		states[i].access = access
		states[i].refresh = refresh
	}
	return states, nil
}

// benchOp performs one operation against the engine. A non-nil return counts
// as a failure; ops that want to classify outcomes differently (the lease
// phase and its conflicts) do their own accounting and return nil.
type benchOp func(ctx context.Context, r *rand.Rand) error

// runPhase spreads ops calls of op across a worker pool. Every worker
// samples latencies into its own slice and the slices are merged once after
// the pool drains, so the hot loop holds no shared lock.
func runPhase(ctx context.Context, name string, ops, workers int, op benchOp) report {
	var (
		wg       sync.WaitGroup
		claimed  atomic.Int64
		failures atomic.Int64
	)
	samples := make([][]time.Duration, workers)
	seeder := rand.New(rand.NewSource(time.Now().UnixNano()))
	seeds := make([]int64, workers)
	for i := range seeds {
		seeds[i] = seeder.Int63()
	}

	start := time.Now()
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(seeds[w]))
			local := make([]time.Duration, 0, ops/workers+1)
			for claimed.Add(1) <= int64(ops) {
				t0 := time.Now()
				if err := op(ctx, r); err != nil {
					failures.Add(1)
				}
				local = append(local, time.Since(t0))
			}
			samples[w] = local
		}(w)
	}
	wg.Wait()
	wall := time.Since(start)

	merged := make([]time.Duration, 0, ops)
	for _, s := range samples {
		merged = append(merged, s...)
	}
	return summarize(name, wall, merged, failures.Load())
}

type report struct {
	name      string
	wall      time.Duration
	ops       int
	failures  int64
	rate      float64
	quantiles [3]time.Duration // p50, p95, p99
}

func summarize(name string, wall time.Duration, samples []time.Duration, failures int64) report {
	rep := report{name: name, wall: wall, ops: len(samples), failures: failures}
	if len(samples) == 0 {
		return rep
	}
	slices.Sort(samples)
	for i, q := range [...]float64{0.50, 0.95, 0.99} {
		rep.quantiles[i] = quantile(samples, q)
	}
	rep.rate = float64(len(samples)) / wall.Seconds()
	return rep
}

// quantile returns the nearest-rank q-quantile of an ascending sample set.
func quantile(sorted []time.Duration, q float64) time.Duration {
	rank := int(q*float64(len(sorted))+0.5) - 1
	if rank < 0 {
		rank = 0
	}
	if rank > len(sorted)-1 {
		rank = len(sorted) - 1
	}
	return sorted[rank]
}

func (r report) String() string {
	return fmt.Sprintf("%s: %d ops in %s (%.0f op/s), %d failed, p50=%s p95=%s p99=%s",
		r.name,
		r.ops,
		r.wall.Round(time.Millisecond),
		r.rate,
		r.failures,
		r.quantiles[0].Round(time.Microsecond),
		r.quantiles[1].Round(time.Microsecond),
		r.quantiles[2].Round(time.Microsecond),
	)
}

// memIdentity is a static in-memory principal set. The refresh path looks up
// principals by ID on every rotation, so the stub has to be concurrency-safe
// reads over a map built once at seed time.
type memIdentity struct {
	byUsername map[string]*secstate.Principal
	byID       map[string]*secstate.Principal
}

func seedIdentity(n int) *memIdentity {
	m := &memIdentity{
		byUsername: make(map[string]*secstate.Principal, n),
		byID:       make(map[string]*secstate.Principal, n),
	}
	for i := 0; i < n; i++ {
		p := &secstate.Principal{
			ID:       fmt.Sprintf("p-%d", i),
			Username: fmt.Sprintf("user-%d@loadtest", i),
			Role:     "volunteer",
			Domains:  []string{"loadtest"},
		}
		m.byUsername[p.Username] = p
		m.byID[p.ID] = p
	}
	return m
}

func (m *memIdentity) LookupByUsername(_ context.Context, username string) (*secstate.Principal, error) {
	return m.byUsername[username], nil
}

func (m *memIdentity) LookupByID(_ context.Context, principalID string) (*secstate.Principal, error) {
	return m.byID[principalID], nil
}

func (m *memIdentity) DomainExists(_ context.Context, domain string) (bool, error) {
	return domain == "loadtest", nil
}
