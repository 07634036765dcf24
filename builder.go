package secstate

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/strayhome/secstate/cache"
	"github.com/strayhome/secstate/internal"
	internalaudit "github.com/strayhome/secstate/internal/audit"
	"github.com/strayhome/secstate/internal/flows"
	"github.com/strayhome/secstate/internal/stores"
	"github.com/strayhome/secstate/lease"
	"github.com/strayhome/secstate/password"
	"github.com/strayhome/secstate/token"
)

// Builder defines a public type used by secstate APIs.
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config Config

	store cache.Store
	redis redis.UniversalClient

	identity IdentityStore
	epochs   EpochSource
	throttle LoginThrottle

	auditSink AuditSink
	clock     func() time.Time

	built bool
}

// New describes the new operation and its observable behavior.
//
// New may return an error when input validation, dependency calls, or security checks fail.
// New does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig describes the withconfig operation and its observable behavior.
//
// WithConfig may return an error when input validation, dependency calls, or security checks fail.
// WithConfig does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithSecret describes the withsecret operation and its observable behavior.
//
// WithSecret may return an error when input validation, dependency calls, or security checks fail.
// WithSecret does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithSecret(secret []byte) *Builder {
	b.config.Tokens.Secret = cloneBytes(secret)
	return b
}

// WithRedis describes the withredis operation and its observable behavior.
//
// WithRedis may return an error when input validation, dependency calls, or security checks fail.
// WithRedis does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithStore describes the withstore operation and its observable behavior.
//
// WithStore may return an error when input validation, dependency calls, or security checks fail.
// WithStore does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithStore(store cache.Store) *Builder {
	b.store = store
	return b
}

// WithIdentityStore describes the withidentitystore operation and its observable behavior.
//
// WithIdentityStore may return an error when input validation, dependency calls, or security checks fail.
// WithIdentityStore does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithIdentityStore(identity IdentityStore) *Builder {
	b.identity = identity
	return b
}

// WithEpochSource describes the withepochsource operation and its observable behavior.
//
// WithEpochSource may return an error when input validation, dependency calls, or security checks fail.
// WithEpochSource does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithEpochSource(epochs EpochSource) *Builder {
	b.epochs = epochs
	return b
}

// WithLoginThrottle describes the withloginthrottle operation and its observable behavior.
//
// WithLoginThrottle may return an error when input validation, dependency calls, or security checks fail.
// WithLoginThrottle does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithLoginThrottle(throttle LoginThrottle) *Builder {
	b.throttle = throttle
	return b
}

// WithAuditSink describes the withauditsink operation and its observable behavior.
//
// WithAuditSink may return an error when input validation, dependency calls, or security checks fail.
// WithAuditSink does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithClock describes the withclock operation and its observable behavior.
//
// WithClock may return an error when input validation, dependency calls, or security checks fail.
// WithClock does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

// WithMetricsEnabled describes the withmetricsenabled operation and its observable behavior.
//
// WithMetricsEnabled may return an error when input validation, dependency calls, or security checks fail.
// WithMetricsEnabled does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms describes the withlatencyhistograms operation and its observable behavior.
//
// WithLatencyHistograms may return an error when input validation, dependency calls, or security checks fail.
// WithLatencyHistograms does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build describes the build operation and its observable behavior.
//
// Build may return an error when input validation, dependency calls, or security checks fail.
// Build does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	store := b.store
	if store == nil {
		if b.redis == nil {
			return nil, errors.New("state store required: provide a redis client or a cache.Store")
		}
		store = cache.NewRedisStore(b.redis, cfg.Store.KeyPrefix)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.identity == nil {
		return nil, errors.New("identity store required")
	}

	var throttle LoginThrottle
	if cfg.Throttle.Enabled {
		throttle = b.throttle
		if throttle == nil {
			if b.redis == nil {
				return nil, errors.New("Throttle requires a redis client or a custom LoginThrottle")
			}
			throttle = NewRedisLoginThrottle(b.redis, cfg.Throttle)
		}
	}

	now := b.clock
	if now == nil {
		now = time.Now
	}

	// -------- TOKEN CODEC --------
	codec, err := token.NewCodec(token.Config{
		Secret:       cfg.Tokens.Secret,
		Algorithm:    cfg.Tokens.Algorithm,
		Issuer:       cfg.Tokens.Issuer,
		Leeway:       cfg.Tokens.Leeway,
		MaxFutureIAT: cfg.Tokens.MaxFutureIAT,
		Now:          now,
	})
	if err != nil {
		return nil, err
	}

	// -------- REVOCATION STATE --------
	denylist := stores.NewDenylist(store)

	epochs := b.epochs
	if epochs == nil {
		// Epoch entries must outlive the longest-lived token they can
		// invalidate; the extra day absorbs leeway and clock drift.
		epochs = stores.NewEpochStore(store, cfg.Tokens.longestTTL()+24*time.Hour, now)
	}

	// -------- LEASE MANAGER --------
	leases, err := lease.NewManager(store, lease.Config{
		TTL:       cfg.Lease.TTL,
		KeyPrefix: cfg.Lease.KeyPrefix,
		Now:       now,
	})
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:   cloneConfig(cfg),
		store:    store,
		codec:    codec,
		denylist: denylist,
		epochs:   epochs,
		leases:   leases,
		now:      now,
	}

	engine.identity = b.identity
	engine.throttle = throttle
	engine.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink)
	engine.metrics = NewMetrics(cfg.Metrics)

	hasher, err := password.NewHasher(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}
	engine.hasher = hasher

	// -------- FLOW WIRING --------
	engine.flows = flows.New(buildFlowDeps(engine))

	b.built = true

	return engine, nil
}

// buildFlowDeps binds the engine's collaborators into the closure sets the
// flow runners consume. Flows never see the Engine type itself, only these
// narrow dependency structs.
func buildFlowDeps(e *Engine) flows.Deps {
	issue := flows.IssueDeps{
		Now:               e.now,
		NewNonce:          internal.NewNonce,
		Encode:            e.codec.Encode,
		TTLForKind:        e.config.Tokens.TTLFor,
		CurrentEpoch:      e.currentEpoch,
		EngineNotReadyErr: ErrEngineNotReady,
	}

	validate := flows.ValidateDeps{
		Decode:       e.codec.Decode,
		Now:          e.now,
		Denylist:     e.denylist,
		CurrentEpoch: e.currentEpoch,
		NoteRetry:    func() { e.metricInc(MetricStoreRetry) },
	}

	issuePair := func(ctx context.Context, rec flows.PrincipalRecord, domain string) (*flows.TokenPair, error) {
		return flows.RunIssuePair(ctx, rec, domain, issue)
	}

	refresh := flows.RefreshDeps{
		Decode:       e.codec.Decode,
		Now:          e.now,
		Denylist:     e.denylist,
		CurrentEpoch: e.currentEpoch,
		LookupByID:   e.lookupByID,
		IssuePair:    issuePair,
		NoteRetry:    func() { e.metricInc(MetricStoreRetry) },
	}

	revoke := flows.RevokeDeps{
		Decode:    e.codec.Decode,
		Now:       e.now,
		Denylist:  e.denylist,
		BumpEpoch: e.bumpEpoch,
		PairTTL:   e.config.Tokens.RefreshTTL,
		Leeway:    e.config.Tokens.Leeway,
	}

	auth := flows.AuthenticateDeps{
		Now:                 e.now,
		ClientIPFromContext: clientIPFromContext,
		LookupByUsername:    e.lookupByUsername,
		DomainExists:        e.identity.DomainExists,
		VerifyPassword:      e.hasher.Verify,
		VerifyDummy:         e.hasher.DummyVerify,
		IssuePair:           issuePair,
		MetricInc:           e.flowMetricInc,
		EmitAudit:           e.flowEmitAudit,
		Metrics: flows.AuthMetrics{
			Success:   int(MetricAuthenticateSuccess),
			Failure:   int(MetricAuthenticateFailure),
			Throttled: int(MetricAuthenticateThrottled),
			Issued:    int(MetricTokenIssued),
		},
		Events: flows.AuthEvents{
			Success:   auditEventLoginSuccess,
			Failure:   auditEventLoginFailure,
			Throttled: auditEventLoginThrottled,
		},
		Errors: flows.AuthErrors{
			EngineNotReady:      ErrEngineNotReady,
			BadCredentials:      ErrBadCredentials,
			Throttled:           ErrThrottled,
			UnknownDomain:       ErrUnknownDomain,
			DomainNotAuthorized: ErrDomainNotAuthorized,
		},
	}
	if e.throttle != nil {
		auth.CheckLoginRate = e.throttle.Check
		auth.NoteLoginFailure = e.throttle.NoteFailure
		auth.ResetLoginRate = func(ctx context.Context, identifier, ip string) error {
			// A stale failure counter is not worth failing a proven login
			// over; the counter expires on its own.
			if err := e.throttle.Reset(ctx, identifier, ip); err != nil {
				log.Print("secstate: login throttle reset failed after successful grant")
			}
			return nil
		}
	}

	grants := flows.GrantDeps{
		Now:               e.now,
		MinPasswordLength: e.config.Password.MinLength,
		LookupByUsername:  e.lookupByUsername,
		LookupByID:        e.lookupByID,
		DomainExists:      e.identity.DomainExists,
		IssueToken: func(ctx context.Context, req flows.IssueRequest) (string, token.Claims, error) {
			return flows.RunIssueToken(ctx, req, issue)
		},
		Validate: func(ctx context.Context, raw string, expect token.Kind) flows.ValidateResult {
			return flows.RunValidate(ctx, raw, expect, validate)
		},
		MapValidateFailure: mapValidateResult,
		HashPassword:       e.hasher.Hash,
		BumpEpoch:          e.bumpEpoch,
		NewDecoySubject:    internal.NewDecoySubject,
		MetricInc:          e.flowMetricInc,
		EmitAudit:          e.flowEmitAudit,
		Metrics: flows.GrantMetrics{
			Issued:   int(MetricGrantIssued),
			Consumed: int(MetricGrantConsumed),
			Replay:   int(MetricGrantReplay),
		},
		Events: flows.GrantEvents{
			InvitationIssued:   auditEventInvitationIssued,
			InvitationAccepted: auditEventInvitationAccepted,
			ResetIssued:        auditEventResetRequest,
			ResetConfirmed:     auditEventResetConfirm,
		},
		Errors: flows.GrantErrors{
			EngineNotReady: ErrEngineNotReady,
			InvalidRequest: ErrInvalidRequest,
			UnknownDomain:  ErrUnknownDomain,
			PasswordPolicy: ErrPasswordPolicy,
			PrincipalGone:  ErrRevoked,
		},
	}

	return flows.Deps{
		Issue:        issue,
		Authenticate: auth,
		Validate:     validate,
		Refresh:      refresh,
		Revoke:       revoke,
		Grants:       grants,
	}
}
