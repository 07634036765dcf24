package secstate

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/strayhome/secstate/internal/limiters"
)

// redisLoginThrottle adapts the internal fixed-window limiter to
// [LoginThrottle], translating limiter sentinels into engine errors.
type redisLoginThrottle struct {
	limiter *limiters.LoginLimiter
}

// NewRedisLoginThrottle builds the default [LoginThrottle] over a Redis
// client: fixed-window failure counters per identifier and, when enabled,
// per client IP. The builder wires one automatically when a Redis client is
// supplied; use this constructor to share a throttle across engines or to
// tune it independently.
func NewRedisLoginThrottle(client redis.UniversalClient, cfg ThrottleConfig) LoginThrottle {
	return &redisLoginThrottle{
		limiter: limiters.NewLoginLimiter(client, limiters.LoginConfig{
			EnableIPThrottle: cfg.EnableIPThrottle,
			MaxAttempts:      cfg.MaxAttempts,
			Cooldown:         cfg.Cooldown,
		}),
	}
}

func (t *redisLoginThrottle) Check(ctx context.Context, identifier, ip string) error {
	return mapLimiterErr(t.limiter.Check(ctx, identifier, ip))
}

func (t *redisLoginThrottle) NoteFailure(ctx context.Context, identifier, ip string) error {
	return mapLimiterErr(t.limiter.NoteFailure(ctx, identifier, ip))
}

func (t *redisLoginThrottle) Reset(ctx context.Context, identifier, ip string) error {
	return mapLimiterErr(t.limiter.Reset(ctx, identifier, ip))
}

func mapLimiterErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, limiters.ErrLoginRateLimited):
		return ErrThrottled
	default:
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
}
