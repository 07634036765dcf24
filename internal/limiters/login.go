package limiters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrLoginRateLimited      = errors.New("login rate limited")
	ErrLoginRedisUnavailable = errors.New("login redis unavailable")
)

// LoginConfig holds throttle tuning for the password grant.
type LoginConfig struct {
	EnableIPThrottle bool
	MaxAttempts      int
	Cooldown         time.Duration
}

// LoginLimiter counts failed password grants per identifier and, optionally,
// per client IP using fixed-window Redis counters. Only failures count;
// success resets the window.
type LoginLimiter struct {
	redis  redis.UniversalClient
	config LoginConfig
}

// NewLoginLimiter creates a [LoginLimiter] backed by the given Redis client.
func NewLoginLimiter(redisClient redis.UniversalClient, cfg LoginConfig) *LoginLimiter {
	return &LoginLimiter{
		redis:  redisClient,
		config: cfg,
	}
}

// Check reports whether the identifier+IP pair is still inside its attempt
// budget. It does not count the attempt.
func (l *LoginLimiter) Check(ctx context.Context, identifier, ip string) error {
	if l == nil {
		return nil
	}

	if err := l.checkCounter(ctx, loginIdentifierKey(identifier)); err != nil {
		return err
	}

	if l.config.EnableIPThrottle && ip != "" {
		if err := l.checkCounter(ctx, loginIPKey(ip)); err != nil {
			return err
		}
	}

	return nil
}

// NoteFailure records a failed attempt for the identifier+IP pair.
func (l *LoginLimiter) NoteFailure(ctx context.Context, identifier, ip string) error {
	if l == nil {
		return nil
	}

	count, err := l.incrementWithTTL(ctx, loginIdentifierKey(identifier))
	if err != nil {
		return err
	}
	if count > int64(l.config.MaxAttempts) {
		return ErrLoginRateLimited
	}

	if l.config.EnableIPThrottle && ip != "" {
		count, err = l.incrementWithTTL(ctx, loginIPKey(ip))
		if err != nil {
			return err
		}
		if count > int64(l.config.MaxAttempts) {
			return ErrLoginRateLimited
		}
	}

	return nil
}

// Reset clears the failure counters for the identifier+IP pair. Called after
// a successful grant.
func (l *LoginLimiter) Reset(ctx context.Context, identifier, ip string) error {
	if l == nil {
		return nil
	}

	keys := []string{loginIdentifierKey(identifier)}
	if l.config.EnableIPThrottle && ip != "" {
		keys = append(keys, loginIPKey(ip))
	}

	if err := l.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrLoginRedisUnavailable, err)
	}

	return nil
}

func (l *LoginLimiter) checkCounter(ctx context.Context, key string) error {
	count, err := l.redis.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrLoginRedisUnavailable, err)
	}

	if count > int64(l.config.MaxAttempts) {
		return ErrLoginRateLimited
	}

	return nil
}

func (l *LoginLimiter) incrementWithTTL(ctx context.Context, key string) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrLoginRedisUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, l.config.Cooldown).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrLoginRedisUnavailable, err)
		}
	}

	return count, nil
}

func loginIdentifierKey(identifier string) string {
	return "thr:" + identifier
}

func loginIPKey(ip string) string {
	return "thrip:" + ip
}
