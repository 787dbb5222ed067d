package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type RedisLocker struct {
	client   *redis.Client
	ttl      time.Duration
	wait     time.Duration
	interval time.Duration
	log      *zap.Logger
}

// NewRedisLocker creates a locker backed by one Redis key per lock. The key
// expires after ttl so a crashed holder cannot wedge it; acquisition is
// retried every interval (with jitter) for up to wait.
func NewRedisLocker(client *redis.Client, ttl, wait, interval time.Duration, log *zap.Logger) *RedisLocker {
	return &RedisLocker{
		client:   client,
		ttl:      ttl,
		wait:     wait,
		interval: interval,
		log:      log.With(zap.String("component", "redis_lock")),
	}
}

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *RedisLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	key = "lock:" + key
	token := uuid.NewString()

	if err := l.acquire(ctx, key, token); err != nil {
		return err
	}
	defer func() {
		// release with a fresh context so a cancelled request still unlocks
		releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := l.release(releaseCtx, key, token); err != nil {
			l.log.Warn("Failed to release lock", zap.Error(err), zap.String("key", key))
		}
	}()

	ctxWithTimeout, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(ctxWithTimeout)
}

func (l *RedisLocker) acquire(ctx context.Context, key, token string) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = l.interval
	policy.MaxInterval = 4 * l.interval
	policy.MaxElapsedTime = l.wait

	op := func() error {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return backoff.Permanent(fmt.Errorf("acquire lock %s: %w", key, err))
		}
		if !ok {
			return ErrLockNotAcquired
		}
		return nil
	}

	err := backoff.Retry(op, backoff.WithContext(policy, ctx))
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}

func (l *RedisLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release lock %s: %w", key, err)
	}
	return nil
}
