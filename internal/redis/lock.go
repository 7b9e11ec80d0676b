package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-slot-booking/internal/lock"
)

const defaultPollInterval = 25 * time.Millisecond

type redisSlotLocker struct {
	client *redis.Client
	ttl    time.Duration
	wait   time.Duration
	poll   time.Duration
	log    *zap.Logger
}

// NewRedisSlotLocker creates a locker that holds one Redis key per booking key.
// A busy key is polled until wait elapses, so concurrent bookers queue instead of failing.
func NewRedisSlotLocker(client *redis.Client, ttl, wait time.Duration, log *zap.Logger) lock.Locker {
	return &redisSlotLocker{
		client: client,
		ttl:    ttl,
		wait:   wait,
		poll:   defaultPollInterval,
		log:    log,
	}
}

func (l *redisSlotLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	redisKey := fmt.Sprintf("lock:%s", key)
	token := uuid.NewString()

	if err := l.acquire(ctx, redisKey, token); err != nil {
		return err
	}

	defer func() {
		// Release even when ctx is already cancelled.
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		if err := l.release(releaseCtx, redisKey, token); err != nil {
			l.log.Warn("release booking lock", zap.String("key", redisKey), zap.Error(err))
		}
	}()

	ctxWithTimeout, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(ctxWithTimeout)
}

func (l *redisSlotLocker) acquire(ctx context.Context, key, token string) error {
	waitCtx, cancel := context.WithTimeout(ctx, l.wait)
	defer cancel()

	ticker := time.NewTicker(l.poll)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(waitCtx, key, token, l.ttl).Result()
		if err != nil && waitCtx.Err() == nil {
			return fmt.Errorf("acquire booking lock: %w", err)
		}
		if ok {
			return nil
		}

		select {
		case <-waitCtx.Done():
			return fmt.Errorf("%w: %s", lock.ErrLockNotAcquired, key)
		case <-ticker.C:
		}
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

func (l *redisSlotLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release booking lock: %w", err)
	}
	return nil
}
