package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrLockBusy means the professional's calendar lock could not be
	// acquired within the configured wait. Callers may retry.
	ErrLockBusy = errors.New("calendar lock busy")
)

// Locker serializes the booking critical section per professional.
type Locker interface {
	WithProfessionalLock(ctx context.Context, professionalID uuid.UUID, fn func(ctx context.Context) error) error
}

type redisCalendarLocker struct {
	client  *redis.Client
	ttl     time.Duration
	maxWait time.Duration
}

// NewCalendarLocker creates a locker backed by a per-professional Redis key.
// Acquisition is retried until maxWait elapses, then fails with ErrLockBusy
// so the caller can surface a retryable error instead of blocking forever.
func NewCalendarLocker(client *redis.Client, ttl, maxWait time.Duration) Locker {
	return &redisCalendarLocker{
		client:  client,
		ttl:     ttl,
		maxWait: maxWait,
	}
}

const acquireRetryDelay = 25 * time.Millisecond

func (l *redisCalendarLocker) WithProfessionalLock(ctx context.Context, professionalID uuid.UUID, fn func(ctx context.Context) error) error {
	key := fmt.Sprintf("lock:prof:%s", professionalID.String())
	token := uuid.NewString()

	if err := l.acquire(ctx, key, token); err != nil {
		return err
	}

	defer func() {
		_ = l.release(context.WithoutCancel(ctx), key, token)
	}()

	ctxWithTimeout, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(ctxWithTimeout)
}

func (l *redisCalendarLocker) acquire(ctx context.Context, key, token string) error {
	deadline := time.Now().Add(l.maxWait)

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return fmt.Errorf("acquire calendar lock: %w", err)
		}
		if ok {
			return nil
		}
		if time.Now().After(deadline) {
			return ErrLockBusy
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(acquireRetryDelay):
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

func (l *redisCalendarLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release calendar lock: %w", err)
	}
	return nil
}
