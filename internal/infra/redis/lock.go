package redis

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"reklamai-generation/internal/domain"
	"reklamai-generation/internal/domain/ports/adapter"
)

var _ adapter.Locker = (*RedisLocker)(nil)

type RedisLocker struct {
	cli      *redis.Client
	attempts int
	wait     time.Duration
}

// NewLocker returns a locker that gives up after attempts SETNX tries.
func NewLocker(c *Client, attempts int) *RedisLocker {
	if attempts <= 0 {
		attempts = 1
	}
	return &RedisLocker{cli: c.cli, attempts: attempts, wait: 50 * time.Millisecond}
}

// TryLock returns domain.ErrPollInProgress while another holder owns key.
func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	var lastErr error
	for i := 0; i < l.attempts; i++ {
		ok, err := l.cli.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			lastErr = err
			continue
		}
		if ok {
			return token, nil
		}
		lastErr = nil
		if i < l.attempts-1 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(l.wait):
			}
		}
	}
	if lastErr != nil {
		return "", lastErr
	}
	return "", domain.ErrPollInProgress
}

var luaUnlock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end`)

func (l *RedisLocker) Unlock(ctx context.Context, key, token string) error {
	_, err := luaUnlock.Run(ctx, l.cli, []string{key}, token).Result()
	return err
}
