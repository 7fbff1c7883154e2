package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RunLock excludes overlapping runs of the same job across processes
type RunLock interface {
	// TryAcquire returns a release func when the lock was taken, or acquired=false when another run holds it
	TryAcquire(ctx context.Context, job string, ttl time.Duration) (release func(context.Context) error, acquired bool, err error)
}

// releaseScript deletes the key only if it still carries our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisRunLock implements RunLock with SET NX PX
type RedisRunLock struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisRunLock(client redis.UniversalClient, prefix string) *RedisRunLock {
	return &RedisRunLock{client: client, prefix: prefix}
}

func (l *RedisRunLock) key(job string) string {
	return fmt.Sprintf("%sfollowup:run-lock:%s", l.prefix, job)
}

func (l *RedisRunLock) TryAcquire(ctx context.Context, job string, ttl time.Duration) (func(context.Context) error, bool, error) {
	key := l.key(job)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire run lock %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func(ctx context.Context) error {
		err := releaseScript.Run(ctx, l.client, []string{key}, token).Err()
		if err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("failed to release run lock %s: %w", key, err)
		}
		return nil
	}
	return release, true, nil
}

// NoopRunLock always grants the lock. Used when the cache is disabled.
type NoopRunLock struct{}

func (NoopRunLock) TryAcquire(ctx context.Context, job string, ttl time.Duration) (func(context.Context) error, bool, error) {
	return func(context.Context) error { return nil }, true, nil
}
