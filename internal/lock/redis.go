package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only while it still holds our token.
const releaseScript = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`

type redisClient interface {
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd
}

// RedisOptions tunes a RedisLocker.
type RedisOptions struct {
	// Prefix namespaces keys, default "labscheduler:lock:".
	Prefix string
	// TTL bounds how long a crashed holder can keep a key, default 10s.
	TTL time.Duration
	// Wait bounds how long Lock polls for a busy key, default 5s.
	Wait time.Duration
	// Poll is the delay between attempts, default 50ms.
	Poll   time.Duration
	Logger *slog.Logger
}

// RedisLocker is a distributed locker built on SET NX PX with a token checked on
// release.
type RedisLocker struct {
	client redisClient
	opts   RedisOptions
}

// NewRedisLocker wraps a go-redis client.
func NewRedisLocker(client *redis.Client, opts RedisOptions) *RedisLocker {
	return newRedis(client, opts)
}

func newRedis(client redisClient, opts RedisOptions) *RedisLocker {
	if opts.Prefix == "" {
		opts.Prefix = "labscheduler:lock:"
	}
	if opts.TTL <= 0 {
		opts.TTL = 10 * time.Second
	}
	if opts.Wait <= 0 {
		opts.Wait = 5 * time.Second
	}
	if opts.Poll <= 0 {
		opts.Poll = 50 * time.Millisecond
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &RedisLocker{client: client, opts: opts}
}

// Lock polls until the key is set for this caller, ctx is done or the wait
// limit passes.
func (r *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	fullKey := r.opts.Prefix + key
	token := uuid.NewString()

	waitCtx, cancel := context.WithTimeout(ctx, r.opts.Wait)
	defer cancel()

	for {
		acquired, err := r.client.SetNX(waitCtx, fullKey, token, r.opts.TTL).Result()
		if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("lock: acquire %s: %w", key, err)
		}
		if acquired {
			return r.unlocker(fullKey, token), nil
		}

		timer := time.NewTimer(r.opts.Poll)
		select {
		case <-waitCtx.Done():
			timer.Stop()
			return nil, fmt.Errorf("%w: %s: %w", ErrNotAcquired, key, waitCtx.Err())
		case <-timer.C:
		}
	}
}

func (r *RedisLocker) unlocker(fullKey, token string) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := r.client.Eval(ctx, releaseScript, []string{fullKey}, token).Err(); err != nil {
			r.opts.Logger.WarnContext(ctx, "failed to release lock", "key", fullKey, "error", err)
		}
	}
}
