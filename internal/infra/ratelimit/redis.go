package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter counts attempts per key in a fixed window backed by Redis, so
// the limit holds across application replicas.
type RedisLimiter struct {
	Client *redis.Client
	Limit  int
	Window time.Duration
	Prefix string
}

func NewRedisLimiter(client *redis.Client, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{Client: client, Limit: limit, Window: window, Prefix: "ratelimit"}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	redisKey := l.key(key)
	count, err := l.Client.Incr(ctx, redisKey).Result()
	if err != nil {
		return false, fmt.Errorf("ratelimit: incr: %w", err)
	}
	if count == 1 {
		if err := l.Client.Expire(ctx, redisKey, l.window()).Err(); err != nil {
			return false, fmt.Errorf("ratelimit: expire: %w", err)
		}
	}
	return count <= int64(l.limit()), nil
}

func (l *RedisLimiter) Reset(ctx context.Context, key string) error {
	return l.Client.Del(ctx, l.key(key)).Err()
}

func (l *RedisLimiter) key(key string) string {
	prefix := l.Prefix
	if prefix == "" {
		prefix = "ratelimit"
	}
	return prefix + ":" + key
}

func (l *RedisLimiter) limit() int {
	if l.Limit > 0 {
		return l.Limit
	}
	return 10
}

func (l *RedisLimiter) window() time.Duration {
	if l.Window > 0 {
		return l.Window
	}
	return time.Minute
}
