package ratelimiter

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// takeScript implements the sliding window log on a sorted set keyed by
// request time in milliseconds. Counting and admission must happen in one
// atomic step, so the whole operation runs server-side.
var takeScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)

local count = redis.call('ZCARD', key)
local admitted = 0
if count < limit then
	redis.call('ZADD', key, now, member)
	redis.call('PEXPIRE', key, window)
	admitted = 1
	count = count + 1
end

local reset = now + window
local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
if oldest[2] then
	reset = tonumber(oldest[2]) + window
end

return {admitted, count, reset}
`)

// RedisStore implements Store on Redis sorted sets, sharing the window
// state across service instances.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// RedisStoreOption configures a RedisStore.
type RedisStoreOption func(*RedisStore)

// WithRedisStorePrefix sets the key prefix for rate limit entries.
func WithRedisStorePrefix(prefix string) RedisStoreOption {
	return func(rs *RedisStore) {
		if prefix != "" {
			rs.prefix = prefix
		}
	}
}

// NewRedisStore creates a Redis-backed store. The client must be connected;
// this constructor performs no I/O.
func NewRedisStore(client redis.UniversalClient, opts ...RedisStoreOption) *RedisStore {
	rs := &RedisStore{
		client: client,
		prefix: "ratelimit:",
	}

	for _, opt := range opts {
		opt(rs)
	}

	return rs
}

func (rs *RedisStore) Take(ctx context.Context, key string, cfg Config) (int, time.Time, error) {
	vals, err := takeScript.Run(ctx, rs.client,
		[]string{rs.prefix + key},
		time.Now().UnixMilli(),
		cfg.Window.Milliseconds(),
		cfg.Limit,
		// Distinct member per request so same-millisecond requests
		// don't collapse into one sorted set entry.
		uuid.NewString(),
	).Int64Slice()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("rate limit script: %w", err)
	}
	if len(vals) != 3 {
		return 0, time.Time{}, fmt.Errorf("rate limit script: unexpected reply length %d", len(vals))
	}

	admitted, count, resetMs := vals[0], vals[1], vals[2]

	remaining := cfg.Limit - int(count)
	if admitted == 0 {
		remaining = cfg.Limit - int(count) - 1
	}

	return remaining, time.UnixMilli(resetMs), nil
}

func (rs *RedisStore) Reset(ctx context.Context, key string) error {
	if err := rs.client.Del(ctx, rs.prefix+key).Err(); err != nil {
		return fmt.Errorf("rate limit reset: %w", err)
	}
	return nil
}

// Healthcheck verifies Redis connectivity with a ping.
func (rs *RedisStore) Healthcheck(ctx context.Context) error {
	if err := rs.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}
