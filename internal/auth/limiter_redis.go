// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taibuivan/extcontrol/internal/platform/constants"
)

// Each entry is a hash {count, last} with last in unix milliseconds. The
// scripts compare against the caller's clock, and the key TTL only garbage
// collects entries whose window has already elapsed.
var (
	recordAttemptScript = redis.NewScript(`
local fields = redis.call('HMGET', KEYS[1], 'count', 'last')
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local count = 0
if fields[1] and fields[2] then
  if now - tonumber(fields[2]) <= window then
    count = tonumber(fields[1])
  end
end
count = count + 1
redis.call('HSET', KEYS[1], 'count', count, 'last', now)
redis.call('PEXPIRE', KEYS[1], window + 1)
return count
`)

	isBlockedScript = redis.NewScript(`
local fields = redis.call('HMGET', KEYS[1], 'count', 'last')
if not fields[1] or not fields[2] then
  return 0
end
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local maxAttempts = tonumber(ARGV[3])
local block = tonumber(ARGV[4])
local sinceLast = now - tonumber(fields[2])
if sinceLast > window then
  redis.call('DEL', KEYS[1])
  return 0
end
if tonumber(fields[1]) >= maxAttempts and sinceLast < block then
  return 1
end
return 0
`)
)

// RedisLimiter is an [AttemptLimiter] shared by every API process.
//
// Read-modify-write happens inside Lua scripts, so concurrent attempts for the
// same identifier from different processes cannot undercount.
type RedisLimiter struct {
	client  redis.UniversalClient
	policy  Policy
	prefix  string
	nowFunc func() time.Time
}

// NewRedisLimiter creates a limiter storing entries under [constants.RedisPrefixLoginAttempts].
func NewRedisLimiter(client redis.UniversalClient, policy Policy) *RedisLimiter {
	return &RedisLimiter{
		client:  client,
		policy:  policy,
		prefix:  constants.RedisPrefixLoginAttempts,
		nowFunc: time.Now,
	}
}

// WithClock replaces the time source used for window arithmetic.
func (limiter *RedisLimiter) WithClock(now func() time.Time) *RedisLimiter {
	limiter.nowFunc = now
	return limiter
}

func (limiter *RedisLimiter) key(identifier string) string {
	return limiter.prefix + identifier
}

func (limiter *RedisLimiter) IsBlocked(ctx context.Context, identifier string) (bool, error) {
	blocked, err := isBlockedScript.Run(ctx, limiter.client,
		[]string{limiter.key(identifier)},
		limiter.nowFunc().UnixMilli(),
		limiter.policy.Window.Milliseconds(),
		limiter.policy.MaxAttempts,
		limiter.policy.BlockDuration.Milliseconds(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("redis_limiter_is_blocked_failed: %w", err)
	}
	return blocked == 1, nil
}

func (limiter *RedisLimiter) RecordAttempt(ctx context.Context, identifier string) error {
	err := recordAttemptScript.Run(ctx, limiter.client,
		[]string{limiter.key(identifier)},
		limiter.nowFunc().UnixMilli(),
		limiter.policy.Window.Milliseconds(),
	).Err()
	if err != nil {
		return fmt.Errorf("redis_limiter_record_failed: %w", err)
	}
	return nil
}

func (limiter *RedisLimiter) Reset(ctx context.Context, identifier string) error {
	if err := limiter.client.Del(ctx, limiter.key(identifier)).Err(); err != nil {
		return fmt.Errorf("redis_limiter_reset_failed: %w", err)
	}
	return nil
}
