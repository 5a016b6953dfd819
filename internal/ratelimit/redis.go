package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// checkScript runs the full sliding-window sequence in one round trip:
// prune entries older than the window, count what remains, insert the new
// timestamp when under the limit, refresh the key TTL. Atomicity prevents
// two concurrent requests from both taking the last slot.
const checkScript = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local max = tonumber(ARGV[3])
local member = ARGV[4]

redis.call("ZREMRANGEBYSCORE", key, 0, now - window)
local count = redis.call("ZCARD", key)

local allowed = 0
if count < max then
  redis.call("ZADD", key, now, member)
  redis.call("PEXPIRE", key, window)
  count = count + 1
  allowed = 1
end

local oldest = redis.call("ZRANGE", key, 0, 0, "WITHSCORES")
local oldestScore = now
if oldest[2] then
  oldestScore = tonumber(oldest[2])
end

return {allowed, count, oldestScore}
`

var checkLua = redis.NewScript(checkScript)

// RedisBackend is the durable sliding-window backend: one sorted set of
// request timestamps per key.
type RedisBackend struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewRedisBackend creates a sliding-window backend on the given client.
func NewRedisBackend(client redis.UniversalClient, prefix string) *RedisBackend {
	if prefix == "" {
		prefix = "rl"
	}
	return &RedisBackend{
		redis:  client,
		prefix: prefix,
		now:    time.Now,
	}
}

// SetClock overrides the backend clock. Test hook.
func (b *RedisBackend) SetClock(now func() time.Time) {
	b.now = now
}

func (b *RedisBackend) Check(ctx context.Context, key string, cfg Config) (Result, error) {
	now := b.now()
	nowMs := now.UnixMilli()
	windowMs := cfg.Window.Milliseconds()

	member := fmt.Sprintf("%d-%s", nowMs, uuid.NewString())

	raw, err := checkLua.Run(ctx, b.redis, []string{b.prefix + ":" + key},
		nowMs, windowMs, cfg.MaxRequests, member).Result()
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	reply, ok := raw.([]interface{})
	if !ok || len(reply) != 3 {
		return Result{}, fmt.Errorf("%w: unexpected script reply", ErrBackendUnavailable)
	}

	allowed := toInt64(reply[0]) == 1
	count := int(toInt64(reply[1]))
	oldestMs := toInt64(reply[2])

	resetAt := time.UnixMilli(oldestMs + windowMs)

	res := Result{
		Allowed:   allowed,
		Limit:     cfg.MaxRequests,
		Remaining: cfg.MaxRequests - count,
		ResetAt:   resetAt,
	}
	if res.Remaining < 0 {
		res.Remaining = 0
	}
	if !allowed {
		retry := resetAt.Sub(now)
		if retry < time.Second {
			retry = time.Second
		}
		res.RetryAfter = retry.Round(time.Second)
	}
	return res, nil
}

func toInt64(v interface{}) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	default:
		return 0
	}
}
