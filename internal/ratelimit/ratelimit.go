// Package ratelimit implements the sliding-window rate limiter that
// guards every MailTransport call (§4.5 step 5, §5: "sliding 1-s window;
// when full, the call sleeps until the oldest timestamp ages out").
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRPS is the reference MailTransport rate limit (§4.5).
const DefaultRPS = 14

// Limiter is a Redis-backed sliding 1-second window rate limiter, built
// with the same atomic Lua-script idiom as
// internal/pkg/distlock/redis_lock.go.
type Limiter struct {
	client *redis.Client
	key    string
	rps    int
}

// New builds a Limiter over an existing Redis client, scoped by key
// (callers sharing a key share a budget; e.g. one key per sending IP).
func New(client *redis.Client, key string, rps int) *Limiter {
	if rps <= 0 {
		rps = DefaultRPS
	}
	return &Limiter{client: client, key: key, rps: rps}
}

// script evicts timestamps older than the 1s window, then either admits
// the call (pushing now and returning 1) or reports the oldest surviving
// timestamp so the caller knows how long to sleep (returning 0, oldest).
var script = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call("ZREMRANGEBYSCORE", key, "-inf", now - window)
local count = redis.call("ZCARD", key)

if count < limit then
	redis.call("ZADD", key, now, now .. "-" .. math.random())
	redis.call("PEXPIRE", key, window)
	return {1, 0}
end

local oldest = redis.call("ZRANGE", key, 0, 0, "WITHSCORES")
return {0, tonumber(oldest[2])}
`)

// Wait blocks until a slot in the sliding window is available, then
// consumes it. Returns ctx.Err() if canceled while waiting.
func (l *Limiter) Wait(ctx context.Context) error {
	for {
		now := time.Now().UnixMilli()
		res, err := script.Run(ctx, l.client, []string{l.key}, now, 1000, l.rps).Result()
		if err != nil {
			return fmt.Errorf("ratelimit: evaluate window: %w", err)
		}

		values, ok := res.([]interface{})
		if !ok || len(values) != 2 {
			return fmt.Errorf("ratelimit: unexpected script result %#v", res)
		}
		admitted, _ := values[0].(int64)
		if admitted == 1 {
			return nil
		}

		oldest, _ := values[1].(int64)
		sleepUntil := oldest + 1000
		sleepFor := time.Duration(sleepUntil-now) * time.Millisecond
		if sleepFor <= 0 {
			sleepFor = 10 * time.Millisecond
		}

		timer := time.NewTimer(sleepFor)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
