package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// FixedWindowLimiter implements a fixed-window rate limiter using Redis:
// INCR key; if count == 1 then PEXPIRE key window.
// key should already include identity and route.
type FixedWindowLimiter struct {
	rdb *goredis.Client
}

func NewFixedWindowLimiter(c *Client) *FixedWindowLimiter {
	if c == nil {
		return &FixedWindowLimiter{rdb: nil}
	}
	return &FixedWindowLimiter{rdb: c.rdb}
}

type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration // 0 if allowed
	ResetAt    time.Time
	Count      int
}

const fixedWindowScript = `
local c = redis.call("INCR", KEYS[1])
if c == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
return {c, ttl}
`

// AllowFixedWindow returns whether the request is allowed for key+window.
func (l *FixedWindowLimiter) AllowFixedWindow(ctx context.Context, key string, limit int, window time.Duration) (Decision, error) {
	if limit <= 0 {
		return Decision{Allowed: true, Limit: limit, Remaining: limit}, nil
	}
	if window < time.Millisecond {
		window = time.Minute
	}
	if l.rdb == nil {
		// fail-open without redis
		return Decision{Allowed: true, Limit: limit, Remaining: limit}, nil
	}

	res, err := l.rdb.Eval(ctx, fixedWindowScript, []string{key}, window.Milliseconds()).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("ratelimit redis eval: %w", err)
	}

	arr, ok := res.([]any)
	if !ok || len(arr) != 2 {
		return Decision{}, fmt.Errorf("ratelimit redis eval: unexpected result type")
	}
	count, ok1 := arr[0].(int64)
	ttlms, ok2 := arr[1].(int64)
	if !ok1 || !ok2 {
		return Decision{}, fmt.Errorf("ratelimit redis eval: unexpected result values")
	}

	ttlGot := time.Duration(ttlms) * time.Millisecond
	d := Decision{
		Allowed:   int(count) <= limit,
		Limit:     limit,
		Remaining: max(0, limit-int(count)),
		Count:     int(count),
		ResetAt:   time.Now().Add(ttlGot),
	}
	if !d.Allowed {
		if ttlGot > 0 {
			d.RetryAfter = ttlGot
		} else {
			d.RetryAfter = window
		}
	}
	return d, nil
}
