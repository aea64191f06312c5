package workflow

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// tokenBucketScript refills lazily on each call and answers allow/deny plus
// the wait until the next token. Keyed per limiter so several dispatcher
// replicas share one ceiling.
var tokenBucketScript = redis.NewScript(`
local key = KEYS[1]
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

local bucket = redis.call('HMGET', key, 'tokens', 'ts')
local tokens = tonumber(bucket[1])
local ts = tonumber(bucket[2])
if tokens == nil then
  tokens = burst
  ts = now
end

local elapsed = math.max(0, now - ts)
tokens = math.min(burst, tokens + elapsed * rate / 1000)

local allowed = 0
local wait_ms = 0
if tokens >= 1 then
  tokens = tokens - 1
  allowed = 1
else
  wait_ms = math.ceil((1 - tokens) * 1000 / rate)
end

redis.call('HMSET', key, 'tokens', tokens, 'ts', now)
redis.call('PEXPIRE', key, math.ceil(burst * 1000 / rate) + 1000)
return {allowed, wait_ms}
`)

// RateLimiter is a redis-backed token bucket. With no redis client it is
// permissive: the dispatcher's own concurrency bound still applies.
type RateLimiter struct {
	client *redis.Client
	key    string
	rate   int
	burst  int
}

func NewRateLimiter(client *redis.Client, key string, rate, burst int) *RateLimiter {
	if burst < rate {
		burst = rate
	}
	return &RateLimiter{client: client, key: key, rate: rate, burst: burst}
}

// Allow reports whether a token is available now and, if not, how long to
// wait before asking again. Redis errors are treated as allow.
func (r *RateLimiter) Allow(ctx context.Context) (bool, time.Duration) {
	if r == nil || r.client == nil || r.rate <= 0 {
		return true, 0
	}
	now := time.Now().UnixMilli()
	res, err := tokenBucketScript.Run(ctx, r.client, []string{r.key}, r.rate, r.burst, now).Int64Slice()
	if err != nil || len(res) != 2 {
		return true, 0
	}
	if res[0] == 1 {
		return true, 0
	}
	return false, time.Duration(res[1]) * time.Millisecond
}

// Wait blocks until a token is granted or ctx ends.
func (r *RateLimiter) Wait(ctx context.Context) error {
	for {
		ok, wait := r.Allow(ctx)
		if ok {
			return nil
		}
		if wait <= 0 {
			wait = 10 * time.Millisecond
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}
