package cooldown

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// domainBucketScript runs the token bucket atomically in Redis so the
// cooldown holds across curator processes.
// KEYS[1] = bucket key ("cooldown:<domain>")
// ARGV[1] = refill rate (tokens per second)
// ARGV[2] = capacity
// ARGV[3] = cost
// ARGV[4] = current unix timestamp (seconds, fractional)
var domainBucketScript = redis.NewScript(`
local key = KEYS[1]
local rate = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local cost = tonumber(ARGV[3])
local now = tonumber(ARGV[4])

local state = redis.call("HMGET", key, "tokens", "last_refill")
local tokens = tonumber(state[1])
local last_refill = tonumber(state[2])

if not tokens or not last_refill then
    tokens = capacity
    last_refill = now
end

local elapsed = now - last_refill
if elapsed > 0 then
    tokens = tokens + elapsed * rate
    if tokens > capacity then
        tokens = capacity
    end
    last_refill = now
end

local allowed = 0
if tokens >= cost then
    tokens = tokens - cost
    allowed = 1
end

redis.call("HMSET", key, "tokens", tokens, "last_refill", last_refill)
redis.call("EXPIRE", key, 3600)

return allowed
`)

// Redis is a cross-process limiter sharing one bucket per domain.
type Redis struct {
	client   *redis.Client
	interval float64
	poll     time.Duration
}

// NewRedis builds a limiter over the given Redis address, admitting one
// pass per domain every intervalSeconds.
func NewRedis(addr, password string, db int, intervalSeconds float64) *Redis {
	if intervalSeconds <= 0 {
		intervalSeconds = 1
	}
	return &Redis{
		client:   redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db}),
		interval: intervalSeconds,
		poll:     time.Second,
	}
}

// Wait polls the shared bucket until a token is granted or ctx ends.
func (r *Redis) Wait(ctx context.Context, domain string) error {
	key := fmt.Sprintf("cooldown:%s", domain)
	ratePerSec := 1 / r.interval
	for {
		now := float64(time.Now().UnixMicro()) / 1e6
		res, err := domainBucketScript.Run(ctx, r.client, []string{key}, ratePerSec, 1, 1, now).Result()
		if err != nil {
			return fmt.Errorf("cooldown: redis bucket: %w", err)
		}
		allowed, ok := res.(int64)
		if !ok {
			return fmt.Errorf("cooldown: unexpected script result %T", res)
		}
		if allowed == 1 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.poll):
		}
	}
}

// Close releases the underlying client.
func (r *Redis) Close() error { return r.client.Close() }
