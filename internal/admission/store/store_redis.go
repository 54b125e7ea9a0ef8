package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"chequeverify/internal/admission/models"
)

// fixedWindowScript increments a counter and starts its expiry on first use,
// so every instance sharing the key sees one window.
var fixedWindowScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {count, ttl}
`)

// RedisCounter implements Counter on a shared Redis.
type RedisCounter struct {
	client redis.UniversalClient
	now    func() time.Time
}

func NewRedis(client redis.UniversalClient) *RedisCounter {
	return &RedisCounter{client: client, now: time.Now}
}

func (c *RedisCounter) Increment(ctx context.Context, key string, window time.Duration) (models.Window, error) {
	if c.client == nil {
		return models.Window{}, fmt.Errorf("redis client is nil")
	}
	windowMS := window.Milliseconds()
	if windowMS <= 0 {
		windowMS = 1000
	}

	raw, err := fixedWindowScript.Run(ctx, c.client, []string{key}, windowMS).Result()
	if err != nil {
		return models.Window{}, fmt.Errorf("admission counter: %w", err)
	}
	values, ok := raw.([]any)
	if !ok || len(values) != 2 {
		return models.Window{}, fmt.Errorf("unexpected redis script response type")
	}
	count, ok := values[0].(int64)
	if !ok {
		return models.Window{}, fmt.Errorf("unexpected redis count type %T", values[0])
	}
	ttlMS, ok := values[1].(int64)
	if !ok {
		return models.Window{}, fmt.Errorf("unexpected redis ttl type %T", values[1])
	}

	return models.Window{
		Count:   int(count),
		ResetAt: c.now().Add(time.Duration(ttlMS) * time.Millisecond),
	}, nil
}
