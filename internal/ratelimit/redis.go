package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "folio:ratelimit:"

// incrScript increments the counter and starts its expiry on the first hit
// of a window. It returns the count and the remaining TTL in milliseconds.
var incrScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
local ttl = redis.call("PTTL", KEYS[1])
if count == 1 or ttl < 0 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
	ttl = tonumber(ARGV[1])
end
return {count, ttl}
`)

// RedisStore keeps windows in Redis so every instance of the service shares
// them. Window expiry is delegated to the key TTL, so a window ends exactly
// at its length instead of on the first hit after it.
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedisStore creates a store on client.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

// Incr implements CounterStore.
func (s *RedisStore) Incr(ctx context.Context, key string, now time.Time, window time.Duration) (Window, error) {
	windowMs := window.Milliseconds()
	if windowMs < 1 {
		windowMs = 1
	}

	res, err := incrScript.Run(ctx, s.client, []string{redisKeyPrefix + key}, windowMs).Int64Slice()
	if err != nil {
		return Window{}, fmt.Errorf("ratelimit: redis incr: %w", err)
	}
	if len(res) != 2 {
		return Window{}, fmt.Errorf("ratelimit: unexpected script reply %v", res)
	}

	elapsed := time.Duration(windowMs-res[1]) * time.Millisecond
	return Window{Count: res[0], Start: now.Add(-elapsed)}, nil
}
