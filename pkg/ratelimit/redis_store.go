package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Lua script: atomic INCR + set EXPIRE on first hit of the window
var incrExpireScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return current
`)

// RedisStore keeps window counters in Redis so the budget holds across
// server instances. The INCR+PEXPIRE pair runs as one script.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	count, err := incrExpireScript.Run(ctx, s.rdb, []string{key}, window.Milliseconds()).Int64()
	if err != nil {
		return 0, 0, err
	}
	ttl, err := s.rdb.PTTL(ctx, key).Result()
	if err != nil || ttl < 0 {
		ttl = window
	}
	return count, ttl, nil
}
