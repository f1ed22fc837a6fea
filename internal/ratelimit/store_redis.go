package ratelimit

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "rl:"

// allowScript is the fixed-window check-and-increment. It must run as one
// script so the deny-without-increment rule holds across instances: INCR
// only fires below the cap, and the window TTL is set on the first hit.
// Returns {allowed, count, pttl_ms}.
var allowScript = redis.NewScript(`
local current = redis.call('GET', KEYS[1])
if current and tonumber(current) >= tonumber(ARGV[1]) then
  return {0, tonumber(current), redis.call('PTTL', KEYS[1])}
end
local count = redis.call('INCR', KEYS[1])
if count == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return {1, count, redis.call('PTTL', KEYS[1])}
`)

// RedisStore shares window counters across instances. Expiry is native
// (PEXPIRE), so Sweep is a no-op.
type RedisStore struct {
	client *redis.Client
}

var _ Store = (*RedisStore)(nil)

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Allow(ctx context.Context, key string, max int, window time.Duration) (Decision, error) {
	res, err := allowScript.Run(ctx, s.client, []string{redisKeyPrefix + key}, max, window.Milliseconds()).Result()
	if err != nil {
		return Decision{}, err
	}

	vals, ok := res.([]interface{})
	if !ok || len(vals) != 3 {
		return Decision{}, errors.New("unexpected rate limit script reply")
	}
	allowed, _ := vals[0].(int64)
	count, _ := vals[1].(int64)
	pttl, _ := vals[2].(int64)

	d := Decision{Allowed: allowed == 1, Count: int(count)}
	if pttl > 0 {
		d.ResetAt = time.Now().Add(time.Duration(pttl) * time.Millisecond)
	}
	return d, nil
}

func (s *RedisStore) Peek(ctx context.Context, key string) (Entry, bool, error) {
	pipe := s.client.Pipeline()
	getCmd := pipe.Get(ctx, redisKeyPrefix+key)
	ttlCmd := pipe.PTTL(ctx, redisKeyPrefix+key)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return Entry{}, false, err
	}
	if errors.Is(getCmd.Err(), redis.Nil) {
		return Entry{}, false, nil
	}

	count, err := strconv.Atoi(getCmd.Val())
	if err != nil {
		return Entry{}, false, err
	}
	e := Entry{Count: count}
	if pttl := ttlCmd.Val(); pttl > 0 {
		e.ResetAt = time.Now().Add(pttl)
	}
	return e, true, nil
}

func (s *RedisStore) Sweep(context.Context, time.Time) error { return nil }
