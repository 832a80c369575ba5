package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// reserveScript atomically increments the day's counter if under the limit.
// KEYS[1] = counter key
// ARGV[1] = daily limit
// ARGV[2] = TTL seconds
// Returns 1 if reserved, 0 if exhausted.
var reserveScript = redis.NewScript(`
local used = tonumber(redis.call('GET', KEYS[1]) or '0')
if used >= tonumber(ARGV[1]) then
    return 0
end
redis.call('INCR', KEYS[1])
redis.call('EXPIRE', KEYS[1], ARGV[2])
return 1
`)

// releaseScript decrements the counter without letting it go negative.
var releaseScript = redis.NewScript(`
local used = tonumber(redis.call('GET', KEYS[1]) or '0')
if used > 0 then
    redis.call('DECR', KEYS[1])
end
return 0
`)

// RedisStore shares the daily counter across replicas. Redis errors fail
// open: the classifier call is allowed rather than degraded for everyone.
type RedisStore struct {
	rdb   *redis.Client
	limit int64
}

// NewRedisStore creates a Redis-backed Store. If rdb is nil, every Reserve
// succeeds.
func NewRedisStore(rdb *redis.Client, dailyLimit int64) *RedisStore {
	return &RedisStore{rdb: rdb, limit: dailyLimit}
}

func dailyQuotaKey() string {
	day := time.Now().UTC().Format("2006-01-02")
	return fmt.Sprintf("conseil:quota:secondary:%s", day)
}

// ttlSeconds keeps the key until end of day UTC plus an hour of slack.
func ttlSeconds() int64 {
	now := time.Now().UTC()
	endOfDay := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, time.UTC)
	return int64(endOfDay.Sub(now).Seconds()) + 3600
}

func (s *RedisStore) Reserve(ctx context.Context) (bool, error) {
	if s.rdb == nil {
		return true, nil
	}
	res, err := reserveScript.Run(ctx, s.rdb, []string{dailyQuotaKey()}, s.limit, ttlSeconds()).Int64()
	if err != nil {
		return true, nil
	}
	return res == 1, nil
}

func (s *RedisStore) Release(ctx context.Context) error {
	if s.rdb == nil {
		return nil
	}
	return releaseScript.Run(ctx, s.rdb, []string{dailyQuotaKey()}).Err()
}

func (s *RedisStore) Usage(ctx context.Context) (State, error) {
	if s.rdb == nil {
		return State{DailyLimit: s.limit}, nil
	}
	used, err := s.rdb.Get(ctx, dailyQuotaKey()).Int64()
	if err != nil && err != redis.Nil {
		return State{DailyLimit: s.limit}, nil
	}
	return State{UsedToday: used, DailyLimit: s.limit}, nil
}

func (s *RedisStore) Reset(ctx context.Context) error {
	if s.rdb == nil {
		return nil
	}
	return s.rdb.Del(ctx, dailyQuotaKey()).Err()
}
