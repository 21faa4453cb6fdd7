package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"tradefabric/internal/errkind"
)

// RedisCache is a Cache backed by Redis via go-redis/v9.
type RedisCache struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRedisCache connects to addr (host:port) and pings it once to fail
// fast on misconfiguration.
func NewRedisCache(ctx context.Context, addr, password string, db int, logger *slog.Logger) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, errkind.WrapTransient(err, "ping redis at %s", addr)
	}
	return &RedisCache{client: client, logger: logger.With("component", "cache")}, nil
}

func (c *RedisCache) Get(ctx context.Context, key string, dst interface{}) (bool, error) {
	val, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		c.logger.Debug("cache miss", "key", key)
		return false, nil
	}
	if err != nil {
		return false, errkind.WrapTransient(err, "get %s", key)
	}
	if err := json.Unmarshal([]byte(val), dst); err != nil {
		return false, errkind.WrapContract(err, "unmarshal cached value for %s", key)
	}
	return true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return errkind.WrapValidation(err, "marshal value for %s", key)
	}
	if err := c.client.Set(ctx, key, encoded, ttl).Err(); err != nil {
		return errkind.WrapTransient(err, "set %s", key)
	}
	return nil
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return errkind.WrapTransient(err, "delete %s", key)
	}
	return nil
}

func (c *RedisCache) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Exists(ctx, key).Result()
	if err != nil {
		return false, errkind.WrapTransient(err, "exists %s", key)
	}
	return n > 0, nil
}

func (c *RedisCache) Keys(ctx context.Context, pattern string) ([]string, error) {
	keys, err := c.client.Keys(ctx, pattern).Result()
	if err != nil {
		return nil, errkind.WrapTransient(err, "keys %s", pattern)
	}
	return keys, nil
}

func (c *RedisCache) HashSet(ctx context.Context, name, field string, value interface{}) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return errkind.WrapValidation(err, "marshal hash value for %s.%s", name, field)
	}
	if err := c.client.HSet(ctx, name, field, encoded).Err(); err != nil {
		return errkind.WrapTransient(err, "hset %s.%s", name, field)
	}
	return nil
}

func (c *RedisCache) HashGet(ctx context.Context, name, field string, dst interface{}) (bool, error) {
	val, err := c.client.HGet(ctx, name, field).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, errkind.WrapTransient(err, "hget %s.%s", name, field)
	}
	if err := json.Unmarshal([]byte(val), dst); err != nil {
		return false, errkind.WrapContract(err, "unmarshal hash value for %s.%s", name, field)
	}
	return true, nil
}

func (c *RedisCache) HashDelete(ctx context.Context, name, field string) error {
	if err := c.client.HDel(ctx, name, field).Err(); err != nil {
		return errkind.WrapTransient(err, "hdel %s.%s", name, field)
	}
	return nil
}

func (c *RedisCache) HashKeys(ctx context.Context, name string) ([]string, error) {
	keys, err := c.client.HKeys(ctx, name).Result()
	if err != nil {
		return nil, errkind.WrapTransient(err, "hkeys %s", name)
	}
	return keys, nil
}

func (c *RedisCache) SortedSetAdd(ctx context.Context, name string, score float64, member interface{}) error {
	encoded, err := json.Marshal(member)
	if err != nil {
		return errkind.WrapValidation(err, "marshal sorted set member for %s", name)
	}
	if err := c.client.ZAdd(ctx, name, redis.Z{Score: score, Member: string(encoded)}).Err(); err != nil {
		return errkind.WrapTransient(err, "zadd %s", name)
	}
	return nil
}

func (c *RedisCache) SortedSetRange(ctx context.Context, name string, minScore, maxScore float64) ([]string, error) {
	members, err := c.client.ZRangeByScore(ctx, name, &redis.ZRangeBy{
		Min: formatScore(minScore),
		Max: formatScore(maxScore),
	}).Result()
	if err != nil {
		return nil, errkind.WrapTransient(err, "zrangebyscore %s", name)
	}
	return members, nil
}

func formatScore(score float64) string {
	return jsonNumber(score)
}

func jsonNumber(f float64) string {
	b, _ := json.Marshal(f)
	return string(b)
}
