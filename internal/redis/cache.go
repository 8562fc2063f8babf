package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const genTTL = 24 * time.Hour

// setIfGenScript stores ARGV[2] under KEYS[1] only while the generation
// counter KEYS[2] still reads ARGV[1]. A missing counter reads as 0.
var setIfGenScript = redis.NewScript(`
local cur = redis.call("GET", KEYS[2])
if not cur then cur = "0" end
if cur ~= ARGV[1] then
	return 0
end
if tonumber(ARGV[3]) > 0 then
	redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
else
	redis.call("SET", KEYS[1], ARGV[2])
end
return 1
`)

// Cache is a byte cache over Redis with a generation counter per key.
// Invalidate bumps the counter, so a reader that loaded its value before an
// invalidation cannot store it afterwards. Callers own key layout and
// encoding.
type Cache struct {
	client *redis.Client
}

func NewCache(client *redis.Client) *Cache {
	return &Cache{client: client}
}

func genKey(key string) string {
	return key + ":gen"
}

// Get returns ok=false on a miss.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("cache get %s: %w", key, err)
	}
	return val, true, nil
}

// Generation reads the key's counter. Read it before loading the value from
// the source of truth and hand it to SetIfGeneration.
func (c *Cache) Generation(ctx context.Context, key string) (int64, error) {
	gen, err := c.client.Get(ctx, genKey(key)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("cache generation %s: %w", key, err)
	}
	return gen, nil
}

// SetIfGeneration stores value unless key was invalidated since gen was read.
// It reports whether the value was stored.
func (c *Cache) SetIfGeneration(ctx context.Context, key string, gen int64, value []byte, ttl time.Duration) (bool, error) {
	stored, err := setIfGenScript.Run(ctx, c.client,
		[]string{key, genKey(key)},
		gen, value, ttl.Milliseconds(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("cache set %s: %w", key, err)
	}
	return stored == 1, nil
}

// Invalidate drops the keys and bumps their generations in one transaction.
func (c *Cache) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, key := range keys {
			pipe.Incr(ctx, genKey(key))
			pipe.Expire(ctx, genKey(key), genTTL)
		}
		pipe.Del(ctx, keys...)
		return nil
	})
	if err != nil {
		return fmt.Errorf("cache invalidate: %w", err)
	}
	return nil
}
