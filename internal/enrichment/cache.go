package enrichment

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

const keyPrefix = "kwdata:"

// DefaultCacheTTL is how long provider answers are reused.
const DefaultCacheTTL = 24 * time.Hour

// RedisCache serves lookups from Redis and only asks the provider for
// keywords it has not seen within the TTL. Cache failures fall through to
// the provider.
type RedisCache struct {
	inner  Client
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache wraps inner with a Redis cache.
func NewRedisCache(inner Client, client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &RedisCache{inner: inner, client: client, ttl: ttl}
}

// NewRedisClient connects to Redis at addr.
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

func cacheKey(region, keyword string) string {
	return keyPrefix + region + ":" + normalizeKeyword(keyword)
}

// Lookup implements Client.
func (c *RedisCache) Lookup(ctx context.Context, keywords []string, region string) ([]Result, error) {
	if len(keywords) == 0 {
		return []Result{}, nil
	}

	cached, misses := c.get(ctx, keywords, region)
	if len(misses) == 0 {
		return cached, nil
	}

	fresh, err := c.inner.Lookup(ctx, misses, region)
	if err != nil {
		return nil, err
	}
	c.put(ctx, fresh, region)
	return append(cached, fresh...), nil
}

func (c *RedisCache) get(ctx context.Context, keywords []string, region string) ([]Result, []string) {
	keys := make([]string, len(keywords))
	for i, kw := range keywords {
		keys[i] = cacheKey(region, kw)
	}

	vals, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		zap.L().Warn("keyword data cache read failed", zap.Error(err))
		return nil, keywords
	}

	var hits []Result
	var misses []string
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			misses = append(misses, keywords[i])
			continue
		}
		var r Result
		if err := json.Unmarshal([]byte(s), &r); err != nil {
			misses = append(misses, keywords[i])
			continue
		}
		hits = append(hits, r)
	}
	return hits, misses
}

func (c *RedisCache) put(ctx context.Context, results []Result, region string) {
	if len(results) == 0 {
		return
	}
	pipe := c.client.Pipeline()
	for _, r := range results {
		b, err := json.Marshal(r)
		if err != nil {
			continue
		}
		pipe.Set(ctx, cacheKey(region, r.Keyword), string(b), c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		zap.L().Warn("keyword data cache write failed", zap.Error(eris.Wrap(err, "redis pipeline")))
	}
}
