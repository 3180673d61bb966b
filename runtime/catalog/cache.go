package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/AltairaLabs/VoiceKit/runtime/logger"
)

const (
	defaultCacheTTL    = 5 * time.Minute
	defaultCachePrefix = "voicekit:catalog"
	scanBatch          = 100
)

// Cache is a Redis read-through cache in front of another Catalog. Cache
// failures are logged and fall through to the backing catalog; missing
// topics are never cached.
type Cache struct {
	next   Catalog
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithTTL sets how long cached responses live. Default is 5 minutes.
// Set to 0 for no expiration.
func WithTTL(ttl time.Duration) CacheOption {
	return func(c *Cache) {
		c.ttl = ttl
	}
}

// WithPrefix sets the key prefix for Redis keys.
// Default is "voicekit:catalog".
func WithPrefix(prefix string) CacheOption {
	return func(c *Cache) {
		c.prefix = prefix
	}
}

// NewCache wraps next with a Redis cache.
//
// Example:
//
//	cached := catalog.NewCache(
//	    catalog.NewClient("http://localhost:3000/api/options"),
//	    redis.NewClient(&redis.Options{Addr: "localhost:6379"}),
//	    catalog.WithTTL(10*time.Minute),
//	)
func NewCache(next Catalog, client *redis.Client, opts ...CacheOption) *Cache {
	c := &Cache{
		next:   next,
		client: client,
		ttl:    defaultCacheTTL,
		prefix: defaultCachePrefix,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Categories implements Catalog.
func (c *Cache) Categories(ctx context.Context) ([]Record, error) {
	return readThrough(ctx, c, c.key("categories"), func() ([]Record, error) {
		return c.next.Categories(ctx)
	})
}

// Topics implements Catalog.
func (c *Cache) Topics(ctx context.Context, categoryID string) ([]Record, error) {
	return readThrough(ctx, c, c.key("topics", categoryID), func() ([]Record, error) {
		return c.next.Topics(ctx, categoryID)
	})
}

// Topic implements Catalog.
func (c *Cache) Topic(ctx context.Context, topicID string) (Record, error) {
	return readThrough(ctx, c, c.key("topic", topicID), func() (Record, error) {
		return c.next.Topic(ctx, topicID)
	})
}

// All implements Catalog.
func (c *Cache) All(ctx context.Context) (Snapshot, error) {
	return readThrough(ctx, c, c.key("all"), func() (Snapshot, error) {
		return c.next.All(ctx)
	})
}

// Invalidate removes every cached entry under the prefix.
func (c *Cache) Invalidate(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, c.prefix+":*", scanBatch).Result()
		if err != nil {
			return fmt.Errorf("redis scan failed: %w", err)
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("redis del failed: %w", err)
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

func (c *Cache) key(parts ...string) string {
	k := c.prefix
	for _, p := range parts {
		k += ":" + p
	}
	return k
}

func readThrough[T any](ctx context.Context, c *Cache, key string, load func() (T, error)) (T, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var v T
		if jerr := json.Unmarshal(data, &v); jerr == nil {
			logger.DebugContext(ctx, "Catalog cache hit", "key", key)
			return v, nil
		}
		logger.WarnContext(ctx, "Discarding unreadable catalog cache entry", "key", key)
	case !errors.Is(err, redis.Nil):
		logger.WarnContext(ctx, "Catalog cache unavailable", "key", key, "error", err)
	}

	v, err := load()
	if err != nil {
		return v, err
	}
	if encoded, merr := json.Marshal(v); merr == nil {
		if serr := c.client.Set(ctx, key, encoded, c.ttl).Err(); serr != nil {
			logger.WarnContext(ctx, "Catalog cache write failed", "key", key, "error", serr)
		}
	}
	return v, nil
}
