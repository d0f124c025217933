package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dexsniper/sniperd/internal/domain"
)

// QuoteCache implements domain.QuoteCache on plain Redis strings. Values are
// JSON, stored under "sniperd:<namespace>:<key>" with a per-entry TTL.
// Entries are written wholesale; there is no partial update path.
type QuoteCache struct {
	rdb *redis.Client
}

// NewQuoteCache creates a QuoteCache backed by the given Client.
func NewQuoteCache(c *Client) *QuoteCache {
	return &QuoteCache{rdb: c.Underlying()}
}

func cacheKey(namespace, key string) string {
	return "sniperd:" + namespace + ":" + key
}

// Get reads and unmarshals a cached entry into dest. It reports false with
// no error on a miss or an expired entry.
func (qc *QuoteCache) Get(ctx context.Context, namespace, key string, dest any) (bool, error) {
	raw, err := qc.rdb.Get(ctx, cacheKey(namespace, key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("redis: cache get %s/%s: %w", namespace, key, err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, fmt.Errorf("redis: cache decode %s/%s: %w", namespace, key, err)
	}
	return true, nil
}

// Set marshals and stores a value with the given TTL. A non-positive TTL
// stores nothing; every entry must expire.
func (qc *QuoteCache) Set(ctx context.Context, namespace, key string, value any, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("redis: cache encode %s/%s: %w", namespace, key, err)
	}
	if err := qc.rdb.Set(ctx, cacheKey(namespace, key), raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis: cache set %s/%s: %w", namespace, key, err)
	}
	return nil
}

// Invalidate removes one entry. Removing an absent entry is not an error.
func (qc *QuoteCache) Invalidate(ctx context.Context, namespace, key string) error {
	if err := qc.rdb.Del(ctx, cacheKey(namespace, key)).Err(); err != nil {
		return fmt.Errorf("redis: cache invalidate %s/%s: %w", namespace, key, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.QuoteCache = (*QuoteCache)(nil)
