package domain

import (
	"context"
	"time"
)

// Cache namespaces. Entries are stored as "<namespace>:<key>".
const (
	CacheNSRoutes = "routes"
	CacheNSRisk   = "risk"
	CacheNSPrices = "prices"
	CacheNSPools  = "pools"
	CacheNSTokens = "tokens"
)

// QuoteCache is a namespaced get/set store with per-entry TTL. Entries are
// written wholesale and never mutated in place; staleness is bounded by TTL
// rather than invalidation.
type QuoteCache interface {
	// Get unmarshals the cached value into dest and reports whether the
	// key was present.
	Get(ctx context.Context, namespace, key string, dest any) (bool, error)
	Set(ctx context.Context, namespace, key string, value any, ttl time.Duration) error
	Invalidate(ctx context.Context, namespace, key string) error
}

// LockManager hands out expiring cross-process locks. Acquire fails fast when
// the key is held elsewhere.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// StreamMessage represents a single entry from a durable stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus fans events out to live subscribers and appends them to durable
// streams for replay.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}
