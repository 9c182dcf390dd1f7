// Package feedcache provides an optional read-through redis cache for
// OHLCV/HTF candle snapshots, the way the teacher's data/cache package
// wraps redis/go-redis/v9 behind a small interface (spec §6: "Persisted
// state: none is required for correctness" — this is a latency
// optimization only, never a correctness dependency).
package feedcache

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/marketpulse/corelens/internal/types"
)

// Cache is a read-through OHLCV/HTF candle cache.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// New builds a Cache bound to an existing redis client.
func New(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Cache{client: client, ttl: ttl}
}

// GetOHLCV returns a cached candle sequence for the given key, or
// (nil, false) on a miss or decode failure.
func (c *Cache) GetOHLCV(ctx context.Context, key string) (types.OHLCV, bool) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	var out types.OHLCV
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, false
	}
	return out, true
}

// SetOHLCV stores a candle sequence under key with the cache's configured TTL.
func (c *Cache) SetOHLCV(ctx context.Context, key string, candles types.OHLCV) error {
	raw, err := json.Marshal(candles)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, raw, c.ttl).Err()
}

// Key builds the canonical cache key for a timeframe+limit pair.
func Key(symbol, timeframe string, limit int) string {
	return "corelens:ohlcv:" + symbol + ":" + timeframe + ":" + strconv.Itoa(limit)
}
