package feedcache

import (
	"context"
	"time"

	"github.com/marketpulse/corelens/internal/feed"
	"github.com/marketpulse/corelens/internal/types"
)

// CachedSource decorates an OHLCVSource with a read-through cache,
// falling straight through to the underlying fetch on any cache miss
// or error so the cache can never become a correctness dependency.
type CachedSource struct {
	feed.OHLCVSource
	cache  *Cache
	symbol string
}

// NewCachedSource wraps src with a read-through Cache keyed by symbol.
func NewCachedSource(src feed.OHLCVSource, cache *Cache, symbol string) *CachedSource {
	return &CachedSource{OHLCVSource: src, cache: cache, symbol: symbol}
}

// FetchOHLCV overrides the embedded source's fetch with a cache lookup.
func (s *CachedSource) FetchOHLCV(ctx context.Context, timeframe string, limit int) (types.OHLCV, time.Time, error) {
	key := Key(s.symbol, timeframe, limit)
	if cached, ok := s.cache.GetOHLCV(ctx, key); ok {
		return cached, time.Now(), nil
	}

	candles, fetchedAt, err := s.OHLCVSource.FetchOHLCV(ctx, timeframe, limit)
	if err != nil {
		return nil, time.Time{}, err
	}
	_ = s.cache.SetOHLCV(ctx, key, candles)
	return candles, fetchedAt, nil
}

// FetchHTFCandles overrides the embedded source's higher-timeframe fetch
// with the same cache lookup.
func (s *CachedSource) FetchHTFCandles(ctx context.Context, timeframe string, limit int) (types.OHLCV, error) {
	key := Key(s.symbol, timeframe, limit)
	if cached, ok := s.cache.GetOHLCV(ctx, key); ok {
		return cached, nil
	}

	candles, err := s.OHLCVSource.FetchHTFCandles(ctx, timeframe, limit)
	if err != nil {
		return nil, err
	}
	_ = s.cache.SetOHLCV(ctx, key, candles)
	return candles, nil
}
