// Package feed defines the inbound feed contract the analysis core
// consumes (spec §6) and the adapters that satisfy it: a gorilla/websocket
// depth/trades subscriber with the documented reconnect backoff sequence,
// and a gobreaker+rate-limited REST client for OHLCV/HTF candles.
package feed

import (
	"context"
	"time"

	"github.com/marketpulse/corelens/internal/types"
)

// OHLCVSource fetches REST candle history.
type OHLCVSource interface {
	FetchOHLCV(ctx context.Context, timeframe string, limit int) (types.OHLCV, time.Time, error)
	FetchHTFCandles(ctx context.Context, timeframe string, limit int) (types.OHLCV, error)
}

// DepthSource exposes the most recent order-book snapshot maintained by
// a live subscriber.
type DepthSource interface {
	GetOrderBookSnapshot() (types.OrderBook, bool)
}

// TradesSource exposes a copy of the bounded recent-trades deque
// maintained by a live subscriber.
type TradesSource interface {
	GetTradesSnapshot() types.Trades
}

// Source bundles everything the pipeline needs from a single exchange
// connection.
type Source interface {
	OHLCVSource
	DepthSource
	TradesSource
}
