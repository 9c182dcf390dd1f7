package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketpulse/corelens/internal/config"
	"github.com/marketpulse/corelens/internal/liquidity"
	"github.com/marketpulse/corelens/internal/types"
)

type fakeSource struct {
	ohlcv  types.OHLCV
	htf    types.OHLCV
	book   types.OrderBook
	haveBook bool
	trades types.Trades
	err    error
}

func (f fakeSource) FetchOHLCV(ctx context.Context, timeframe string, limit int) (types.OHLCV, time.Time, error) {
	if f.err != nil {
		return nil, time.Time{}, f.err
	}
	return f.ohlcv, time.Now(), nil
}

func (f fakeSource) FetchHTFCandles(ctx context.Context, timeframe string, limit int) (types.OHLCV, error) {
	return f.htf, nil
}

func (f fakeSource) GetOrderBookSnapshot() (types.OrderBook, bool) { return f.book, f.haveBook }
func (f fakeSource) GetTradesSnapshot() types.Trades               { return f.trades }

func risingOHLCV(n int, start float64) types.OHLCV {
	out := make(types.OHLCV, n)
	price := start
	for i := 0; i < n; i++ {
		open := price
		price += 0.15
		out[i] = types.Candle{Open: open, High: price + 0.1, Low: open - 0.1, Close: price, Volume: 100, Timestamp: int64(i) * 60000}
	}
	return out
}

func buyHeavyTrades(n int) types.Trades {
	out := make(types.Trades, 0, n)
	for i := 0; i < n; i++ {
		side := types.SideBuy
		if i%10 == 0 {
			side = types.SideSell
		}
		out = append(out, types.Trade{Price: 100 + float64(i)*0.01, Volume: 3, Side: side, Timestamp: int64(i) * 1000})
	}
	return out
}

func deepBook(bidAvg, askAvg float64) types.OrderBook {
	bids := make([]types.OrderLevel, 20)
	asks := make([]types.OrderLevel, 20)
	for i := range bids {
		bids[i] = types.OrderLevel{Price: 99 - float64(i)*0.1, Size: bidAvg}
		asks[i] = types.OrderLevel{Price: 101 + float64(i)*0.1, Size: askAvg}
	}
	return types.NewOrderBook(bids, asks, time.Now())
}

func TestTickAbortsBelowDataQualityFloor(t *testing.T) {
	cfg := config.Default()
	src := fakeSource{ohlcv: risingOHLCV(5, 100), haveBook: false, trades: nil}
	sup := New(cfg, src, time.Now())

	sup.tick(context.Background(), time.Now())

	select {
	case <-sup.Signals():
		t.Fatal("expected no signal on data-quality abort")
	default:
	}
	h := sup.Health()
	assert.EqualValues(t, 1, h.TicksAborted)
}

func TestTickCompletesWithoutAbortOnHealthyFeed(t *testing.T) {
	cfg := config.Default()
	cfg.MinOHLCVCandles = 50
	cfg.MinTradesCount = 20
	cfg.MinOrderbookLevels = 10

	src := fakeSource{
		ohlcv:    risingOHLCV(60, 100),
		htf:      risingOHLCV(60, 100),
		haveBook: true,
		book:     deepBook(8, 5),
		trades:   buyHeavyTrades(100),
	}
	sup := New(cfg, src, time.Now())

	sup.tick(context.Background(), time.Now())

	h := sup.Health()
	assert.EqualValues(t, 1, h.TicksRun)
	assert.EqualValues(t, 0, h.TicksAborted)
}

func TestTickHandlesFetchErrorGracefully(t *testing.T) {
	cfg := config.Default()
	src := fakeSource{err: assertErr{}}
	sup := New(cfg, src, time.Now())

	require.NotPanics(t, func() {
		sup.tick(context.Background(), time.Now())
	})
	h := sup.Health()
	assert.EqualValues(t, 1, h.TicksAborted)
}

type assertErr struct{}

func (assertErr) Error() string { return "feed unavailable" }

func TestBreakoutAgainstNearestLevelDetectsStrongUpBreakout(t *testing.T) {
	ohlcv := risingOHLCV(5, 100) // last 3 closes: 100.45, 100.60, 100.75
	lr := liquidity.Result{
		Direction: liquidity.DirectionUp,
		Levels: []types.LiquidityLevel{
			{Kind: types.LiquidityStopCluster, Price: 100.30, Side: types.BuyStops, Weight: 1.0},
		},
	}

	strong, weak := breakoutAgainstNearestLevel(ohlcv, lr, 100.75)
	assert.True(t, strong)
	assert.False(t, weak)
}

func TestBreakoutAgainstNearestLevelSkipsOnNeutralDirection(t *testing.T) {
	ohlcv := risingOHLCV(5, 100)
	lr := liquidity.Result{Direction: liquidity.DirectionNeutral}

	strong, weak := breakoutAgainstNearestLevel(ohlcv, lr, 100.75)
	assert.False(t, strong)
	assert.False(t, weak)
}

func TestBreakoutAgainstNearestLevelIgnoresLevelsNotYetCrossed(t *testing.T) {
	ohlcv := risingOHLCV(5, 100)
	lr := liquidity.Result{
		Direction: liquidity.DirectionUp,
		Levels: []types.LiquidityLevel{
			{Kind: types.LiquidityStopCluster, Price: 200.0, Side: types.BuyStops, Weight: 1.0},
		},
	}

	strong, weak := breakoutAgainstNearestLevel(ohlcv, lr, 100.75)
	assert.False(t, strong)
	assert.False(t, weak)
}
