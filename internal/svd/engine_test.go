package svd

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/marketpulse/corelens/internal/types"
)

func mkTrades(buyRatio float64, n int, start int64) types.Trades {
	var out types.Trades
	for i := 0; i < n; i++ {
		side := types.SideSell
		// Buys are spread evenly through the tape rather than front-loaded,
		// so the tape does not end in a run of sells.
		if int(float64(i+1)*buyRatio) > int(float64(i)*buyRatio) {
			side = types.SideBuy
		}
		out = append(out, types.Trade{Price: 100 + float64(i)*0.01, Volume: 10, Side: side, Timestamp: start + int64(i)*100})
	}
	return out
}

func mkBook() types.OrderBook {
	var bids, asks []types.OrderLevel
	for i := 0; i < 20; i++ {
		bids = append(bids, types.OrderLevel{Price: 100 - float64(i)*0.1, Size: 8})
		asks = append(asks, types.OrderLevel{Price: 100.1 + float64(i)*0.1, Size: 5})
	}
	return types.NewOrderBook(bids, asks, time.Now())
}

func TestCVDAccumulatesSignedVolume(t *testing.T) {
	c := NewCVDCalculator()
	now := time.Now()
	c.Add(10, now)
	c.Add(-4, now.Add(time.Second))
	assert.Equal(t, 6.0, c.Value())
}

func TestIntentAccumulatingOnBuyDominantTape(t *testing.T) {
	e := New(time.Now())
	trades := mkTrades(0.75, 100, 1_700_000_000_000)
	ob := mkBook()
	res := e.Analyze(trades, ob, 1.0, time.Now())
	assert.Greater(t, res.Delta, 0.0)
	assert.NotEqual(t, types.IntentDistributing, res.Intent)
}

func TestDOMImbalanceSide(t *testing.T) {
	ob := mkBook() // bid avg 8 vs ask avg 5, top5 bids=40 asks=25, ratio=1.6 -> bid
	ratio, side := DOMImbalance(ob)
	assert.Greater(t, ratio, 1.2)
	assert.Equal(t, DOMBid, side)
}

func TestFeedCVDDoesNotDoubleCountOverlappingWindow(t *testing.T) {
	e := New(time.Now())
	ob := mkBook()

	window1 := mkTrades(1.0, 10, 1_700_000_000_000) // 10 buys, each +10
	e.Analyze(window1, ob, 1.0, time.Now())
	assert.Equal(t, 100.0, e.CVD().Value())

	// Next tick's snapshot re-sends the same 10 trades plus 2 new ones,
	// as GetTradesSnapshot would for a sliding window.
	newTrade1 := types.Trade{Price: 101, Volume: 10, Side: types.SideBuy, Timestamp: 1_700_000_001_000}
	newTrade2 := types.Trade{Price: 101, Volume: 10, Side: types.SideBuy, Timestamp: 1_700_000_001_100}
	window2 := append(append(types.Trades{}, window1...), newTrade1, newTrade2)

	e.Analyze(window2, ob, 1.0, time.Now())
	assert.Equal(t, 120.0, e.CVD().Value(), "only the two newly-arrived trades should be folded in")
}

func TestConfidenceScoreInBounds(t *testing.T) {
	e := New(time.Now())
	trades := mkTrades(0.7, 200, 1_700_000_000_000)
	ob := mkBook()
	res := e.Analyze(trades, ob, 1.0, time.Now())
	assert.GreaterOrEqual(t, res.Confidence, 0.0)
	assert.LessOrEqual(t, res.Confidence, 10.0)
}
