package liquidity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketpulse/corelens/internal/types"
)

func TestDecayWeightStrictlyDecreasing(t *testing.T) {
	assert.Equal(t, 1.0, DecayWeight(0, DefaultHalfLifeSeconds))
	w1 := DecayWeight(100, DefaultHalfLifeSeconds)
	w2 := DecayWeight(1000, DefaultHalfLifeSeconds)
	assert.Less(t, w2, w1)
	assert.Less(t, w1, 1.0)
}

func TestSweptTrackerDedupWithin60Seconds(t *testing.T) {
	tr := NewSweptLevelsTracker(24 * time.Hour)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	tr.MarkAsSwept(100.0, types.SweepDown, "test", now, 0, false)
	tr.MarkAsSwept(100.05, types.SweepDown, "test", now.Add(30*time.Second), 0, false)

	snap := tr.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, 1, snap[0].Count)

	tr.MarkAsSwept(100.0, types.SweepDown, "test", now.Add(61*time.Second), 0, false)
	snap = tr.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, 2, snap[0].Count)
}

func TestFilterSweptLevelsRemovesWithinTolerance(t *testing.T) {
	tr := NewSweptLevelsTracker(24 * time.Hour)
	now := time.Now()
	tr.MarkAsSwept(105.0, types.SweepDown, "test", now, 0, false)

	levels := []types.LiquidityLevel{
		{Price: 105.2, Side: types.SellStops},
		{Price: 200.0, Side: types.BuyStops},
	}
	filtered := tr.FilterSweptLevels(levels)
	require.Len(t, filtered, 1)
	assert.Equal(t, 200.0, filtered[0].Price)
}

func TestVolumeProfileValueAreaCoversPoC(t *testing.T) {
	var ohlcv types.OHLCV
	for i := 0; i < 60; i++ {
		ohlcv = append(ohlcv, types.Candle{
			Open: 100, High: 101, Low: 99, Close: 100, Volume: 100, Timestamp: int64(i),
		})
	}
	vp := BuildVolumeProfile(ohlcv, 100)
	assert.LessOrEqual(t, vp.VAL, vp.PoC)
	assert.LessOrEqual(t, vp.PoC, vp.VAH)
}

func TestOrderBookCrossedInvalid(t *testing.T) {
	ob := types.NewOrderBook(
		[]types.OrderLevel{{Price: 101, Size: 1}},
		[]types.OrderLevel{{Price: 100, Size: 1}},
		time.Now(),
	)
	assert.True(t, ob.Crossed())
}
