package structure

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketpulse/corelens/internal/types"
)

func candle(o, h, l, c, v float64, ts int64) types.Candle {
	return types.Candle{Open: o, High: h, Low: l, Close: c, Volume: v, Timestamp: ts}
}

func TestSwingHighInvariant(t *testing.T) {
	ohlcv := types.OHLCV{
		candle(100, 101, 99, 100, 10, 1),
		candle(100, 102, 99, 101, 10, 2),
		candle(100, 110, 99, 109, 50, 3), // spike high, high volume
		candle(100, 103, 99, 101, 10, 4),
		candle(100, 102, 99, 100, 10, 5),
	}
	e := New(DefaultConfig())
	res := e.Analyze(ohlcv)

	require.NotEmpty(t, res.Swings)
	for _, s := range res.Swings {
		if s.Kind != types.SwingHigh {
			continue
		}
		lb := e.cfg.Lookback
		for j := s.Index - lb; j <= s.Index+lb; j++ {
			if j == s.Index || j < 0 || j >= len(ohlcv) {
				continue
			}
			assert.Greaterf(t, ohlcv[s.Index].High, ohlcv[j].High,
				"swing high at %d must strictly exceed neighbor %d", s.Index, j)
		}
	}
}

func TestTrendOnSteadyRiseIsDefinedLabel(t *testing.T) {
	var ohlcv types.OHLCV
	base := 100.0
	for i := 0; i < 20; i++ {
		base += 1
		ohlcv = append(ohlcv, candle(base-1, base+2, base-2, base, 100, int64(i)))
	}
	e := New(DefaultConfig())
	res := e.Analyze(ohlcv)
	// A steadily rising series without alternating extrema may not always
	// register enough qualifying swings; just ensure classification never
	// panics and returns one of the defined trend labels.
	assert.Contains(t, []Trend{TrendBullish, TrendBearish, TrendRange}, res.Trend)
}

func TestFVGDetection(t *testing.T) {
	ohlcv := types.OHLCV{
		candle(100, 101, 99, 100, 10, 1),
		candle(101, 102, 100, 101, 10, 2),
		candle(105, 106, 104, 105, 10, 3), // first bar's high 101 < this low 104 -> gap up
	}
	fvgs := detectFVGs(ohlcv)
	require.Len(t, fvgs, 1)
	assert.True(t, fvgs[0].Bullish)
}
