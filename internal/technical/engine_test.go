package technical

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/marketpulse/corelens/internal/types"
)

func mkCandles(closes []float64) types.OHLCV {
	var out types.OHLCV
	for i, c := range closes {
		out = append(out, types.Candle{
			Open: c - 0.5, High: c + 1, Low: c - 1, Close: c,
			Volume: 100, Timestamp: int64(i),
		})
	}
	return out
}

func TestRSIBoundsAndNeutralOnShortSeries(t *testing.T) {
	e := New(DefaultConfig())
	short := mkCandles([]float64{100, 101, 102})
	res := e.Analyze(short)
	assert.Equal(t, 50.0, res.RSI)

	rising := mkCandles(linspace(100, 150, 60))
	res = e.Analyze(rising)
	assert.True(t, res.RSI > 50 && res.RSI <= 100)
}

func TestATRPercentNonNegative(t *testing.T) {
	e := New(DefaultConfig())
	res := e.Analyze(mkCandles(linspace(100, 110, 60)))
	assert.GreaterOrEqual(t, res.ATR, 0.0)
	assert.GreaterOrEqual(t, res.ATRPercent, 0.0)
}

func TestTrendClassification(t *testing.T) {
	e := New(DefaultConfig())
	res := e.Analyze(mkCandles(linspace(100, 200, 60)))
	assert.Equal(t, TrendBullish, res.Trend)
}

func linspace(start, end float64, n int) []float64 {
	out := make([]float64, n)
	step := (end - start) / float64(n-1)
	for i := range out {
		out[i] = start + step*float64(i)
	}
	return out
}
