// Package structure implements the MarketStructureEngine (spec §4.2):
// swing detection, trend classification, fair value gaps and order
// blocks.
package structure

import (
	"github.com/marketpulse/corelens/internal/types"
)

// Trend is the structural trend classification.
type Trend string

const (
	TrendBullish Trend = "bullish"
	TrendBearish Trend = "bearish"
	TrendRange   Trend = "range"
)

// FVG is a fair value gap — a price range skipped between the high and
// low of the candles either side of bar Index.
type FVG struct {
	Bullish bool
	Low     float64
	High    float64
	Index   int
}

// OrderBlock is the last opposite-direction candle preceding an
// impulsive move in the same direction as the block's label.
type OrderBlock struct {
	Bullish bool
	Index   int
	Candle  types.Candle
}

// Result bundles the structural read for one tick.
type Result struct {
	Swings      []types.SwingPoint
	Trend       Trend
	FVGs        []FVG
	OrderBlocks []OrderBlock
}

// Config tunes the structure engine.
type Config struct {
	Lookback int // swing radius, default 2
}

// DefaultConfig returns spec defaults.
func DefaultConfig() Config { return Config{Lookback: 2} }

// Engine computes market structure from an OHLCV window.
type Engine struct {
	cfg Config
}

// New builds a structure Engine.
func New(cfg Config) *Engine {
	if cfg.Lookback <= 0 {
		cfg.Lookback = 2
	}
	return &Engine{cfg: cfg}
}

// Analyze runs the full structure pipeline over ohlcv.
func (e *Engine) Analyze(ohlcv types.OHLCV) Result {
	swings := e.detectSwings(ohlcv)
	return Result{
		Swings:      swings,
		Trend:       classifyTrend(swings),
		FVGs:        detectFVGs(ohlcv),
		OrderBlocks: detectOrderBlocks(ohlcv),
	}
}

// detectSwings finds local extrema with radius Lookback and keeps only
// those with volume-ratio >= 1.2 or range-ratio >= 1.5 (spec §4.2).
func (e *Engine) detectSwings(ohlcv types.OHLCV) []types.SwingPoint {
	n := len(ohlcv)
	lb := e.cfg.Lookback
	if n < 2*lb+1 {
		return nil
	}

	avgVol := avgVolume(ohlcv)
	avgRange := avgRange(ohlcv)

	var swings []types.SwingPoint
	for i := lb; i < n-lb; i++ {
		c := ohlcv[i]

		if isSwingHigh(ohlcv, i, lb) {
			sig, volRatio, rangeRatio := significance(c, avgVol, avgRange)
			if volRatio >= 1.2 || rangeRatio >= 1.5 {
				swings = append(swings, types.SwingPoint{
					Index: i, Kind: types.SwingHigh, Price: c.High,
					Timestamp: c.Timestamp, Significance: sig,
					VolumeRatio: volRatio, RangeRatio: rangeRatio,
				})
			}
		}
		if isSwingLow(ohlcv, i, lb) {
			sig, volRatio, rangeRatio := significance(c, avgVol, avgRange)
			if volRatio >= 1.2 || rangeRatio >= 1.5 {
				swings = append(swings, types.SwingPoint{
					Index: i, Kind: types.SwingLow, Price: c.Low,
					Timestamp: c.Timestamp, Significance: sig,
					VolumeRatio: volRatio, RangeRatio: rangeRatio,
				})
			}
		}
	}
	return swings
}

// isSwingHigh reports whether ohlcv[i].High strictly exceeds every bar
// in [i-lb, i+lb] \ {i} (invariant 1 in spec §8).
func isSwingHigh(ohlcv types.OHLCV, i, lb int) bool {
	h := ohlcv[i].High
	for j := i - lb; j <= i+lb; j++ {
		if j == i {
			continue
		}
		if ohlcv[j].High >= h {
			return false
		}
	}
	return true
}

func isSwingLow(ohlcv types.OHLCV, i, lb int) bool {
	l := ohlcv[i].Low
	for j := i - lb; j <= i+lb; j++ {
		if j == i {
			continue
		}
		if ohlcv[j].Low <= l {
			return false
		}
	}
	return true
}

func significance(c types.Candle, avgVol, avgRange float64) (sig, volRatio, rangeRatio float64) {
	if avgVol > 0 {
		volRatio = c.Volume / avgVol
	}
	rng := c.High - c.Low
	if avgRange > 0 {
		rangeRatio = rng / avgRange
	}
	sig = (volRatio + rangeRatio) / 2
	return
}

func avgVolume(ohlcv types.OHLCV) float64 {
	if len(ohlcv) == 0 {
		return 0
	}
	sum := 0.0
	for _, c := range ohlcv {
		sum += c.Volume
	}
	return sum / float64(len(ohlcv))
}

func avgRange(ohlcv types.OHLCV) float64 {
	if len(ohlcv) == 0 {
		return 0
	}
	sum := 0.0
	for _, c := range ohlcv {
		sum += c.High - c.Low
	}
	return sum / float64(len(ohlcv))
}

// classifyTrend uses the last two qualifying highs and lows (spec §4.2).
func classifyTrend(swings []types.SwingPoint) Trend {
	highs := filterKind(swings, types.SwingHigh)
	lows := filterKind(swings, types.SwingLow)

	if len(highs) < 2 || len(lows) < 2 {
		return TrendRange
	}

	h1, h2 := highs[len(highs)-2].Price, highs[len(highs)-1].Price
	l1, l2 := lows[len(lows)-2].Price, lows[len(lows)-1].Price

	higherHighs := h2 > h1
	higherLows := l2 > l1
	lowerHighs := h2 < h1
	lowerLows := l2 < l1

	if higherHighs && higherLows {
		return TrendBullish
	}
	if lowerHighs && lowerLows {
		return TrendBearish
	}

	highVary := pctDiff(h1, h2) < 1.5
	lowVary := pctDiff(l1, l2) < 1.5
	if highVary && lowVary {
		return TrendRange
	}
	return TrendRange
}

func pctDiff(a, b float64) float64 {
	if a == 0 {
		return 0
	}
	d := b - a
	if d < 0 {
		d = -d
	}
	return d / a * 100
}

func filterKind(swings []types.SwingPoint, kind types.SwingKind) []types.SwingPoint {
	var out []types.SwingPoint
	for _, s := range swings {
		if s.Kind == kind {
			out = append(out, s)
		}
	}
	return out
}

// detectFVGs finds bullish/bearish fair value gaps between i-1 and i+1.
func detectFVGs(ohlcv types.OHLCV) []FVG {
	var out []FVG
	for i := 1; i < len(ohlcv)-1; i++ {
		prev, next := ohlcv[i-1], ohlcv[i+1]
		if prev.High < next.Low {
			out = append(out, FVG{Bullish: true, Low: prev.High, High: next.Low, Index: i})
		}
		if prev.Low > next.High {
			out = append(out, FVG{Bullish: false, Low: next.High, High: prev.Low, Index: i})
		}
	}
	return out
}

// detectOrderBlocks finds the last opposite-direction candle immediately
// preceding an impulsive candle of the same direction.
func detectOrderBlocks(ohlcv types.OHLCV) []OrderBlock {
	if len(ohlcv) < 2 {
		return nil
	}
	avgRng := avgRange(ohlcv)

	var out []OrderBlock
	for i := 1; i < len(ohlcv); i++ {
		cur := ohlcv[i]
		prev := ohlcv[i-1]

		curBullish := cur.Close > cur.Open
		curRange := cur.High - cur.Low
		impulsive := avgRng > 0 && curRange > 1.5*avgRng

		if !impulsive {
			continue
		}
		prevBearish := prev.Close < prev.Open
		prevBullish := prev.Close > prev.Open

		if curBullish && prevBearish {
			out = append(out, OrderBlock{Bullish: true, Index: i - 1, Candle: prev})
		}
		if !curBullish && prevBullish {
			out = append(out, OrderBlock{Bullish: false, Index: i - 1, Candle: prev})
		}
	}
	return out
}
