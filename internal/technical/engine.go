// Package technical implements the TechnicalEngine (spec §4.3): EMA,
// RSI, ATR/ATR%, trend classification and candle pattern detection,
// grounded on the teacher's internal/domain/indicators style (Wilder
// smoothing, graceful degradation on short series).
package technical

import (
	"math"

	"github.com/marketpulse/corelens/internal/types"
)

// Trend is the technical read's label set: bullish/bearish as in the
// structure package, but "neutral" where the structure package says "range".
type Trend string

const (
	TrendBullish Trend = "bullish"
	TrendBearish Trend = "bearish"
	TrendNeutral Trend = "neutral"
)

// CandlePattern enumerates the recognized single/multi-candle patterns.
type CandlePattern string

const (
	PatternNone      CandlePattern = "none"
	PatternEngulfing CandlePattern = "engulfing"
	PatternHammer    CandlePattern = "hammer"
	PatternDoji      CandlePattern = "doji"
)

// Result bundles the technical read for one tick.
type Result struct {
	EMAFast    float64
	EMASlow    float64
	RSI        float64
	ATR        float64
	ATRPercent float64
	Trend      Trend
	Overbought bool
	Oversold   bool
	Pattern    CandlePattern
}

// Config tunes the technical engine's periods.
type Config struct {
	EMAFastPeriod int
	EMASlowPeriod int
	RSIPeriod     int
	ATRPeriod     int
}

// DefaultConfig returns spec defaults: EMA(20)/EMA(50), RSI(14), ATR(14).
func DefaultConfig() Config {
	return Config{EMAFastPeriod: 20, EMASlowPeriod: 50, RSIPeriod: 14, ATRPeriod: 14}
}

// Engine computes technical indicators from an OHLCV window.
type Engine struct {
	cfg Config
}

// New builds a technical Engine.
func New(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Analyze runs the full technical pipeline over ohlcv.
func (e *Engine) Analyze(ohlcv types.OHLCV) Result {
	closes := ohlcv.Closes()

	fast := ema(closes, e.cfg.EMAFastPeriod)
	slow := ema(closes, e.cfg.EMASlowPeriod)
	rsi := wilderRSI(closes, e.cfg.RSIPeriod)
	atr := wilderATR(ohlcv, e.cfg.ATRPeriod)

	var atrPct float64
	if last, ok := ohlcv.Last(); ok && last.Close > 0 {
		atrPct = atr / last.Close * 100
	}

	res := Result{
		EMAFast:    fast,
		EMASlow:    slow,
		RSI:        rsi,
		ATR:        atr,
		ATRPercent: atrPct,
		Overbought: rsi > 70,
		Oversold:   rsi < 30,
		Pattern:    detectPattern(ohlcv),
	}

	if last, ok := ohlcv.Last(); ok {
		switch {
		case fast > slow && last.Close > fast:
			res.Trend = TrendBullish
		case fast < slow && last.Close < fast:
			res.Trend = TrendBearish
		default:
			res.Trend = TrendNeutral
		}
	} else {
		res.Trend = TrendNeutral
	}

	return res
}

// ema computes a standard exponential moving average with alpha = 2/(n+1),
// seeded by an SMA of the first n values.
func ema(values []float64, n int) float64 {
	if len(values) == 0 {
		return 0
	}
	if len(values) < n {
		return sma(values)
	}
	alpha := 2.0 / (float64(n) + 1.0)
	avg := 0.0
	for i := 0; i < n; i++ {
		avg += values[i]
	}
	avg /= float64(n)
	for i := n; i < len(values); i++ {
		avg = values[i]*alpha + avg*(1-alpha)
	}
	return avg
}

func sma(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// wilderRSI computes RSI(period) using Wilder smoothing; returns a
// neutral 50 when there isn't enough data to form one full window.
func wilderRSI(closes []float64, period int) float64 {
	if len(closes) < period+1 {
		return 50.0
	}

	gains := make([]float64, 0, len(closes)-1)
	losses := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			gains = append(gains, d)
			losses = append(losses, 0)
		} else {
			gains = append(gains, 0)
			losses = append(losses, -d)
		}
	}

	avgGain, avgLoss := 0.0, 0.0
	for i := 0; i < period; i++ {
		avgGain += gains[i]
		avgLoss += losses[i]
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	alpha := 1.0 / float64(period)
	for i := period; i < len(gains); i++ {
		avgGain = avgGain*(1-alpha) + gains[i]*alpha
		avgLoss = avgLoss*(1-alpha) + losses[i]*alpha
	}

	if avgLoss == 0 {
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100.0 - (100.0 / (1.0 + rs))
}

// wilderATR computes ATR(period) as an EMA of true range.
func wilderATR(ohlcv types.OHLCV, period int) float64 {
	if len(ohlcv) < 2 {
		return 0
	}
	trs := make([]float64, 0, len(ohlcv)-1)
	for i := 1; i < len(ohlcv); i++ {
		trs = append(trs, trueRange(ohlcv[i], ohlcv[i-1]))
	}
	return ema(trs, period)
}

func trueRange(cur, prev types.Candle) float64 {
	hl := cur.High - cur.Low
	hc := math.Abs(cur.High - prev.Close)
	lc := math.Abs(cur.Low - prev.Close)
	return math.Max(hl, math.Max(hc, lc))
}

// detectPattern recognizes engulfing, hammer and doji on the last bars.
func detectPattern(ohlcv types.OHLCV) CandlePattern {
	n := len(ohlcv)
	if n == 0 {
		return PatternNone
	}
	last := ohlcv[n-1]
	body := math.Abs(last.Close - last.Open)
	rng := last.High - last.Low
	if rng == 0 {
		return PatternNone
	}

	upperShadow := last.High - math.Max(last.Open, last.Close)
	lowerShadow := math.Min(last.Open, last.Close) - last.Low

	if body/rng < 0.1 {
		return PatternDoji
	}

	if lowerShadow > 2*body && upperShadow < body {
		return PatternHammer
	}

	if n >= 2 {
		prev := ohlcv[n-2]
		prevBody := math.Abs(prev.Close - prev.Open)
		prevBullish := prev.Close > prev.Open
		curBullish := last.Close > last.Open
		if curBullish != prevBullish && body > prevBody &&
			math.Max(last.Open, last.Close) >= math.Max(prev.Open, prev.Close) &&
			math.Min(last.Open, last.Close) <= math.Min(prev.Open, prev.Close) {
			return PatternEngulfing
		}
	}

	return PatternNone
}
