// Package liquidity implements the LiquidityEngine (spec §4.4): stop
// clusters, swing liquidity, ATH/ATL anchors, sweep/touch/breakout
// detection, volume profile and a direction hint, consulting the
// process-lifetime SweptLevelsTracker.
package liquidity

import (
	"fmt"
	"time"

	"github.com/marketpulse/corelens/internal/types"
)

// Direction is the liquidity engine's directional hint.
type Direction string

const (
	DirectionUp      Direction = "up"
	DirectionDown    Direction = "down"
	DirectionNeutral Direction = "neutral"
)

// upperWickRatioFloor is the fraction of bar range a wick must occupy to
// imply a stop cluster (spec §4.4: "> 60%").
const upperWickRatioFloor = 0.6

// hysteresis is the 10% margin required to call a direction over neutral.
const hysteresis = 1.1

// defaultSweepLookback is the historical window the live sweep detector
// compares against (spec §4.4 default 50).
const defaultSweepLookback = 50

// Config tunes the liquidity engine.
type Config struct {
	SweepLookback int
}

// DefaultConfig returns spec defaults.
func DefaultConfig() Config { return Config{SweepLookback: defaultSweepLookback} }

// Result bundles the liquidity read for one tick.
type Result struct {
	Levels        []types.LiquidityLevel
	LiveSweep     LiveSweep
	Historical    []HistoricalSweep
	Touched       []types.LiquidityLevel
	VolumeProfile VolumeProfile
	Direction     Direction
	UpLiquidity   float64
	DownLiquidity float64
}

// Engine computes liquidity structure and owns the SweptLevelsTracker.
type Engine struct {
	cfg     Config
	swept   *SweptLevelsTracker
}

// New builds a liquidity Engine bound to the given swept-level expiry.
func New(cfg Config, sweptExpiry time.Duration) *Engine {
	if cfg.SweepLookback <= 0 {
		cfg.SweepLookback = defaultSweepLookback
	}
	return &Engine{cfg: cfg, swept: NewSweptLevelsTracker(sweptExpiry)}
}

// Swept exposes the owned tracker for read-through by the pipeline
// (spec §3 Ownership: "passed by reference only for read-through").
func (e *Engine) Swept() *SweptLevelsTracker { return e.swept }

// Analyze runs the full liquidity pipeline over ohlcv and the
// pre-computed structural swings, at wall-clock time now.
func (e *Engine) Analyze(ohlcv types.OHLCV, swings []types.SwingPoint, now time.Time) Result {
	currentClose, _ := lastClose(ohlcv)

	levels := stopClusters(ohlcv, now)
	levels = append(levels, swingLiquidity(swings, ohlcv, currentClose, now)...)
	levels = append(levels, athATL(ohlcv)...)

	liveSweep := DetectLiveSweep(ohlcv, e.cfg.SweepLookback)
	historical := DetectHistoricalSweeps(ohlcv, swings, currentClose)

	for _, hs := range historical {
		e.swept.MarkAsSwept(hs.Level.Price, hs.Direction, "historical_sweep", now, hs.CandlesAgo, true)
	}
	if liveSweep.BullTrap && liveSweep.PostReversal {
		if last, ok := ohlcv.Last(); ok {
			e.swept.MarkAsSwept(last.High, types.SweepUp, "live_sweep_reversal", now, 0, true)
		}
	}
	if liveSweep.BearTrap && liveSweep.PostReversal {
		if last, ok := ohlcv.Last(); ok {
			e.swept.MarkAsSwept(last.Low, types.SweepDown, "live_sweep_reversal", now, 0, true)
		}
	}

	touched := DetectTouches(ohlcv, levels)
	for _, t := range touched {
		dir := types.SweepUp
		if t.Side == types.SellStops {
			dir = types.SweepDown
		}
		e.swept.MarkAsSwept(t.Price, dir, "touch", now, 0, false)
	}

	vp := BuildVolumeProfile(ohlcv, currentClose)

	dir, upLiq, downLiq := directionHint(levels, currentClose)

	return Result{
		Levels:        levels,
		LiveSweep:     liveSweep,
		Historical:    historical,
		Touched:       touched,
		VolumeProfile: vp,
		Direction:     dir,
		UpLiquidity:   upLiq,
		DownLiquidity: downLiq,
	}
}

func lastClose(ohlcv types.OHLCV) (float64, bool) {
	c, ok := ohlcv.Last()
	if !ok {
		return 0, false
	}
	return c.Close, true
}

// stopClusters implies buy_stops above long-upper-wick bars and
// sell_stops below long-lower-wick bars (spec §4.4).
func stopClusters(ohlcv types.OHLCV, now time.Time) []types.LiquidityLevel {
	var out []types.LiquidityLevel
	for i, c := range ohlcv {
		rng := c.High - c.Low
		if rng <= 0 {
			continue
		}
		upperWick := c.High - maxf(c.Open, c.Close)
		lowerWick := minf(c.Open, c.Close) - c.Low

		age := now.Sub(time.UnixMilli(c.Timestamp)).Seconds()
		weight := DecayWeight(age, DefaultHalfLifeSeconds)

		if upperWick/rng > upperWickRatioFloor {
			out = append(out, types.LiquidityLevel{
				Kind: types.LiquidityStopCluster, Price: c.High, Side: types.BuyStops,
				Source: fmt.Sprintf("wick@%d", i), Timestamp: c.Timestamp, Weight: weight,
			})
		}
		if lowerWick/rng > upperWickRatioFloor {
			out = append(out, types.LiquidityLevel{
				Kind: types.LiquidityStopCluster, Price: c.Low, Side: types.SellStops,
				Source: fmt.Sprintf("wick@%d", i), Timestamp: c.Timestamp, Weight: weight,
			})
		}
	}
	return out
}

// swingLiquidity mirrors each retained swing as a liquidity level with
// the same time-decay treatment (spec §4.4). Invariant: buy_stops only
// meaningful when price >= current close; mirror for sell_stops (spec §3).
func swingLiquidity(swings []types.SwingPoint, ohlcv types.OHLCV, currentClose float64, now time.Time) []types.LiquidityLevel {
	var out []types.LiquidityLevel
	for _, s := range swings {
		age := now.Sub(time.UnixMilli(s.Timestamp)).Seconds()
		weight := DecayWeight(age, DefaultHalfLifeSeconds)

		if s.Kind == types.SwingHigh && s.Price >= currentClose {
			out = append(out, types.LiquidityLevel{
				Kind: types.LiquiditySwingLevel, Price: s.Price, Side: types.BuyStops,
				Source: fmt.Sprintf("swing@%d", s.Index), Timestamp: s.Timestamp, Weight: weight,
			})
		}
		if s.Kind == types.SwingLow && s.Price <= currentClose {
			out = append(out, types.LiquidityLevel{
				Kind: types.LiquiditySwingLevel, Price: s.Price, Side: types.SellStops,
				Source: fmt.Sprintf("swing@%d", s.Index), Timestamp: s.Timestamp, Weight: weight,
			})
		}
	}
	return out
}

// athATL returns the absolute high/low of the window, always full weight.
func athATL(ohlcv types.OHLCV) []types.LiquidityLevel {
	if len(ohlcv) == 0 {
		return nil
	}
	ath, atl := ohlcv[0].High, ohlcv[0].Low
	athTS, atlTS := ohlcv[0].Timestamp, ohlcv[0].Timestamp
	for _, c := range ohlcv {
		if c.High > ath {
			ath = c.High
			athTS = c.Timestamp
		}
		if c.Low < atl {
			atl = c.Low
			atlTS = c.Timestamp
		}
	}
	return []types.LiquidityLevel{
		{Kind: types.LiquidityATH, Price: ath, Side: types.BuyStops, Source: "ath", Timestamp: athTS, Weight: 1.0},
		{Kind: types.LiquidityATL, Price: atl, Side: types.SellStops, Source: "atl", Timestamp: atlTS, Weight: 1.0},
	}
}

// directionHint sums time-decayed weights of above-price buy_stops vs
// below-price sell_stops with a 10% hysteresis margin (spec §4.4).
func directionHint(levels []types.LiquidityLevel, currentPrice float64) (Direction, float64, float64) {
	var upLiq, downLiq float64
	for _, l := range levels {
		if l.Side == types.BuyStops && l.Price >= currentPrice {
			upLiq += l.Weight
		}
		if l.Side == types.SellStops && l.Price <= currentPrice {
			downLiq += l.Weight
		}
	}

	switch {
	case upLiq > hysteresis*downLiq:
		return DirectionUp, upLiq, downLiq
	case downLiq > hysteresis*upLiq:
		return DirectionDown, upLiq, downLiq
	default:
		return DirectionNeutral, upLiq, downLiq
	}
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
