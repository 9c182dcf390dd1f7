package liquidity

import "github.com/marketpulse/corelens/internal/types"

// pierceReversalPct is the 0.2% reversal-confirmation tolerance used by
// both the live sweep detector and historical-sweep confirmation.
const pierceReversalPct = 0.2

// retestProximityPct is the proximity below which a later bar counts as
// a "re-test" of a swept level, invalidating the sweep confirmation.
const retestProximityPct = 0.5

// minBarsWithoutRetest is the number of bars a swept level must go
// without a re-test to be confirmed (spec §4.4, §9 open question).
const minBarsWithoutRetest = 5

// LiveSweep is the last-three-bars sweep read against the historical
// high/low over lookback bars.
type LiveSweep struct {
	BullTrap     bool // pierced historical high then closed back below
	BearTrap     bool // pierced historical low then closed back above
	PostReversal bool
}

// DetectLiveSweep implements spec §4.4's "Sweep detector": over the last
// three bars compared to the preceding lookback bars, a bull-trap sweep
// is any of the last three piercing the historical high with at least
// one closing >= 0.2% below it; mirror for bear-trap.
func DetectLiveSweep(ohlcv types.OHLCV, lookback int) LiveSweep {
	n := len(ohlcv)
	if n < lookback+3 {
		return LiveSweep{}
	}

	histWindow := ohlcv[n-lookback-3 : n-3]
	histHigh, histLow := histWindow[0].High, histWindow[0].Low
	for _, c := range histWindow {
		if c.High > histHigh {
			histHigh = c.High
		}
		if c.Low < histLow {
			histLow = c.Low
		}
	}

	last3 := ohlcv[n-3:]
	var sweep LiveSweep
	for _, c := range last3 {
		if c.High > histHigh && c.Close <= histHigh*(1-pierceReversalPct/100) {
			sweep.BullTrap = true
		}
		if c.Low < histLow && c.Close >= histLow*(1+pierceReversalPct/100) {
			sweep.BearTrap = true
		}
	}

	lastClose := last3[len(last3)-1].Close
	if sweep.BullTrap && lastClose < histHigh {
		sweep.PostReversal = true
	}
	if sweep.BearTrap && lastClose > histLow {
		sweep.PostReversal = true
	}

	return sweep
}

// HistoricalSweep is a confirmed past sweep of a specific swing level.
type HistoricalSweep struct {
	Level      types.SwingPoint
	Direction  types.SweepDirection
	CandlesAgo int
}

// DetectHistoricalSweeps scans swings still above/below current price
// for the first bar that pierced them, confirms recovery (close back
// across the level by >= 0.2%) and confirms no re-test within >= 5 bars
// at proximity < 0.5% (spec §4.4).
func DetectHistoricalSweeps(ohlcv types.OHLCV, swings []types.SwingPoint, currentPrice float64) []HistoricalSweep {
	n := len(ohlcv)
	var out []HistoricalSweep

	for _, sw := range swings {
		if sw.Index >= n-1 {
			continue // no bars after the swing to pierce it
		}

		var dir types.SweepDirection
		above := sw.Price > currentPrice
		if sw.Kind == types.SwingHigh && above {
			dir = types.SweepUp
		} else if sw.Kind == types.SwingLow && !above {
			dir = types.SweepDown
		} else {
			continue
		}

		pierceIdx := -1
		for i := sw.Index + 1; i < n; i++ {
			if dir == types.SweepUp && ohlcv[i].High > sw.Price {
				pierceIdx = i
				break
			}
			if dir == types.SweepDown && ohlcv[i].Low < sw.Price {
				pierceIdx = i
				break
			}
		}
		if pierceIdx == -1 {
			continue
		}

		recovered := false
		for i := pierceIdx; i < n; i++ {
			c := ohlcv[i]
			if dir == types.SweepUp && c.Close <= sw.Price*(1-pierceReversalPct/100) {
				recovered = true
				pierceIdx = i
				break
			}
			if dir == types.SweepDown && c.Close >= sw.Price*(1+pierceReversalPct/100) {
				recovered = true
				pierceIdx = i
				break
			}
		}
		if !recovered {
			continue
		}

		barsSince := n - 1 - pierceIdx
		if barsSince < minBarsWithoutRetest {
			continue
		}

		retested := false
		for i := pierceIdx + 1; i < n; i++ {
			if withinProximity(ohlcv[i].Close, sw.Price, retestProximityPct) {
				retested = true
				break
			}
		}
		if retested {
			continue
		}

		out = append(out, HistoricalSweep{
			Level:      sw,
			Direction:  dir,
			CandlesAgo: n - 1 - pierceIdx,
		})
	}
	return out
}

// DetectTouches marks liquidity levels touched within the last 20 bars
// at 0.2% tolerance: high for buy_stops, low for sell_stops (spec §4.4).
func DetectTouches(ohlcv types.OHLCV, levels []types.LiquidityLevel) []types.LiquidityLevel {
	n := len(ohlcv)
	window := ohlcv
	if n > 20 {
		window = ohlcv[n-20:]
	}

	var touched []types.LiquidityLevel
	for _, lvl := range levels {
		for _, c := range window {
			price := c.Low
			if lvl.Side == types.BuyStops {
				price = c.High
			}
			if withinProximity(price, lvl.Price, pierceReversalPct) {
				touched = append(touched, lvl)
				break
			}
		}
	}
	return touched
}
