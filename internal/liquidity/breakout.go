package liquidity

import "github.com/marketpulse/corelens/internal/types"

// BreakoutStrength classifies how decisively price has broken a level.
type BreakoutStrength string

const (
	BreakoutNone   BreakoutStrength = "none"
	BreakoutWeak   BreakoutStrength = "weak_breakout"
	BreakoutStrong BreakoutStrength = "strong_breakout"
)

// DetectBreakout reports the three-bar breakout strength of ohlcv's last
// three closes against level (spec §4.4): strong when all three closes
// land on the same side, weak at >= 2/3.
func DetectBreakout(ohlcv types.OHLCV, level float64, above bool) BreakoutStrength {
	n := len(ohlcv)
	if n < 3 {
		return BreakoutNone
	}
	window := ohlcv[n-3:]

	onSide := 0
	for _, c := range window {
		if above && c.Close > level {
			onSide++
		}
		if !above && c.Close < level {
			onSide++
		}
	}

	switch {
	case onSide == 3:
		return BreakoutStrong
	case onSide >= 2:
		return BreakoutWeak
	default:
		return BreakoutNone
	}
}
