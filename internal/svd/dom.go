package svd

import "github.com/marketpulse/corelens/internal/types"

// domTopLevels / thinTopLevels / pathTopLevels bound how deep each DOM
// metric scans (spec §4.5).
const domTopLevels = 5
const thinTopLevels = 20
const pathTopLevels = 20

// domImbalanceEpsilon guards the ask-side denominator against zero.
const domImbalanceEpsilon = 1e-9

// DOMSide is which side a DOM-derived metric favors.
type DOMSide string

const (
	DOMBid     DOMSide = "bid"
	DOMAsk     DOMSide = "ask"
	DOMNeutral DOMSide = "neutral"
)

// DOMImbalance reports the top-5-level bid/ask ratio and dominant side
// (spec §4.5).
func DOMImbalance(ob types.OrderBook) (ratio float64, side DOMSide) {
	bidVol := sumTop(ob.Bids, domTopLevels)
	askVol := sumTop(ob.Asks, domTopLevels)

	denom := askVol
	if denom < domImbalanceEpsilon {
		denom = domImbalanceEpsilon
	}
	ratio = bidVol / denom

	switch {
	case ratio > 1.2:
		side = DOMBid
	case ratio < 0.8:
		side = DOMAsk
	default:
		side = DOMNeutral
	}
	return
}

func sumTop(levels []types.OrderLevel, n int) float64 {
	top := levels
	if len(top) > n {
		top = top[:n]
	}
	sum := 0.0
	for _, l := range top {
		sum += l.Size
	}
	return sum
}

// ThinZones reports the first level on each side, within the top 20,
// whose size is below 0.3x the side's average (spec §4.5).
type ThinZones struct {
	ThinAbove bool
	AboveLevel float64
	ThinBelow bool
	BelowLevel float64
}

func DetectThinZones(ob types.OrderBook) ThinZones {
	var tz ThinZones
	top := ob.Asks
	if len(top) > thinTopLevels {
		top = top[:thinTopLevels]
	}
	for _, l := range top {
		if ob.AvgAsk > 0 && l.Size < 0.3*ob.AvgAsk {
			tz.ThinAbove = true
			tz.AboveLevel = l.Price
			break
		}
	}
	bot := ob.Bids
	if len(bot) > thinTopLevels {
		bot = bot[:thinTopLevels]
	}
	for _, l := range bot {
		if ob.AvgBid > 0 && l.Size < 0.3*ob.AvgBid {
			tz.ThinBelow = true
			tz.BelowLevel = l.Price
			break
		}
	}
	return tz
}

// PathCost is the integrated order-book resistance against a move in
// each direction (spec §4.5).
type PathCost struct {
	Up   float64
	Down float64
}

// ComputePathCost integrates bid/ask sizes across the top 20 levels,
// weighted by distance from currentPrice, capping each level's
// contribution to 5x the side average and discounting the thin side by
// 0.7. If atrPercent > 0 the result is normalized by it.
func ComputePathCost(ob types.OrderBook, currentPrice float64, thin ThinZones, atrPercent float64) PathCost {
	up := pathCostSide(ob.Asks, ob.AvgAsk, currentPrice, thin.ThinAbove)
	down := pathCostSide(ob.Bids, ob.AvgBid, currentPrice, thin.ThinBelow)

	if atrPercent > 0 {
		up /= atrPercent
		down /= atrPercent
	}
	return PathCost{Up: up, Down: down}
}

func pathCostSide(levels []types.OrderLevel, avg, currentPrice float64, thin bool) float64 {
	top := levels
	if len(top) > pathTopLevels {
		top = top[:pathTopLevels]
	}
	cost := 0.0
	cap := avg * 5
	for _, l := range top {
		size := l.Size
		if avg > 0 && size > cap {
			size = cap
		}
		distance := l.Price - currentPrice
		if distance < 0 {
			distance = -distance
		}
		cost += size * (1 + distance/maxf(currentPrice, 1))
	}
	if thin {
		cost *= 0.7
	}
	return cost
}
