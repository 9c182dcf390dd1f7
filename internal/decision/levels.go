package decision

import (
	"sort"

	"github.com/marketpulse/corelens/internal/types"
)

// invalidationBufferPct scales the invalidation level past the last
// swing on the stop side (spec §4.7: +-0.2%).
const invalidationBufferPct = 0.2

const maxTargets = 2

// ComputeLevels builds entry/target/invalidation for the given
// direction, excluding swept levels from target selection (spec §4.7,
// §8 invariant 12) and falling back from stop-clusters to swings to
// swing-liquidity to ATH/ATL.
func ComputeLevels(dir types.Direction, currentPrice float64, levels []types.LiquidityLevel, swings []types.SwingPoint, swept SweptFilter) types.Levels {
	if dir == types.Wait {
		return types.Levels{EntryZoneLow: currentPrice, EntryZoneHigh: currentPrice}
	}

	filtered := swept.FilterSweptLevels(levels)

	targets := targetsForDirection(dir, currentPrice, filtered, swings)
	invalidation := invalidationForDirection(dir, currentPrice, swings)
	entryLow, entryHigh := entryZone(dir, currentPrice, swings)

	return types.Levels{
		EntryZoneLow:  entryLow,
		EntryZoneHigh: entryHigh,
		Targets:       targets,
		Invalidation:  invalidation,
	}
}

// SweptFilter abstracts the liquidity engine's swept-level tracker so
// this package doesn't import internal/liquidity directly.
type SweptFilter interface {
	FilterSweptLevels([]types.LiquidityLevel) []types.LiquidityLevel
}

// targetsForDirection walks the four tiers spec §4.7 names in order —
// stop-cluster, swings, swing-liquidity, ATH/ATL — taking the first
// tier that has a candidate ahead of price and stopping there, instead
// of merging every kind into one pool (original_source's
// decision_engine.py:782-816).
func targetsForDirection(dir types.Direction, currentPrice float64, levels []types.LiquidityLevel, swings []types.SwingPoint) []float64 {
	wantSide := types.BuyStops
	above := true
	if dir == types.Sell {
		wantSide = types.SellStops
		above = false
	}

	ahead := func(price float64) bool {
		if above {
			return price > currentPrice
		}
		return price < currentPrice
	}

	byKind := func(kind types.LiquidityKind) []float64 {
		var out []float64
		for _, l := range levels {
			if l.Kind != kind || l.Side != wantSide {
				continue
			}
			if ahead(l.Price) {
				out = append(out, l.Price)
			}
		}
		return out
	}

	candidates := byKind(types.LiquidityStopCluster)

	if len(candidates) == 0 {
		swingKind := types.SwingHigh
		if !above {
			swingKind = types.SwingLow
		}
		for _, s := range swings {
			if s.Kind == swingKind && ahead(s.Price) {
				candidates = append(candidates, s.Price)
			}
		}
	}

	if len(candidates) == 0 {
		candidates = byKind(types.LiquiditySwingLevel)
	}

	if len(candidates) == 0 {
		athAtl := types.LiquidityATH
		if !above {
			athAtl = types.LiquidityATL
		}
		candidates = byKind(athAtl)
	}

	if above {
		sort.Float64s(candidates)
	} else {
		sort.Sort(sort.Reverse(sort.Float64Slice(candidates)))
	}

	if len(candidates) > maxTargets {
		candidates = candidates[:maxTargets]
	}
	return candidates
}

func invalidationForDirection(dir types.Direction, currentPrice float64, swings []types.SwingPoint) float64 {
	stopKind := types.SwingLow
	sign := -1.0
	if dir == types.Sell {
		stopKind = types.SwingHigh
		sign = 1.0
	}

	var lastStop float64
	found := false
	for i := len(swings) - 1; i >= 0; i-- {
		if swings[i].Kind == stopKind {
			lastStop = swings[i].Price
			found = true
			break
		}
	}
	if !found {
		lastStop = currentPrice * (1 + sign*0.01)
	}
	return lastStop * (1 + sign*invalidationBufferPct/100)
}

func entryZone(dir types.Direction, currentPrice float64, swings []types.SwingPoint) (low, high float64) {
	low, high = currentPrice, currentPrice

	oppositeKind := types.SwingLow
	if dir == types.Sell {
		oppositeKind = types.SwingHigh
	}
	for i := len(swings) - 1; i >= 0; i-- {
		if swings[i].Kind != oppositeKind {
			continue
		}
		if dir == types.Buy && swings[i].Price < currentPrice {
			low = swings[i].Price
			return
		}
		if dir == types.Sell && swings[i].Price > currentPrice {
			high = swings[i].Price
			return
		}
	}
	return
}
