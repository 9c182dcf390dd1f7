package liquidity

import "math"

// DefaultHalfLifeSeconds is the half-life used for liquidity-level aging
// (spec §4.4: half_life = 86400s).
const DefaultHalfLifeSeconds = 86400.0

// DecayWeight returns the time-decay weight for a level of the given age,
// generalized from the original bot's single shared half-life helper
// (modules/utils, see SPEC_FULL.md §C.2) so stop clusters and swing
// liquidity share one implementation; spoof tracking applies no time
// decay. Strictly decreasing for positive ages, exactly 1.0 at age 0
// (spec §8 invariant 3).
func DecayWeight(ageSeconds, halfLifeSeconds float64) float64 {
	if halfLifeSeconds <= 0 {
		halfLifeSeconds = DefaultHalfLifeSeconds
	}
	if ageSeconds <= 0 {
		return 1.0
	}
	return math.Pow(0.5, ageSeconds/halfLifeSeconds)
}
