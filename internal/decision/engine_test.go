package decision

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketpulse/corelens/internal/types"
)

type fakeSweptFilter struct {
	excludePrice float64
}

func (f fakeSweptFilter) FilterSweptLevels(levels []types.LiquidityLevel) []types.LiquidityLevel {
	if f.excludePrice == 0 {
		return levels
	}
	out := make([]types.LiquidityLevel, 0, len(levels))
	for _, l := range levels {
		if withinPct(l.Price, f.excludePrice, 0.5) {
			continue
		}
		out = append(out, l)
	}
	return out
}

func withinPct(a, b, pct float64) bool {
	if b == 0 {
		return a == 0
	}
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff/b*100 <= pct
}

func cleanAccumulationInputs() Inputs {
	return Inputs{
		StructureTrend:      "bullish",
		TechnicalTrend:      "bullish",
		RSI:                 62,
		LiquidityDirection:  "up",
		LiquidityLevels: []types.LiquidityLevel{
			{Kind: types.LiquidityStopCluster, Price: 110, Side: types.BuyStops, Weight: 1.0},
		},
		Swings: []types.SwingPoint{
			{Kind: types.SwingLow, Price: 98, Index: 1},
			{Kind: types.SwingHigh, Price: 105, Index: 2},
			{Kind: types.SwingLow, Price: 102, Index: 3},
		},
		CurrentPrice:      108,
		SVDIntent:         types.IntentAccumulating,
		SVDConfidence:     4.5,
		SVDConfirmsIntent: true,
		Phase:             types.PhaseExecution,
		DOMSide:           "bid",
		DataQualityOverall: 1.0,
		SweepUpAligned:    true,
		PathCostUp:        1.0,
		PathCostDown:      2.0,
	}
}

func TestDecideCleanAccumulationBUY(t *testing.T) {
	e := New()
	in := cleanAccumulationInputs()

	sig := e.Decide(in, fakeSweptFilter{})

	require.Equal(t, types.Buy, sig.Direction)
	assert.GreaterOrEqual(t, sig.Confidence, 5.5)
	require.NotEmpty(t, sig.Levels.Targets)
	assert.Greater(t, sig.Levels.Targets[0], in.CurrentPrice)
	assert.Less(t, sig.Levels.Invalidation, 102.0)
}

func TestDecideSVDVetoBlocksBUY(t *testing.T) {
	e := New()
	in := cleanAccumulationInputs()
	in.SVDIntent = types.IntentDistributing
	in.SVDConfidence = 4.2

	sig := e.Decide(in, fakeSweptFilter{})

	assert.Equal(t, types.Wait, sig.Direction)
	assert.Contains(t, sig.Explanation, "vetoed by SVD intent")
}

func TestDecideBearTrapFlipsSellToBuy(t *testing.T) {
	e := New()
	in := cleanAccumulationInputs()
	in.LiquidityDirection = "down"
	in.StructureTrend = "bearish"
	in.TechnicalTrend = "bearish"
	in.SVDIntent = types.IntentNeutral
	in.SVDConfidence = 0
	in.TrapReport = types.TrapReport{Type: types.BearTrap, Score: 5.5}

	sig := e.Decide(in, fakeSweptFilter{})

	assert.Equal(t, types.Buy, sig.Direction)
}

func TestConfidenceAlwaysClamped(t *testing.T) {
	e := New()
	in := cleanAccumulationInputs()
	in.ModuleConfidences = []float64{20, -20}

	sig := e.Decide(in, fakeSweptFilter{})

	assert.GreaterOrEqual(t, sig.Confidence, 0.0)
	assert.LessOrEqual(t, sig.Confidence, 10.0)
}

func TestCriticalConflictForcesWaitWithoutTrapEvidence(t *testing.T) {
	in := Inputs{
		LiquidityDirection: "up",
		SVDIntent:          types.IntentDistributing,
		StructureTrend:     "bullish",
		TechnicalTrend:     "bullish",
		Phase:              types.PhaseExecution,
	}

	report := DetectConflicts(in, types.Buy)

	assert.Equal(t, 2, report.CriticalCount)
	assert.True(t, ForceWait(report, DefaultCriticalConflictThreshold, 0))
}

func TestCriticalConflictSuppressedByTrapEvidence(t *testing.T) {
	report := types.ConflictReport{CriticalCount: 2}
	assert.False(t, ForceWait(report, DefaultCriticalConflictThreshold, 4.5))
}

func TestSweptLevelExcludedFromTargets(t *testing.T) {
	in := cleanAccumulationInputs()
	in.LiquidityLevels = []types.LiquidityLevel{
		{Kind: types.LiquiditySwingLevel, Price: 105.0, Side: types.BuyStops, Weight: 1.0},
		{Kind: types.LiquidityStopCluster, Price: 112.0, Side: types.BuyStops, Weight: 1.0},
	}

	levels := ComputeLevels(types.Buy, 108, in.LiquidityLevels, in.Swings, fakeSweptFilter{excludePrice: 105.0})

	for _, target := range levels.Targets {
		assert.NotInDelta(t, 105.0, target, 0.5)
	}
}

func TestTargetsPreferStopClusterOverSwingLiquidity(t *testing.T) {
	levels := []types.LiquidityLevel{
		{Kind: types.LiquiditySwingLevel, Price: 109.0, Side: types.BuyStops, Weight: 1.0},
		{Kind: types.LiquidityStopCluster, Price: 112.0, Side: types.BuyStops, Weight: 1.0},
	}
	candidates := targetsForDirection(types.Buy, 108, levels, nil)
	require.Equal(t, []float64{112.0}, candidates)
}

func TestTargetsFallBackToSwingsBeforeSwingLiquidity(t *testing.T) {
	levels := []types.LiquidityLevel{
		{Kind: types.LiquiditySwingLevel, Price: 109.0, Side: types.BuyStops, Weight: 1.0},
	}
	swings := []types.SwingPoint{
		{Kind: types.SwingHigh, Price: 111.0, Index: 1},
	}
	candidates := targetsForDirection(types.Buy, 108, levels, swings)
	require.Equal(t, []float64{111.0}, candidates)
}

func TestTargetsFallBackToSwingLiquidityThenATH(t *testing.T) {
	levels := []types.LiquidityLevel{
		{Kind: types.LiquiditySwingLevel, Price: 109.0, Side: types.BuyStops, Weight: 1.0},
	}
	candidates := targetsForDirection(types.Buy, 108, levels, nil)
	require.Equal(t, []float64{109.0}, candidates)

	athOnly := []types.LiquidityLevel{
		{Kind: types.LiquidityATH, Price: 130.0, Side: types.BuyStops, Weight: 1.0},
	}
	candidates = targetsForDirection(types.Buy, 108, athOnly, nil)
	require.Equal(t, []float64{130.0}, candidates)
}
