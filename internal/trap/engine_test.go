package trap

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/marketpulse/corelens/internal/types"
)

func TestBearTrapScoreCrossesThreshold(t *testing.T) {
	e := New(DefaultScoreThreshold)
	in := Inputs{
		Panic:          true,
		Intent:         types.IntentAccumulating,
		LiquidityDown:  true,
		CVDDivergence:  true,
		CVDSlope:       2.0,
		SpoofConfirmed: true,
		SpoofSide:      types.SideSell,
		Absorbing:      true,
		AbsorbingSide:  types.SideBuy,
		ThinAbove:      true,
		SweepDown:      true,
	}
	report := e.Score(in)
	assert.Equal(t, types.BearTrap, report.Type)
	assert.GreaterOrEqual(t, report.Score, 5.0)
}

func TestApplyFlipsAgreeingSignal(t *testing.T) {
	report := types.TrapReport{Type: types.BearTrap, Score: 5.5}
	adj := Apply(report, types.Sell)
	assert.Equal(t, types.Buy, adj.NewDirection)
	assert.Equal(t, -3.0, adj.ConfidenceDelta)
}

func TestApplyDowngradesBelowFlipThreshold(t *testing.T) {
	report := types.TrapReport{Type: types.BullTrap, Score: 3.5}
	adj := Apply(report, types.Buy)
	assert.Equal(t, types.Wait, adj.NewDirection)
	assert.Equal(t, -5.0, adj.ConfidenceDelta)
}

func TestApplyBonusesOpposingSignal(t *testing.T) {
	report := types.TrapReport{Type: types.BullTrap, Score: 4.0}
	adj := Apply(report, types.Sell)
	assert.Equal(t, types.Direction(""), adj.NewDirection)
	assert.Equal(t, 1.5, adj.ConfidenceDelta)
}
