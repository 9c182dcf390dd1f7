// Package decision implements the DecisionEngine (spec §4.7): weighted
// voting, the SVD-intent veto, conflict detection, confidence
// arithmetic, trap-aware rerouting and level computation.
package decision

import (
	"fmt"
	"strings"

	"github.com/marketpulse/corelens/internal/liquidity"
	"github.com/marketpulse/corelens/internal/trap"
	"github.com/marketpulse/corelens/internal/types"
)

// Voting weights (spec §4.7).
const (
	weightSVDConfirmed    = 3.0
	weightSVDUnconfirmed  = 2.5
	weightLiquidity       = 2.0
	weightStructure       = 1.0
	weightTechnical       = 0.5
	voteMargin            = 1.0
)

// svdVetoConfidenceFloor gates the SVD-intent veto (spec §4.7: > 3).
const svdVetoConfidenceFloor = 3.0

// hardConfidenceFloor collapses any non-WAIT signal below it (spec §4.7).
const hardConfidenceFloor = 4.0

// HTFContext is the higher-timeframe bias consulted for confidence
// bonuses/penalties (spec §1: "external auxiliary input"; SPEC_FULL §C.3).
type HTFContext struct {
	Valid bool
	Trend string // "bullish" | "bearish" | "range"
	Phase types.Phase
}

// Inputs bundles every cross-engine read the DecisionEngine consumes.
type Inputs struct {
	StructureTrend string
	TechnicalTrend string
	RSI            float64

	LiquidityDirection string
	LiquidityLevels    []types.LiquidityLevel
	Swings             []types.SwingPoint
	CurrentPrice       float64

	SVDIntent         types.Intent
	SVDConfidence     float64
	SVDConfirmsIntent bool
	CVDDivergence     bool
	CVDReversalDetected bool
	IsPullbackOrBounce bool

	Phase   types.Phase
	DOMSide string

	ThinAbove bool
	ThinBelow bool

	SpoofConfirmed bool
	SpoofAligned   bool

	FOMO        bool
	FOMOStrong  bool
	Panic       bool
	PanicStrong bool

	SweepUpAligned   bool
	SweepDownAligned bool
	LiquidityHit     bool
	PostReversal     bool

	BreakoutStrongAligned bool
	BreakoutWeakAligned   bool

	PathCostUp           float64
	PathCostDown         float64
	LiquidityAgreesCheaperPath bool

	VolumeProfilePosition liquidity.PricePosition
	VolumeProfilePoCRole  liquidity.PoCRole

	DataQualityOverall float64

	HTF HTFContext

	TrapReport types.TrapReport

	ModuleConfidences []float64 // raw per-module confidences, if any, for the 60/40 blend

	ExecutionOnlySignals      bool
	CriticalConflictThreshold int
}

// Engine runs the weighted-vote + confidence + conflict pipeline.
type Engine struct{}

// New builds a DecisionEngine.
func New() *Engine { return &Engine{} }

// Decide produces the final SignalRecord for one tick.
func (e *Engine) Decide(in Inputs, sweptFilter SweptFilter) types.SignalRecord {
	direction, agreement := vote(in)

	direction = applySVDVeto(direction, in)

	base := buildConfidence(direction, agreement, in)

	conflictReport := DetectConflicts(in, direction)
	if ForceWait(conflictReport, criticalThreshold(in), in.TrapReport.Score) {
		direction = types.Wait
	} else if conflictReport.CriticalCount >= criticalThreshold(in) {
		base += 0.5 * in.TrapReport.Score
	}

	if in.TrapReport.Type == types.BullTrap || in.TrapReport.Type == types.BearTrap {
		adjustment := trap.Apply(in.TrapReport, direction)
		base += adjustment.ConfidenceDelta
		if adjustment.NewDirection != "" {
			flipped := adjustment.NewDirection != types.Wait
			direction = adjustment.NewDirection
			if flipped {
				base += 0.5 * in.TrapReport.Score
			}
		}
	}

	if in.ExecutionOnlySignals && in.Phase != types.PhaseExecution && base < 6 {
		direction = types.Wait
	}

	confidence := clamp(base, 0, 10)
	if confidence < hardConfidenceFloor && direction != types.Wait {
		direction = types.Wait
	}

	levels := ComputeLevels(direction, in.CurrentPrice, in.LiquidityLevels, in.Swings, sweptFilter)

	return types.SignalRecord{
		ID:          types.NewSignalID(),
		Direction:   direction,
		Confidence:  confidence,
		Explanation: explanation(direction, in, conflictReport),
		MainScenario: mainScenario(direction, in),
		AlternativeScenario: alternativeScenario(direction, in),
		Levels:      levels,
		Conflicts:   conflictReport,
		Trap:        in.TrapReport,
		Behavior: types.BehaviorReport{
			FOMO: in.FOMO, FOMOStrong: in.FOMOStrong,
			Panic: in.Panic, PanicStrong: in.PanicStrong,
		},
	}
}

func criticalThreshold(in Inputs) int {
	if in.CriticalConflictThreshold > 0 {
		return in.CriticalConflictThreshold
	}
	return DefaultCriticalConflictThreshold
}

// vote implements spec §4.7's weighted determination rule.
func vote(in Inputs) (types.Direction, float64) {
	svdWeight := weightSVDUnconfirmed
	if in.SVDConfirmsIntent {
		svdWeight = weightSVDConfirmed
	}

	buy, sell := 0.0, 0.0

	switch in.SVDIntent {
	case types.IntentAccumulating:
		buy += svdWeight
	case types.IntentDistributing:
		sell += svdWeight
	}

	switch in.LiquidityDirection {
	case "up":
		buy += weightLiquidity
	case "down":
		sell += weightLiquidity
	}

	switch in.StructureTrend {
	case "bullish":
		buy += weightStructure
	case "bearish":
		sell += weightStructure
	}

	switch in.TechnicalTrend {
	case "bullish":
		buy += weightTechnical
	case "bearish":
		sell += weightTechnical
	}

	total := buy + sell
	agreement := 0.0
	if total > 0 {
		agreement = maxf(buy, sell) / total
	}

	if buy-sell >= voteMargin {
		return types.Buy, agreement
	}
	if sell-buy >= voteMargin {
		return types.Sell, agreement
	}
	return types.Wait, agreement
}

// applySVDVeto implements spec §4.7's SVD veto rule.
func applySVDVeto(dir types.Direction, in Inputs) types.Direction {
	if in.SVDConfidence <= svdVetoConfidenceFloor {
		return dir
	}
	if dir == types.Buy && in.SVDIntent == types.IntentDistributing {
		return types.Wait
	}
	if dir == types.Sell && in.SVDIntent == types.IntentAccumulating {
		return types.Wait
	}
	return dir
}

// reversalSetup implements spec §4.7's reversal-setup waiver condition.
func reversalSetup(in Inputs) bool {
	if !in.CVDReversalDetected || in.Phase != types.PhaseExecution {
		return false
	}
	return in.RSI < 25 || in.RSI > 75 || in.PostReversal
}

// buildConfidence implements spec §4.7's 12-step confidence construction.
func buildConfidence(dir types.Direction, agreement float64, in Inputs) float64 {
	if dir == types.Wait {
		return 0
	}

	base := minf(agreement*6, 6)

	if in.HTF.Valid {
		if htfAgrees(dir, in.HTF.Trend) {
			base += 0.3
		} else {
			base -= 0.3
		}
	}

	if !reversalSetup(in) && in.StructureTrend != "" && in.TechnicalTrend != "" && in.StructureTrend != in.TechnicalTrend {
		base -= 1.5
	}
	if !reversalSetup(in) && directionOpposesDOM(dir, in.DOMSide) {
		base -= 1.5
	}
	if !reversalSetup(in) && opposesDirectionally(in.LiquidityDirection, in.SVDIntent) {
		base -= 1.5
	}

	switch in.Phase {
	case types.PhaseExecution:
		base += 0.5
	case types.PhaseDistribution:
		base += 0.2
	case types.PhaseManipulation:
		base -= 0.5
	}

	if in.SVDConfirmsIntent {
		base += 0.4
	}
	if in.CVDDivergence {
		base -= 0.3
	}
	if in.CVDReversalDetected {
		base += 1.5
	}

	rsiDelta := absf(in.RSI - 50)
	switch {
	case rsiDelta >= 25:
		base += 1.5
	case rsiDelta >= 20:
		base += 1.0
	}

	if in.FOMO || in.Panic {
		if in.FOMOStrong || in.PanicStrong {
			base -= 0.3
		} else {
			base -= 0.2
		}
	}

	if in.SpoofConfirmed {
		if in.SpoofAligned {
			base += 0.1
		} else {
			base -= 0.3
		}
	}

	if in.SweepUpAligned && dir == types.Buy {
		base += 0.3
	}
	if in.SweepDownAligned && dir == types.Sell {
		base += 0.3
	}
	if in.LiquidityHit {
		base += 0.2
	}
	if in.PostReversal {
		base += 0.2
	}

	if in.BreakoutStrongAligned {
		base += 1.0
	} else if in.BreakoutWeakAligned {
		base += 0.5
	}

	if in.DataQualityOverall < 0.8 {
		base -= (0.8 - in.DataQualityOverall) * 5
	}

	base += volumeProfileBonus(dir, in)

	base += pathResistanceBonus(dir, in)

	if len(in.ModuleConfidences) > 0 {
		moduleAvg := avg(in.ModuleConfidences)
		base = 0.6*moduleAvg + 0.4*base
	}

	return base
}

func htfAgrees(dir types.Direction, trend string) bool {
	return (dir == types.Buy && trend == "bullish") || (dir == types.Sell && trend == "bearish")
}

func volumeProfileBonus(dir types.Direction, in Inputs) float64 {
	bonus := 0.0
	switch in.VolumeProfilePosition {
	case liquidity.AboveVAH:
		if dir == types.Buy {
			bonus += 0.3
		} else {
			bonus -= 0.3
		}
	case liquidity.BelowVAL:
		if dir == types.Sell {
			bonus += 0.3
		} else {
			bonus -= 0.3
		}
	}

	if in.VolumeProfilePoCRole == liquidity.PoCMagnet {
		bonus -= 0.2
	}
	if (dir == types.Buy && in.VolumeProfilePoCRole == liquidity.PoCSupport) ||
		(dir == types.Sell && in.VolumeProfilePoCRole == liquidity.PoCResistance) {
		bonus += 0.2
	}
	return bonus
}

func pathResistanceBonus(dir types.Direction, in Inputs) float64 {
	if in.PathCostUp == in.PathCostDown {
		return -0.1
	}
	cheaperUp := in.PathCostUp < in.PathCostDown
	aligned := (dir == types.Buy && cheaperUp) || (dir == types.Sell && !cheaperUp)
	if !aligned {
		return 0
	}
	bonus := 0.3
	if in.LiquidityAgreesCheaperPath {
		bonus = 0.2
	}
	return bonus
}

func explanation(dir types.Direction, in Inputs, conflicts types.ConflictReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: phase=%s intent=%s", dir, in.Phase, in.SVDIntent)
	if dir == types.Wait && in.SVDIntent != types.IntentNeutral && in.SVDConfidence > svdVetoConfidenceFloor {
		fmt.Fprintf(&b, "; vetoed by SVD intent (confidence %.1f)", in.SVDConfidence)
	}
	if conflicts.CriticalCount > 0 {
		fmt.Fprintf(&b, "; %d critical conflict(s)", conflicts.CriticalCount)
	}
	if in.TrapReport.Type == types.BullTrap || in.TrapReport.Type == types.BearTrap {
		fmt.Fprintf(&b, "; trap=%s score=%.1f", in.TrapReport.Type, in.TrapReport.Score)
	}
	return b.String()
}

func mainScenario(dir types.Direction, in Inputs) string {
	return fmt.Sprintf("%s bias from %s structure, %s liquidity, SVD %s", dir, in.StructureTrend, in.LiquidityDirection, in.SVDIntent)
}

func alternativeScenario(dir types.Direction, in Inputs) string {
	if dir == types.Wait {
		return "no directional alternative while WAIT holds"
	}
	opposite := types.Sell
	if dir == types.Sell {
		opposite = types.Buy
	}
	return fmt.Sprintf("invalidated on a close back through the %s invalidation level", opposite)
}

func avg(vs []float64) float64 {
	if len(vs) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range vs {
		sum += v
	}
	return sum / float64(len(vs))
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
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

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
