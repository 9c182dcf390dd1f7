// Package trap implements the TrapEngine (spec §4.6): a fixed catalogue
// of additive rules scored independently for bull-trap and bear-trap
// hypotheses, emitting a directional adjustment when a trap is detected.
package trap

import (
	"github.com/marketpulse/corelens/internal/types"
)

// DefaultScoreThreshold is the trap-score floor for emission (spec: 3.0).
const DefaultScoreThreshold = 3.0

// flipScoreThreshold / penalties mirror spec §4.6's adjustment rules.
const flipScoreThreshold = 5.0
const flipPenalty = -3.0
const downgradePenalty = -5.0
const opposingBonus = 1.5

// Inputs bundles the cross-engine signals the trap catalogue consults.
// It is its own type (rather than importing svd/liquidity/structure
// directly) so TrapEngine stays decoupled from their internals; the
// pipeline fills this in from each engine's Result.
type Inputs struct {
	FOMO             bool
	Panic            bool
	Intent           types.Intent
	LiquidityUp      bool
	LiquidityDown    bool
	CVDDivergence    bool
	CVDSlope         float64
	SpoofConfirmed   bool
	SpoofSide        types.Side
	Absorbing        bool
	AbsorbingSide    types.Side
	Phase            types.Phase
	DOMSide          string // "bid" | "ask" | "neutral"
	SweepUp          bool
	SweepDown        bool
	ThinAbove        bool
	ThinBelow        bool
}

// Engine scores bull/bear trap hypotheses.
type Engine struct {
	scoreThreshold float64
}

// New builds a trap Engine with the given score threshold (spec default
// 3.0, configurable per spec §6 trap_score_threshold).
func New(scoreThreshold float64) *Engine {
	if scoreThreshold <= 0 {
		scoreThreshold = DefaultScoreThreshold
	}
	return &Engine{scoreThreshold: scoreThreshold}
}

// Score evaluates the bull-trap and bear-trap catalogues and returns
// whichever scores higher as the tick's TrapReport.
func (e *Engine) Score(in Inputs) types.TrapReport {
	bullScore, bullReasons := bullTrapScore(in)
	bearScore, bearReasons := bearTrapScore(in)

	if bullScore >= bearScore && bullScore >= e.scoreThreshold {
		return types.TrapReport{Type: types.BullTrap, Score: bullScore, Reasons: bullReasons, Threshold: e.scoreThreshold}
	}
	if bearScore > bullScore && bearScore >= e.scoreThreshold {
		return types.TrapReport{Type: types.BearTrap, Score: bearScore, Reasons: bearReasons, Threshold: e.scoreThreshold}
	}
	maxScore := bullScore
	if bearScore > maxScore {
		maxScore = bearScore
	}
	return types.TrapReport{Type: types.TrapNone, Score: maxScore, Threshold: e.scoreThreshold}
}

func bullTrapScore(in Inputs) (float64, []string) {
	score := 0.0
	var reasons []string

	if in.FOMO && in.Intent == types.IntentDistributing {
		score += 2.0
		reasons = append(reasons, "fomo+distributing")
	}
	if in.LiquidityUp && in.CVDDivergence && in.CVDSlope < 0 {
		score += 1.5
		reasons = append(reasons, "liquidity_up+cvd_divergence+slope_down")
	}
	if in.SpoofConfirmed && in.SpoofSide == types.SideBuy && in.Absorbing && in.AbsorbingSide == types.SideSell {
		score += 1.5
		reasons = append(reasons, "bid_spoof_vanish+sell_absorption")
	}
	if in.Phase == types.PhaseDistribution && in.DOMSide == "ask" && in.LiquidityUp {
		score += 1.0
		reasons = append(reasons, "distribution+dom_ask+liquidity_up")
	}
	if in.SweepUp && in.ThinBelow {
		score += 1.0
		reasons = append(reasons, "sweep_up+thin_below")
	}
	return score, reasons
}

func bearTrapScore(in Inputs) (float64, []string) {
	score := 0.0
	var reasons []string

	if in.Panic && in.Intent == types.IntentAccumulating {
		score += 2.0
		reasons = append(reasons, "panic+accumulating")
	}
	if in.LiquidityDown && in.CVDDivergence && in.CVDSlope > 0 {
		score += 1.5
		reasons = append(reasons, "liquidity_down+cvd_divergence+slope_up")
	}
	if in.SpoofConfirmed && in.SpoofSide == types.SideSell && in.Absorbing && in.AbsorbingSide == types.SideBuy {
		score += 1.5
		reasons = append(reasons, "ask_spoof_vanish+buy_absorption")
	}
	if in.Phase == types.PhaseDistribution && in.DOMSide == "bid" && in.LiquidityDown {
		score += 1.0
		reasons = append(reasons, "distribution+dom_bid+liquidity_down")
	}
	if in.SweepDown && in.ThinAbove {
		score += 1.0
		reasons = append(reasons, "sweep_down+thin_above")
	}
	return score, reasons
}

// Adjustment is the directional penalty/bonus a trap applies to the
// current vote-determined direction (spec §4.6).
type Adjustment struct {
	NewDirection types.Direction // empty means "no override"
	ConfidenceDelta float64
}

// Apply implements spec §4.6's post-scoring adjustment: if the
// prevailing direction agrees with the trapped direction, flip (score
// >= 5) or downgrade to WAIT (score < 5); if it already opposes the
// trapped direction, add a bonus.
func Apply(report types.TrapReport, prevailing types.Direction) Adjustment {
	if report.Type == types.TrapNone {
		return Adjustment{}
	}

	trapped := types.Buy
	opposite := types.Sell
	if report.Type == types.BearTrap {
		trapped = types.Sell
		opposite = types.Buy
	}

	switch prevailing {
	case trapped:
		if report.Score >= flipScoreThreshold {
			return Adjustment{NewDirection: opposite, ConfidenceDelta: flipPenalty}
		}
		return Adjustment{NewDirection: types.Wait, ConfidenceDelta: downgradePenalty}
	case opposite:
		return Adjustment{ConfidenceDelta: opposingBonus}
	default:
		return Adjustment{}
	}
}
