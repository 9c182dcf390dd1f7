package decision

import "github.com/marketpulse/corelens/internal/types"

// DefaultCriticalConflictThreshold is spec's documented default (2).
const DefaultCriticalConflictThreshold = 2

// trapEvidenceFloor reclassifies conflicts as trap evidence once the
// trap score reaches this level (spec §4.7).
const trapEvidenceFloor = 4.0

// DetectConflicts builds the taxonomy from spec §4.7 given the tick's
// cross-engine reads.
func DetectConflicts(in Inputs, finalDirection types.Direction) types.ConflictReport {
	var conflicts []types.Conflict

	if opposesDirectionally(in.LiquidityDirection, in.SVDIntent) {
		conflicts = append(conflicts, types.Conflict{
			Kind: types.ConflictLiquidityVsSVD, Severity: types.ConflictCritical,
			Detail: "liquidity direction opposes SVD intent",
		})
	}

	if finalDirection != types.Wait && directionOpposesIntent(finalDirection, in.SVDIntent) {
		conflicts = append(conflicts, types.Conflict{
			Kind: types.ConflictSignalVsSVD, Severity: types.ConflictCritical,
			Detail: "final direction opposes SVD intent",
		})
	}

	if finalDirection != types.Wait && directionOpposesDOM(finalDirection, in.DOMSide) {
		conflicts = append(conflicts, types.Conflict{
			Kind: types.ConflictSignalVsDOM, Severity: types.ConflictMajor,
			Detail: "final direction opposes DOM imbalance",
		})
	}

	if finalDirection == types.Buy && in.ThinBelow || finalDirection == types.Sell && in.ThinAbove {
		conflicts = append(conflicts, types.Conflict{
			Kind: types.ConflictSignalVsThin, Severity: types.ConflictMinor,
			Detail: "final direction runs into a thin zone",
		})
	}

	if phaseOpposesDirection(in.Phase, finalDirection) {
		conflicts = append(conflicts, types.Conflict{
			Kind: types.ConflictPhaseVsSignal, Severity: types.ConflictMajor,
			Detail: "phase disagrees with final direction",
		})
	}

	if in.HTF.Valid && finalDirection != types.Wait && directionOpposesTrend(finalDirection, in.HTF.Trend) {
		conflicts = append(conflicts, types.Conflict{
			Kind: types.ConflictLTFVsHTF, Severity: types.ConflictMajor,
			Detail: "LTF signal disagrees with HTF trend",
		})
	}

	if in.StructureTrend != in.TechnicalTrend {
		conflicts = append(conflicts, types.Conflict{
			Kind: types.ConflictStructureVsTA, Severity: types.ConflictMinor,
			Detail: "structural trend disagrees with technical trend",
		})
	}

	critical := 0
	for _, c := range conflicts {
		if c.Severity == types.ConflictCritical {
			critical++
		}
	}
	return types.ConflictReport{Conflicts: conflicts, CriticalCount: critical}
}

// ForceWait implements spec §4.7's critical-conflict WAIT rule, with the
// trap-evidence exception: conflicts are reclassified as trap evidence
// (and the WAIT suppressed) once trap score >= 4.0.
func ForceWait(report types.ConflictReport, threshold int, trapScore float64) bool {
	if report.CriticalCount < threshold {
		return false
	}
	return trapScore < trapEvidenceFloor
}

func opposesDirectionally(liqDir string, intent types.Intent) bool {
	return (liqDir == "up" && intent == types.IntentDistributing) ||
		(liqDir == "down" && intent == types.IntentAccumulating)
}

func directionOpposesIntent(dir types.Direction, intent types.Intent) bool {
	return (dir == types.Buy && intent == types.IntentDistributing) ||
		(dir == types.Sell && intent == types.IntentAccumulating)
}

func directionOpposesDOM(dir types.Direction, domSide string) bool {
	return (dir == types.Buy && domSide == "ask") || (dir == types.Sell && domSide == "bid")
}

func phaseOpposesDirection(phase types.Phase, dir types.Direction) bool {
	return phase == types.PhaseManipulation && dir != types.Wait
}

func directionOpposesTrend(dir types.Direction, trend string) bool {
	return (dir == types.Buy && trend == "bearish") || (dir == types.Sell && trend == "bullish")
}
