// Package svd implements the SVDEngine (Smart Volume Dynamics, spec
// §4.5): delta, CVD, absorption, aggression, velocity, DOM imbalance,
// thin zones, spoof detection, path cost, bucketed flow, FOMO/panic,
// intent and phase. It owns the PhaseTracker, CVDCalculator and spoof
// memory.
package svd

import (
	"time"

	"github.com/marketpulse/corelens/internal/types"
)

// reversalCVDFloor / reversalSlopeFloor gate the "reversal detected"
// branch of intent resolution (spec §4.5).
const reversalCVDFloor = 5.0
const reversalSlopeFloor = 1.5
const intentCVDFloor = 5.0
const intentSlopeFloor = 0.5
const executionSlopeFloor = 1.0

// absorptionBaseThresholdPct / absorptionATRDivisor build the
// ATR-adaptive price-change threshold for absorption detection.
const absorptionBaseThresholdPct = 0.05
const absorptionATRDivisor = 10.0
const absorptionVolumeMultiple = 4.0

// velocityExecutionFloor is the trade-count velocity above which the
// phase is execution regardless of absorption (spec §4.5).
const velocityExecutionFloor = 20.0

// Engine computes smart-volume-dynamics microstructure reads.
type Engine struct {
	cvd   *CVDCalculator
	phase *PhaseTracker
	spoof *SpoofTracker
	bba   *BestBidAskMemory

	// lastCVDTradeTS is the timestamp (ms) of the newest trade already
	// folded into cvd. GetTradesSnapshot returns the whole sliding
	// trades window each tick, not just newly-arrived trades, so CVD
	// must only ingest what's newer than this mark or it double-counts
	// every trade still present in the window on the next tick.
	lastCVDTradeTS int64
}

// New builds an SVD Engine with fresh owned trackers.
func New(now time.Time) *Engine {
	return &Engine{
		cvd:            NewCVDCalculator(),
		phase:          NewPhaseTracker(now),
		spoof:          NewSpoofTracker(),
		bba:            NewBestBidAskMemory(),
		lastCVDTradeTS: -1,
	}
}

// Phase exposes the owned PhaseTracker for read-through.
func (e *Engine) Phase() *PhaseTracker { return e.phase }

// CVD exposes the owned CVDCalculator for read-through.
func (e *Engine) CVD() *CVDCalculator { return e.cvd }

// SpoofEvents exposes the confirmed spoof-event history.
func (e *Engine) SpoofEvents() []types.SpoofEvent { return e.spoof.Events() }

// Result bundles the SVD read for one tick.
type Result struct {
	Delta           float64
	Aggression      struct{ Buy, Sell float64 }
	Velocity        float64
	DOMRatio        float64
	DOMSide         DOMSide
	Thin            ThinZones
	SpoofPresent    bool
	SpoofConfirmed  bool
	SpoofCandidate  WallCandidate
	BidChasing      bool
	AskChasing      bool
	Buckets         BucketSummary
	FOMOPanic       FOMOPanic
	PathCost        PathCost
	Intent          types.Intent
	ReversalDetected bool
	Phase           types.Phase
	PhaseTransitioned bool
	PhaseConfidence float64
	CVDValue        float64
	CVDSlope        float64
	CVDDivergence   bool
	CVDConfirmsIntent bool
	IsPullbackOrBounce bool
	Absorbing       bool
	AbsorbingSide   types.Side
	Confidence      float64
}

// Analyze runs the full SVD pipeline for this tick.
func (e *Engine) Analyze(trades types.Trades, ob types.OrderBook, atrPercent float64, now time.Time) Result {
	var res Result

	res.Delta = delta(trades)
	normFactor := 0.5 / maxf(atrPercent, 0.1)
	normalizedDelta := res.Delta * normFactor

	res.Aggression.Buy, res.Aggression.Sell = aggression(trades)
	res.Velocity = velocity(trades)

	e.feedCVD(trades)
	res.CVDValue = e.cvd.Value()
	res.CVDSlope = e.cvd.Slope()

	recentPriceUp, haveTrend := recentPriceTrend(trades)
	res.CVDDivergence = e.cvd.Divergence(recentPriceUp, haveTrend)

	res.Absorbing, res.AbsorbingSide = detectAbsorption(trades, ob, atrPercent)

	res.DOMRatio, res.DOMSide = DOMImbalance(ob)
	res.Thin = DetectThinZones(ob)

	spoofCandidate := DetectSpoofWall(ob, currentPrice(trades, ob))
	res.SpoofCandidate = spoofCandidate
	res.SpoofPresent, res.SpoofConfirmed = e.spoof.Observe(spoofCandidate, currentPrice(trades, ob), now)

	if bb, okB := ob.BestBid(); okB {
		if ba, okA := ob.BestAsk(); okA {
			res.BidChasing, res.AskChasing = e.bba.Observe(bb.Price, ba.Price)
		}
	}

	res.Buckets = BuildBuckets(trades)
	res.FOMOPanic = DetectFOMOPanic(res.Buckets, maxInterTradePct(trades))

	res.PathCost = ComputePathCost(ob, currentPrice(trades, ob), res.Thin, atrPercent)

	res.Intent, res.ReversalDetected = resolveIntent(res, normalizedDelta)

	detectedPhase := detectPhase(res)
	res.PhaseConfidence, res.PhaseTransitioned = e.phase.Observe(detectedPhase, now)
	res.Phase = detectedPhase

	if detectedPhase == types.PhaseExecution {
		if res.CVDSlope > executionSlopeFloor {
			res.Intent = types.IntentAccumulating
		} else if res.CVDSlope < -executionSlopeFloor {
			res.Intent = types.IntentDistributing
		}
	}

	res.CVDConfirmsIntent, res.IsPullbackOrBounce = cvdConfirmation(res)

	res.Confidence = confidenceScore(res)

	return res
}

// feedCVD folds only the trades newer than lastCVDTradeTS into the
// cumulative CVD tracker, since trades is the full sliding window
// (spec §5), not a per-tick delta.
func (e *Engine) feedCVD(trades types.Trades) {
	for _, t := range trades {
		if t.Timestamp <= e.lastCVDTradeTS {
			continue
		}
		signed := t.Volume
		if t.Side == types.SideSell {
			signed = -signed
		}
		e.cvd.Add(signed, time.UnixMilli(t.Timestamp))
		e.lastCVDTradeTS = t.Timestamp
	}
}

func delta(trades types.Trades) float64 {
	var buy, sell float64
	for _, t := range trades {
		if t.Side == types.SideBuy {
			buy += t.Volume
		} else {
			sell += t.Volume
		}
	}
	return buy - sell
}

func aggression(trades types.Trades) (buy, sell float64) {
	for _, t := range trades {
		if t.Side == types.SideBuy {
			buy += t.Volume
		} else {
			sell += t.Volume
		}
	}
	return
}

func velocity(trades types.Trades) float64 {
	if len(trades) < 2 {
		return 0
	}
	spanMS := trades[len(trades)-1].Timestamp - trades[0].Timestamp
	if spanMS <= 0 {
		return 0
	}
	return float64(len(trades)) / (float64(spanMS) / 1000.0)
}

func currentPrice(trades types.Trades, ob types.OrderBook) float64 {
	if bb, ok := ob.BestBid(); ok {
		if ba, ok2 := ob.BestAsk(); ok2 {
			return (bb.Price + ba.Price) / 2
		}
	}
	if len(trades) > 0 {
		return trades[len(trades)-1].Price
	}
	return 0
}

func recentPriceTrend(trades types.Trades) (up bool, have bool) {
	n := len(trades)
	if n < 10 {
		return false, false
	}
	window := trades[n-10:]
	return window[len(window)-1].Price > window[0].Price, true
}

// detectAbsorption flags large passive liquidity soaking market orders
// without price moving (spec §4.5).
func detectAbsorption(trades types.Trades, ob types.OrderBook, atrPercent float64) (bool, types.Side) {
	n := len(trades)
	if n < 10 {
		return false, ""
	}
	window := trades[n-10:]

	priceChangePct := pctChange(window[0].Price, window[len(window)-1].Price)
	threshold := absorptionBaseThresholdPct + atrPercent/absorptionATRDivisor
	if priceChangePct >= threshold {
		return false, ""
	}

	buyVol, sellVol := aggression(window)

	if buyVol > absorptionVolumeMultiple*ob.AvgAsk && buyVol > sellVol {
		return true, types.SideBuy
	}
	if sellVol > absorptionVolumeMultiple*ob.AvgBid && sellVol > buyVol {
		return true, types.SideSell
	}
	return false, ""
}

func pctChange(a, b float64) float64 {
	if a == 0 {
		return 0
	}
	d := b - a
	if d < 0 {
		d = -d
	}
	return d / a * 100
}

func maxInterTradePct(trades types.Trades) float64 {
	maxMove := 0.0
	for i := 1; i < len(trades); i++ {
		prev := trades[i-1].Price
		if prev == 0 {
			continue
		}
		move := pctChange(prev, trades[i].Price)
		if move > maxMove {
			maxMove = move
		}
	}
	return maxMove
}

// resolveIntent implements the priority-ordered intent resolution from
// spec §4.5 (reversal > |CVD| dominant > slope dominant > snapshot delta
// plus aggression).
func resolveIntent(r Result, normalizedDelta float64) (types.Intent, bool) {
	absCVD := absf(r.CVDValue)

	if absCVD > reversalCVDFloor && absf(r.CVDSlope) > reversalSlopeFloor {
		if r.CVDValue < 0 && r.CVDSlope > reversalSlopeFloor {
			return types.IntentAccumulating, true
		}
		if r.CVDValue > 0 && r.CVDSlope < -reversalSlopeFloor {
			return types.IntentDistributing, true
		}
	}

	if absCVD > intentCVDFloor {
		if r.CVDValue > 0 {
			return types.IntentAccumulating, false
		}
		return types.IntentDistributing, false
	}

	if absf(r.CVDSlope) > intentSlopeFloor {
		if r.CVDSlope > 0 {
			return types.IntentAccumulating, false
		}
		return types.IntentDistributing, false
	}

	if normalizedDelta > 0 && r.Aggression.Buy > r.Aggression.Sell {
		return types.IntentAccumulating, false
	}
	if normalizedDelta < 0 && r.Aggression.Sell > r.Aggression.Buy {
		return types.IntentDistributing, false
	}
	return types.IntentNeutral, false
}

// detectPhase implements the priority-ordered phase detection from
// spec §4.5.
func detectPhase(r Result) types.Phase {
	if r.Absorbing || r.Velocity > velocityExecutionFloor {
		return types.PhaseExecution
	}
	if r.SpoofPresent || r.SpoofConfirmed {
		return types.PhaseManipulation
	}
	if r.Intent != types.IntentNeutral && domAligned(r.Intent, r.DOMSide) {
		return types.PhaseDistribution
	}
	return types.PhaseDiscovery
}

func domAligned(intent types.Intent, side DOMSide) bool {
	if intent == types.IntentAccumulating && side == DOMBid {
		return true
	}
	if intent == types.IntentDistributing && side == DOMAsk {
		return true
	}
	return false
}

// cvdConfirmation derives cvd_confirms_intent and is_pullback_or_bounce
// (spec §4.5).
func cvdConfirmation(r Result) (confirms, pullback bool) {
	switch r.Intent {
	case types.IntentAccumulating:
		confirms = r.CVDValue >= 0
	case types.IntentDistributing:
		confirms = r.CVDValue <= 0
	default:
		confirms = false
	}

	if !confirms && r.Intent != types.IntentNeutral {
		sameSign := (r.Intent == types.IntentAccumulating && r.CVDValue >= 0) ||
			(r.Intent == types.IntentDistributing && r.CVDValue <= 0)
		counterSlope := (r.Intent == types.IntentAccumulating && r.CVDSlope < 0) ||
			(r.Intent == types.IntentDistributing && r.CVDSlope > 0)
		pullback = sameSign && counterSlope
	}
	return
}

// confidenceScore builds the 0-10 SVD confidence from graduated
// contributions (spec §4.5).
func confidenceScore(r Result) float64 {
	score := 0.0

	score += minf(absf(r.Delta)/100*2, 2)

	if r.Absorbing {
		score += 3
	}

	totalAgg := r.Aggression.Buy + r.Aggression.Sell
	if totalAgg > 0 {
		imbalance := absf(r.Aggression.Buy-r.Aggression.Sell) / totalAgg
		score += imbalance * 2
	}

	if r.Velocity > velocityExecutionFloor {
		score += 1
	} else if r.Velocity > velocityExecutionFloor/2 {
		score += 0.5
	}

	switch r.DOMSide {
	case DOMBid, DOMAsk:
		score += minf(absf(r.DOMRatio-1)*1.5, 1.5)
	}

	if r.Buckets.LastDelta != 0 {
		score += minf(absf(r.Buckets.LastDelta)/50, 1)
	}
	if r.Buckets.LastVelocity > r.Buckets.MeanVelocity {
		score += 0.5
	}

	return clamp(score, 0, 10)
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
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
