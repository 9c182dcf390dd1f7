// Package pipeline implements the per-tick Supervisor (spec §2, §5): a
// tiny state machine composing the analytical engines in sequence
// (quality -> structure -> technical -> liquidity -> svd -> trap ->
// decision -> alert), aborting below the data-quality floor, containing
// per-engine failures, and driving everything off a periodic ticker.
package pipeline

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/marketpulse/corelens/internal/alert"
	"github.com/marketpulse/corelens/internal/config"
	"github.com/marketpulse/corelens/internal/decision"
	"github.com/marketpulse/corelens/internal/feed"
	"github.com/marketpulse/corelens/internal/httpapi"
	"github.com/marketpulse/corelens/internal/liquidity"
	"github.com/marketpulse/corelens/internal/metrics"
	"github.com/marketpulse/corelens/internal/quality"
	"github.com/marketpulse/corelens/internal/structure"
	"github.com/marketpulse/corelens/internal/svd"
	"github.com/marketpulse/corelens/internal/technical"
	"github.com/marketpulse/corelens/internal/trap"
	"github.com/marketpulse/corelens/internal/types"
)

// Supervisor owns one instance of every long-lived engine and runs the
// composed pipeline once per tick interval. Engine instances are
// created once at start-up and borrowed by every tick (spec §9).
type Supervisor struct {
	cfg config.Config

	source feed.Source

	quality   *quality.Validator
	structure *structure.Engine
	technical *technical.Engine
	liquidity *liquidity.Engine
	svd       *svd.Engine
	trap      *trap.Engine
	decision  *decision.Engine
	alert     *alert.Manager

	signals chan types.SignalRecord
	alerts  chan types.AlertRecord

	mu           sync.Mutex
	lastSignal   types.SignalRecord
	lastTickAt   time.Time
	ticksRun     int64
	ticksAborted int64
	lastAbort    string
}

// New builds a Supervisor with fresh, process-lifetime engine instances.
func New(cfg config.Config, source feed.Source, now time.Time) *Supervisor {
	return &Supervisor{
		cfg:       cfg,
		source:    source,
		quality:   quality.New(cfg),
		structure: structure.New(structure.DefaultConfig()),
		technical: technical.New(technical.DefaultConfig()),
		liquidity: liquidity.New(liquidity.DefaultConfig(), cfg.SweptLevelExpiry()),
		svd:       svd.New(now),
		trap:      trap.New(cfg.TrapScoreThreshold),
		decision:  decision.New(),
		alert:     alert.New(),
		signals:   make(chan types.SignalRecord, 8),
		alerts:    make(chan types.AlertRecord, 32),
	}
}

// Signals exposes the outbound signal channel (spec §6: WAIT is computed
// internally but never forwarded here).
func (s *Supervisor) Signals() <-chan types.SignalRecord { return s.signals }

// Alerts exposes the outbound alert channel, independent of the signal
// channel (spec §7: "Alerts are independent of the signal channel").
func (s *Supervisor) Alerts() <-chan types.AlertRecord { return s.alerts }

// Run drives the ticker until ctx is cancelled. A tick still in flight
// when the next one is due is skipped, never queued (spec §5).
func (s *Supervisor) Run(ctx context.Context) {
	interval := s.cfg.AnalysisInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var running sync.Mutex

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if !running.TryLock() {
				log.Warn().Msg("tick skipped: previous tick still running")
				continue
			}
			go func(ts time.Time) {
				defer running.Unlock()
				s.tick(ctx, ts)
			}(now)
		}
	}
}

// RunOnce executes a single synchronous pipeline pass, bypassing the
// ticker and skip-don't-queue guard. Used by the `tick` CLI subcommand
// to replay a recorded feed snapshot without a live ticker.
func (s *Supervisor) RunOnce(ctx context.Context, now time.Time) {
	s.tick(ctx, now)
}

// tick runs exactly one pass of the composed pipeline.
func (s *Supervisor) tick(ctx context.Context, now time.Time) {
	defer func(start time.Time) {
		metrics.TickDuration.Observe(time.Since(start).Seconds())
	}(now)

	metrics.TicksRun.Inc()

	ohlcv, _, err := s.source.FetchOHLCV(ctx, "5m", s.cfg.MinOHLCVCandles)
	if err != nil {
		s.abort(now, "ohlcv_fetch_failed")
		return
	}
	ob, haveBook := s.source.GetOrderBookSnapshot()
	trades := s.source.GetTradesSnapshot()

	var obPtr *types.OrderBook
	if haveBook {
		obPtr = &ob
	}

	qr := s.quality.Validate(ohlcv, obPtr, trades, now)
	metrics.DataQuality.Set(qr.Overall)
	if s.quality.Abort(qr) {
		s.abort(now, classifyQualityFailure(qr).Error())
		return
	}

	structureResult := s.safeStructure(ohlcv)
	technicalResult := s.safeTechnical(ohlcv)
	liquidityResult := s.safeLiquidity(ohlcv, structureResult.Swings, now)

	currentBook := ob
	if !haveBook {
		currentBook = types.OrderBook{}
	}
	svdResult := s.safeSVD(trades, currentBook, technicalResult.ATRPercent, now)

	currentPrice, _ := lastClose(ohlcv)

	htf := s.htfContext(ctx)

	trapReport := s.trap.Score(trap.Inputs{
		FOMO:           svdResult.FOMOPanic.FOMO,
		Panic:          svdResult.FOMOPanic.Panic,
		Intent:         svdResult.Intent,
		LiquidityUp:    liquidityResult.Direction == liquidity.DirectionUp,
		LiquidityDown:  liquidityResult.Direction == liquidity.DirectionDown,
		CVDDivergence:  svdResult.CVDDivergence,
		CVDSlope:       svdResult.CVDSlope,
		SpoofConfirmed: svdResult.SpoofConfirmed,
		SpoofSide:      svdResult.SpoofCandidate.Side,
		Absorbing:      svdResult.Absorbing,
		AbsorbingSide:  svdResult.AbsorbingSide,
		Phase:          svdResult.Phase,
		DOMSide:        string(svdResult.DOMSide),
		SweepUp:        liquidityResult.LiveSweep.BullTrap,
		SweepDown:      liquidityResult.LiveSweep.BearTrap,
		ThinAbove:      svdResult.Thin.ThinAbove,
		ThinBelow:      svdResult.Thin.ThinBelow,
	})

	breakoutStrong, breakoutWeak := breakoutAgainstNearestLevel(ohlcv, liquidityResult, currentPrice)

	in := decision.Inputs{
		StructureTrend:      string(structureResult.Trend),
		TechnicalTrend:      string(technicalResult.Trend),
		RSI:                 technicalResult.RSI,
		LiquidityDirection:  string(liquidityResult.Direction),
		LiquidityLevels:     liquidityResult.Levels,
		Swings:              structureResult.Swings,
		CurrentPrice:        currentPrice,
		SVDIntent:           svdResult.Intent,
		SVDConfidence:       svdResult.Confidence,
		SVDConfirmsIntent:   svdResult.CVDConfirmsIntent,
		CVDDivergence:       svdResult.CVDDivergence,
		CVDReversalDetected: svdResult.ReversalDetected,
		IsPullbackOrBounce:  svdResult.IsPullbackOrBounce,
		Phase:               svdResult.Phase,
		DOMSide:             string(svdResult.DOMSide),
		ThinAbove:           svdResult.Thin.ThinAbove,
		ThinBelow:           svdResult.Thin.ThinBelow,
		SpoofConfirmed:      svdResult.SpoofConfirmed,
		SpoofAligned:        spoofAligned(svdResult),
		FOMO:                svdResult.FOMOPanic.FOMO,
		FOMOStrong:          svdResult.FOMOPanic.FOMOStrong,
		Panic:               svdResult.FOMOPanic.Panic,
		PanicStrong:         svdResult.FOMOPanic.PanicStrong,
		SweepUpAligned:      liquidityResult.LiveSweep.BullTrap,
		SweepDownAligned:    liquidityResult.LiveSweep.BearTrap,
		LiquidityHit:        len(liquidityResult.Touched) > 0,
		PostReversal:        liquidityResult.LiveSweep.PostReversal,
		BreakoutStrongAligned: breakoutStrong,
		BreakoutWeakAligned:   breakoutWeak,
		PathCostUp:          svdResult.PathCost.Up,
		PathCostDown:        svdResult.PathCost.Down,
		VolumeProfilePosition: liquidityResult.VolumeProfile.Position,
		VolumeProfilePoCRole:  liquidityResult.VolumeProfile.PoCRole,
		DataQualityOverall:  qr.Overall,
		HTF:                 htf,
		TrapReport:          trapReport,
		ExecutionOnlySignals:      s.cfg.ExecutionOnlySignals,
		CriticalConflictThreshold: s.cfg.CriticalConflictThreshold,
	}

	signal := s.decision.Decide(in, s.liquidity.Swept())
	signal.Timestamp = now

	metrics.SetPhase(string(svdResult.Phase))

	fired := s.alert.Tick(now, svdResult.Phase, svdResult.Intent, svdResult.ReversalDetected, signal)
	for _, a := range fired {
		metrics.AlertsEmitted.WithLabelValues(string(a.Type)).Inc()
		select {
		case s.alerts <- a:
		default:
			log.Warn().Str("type", string(a.Type)).Msg("alert channel full, dropping")
		}
	}

	s.mu.Lock()
	s.lastSignal = signal
	s.lastTickAt = now
	s.ticksRun++
	s.mu.Unlock()

	if signal.Direction == types.Wait {
		return
	}
	if signal.Confidence < s.cfg.MinConfidenceToTrade {
		return
	}
	select {
	case s.signals <- signal:
	default:
		log.Warn().Msg("signal channel full, dropping")
	}
}

// breakoutAgainstNearestLevel runs spec §4.4's breakout detector against
// the nearest liquidity level already behind price on the side the
// liquidity engine's own directional hint favors — the closest proxy
// available for "the voted direction's nearest level" before
// DecisionEngine's vote runs, and the correct side for a breakout
// check: a level price has already crossed, not one still ahead.
func breakoutAgainstNearestLevel(ohlcv types.OHLCV, lr liquidity.Result, currentPrice float64) (strong, weak bool) {
	if lr.Direction == liquidity.DirectionNeutral {
		return false, false
	}
	above := lr.Direction == liquidity.DirectionUp

	level, ok := nearestBrokenLevel(lr.Levels, currentPrice, above)
	if !ok {
		return false, false
	}

	switch liquidity.DetectBreakout(ohlcv, level, above) {
	case liquidity.BreakoutStrong:
		return true, false
	case liquidity.BreakoutWeak:
		return false, true
	default:
		return false, false
	}
}

// nearestBrokenLevel finds the nearest liquidity level on wantSide that
// current price has already moved past (above it for an upward
// breakout, below it for a downward one).
func nearestBrokenLevel(levels []types.LiquidityLevel, currentPrice float64, above bool) (float64, bool) {
	wantSide := types.BuyStops
	if !above {
		wantSide = types.SellStops
	}

	dist := func(price float64) float64 {
		if above {
			return currentPrice - price
		}
		return price - currentPrice
	}

	best, found := 0.0, false
	for _, l := range levels {
		if l.Side != wantSide || dist(l.Price) <= 0 {
			continue
		}
		if !found || dist(l.Price) < dist(best) {
			best, found = l.Price, true
		}
	}
	return best, found
}

func spoofAligned(r svd.Result) bool {
	if !r.SpoofConfirmed {
		return false
	}
	return (r.SpoofCandidate.Side == types.SideBuy && r.Intent == types.IntentAccumulating) ||
		(r.SpoofCandidate.Side == types.SideSell && r.Intent == types.IntentDistributing)
}

func (s *Supervisor) htfContext(ctx context.Context) decision.HTFContext {
	candles, err := s.source.FetchHTFCandles(ctx, s.cfg.HTF1Interval, s.cfg.HTFLimit)
	if err != nil || len(candles) == 0 {
		return decision.HTFContext{}
	}
	r := s.structure.Analyze(candles)
	return decision.HTFContext{Valid: true, Trend: string(r.Trend)}
}

func (s *Supervisor) safeStructure(ohlcv types.OHLCV) (res structure.Result) {
	defer s.recoverEngine("structure")
	return s.structure.Analyze(ohlcv)
}

func (s *Supervisor) safeTechnical(ohlcv types.OHLCV) (res technical.Result) {
	defer s.recoverEngine("technical")
	return s.technical.Analyze(ohlcv)
}

func (s *Supervisor) safeLiquidity(ohlcv types.OHLCV, swings []types.SwingPoint, now time.Time) (res liquidity.Result) {
	defer s.recoverEngine("liquidity")
	return s.liquidity.Analyze(ohlcv, swings, now)
}

func (s *Supervisor) safeSVD(trades types.Trades, ob types.OrderBook, atrPercent float64, now time.Time) (res svd.Result) {
	defer s.recoverEngine("svd")
	return s.svd.Analyze(trades, ob, atrPercent, now)
}

// recoverEngine contains a panicking engine at the supervisor boundary,
// incrementing the engine-failure counter rather than crashing the
// process (spec §7: "every engine returns a structured result ... only
// explicit exceptions are contained one level above"). The caller's
// named return stays at its zero value when a panic is recovered here.
func (s *Supervisor) recoverEngine(name string) {
	if r := recover(); r != nil {
		metrics.EngineFailures.WithLabelValues(name).Inc()
		log.Error().Str("engine", name).Interface("panic", r).Msg("engine failure contained")
	}
}

func (s *Supervisor) abort(now time.Time, cause string) {
	metrics.TicksAborted.WithLabelValues(cause).Inc()
	s.mu.Lock()
	s.ticksAborted++
	s.lastAbort = cause
	s.lastTickAt = now
	s.mu.Unlock()
	log.Warn().Str("cause", cause).Msg("tick aborted")
}

// Health implements httpapi.HealthSource.
func (s *Supervisor) Health() httpapi.HealthSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return httpapi.HealthSnapshot{
		LastTickAt:     s.lastTickAt,
		LastSignal:     s.lastSignal.Direction,
		TicksRun:       s.ticksRun,
		TicksAborted:   s.ticksAborted,
		LastAbortCause: s.lastAbort,
	}
}

// classifyQualityFailure maps the validator's deduction reasons onto
// spec §7's error taxonomy for the abort cause recorded against a tick.
func classifyQualityFailure(qr quality.Result) error {
	for _, d := range qr.Deductions {
		if strings.Contains(d, "missing") {
			return ErrDataUnavailable
		}
	}
	for _, d := range qr.Deductions {
		if strings.Contains(d, "stale") {
			return ErrDataStale
		}
	}
	return ErrDataShallow
}

func lastClose(ohlcv types.OHLCV) (float64, bool) {
	c, ok := ohlcv.Last()
	if !ok {
		return 0, false
	}
	return c.Close, true
}
