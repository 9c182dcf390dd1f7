// Package quality implements the DataQualityValidator (spec §4.1):
// per-feed sub-scores blended into an overall score that gates whether
// the pipeline proceeds with a tick.
package quality

import (
	"math"
	"sort"
	"time"

	"github.com/marketpulse/corelens/internal/config"
	"github.com/marketpulse/corelens/internal/types"
)

// Result is the validator's verdict for one tick.
type Result struct {
	OHLCVScore     float64
	OrderBookScore float64
	TradesScore    float64
	Overall        float64

	OHLCVValid     bool
	OrderBookValid bool
	TradesValid    bool

	Deductions []string
}

const invalidFloor = 0.3

// Validator scores the three inbound feeds and blends them.
type Validator struct {
	cfg config.Config
}

// New builds a Validator bound to the given configuration.
func New(cfg config.Config) *Validator {
	return &Validator{cfg: cfg}
}

// Validate scores ohlcv, orderbook (nil if absent) and trades against
// the configured floors, as of "now".
func (v *Validator) Validate(ohlcv types.OHLCV, ob *types.OrderBook, trades types.Trades, now time.Time) Result {
	var res Result

	res.OHLCVScore, _ = v.scoreOHLCV(ohlcv, now, &res.Deductions)
	res.OHLCVValid = res.OHLCVScore >= invalidFloor

	if ob == nil {
		res.OrderBookScore = 0
		res.Deductions = append(res.Deductions, "orderbook missing")
	} else {
		res.OrderBookScore, _ = v.scoreOrderBook(*ob, now, &res.Deductions)
	}
	res.OrderBookValid = res.OrderBookScore >= invalidFloor
	if ob != nil && ob.Crossed() {
		res.OrderBookValid = false
	}

	res.TradesScore, _ = v.scoreTrades(trades, now, &res.Deductions)
	res.TradesValid = res.TradesScore >= invalidFloor

	res.Overall = 0.3*res.OHLCVScore + 0.4*res.OrderBookScore + 0.3*res.TradesScore
	return res
}

// Abort reports whether the tick should be aborted given this result.
func (v *Validator) Abort(r Result) bool {
	return r.Overall < v.cfg.MinDataQuality
}

func (v *Validator) scoreOHLCV(ohlcv types.OHLCV, now time.Time, deductions *[]string) (float64, bool) {
	score := 1.0

	if len(ohlcv) < v.cfg.MinOHLCVCandles {
		score -= 0.3
		*deductions = append(*deductions, "ohlcv count below floor")
	}

	if last, ok := ohlcv.Last(); ok {
		age := now.Sub(time.UnixMilli(last.Timestamp))
		if age > time.Duration(v.cfg.MaxAgeOHLCVSeconds)*time.Second {
			score -= 0.4
			*deductions = append(*deductions, "ohlcv stale")
		}
	}

	if gapsExceedMedian(ohlcv) {
		score -= 0.1
		*deductions = append(*deductions, "ohlcv timestamp gaps")
	}

	for _, c := range ohlcv {
		if c.Open <= 0 || c.High <= 0 || c.Low <= 0 || c.Close <= 0 {
			score -= 0.2
			*deductions = append(*deductions, "ohlcv non-positive price")
			break
		}
	}

	return clamp01(score), score >= invalidFloor
}

func gapsExceedMedian(ohlcv types.OHLCV) bool {
	if len(ohlcv) < 3 {
		return false
	}
	diffs := make([]int64, 0, len(ohlcv)-1)
	for i := 1; i < len(ohlcv); i++ {
		diffs = append(diffs, ohlcv[i].Timestamp-ohlcv[i-1].Timestamp)
	}
	sorted := append([]int64(nil), diffs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	median := sorted[len(sorted)/2]
	if median <= 0 {
		return false
	}
	for _, d := range diffs {
		if d > 2*median {
			return true
		}
	}
	return false
}

func (v *Validator) scoreOrderBook(ob types.OrderBook, now time.Time, deductions *[]string) (float64, bool) {
	score := 1.0

	if len(ob.Bids) < v.cfg.MinOrderbookLevels || len(ob.Asks) < v.cfg.MinOrderbookLevels {
		score -= 0.2
		*deductions = append(*deductions, "orderbook depth below floor")
	}

	if !ob.Timestamp.IsZero() {
		age := now.Sub(ob.Timestamp)
		if age > time.Duration(v.cfg.MaxAgeOrderbookSeconds)*time.Second {
			score -= 0.5
			*deductions = append(*deductions, "orderbook stale")
		}
	}

	if ob.Crossed() {
		score -= 0.3
		*deductions = append(*deductions, "orderbook crossed")
	}

	for _, l := range append(append([]types.OrderLevel{}, ob.Bids...), ob.Asks...) {
		if l.Size == 0 {
			score -= 0.1
			*deductions = append(*deductions, "orderbook zero volume")
			break
		}
	}

	return clamp01(score), score >= invalidFloor
}

func (v *Validator) scoreTrades(trades types.Trades, now time.Time, deductions *[]string) (float64, bool) {
	score := 1.0

	if len(trades) < v.cfg.MinTradesCount {
		score -= 0.3
		*deductions = append(*deductions, "trades count below floor")
	}

	if len(trades) > 0 {
		last := trades[len(trades)-1]
		age := now.Sub(time.UnixMilli(last.Timestamp))
		if age > time.Duration(v.cfg.MaxAgeTradesSeconds)*time.Second {
			score -= 0.4
			*deductions = append(*deductions, "trades stale")
		}
	}

	invalidCount := 0
	for _, t := range trades {
		if t.Price <= 0 || t.Volume <= 0 {
			invalidCount++
		}
	}
	if invalidCount > 0 && len(trades) > 0 {
		ratio := float64(invalidCount) / float64(len(trades))
		penalty := math.Min(0.3, ratio*0.3*float64(len(trades)))
		if penalty > 0.3 {
			penalty = 0.3
		}
		score -= penalty
		*deductions = append(*deductions, "trades invalid price/volume")
	}

	return clamp01(score), score >= invalidFloor
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
