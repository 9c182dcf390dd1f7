package svd

import (
	"github.com/marketpulse/corelens/internal/types"
)

// bucketWindowMS is the trade-bucket width (spec §4.5: 5s).
const bucketWindowMS = 5000

// TradeBucket summarizes one time window of the trade tape.
type TradeBucket struct {
	StartMS  int64
	Delta    float64
	BuyVol   float64
	SellVol  float64
	Velocity float64 // trades per second within the bucket
}

// BucketSummary aggregates the bucketed view for this tick.
type BucketSummary struct {
	Buckets        []TradeBucket
	LastDelta      float64
	LastVelocity   float64
	MeanVelocity   float64
	PosStreak      int
	NegStreak      int
}

// BuildBuckets groups trades into bucketWindowMS windows and derives the
// streak/mean-velocity summary (spec §4.5).
func BuildBuckets(trades types.Trades) BucketSummary {
	if len(trades) == 0 {
		return BucketSummary{}
	}

	var buckets []TradeBucket
	var cur *TradeBucket
	var curStart int64 = -1

	for _, t := range trades {
		bucketStart := (t.Timestamp / bucketWindowMS) * bucketWindowMS
		if cur == nil || bucketStart != curStart {
			buckets = append(buckets, TradeBucket{StartMS: bucketStart})
			cur = &buckets[len(buckets)-1]
			curStart = bucketStart
		}
		cur.Velocity++
		if t.Side == types.SideBuy {
			cur.BuyVol += t.Volume
			cur.Delta += t.Volume
		} else {
			cur.SellVol += t.Volume
			cur.Delta -= t.Volume
		}
	}
	for i := range buckets {
		buckets[i].Velocity /= bucketWindowMS / 1000.0
	}

	summary := BucketSummary{Buckets: buckets}
	if len(buckets) > 0 {
		last := buckets[len(buckets)-1]
		summary.LastDelta = last.Delta
		summary.LastVelocity = last.Velocity
	}

	totalVel := 0.0
	for _, b := range buckets {
		totalVel += b.Velocity
	}
	if len(buckets) > 0 {
		summary.MeanVelocity = totalVel / float64(len(buckets))
	}

	summary.PosStreak = streak(buckets, true)
	summary.NegStreak = streak(buckets, false)

	return summary
}

func streak(buckets []TradeBucket, positive bool) int {
	count := 0
	for i := len(buckets) - 1; i >= 0; i-- {
		d := buckets[i].Delta
		if (positive && d > 0) || (!positive && d < 0) {
			count++
		} else {
			break
		}
	}
	return count
}

// FOMOPanic carries the crowd-behavior flags (spec §4.5).
type FOMOPanic struct {
	FOMO       bool
	FOMOStrong bool
	Panic      bool
	PanicStrong bool
}

// DetectFOMOPanic applies the FOMO/panic rules from spec §4.5 given the
// bucket summary and the largest inter-trade price move observed.
func DetectFOMOPanic(summary BucketSummary, maxInterTradeMovePct float64) FOMOPanic {
	var fp FOMOPanic

	fomoVelocityOK := summary.LastVelocity > maxf(summary.MeanVelocity*1.1, 5)
	if (summary.LastDelta > 0 || summary.PosStreak >= 2) && fomoVelocityOK {
		fp.FOMO = true
		strongVelocityOK := summary.LastVelocity > maxf(summary.MeanVelocity*1.5, 8)
		if (summary.PosStreak >= 3 && strongVelocityOK) || maxInterTradeMovePct > 0.25 {
			fp.FOMOStrong = true
		}
	}

	panicVelocityOK := summary.LastVelocity > maxf(summary.MeanVelocity*1.1, 5)
	if (summary.LastDelta < 0 || summary.NegStreak >= 2) && panicVelocityOK {
		fp.Panic = true
		strongVelocityOK := summary.LastVelocity > maxf(summary.MeanVelocity*1.5, 8)
		if (summary.NegStreak >= 3 && strongVelocityOK) || maxInterTradeMovePct > 0.25 {
			fp.PanicStrong = true
		}
	}

	return fp
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
