package liquidity

import (
	"sort"

	"github.com/marketpulse/corelens/internal/types"
)

const volumeProfileBuckets = 50
const valueAreaCoverage = 0.70

// PoCRole describes the point-of-control's relation to current price.
type PoCRole string

const (
	PoCMagnet     PoCRole = "magnet"
	PoCSupport    PoCRole = "support"
	PoCResistance PoCRole = "resistance"
)

// PricePosition classifies current price relative to the value area.
type PricePosition string

const (
	AboveVAH PricePosition = "above_vah"
	InsideVA PricePosition = "inside_va"
	BelowVAL PricePosition = "below_val"
)

// VolumeProfile is the binned-volume read over the analysis window.
type VolumeProfile struct {
	PoC      float64
	VAL      float64
	VAH      float64
	Position PricePosition
	PoCRole  PoCRole
}

// BuildVolumeProfile bins ohlcv into volumeProfileBuckets price buckets,
// distributing each bar's volume proportionally to its overlap with
// each bucket, then derives PoC/VAL/VAH and the current-price read
// (spec §4.4).
func BuildVolumeProfile(ohlcv types.OHLCV, currentPrice float64) VolumeProfile {
	if len(ohlcv) == 0 {
		return VolumeProfile{}
	}

	lo, hi := ohlcv[0].Low, ohlcv[0].High
	for _, c := range ohlcv {
		if c.Low < lo {
			lo = c.Low
		}
		if c.High > hi {
			hi = c.High
		}
	}
	if hi <= lo {
		return VolumeProfile{PoC: currentPrice, VAL: currentPrice, VAH: currentPrice}
	}

	bucketWidth := (hi - lo) / volumeProfileBuckets
	volumes := make([]float64, volumeProfileBuckets)

	for _, c := range ohlcv {
		barLo, barHi := c.Low, c.High
		if barHi <= barLo {
			continue
		}
		for b := 0; b < volumeProfileBuckets; b++ {
			bLo := lo + float64(b)*bucketWidth
			bHi := bLo + bucketWidth
			overlap := overlapWidth(barLo, barHi, bLo, bHi)
			if overlap <= 0 {
				continue
			}
			frac := overlap / (barHi - barLo)
			volumes[b] += c.Volume * frac
		}
	}

	pocIdx := 0
	total := 0.0
	for i, v := range volumes {
		total += v
		if v > volumes[pocIdx] {
			pocIdx = i
		}
	}

	valIdx, vahIdx := valueArea(volumes, pocIdx, total)

	poc := bucketCenter(lo, bucketWidth, pocIdx)
	val := lo + float64(valIdx)*bucketWidth
	vah := lo + float64(vahIdx+1)*bucketWidth

	vp := VolumeProfile{PoC: poc, VAL: val, VAH: vah}

	switch {
	case currentPrice > vah:
		vp.Position = AboveVAH
	case currentPrice < val:
		vp.Position = BelowVAL
	default:
		vp.Position = InsideVA
	}

	switch {
	case withinProximity(poc, currentPrice, 0.5):
		vp.PoCRole = PoCMagnet
	case currentPrice > poc:
		vp.PoCRole = PoCSupport
	default:
		vp.PoCRole = PoCResistance
	}

	return vp
}

func bucketCenter(lo, width float64, idx int) float64 {
	return lo + width*(float64(idx)+0.5)
}

func overlapWidth(aLo, aHi, bLo, bHi float64) float64 {
	lo := aLo
	if bLo > lo {
		lo = bLo
	}
	hi := aHi
	if bHi < hi {
		hi = bHi
	}
	if hi <= lo {
		return 0
	}
	return hi - lo
}

// valueArea takes buckets in descending volume order until they cover
// valueAreaCoverage of total volume, and returns the min/max bucket
// index in that set. The chosen buckets need not be adjacent.
func valueArea(volumes []float64, pocIdx int, total float64) (minIdx, maxIdx int) {
	if total <= 0 {
		return pocIdx, pocIdx
	}

	type entry struct {
		idx int
		vol float64
	}
	ranked := make([]entry, len(volumes))
	for i, v := range volumes {
		ranked[i] = entry{i, v}
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].vol > ranked[j].vol })

	covered := 0.0
	included := make(map[int]bool)
	for _, e := range ranked {
		if covered >= valueAreaCoverage*total {
			break
		}
		included[e.idx] = true
		covered += e.vol
	}

	minIdx, maxIdx = pocIdx, pocIdx
	first := true
	for idx := range included {
		if first {
			minIdx, maxIdx = idx, idx
			first = false
			continue
		}
		if idx < minIdx {
			minIdx = idx
		}
		if idx > maxIdx {
			maxIdx = idx
		}
	}
	return minIdx, maxIdx
}
