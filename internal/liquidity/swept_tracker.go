package liquidity

import (
	"math"
	"sync"
	"time"

	"github.com/marketpulse/corelens/internal/types"
)

// dedupWindowProximityPct is the proximity tolerance (0.1%) used to
// treat two sweeps as "the same level" for dedup purposes (spec §4.4).
const dedupWindowProximityPct = 0.1

// sameCycleWindow is the window within which repeated marks of the same
// level do not increment Count (spec §3 SweptRecord lifecycle).
const sameCycleWindow = 60 * time.Second

// SweptLevelsTracker is process-lifetime state owned exclusively by the
// LiquidityEngine (spec §3 Ownership, §4.4). Safe for concurrent use
// since the pipeline borrows engine instances single-threaded per tick,
// but the mutex keeps it honest against any future concurrent caller.
type SweptLevelsTracker struct {
	mu      sync.Mutex
	records []types.SweptRecord
	expiry  time.Duration
}

// NewSweptLevelsTracker builds a tracker with the given expiry window.
func NewSweptLevelsTracker(expiry time.Duration) *SweptLevelsTracker {
	if expiry <= 0 {
		expiry = 24 * time.Hour
	}
	return &SweptLevelsTracker{expiry: expiry}
}

// MarkAsSwept records a sweep at price/direction/reason as of now. If an
// existing record within 0.1% proximity was last counted within the last
// 60 seconds, the record is left unchanged (dedup); otherwise Count
// increments (or a new record is created).
func (t *SweptLevelsTracker) MarkAsSwept(price float64, dir types.SweepDirection, reason string, now time.Time, candlesAgo int, hasCandlesAgo bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.expireLocked(now)

	for i := range t.records {
		r := &t.records[i]
		if r.Direction != dir || !withinProximity(r.Price, price, dedupWindowProximityPct) {
			continue
		}
		if now.Sub(r.LastSeen) < sameCycleWindow {
			// Same-cycle dedup: LastSeen stays at the last counted mark,
			// so the 60s window is not extended by repeated marks.
			return
		}
		r.Count++
		r.LastSeen = now
		r.Reason = reason
		if hasCandlesAgo {
			r.CandlesAgo = candlesAgo
			r.HasCandlesAgo = true
		}
		return
	}

	rec := types.SweptRecord{
		Price:     price,
		Direction: dir,
		Reason:    reason,
		FirstSeen: now,
		LastSeen:  now,
		Count:     1,
	}
	if hasCandlesAgo {
		rec.CandlesAgo = candlesAgo
		rec.HasCandlesAgo = true
	}
	t.records = append(t.records, rec)
}

// IsSwept reports whether price is within tolPct of any tracked sweep.
func (t *SweptLevelsTracker) IsSwept(price float64, tolPct float64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, r := range t.records {
		if withinProximity(r.Price, price, tolPct) {
			return true
		}
	}
	return false
}

// FilterSweptLevels removes any liquidity level within 0.5% of a tracked
// sweep, used by the LiquidityEngine to exclude swept levels from target
// selection (spec §8 invariant 12, §4.7 level computation).
func (t *SweptLevelsTracker) FilterSweptLevels(levels []types.LiquidityLevel) []types.LiquidityLevel {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]types.LiquidityLevel, 0, len(levels))
	for _, l := range levels {
		swept := false
		for _, r := range t.records {
			if withinProximity(r.Price, l.Price, 0.5) {
				swept = true
				break
			}
		}
		if !swept {
			out = append(out, l)
		}
	}
	return out
}

// Snapshot returns a copy of all currently tracked records (read-through,
// per spec §3 Ownership — callers never mutate tracker state directly).
func (t *SweptLevelsTracker) Snapshot() []types.SweptRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]types.SweptRecord, len(t.records))
	copy(out, t.records)
	return out
}

func (t *SweptLevelsTracker) expireLocked(now time.Time) {
	kept := t.records[:0]
	for _, r := range t.records {
		if now.Sub(r.LastSeen) <= t.expiry {
			kept = append(kept, r)
		}
	}
	t.records = kept
}

func withinProximity(a, b, tolPct float64) bool {
	if a == 0 {
		return b == 0
	}
	diff := math.Abs(a-b) / math.Abs(a) * 100
	return diff <= tolPct
}
