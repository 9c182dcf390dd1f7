package svd

import (
	"sync"
	"time"

	"github.com/marketpulse/corelens/internal/types"
)

// spoofEventsCapacity bounds the confirmed spoof-event deque (spec §3: 20).
const spoofEventsCapacity = 20

// spoofWallTopLevels is how many top DOM levels the spoof scan covers.
const spoofWallTopLevels = 10

// spoofProximityPct is how close to current price a wall must sit.
const spoofProximityPct = 0.2

// spoofSizeMultiple is how many times the side-average a wall must be.
const spoofSizeMultiple = 4.0

// spoofConfirmMaxLifetime / spoofConfirmMaxMove are the confirmation
// thresholds for a vanished wall (spec §4.5).
const spoofConfirmMaxLifetime = 15 * time.Second
const spoofConfirmMaxMovePct = 0.15

// WallCandidate is the current tick's detected spoof-wall candidate.
type WallCandidate struct {
	Present bool
	Side    types.Side
	Price   float64
}

// DetectSpoofWall finds, over the top spoofWallTopLevels of each side,
// the largest level within spoofProximityPct of current price whose
// size exceeds spoofSizeMultiple times that side's average (spec §4.5).
func DetectSpoofWall(ob types.OrderBook, currentPrice float64) WallCandidate {
	bidWall, bidFound := largestOutsized(ob.Bids, ob.AvgBid, currentPrice)
	askWall, askFound := largestOutsized(ob.Asks, ob.AvgAsk, currentPrice)

	switch {
	case bidFound && askFound:
		if bidWall.Size >= askWall.Size {
			return WallCandidate{Present: true, Side: types.SideBuy, Price: bidWall.Price}
		}
		return WallCandidate{Present: true, Side: types.SideSell, Price: askWall.Price}
	case bidFound:
		return WallCandidate{Present: true, Side: types.SideBuy, Price: bidWall.Price}
	case askFound:
		return WallCandidate{Present: true, Side: types.SideSell, Price: askWall.Price}
	default:
		return WallCandidate{}
	}
}

func largestOutsized(levels []types.OrderLevel, avg, currentPrice float64) (types.OrderLevel, bool) {
	top := levels
	if len(top) > spoofWallTopLevels {
		top = top[:spoofWallTopLevels]
	}
	var best types.OrderLevel
	found := false
	for _, l := range top {
		if avg <= 0 || l.Size <= spoofSizeMultiple*avg {
			continue
		}
		if !withinPct(l.Price, currentPrice, spoofProximityPct) {
			continue
		}
		if !found || l.Size > best.Size {
			best = l
			found = true
		}
	}
	return best, found
}

func withinPct(a, b, tolPct float64) bool {
	if b == 0 {
		return a == 0
	}
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff/b*100 <= tolPct
}

// wallMemory is the single remembered wall between ticks.
type wallMemory struct {
	side    types.Side
	price   float64
	tsStart time.Time
	tsLast  time.Time
	present bool
}

// SpoofTracker remembers the last wall seen and confirms its
// disappearance, owned exclusively by the SVDEngine (spec §3, §4.5).
type SpoofTracker struct {
	mu     sync.Mutex
	wall   wallMemory
	events []types.SpoofEvent
}

// NewSpoofTracker builds an empty tracker.
func NewSpoofTracker() *SpoofTracker {
	return &SpoofTracker{}
}

// Observe feeds this tick's wall candidate plus the current price, and
// returns whether a wall is currently present and whether a
// confirmed-disappearance event was just recorded.
func (s *SpoofTracker) Observe(candidate WallCandidate, currentPrice float64, now time.Time) (present bool, confirmed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if candidate.Present {
		if s.wall.present && s.wall.side == candidate.Side && withinPct(s.wall.price, candidate.price(), 0.05) {
			s.wall.tsLast = now
		} else {
			s.wall = wallMemory{side: candidate.Side, price: candidate.Price, tsStart: now, tsLast: now, present: true}
		}
		return true, false
	}

	if s.wall.present {
		lifetime := s.wall.tsLast.Sub(s.wall.tsStart)
		moved := priceMovePct(s.wall.price, currentPrice)
		if lifetime < spoofConfirmMaxLifetime && moved < spoofConfirmMaxMovePct {
			s.appendEventLocked(now)
			s.wall = wallMemory{}
			return false, true
		}
		s.wall = wallMemory{}
	}
	return false, false
}

func (w WallCandidate) price() float64 { return w.Price }

func priceMovePct(prev, cur float64) float64 {
	if prev == 0 {
		return 0
	}
	d := cur - prev
	if d < 0 {
		d = -d
	}
	return d / prev * 100
}

func (s *SpoofTracker) appendEventLocked(now time.Time) {
	ev := types.SpoofEvent{
		Side:       s.wall.side,
		Price:      s.wall.price,
		DurationMS: now.Sub(s.wall.tsStart).Milliseconds(),
		Timestamp:  now,
	}
	s.events = append(s.events, ev)
	if len(s.events) > spoofEventsCapacity {
		s.events = s.events[len(s.events)-spoofEventsCapacity:]
	}
}

// Events returns a copy of the bounded confirmed-spoof deque.
func (s *SpoofTracker) Events() []types.SpoofEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.SpoofEvent, len(s.events))
	copy(out, s.events)
	return out
}

// BestBidAskMemory tracks best-bid/best-ask across ticks to derive
// DOM-chasing flags (spec §4.5).
type BestBidAskMemory struct {
	mu           sync.Mutex
	haveBid      bool
	haveAsk      bool
	prevBid      float64
	prevAsk      float64
}

// NewBestBidAskMemory builds an empty tracker.
func NewBestBidAskMemory() *BestBidAskMemory { return &BestBidAskMemory{} }

// Observe feeds this tick's best bid/ask and returns chasing flags.
func (m *BestBidAskMemory) Observe(bestBid, bestAsk float64) (bidChasing, askChasing bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.haveBid {
		bidChasing = bestBid > m.prevBid
	}
	if m.haveAsk {
		askChasing = bestAsk < m.prevAsk
	}
	m.prevBid, m.haveBid = bestBid, true
	m.prevAsk, m.haveAsk = bestAsk, true
	return
}
