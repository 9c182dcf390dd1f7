package svd

import (
	"sync"
	"time"
)

// cvdHistoryCapacity bounds the CVD history buffer (spec §3, §5: 100).
const cvdHistoryCapacity = 100

// cvdSlopeWindow is the number of most-recent history points the slope
// regression runs over (spec §4.5).
const cvdSlopeWindow = 20

// cvdPoint is one history entry.
type cvdPoint struct {
	value float64
	at    time.Time
}

// CVDCalculator accumulates signed trade volume indefinitely and is
// owned exclusively by the SVDEngine (spec §3 Ownership).
type CVDCalculator struct {
	mu          sync.Mutex
	cumulative  float64
	history     []cvdPoint
	resetAnchor float64
	hasAnchor   bool
}

// NewCVDCalculator builds an empty calculator.
func NewCVDCalculator() *CVDCalculator {
	return &CVDCalculator{}
}

// Add folds signedVolume (positive for buys, negative for sells) into
// the running cumulative total and appends to the bounded history,
// satisfying the CVD invariant in spec §8 (cvd(t+1)-cvd(t) equals the
// sum of signed volumes appended between t and t+1).
func (c *CVDCalculator) Add(signedVolume float64, at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cumulative += signedVolume
	c.history = append(c.history, cvdPoint{value: c.cumulative, at: at})
	if len(c.history) > cvdHistoryCapacity {
		c.history = c.history[len(c.history)-cvdHistoryCapacity:]
	}
}

// Value returns the current cumulative CVD.
func (c *CVDCalculator) Value() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cumulative
}

// SetResetAnchor records a reference price for callers that want a
// fresh base for percentage-style comparisons. It changes neither the
// cumulative total nor the history; the tracker never resets the
// cumulative total on its own (spec §3 lifecycle).
func (c *CVDCalculator) SetResetAnchor(price float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetAnchor = price
	c.hasAnchor = true
}

// Slope computes the simple-linear-regression slope of the last
// cvdSlopeWindow history points (spec §4.5).
func (c *CVDCalculator) Slope() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.history)
	if n < 2 {
		return 0
	}
	window := c.history
	if n > cvdSlopeWindow {
		window = c.history[n-cvdSlopeWindow:]
	}
	return linregSlope(window)
}

func linregSlope(points []cvdPoint) float64 {
	n := float64(len(points))
	if n < 2 {
		return 0
	}
	var sumX, sumY, sumXY, sumX2 float64
	for i, p := range points {
		x := float64(i)
		sumX += x
		sumY += p.value
		sumXY += x * p.value
		sumX2 += x * x
	}
	denom := n*sumX2 - sumX*sumX
	if denom == 0 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / denom
}

// HistoryLen reports how many points are currently retained.
func (c *CVDCalculator) HistoryLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.history)
}

// Divergence flags when the caller's recent price trend
// (recentPriceTrendUp; the engine derives it from the last 10 trades)
// disagrees with the sign of the CVD slope over the last cvdSlopeWindow
// history points (spec §4.5). It returns false when haveTrend is false.
func (c *CVDCalculator) Divergence(recentPriceTrendUp bool, haveTrend bool) bool {
	if !haveTrend {
		return false
	}
	slope := c.Slope()
	cvdTrendUp := slope > 0
	return recentPriceTrendUp != cvdTrendUp
}
