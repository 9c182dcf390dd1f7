package svd

import (
	"sync"
	"time"

	"github.com/marketpulse/corelens/internal/types"
)

// phaseHistoryCapacity bounds the phase transition history (spec §3: 10).
const phaseHistoryCapacity = 10

// longPhaseDuration is the threshold past which phase confidence gets a
// duration bonus (spec §4.5: "> 60s => +0.2").
const longPhaseDuration = 60 * time.Second

// canonicalNext maps each phase to the transitions considered valid
// continuations of the canonical cycle discovery -> manipulation ->
// execution -> distribution -> discovery, plus the two documented
// shortcuts (discovery -> execution, manipulation -> distribution).
var canonicalNext = map[types.Phase]map[types.Phase]bool{
	types.PhaseDiscovery:    {types.PhaseManipulation: true, types.PhaseExecution: true},
	types.PhaseManipulation: {types.PhaseExecution: true, types.PhaseDistribution: true},
	types.PhaseExecution:    {types.PhaseDistribution: true},
	types.PhaseDistribution: {types.PhaseDiscovery: true},
}

// PhaseTracker validates phase transitions and is owned exclusively by
// the SVDEngine (spec §3 Ownership, §4.5).
type PhaseTracker struct {
	mu         sync.Mutex
	current    types.Phase
	enteredAt  time.Time
	history    []types.PhaseRecord
	validTransitions int
}

// NewPhaseTracker builds a tracker starting in the discovery phase.
func NewPhaseTracker(now time.Time) *PhaseTracker {
	return &PhaseTracker{current: types.PhaseDiscovery, enteredAt: now}
}

// Observe feeds a newly detected phase for this tick. It returns the
// phase confidence contribution for this transition and whether a
// transition actually occurred.
func (p *PhaseTracker) Observe(detected types.Phase, now time.Time) (confidence float64, transitioned bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if detected == p.current {
		confidence = p.durationBonusLocked(now)
		return confidence, false
	}

	duration := now.Sub(p.enteredAt)
	p.history = append(p.history, types.PhaseRecord{
		Phase: p.current, EnteredAt: p.enteredAt, Duration: duration,
	})
	if len(p.history) > phaseHistoryCapacity {
		p.history = p.history[len(p.history)-phaseHistoryCapacity:]
	}

	if canonicalNext[p.current][detected] {
		p.validTransitions++
	}

	p.current = detected
	p.enteredAt = now
	transitioned = true
	confidence = p.durationBonusLocked(now)
	if p.validTransitions > 0 {
		confidence += 0.1
	}
	return confidence, transitioned
}

func (p *PhaseTracker) durationBonusLocked(now time.Time) float64 {
	if now.Sub(p.enteredAt) > longPhaseDuration {
		return 0.2
	}
	return 0
}

// Current returns the tracked phase and its entry time.
func (p *PhaseTracker) Current() (types.Phase, time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current, p.enteredAt
}

// History returns a copy of the bounded transition history.
func (p *PhaseTracker) History() []types.PhaseRecord {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]types.PhaseRecord, len(p.history))
	copy(out, p.history)
	return out
}
