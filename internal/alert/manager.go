// Package alert implements the AlertManager (spec §4.8): state-transition
// triggered alerts derived from each tick's engine outputs, with a bounded
// in-memory history and a cooldown gate on the execution-entry alert.
package alert

import (
	"fmt"
	"sync"
	"time"

	"github.com/marketpulse/corelens/internal/types"
)

// historyCapacity bounds the retained alert history (spec §4.8: 50).
const historyCapacity = 50

// executionCooldown gates repeat execution-entry alerts (spec §4.8: 15m).
const executionCooldown = 15 * time.Minute

// strongSignalConfidenceFloor is the confidence floor for a strong-signal
// alert (spec §4.8: confidence >= 7).
const strongSignalConfidenceFloor = 7.0

// Manager tracks last-seen phase/intent/execution-alert state and emits
// alerts on qualifying transitions. Owned exclusively by the pipeline and
// touched once per tick, mirroring the ownership model spec §9 describes
// for the source's module-global trackers.
type Manager struct {
	mu sync.Mutex

	lastPhase       types.Phase
	havePhase       bool
	lastIntent      types.Intent
	haveIntent      bool
	lastExecutionAt time.Time

	history []types.AlertRecord
}

// New builds an AlertManager with no prior state.
func New() *Manager {
	return &Manager{}
}

// Tick evaluates one tick's phase, SVD read and final signal against the
// manager's retained state and returns every alert that fires.
func (m *Manager) Tick(now time.Time, phase types.Phase, intent types.Intent, cvdReversal bool, signal types.SignalRecord) []types.AlertRecord {
	m.mu.Lock()
	defer m.mu.Unlock()

	var fired []types.AlertRecord

	if a, ok := m.phaseChangeAlertLocked(now, phase); ok {
		fired = append(fired, a)
	}
	if a, ok := m.intentFlipAlertLocked(now, intent); ok {
		fired = append(fired, a)
	}
	if cvdReversal {
		fired = append(fired, m.newAlertLocked(now, types.AlertCVDReversal, types.SeverityHigh,
			"CVD reversal detected", map[string]any{"phase": string(phase), "intent": string(intent)}))
	}
	if phase == types.PhaseExecution {
		if a, ok := m.executionEntryAlertLocked(now); ok {
			fired = append(fired, a)
		}
	}
	if signal.Direction != types.Wait && signal.Confidence >= strongSignalConfidenceFloor {
		fired = append(fired, m.newAlertLocked(now, types.AlertStrongSignal, types.SeverityHigh,
			fmt.Sprintf("strong %s signal at confidence %.1f", signal.Direction, signal.Confidence),
			map[string]any{"direction": string(signal.Direction), "confidence": signal.Confidence}))
	}

	m.lastPhase, m.havePhase = phase, true
	m.lastIntent, m.haveIntent = intent, true

	return fired
}

// phaseChangeAlertLocked fires a high-severity alert only for transitions
// into execution or distribution (spec §4.8).
func (m *Manager) phaseChangeAlertLocked(now time.Time, phase types.Phase) (types.AlertRecord, bool) {
	if !m.havePhase || phase == m.lastPhase {
		return types.AlertRecord{}, false
	}
	if phase != types.PhaseExecution && phase != types.PhaseDistribution {
		return types.AlertRecord{}, false
	}
	a := m.newAlertLocked(now, types.AlertPhaseChange, types.SeverityHigh,
		fmt.Sprintf("phase changed %s -> %s", m.lastPhase, phase),
		map[string]any{"from": string(m.lastPhase), "to": string(phase)})
	return a, true
}

func (m *Manager) intentFlipAlertLocked(now time.Time, intent types.Intent) (types.AlertRecord, bool) {
	if !m.haveIntent || intent == m.lastIntent {
		return types.AlertRecord{}, false
	}
	if intent == types.IntentNeutral || m.lastIntent == types.IntentNeutral {
		return types.AlertRecord{}, false
	}
	a := m.newAlertLocked(now, types.AlertCVDIntentFlip, types.SeverityHigh,
		fmt.Sprintf("SVD intent flipped %s -> %s", m.lastIntent, intent),
		map[string]any{"from": string(m.lastIntent), "to": string(intent)})
	return a, true
}

// executionEntryAlertLocked is gated by a 15-minute cooldown so continued
// execution-phase ticks don't spam a critical alert (spec §4.8, S5).
func (m *Manager) executionEntryAlertLocked(now time.Time) (types.AlertRecord, bool) {
	if !m.lastExecutionAt.IsZero() && now.Sub(m.lastExecutionAt) < executionCooldown {
		return types.AlertRecord{}, false
	}
	m.lastExecutionAt = now
	a := m.newAlertLocked(now, types.AlertExecutionEntry, types.SeverityCritical,
		"entered execution phase", map[string]any{})
	return a, true
}

func (m *Manager) newAlertLocked(now time.Time, typ types.AlertType, sev types.AlertSeverity, message string, payload map[string]any) types.AlertRecord {
	a := types.AlertRecord{
		ID:        types.NewAlertID(),
		Type:      typ,
		Severity:  sev,
		Timestamp: now,
		Payload:   payload,
		Message:   message,
	}
	m.history = append(m.history, a)
	if len(m.history) > historyCapacity {
		m.history = m.history[len(m.history)-historyCapacity:]
	}
	return a
}

// History returns a copy of the bounded alert history.
func (m *Manager) History() []types.AlertRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.AlertRecord, len(m.history))
	copy(out, m.history)
	return out
}
