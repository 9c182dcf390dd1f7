package alert

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketpulse/corelens/internal/types"
)

func containsType(alerts []types.AlertRecord, typ types.AlertType) bool {
	for _, a := range alerts {
		if a.Type == typ {
			return true
		}
	}
	return false
}

func TestPhaseChangeAlertFiresOnceThenSuppressed(t *testing.T) {
	m := New()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	first := m.Tick(base, types.PhaseManipulation, types.IntentNeutral, false, types.SignalRecord{Direction: types.Wait})
	assert.Empty(t, first)

	second := m.Tick(base.Add(time.Minute), types.PhaseExecution, types.IntentNeutral, false, types.SignalRecord{Direction: types.Wait})
	require.True(t, containsType(second, types.AlertPhaseChange))

	var phaseAlerts int
	for _, a := range second {
		if a.Type == types.AlertPhaseChange {
			phaseAlerts++
		}
	}
	assert.Equal(t, 1, phaseAlerts)

	third := m.Tick(base.Add(2*time.Minute), types.PhaseExecution, types.IntentNeutral, false, types.SignalRecord{Direction: types.Wait})
	assert.False(t, containsType(third, types.AlertPhaseChange))
}

func TestExecutionEntryRespectsCooldown(t *testing.T) {
	m := New()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	first := m.Tick(base, types.PhaseExecution, types.IntentNeutral, false, types.SignalRecord{Direction: types.Wait})
	require.True(t, containsType(first, types.AlertExecutionEntry))

	second := m.Tick(base.Add(time.Minute), types.PhaseExecution, types.IntentNeutral, false, types.SignalRecord{Direction: types.Wait})
	assert.False(t, containsType(second, types.AlertExecutionEntry))

	third := m.Tick(base.Add(16*time.Minute), types.PhaseExecution, types.IntentNeutral, false, types.SignalRecord{Direction: types.Wait})
	assert.True(t, containsType(third, types.AlertExecutionEntry))
}

func TestStrongSignalAlertRequiresConfidenceFloor(t *testing.T) {
	m := New()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	weak := m.Tick(now, types.PhaseDiscovery, types.IntentNeutral, false, types.SignalRecord{Direction: types.Buy, Confidence: 6.9})
	assert.False(t, containsType(weak, types.AlertStrongSignal))

	strong := m.Tick(now, types.PhaseDiscovery, types.IntentNeutral, false, types.SignalRecord{Direction: types.Buy, Confidence: 7.0})
	assert.True(t, containsType(strong, types.AlertStrongSignal))
}

func TestHistoryBoundedAndIntentFlipFires(t *testing.T) {
	m := New()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	m.Tick(now, types.PhaseDiscovery, types.IntentAccumulating, false, types.SignalRecord{Direction: types.Wait})
	flip := m.Tick(now.Add(time.Second), types.PhaseDiscovery, types.IntentDistributing, false, types.SignalRecord{Direction: types.Wait})
	assert.True(t, containsType(flip, types.AlertCVDIntentFlip))

	for i := 0; i < historyCapacity+10; i++ {
		m.Tick(now.Add(time.Duration(i)*time.Hour), types.PhaseDiscovery, types.IntentAccumulating, true, types.SignalRecord{Direction: types.Wait})
	}
	assert.LessOrEqual(t, len(m.History()), historyCapacity)
}
