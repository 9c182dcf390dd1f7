package types

import (
	"time"

	"github.com/google/uuid"
)

// ConflictSeverity classifies a detected contradiction between modules.
type ConflictSeverity string

const (
	ConflictCritical ConflictSeverity = "critical"
	ConflictMajor    ConflictSeverity = "major"
	ConflictMinor    ConflictSeverity = "minor"
)

// ConflictKind enumerates the taxonomy from spec §4.7.
type ConflictKind string

const (
	ConflictLiquidityVsSVD ConflictKind = "liquidity_vs_svd"
	ConflictSignalVsSVD    ConflictKind = "signal_vs_svd"
	ConflictSignalVsDOM    ConflictKind = "signal_vs_dom"
	ConflictSignalVsThin   ConflictKind = "signal_vs_thin"
	ConflictPhaseVsSignal  ConflictKind = "phase_vs_signal"
	ConflictLTFVsHTF       ConflictKind = "ltf_vs_htf"
	ConflictStructureVsTA  ConflictKind = "structure_vs_ta"
)

// Conflict is one detected contradiction.
type Conflict struct {
	Kind     ConflictKind
	Severity ConflictSeverity
	Detail   string
}

// ConflictReport is the full set of conflicts detected for a tick plus
// the derived critical count used by the WAIT-forcing rule.
type ConflictReport struct {
	Conflicts     []Conflict
	CriticalCount int
}

// TrapType names which side a detected trap is intended to catch.
type TrapType string

const (
	TrapNone TrapType = "none"
	BullTrap TrapType = "bull_trap"
	BearTrap TrapType = "bear_trap"
)

// TrapReport is the TrapEngine's verdict for the tick.
type TrapReport struct {
	Type       TrapType
	Score      float64
	Reasons    []string
	Threshold  float64
}

// BehaviorReport carries auxiliary crowd-behavior flags (FOMO/panic) that
// ride along with the signal for explanation purposes.
type BehaviorReport struct {
	FOMO       bool
	FOMOStrong bool
	Panic      bool
	PanicStrong bool
}

// SignalRecord is the pipeline's per-tick output.
type SignalRecord struct {
	ID                string
	Timestamp         time.Time
	Direction         Direction
	Confidence        float64 // clamped to [0, 10]
	Explanation       string
	MainScenario      string
	AlternativeScenario string
	Levels            Levels
	Conflicts         ConflictReport
	Trap              TrapReport
	Behavior          BehaviorReport
}

// NewSignalID generates a fresh signal identifier.
func NewSignalID() string {
	return uuid.NewString()
}

// AlertSeverity ranks an alert's urgency.
type AlertSeverity string

const (
	SeverityLow      AlertSeverity = "low"
	SeverityHigh     AlertSeverity = "high"
	SeverityCritical AlertSeverity = "critical"
)

// AlertType enumerates the alert kinds the AlertManager emits.
type AlertType string

const (
	AlertPhaseChange       AlertType = "phase_change"
	AlertCVDIntentFlip     AlertType = "cvd_intent_flip"
	AlertCVDReversal       AlertType = "cvd_reversal"
	AlertExecutionEntry    AlertType = "execution_entry"
	AlertStrongSignal      AlertType = "strong_signal"
)

// AlertRecord is one emitted alert.
type AlertRecord struct {
	ID        string
	Type      AlertType
	Severity  AlertSeverity
	Timestamp time.Time
	Payload   map[string]any
	Message   string
}

// NewAlertID generates a fresh alert identifier.
func NewAlertID() string {
	return uuid.NewString()
}
