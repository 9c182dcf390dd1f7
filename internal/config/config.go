// Package config loads and validates the analysis core's tunables, the
// way internal/config/regime.weights.go loads regime thresholds in the
// teacher repo, but for every option enumerated in spec §6.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every tunable named in spec §6's configuration table.
type Config struct {
	AnalysisIntervalSeconds int `yaml:"analysis_interval_seconds"`

	MinDataQuality float64 `yaml:"min_data_quality"`

	MaxAgeOHLCVSeconds     int `yaml:"max_age_ohlcv_seconds"`
	MaxAgeOrderbookSeconds int `yaml:"max_age_orderbook_seconds"`
	MaxAgeTradesSeconds    int `yaml:"max_age_trades_seconds"`

	MinOrderbookLevels int `yaml:"min_orderbook_levels"`
	MinTradesCount     int `yaml:"min_trades_count"`
	MinOHLCVCandles    int `yaml:"min_ohlcv_candles"`

	HTF1Interval string `yaml:"htf_1_interval"`
	HTF2Interval string `yaml:"htf_2_interval"`
	HTFLimit     int    `yaml:"htf_limit"`

	ExecutionOnlySignals bool `yaml:"execution_only_signals"`

	CriticalConflictThreshold int     `yaml:"critical_conflict_threshold"`
	TrapScoreThreshold        float64 `yaml:"trap_score_threshold"`
	MinConfidenceToTrade      float64 `yaml:"min_confidence_to_trade"`

	WSDepthLevel   int   `yaml:"ws_depth_level"`
	WSTradesBuffer int   `yaml:"ws_trades_buffer"`
	WSReconnectBackoffSeq []int `yaml:"ws_reconnect_backoff_seq"`

	SweptLevelExpiryHours int `yaml:"swept_level_expiry_hours"`
}

// AnalysisInterval returns the tick interval as a time.Duration.
func (c Config) AnalysisInterval() time.Duration {
	return time.Duration(c.AnalysisIntervalSeconds) * time.Second
}

// SweptLevelExpiry returns the swept-level TTL as a time.Duration.
func (c Config) SweptLevelExpiry() time.Duration {
	return time.Duration(c.SweptLevelExpiryHours) * time.Hour
}

// Default returns the spec's documented defaults.
func Default() Config {
	return Config{
		AnalysisIntervalSeconds: 180,
		MinDataQuality:          0.5,
		MaxAgeOHLCVSeconds:      300,
		MaxAgeOrderbookSeconds:  10,
		MaxAgeTradesSeconds:     30,
		MinOrderbookLevels:      10,
		MinTradesCount:          20,
		MinOHLCVCandles:         50,
		HTF1Interval:            "1h",
		HTF2Interval:            "4h",
		HTFLimit:                100,
		ExecutionOnlySignals:    false,
		CriticalConflictThreshold: 2,
		TrapScoreThreshold:        3.0,
		MinConfidenceToTrade:      4.0,
		WSDepthLevel:              20,
		WSTradesBuffer:            1000,
		WSReconnectBackoffSeq:     []int{1, 2, 5, 15, 30},
		SweptLevelExpiryHours:     24,
	}
}

// Load reads a YAML config file over the defaults; fields absent from
// the file keep their default values. An unreadable or malformed file,
// or a value that fails Validate, surfaces as ErrConfig, matching spec
// §7's ConfigError kind ("fatal; the supervisor refuses to run").
func Load(path string) (Config, error) {
	cfg := Default()

	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("%w: reading %s: %v", ErrConfig, path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: parsing %s: %v", ErrConfig, path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	return cfg, nil
}

// Validate checks internal consistency of the configuration.
func (c Config) Validate() error {
	if c.AnalysisIntervalSeconds <= 0 {
		return fmt.Errorf("analysis_interval_seconds must be positive")
	}
	if c.MinDataQuality < 0 || c.MinDataQuality > 1 {
		return fmt.Errorf("min_data_quality must be in [0,1]")
	}
	if c.MinConfidenceToTrade < 0 || c.MinConfidenceToTrade > 10 {
		return fmt.Errorf("min_confidence_to_trade must be in [0,10]")
	}
	if len(c.WSReconnectBackoffSeq) == 0 {
		return fmt.Errorf("ws_reconnect_backoff_seq must not be empty")
	}
	return nil
}
