package kpi

import (
	"strconv"
	"sync"
)

// ThresholdSet holds the cost-side KPI thresholds the evaluator compares
// against. Zero values are never valid; use DefaultThresholds.
type ThresholdSet struct {
	MaxCostPerStreakActivation float64 `json:"maxCostPerStreakActivation"`
	MaxCostPerPurchase         float64 `json:"maxCostPerPurchase"`
	MinROAS                    float64 `json:"minROAS"`
	MinInstallsForAnalysis     int     `json:"minInstallsForAnalysis"`
	MinDaysForAnalysis         int     `json:"minDaysForAnalysis"`
}

// DefaultThresholds returns the built-in threshold policy.
func DefaultThresholds() ThresholdSet {
	return ThresholdSet{
		MaxCostPerStreakActivation: 10.0,
		MaxCostPerPurchase:         25.0,
		MinROAS:                    1.5,
		MinInstallsForAnalysis:     10,
		MinDaysForAnalysis:         3,
	}
}

// ThresholdStore holds the mutable runtime threshold policy. Updates are
// best-effort partial merges: only parseable positive values are applied,
// everything else is silently skipped so one bad field never rejects the
// whole update.
type ThresholdStore struct {
	mu      sync.RWMutex
	current ThresholdSet
}

// NewThresholdStore creates a store seeded with the defaults.
func NewThresholdStore() *ThresholdStore {
	return &ThresholdStore{current: DefaultThresholds()}
}

// Current returns a copy of the active thresholds.
func (s *ThresholdStore) Current() ThresholdSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Update merges a partial update into the active thresholds and returns
// the resulting set plus the names of the fields that were applied.
func (s *ThresholdStore) Update(partial map[string]interface{}) (ThresholdSet, []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	merged, applied := MergeThresholds(s.current, partial)
	s.current = merged
	return merged, applied
}

// Effective merges a per-request override on top of the active thresholds
// without mutating them.
func (s *ThresholdStore) Effective(partial map[string]interface{}) ThresholdSet {
	merged, _ := MergeThresholds(s.Current(), partial)
	return merged
}

// MergeThresholds applies a partial update on top of base. Values may be
// JSON numbers or numeric strings; non-positive or unparseable values are
// skipped. Returns the merged set and the applied field names.
func MergeThresholds(base ThresholdSet, partial map[string]interface{}) (ThresholdSet, []string) {
	var applied []string

	if v, ok := positiveFloat(partial["maxCostPerStreakActivation"]); ok {
		base.MaxCostPerStreakActivation = v
		applied = append(applied, "maxCostPerStreakActivation")
	}
	if v, ok := positiveFloat(partial["maxCostPerPurchase"]); ok {
		base.MaxCostPerPurchase = v
		applied = append(applied, "maxCostPerPurchase")
	}
	if v, ok := positiveFloat(partial["minROAS"]); ok {
		base.MinROAS = v
		applied = append(applied, "minROAS")
	}
	if v, ok := positiveFloat(partial["minInstallsForAnalysis"]); ok {
		base.MinInstallsForAnalysis = int(v)
		applied = append(applied, "minInstallsForAnalysis")
	}
	if v, ok := positiveFloat(partial["minDaysForAnalysis"]); ok {
		base.MinDaysForAnalysis = int(v)
		applied = append(applied, "minDaysForAnalysis")
	}

	return base, applied
}

// positiveFloat coerces a JSON value to a strictly positive float.
func positiveFloat(raw interface{}) (float64, bool) {
	var v float64
	switch t := raw.(type) {
	case float64:
		v = t
	case int:
		v = float64(t)
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0, false
		}
		v = f
	default:
		return 0, false
	}
	if v <= 0 {
		return 0, false
	}
	return v, true
}
