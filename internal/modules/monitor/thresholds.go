// Package monitor implements the scheduled performance sweep: campaign
// tracking, cron-driven checks against engagement and delivery
// thresholds, sweep history and the JSONL audit log.
package monitor

import (
	"strconv"
	"sync"

	"github.com/readstreak/adpilot/internal/config"
)

// SweepThresholds is the scheduled sweep's rule set. It is deliberately a
// separate policy from the KPI cost thresholds: sweeps judge engagement
// quality (retention, sessions, delivery), not conversion economics.
type SweepThresholds struct {
	MinDay1Retention float64 `json:"minD1Retention"`
	MinDay3Retention float64 `json:"minD3Retention"`
	MinDay7Retention float64 `json:"minD7Retention"`
	MinSessionCount  float64 `json:"minSessionCount"`
	MinTimeSpent     float64 `json:"minTimeSpent"`
	MinInstalls      int     `json:"minInstalls"`
	MinCTR           float64 `json:"minCTR"`
	MaxCPM           float64 `json:"maxCPM"`
	MinROAS          float64 `json:"minROAS"`
	MaxCPA           float64 `json:"maxCPA"`
}

// ThresholdsFromConfig copies the env-driven sweep thresholds.
func ThresholdsFromConfig(cfg config.SweepThresholdConfig) SweepThresholds {
	return SweepThresholds{
		MinDay1Retention: cfg.MinDay1Retention,
		MinDay3Retention: cfg.MinDay3Retention,
		MinDay7Retention: cfg.MinDay7Retention,
		MinSessionCount:  cfg.MinSessionCount,
		MinTimeSpent:     cfg.MinTimeSpent,
		MinInstalls:      cfg.MinInstalls,
		MinCTR:           cfg.MinCTR,
		MaxCPM:           cfg.MaxCPM,
		MinROAS:          cfg.MinROAS,
		MaxCPA:           cfg.MaxCPA,
	}
}

// sweepThresholdStore guards the runtime-mutable sweep thresholds.
// Updates are best-effort partial merges, same policy as the KPI store:
// only parseable positive values apply.
type sweepThresholdStore struct {
	mu      sync.RWMutex
	current SweepThresholds
}

func (s *sweepThresholdStore) Current() SweepThresholds {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

func (s *sweepThresholdStore) Update(partial map[string]interface{}) (SweepThresholds, []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var applied []string
	set := func(key string, dst *float64) {
		if v, ok := positiveSweepValue(partial[key]); ok {
			*dst = v
			applied = append(applied, key)
		}
	}

	set("minD1Retention", &s.current.MinDay1Retention)
	set("minD3Retention", &s.current.MinDay3Retention)
	set("minD7Retention", &s.current.MinDay7Retention)
	set("minSessionCount", &s.current.MinSessionCount)
	set("minTimeSpent", &s.current.MinTimeSpent)
	set("minCTR", &s.current.MinCTR)
	set("maxCPM", &s.current.MaxCPM)
	set("minROAS", &s.current.MinROAS)
	set("maxCPA", &s.current.MaxCPA)

	if v, ok := positiveSweepValue(partial["minInstalls"]); ok {
		s.current.MinInstalls = int(v)
		applied = append(applied, "minInstalls")
	}

	return s.current, applied
}

func positiveSweepValue(raw interface{}) (float64, bool) {
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
