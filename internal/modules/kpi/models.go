// Package kpi implements the KPI-driven underperformance detection core:
// metric aggregation, pure threshold evaluation, scanning and the
// automated pause executor.
package kpi

import (
	"encoding/json"
	"math"
	"time"

	"github.com/readstreak/adpilot/internal/domain"
)

// Cost is a currency ratio that may be infinite (spend with zero
// conversions). Infinite values serialize as null so dashboard JSON
// stays valid.
type Cost float64

// MarshalJSON implements json.Marshaler.
func (c Cost) MarshalJSON() ([]byte, error) {
	if math.IsInf(float64(c), 0) || math.IsNaN(float64(c)) {
		return []byte("null"), nil
	}
	return json.Marshal(float64(c))
}

// MetricsRecord is one normalized per-ad metrics row, combining ad
// platform delivery metrics with behavioral metrics from the analytics
// store over a rolling window. Constructed fresh on every evaluation and
// never persisted directly.
type MetricsRecord struct {
	AdID      string `json:"adId"`
	Timeframe string `json:"timeframe"`

	// Spend data
	AdSpend float64 `json:"adSpend"`

	// App metrics
	TotalUsers           int     `json:"totalUsers"`
	StreakActivations    int     `json:"streakActivations"`
	StreakActivationRate float64 `json:"streakActivationRate"`
	Purchases            int     `json:"purchases"`
	PurchaseRate         float64 `json:"purchaseRate"`
	TotalRevenue         float64 `json:"totalRevenue"`
	AvgSessionCount      float64 `json:"avgSessionCount"`
	AvgTimeSpent         float64 `json:"avgTimeSpent"`
	Day1ActiveRate       float64 `json:"day1ActiveRate"`
	Day3ActiveRate       float64 `json:"day3ActiveRate"`
	Day7ActiveRate       float64 `json:"day7ActiveRate"`

	// Cost metrics (key for decision making)
	CostPerStreakActivation Cost    `json:"costPerStreakActivation"`
	CostPerPurchase         Cost    `json:"costPerPurchase"`
	ROAS                    float64 `json:"roas"`

	// Delivery metrics
	Impressions int64   `json:"impressions"`
	Clicks      int64   `json:"clicks"`
	CTR         float64 `json:"ctr"`
	CPM         float64 `json:"cpm"`
	CPC         float64 `json:"cpc"`
}

// Snapshot returns the decision-relevant fields as a JSON-safe map for
// audit entries. Infinite costs become nil.
func (m MetricsRecord) Snapshot() map[string]interface{} {
	return map[string]interface{}{
		"adSpend":                 m.AdSpend,
		"totalUsers":              m.TotalUsers,
		"streakActivations":       m.StreakActivations,
		"purchases":               m.Purchases,
		"totalRevenue":            m.TotalRevenue,
		"costPerStreakActivation": finiteOrNil(float64(m.CostPerStreakActivation)),
		"costPerPurchase":         finiteOrNil(float64(m.CostPerPurchase)),
		"roas":                    m.ROAS,
	}
}

func finiteOrNil(v float64) interface{} {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return nil
	}
	return v
}

// BehavioralRollup aggregates raw per-user install rows into per-ad
// behavioral metrics. All rates degrade to 0 when there are no users.
type BehavioralRollup struct {
	TotalUsers           int     `json:"totalUsers"`
	StreakActivations    int     `json:"streakActivations"`
	StreakActivationRate float64 `json:"streakActivationRate"`
	Purchases            int     `json:"purchases"`
	PurchaseRate         float64 `json:"purchaseRate"`
	TotalRevenue         float64 `json:"totalRevenue"`
	AvgSessionCount      float64 `json:"avgSessionCount"`
	AvgTimeSpent         float64 `json:"avgTimeSpent"`
	Day1ActiveRate       float64 `json:"day1ActiveRate"`
	Day3ActiveRate       float64 `json:"day3ActiveRate"`
	Day7ActiveRate       float64 `json:"day7ActiveRate"`
}

// RollupUserRows computes a BehavioralRollup from raw analytics rows.
func RollupUserRows(rows []domain.UserRow) BehavioralRollup {
	r := BehavioralRollup{TotalUsers: len(rows)}
	if r.TotalUsers == 0 {
		return r
	}

	var day1, day3, day7 int
	var totalSessions int64
	var totalTimeSpent float64
	for _, row := range rows {
		if row.StreakActivated {
			r.StreakActivations++
		}
		if row.FirstPurchaseMade {
			r.Purchases++
		}
		if row.Day1Active {
			day1++
		}
		if row.Day3Active {
			day3++
		}
		if row.Day7Active {
			day7++
		}
		r.TotalRevenue += row.TotalRevenue
		totalSessions += row.TotalSessions
		totalTimeSpent += row.TotalTimeSpent
	}

	users := float64(r.TotalUsers)
	r.StreakActivationRate = float64(r.StreakActivations) / users
	r.PurchaseRate = float64(r.Purchases) / users
	r.Day1ActiveRate = float64(day1) / users
	r.Day3ActiveRate = float64(day3) / users
	r.Day7ActiveRate = float64(day7) / users
	r.AvgSessionCount = float64(totalSessions) / users
	r.AvgTimeSpent = totalTimeSpent / users
	return r
}

// Analysis is the full evaluation of one ad: its metrics, the pause
// decision, the human-readable reasons and a bounded performance score.
type Analysis struct {
	MetricsRecord
	ShouldPause      bool     `json:"shouldPause"`
	PauseReasons     []string `json:"pauseReasons"`
	PerformanceScore int      `json:"performanceScore"`
}

// AdResult is an Analysis enriched with campaign context, as returned by
// the scanner. WarningReasons is populated only for the near-threshold view.
type AdResult struct {
	Analysis
	AdName         string    `json:"adName"`
	CampaignID     string    `json:"campaignId"`
	CampaignName   string    `json:"campaignName"`
	AdStatus       string    `json:"adStatus"`
	CreatedTime    time.Time `json:"createdTime"`
	WarningReasons []string  `json:"warningReasons,omitempty"`
}
