package kpi

import (
	"sort"
	"strings"

	"gonum.org/v1/gonum/stat"
)

// ScoreStats summarizes the distribution of performance scores.
type ScoreStats struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	StdDev float64 `json:"stdDev"`
}

// Dashboard is the account-wide KPI summary.
type Dashboard struct {
	UnderperformingCount int            `json:"underperformingCount"`
	WarningCount         int            `json:"warningCount"`
	TotalSpend           float64        `json:"totalSpend"`
	TotalRevenue         float64        `json:"totalRevenue"`
	OverallROAS          float64        `json:"overallRoas"`
	Scores               ScoreStats     `json:"scores"`
	ReasonBreakdown      map[string]int `json:"reasonBreakdown"`
	Thresholds           ThresholdSet   `json:"thresholds"`
	WorstAds             []AdResult     `json:"worstAds"`
	WarningAds           []AdResult     `json:"warningAds"`
}

const dashboardTopN = 10

// BuildDashboard folds scan results into the account-wide summary.
// Spend and revenue totals cover the flagged ads only; the dashboard is a
// triage view, not an accounting report.
func BuildDashboard(under, warning []AdResult, thresholds ThresholdSet) Dashboard {
	d := Dashboard{
		UnderperformingCount: len(under),
		WarningCount:         len(warning),
		ReasonBreakdown:      map[string]int{},
		Thresholds:           thresholds,
	}

	scores := make([]float64, 0, len(under)+len(warning))
	for _, ad := range under {
		d.TotalSpend += ad.AdSpend
		d.TotalRevenue += ad.TotalRevenue
		scores = append(scores, float64(ad.PerformanceScore))
		for _, reason := range ad.PauseReasons {
			d.ReasonBreakdown[reasonCategory(reason)]++
		}
	}
	for _, ad := range warning {
		d.TotalSpend += ad.AdSpend
		d.TotalRevenue += ad.TotalRevenue
		scores = append(scores, float64(ad.PerformanceScore))
	}

	if d.TotalSpend > 0 {
		d.OverallROAS = d.TotalRevenue / d.TotalSpend
	}

	if len(scores) > 0 {
		sort.Float64s(scores)
		d.Scores = ScoreStats{
			Mean:   stat.Mean(scores, nil),
			Median: stat.Quantile(0.5, stat.Empirical, scores, nil),
			StdDev: stat.StdDev(scores, nil),
		}
	}

	d.WorstAds = worstFirst(under)
	d.WarningAds = worstFirst(warning)
	return d
}

// reasonCategory collapses a reason line to its category, the text before
// the first colon ("High cost per purchase: ..." -> "High cost per purchase").
func reasonCategory(reason string) string {
	if idx := strings.Index(reason, ":"); idx >= 0 {
		return reason[:idx]
	}
	return reason
}

// worstFirst returns up to dashboardTopN results sorted by ascending score.
func worstFirst(ads []AdResult) []AdResult {
	sorted := make([]AdResult, len(ads))
	copy(sorted, ads)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].PerformanceScore < sorted[j].PerformanceScore
	})
	if len(sorted) > dashboardTopN {
		sorted = sorted[:dashboardTopN]
	}
	return sorted
}
