package kpi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scoredResult(adID string, score int, spend, revenue float64, reasons ...string) AdResult {
	return AdResult{
		Analysis: Analysis{
			MetricsRecord:    MetricsRecord{AdID: adID, AdSpend: spend, TotalRevenue: revenue},
			PauseReasons:     reasons,
			PerformanceScore: score,
		},
	}
}

func TestBuildDashboard(t *testing.T) {
	under := []AdResult{
		scoredResult("a", 20, 100, 10, "High cost per streak activation: $50.00 > $10"),
		scoredResult("b", 40, 200, 100,
			"High cost per purchase: $30.00 > $25",
			"Low ROAS: 0.50x < 1.5x"),
	}
	warning := []AdResult{
		scoredResult("c", 65, 50, 100),
	}

	d := BuildDashboard(under, warning, DefaultThresholds())

	assert.Equal(t, 2, d.UnderperformingCount)
	assert.Equal(t, 1, d.WarningCount)
	assert.Equal(t, 350.0, d.TotalSpend)
	assert.Equal(t, 210.0, d.TotalRevenue)
	assert.InDelta(t, 0.6, d.OverallROAS, 1e-9)

	assert.InDelta(t, 41.666, d.Scores.Mean, 0.01)
	assert.Equal(t, 40.0, d.Scores.Median)
	assert.Greater(t, d.Scores.StdDev, 0.0)

	assert.Equal(t, map[string]int{
		"High cost per streak activation": 1,
		"High cost per purchase":          1,
		"Low ROAS":                        1,
	}, d.ReasonBreakdown)

	require.Len(t, d.WorstAds, 2)
	assert.Equal(t, "a", d.WorstAds[0].AdID, "worst score first")
}

func TestBuildDashboard_Empty(t *testing.T) {
	d := BuildDashboard(nil, nil, DefaultThresholds())

	assert.Equal(t, 0, d.UnderperformingCount)
	assert.Equal(t, 0.0, d.OverallROAS)
	assert.Equal(t, ScoreStats{}, d.Scores)
	assert.Empty(t, d.WorstAds)
	assert.Empty(t, d.ReasonBreakdown)
}

func TestWorstFirst_CapsAtTen(t *testing.T) {
	ads := make([]AdResult, 0, 15)
	for i := 0; i < 15; i++ {
		ads = append(ads, scoredResult("ad", 100-i, 0, 0))
	}

	top := worstFirst(ads)
	require.Len(t, top, 10)
	assert.Equal(t, 86, top[0].PerformanceScore)
}
