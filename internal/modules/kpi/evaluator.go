package kpi

import (
	"fmt"
	"math"
	"strconv"
)

// minSpendForROASPause is the spend floor below which a low ROAS alone
// never triggers a pause; early spend is too noisy to act on.
const minSpendForROASPause = 50.0

// minSpendForROASWarning is the lower spend floor used by the warning view.
const minSpendForROASWarning = 25.0

// ShouldPause decides whether an ad's metrics warrant an automated pause.
// Ads below the install sample floor are never paused regardless of cost
// metrics: infinite cost per conversion on five installs is noise, not
// signal.
func ShouldPause(m MetricsRecord, t ThresholdSet) bool {
	if m.TotalUsers < t.MinInstallsForAnalysis {
		return false
	}
	if float64(m.CostPerStreakActivation) > t.MaxCostPerStreakActivation {
		return true
	}
	if float64(m.CostPerPurchase) > t.MaxCostPerPurchase {
		return true
	}
	if m.ROAS < t.MinROAS && m.AdSpend > minSpendForROASPause {
		return true
	}
	return false
}

// PauseReasons lists every violated threshold in fixed order: streak
// activation cost, purchase cost, ROAS. Unlike ShouldPause it does not
// apply the sample floor, so callers can render violations for
// under-sampled ads too.
func PauseReasons(m MetricsRecord, t ThresholdSet) []string {
	var reasons []string
	if float64(m.CostPerStreakActivation) > t.MaxCostPerStreakActivation {
		reasons = append(reasons, fmt.Sprintf("High cost per streak activation: $%s > $%s",
			formatMoney(float64(m.CostPerStreakActivation)), formatThreshold(t.MaxCostPerStreakActivation)))
	}
	if float64(m.CostPerPurchase) > t.MaxCostPerPurchase {
		reasons = append(reasons, fmt.Sprintf("High cost per purchase: $%s > $%s",
			formatMoney(float64(m.CostPerPurchase)), formatThreshold(t.MaxCostPerPurchase)))
	}
	if m.ROAS < t.MinROAS && m.AdSpend > minSpendForROASPause {
		reasons = append(reasons, fmt.Sprintf("Low ROAS: %.2fx < %sx",
			m.ROAS, formatThreshold(t.MinROAS)))
	}
	return reasons
}

// PerformanceScore maps an ad's metrics to a bounded 0-100 health score.
// Threshold breaches deduct, strong engagement adds back.
func PerformanceScore(m MetricsRecord, t ThresholdSet) int {
	score := 100

	cpsa := float64(m.CostPerStreakActivation)
	switch {
	case cpsa > t.MaxCostPerStreakActivation:
		score -= 30
	case cpsa > t.MaxCostPerStreakActivation*0.8:
		score -= 15
	}

	cpp := float64(m.CostPerPurchase)
	switch {
	case cpp > t.MaxCostPerPurchase:
		score -= 25
	case cpp > t.MaxCostPerPurchase*0.8:
		score -= 10
	}

	switch {
	case m.ROAS < t.MinROAS:
		score -= 25
	case m.ROAS < t.MinROAS*1.2:
		score -= 10
	}

	if m.StreakActivationRate > 0.4 {
		score += 10
	}
	if m.PurchaseRate > 0.1 {
		score += 10
	}

	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// WarningThresholds is a tightened threshold band used to surface ads
// that are trending toward a pause without having crossed it.
type WarningThresholds struct {
	MaxCostPerStreakActivation float64
	MaxCostPerPurchase         float64
	MinROAS                    float64
}

// WarningBand derives the warning thresholds from the pause thresholds.
// multiplier < 1 tightens the cost ceilings and raises the ROAS floor;
// the default multiplier is 0.8.
func WarningBand(t ThresholdSet, multiplier float64) WarningThresholds {
	if multiplier <= 0 || multiplier >= 1 {
		multiplier = 0.8
	}
	return WarningThresholds{
		MaxCostPerStreakActivation: t.MaxCostPerStreakActivation * multiplier,
		MaxCostPerPurchase:         t.MaxCostPerPurchase * multiplier,
		MinROAS:                    t.MinROAS / multiplier,
	}
}

// NearThreshold reports whether an ad is inside the warning band: not yet
// pausable under the full thresholds, but violating the tightened ones.
func NearThreshold(m MetricsRecord, t ThresholdSet, w WarningThresholds) bool {
	if ShouldPause(m, t) {
		return false
	}
	if float64(m.CostPerStreakActivation) > w.MaxCostPerStreakActivation {
		return true
	}
	if float64(m.CostPerPurchase) > w.MaxCostPerPurchase {
		return true
	}
	if m.ROAS < w.MinROAS && m.AdSpend > minSpendForROASWarning {
		return true
	}
	return false
}

// WarningReasons lists the tightened-threshold violations in the same
// order as PauseReasons.
func WarningReasons(m MetricsRecord, w WarningThresholds) []string {
	var reasons []string
	if float64(m.CostPerStreakActivation) > w.MaxCostPerStreakActivation {
		reasons = append(reasons, fmt.Sprintf("Cost per streak activation approaching limit: $%s > $%s",
			formatMoney(float64(m.CostPerStreakActivation)), formatThreshold(w.MaxCostPerStreakActivation)))
	}
	if float64(m.CostPerPurchase) > w.MaxCostPerPurchase {
		reasons = append(reasons, fmt.Sprintf("Cost per purchase approaching limit: $%s > $%s",
			formatMoney(float64(m.CostPerPurchase)), formatThreshold(w.MaxCostPerPurchase)))
	}
	if m.ROAS < w.MinROAS && m.AdSpend > minSpendForROASWarning {
		reasons = append(reasons, fmt.Sprintf("ROAS approaching minimum: %.2fx < %sx",
			m.ROAS, formatThreshold(w.MinROAS)))
	}
	return reasons
}

func formatMoney(v float64) string {
	if math.IsInf(v, 0) {
		return "Infinity"
	}
	return fmt.Sprintf("%.2f", v)
}

// formatThreshold renders a threshold without trailing zeros ($10, 1.5x).
func formatThreshold(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
