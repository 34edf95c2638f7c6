package kpi

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestThresholdStore_Defaults(t *testing.T) {
	store := NewThresholdStore()
	current := store.Current()

	assert.Equal(t, 10.0, current.MaxCostPerStreakActivation)
	assert.Equal(t, 25.0, current.MaxCostPerPurchase)
	assert.Equal(t, 1.5, current.MinROAS)
	assert.Equal(t, 10, current.MinInstallsForAnalysis)
	assert.Equal(t, 3, current.MinDaysForAnalysis)
}

func TestThresholdStore_PartialUpdate(t *testing.T) {
	store := NewThresholdStore()

	merged, applied := store.Update(map[string]interface{}{
		"maxCostPerStreakActivation": 12.5,
	})

	assert.Equal(t, []string{"maxCostPerStreakActivation"}, applied)
	assert.Equal(t, 12.5, merged.MaxCostPerStreakActivation)
	assert.Equal(t, 25.0, merged.MaxCostPerPurchase, "unmentioned fields keep their values")
	assert.Equal(t, merged, store.Current())
}

func TestThresholdStore_StringCoercion(t *testing.T) {
	store := NewThresholdStore()

	merged, applied := store.Update(map[string]interface{}{
		"minROAS":                "2.0",
		"minInstallsForAnalysis": "20",
	})

	assert.ElementsMatch(t, []string{"minROAS", "minInstallsForAnalysis"}, applied)
	assert.Equal(t, 2.0, merged.MinROAS)
	assert.Equal(t, 20, merged.MinInstallsForAnalysis)
}

func TestThresholdStore_RejectsBadValues(t *testing.T) {
	store := NewThresholdStore()

	merged, applied := store.Update(map[string]interface{}{
		"maxCostPerPurchase":         -5.0,
		"minROAS":                    "not-a-number",
		"maxCostPerStreakActivation": 0,
		"unknownField":               99.0,
	})

	assert.Empty(t, applied)
	assert.Equal(t, DefaultThresholds(), merged)
}

func TestThresholdStore_MixedUpdateAppliesGoodFields(t *testing.T) {
	// One bad field never rejects the whole update
	store := NewThresholdStore()

	merged, applied := store.Update(map[string]interface{}{
		"maxCostPerPurchase": 30.0,
		"minROAS":            "garbage",
	})

	assert.Equal(t, []string{"maxCostPerPurchase"}, applied)
	assert.Equal(t, 30.0, merged.MaxCostPerPurchase)
	assert.Equal(t, 1.5, merged.MinROAS)
}

func TestThresholdStore_EffectiveDoesNotMutate(t *testing.T) {
	store := NewThresholdStore()

	effective := store.Effective(map[string]interface{}{"minROAS": 3.0})

	assert.Equal(t, 3.0, effective.MinROAS)
	assert.Equal(t, 1.5, store.Current().MinROAS)
}
