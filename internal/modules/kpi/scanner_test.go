package kpi

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/readstreak/adpilot/internal/domain"
)

type fakeAdLister struct {
	campaigns    []domain.Campaign
	campaignsErr error
	adsByID      map[string][]domain.Ad
	adsErrByID   map[string]error
}

func (f *fakeAdLister) ActiveCampaigns(_ context.Context) ([]domain.Campaign, error) {
	return f.campaigns, f.campaignsErr
}

func (f *fakeAdLister) CampaignAds(_ context.Context, campaignID string) ([]domain.Ad, error) {
	if err := f.adsErrByID[campaignID]; err != nil {
		return nil, err
	}
	return f.adsByID[campaignID], nil
}

func activeAd(id string) domain.Ad {
	return domain.Ad{ID: id, Name: "ad " + id, Status: "ACTIVE", EffectiveStatus: "ACTIVE"}
}

// scannerFixture wires a scanner whose ad "bad" is far over thresholds,
// "warn" is inside the warning band and "good" is healthy.
func scannerFixture() (*Scanner, *fakeAdLister) {
	insights := &fakeInsights{insights: map[string]*domain.AdInsights{
		"bad":  {AdID: "bad", Spend: 400},
		"warn": {AdID: "warn", Spend: 45},
		"good": {AdID: "good", Spend: 40},
	}}

	badRows := make([]domain.UserRow, 0, 20)
	for i := 0; i < 20; i++ {
		// $400 / 1 activation, ROAS 0.05
		badRows = append(badRows, userRow(i == 0, i == 0, 1))
	}
	warnRows := make([]domain.UserRow, 0, 20)
	for i := 0; i < 20; i++ {
		// $45 / 5 activations = $9, inside the 0.8 warning band
		warnRows = append(warnRows, userRow(i < 5, i < 3, 10))
	}
	goodRows := make([]domain.UserRow, 0, 20)
	for i := 0; i < 20; i++ {
		goodRows = append(goodRows, userRow(true, i < 10, 20))
	}

	users := &fakeUserRows{rows: map[string][]domain.UserRow{
		"bad":  badRows,
		"warn": warnRows,
		"good": goodRows,
	}}

	lister := &fakeAdLister{
		campaigns: []domain.Campaign{
			{ID: "c1", Name: "Summer promo", EffectiveStatus: "ACTIVE"},
		},
		adsByID: map[string][]domain.Ad{
			"c1": {activeAd("bad"), activeAd("warn"), activeAd("good")},
		},
	}

	service := newTestService(insights, users)
	return NewScanner(lister, service, zerolog.Nop()), lister
}

func TestUnderperforming_FlagsOnlyViolators(t *testing.T) {
	scanner, _ := scannerFixture()

	results, err := scanner.Underperforming(context.Background(), nil)
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.Equal(t, "bad", results[0].AdID)
	assert.Equal(t, "Summer promo", results[0].CampaignName)
	assert.True(t, results[0].ShouldPause)
	assert.NotEmpty(t, results[0].PauseReasons)
}

func TestUnderperforming_CustomThresholds(t *testing.T) {
	scanner, _ := scannerFixture()

	// Loosen the ceilings so even the bad ad passes
	results, err := scanner.Underperforming(context.Background(), map[string]interface{}{
		"maxCostPerStreakActivation": 1000.0,
		"maxCostPerPurchase":         100000.0,
		"minROAS":                    0.000001,
	})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestNearThresholdScan(t *testing.T) {
	scanner, _ := scannerFixture()

	results, err := scanner.NearThreshold(context.Background(), 0.8, nil)
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.Equal(t, "warn", results[0].AdID)
	assert.False(t, results[0].ShouldPause)
	assert.NotEmpty(t, results[0].WarningReasons)
}

func TestScan_SkipsInactive(t *testing.T) {
	scanner, lister := scannerFixture()
	lister.campaigns = append(lister.campaigns, domain.Campaign{ID: "c2", EffectiveStatus: "PAUSED"})
	lister.adsByID["c1"] = append(lister.adsByID["c1"],
		domain.Ad{ID: "bad2", Status: "ACTIVE", EffectiveStatus: "PAUSED"})
	lister.adsByID["c2"] = []domain.Ad{activeAd("bad")}

	results, err := scanner.Underperforming(context.Background(), nil)
	require.NoError(t, err)

	// Paused campaign and paused ad both ignored
	require.Len(t, results, 1)
	assert.Equal(t, "bad", results[0].AdID)
}

func TestScan_PerCampaignFailureIsSkipped(t *testing.T) {
	scanner, lister := scannerFixture()
	lister.campaigns = append([]domain.Campaign{
		{ID: "broken", EffectiveStatus: "ACTIVE"},
	}, lister.campaigns...)
	lister.adsErrByID = map[string]error{"broken": errors.New("permission denied")}

	results, err := scanner.Underperforming(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, results, 1, "healthy campaigns still scanned")
}

func TestScan_EnumerationFailureSurfaces(t *testing.T) {
	scanner, lister := scannerFixture()
	lister.campaignsErr = errors.New("token expired")

	_, err := scanner.Underperforming(context.Background(), nil)
	assert.Error(t, err)
}
