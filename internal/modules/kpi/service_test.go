package kpi

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/readstreak/adpilot/internal/domain"
)

type fakeInsights struct {
	insights map[string]*domain.AdInsights
	err      error
}

func (f *fakeInsights) AdInsights(_ context.Context, adID, _ string) (*domain.AdInsights, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.insights[adID], nil
}

type fakeUserRows struct {
	rows  map[string][]domain.UserRow
	since time.Time
	err   error
}

func (f *fakeUserRows) UserRowsByAd(_ context.Context, adID string, since time.Time) ([]domain.UserRow, error) {
	f.since = since
	if f.err != nil {
		return nil, f.err
	}
	return f.rows[adID], nil
}

func userRow(streak, purchase bool, revenue float64) domain.UserRow {
	return domain.UserRow{
		StreakActivated:   streak,
		FirstPurchaseMade: purchase,
		TotalRevenue:      revenue,
		TotalSessions:     4,
		TotalTimeSpent:    600,
		Day1Active:        true,
	}
}

func newTestService(insights *fakeInsights, users *fakeUserRows) *Service {
	return NewService(insights, users, NewThresholdStore(), zerolog.Nop())
}

func TestAggregate_JoinsBothSources(t *testing.T) {
	insights := &fakeInsights{insights: map[string]*domain.AdInsights{
		"ad-1": {AdID: "ad-1", Spend: 100, Impressions: 5000, Clicks: 120, CTR: 2.4},
	}}
	users := &fakeUserRows{rows: map[string][]domain.UserRow{
		"ad-1": {
			userRow(true, true, 60),
			userRow(true, false, 0),
			userRow(false, false, 0),
			userRow(false, false, 0),
		},
	}}

	m, err := newTestService(insights, users).Aggregate(context.Background(), "ad-1", "7d")
	require.NoError(t, err)

	assert.Equal(t, 100.0, m.AdSpend)
	assert.Equal(t, 4, m.TotalUsers)
	assert.Equal(t, 2, m.StreakActivations)
	assert.Equal(t, 0.5, m.StreakActivationRate)
	assert.Equal(t, 1, m.Purchases)
	assert.Equal(t, 50.0, float64(m.CostPerStreakActivation))
	assert.Equal(t, 100.0, float64(m.CostPerPurchase))
	assert.Equal(t, 0.6, m.ROAS)
	assert.Equal(t, int64(5000), m.Impressions)
}

func TestAggregate_ZeroConversionsIsInfiniteCost(t *testing.T) {
	insights := &fakeInsights{insights: map[string]*domain.AdInsights{
		"ad-1": {AdID: "ad-1", Spend: 80},
	}}
	users := &fakeUserRows{rows: map[string][]domain.UserRow{
		"ad-1": {userRow(false, false, 0), userRow(false, false, 0)},
	}}

	m, err := newTestService(insights, users).Aggregate(context.Background(), "ad-1", "7d")
	require.NoError(t, err)

	assert.True(t, math.IsInf(float64(m.CostPerStreakActivation), 1))
	assert.True(t, math.IsInf(float64(m.CostPerPurchase), 1))
	assert.Equal(t, 0.0, m.ROAS)
}

func TestAggregate_NoSpendNoUsers(t *testing.T) {
	// Nil insights means the platform had no rows for the window
	svc := newTestService(&fakeInsights{}, &fakeUserRows{})

	m, err := svc.Aggregate(context.Background(), "ad-1", "7d")
	require.NoError(t, err)

	assert.Equal(t, 0.0, m.AdSpend)
	assert.Equal(t, 0, m.TotalUsers)
	assert.Equal(t, 0.0, float64(m.CostPerStreakActivation))
	assert.Equal(t, 0.0, m.ROAS)
}

func TestAggregate_SourceFailureWrapsAdID(t *testing.T) {
	cause := errors.New("connection refused")
	svc := newTestService(&fakeInsights{err: cause}, &fakeUserRows{})

	_, err := svc.Aggregate(context.Background(), "ad-9", "7d")
	require.Error(t, err)

	var aggErr *AggregationError
	require.ErrorAs(t, err, &aggErr)
	assert.Equal(t, "ad-9", aggErr.AdID)
	assert.ErrorIs(t, err, cause)
}

func TestParseTimeframe(t *testing.T) {
	now := time.Date(2025, 8, 14, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, now.Add(-24*time.Hour), parseTimeframe("24h", now))
	assert.Equal(t, now.AddDate(0, 0, -7), parseTimeframe("7d", now))
	assert.Equal(t, now.AddDate(0, 0, -14), parseTimeframe("2w", now))

	// Malformed input degrades to an empty window, not an error
	assert.Equal(t, now, parseTimeframe("yesterday", now))
	assert.Equal(t, now, parseTimeframe("", now))
	assert.Equal(t, now, parseTimeframe("7d extra", now))
}

func TestAnalyze_PausableAdHasReasons(t *testing.T) {
	insights := &fakeInsights{insights: map[string]*domain.AdInsights{
		"ad-1": {AdID: "ad-1", Spend: 500},
	}}
	rows := make([]domain.UserRow, 0, 20)
	for i := 0; i < 20; i++ {
		rows = append(rows, userRow(i == 0, false, 0)) // one activation, no purchases
	}
	users := &fakeUserRows{rows: map[string][]domain.UserRow{"ad-1": rows}}

	a, err := newTestService(insights, users).Analyze(context.Background(), "ad-1", "7d", nil)
	require.NoError(t, err)

	assert.True(t, a.ShouldPause)
	require.NotEmpty(t, a.PauseReasons)
	assert.Equal(t, "High cost per streak activation: $500.00 > $10", a.PauseReasons[0])
	assert.Less(t, a.PerformanceScore, 50)
}

func TestAnalyze_HealthyAdHasNoReasons(t *testing.T) {
	insights := &fakeInsights{insights: map[string]*domain.AdInsights{
		"ad-1": {AdID: "ad-1", Spend: 50},
	}}
	rows := make([]domain.UserRow, 0, 20)
	for i := 0; i < 20; i++ {
		rows = append(rows, userRow(true, i < 5, 30))
	}
	users := &fakeUserRows{rows: map[string][]domain.UserRow{"ad-1": rows}}

	a, err := newTestService(insights, users).Analyze(context.Background(), "ad-1", "7d", nil)
	require.NoError(t, err)

	assert.False(t, a.ShouldPause)
	assert.Empty(t, a.PauseReasons)
	assert.Equal(t, 100, a.PerformanceScore)
}

func TestAnalyze_CustomThresholdOverride(t *testing.T) {
	insights := &fakeInsights{insights: map[string]*domain.AdInsights{
		"ad-1": {AdID: "ad-1", Spend: 100},
	}}
	rows := make([]domain.UserRow, 0, 20)
	for i := 0; i < 20; i++ {
		rows = append(rows, userRow(true, i < 10, 50))
	}
	users := &fakeUserRows{rows: map[string][]domain.UserRow{"ad-1": rows}}
	svc := newTestService(insights, users)

	a, err := svc.Analyze(context.Background(), "ad-1", "7d", nil)
	require.NoError(t, err)
	assert.False(t, a.ShouldPause)

	// Tighten the streak activation ceiling below this ad's $5 cost
	a, err = svc.Analyze(context.Background(), "ad-1", "7d", map[string]interface{}{
		"maxCostPerStreakActivation": 4.0,
	})
	require.NoError(t, err)
	assert.True(t, a.ShouldPause)

	// The store itself is untouched
	assert.Equal(t, 10.0, svc.Thresholds().Current().MaxCostPerStreakActivation)
}
