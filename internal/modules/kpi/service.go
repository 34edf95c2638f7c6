package kpi

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/readstreak/adpilot/internal/domain"
)

// insightsDatePreset is the fixed delivery window requested from the ad
// platform. Behavioral windows vary per request; spend windows do not.
const insightsDatePreset = "last_7_days"

// InsightsSource provides per-ad delivery metrics from the ad platform.
type InsightsSource interface {
	AdInsights(ctx context.Context, adID, datePreset string) (*domain.AdInsights, error)
}

// UserRowSource provides raw per-user install rows from the analytics store.
type UserRowSource interface {
	UserRowsByAd(ctx context.Context, adID string, since time.Time) ([]domain.UserRow, error)
}

// AggregationError wraps a metric-source failure with the ad it was for.
type AggregationError struct {
	AdID string
	Err  error
}

func (e *AggregationError) Error() string {
	return fmt.Sprintf("metrics aggregation failed for ad %s: %v", e.AdID, e.Err)
}

func (e *AggregationError) Unwrap() error {
	return e.Err
}

// Service is the metrics aggregator: it joins ad platform delivery data
// with analytics behavioral data into MetricsRecords and evaluates them
// against the active thresholds.
type Service struct {
	insights   InsightsSource
	users      UserRowSource
	thresholds *ThresholdStore
	log        zerolog.Logger

	// now is swappable for deterministic timeframe tests.
	now func() time.Time
}

// NewService creates the aggregator.
func NewService(insights InsightsSource, users UserRowSource, thresholds *ThresholdStore, log zerolog.Logger) *Service {
	return &Service{
		insights:   insights,
		users:      users,
		thresholds: thresholds,
		log:        log.With().Str("component", "kpi-service").Logger(),
		now:        time.Now,
	}
}

// Thresholds exposes the threshold store for handlers and the scanner.
func (s *Service) Thresholds() *ThresholdStore {
	return s.thresholds
}

var timeframePattern = regexp.MustCompile(`^(\d+)([hdw])$`)

// parseTimeframe turns a compact window like "7d", "24h" or "2w" into the
// window's start time. Malformed input degrades to now, which yields an
// empty behavioral window rather than an error.
func parseTimeframe(tf string, now time.Time) time.Time {
	m := timeframePattern.FindStringSubmatch(tf)
	if m == nil {
		return now
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return now
	}
	switch m[2] {
	case "h":
		return now.Add(-time.Duration(n) * time.Hour)
	case "d":
		return now.AddDate(0, 0, -n)
	case "w":
		return now.AddDate(0, 0, -7*n)
	}
	return now
}

// Aggregate builds the MetricsRecord for one ad over a behavioral
// timeframe. Either source failing aborts the whole aggregation with an
// AggregationError; a half-built record is worse than no record.
func (s *Service) Aggregate(ctx context.Context, adID, timeframe string) (*MetricsRecord, error) {
	since := parseTimeframe(timeframe, s.now())

	rows, err := s.users.UserRowsByAd(ctx, adID, since)
	if err != nil {
		return nil, &AggregationError{AdID: adID, Err: err}
	}
	rollup := RollupUserRows(rows)

	ins, err := s.insights.AdInsights(ctx, adID, insightsDatePreset)
	if err != nil {
		return nil, &AggregationError{AdID: adID, Err: err}
	}

	m := &MetricsRecord{
		AdID:      adID,
		Timeframe: timeframe,

		TotalUsers:           rollup.TotalUsers,
		StreakActivations:    rollup.StreakActivations,
		StreakActivationRate: rollup.StreakActivationRate,
		Purchases:            rollup.Purchases,
		PurchaseRate:         rollup.PurchaseRate,
		TotalRevenue:         rollup.TotalRevenue,
		AvgSessionCount:      rollup.AvgSessionCount,
		AvgTimeSpent:         rollup.AvgTimeSpent,
		Day1ActiveRate:       rollup.Day1ActiveRate,
		Day3ActiveRate:       rollup.Day3ActiveRate,
		Day7ActiveRate:       rollup.Day7ActiveRate,
	}

	if ins != nil {
		m.AdSpend = ins.Spend
		m.Impressions = ins.Impressions
		m.Clicks = ins.Clicks
		m.CTR = ins.CTR
		m.CPM = ins.CPM
		m.CPC = ins.CPC
	}

	m.CostPerStreakActivation = Cost(costPer(m.AdSpend, rollup.StreakActivations))
	m.CostPerPurchase = Cost(costPer(m.AdSpend, rollup.Purchases))
	if m.AdSpend > 0 {
		m.ROAS = m.TotalRevenue / m.AdSpend
	}

	s.log.Debug().
		Str("ad_id", adID).
		Str("timeframe", timeframe).
		Int("total_users", m.TotalUsers).
		Float64("ad_spend", m.AdSpend).
		Msg("Metrics aggregated")

	return m, nil
}

// costPer divides spend by a conversion count. Zero conversions with
// positive spend is +Inf: the platform charged for nothing, which is the
// strongest possible violation, not a missing value.
func costPer(spend float64, conversions int) float64 {
	if conversions == 0 {
		if spend == 0 {
			return 0
		}
		return math.Inf(1)
	}
	return spend / float64(conversions)
}

// Analyze aggregates one ad and evaluates it against thresholds.
// custom is an optional per-request threshold override.
func (s *Service) Analyze(ctx context.Context, adID, timeframe string, custom map[string]interface{}) (*Analysis, error) {
	m, err := s.Aggregate(ctx, adID, timeframe)
	if err != nil {
		return nil, err
	}
	t := s.thresholds.Effective(custom)

	a := &Analysis{
		MetricsRecord:    *m,
		ShouldPause:      ShouldPause(*m, t),
		PerformanceScore: PerformanceScore(*m, t),
	}
	if a.ShouldPause {
		a.PauseReasons = PauseReasons(*m, t)
	}
	return a, nil
}
