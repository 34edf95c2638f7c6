package monitor

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/readstreak/adpilot/internal/domain"
	"github.com/readstreak/adpilot/internal/modules/kpi"
)

const (
	// trackingWindow bounds how long an enrolled campaign stays in
	// scheduled checks. Older enrollments age out silently.
	trackingWindow = 30 * 24 * time.Hour

	// behavioralWindow is the analytics lookback per sweep.
	behavioralWindow = 7 * 24 * time.Hour

	sweepDatePreset = "last_7_days"
)

// CampaignInsightsSource provides per-ad delivery metrics for a whole
// campaign in one call.
type CampaignInsightsSource interface {
	CampaignInsights(ctx context.Context, campaignID, datePreset string) ([]domain.AdInsights, error)
}

// UserRowSource provides raw per-user install rows from the analytics store.
type UserRowSource interface {
	UserRowsByAd(ctx context.Context, adID string, since time.Time) ([]domain.UserRow, error)
}

// Pauser executes a batch of pauses. Satisfied by kpi.Executor.
type Pauser interface {
	PauseAll(ctx context.Context, ads []kpi.PauseCandidate, dryRun bool) kpi.BatchResult
}

// Sweeper runs one performance check over all tracked campaigns.
type Sweeper struct {
	meta       CampaignInsightsSource
	users      UserRowSource
	pauser     Pauser
	tracker    *Tracker
	history    *History
	audit      *AuditLog
	thresholds *sweepThresholdStore
	log        zerolog.Logger
}

type campaignCounts struct {
	adsChecked int
	adsPaused  int
	errors     int
}

// Run executes one sweep: every tracked campaign enrolled within the
// tracking window is checked and violating ads are paused. Per-campaign
// failures are recorded in the audit log and the sweep continues; only a
// tracker read failure aborts the run.
func (s *Sweeper) Run(ctx context.Context) (SweepRun, error) {
	run := SweepRun{StartedAt: time.Now().UTC()}

	campaigns, err := s.tracker.Recent(ctx, trackingWindow)
	if err != nil {
		return run, fmt.Errorf("failed to load tracked campaigns: %w", err)
	}
	if len(campaigns) == 0 {
		s.log.Info().Msg("No tracked campaigns, skipping performance check")
		run.CompletedAt = time.Now().UTC()
		return run, nil
	}

	thresholds := s.thresholds.Current()
	s.log.Info().Int("campaigns", len(campaigns)).Msg("Performance check started")

	for _, c := range campaigns {
		counts, err := s.checkCampaign(ctx, c, thresholds)
		if err != nil {
			s.log.Error().Err(err).Str("campaign_id", c.ID).Msg("Campaign check failed")
			s.audit.Error("campaign_check_failed", err, map[string]interface{}{
				"campaignId":   c.ID,
				"campaignName": c.Name,
			})
			run.Errors++
			continue
		}
		run.CampaignsChecked++
		run.AdsChecked += counts.adsChecked
		run.AdsPaused += counts.adsPaused
		run.Errors += counts.errors
	}

	run.CompletedAt = time.Now().UTC()
	s.audit.CheckCompleted(thresholds, run)

	if recorded, err := s.history.Record(ctx, run); err != nil {
		s.log.Error().Err(err).Msg("Failed to record sweep run")
	} else {
		run = recorded
	}

	s.log.Info().
		Int("campaigns_checked", run.CampaignsChecked).
		Int("ads_checked", run.AdsChecked).
		Int("ads_paused", run.AdsPaused).
		Int("errors", run.Errors).
		Msg("Performance check completed")

	return run, nil
}

// checkCampaign evaluates every tracked ad in one campaign and pauses the
// violators. Per-ad analytics failures are counted and skipped.
func (s *Sweeper) checkCampaign(ctx context.Context, c TrackedCampaign, t SweepThresholds) (campaignCounts, error) {
	var counts campaignCounts

	insights, err := s.meta.CampaignInsights(ctx, c.ID, sweepDatePreset)
	if err != nil {
		return counts, err
	}
	byAd := make(map[string]domain.AdInsights, len(insights))
	for _, ins := range insights {
		byAd[ins.AdID] = ins
	}

	since := time.Now().UTC().Add(-behavioralWindow)

	var candidates []kpi.PauseCandidate
	for _, ad := range c.Ads {
		rows, err := s.users.UserRowsByAd(ctx, ad.ID, since)
		if err != nil {
			s.log.Warn().Err(err).Str("ad_id", ad.ID).Msg("Skipping ad, analytics read failed")
			counts.errors++
			continue
		}
		rollup := kpi.RollupUserRows(rows)

		var ins *domain.AdInsights
		if row, ok := byAd[ad.ID]; ok {
			ins = &row
		}

		reasons, score := evaluateSweep(ins, rollup, len(rows) > 0, t)
		counts.adsChecked++
		if len(reasons) == 0 {
			continue
		}

		candidates = append(candidates, kpi.PauseCandidate{
			AdID:    ad.ID,
			AdName:  ad.Name,
			Reasons: reasons,
			Metrics: sweepSnapshot(ins, rollup, score),
		})
	}

	if len(candidates) == 0 {
		return counts, nil
	}

	result := s.pauser.PauseAll(ctx, candidates, false)
	counts.adsPaused = result.Successful
	counts.errors += result.Failed

	for _, outcome := range result.Results {
		if outcome.Status != "paused" {
			continue
		}
		if err := s.audit.Append("ad_paused", map[string]interface{}{
			"adId":         outcome.AdID,
			"adName":       outcome.AdName,
			"campaignId":   c.ID,
			"campaignName": c.Name,
			"reasons":      outcome.Reasons,
		}); err != nil {
			s.log.Error().Err(err).Str("ad_id", outcome.AdID).Msg("Failed to record pause event")
		}
	}

	return counts, nil
}

// evaluateSweep applies the sweep rule set to one ad. Delivery rules only
// fire on metrics the platform actually reported (zero means no data, not
// a violation); behavioral rules only fire when the ad has analytics rows.
// Returns the violations and a 0-100 score.
func evaluateSweep(ins *domain.AdInsights, rollup kpi.BehavioralRollup, hasRollup bool, t SweepThresholds) ([]string, int) {
	var reasons []string
	score := 100

	if ins != nil {
		if ins.CTR > 0 && ins.CTR < t.MinCTR {
			reasons = append(reasons, fmt.Sprintf("Low CTR: %.2f%% < %s%%", ins.CTR, trim(t.MinCTR)))
			score -= 20
		}
		if ins.CPM > 0 && ins.CPM > t.MaxCPM {
			reasons = append(reasons, fmt.Sprintf("High CPM: $%.2f > $%s", ins.CPM, trim(t.MaxCPM)))
			score -= 15
		}
		if ins.CPA > 0 && ins.CPA > t.MaxCPA {
			reasons = append(reasons, fmt.Sprintf("High CPA: $%.2f > $%s", ins.CPA, trim(t.MaxCPA)))
			score -= 25
		}
	}

	if hasRollup {
		if rollup.TotalUsers < t.MinInstalls {
			reasons = append(reasons, fmt.Sprintf("Insufficient installs: %d < %d", rollup.TotalUsers, t.MinInstalls))
			score -= 10
		}
		if rollup.Day1ActiveRate < t.MinDay1Retention {
			reasons = append(reasons, fmt.Sprintf("Low day 1 retention: %.1f%% < %s%%",
				rollup.Day1ActiveRate*100, trim(t.MinDay1Retention*100)))
			score -= 30
		}
		if rollup.Day3ActiveRate < t.MinDay3Retention {
			reasons = append(reasons, fmt.Sprintf("Low day 3 retention: %.1f%% < %s%%",
				rollup.Day3ActiveRate*100, trim(t.MinDay3Retention*100)))
			score -= 20
		}
		if rollup.Day7ActiveRate < t.MinDay7Retention {
			reasons = append(reasons, fmt.Sprintf("Low day 7 retention: %.1f%% < %s%%",
				rollup.Day7ActiveRate*100, trim(t.MinDay7Retention*100)))
			score -= 15
		}
		if rollup.AvgSessionCount < t.MinSessionCount {
			reasons = append(reasons, fmt.Sprintf("Low session count: %.1f < %s",
				rollup.AvgSessionCount, trim(t.MinSessionCount)))
			score -= 10
		}
		if rollup.AvgTimeSpent < t.MinTimeSpent {
			reasons = append(reasons, fmt.Sprintf("Low time spent: %.0fs < %ss",
				rollup.AvgTimeSpent, trim(t.MinTimeSpent)))
			score -= 10
		}

		if ins != nil && ins.Spend > 0 {
			roas := rollup.TotalRevenue / ins.Spend
			if roas < t.MinROAS {
				reasons = append(reasons, fmt.Sprintf("Low ROAS: %.2fx < %sx", roas, trim(t.MinROAS)))
				score -= 25
			}
		}
	}

	if score < 0 {
		score = 0
	}
	return reasons, score
}

func sweepSnapshot(ins *domain.AdInsights, rollup kpi.BehavioralRollup, score int) map[string]interface{} {
	snapshot := map[string]interface{}{
		"score":          score,
		"totalUsers":     rollup.TotalUsers,
		"day1ActiveRate": rollup.Day1ActiveRate,
		"day3ActiveRate": rollup.Day3ActiveRate,
		"day7ActiveRate": rollup.Day7ActiveRate,
		"avgSessions":    rollup.AvgSessionCount,
		"avgTimeSpent":   rollup.AvgTimeSpent,
		"totalRevenue":   rollup.TotalRevenue,
	}
	if ins != nil {
		snapshot["spend"] = ins.Spend
		snapshot["ctr"] = ins.CTR
		snapshot["cpm"] = ins.CPM
		snapshot["cpa"] = ins.CPA
	}
	return snapshot
}

// trim renders a threshold without trailing zeros.
func trim(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
