package kpi

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/readstreak/adpilot/internal/domain"
)

// scanTimeframe is the behavioral window scans evaluate ads over.
const scanTimeframe = "7d"

// AdLister enumerates the account's campaigns and their ads.
type AdLister interface {
	ActiveCampaigns(ctx context.Context) ([]domain.Campaign, error)
	CampaignAds(ctx context.Context, campaignID string) ([]domain.Ad, error)
}

// Scanner walks every active ad on the account and evaluates it against
// the threshold policy. One broken ad never aborts a scan: per-ad
// failures are logged and skipped, only account-level enumeration
// failures surface as errors.
type Scanner struct {
	meta    AdLister
	service *Service
	log     zerolog.Logger
}

// NewScanner creates a scanner on top of the aggregator service.
func NewScanner(meta AdLister, service *Service, log zerolog.Logger) *Scanner {
	return &Scanner{
		meta:    meta,
		service: service,
		log:     log.With().Str("component", "kpi-scanner").Logger(),
	}
}

// Underperforming returns every active ad whose metrics violate the
// effective thresholds. custom overrides individual threshold fields for
// this scan only.
func (sc *Scanner) Underperforming(ctx context.Context, custom map[string]interface{}) ([]AdResult, error) {
	t := sc.service.Thresholds().Effective(custom)

	results := []AdResult{}
	err := sc.forEachActiveAd(ctx, func(c domain.Campaign, ad domain.Ad, m MetricsRecord) {
		if !ShouldPause(m, t) {
			return
		}
		results = append(results, AdResult{
			Analysis: Analysis{
				MetricsRecord:    m,
				ShouldPause:      true,
				PauseReasons:     PauseReasons(m, t),
				PerformanceScore: PerformanceScore(m, t),
			},
			AdName:       ad.Name,
			CampaignID:   c.ID,
			CampaignName: c.Name,
			AdStatus:     ad.EffectiveStatus,
			CreatedTime:  ad.CreatedTime,
		})
	})
	if err != nil {
		return nil, err
	}

	sc.log.Info().Int("underperforming", len(results)).Msg("Underperformance scan completed")
	return results, nil
}

// NearThreshold returns every active ad inside the warning band.
func (sc *Scanner) NearThreshold(ctx context.Context, multiplier float64, custom map[string]interface{}) ([]AdResult, error) {
	t := sc.service.Thresholds().Effective(custom)
	w := WarningBand(t, multiplier)

	results := []AdResult{}
	err := sc.forEachActiveAd(ctx, func(c domain.Campaign, ad domain.Ad, m MetricsRecord) {
		if !NearThreshold(m, t, w) {
			return
		}
		results = append(results, AdResult{
			Analysis: Analysis{
				MetricsRecord:    m,
				PerformanceScore: PerformanceScore(m, t),
			},
			AdName:         ad.Name,
			CampaignID:     c.ID,
			CampaignName:   c.Name,
			AdStatus:       ad.EffectiveStatus,
			CreatedTime:    ad.CreatedTime,
			WarningReasons: WarningReasons(m, w),
		})
	})
	if err != nil {
		return nil, err
	}

	sc.log.Info().Int("near_threshold", len(results)).Msg("Warning scan completed")
	return results, nil
}

// forEachActiveAd enumerates active campaigns and their active ads,
// aggregates metrics for each and hands them to visit. Ad listing or
// aggregation failures for individual campaigns/ads are logged and
// skipped.
func (sc *Scanner) forEachActiveAd(ctx context.Context, visit func(domain.Campaign, domain.Ad, MetricsRecord)) error {
	campaigns, err := sc.meta.ActiveCampaigns(ctx)
	if err != nil {
		return fmt.Errorf("failed to enumerate campaigns: %w", err)
	}

	for _, c := range campaigns {
		if c.EffectiveStatus != "ACTIVE" {
			continue
		}

		ads, err := sc.meta.CampaignAds(ctx, c.ID)
		if err != nil {
			sc.log.Warn().Err(err).Str("campaign_id", c.ID).Msg("Skipping campaign, ad listing failed")
			continue
		}

		for _, ad := range ads {
			if !ad.IsActive() {
				continue
			}
			m, err := sc.service.Aggregate(ctx, ad.ID, scanTimeframe)
			if err != nil {
				sc.log.Warn().Err(err).Str("ad_id", ad.ID).Msg("Skipping ad, aggregation failed")
				continue
			}
			visit(c, ad, *m)
		}
	}
	return nil
}
