package kpi

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/readstreak/adpilot/internal/domain"
)

// pauseDelay spaces successive pause calls so a large batch does not burst
// against the ad platform. Not applied before the first pause.
const pauseDelay = 500 * time.Millisecond

// AdPauser issues the actual status change on the ad platform.
type AdPauser interface {
	PauseAd(ctx context.Context, adID string) error
}

// AuditAppender records pause actions in the append-only audit store.
type AuditAppender interface {
	AppendPauseAudit(ctx context.Context, entry domain.PauseAuditEntry) error
}

// PauseCandidate is one ad selected for pausing, with the reasons and a
// metrics snapshot for the audit trail.
type PauseCandidate struct {
	AdID    string                 `json:"adId"`
	AdName  string                 `json:"adName"`
	Reasons []string               `json:"reasons"`
	Metrics map[string]interface{} `json:"metrics"`
}

// PauseOutcome is the per-ad result of a pause batch.
type PauseOutcome struct {
	AdID    string   `json:"adId"`
	AdName  string   `json:"adName"`
	Status  string   `json:"status"` // "paused", "would_pause" or "error"
	Reasons []string `json:"reasons"`
	Error   string   `json:"error,omitempty"`
}

// BatchResult summarizes one pause batch.
type BatchResult struct {
	DryRun     bool           `json:"dryRun"`
	WouldPause int            `json:"wouldPause,omitempty"`
	Successful int            `json:"successful"`
	Failed     int            `json:"failed"`
	Results    []PauseOutcome `json:"results"`
}

// Executor pauses batches of ads sequentially and records each action in
// the audit store.
type Executor struct {
	meta      AdPauser
	audit     AuditAppender
	automated bool
	delay     time.Duration
	log       zerolog.Logger
}

// NewExecutor creates an executor. automated marks whether audit entries
// from this executor come from the scheduler rather than an operator.
func NewExecutor(meta AdPauser, audit AuditAppender, automated bool, log zerolog.Logger) *Executor {
	return &Executor{
		meta:      meta,
		audit:     audit,
		automated: automated,
		delay:     pauseDelay,
		log:       log.With().Str("component", "pause-executor").Logger(),
	}
}

// PauseAll pauses every candidate in order. With dryRun set, no platform
// calls and no audit writes happen; the result reports what would have
// been paused. A failing ad (platform call or audit write) is recorded
// and the batch continues.
func (e *Executor) PauseAll(ctx context.Context, ads []PauseCandidate, dryRun bool) BatchResult {
	result := BatchResult{DryRun: dryRun, Results: make([]PauseOutcome, 0, len(ads))}

	if dryRun {
		for _, ad := range ads {
			result.Results = append(result.Results, PauseOutcome{
				AdID:    ad.AdID,
				AdName:  ad.AdName,
				Status:  "would_pause",
				Reasons: ad.Reasons,
			})
		}
		result.WouldPause = len(ads)
		return result
	}

	for i, ad := range ads {
		if i > 0 {
			select {
			case <-time.After(e.delay):
			case <-ctx.Done():
			}
		}

		outcome := PauseOutcome{AdID: ad.AdID, AdName: ad.AdName, Reasons: ad.Reasons}
		if err := e.pauseOne(ctx, ad); err != nil {
			outcome.Status = "error"
			outcome.Error = err.Error()
			result.Failed++
			e.log.Error().Err(err).Str("ad_id", ad.AdID).Msg("Failed to pause ad")
		} else {
			outcome.Status = "paused"
			result.Successful++
			e.log.Info().
				Str("ad_id", ad.AdID).
				Str("ad_name", ad.AdName).
				Strs("reasons", ad.Reasons).
				Msg("Ad paused for underperformance")
		}
		result.Results = append(result.Results, outcome)
	}

	return result
}

// pauseOne pauses a single ad and appends the audit entry. An audit
// failure after a successful pause still fails the ad so the batch result
// never overstates what was recorded.
func (e *Executor) pauseOne(ctx context.Context, ad PauseCandidate) error {
	if err := e.meta.PauseAd(ctx, ad.AdID); err != nil {
		return err
	}

	entry := domain.PauseAuditEntry{
		AdID:      ad.AdID,
		Reason:    joinReasons(ad.Reasons),
		Metrics:   ad.Metrics,
		PausedAt:  time.Now().UTC(),
		Automated: e.automated,
	}
	return e.audit.AppendPauseAudit(ctx, entry)
}

func joinReasons(reasons []string) string {
	out := ""
	for i, r := range reasons {
		if i > 0 {
			out += "; "
		}
		out += r
	}
	return out
}
