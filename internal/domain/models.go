// Package domain holds the shared domain types for the ad monitoring system.
// It has no infrastructure dependencies.
package domain

import "time"

// Campaign is an ad campaign as reported by the ads platform.
type Campaign struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Status          string    `json:"status"`
	EffectiveStatus string    `json:"effective_status"`
	Objective       string    `json:"objective,omitempty"`
	DailyBudget     string    `json:"daily_budget,omitempty"`
	LifetimeBudget  string    `json:"lifetime_budget,omitempty"`
	CreatedTime     time.Time `json:"created_time"`
	UpdatedTime     time.Time `json:"updated_time"`
}

// Ad is a single ad within a campaign or ad set.
type Ad struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Status          string    `json:"status"`
	EffectiveStatus string    `json:"effective_status"`
	AdSetID         string    `json:"adset_id,omitempty"`
	CreatedTime     time.Time `json:"created_time"`
}

// IsActive reports whether the platform considers the ad deliverable.
func (a Ad) IsActive() bool {
	return a.EffectiveStatus == "ACTIVE"
}

// ActionStat is one entry of the platform's generic actions array,
// keyed by a loosely-typed action-type string.
type ActionStat struct {
	Value         int64 `json:"value"`
	OneDayClick   int64 `json:"1d_click"`
	SevenDayClick int64 `json:"7d_click"`
	OneDayView    int64 `json:"1d_view"`
	SevenDayView  int64 `json:"7d_view"`
}

// ActionStats maps action-type tags (e.g. "mobile_app_install") to their stats.
type ActionStats map[string]ActionStat

// Lookup returns the stat for the given action type with an explicit
// found/not-found result instead of a zero value ambiguity.
func (s ActionStats) Lookup(actionType string) (ActionStat, bool) {
	stat, ok := s[actionType]
	return stat, ok
}

// AdInsights holds delivery metrics for one ad over a reporting window.
// Numeric fields arrive from the platform as strings and are parsed leniently.
type AdInsights struct {
	AdID        string      `json:"ad_id"`
	Impressions int64       `json:"impressions"`
	Clicks      int64       `json:"clicks"`
	CTR         float64     `json:"ctr"`
	CPM         float64     `json:"cpm"`
	CPC         float64     `json:"cpc"`
	Spend       float64     `json:"spend"`
	Reach       int64       `json:"reach"`
	Frequency   float64     `json:"frequency"`
	Actions     ActionStats `json:"actions"`
	CPA         float64     `json:"cpa"`
}

// UserRow is one per-user install row from the analytics store,
// attributed to an ad.
type UserRow struct {
	AdID              string
	UserID            string
	InstallDate       time.Time
	StreakActivated   bool
	FirstPurchaseMade bool
	TotalRevenue      float64
	TotalSessions     int64
	TotalTimeSpent    float64 // seconds
	Day1Active        bool
	Day3Active        bool
	Day7Active        bool
}

// PauseAuditEntry is the record appended to the analytics store when an ad
// is paused automatically. The executor only ever appends these.
type PauseAuditEntry struct {
	AdID      string                 `json:"ad_id"`
	Reason    string                 `json:"pause_reason"`
	Metrics   map[string]interface{} `json:"metrics_at_pause"`
	PausedAt  time.Time              `json:"pause_date"`
	Automated bool                   `json:"automated"`
}
