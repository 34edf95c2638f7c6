package meta

import (
	"strconv"
	"time"

	"github.com/readstreak/adpilot/internal/domain"
)

// Graph API timestamps look like "2025-08-14T10:21:08-0700".
const graphTimeLayout = "2006-01-02T15:04:05-0700"

// listEnvelope is the common shape of Graph API collection responses.
type listEnvelope struct {
	Data   []map[string]interface{} `json:"data"`
	Paging struct {
		Next string `json:"next"`
	} `json:"paging"`
}

// errorEnvelope is the Graph API error wrapper.
type errorEnvelope struct {
	Error *apiError `json:"error"`
}

type apiError struct {
	Message   string `json:"message"`
	Type      string `json:"type"`
	Code      int    `json:"code"`
	FBTraceID string `json:"fbtrace_id"`
}

// The Graph API reports numeric insight fields as strings. These helpers
// parse leniently, degrading to zero on anything malformed.
func asString(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func asInt(m map[string]interface{}, key string) int64 {
	switch v := m[key].(type) {
	case string:
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	case float64:
		return int64(v)
	}
	return 0
}

func asFloat(m map[string]interface{}, key string) float64 {
	switch v := m[key].(type) {
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	case float64:
		return v
	}
	return 0
}

func asTime(m map[string]interface{}, key string) time.Time {
	s := asString(m, key)
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(graphTimeLayout, s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return time.Time{}
}

func parseCampaign(m map[string]interface{}) domain.Campaign {
	c := domain.Campaign{
		ID:              asString(m, "id"),
		Name:            asString(m, "name"),
		Status:          asString(m, "status"),
		EffectiveStatus: asString(m, "effective_status"),
		Objective:       asString(m, "objective"),
		DailyBudget:     asString(m, "daily_budget"),
		LifetimeBudget:  asString(m, "lifetime_budget"),
		CreatedTime:     asTime(m, "created_time"),
		UpdatedTime:     asTime(m, "updated_time"),
	}
	if c.EffectiveStatus == "" {
		c.EffectiveStatus = c.Status
	}
	return c
}

func parseAd(m map[string]interface{}) domain.Ad {
	return domain.Ad{
		ID:              asString(m, "id"),
		Name:            asString(m, "name"),
		Status:          asString(m, "status"),
		EffectiveStatus: asString(m, "effective_status"),
		AdSetID:         asString(m, "adset_id"),
		CreatedTime:     asTime(m, "created_time"),
	}
}

// parseActions turns the platform's generic actions array into a tagged
// lookup map. Unknown tags are carried through untouched; consumers use
// ActionStats.Lookup for an explicit not-found result.
func parseActions(raw interface{}) domain.ActionStats {
	stats := domain.ActionStats{}
	entries, ok := raw.([]interface{})
	if !ok {
		return stats
	}
	for _, e := range entries {
		m, ok := e.(map[string]interface{})
		if !ok {
			continue
		}
		actionType := asString(m, "action_type")
		if actionType == "" {
			continue
		}
		stats[actionType] = domain.ActionStat{
			Value:         asInt(m, "value"),
			OneDayClick:   asInt(m, "1d_click"),
			SevenDayClick: asInt(m, "7d_click"),
			OneDayView:    asInt(m, "1d_view"),
			SevenDayView:  asInt(m, "7d_view"),
		}
	}
	return stats
}

func parseInsights(m map[string]interface{}) domain.AdInsights {
	ins := domain.AdInsights{
		AdID:        asString(m, "ad_id"),
		Impressions: asInt(m, "impressions"),
		Clicks:      asInt(m, "clicks"),
		CTR:         asFloat(m, "ctr"),
		CPM:         asFloat(m, "cpm"),
		CPC:         asFloat(m, "cpc"),
		Spend:       asFloat(m, "spend"),
		Reach:       asInt(m, "reach"),
		Frequency:   asFloat(m, "frequency"),
		Actions:     parseActions(m["actions"]),
	}
	ins.CPA = calculateCPA(ins)
	return ins
}

// calculateCPA derives cost per install from the actions array.
// Returns 0 when spend is zero or no install action is present.
func calculateCPA(ins domain.AdInsights) float64 {
	if ins.Spend == 0 {
		return 0
	}
	installs, ok := ins.Actions.Lookup("mobile_app_install")
	if !ok {
		installs, ok = ins.Actions.Lookup("app_install")
	}
	if !ok || installs.Value == 0 {
		return 0
	}
	return ins.Spend / float64(installs.Value)
}
