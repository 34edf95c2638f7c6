// Package handlers provides HTTP handlers for the performance monitor.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/readstreak/adpilot/internal/modules/monitor"
)

// Handler handles monitoring HTTP requests
type Handler struct {
	monitor *monitor.Monitor
	log     zerolog.Logger
}

// NewHandler creates a new monitoring handler
func NewHandler(m *monitor.Monitor, log zerolog.Logger) *Handler {
	return &Handler{
		monitor: m,
		log:     log.With().Str("handler", "monitoring").Logger(),
	}
}

// HandleGetStatus handles GET /api/monitoring/status
func (h *Handler) HandleGetStatus(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.monitor.Status())
}

// HandleStart handles POST /api/monitoring/start
func (h *Handler) HandleStart(w http.ResponseWriter, r *http.Request) {
	if err := h.monitor.Start(); err != nil {
		h.writeError(w, http.StatusInternalServerError, "Failed to start monitor: "+err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, h.monitor.Status())
}

// HandleStop handles POST /api/monitoring/stop
func (h *Handler) HandleStop(w http.ResponseWriter, r *http.Request) {
	h.monitor.Stop()
	h.writeJSON(w, http.StatusOK, h.monitor.Status())
}

// HandleTriggerCheck handles POST /api/monitoring/check
func (h *Handler) HandleTriggerCheck(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()
	run, err := h.monitor.TriggerCheck(r.Context())
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "Performance check failed: "+err.Error())
		return
	}

	h.log.Info().
		Dur("elapsed", time.Since(startTime)).
		Int("ads_paused", run.AdsPaused).
		Msg("Manual performance check completed")

	h.writeJSON(w, http.StatusOK, run)
}

// HandleGetLogs handles GET /api/monitoring/logs
func (h *Handler) HandleGetLogs(w http.ResponseWriter, r *http.Request) {
	lines := 50
	if raw := r.URL.Query().Get("lines"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 1000 {
			h.writeError(w, http.StatusBadRequest, "Lines must be between 1 and 1000")
			return
		}
		lines = n
	}

	entries, err := h.monitor.Audit().Tail(lines)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "Failed to read audit log: "+err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":   len(entries),
		"entries": entries,
	})
}

// HandleGetHistory handles GET /api/monitoring/history
func (h *Handler) HandleGetHistory(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 500 {
			h.writeError(w, http.StatusBadRequest, "Limit must be between 1 and 500")
			return
		}
		limit = n
	}

	runs, err := h.monitor.History().Recent(r.Context(), limit)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "Failed to read sweep history: "+err.Error())
		return
	}
	if runs == nil {
		runs = []monitor.SweepRun{}
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(runs),
		"runs":  runs,
	})
}

// HandleGetCampaigns handles GET /api/monitoring/campaigns
func (h *Handler) HandleGetCampaigns(w http.ResponseWriter, r *http.Request) {
	campaigns, err := h.monitor.Tracker().All(r.Context())
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "Failed to read tracked campaigns: "+err.Error())
		return
	}
	if campaigns == nil {
		campaigns = []monitor.TrackedCampaign{}
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":     len(campaigns),
		"campaigns": campaigns,
	})
}

// HandleTrackCampaign handles POST /api/monitoring/campaigns
func (h *Handler) HandleTrackCampaign(w http.ResponseWriter, r *http.Request) {
	var request struct {
		CampaignID   string              `json:"campaignId"`
		CampaignName string              `json:"campaignName"`
		Ads          []monitor.TrackedAd `json:"ads"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if request.CampaignID == "" {
		h.writeError(w, http.StatusBadRequest, "Campaign ID is required")
		return
	}
	if len(request.Ads) == 0 {
		h.writeError(w, http.StatusBadRequest, "At least one ad is required")
		return
	}

	campaign := monitor.TrackedCampaign{
		ID:   request.CampaignID,
		Name: request.CampaignName,
		Ads:  request.Ads,
	}
	if err := h.monitor.Tracker().Track(r.Context(), campaign); err != nil {
		h.writeError(w, http.StatusInternalServerError, "Failed to track campaign: "+err.Error())
		return
	}

	h.log.Info().
		Str("campaign_id", request.CampaignID).
		Int("ads", len(request.Ads)).
		Msg("Campaign enrolled in performance checks")

	h.writeJSON(w, http.StatusCreated, map[string]interface{}{
		"tracked":    true,
		"campaignId": request.CampaignID,
	})
}

// HandleUntrackCampaign handles DELETE /api/monitoring/campaigns/{campaignID}
func (h *Handler) HandleUntrackCampaign(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaignID")
	if campaignID == "" {
		h.writeError(w, http.StatusBadRequest, "Campaign ID is required")
		return
	}

	if err := h.monitor.Tracker().Untrack(r.Context(), campaignID); err != nil {
		h.writeError(w, http.StatusInternalServerError, "Failed to untrack campaign: "+err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"tracked":    false,
		"campaignId": campaignID,
	})
}

// HandleUpdateThresholds handles POST /api/monitoring/thresholds
func (h *Handler) HandleUpdateThresholds(w http.ResponseWriter, r *http.Request) {
	var partial map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&partial); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	merged, applied := h.monitor.UpdateThresholds(partial)

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"thresholds": merged,
		"applied":    applied,
	})
}

// Helper methods

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes an error response
func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{
		"error": message,
	})
}
