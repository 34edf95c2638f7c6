// Package handlers provides HTTP handlers for KPI analysis and pausing.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/readstreak/adpilot/internal/modules/kpi"
)

// Handler handles KPI HTTP requests
type Handler struct {
	service  *kpi.Service
	scanner  *kpi.Scanner
	executor *kpi.Executor
	log      zerolog.Logger
}

// NewHandler creates a new KPI handler
func NewHandler(service *kpi.Service, scanner *kpi.Scanner, executor *kpi.Executor, log zerolog.Logger) *Handler {
	return &Handler{
		service:  service,
		scanner:  scanner,
		executor: executor,
		log:      log.With().Str("handler", "kpi").Logger(),
	}
}

// HandleGetUnderperforming handles GET /api/kpi/underperforming
func (h *Handler) HandleGetUnderperforming(w http.ResponseWriter, r *http.Request) {
	custom, err := thresholdOverride(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid thresholds parameter: "+err.Error())
		return
	}

	startTime := time.Now()
	ads, err := h.scanner.Underperforming(r.Context(), custom)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "Scan failed: "+err.Error())
		return
	}

	h.log.Info().
		Int("underperforming", len(ads)).
		Dur("elapsed", time.Since(startTime)).
		Msg("Underperformance scan completed")

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":      len(ads),
		"ads":        ads,
		"thresholds": h.service.Thresholds().Effective(custom),
	})
}

// HandleGetWarnings handles GET /api/kpi/warnings
func (h *Handler) HandleGetWarnings(w http.ResponseWriter, r *http.Request) {
	custom, err := thresholdOverride(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid thresholds parameter: "+err.Error())
		return
	}

	multiplier := 0.8
	if raw := r.URL.Query().Get("multiplier"); raw != "" {
		m, err := strconv.ParseFloat(raw, 64)
		if err != nil || m <= 0 || m >= 1 {
			h.writeError(w, http.StatusBadRequest, "Multiplier must be between 0 and 1")
			return
		}
		multiplier = m
	}

	ads, err := h.scanner.NearThreshold(r.Context(), multiplier, custom)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "Scan failed: "+err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":      len(ads),
		"ads":        ads,
		"multiplier": multiplier,
	})
}

// HandleGetAdAnalysis handles GET /api/kpi/ad/{adID}
func (h *Handler) HandleGetAdAnalysis(w http.ResponseWriter, r *http.Request) {
	adID := chi.URLParam(r, "adID")
	if adID == "" {
		h.writeError(w, http.StatusBadRequest, "Ad ID is required")
		return
	}

	timeframe := r.URL.Query().Get("timeframe")
	if timeframe == "" {
		timeframe = "7d"
	}

	analysis, err := h.service.Analyze(r.Context(), adID, timeframe, nil)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "Analysis failed: "+err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, analysis)
}

// HandleGetThresholds handles GET /api/kpi/thresholds
func (h *Handler) HandleGetThresholds(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.service.Thresholds().Current())
}

// HandleUpdateThresholds handles POST /api/kpi/thresholds
func (h *Handler) HandleUpdateThresholds(w http.ResponseWriter, r *http.Request) {
	var partial map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&partial); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	merged, applied := h.service.Thresholds().Update(partial)

	h.log.Info().Strs("applied", applied).Msg("Thresholds updated")

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"thresholds": merged,
		"applied":    applied,
	})
}

// HandlePauseUnderperforming handles POST /api/kpi/pause-underperforming
func (h *Handler) HandlePauseUnderperforming(w http.ResponseWriter, r *http.Request) {
	var request struct {
		DryRun     bool                   `json:"dryRun"`
		Thresholds map[string]interface{} `json:"thresholds"`
	}
	// An empty body means a live run with active thresholds
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil && !errors.Is(err, io.EOF) {
		h.writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	ads, err := h.scanner.Underperforming(r.Context(), request.Thresholds)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "Scan failed: "+err.Error())
		return
	}

	candidates := make([]kpi.PauseCandidate, 0, len(ads))
	for _, ad := range ads {
		candidates = append(candidates, kpi.PauseCandidate{
			AdID:    ad.AdID,
			AdName:  ad.AdName,
			Reasons: ad.PauseReasons,
			Metrics: ad.Snapshot(),
		})
	}

	result := h.executor.PauseAll(r.Context(), candidates, request.DryRun)

	h.log.Info().
		Bool("dry_run", request.DryRun).
		Int("successful", result.Successful).
		Int("failed", result.Failed).
		Msg("Pause batch completed")

	h.writeJSON(w, http.StatusOK, result)
}

// HandlePauseAds handles POST /api/kpi/pause for operator-selected ads.
func (h *Handler) HandlePauseAds(w http.ResponseWriter, r *http.Request) {
	var request struct {
		AdIDs  []string `json:"adIds"`
		Reason string   `json:"reason"`
		DryRun bool     `json:"dryRun"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if len(request.AdIDs) == 0 {
		h.writeError(w, http.StatusBadRequest, "No ad IDs provided")
		return
	}
	if request.Reason == "" {
		request.Reason = "Manual pause"
	}

	candidates := make([]kpi.PauseCandidate, 0, len(request.AdIDs))
	for _, adID := range request.AdIDs {
		metrics := map[string]interface{}{}
		// Best effort metrics snapshot for the audit trail
		if m, err := h.service.Aggregate(r.Context(), adID, "7d"); err == nil {
			metrics = m.Snapshot()
		} else {
			h.log.Warn().Err(err).Str("ad_id", adID).Msg("Pausing without metrics snapshot")
		}
		candidates = append(candidates, kpi.PauseCandidate{
			AdID:    adID,
			Reasons: []string{request.Reason},
			Metrics: metrics,
		})
	}

	result := h.executor.PauseAll(r.Context(), candidates, request.DryRun)
	h.writeJSON(w, http.StatusOK, result)
}

// HandleGetDashboard handles GET /api/kpi/dashboard
func (h *Handler) HandleGetDashboard(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()

	under, err := h.scanner.Underperforming(r.Context(), nil)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "Scan failed: "+err.Error())
		return
	}
	warnings, err := h.scanner.NearThreshold(r.Context(), 0.8, nil)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "Scan failed: "+err.Error())
		return
	}

	dashboard := kpi.BuildDashboard(under, warnings, h.service.Thresholds().Current())

	h.log.Info().
		Int("underperforming", dashboard.UnderperformingCount).
		Int("warnings", dashboard.WarningCount).
		Dur("elapsed", time.Since(startTime)).
		Msg("Dashboard built")

	h.writeJSON(w, http.StatusOK, dashboard)
}

// thresholdOverride parses the optional thresholds query parameter, a
// JSON object of partial threshold overrides.
func thresholdOverride(r *http.Request) (map[string]interface{}, error) {
	raw := r.URL.Query().Get("thresholds")
	if raw == "" {
		return nil, nil
	}
	var partial map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &partial); err != nil {
		return nil, err
	}
	return partial, nil
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
