package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all KPI routes under /api/kpi
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/kpi", func(r chi.Router) {
		r.Get("/underperforming", h.HandleGetUnderperforming)
		r.Get("/warnings", h.HandleGetWarnings)
		r.Get("/ad/{adID}", h.HandleGetAdAnalysis)
		r.Get("/dashboard", h.HandleGetDashboard)

		r.Get("/thresholds", h.HandleGetThresholds)
		r.Post("/thresholds", h.HandleUpdateThresholds)

		r.Post("/pause", h.HandlePauseAds)
		r.Post("/pause-underperforming", h.HandlePauseUnderperforming)
	})
}
