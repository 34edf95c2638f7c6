package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all monitoring routes under /api/monitoring
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/monitoring", func(r chi.Router) {
		r.Get("/status", h.HandleGetStatus)
		r.Post("/start", h.HandleStart)
		r.Post("/stop", h.HandleStop)
		r.Post("/check", h.HandleTriggerCheck)

		r.Get("/logs", h.HandleGetLogs)
		r.Get("/history", h.HandleGetHistory)

		r.Get("/campaigns", h.HandleGetCampaigns)
		r.Post("/campaigns", h.HandleTrackCampaign)
		r.Delete("/campaigns/{campaignID}", h.HandleUntrackCampaign)

		r.Post("/thresholds", h.HandleUpdateThresholds)
	})
}
