package handlers

import "github.com/go-chi/chi/v5"

// RegisterRoutes registers opportunity view routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/investors/{id}/opportunities", h.HandleGetOpportunities)
	r.Post("/investors/{id}/opportunities/recompute", h.HandleRecompute)
}
