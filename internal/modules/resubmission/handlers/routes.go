package handlers

import "github.com/go-chi/chi/v5"

// RegisterRoutes registers resubmission feed routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/resubmissions", h.HandleReplay)
	r.Get("/resubmissions/stream", h.HandleStream)
}
