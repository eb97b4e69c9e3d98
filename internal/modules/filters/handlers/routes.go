package handlers

import "github.com/go-chi/chi/v5"

// RegisterRoutes registers all filter set routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/investors", h.HandleListInvestors)
	r.Put("/investors/{id}/filters", h.HandleReplace)
	r.Get("/investors/{id}/filters", h.HandleGet)
	r.Delete("/investors/{id}/filters", h.HandleDelete)
	r.Get("/investors/{id}/filters/history", h.HandleHistory)
}
