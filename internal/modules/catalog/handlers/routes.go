package handlers

import "github.com/go-chi/chi/v5"

// RegisterRoutes registers all deal catalog routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/deals", h.HandleCreate)
	r.Get("/deals", h.HandleList)
	r.Get("/deals/{id}", h.HandleGet)
	r.Put("/deals/{id}/attributes", h.HandleUpdateAttributes)
	r.Put("/deals/{id}/status", h.HandleSetStatus)
}
