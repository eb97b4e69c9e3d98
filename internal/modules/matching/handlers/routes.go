package handlers

import "github.com/go-chi/chi/v5"

// RegisterRoutes registers evaluation lookup routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/deals/{id}/evaluations", h.HandleGetDealEvaluations)
	r.Get("/deals/{id}/evaluations/{investorID}", h.HandleGetPairEvaluation)
}
