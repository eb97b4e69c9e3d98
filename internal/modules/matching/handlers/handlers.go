// Package handlers provides HTTP handlers for evaluation result lookups.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/aristath/dealflow/internal/domain"
	"github.com/aristath/dealflow/internal/modules/matching"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler handles evaluation result HTTP requests
type Handler struct {
	ledger *matching.Ledger
	log    zerolog.Logger
}

// NewHandler creates a new evaluation results handler
func NewHandler(ledger *matching.Ledger, log zerolog.Logger) *Handler {
	return &Handler{
		ledger: ledger,
		log:    log.With().Str("handler", "matching").Logger(),
	}
}

// HandleGetDealEvaluations handles GET /api/deals/{id}/evaluations
func (h *Handler) HandleGetDealEvaluations(w http.ResponseWriter, r *http.Request) {
	dealID := chi.URLParam(r, "id")

	results, err := h.ledger.LatestForDeal(r.Context(), dealID)
	if err != nil {
		h.log.Error().Err(err).Str("deal_id", dealID).Msg("Failed to load evaluations")
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if results == nil {
		results = []*domain.EvaluationResult{}
	}

	h.writeData(w, http.StatusOK, map[string]interface{}{
		"deal_id":     dealID,
		"evaluations": results,
		"count":       len(results),
	})
}

// HandleGetPairEvaluation handles GET /api/deals/{id}/evaluations/{investorID}
func (h *Handler) HandleGetPairEvaluation(w http.ResponseWriter, r *http.Request) {
	dealID := chi.URLParam(r, "id")
	investorID := chi.URLParam(r, "investorID")

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	history, err := h.ledger.History(r.Context(), dealID, investorID, limit)
	if err != nil {
		h.log.Error().Err(err).Str("deal_id", dealID).Str("investor_id", investorID).Msg("Failed to load evaluation history")
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if len(history) == 0 {
		h.writeError(w, http.StatusNotFound, "no evaluation recorded for this deal and investor")
		return
	}

	h.writeData(w, http.StatusOK, map[string]interface{}{
		"latest":  history[0],
		"history": history,
	})
}

func (h *Handler) writeData(w http.ResponseWriter, status int, data interface{}) {
	h.writeJSON(w, status, map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"message": message,
			"code":    http.StatusText(status),
		},
	})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
