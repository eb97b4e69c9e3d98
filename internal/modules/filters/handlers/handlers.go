// Package handlers provides HTTP handlers for investor filter sets.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/aristath/dealflow/internal/domain"
	"github.com/aristath/dealflow/internal/modules/filters"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler handles filter set HTTP requests
type Handler struct {
	service *filters.Service
	log     zerolog.Logger
}

// NewHandler creates a new filters handler
func NewHandler(service *filters.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "filters").Logger(),
	}
}

type filterSetResponse struct {
	*domain.InvestorFilterSet
	EffectiveThreshold float64 `json:"effective_threshold"`
}

func (h *Handler) present(set *domain.InvestorFilterSet) filterSetResponse {
	if set.AssessmentRules == nil {
		set.AssessmentRules = []domain.FilterRule{}
	}
	if set.RiskRules == nil {
		set.RiskRules = []domain.FilterRule{}
	}
	return filterSetResponse{
		InvestorFilterSet:  set,
		EffectiveThreshold: set.Threshold(h.service.DefaultThreshold()),
	}
}

// HandleReplace handles PUT /api/investors/{id}/filters
func (h *Handler) HandleReplace(w http.ResponseWriter, r *http.Request) {
	var request struct {
		AssessmentRules  []domain.FilterRule `json:"assessment_rules"`
		RiskRules        []domain.FilterRule `json:"risk_rules"`
		PassingThreshold *float64            `json:"passing_threshold"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error(), nil)
		return
	}

	set, err := h.service.Replace(r.Context(), &domain.InvestorFilterSet{
		InvestorID:       chi.URLParam(r, "id"),
		AssessmentRules:  request.AssessmentRules,
		RiskRules:        request.RiskRules,
		PassingThreshold: request.PassingThreshold,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeData(w, http.StatusOK, h.present(set))
}

// HandleGet handles GET /api/investors/{id}/filters
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	set, err := h.service.Get(chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeData(w, http.StatusOK, h.present(set))
}

// HandleHistory handles GET /api/investors/{id}/filters/history
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	history, err := h.service.History(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	versions := make([]filterSetResponse, len(history))
	for i, set := range history {
		versions[i] = h.present(set)
	}
	h.writeData(w, http.StatusOK, map[string]interface{}{
		"versions": versions,
		"count":    len(versions),
	})
}

// HandleDelete handles DELETE /api/investors/{id}/filters
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeData(w, http.StatusOK, map[string]interface{}{
		"investor_id": id,
		"deleted":     true,
	})
}

// HandleListInvestors handles GET /api/investors
func (h *Handler) HandleListInvestors(w http.ResponseWriter, r *http.Request) {
	sets := h.service.List()
	investors := make([]map[string]interface{}, 0, len(sets))
	for _, set := range sets {
		investors = append(investors, map[string]interface{}{
			"investor_id":      set.InvestorID,
			"version":          set.Version,
			"assessment_rules": len(set.AssessmentRules),
			"risk_rules":       len(set.RiskRules),
			"updated_at":       set.UpdatedAt,
		})
	}
	h.writeData(w, http.StatusOK, map[string]interface{}{
		"investors": investors,
		"count":     len(investors),
	})
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	var many filters.ValidationErrors
	var one *filters.ValidationError
	switch {
	case errors.As(err, &many):
		details := make([]string, len(many))
		for i, e := range many {
			details[i] = e.Error()
		}
		h.writeError(w, http.StatusBadRequest, "Invalid filter set", details)
	case errors.As(err, &one):
		h.writeError(w, http.StatusBadRequest, "Invalid filter set", []string{one.Error()})
	case errors.Is(err, domain.ErrFilterSetNotFound):
		h.writeError(w, http.StatusNotFound, err.Error(), nil)
	default:
		h.log.Error().Err(err).Msg("Filter request failed")
		h.writeError(w, http.StatusInternalServerError, "Internal server error", nil)
	}
}

func (h *Handler) writeData(w http.ResponseWriter, status int, data interface{}) {
	h.writeJSON(w, status, map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string, details []string) {
	body := map[string]interface{}{
		"message": message,
		"code":    http.StatusText(status),
	}
	if len(details) > 0 {
		body["details"] = details
	}
	h.writeJSON(w, status, map[string]interface{}{"error": body})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
