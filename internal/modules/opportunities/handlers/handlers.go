// Package handlers provides HTTP handlers for opportunity views.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/aristath/dealflow/internal/domain"
	"github.com/aristath/dealflow/internal/modules/opportunities"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// Handler handles opportunity view HTTP requests
type Handler struct {
	materializer *opportunities.Materializer
	log          zerolog.Logger
}

// NewHandler creates a new opportunities handler
func NewHandler(materializer *opportunities.Materializer, log zerolog.Logger) *Handler {
	return &Handler{
		materializer: materializer,
		log:          log.With().Str("handler", "opportunities").Logger(),
	}
}

// HandleGetOpportunities handles GET /api/investors/{id}/opportunities
func (h *Handler) HandleGetOpportunities(w http.ResponseWriter, r *http.Request) {
	investorID := chi.URLParam(r, "id")

	offset := queryInt(r, "offset", 0)
	limit := queryInt(r, "limit", defaultPageSize)
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	page, err := h.materializer.Page(investorID, offset, limit)
	if err != nil {
		if errors.Is(err, domain.ErrViewNotFound) {
			h.writeError(w, http.StatusNotFound, err.Error())
			return
		}
		h.log.Error().Err(err).Str("investor_id", investorID).Msg("Failed to page view")
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeData(w, http.StatusOK, page)
}

// HandleRecompute handles POST /api/investors/{id}/opportunities/recompute
func (h *Handler) HandleRecompute(w http.ResponseWriter, r *http.Request) {
	investorID := chi.URLParam(r, "id")

	res, err := h.materializer.Recompute(r.Context(), investorID, "api")
	if err != nil {
		if errors.Is(err, domain.ErrFilterSetNotFound) {
			h.writeError(w, http.StatusNotFound, err.Error())
			return
		}
		h.log.Error().Err(err).Str("investor_id", investorID).Msg("Recompute failed")
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	body := map[string]interface{}{
		"published": res.Published,
		"evaluated": res.Evaluated,
		"failed":    res.Failed,
	}
	if res.Reason != "" {
		body["reason"] = res.Reason
	}
	if res.View != nil {
		body["filter_set_version"] = res.View.FilterSetVersion
		body["visible"] = len(res.View.Entries)
	}
	h.writeData(w, http.StatusOK, body)
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
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
