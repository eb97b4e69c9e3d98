// Package handlers provides HTTP handlers for the deal catalog.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/aristath/dealflow/internal/domain"
	"github.com/aristath/dealflow/internal/modules/catalog"
	"github.com/aristath/dealflow/internal/utils"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

const maxPageSize = 500

// Handler handles deal catalog HTTP requests
type Handler struct {
	service *catalog.Service
	log     zerolog.Logger
}

// NewHandler creates a new catalog handler
func NewHandler(service *catalog.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "catalog").Logger(),
	}
}

// HandleCreate handles POST /api/deals
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var deal domain.Deal
	if err := json.NewDecoder(r.Body).Decode(&deal); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	created, err := h.service.Create(r.Context(), deal)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeData(w, http.StatusCreated, created)
}

// HandleList handles GET /api/deals
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := catalog.ListFilter{
		Industry: q.Get("industry"),
		Region:   q.Get("region"),
		Offset:   queryInt(q.Get("offset"), 0),
		Limit:    queryInt(q.Get("limit"), 100),
	}
	if filter.Limit > maxPageSize {
		filter.Limit = maxPageSize
	}
	for _, s := range utils.ParseList(q.Get("status")) {
		status := domain.DealStatus(s)
		if !status.Valid() {
			h.writeError(w, http.StatusBadRequest, "Unknown status: "+s)
			return
		}
		filter.Statuses = append(filter.Statuses, status)
	}

	deals, total, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if deals == nil {
		deals = []domain.Deal{}
	}

	h.writeData(w, http.StatusOK, map[string]interface{}{
		"deals":  deals,
		"total":  total,
		"offset": filter.Offset,
		"limit":  filter.Limit,
	})
}

// HandleGet handles GET /api/deals/{id}
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	deal, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	history, err := h.service.History(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if history == nil {
		history = []catalog.StatusChange{}
	}

	h.writeData(w, http.StatusOK, map[string]interface{}{
		"deal":           deal,
		"status_history": history,
	})
}

// HandleUpdateAttributes handles PUT /api/deals/{id}/attributes
func (h *Handler) HandleUpdateAttributes(w http.ResponseWriter, r *http.Request) {
	var attrs domain.Attributes
	if err := json.NewDecoder(r.Body).Decode(&attrs); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	deal, err := h.service.UpdateAttributes(r.Context(), chi.URLParam(r, "id"), attrs)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeData(w, http.StatusOK, deal)
}

// HandleSetStatus handles PUT /api/deals/{id}/status
func (h *Handler) HandleSetStatus(w http.ResponseWriter, r *http.Request) {
	var request struct {
		Status domain.DealStatus `json:"status"`
		Reason string            `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	deal, err := h.service.SetStatus(r.Context(), chi.URLParam(r, "id"), request.Status, request.Reason)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeData(w, http.StatusOK, deal)
}

func queryInt(raw string, def int) int {
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrDealNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, catalog.ErrInvalidDeal):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrDuplicateDeal), errors.Is(err, domain.ErrInvalidTransition):
		h.writeError(w, http.StatusConflict, err.Error())
	default:
		h.log.Error().Err(err).Msg("Catalog request failed")
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
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
