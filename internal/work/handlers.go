package work

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// Handlers provides HTTP handlers for the work processor
type Handlers struct {
	processor  *Processor
	registry   *Registry
	completion *CompletionTracker
}

// NewHandlers creates new HTTP handlers for the work processor
func NewHandlers(processor *Processor, registry *Registry, completion *CompletionTracker) *Handlers {
	return &Handlers{
		processor:  processor,
		registry:   registry,
		completion: completion,
	}
}

// RegisterRoutes registers HTTP routes for work inspection
func (h *Handlers) RegisterRoutes(r chi.Router) {
	r.Route("/work", func(r chi.Router) {
		r.Get("/types", h.ListWorkTypes)
		r.Get("/status", h.Status)
	})
}

// ListWorkTypes returns all registered work types
func (h *Handlers) ListWorkTypes(w http.ResponseWriter, r *http.Request) {
	types := h.registry.ByPriority()

	response := make([]map[string]any, 0, len(types))
	for _, wt := range types {
		response = append(response, map[string]any{
			"id":       wt.ID,
			"priority": wt.Priority.String(),
		})
	}

	writeJSON(w, http.StatusOK, response)
}

// Status returns queue counters, queued items and recent completions
func (h *Handlers) Status(w http.ResponseWriter, r *http.Request) {
	pending := h.processor.Pending()
	queued := make([]map[string]any, 0, len(pending))
	for _, item := range pending {
		queued = append(queued, map[string]any{
			"id":         item.ID,
			"priority":   item.Priority.String(),
			"coalesced":  item.Coalesced,
			"created_at": item.CreatedAt.Format(time.RFC3339),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"stats":       h.processor.Stats(),
		"queued":      queued,
		"completions": h.completion.Snapshot(),
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"data": data,
		"metadata": map[string]any{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}
