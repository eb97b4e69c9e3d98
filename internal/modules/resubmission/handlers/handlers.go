// Package handlers provides HTTP handlers for the applicant resubmission feed.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/aristath/dealflow/internal/modules/resubmission"
	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const (
	defaultReplayLimit = 100
	maxReplayLimit     = 1000
	writeTimeout       = 10 * time.Second
)

// Handler handles resubmission feed HTTP requests
type Handler struct {
	outbox *resubmission.Outbox
	hub    *resubmission.Hub
	log    zerolog.Logger
}

// NewHandler creates a new resubmission handler
func NewHandler(outbox *resubmission.Outbox, hub *resubmission.Hub, log zerolog.Logger) *Handler {
	return &Handler{
		outbox: outbox,
		hub:    hub,
		log:    log.With().Str("handler", "resubmission").Logger(),
	}
}

// HandleReplay handles GET /api/resubmissions?since=&limit=
func (h *Handler) HandleReplay(w http.ResponseWriter, r *http.Request) {
	since, err := queryInt64(r, "since", 0)
	if err != nil || since < 0 {
		h.writeError(w, http.StatusBadRequest, "since must be a non-negative integer")
		return
	}
	limit, err := queryInt64(r, "limit", defaultReplayLimit)
	if err != nil || limit <= 0 {
		h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}
	if limit > maxReplayLimit {
		limit = maxReplayLimit
	}

	records, err := h.outbox.Since(r.Context(), since, int(limit))
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to read outbox")
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	next := since
	if len(records) > 0 {
		next = records[len(records)-1].Seq
	}
	h.writeData(w, http.StatusOK, map[string]interface{}{
		"notices": records,
		"count":   len(records),
		"next":    next,
	})
}

// HandleStream handles GET /api/resubmissions/stream (websocket).
// With ?since= the stored backlog is sent before live notices.
func (h *Handler) HandleStream(w http.ResponseWriter, r *http.Request) {
	since, err := queryInt64(r, "since", -1)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "since must be an integer")
		return
	}

	// The stream outlives the server's per-request deadlines.
	rc := http.NewResponseController(w)
	_ = rc.SetReadDeadline(time.Time{})
	_ = rc.SetWriteDeadline(time.Time{})

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		h.log.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}
	defer conn.CloseNow()

	// Subscribe before replaying so nothing falls between backlog and live feed.
	live, cancel := h.hub.Subscribe()
	defer cancel()

	ctx := conn.CloseRead(r.Context())
	h.log.Debug().Int("subscribers", h.hub.Subscribers()).Msg("Resubmission stream opened")

	sent := make(map[string]bool)
	if since >= 0 {
		backlog, err := h.outbox.Since(ctx, since, maxReplayLimit)
		if err != nil {
			h.log.Error().Err(err).Msg("Failed to read outbox backlog")
			conn.Close(websocket.StatusInternalError, "backlog unavailable")
			return
		}
		for _, rec := range backlog {
			if err := write(ctx, conn, rec.ApplicantNotice); err != nil {
				return
			}
			sent[rec.ID] = true
		}
	}

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case notice, ok := <-live:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "")
				return
			}
			if sent[notice.ID] {
				continue
			}
			if err := write(ctx, conn, notice); err != nil {
				h.log.Debug().Err(err).Msg("Resubmission stream closed")
				return
			}
		}
	}
}

func write(ctx context.Context, conn *websocket.Conn, v interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, v)
}

func queryInt64(r *http.Request, key string, def int64) (int64, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	return strconv.ParseInt(raw, 10, 64)
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
