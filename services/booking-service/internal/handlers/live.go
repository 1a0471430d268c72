package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/salonflow/backend/libs/auth"
	"github.com/salonflow/backend/services/booking-service/internal/live"
)

// LiveHandler streams calendar changes to admin dashboards over SSE.
type LiveHandler struct {
	hub    *live.Hub
	logger *slog.Logger
}

func NewLiveHandler(hub *live.Hub, logger *slog.Logger) *LiveHandler {
	return &LiveHandler{hub: hub, logger: logger}
}

func (h *LiveHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/admin/live", h.stream)
}

func (h *LiveHandler) stream(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "authentication required"})
		return
	}
	if actor.Role != auth.RoleAdmin {
		writeJSON(w, http.StatusForbidden, errorBody{Error: "forbidden", Code: "forbidden"})
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "streaming unsupported"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	events, cancel := h.hub.Subscribe()
	defer cancel()

	// Heartbeat keeps intermediaries from closing the idle stream.
	heartbeat := time.NewTicker(25 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case ev, ok := <-events:
			if !ok {
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Kind, payload)
			flusher.Flush()
		}
	}
}
