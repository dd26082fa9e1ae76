package simulation

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/meracare/frontdesk/internal/events"
)

// Publisher appends notifications to the stream.
type Publisher interface {
	Publish(ctx context.Context, n events.Notification) error
}

// Handler publishes synthetic notifications so a demo or test environment
// can drive the console without a live HIS. Mounted in development only.
type Handler struct {
	publisher Publisher
}

// NewHandler creates a simulation handler.
func NewHandler(publisher Publisher) *Handler {
	return &Handler{publisher: publisher}
}

// Routes registers the simulation routes.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/notify", h.PublishNotification)
	r.Post("/burst", h.PublishBurst)
	return r
}

// PublishNotification publishes one synthetic notification. Unknown types
// are rejected here; real consumers would silently drop them, which makes a
// typo in a demo script hard to notice.
func (h *Handler) PublishNotification(w http.ResponseWriter, r *http.Request) {
	var n events.Notification
	if err := json.NewDecoder(r.Body).Decode(&n); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !events.Known(n.Type) {
		writeError(w, http.StatusBadRequest, "unknown notification type: "+string(n.Type))
		return
	}

	if err := h.publisher.Publish(r.Context(), n); err != nil {
		writeError(w, http.StatusBadGateway, "failed to publish notification")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"published": n.Type,
		"timestamp": time.Now().UTC(),
	})
}

// PublishBurst publishes the same notification several times in a row, for
// exercising trigger coalescing by hand.
func (h *Handler) PublishBurst(w http.ResponseWriter, r *http.Request) {
	var req struct {
		events.Notification
		Count int `json:"count"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !events.Known(req.Type) {
		writeError(w, http.StatusBadRequest, "unknown notification type: "+string(req.Type))
		return
	}
	if req.Count < 1 || req.Count > 100 {
		writeError(w, http.StatusBadRequest, "count must be between 1 and 100")
		return
	}

	for i := 0; i < req.Count; i++ {
		if err := h.publisher.Publish(r.Context(), req.Notification); err != nil {
			writeError(w, http.StatusBadGateway, "failed to publish notification")
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"published": req.Type,
		"count":     req.Count,
		"timestamp": time.Now().UTC(),
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
