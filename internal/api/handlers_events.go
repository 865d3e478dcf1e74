package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pixelfly/pixeltrack/internal/dispatch"
	"github.com/pixelfly/pixeltrack/internal/models"
)

// EventHandler exposes the operator surface over the delayed queue:
// listing, stats, manual fire, bulk fire, delete.
type EventHandler struct {
	dispatcher *dispatch.Dispatcher
}

func NewEventHandler(dispatcher *dispatch.Dispatcher) *EventHandler {
	return &EventHandler{dispatcher: dispatcher}
}

func (h *EventHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "pixeltrack",
	})
}

func (h *EventHandler) Pending(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)

	events, err := h.dispatcher.PendingEvents(r.Context(), limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list pending events")
		return
	}
	if events == nil {
		events = []models.PendingEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}

func (h *EventHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.dispatcher.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *EventHandler) Fire(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	fired, err := h.dispatcher.FireEvent(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to fire event")
		return
	}
	if !fired {
		writeError(w, http.StatusConflict, "event not fired: missing, already fired, or send failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"event_id": id,
		"fired":    true,
	})
}

func (h *EventHandler) FireAll(w http.ResponseWriter, r *http.Request) {
	fired, failed, err := h.dispatcher.FireAll(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to fire events")
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{
		"fired":  fired,
		"failed": failed,
	})
}

func (h *EventHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	deleted, err := h.dispatcher.DeleteEvent(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete event")
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
