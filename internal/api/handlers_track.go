package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pixelfly/pixeltrack/internal/dedup"
	"github.com/pixelfly/pixeltrack/internal/dispatch"
	"github.com/pixelfly/pixeltrack/internal/metrics"
)

// TrackHandler receives browser-side purchase pushes. The dedup guard
// suppresses a second push for the same order; the guard is best-effort and
// the server-side record state remains authoritative.
type TrackHandler struct {
	guard      *dedup.Guard
	dispatcher *dispatch.Dispatcher
}

func NewTrackHandler(guard *dedup.Guard, dispatcher *dispatch.Dispatcher) *TrackHandler {
	return &TrackHandler{guard: guard, dispatcher: dispatcher}
}

type trackPurchaseRequest struct {
	OrderID int64           `json:"order_id"`
	Payload json.RawMessage `json:"payload"`
}

func (h *TrackHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBody)
	var req trackPurchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.OrderID == 0 {
		writeError(w, http.StatusBadRequest, "order_id is required")
		return
	}

	key := fmt.Sprintf("purchase_%d", req.OrderID)
	fresh, _ := h.guard.Claim(r.Context(), key)
	if !fresh {
		metrics.EventsDedupedTotal.Inc()
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"order_id":  req.OrderID,
			"duplicate": true,
		})
		return
	}

	forwarded := false
	if len(req.Payload) > 0 {
		forwarded = h.dispatcher.ForwardClientEvent(r.Context(), req.OrderID, req.Payload)
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"order_id":  req.OrderID,
		"forwarded": forwarded,
	})
}
