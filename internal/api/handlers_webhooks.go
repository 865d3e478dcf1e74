package api

import (
	"encoding/json"
	"net/http"

	"github.com/pixelfly/pixeltrack/internal/dispatch"
	"github.com/pixelfly/pixeltrack/internal/models"
)

type WebhookHandler struct {
	dispatcher *dispatch.Dispatcher
}

func NewWebhookHandler(dispatcher *dispatch.Dispatcher) *WebhookHandler {
	return &WebhookHandler{dispatcher: dispatcher}
}

// OrderCreated handles the platform's order-placed webhook. Delay-eligible
// orders get enrolled; everything else goes out immediately.
func (h *WebhookHandler) OrderCreated(w http.ResponseWriter, r *http.Request) {
	var order models.Order
	if err := json.NewDecoder(r.Body).Decode(&order); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if order.ID == 0 {
		writeError(w, http.StatusBadRequest, "order id is required")
		return
	}

	if err := h.dispatcher.HandleOrderPlaced(r.Context(), &order); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to process order")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"order_id": order.ID,
		"delayed":  h.dispatcher.DelayEligible(&order),
	})
}

type statusChangeRequest struct {
	OrderID   int64  `json:"order_id"`
	OldStatus string `json:"old_status"`
	NewStatus string `json:"new_status"`
}

// OrderStatusChanged handles the platform's status-change webhook, the
// automatic trigger for delayed purchase events.
func (h *WebhookHandler) OrderStatusChanged(w http.ResponseWriter, r *http.Request) {
	var req statusChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.OrderID == 0 {
		writeError(w, http.StatusBadRequest, "order_id is required")
		return
	}
	if req.NewStatus == "" {
		writeError(w, http.StatusBadRequest, "new_status is required")
		return
	}

	if err := h.dispatcher.HandleStatusChange(r.Context(), req.OrderID, req.OldStatus, req.NewStatus); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to process status change")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"order_id":   req.OrderID,
		"new_status": req.NewStatus,
	})
}
