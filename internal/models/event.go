package models

import (
	"encoding/json"
	"time"
)

type EventStatus string

const (
	EventPending EventStatus = "pending"
	EventFired   EventStatus = "fired"
	EventFailed  EventStatus = "failed"
)

// PendingEvent is one durable purchase event awaiting a qualifying order
// status change. The payload is an immutable snapshot taken at order
// placement; it is annotated with delay metadata just before sending.
type PendingEvent struct {
	ID        string          `json:"id"`
	OrderID   int64           `json:"order_id"`
	Payload   json.RawMessage `json:"payload"`
	Status    EventStatus     `json:"status"`
	FiredAt   *time.Time      `json:"fired_at,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// OrderFlags carries the per-order tracking state this service is
// responsible for. Tracked guards the immediate purchase path;
// ServerTracked guards the delayed path against repeated trigger statuses.
type OrderFlags struct {
	OrderID       int64      `json:"order_id"`
	Tracked       bool       `json:"tracked"`
	ServerTracked bool       `json:"server_tracked"`
	FiredAt       *time.Time `json:"fired_at,omitempty"`
}

// EventLogEntry is a write-only audit row recording a raw send and its
// response. Nothing in the dispatch logic reads it back.
type EventLogEntry struct {
	ID           string    `json:"id"`
	EventType    string    `json:"event_type"`
	EventID      string    `json:"event_id"`
	OrderID      int64     `json:"order_id,omitempty"`
	ResponseCode int       `json:"response_code"`
	ResponseBody string    `json:"response_body,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
