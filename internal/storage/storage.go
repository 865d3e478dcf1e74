package storage

import (
	"context"
	"time"

	"github.com/pixelfly/pixeltrack/internal/models"
)

type Storage interface {
	// Pending events
	CreatePendingEvent(ctx context.Context, ev *models.PendingEvent) error
	GetPendingEvent(ctx context.Context, id string) (*models.PendingEvent, error)
	FindPendingByOrder(ctx context.Context, orderID int64) (*models.PendingEvent, error)
	ListPendingEvents(ctx context.Context, limit, offset int) ([]models.PendingEvent, error)
	DeleteEvent(ctx context.Context, id string) error

	// ClaimEvent transitions a record to fired with a conditional update.
	// It returns false when the record was already claimed by another
	// trigger, which callers treat as "already handled". allowFailed
	// additionally accepts records in failed state (manual retry only).
	ClaimEvent(ctx context.Context, id string, firedAt time.Time, allowFailed bool) (bool, error)

	// MarkEventFailed records an unsuccessful send for a claimed record.
	MarkEventFailed(ctx context.Context, id string) error

	// Order flags
	GetOrderFlags(ctx context.Context, orderID int64) (*models.OrderFlags, error)
	SetOrderTracked(ctx context.Context, orderID int64) error
	SetOrderServerTracked(ctx context.Context, orderID int64, firedAt time.Time) error

	// Client-side duplicate suppression (durable backend)
	ClaimClientEvent(ctx context.Context, key string) (bool, error)

	// Audit log, write-only
	AppendEventLog(ctx context.Context, entry *models.EventLogEntry) error

	// Stats
	GetEventStats(ctx context.Context) (*EventStats, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

type EventStats struct {
	Pending int64 `json:"pending"`
	Fired   int64 `json:"fired"`
	Failed  int64 `json:"failed"`
	Total   int64 `json:"total"`
}
