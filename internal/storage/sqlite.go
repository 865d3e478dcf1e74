package storage

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pixelfly/pixeltrack/internal/models"
)

type SQLiteStorage struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	return &SQLiteStorage{db: db}, nil
}

func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS pending_events (
			id TEXT PRIMARY KEY,
			order_id INTEGER NOT NULL,
			payload TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			fired_at DATETIME,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS order_flags (
			order_id INTEGER PRIMARY KEY,
			tracked INTEGER NOT NULL DEFAULT 0,
			server_tracked INTEGER NOT NULL DEFAULT 0,
			fired_at DATETIME
		)`,
		`CREATE TABLE IF NOT EXISTS client_events (
			key TEXT PRIMARY KEY,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS event_log (
			id TEXT PRIMARY KEY,
			event_type TEXT NOT NULL,
			event_id TEXT NOT NULL,
			order_id INTEGER,
			response_code INTEGER NOT NULL DEFAULT 0,
			response_body TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_pending_events_order ON pending_events(order_id)`,
		`CREATE INDEX IF NOT EXISTS idx_pending_events_status ON pending_events(status)`,
		`CREATE INDEX IF NOT EXISTS idx_event_log_order ON event_log(order_id)`,
	}

	for _, q := range queries {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// --- Pending events ---

func (s *SQLiteStorage) CreatePendingEvent(ctx context.Context, ev *models.PendingEvent) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO pending_events (id, order_id, payload, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.OrderID, string(ev.Payload), ev.Status, ev.CreatedAt, ev.UpdatedAt,
	)
	return err
}

func (s *SQLiteStorage) scanEvent(row interface{ Scan(...interface{}) error }) (*models.PendingEvent, error) {
	var ev models.PendingEvent
	var payload string
	err := row.Scan(&ev.ID, &ev.OrderID, &payload, &ev.Status, &ev.FiredAt, &ev.CreatedAt, &ev.UpdatedAt)
	if err != nil {
		return nil, err
	}
	ev.Payload = []byte(payload)
	return &ev, nil
}

func (s *SQLiteStorage) GetPendingEvent(ctx context.Context, id string) (*models.PendingEvent, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, order_id, payload, status, fired_at, created_at, updated_at FROM pending_events WHERE id = ?`, id)
	ev, err := s.scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return ev, err
}

// FindPendingByOrder returns the most recent pending record for the order.
// The schema does not enforce one record per order; if duplicate enrollment
// ever produced two, only the newest is eligible for automatic dispatch.
func (s *SQLiteStorage) FindPendingByOrder(ctx context.Context, orderID int64) (*models.PendingEvent, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, order_id, payload, status, fired_at, created_at, updated_at
		 FROM pending_events WHERE order_id = ? AND status = 'pending'
		 ORDER BY created_at DESC LIMIT 1`, orderID)
	ev, err := s.scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return ev, err
}

func (s *SQLiteStorage) ListPendingEvents(ctx context.Context, limit, offset int) ([]models.PendingEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, order_id, payload, status, fired_at, created_at, updated_at
		 FROM pending_events WHERE status = 'pending'
		 ORDER BY created_at DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []models.PendingEvent
	for rows.Next() {
		ev, err := s.scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *ev)
	}
	return events, rows.Err()
}

func (s *SQLiteStorage) DeleteEvent(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM pending_events WHERE id = ?`, id)
	return err
}

func (s *SQLiteStorage) ClaimEvent(ctx context.Context, id string, firedAt time.Time, allowFailed bool) (bool, error) {
	states := `'pending'`
	if allowFailed {
		states = `'pending', 'failed'`
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE pending_events SET status = 'fired', fired_at = ?, updated_at = ? WHERE id = ? AND status IN (`+states+`)`,
		firedAt, time.Now().UTC(), id,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SQLiteStorage) MarkEventFailed(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE pending_events SET status = 'failed', updated_at = ? WHERE id = ?`,
		time.Now().UTC(), id,
	)
	return err
}

// --- Order flags ---

func (s *SQLiteStorage) GetOrderFlags(ctx context.Context, orderID int64) (*models.OrderFlags, error) {
	var f models.OrderFlags
	var tracked, serverTracked int
	err := s.db.QueryRowContext(ctx,
		`SELECT order_id, tracked, server_tracked, fired_at FROM order_flags WHERE order_id = ?`, orderID,
	).Scan(&f.OrderID, &tracked, &serverTracked, &f.FiredAt)
	if err == sql.ErrNoRows {
		return &models.OrderFlags{OrderID: orderID}, nil
	}
	if err != nil {
		return nil, err
	}
	f.Tracked = tracked == 1
	f.ServerTracked = serverTracked == 1
	return &f, nil
}

func (s *SQLiteStorage) SetOrderTracked(ctx context.Context, orderID int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO order_flags (order_id, tracked) VALUES (?, 1)
		 ON CONFLICT(order_id) DO UPDATE SET tracked = 1`, orderID)
	return err
}

func (s *SQLiteStorage) SetOrderServerTracked(ctx context.Context, orderID int64, firedAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO order_flags (order_id, server_tracked, fired_at) VALUES (?, 1, ?)
		 ON CONFLICT(order_id) DO UPDATE SET server_tracked = 1, fired_at = excluded.fired_at`,
		orderID, firedAt)
	return err
}

// --- Client-side duplicate suppression ---

func (s *SQLiteStorage) ClaimClientEvent(ctx context.Context, key string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO client_events (key, created_at) VALUES (?, ?)`,
		key, time.Now().UTC())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// --- Audit log ---

func (s *SQLiteStorage) AppendEventLog(ctx context.Context, entry *models.EventLogEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO event_log (id, event_type, event_id, order_id, response_code, response_body, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.EventType, entry.EventID, entry.OrderID, entry.ResponseCode, entry.ResponseBody, entry.CreatedAt,
	)
	return err
}

// --- Stats ---

func (s *SQLiteStorage) GetEventStats(ctx context.Context) (*EventStats, error) {
	stats := &EventStats{}

	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pending_events WHERE status = 'pending'`).Scan(&stats.Pending)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pending_events WHERE status = 'fired'`).Scan(&stats.Fired)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pending_events WHERE status = 'failed'`).Scan(&stats.Failed)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pending_events`).Scan(&stats.Total)

	return stats, nil
}
