package dispatch

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pixelfly/pixeltrack/internal/models"
	"github.com/pixelfly/pixeltrack/internal/storage"
)

// fakeStore is an in-memory storage.Storage with the same conditional
// claim semantics as the sqlite implementation.
type fakeStore struct {
	mu      sync.Mutex
	events  map[string]*models.PendingEvent
	flags   map[int64]*models.OrderFlags
	claimed map[string]struct{}
	logs    []models.EventLogEntry
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		events:  make(map[string]*models.PendingEvent),
		flags:   make(map[int64]*models.OrderFlags),
		claimed: make(map[string]struct{}),
	}
}

func (f *fakeStore) CreatePendingEvent(ctx context.Context, ev *models.PendingEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *ev
	f.events[ev.ID] = &cp
	return nil
}

func (f *fakeStore) GetPendingEvent(ctx context.Context, id string) (*models.PendingEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ev, ok := f.events[id]
	if !ok {
		return nil, nil
	}
	cp := *ev
	return &cp, nil
}

func (f *fakeStore) FindPendingByOrder(ctx context.Context, orderID int64) (*models.PendingEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var newest *models.PendingEvent
	for _, ev := range f.events {
		if ev.OrderID != orderID || ev.Status != models.EventPending {
			continue
		}
		if newest == nil || ev.CreatedAt.After(newest.CreatedAt) {
			newest = ev
		}
	}
	if newest == nil {
		return nil, nil
	}
	cp := *newest
	return &cp, nil
}

func (f *fakeStore) ListPendingEvents(ctx context.Context, limit, offset int) ([]models.PendingEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.PendingEvent
	for _, ev := range f.events {
		if ev.Status == models.EventPending {
			out = append(out, *ev)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) DeleteEvent(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.events, id)
	return nil
}

func (f *fakeStore) ClaimEvent(ctx context.Context, id string, firedAt time.Time, allowFailed bool) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ev, ok := f.events[id]
	if !ok {
		return false, nil
	}
	if ev.Status != models.EventPending && !(allowFailed && ev.Status == models.EventFailed) {
		return false, nil
	}
	ev.Status = models.EventFired
	ev.FiredAt = &firedAt
	ev.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (f *fakeStore) MarkEventFailed(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ev, ok := f.events[id]; ok {
		ev.Status = models.EventFailed
		ev.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func (f *fakeStore) GetOrderFlags(ctx context.Context, orderID int64) (*models.OrderFlags, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if fl, ok := f.flags[orderID]; ok {
		cp := *fl
		return &cp, nil
	}
	return &models.OrderFlags{OrderID: orderID}, nil
}

func (f *fakeStore) SetOrderTracked(ctx context.Context, orderID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	fl := f.flag(orderID)
	fl.Tracked = true
	return nil
}

func (f *fakeStore) SetOrderServerTracked(ctx context.Context, orderID int64, firedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	fl := f.flag(orderID)
	fl.ServerTracked = true
	fl.FiredAt = &firedAt
	return nil
}

func (f *fakeStore) flag(orderID int64) *models.OrderFlags {
	fl, ok := f.flags[orderID]
	if !ok {
		fl = &models.OrderFlags{OrderID: orderID}
		f.flags[orderID] = fl
	}
	return fl
}

func (f *fakeStore) ClaimClientEvent(ctx context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, dup := f.claimed[key]; dup {
		return false, nil
	}
	f.claimed[key] = struct{}{}
	return true, nil
}

func (f *fakeStore) AppendEventLog(ctx context.Context, entry *models.EventLogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs = append(f.logs, *entry)
	return nil
}

func (f *fakeStore) GetEventStats(ctx context.Context) (*storage.EventStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stats := &storage.EventStats{}
	for _, ev := range f.events {
		stats.Total++
		switch ev.Status {
		case models.EventPending:
			stats.Pending++
		case models.EventFired:
			stats.Fired++
		case models.EventFailed:
			stats.Failed++
		}
	}
	return stats, nil
}

func (f *fakeStore) Migrate(ctx context.Context) error { return nil }
func (f *fakeStore) Close() error                      { return nil }

// stubClient records every payload it is asked to send and returns a
// scripted result.
type stubClient struct {
	mu       sync.Mutex
	enabled  bool
	failNext bool
	sent     [][]byte
}

func newStubClient() *stubClient {
	return &stubClient{enabled: true}
}

func (c *stubClient) Enabled() bool { return c.enabled }

func (c *stubClient) Send(ctx context.Context, payload []byte) *SendResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := make([]byte, len(payload))
	copy(cp, payload)
	c.sent = append(c.sent, cp)
	if c.failNext {
		return &SendResult{StatusCode: 500, ResponseBody: `{"error":"internal"}`}
	}
	return &SendResult{StatusCode: 200, ResponseBody: `{"ok":true}`}
}

func (c *stubClient) sendCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

func (c *stubClient) lastSent() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.sent) == 0 {
		return nil
	}
	return c.sent[len(c.sent)-1]
}
