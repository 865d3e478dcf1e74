// Package dispatch implements the delayed purchase event pipeline: the
// outbound client and the dispatcher deciding when an order's purchase
// event is stored, fired, or suppressed.
package dispatch

import (
	"context"
	"encoding/json"
	"slices"
	"time"

	"github.com/rs/zerolog"

	"github.com/pixelfly/pixeltrack/internal/config"
	"github.com/pixelfly/pixeltrack/internal/dedup"
	"github.com/pixelfly/pixeltrack/internal/event"
	"github.com/pixelfly/pixeltrack/internal/metrics"
	"github.com/pixelfly/pixeltrack/internal/models"
	"github.com/pixelfly/pixeltrack/internal/storage"
)

// Dispatcher orchestrates the purchase event lifecycle. Orders paid with a
// delay-eligible method are enrolled as pending records at placement and
// fired when a qualifying status change arrives; everything else goes out
// immediately. All triggers run synchronously within their own request.
type Dispatcher struct {
	cfg          config.DelayedConfig
	eventLogging bool
	store        storage.Storage
	client       Client
	log          zerolog.Logger
	nowFunc      func() time.Time
}

func NewDispatcher(cfg config.DelayedConfig, eventLogging bool, store storage.Storage, client Client, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		cfg:          cfg,
		eventLogging: eventLogging,
		store:        store,
		client:       client,
		log:          log,
		nowFunc:      time.Now,
	}
}

// DelayEligible reports whether the order's purchase confirmation must wait
// for a status change (manual/COD payment, feature enabled).
func (d *Dispatcher) DelayEligible(order *models.Order) bool {
	if !d.cfg.Enabled {
		return false
	}
	return slices.Contains(d.cfg.PaymentMethods, order.PaymentMethod)
}

// HandleOrderPlaced enrolls a delay-eligible order as a pending record, or
// sends the purchase immediately when no delay is needed. With no API key
// configured the whole path is inert.
func (d *Dispatcher) HandleOrderPlaced(ctx context.Context, order *models.Order) error {
	if !d.client.Enabled() {
		return nil
	}

	if !d.DelayEligible(order) {
		d.TrackPurchase(ctx, order)
		return nil
	}

	now := d.nowFunc().UTC()
	payload, err := json.Marshal(event.Build(order, now))
	if err != nil {
		return err
	}

	ev := &models.PendingEvent{
		ID:        models.NewID("evt"),
		OrderID:   order.ID,
		Payload:   payload,
		Status:    models.EventPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := d.store.CreatePendingEvent(ctx, ev); err != nil {
		// The order is not enrolled; its event is lost unless an operator
		// reconstructs it. Surfaced in logs, never to the customer.
		d.log.Error().Err(err).Int64("order_id", order.ID).Msg("failed to store pending event")
		return err
	}

	metrics.EventsStoredTotal.Inc()
	d.log.Info().Int64("order_id", order.ID).Str("event_id", ev.ID).
		Str("payment_method", order.PaymentMethod).Msg("stored pending purchase event")
	return nil
}

// TrackPurchase is the immediate (non-delayed) purchase path, guarded by
// the order's tracked flag. Delay-eligible orders are left to the delayed
// system.
func (d *Dispatcher) TrackPurchase(ctx context.Context, order *models.Order) bool {
	if !d.client.Enabled() {
		return false
	}
	if !dedup.MarkSeen(ctx, order.ID) {
		metrics.EventsDedupedTotal.Inc()
		return false
	}

	flags, err := d.store.GetOrderFlags(ctx, order.ID)
	if err != nil {
		d.log.Error().Err(err).Int64("order_id", order.ID).Msg("failed to load order flags")
		return false
	}
	if flags.Tracked || flags.ServerTracked {
		metrics.EventsDedupedTotal.Inc()
		return false
	}
	if d.DelayEligible(order) {
		return false
	}

	now := d.nowFunc().UTC()
	payload, err := json.Marshal(event.Build(order, now))
	if err != nil {
		d.log.Error().Err(err).Int64("order_id", order.ID).Msg("failed to build purchase payload")
		return false
	}

	result := d.send(ctx, order.ID, payload)
	if !result.Success() {
		metrics.EventsFailedTotal.Inc()
		d.log.Warn().Int64("order_id", order.ID).Int("status_code", result.StatusCode).
			Str("error", result.Error).Msg("immediate purchase send failed")
		return false
	}

	if err := d.store.SetOrderTracked(ctx, order.ID); err != nil {
		d.log.Error().Err(err).Int64("order_id", order.ID).Msg("failed to set tracked flag")
	}
	if err := d.store.SetOrderServerTracked(ctx, order.ID, now); err != nil {
		d.log.Error().Err(err).Int64("order_id", order.ID).Msg("failed to set server tracked flag")
	}

	metrics.EventsFiredTotal.WithLabelValues(ReasonImmediate().label()).Inc()
	d.log.Info().Int64("order_id", order.ID).Msg("immediate purchase event sent")
	return true
}

// HandleStatusChange fires the order's pending record when the new status
// is in the configured trigger set. Statuses outside the set, orders
// without a pending record, and orders already server-tracked are no-ops.
func (d *Dispatcher) HandleStatusChange(ctx context.Context, orderID int64, oldStatus, newStatus string) error {
	if !d.client.Enabled() {
		return nil
	}
	if !slices.Contains(d.cfg.FireOnStatuses, newStatus) {
		return nil
	}
	if !dedup.MarkSeen(ctx, orderID) {
		metrics.EventsDedupedTotal.Inc()
		return nil
	}

	flags, err := d.store.GetOrderFlags(ctx, orderID)
	if err != nil {
		return err
	}
	if flags.ServerTracked {
		return nil
	}

	ev, err := d.store.FindPendingByOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if ev == nil {
		return nil
	}

	d.log.Info().Int64("order_id", orderID).Str("event_id", ev.ID).
		Str("old_status", oldStatus).Str("new_status", newStatus).
		Msg("firing delayed purchase event")

	_, err = d.fire(ctx, ev, ReasonStatusChange(newStatus))
	return err
}

// FireEvent is the manual operator trigger for a single record. Unlike the
// automatic trigger it may also retry a failed record.
func (d *Dispatcher) FireEvent(ctx context.Context, id string) (bool, error) {
	if !d.client.Enabled() {
		return false, nil
	}

	ev, err := d.store.GetPendingEvent(ctx, id)
	if err != nil {
		return false, err
	}
	if ev == nil || ev.Status == models.EventFired {
		return false, nil
	}

	return d.fire(ctx, ev, ReasonManual())
}

// FireAll fires every listed pending record, returning success and failure
// counts for the operator.
func (d *Dispatcher) FireAll(ctx context.Context) (fired, failed int, err error) {
	if !d.client.Enabled() {
		return 0, 0, nil
	}

	limit := d.cfg.BulkLimit
	if limit <= 0 {
		limit = 100
	}

	events, err := d.store.ListPendingEvents(ctx, limit, 0)
	if err != nil {
		return 0, 0, err
	}

	for i := range events {
		ok, err := d.fire(ctx, &events[i], ReasonBulk())
		if err != nil {
			d.log.Error().Err(err).Str("event_id", events[i].ID).Msg("bulk fire error")
			failed++
			continue
		}
		if ok {
			fired++
		} else {
			failed++
		}
	}
	return fired, failed, nil
}

// fire is the single transition shared by every trigger path. The record is
// claimed with a conditional update before the send so two overlapping
// triggers cannot both dispatch it; zero rows affected means another
// trigger already handled it.
func (d *Dispatcher) fire(ctx context.Context, ev *models.PendingEvent, reason FireReason) (bool, error) {
	now := d.nowFunc().UTC()

	claimed, err := d.store.ClaimEvent(ctx, ev.ID, now, reason.manual())
	if err != nil {
		return false, err
	}
	if !claimed {
		d.log.Debug().Str("event_id", ev.ID).Msg("event already handled, skipping")
		return false, nil
	}

	payload, err := d.annotate(ev.Payload, ev.OrderID, reason, now)
	if err != nil {
		// Undecodable payload cannot be sent; surface as failed.
		if mErr := d.store.MarkEventFailed(ctx, ev.ID); mErr != nil {
			d.log.Error().Err(mErr).Str("event_id", ev.ID).Msg("failed to mark event failed")
		}
		return false, err
	}

	result := d.send(ctx, ev.OrderID, payload)
	if !result.Success() {
		if err := d.store.MarkEventFailed(ctx, ev.ID); err != nil {
			d.log.Error().Err(err).Str("event_id", ev.ID).Msg("failed to mark event failed")
		}
		metrics.EventsFailedTotal.Inc()
		d.log.Warn().Str("event_id", ev.ID).Int64("order_id", ev.OrderID).
			Int("status_code", result.StatusCode).Str("error", result.Error).
			Msg("delayed purchase send failed")
		return false, nil
	}

	if err := d.store.SetOrderServerTracked(ctx, ev.OrderID, now); err != nil {
		d.log.Error().Err(err).Int64("order_id", ev.OrderID).Msg("failed to set server tracked flag")
	}

	metrics.EventsFiredTotal.WithLabelValues(reason.label()).Inc()
	d.log.Info().Str("event_id", ev.ID).Int64("order_id", ev.OrderID).
		Str("trigger", reason.label()).Msg("delayed purchase event fired")
	return true, nil
}

// annotate rewrites the stored payload's context with the delay metadata
// and refreshes event_time: the wire event reflects the actual send time,
// not order placement.
func (d *Dispatcher) annotate(raw []byte, orderID int64, reason FireReason, now time.Time) ([]byte, error) {
	var p event.Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}

	p.Context.IsDelayed = true
	p.Context.OriginalTimestamp = p.EventTime
	p.Context.DelayedReason = reason.delayedReason()
	p.Context.ManualFire = reason.manual()
	p.EventTime = now.Unix()
	p.EventID = models.EventID(orderID, now)

	return json.Marshal(&p)
}

func (d *Dispatcher) send(ctx context.Context, orderID int64, payload []byte) *SendResult {
	start := d.nowFunc()
	result := d.client.Send(ctx, payload)
	metrics.DispatchDuration.Observe(time.Since(start).Seconds())

	if d.eventLogging {
		d.logSend(ctx, orderID, payload, result)
	}
	return result
}

// logSend appends the raw request/response to the audit table. Write-only:
// a logging failure never affects the dispatch outcome.
func (d *Dispatcher) logSend(ctx context.Context, orderID int64, payload []byte, result *SendResult) {
	var p struct {
		Event   string `json:"event"`
		EventID string `json:"event_id"`
	}
	json.Unmarshal(payload, &p)

	entry := &models.EventLogEntry{
		ID:           models.NewID("log"),
		EventType:    p.Event,
		EventID:      p.EventID,
		OrderID:      orderID,
		ResponseCode: result.StatusCode,
		ResponseBody: result.ResponseBody,
		CreatedAt:    d.nowFunc().UTC(),
	}
	if err := d.store.AppendEventLog(ctx, entry); err != nil {
		d.log.Error().Err(err).Int64("order_id", orderID).Msg("failed to append event log")
	}
}

// ForwardClientEvent relays a browser-built event to the tracking endpoint.
// The client-side dedup guard has already admitted it; no record state is
// touched here.
func (d *Dispatcher) ForwardClientEvent(ctx context.Context, orderID int64, payload []byte) bool {
	if !d.client.Enabled() {
		return false
	}
	return d.send(ctx, orderID, payload).Success()
}

// Stats and PendingEvents back the operator screens.

func (d *Dispatcher) Stats(ctx context.Context) (*storage.EventStats, error) {
	return d.store.GetEventStats(ctx)
}

func (d *Dispatcher) PendingEvents(ctx context.Context, limit, offset int) ([]models.PendingEvent, error) {
	return d.store.ListPendingEvents(ctx, limit, offset)
}

// DeleteEvent removes a record permanently. Operator-only, irreversible.
func (d *Dispatcher) DeleteEvent(ctx context.Context, id string) (bool, error) {
	ev, err := d.store.GetPendingEvent(ctx, id)
	if err != nil {
		return false, err
	}
	if ev == nil {
		return false, nil
	}
	if err := d.store.DeleteEvent(ctx, id); err != nil {
		return false, err
	}
	return true, nil
}
