// Package monitoring implements MonitoringOrderTracker (spec.md §4.8): a
// subscriber on order.# that turns every order-lifecycle event into an
// Alert, maintains in-memory active-orders and positions views for an
// operator-facing read API, and keeps a bounded alert history.
package monitoring

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"tradefabric/internal/bus"
	"tradefabric/internal/config"
	"tradefabric/pkg/types"
)

// PositionRepository is the consumer-side contract for the "Analogous for
// Signals, Orders, Positions" repository line in spec.md §6 — an external
// collaborator the tracker reads through, not part of this module's core.
type PositionRepository interface {
	FindOpen(ctx context.Context) ([]types.Position, error)
}

// Tracker is MonitoringOrderTracker. Grounded on the teacher's
// internal/risk/manager.go for the mutex-guarded in-memory-map/snapshot
// shape and internal/api/events.go for the event-to-DTO construction.
type Tracker struct {
	bus       bus.MessageBus
	positions PositionRepository
	sink      AlertSink
	history   *AlertHistory
	cron      *cron.Cron
	logger    *slog.Logger

	mu            sync.RWMutex
	activeOrders  map[string]types.Order
	lastPositions []types.Position
}

func NewTracker(b bus.MessageBus, positions PositionRepository, sink AlertSink, cfg config.MonitoringConfig, logger *slog.Logger) *Tracker {
	if sink == nil {
		sink = NewLogAlertSink(logger)
	}
	return &Tracker{
		bus:          b,
		positions:    positions,
		sink:         sink,
		history:      NewAlertHistory(cfg.AlertHistorySize),
		cron:         cron.New(),
		logger:       logger.With("component", "monitoring_tracker"),
		activeOrders: make(map[string]types.Order),
	}
}

// Start subscribes to every order-lifecycle event regardless of venue or
// symbol, and schedules a periodic positions reconciliation sweep.
func (t *Tracker) Start(ctx context.Context) error {
	if err := t.bus.DeclareExchange(ctx, bus.ExchangeExecution); err != nil {
		return err
	}
	if err := t.bus.DeclareQueue(ctx, bus.QueueExecutionOrders); err != nil {
		return err
	}
	if err := t.bus.BindQueue(ctx, bus.ExchangeExecution, bus.QueueExecutionOrders, bus.RoutingKeyOrderPattern); err != nil {
		return err
	}

	if t.positions != nil {
		if _, err := t.cron.AddFunc("@every 30s", func() { t.reconcilePositions(ctx) }); err != nil {
			return fmt.Errorf("schedule position reconciliation: %w", err)
		}
		t.cron.Start()
		t.reconcilePositions(ctx)
	}

	return t.bus.Subscribe(ctx, bus.QueueExecutionOrders, func(ctx context.Context, routingKey string, body []byte) error {
		t.handleOrderEvent(ctx, routingKey, body)
		return nil
	})
}

// Stop drains the reconciliation scheduler cooperatively.
func (t *Tracker) Stop() {
	stopCtx := t.cron.Stop()
	<-stopCtx.Done()
}

func (t *Tracker) handleOrderEvent(ctx context.Context, routingKey string, body []byte) {
	var order types.Order
	if err := json.Unmarshal(body, &order); err != nil {
		t.logger.Error("failed to decode order event", "routing_key", routingKey, "error", err)
		return
	}

	t.mu.Lock()
	if order.Status == types.OrderOpen {
		t.activeOrders[order.ID] = order
	} else {
		delete(t.activeOrders, order.ID)
	}
	t.mu.Unlock()

	alert := Alert{
		ID:        order.ID + ":" + string(order.Status),
		Type:      alertType(order.Status),
		Symbol:    order.Symbol,
		Message:   fmt.Sprintf("order %s %s on %s", order.ID, order.Status, order.Symbol),
		Timestamp: order.UpdatedAt,
		Details:   order,
	}
	t.history.Add(alert)
	if err := t.sink.Send(ctx, alert); err != nil {
		t.logger.Warn("alert sink failed", "order_id", order.ID, "error", err)
	}
}

func alertType(status types.OrderStatus) string {
	switch status {
	case types.OrderFailed:
		return "order_failed"
	case types.OrderCancelled:
		return "order_cancelled"
	case types.OrderFilled:
		return "order_filled"
	case types.OrderRejected:
		return "order_rejected"
	default:
		return "order_update"
	}
}

func (t *Tracker) reconcilePositions(ctx context.Context) {
	positions, err := t.positions.FindOpen(ctx)
	if err != nil {
		t.logger.Warn("position reconciliation failed", "error", err)
		return
	}
	t.mu.Lock()
	t.lastPositions = positions
	t.mu.Unlock()
}

// ActiveOrders returns a snapshot of every order currently in the open
// state, safe to range over without holding any lock.
func (t *Tracker) ActiveOrders() []types.Order {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]types.Order, 0, len(t.activeOrders))
	for _, o := range t.activeOrders {
		out = append(out, o)
	}
	return out
}

// Positions returns the most recent reconciled position snapshot.
func (t *Tracker) Positions() []types.Position {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]types.Position, len(t.lastPositions))
	copy(out, t.lastPositions)
	return out
}

// RecentAlerts returns the bounded alert history, oldest first.
func (t *Tracker) RecentAlerts() []Alert {
	return t.history.Snapshot()
}
