package execution

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"tradefabric/internal/bus"
	"tradefabric/internal/cache"
	"tradefabric/internal/config"
	"tradefabric/internal/errkind"
	"tradefabric/internal/workerpool"
	"tradefabric/pkg/types"
)

// farFutureScoreMs bounds a live-candle read used only to find the latest
// close; see internal/strategy.farFutureScoreMs for the same reasoning.
const farFutureScoreMs = 9999999999999

// Pipeline is ExecutionPipeline (spec.md §4.7): a signal consumer that
// risk-adjusts a signal into order parameters, submits it to an
// ExchangeConnector, caches and publishes the resulting order, and handles
// cancellation. Grounded one-for-one on
// execution/execution_service.py's ExecutionService.
type Pipeline struct {
	bus       bus.MessageBus
	cache     cache.Cache
	connector ExchangeConnector
	risk      *RiskManager
	cfg       config.ExecutionConfig
	exchange  string
	pool      *workerpool.Pool
	logger    *slog.Logger
}

func NewPipeline(
	b bus.MessageBus,
	c cache.Cache,
	connector ExchangeConnector,
	risk *RiskManager,
	cfg config.ExecutionConfig,
	exchangeName string,
	pool *workerpool.Pool,
	logger *slog.Logger,
) *Pipeline {
	return &Pipeline{
		bus: b, cache: c, connector: connector, risk: risk, cfg: cfg,
		exchange: exchangeName, pool: pool, logger: logger.With("component", "execution_pipeline"),
	}
}

// Start subscribes to every signal regardless of strategy or symbol and
// hands each delivery to the worker pool keyed by symbol, so sizing for a
// given symbol never races against itself while different symbols execute
// concurrently, per spec.md §5.
func (p *Pipeline) Start(ctx context.Context) error {
	if err := p.connector.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize exchange connector: %w", err)
	}
	if err := p.bus.DeclareExchange(ctx, bus.ExchangeStrategy); err != nil {
		return err
	}
	if err := p.bus.DeclareExchange(ctx, bus.ExchangeExecution); err != nil {
		return err
	}
	if err := p.bus.DeclareQueue(ctx, bus.QueueStrategySignals); err != nil {
		return err
	}
	if err := p.bus.BindQueue(ctx, bus.ExchangeStrategy, bus.QueueStrategySignals, bus.RoutingKeySignalPattern); err != nil {
		return err
	}

	return p.bus.Subscribe(ctx, bus.QueueStrategySignals, func(ctx context.Context, routingKey string, body []byte) error {
		var sig types.Signal
		if err := json.Unmarshal(body, &sig); err != nil {
			p.logger.Error("failed to decode signal event", "routing_key", routingKey, "error", err)
			return nil
		}
		p.pool.Submit(sig.Symbol, func(ctx context.Context) {
			p.handleSignal(ctx, sig)
		})
		return nil
	})
}

func (p *Pipeline) handleSignal(ctx context.Context, sig types.Signal) {
	if p.risk != nil && p.risk.IsKillSwitchActive() {
		p.logger.Info("kill switch active, dropping signal", "signal_id", sig.ID, "symbol", sig.Symbol)
		return
	}

	params, err := p.ProcessSignal(ctx, sig)
	if err != nil {
		p.logger.Info("signal rejected", "signal_id", sig.ID, "error", err)
		return
	}

	order, err := p.ExecuteOrder(ctx, params)
	if err != nil {
		p.logger.Error("order execution failed", "signal_id", sig.ID, "error", err)
		return
	}

	if p.risk != nil {
		p.risk.Report(PositionReport{
			Symbol:      order.Symbol,
			MidPrice:    order.Price.InexactFloat64(),
			ExposureUSD: order.Price.Mul(order.Size).InexactFloat64(),
			Timestamp:   time.Now(),
		})
	}
	p.logger.Info("order submitted", "signal_id", sig.ID, "order_id", order.ID, "status", order.Status)
}

// ProcessSignal builds order parameters from a signal: validates required
// fields, clamps an out-of-corridor price target, computes position size,
// and caches a signal view. Grounded on
// ExecutionService.process_signal.
func (p *Pipeline) ProcessSignal(ctx context.Context, sig types.Signal) (types.OrderParams, error) {
	if sig.ID == "" || sig.Symbol == "" || sig.Direction == "" || sig.SignalType == "" {
		return types.OrderParams{}, errkind.NewValidation("signal missing required fields")
	}

	priceTarget := sig.PriceTarget
	if current, ok := p.latestPrice(ctx, sig.Exchange, sig.Symbol, sig.Timeframe); ok {
		priceTarget = clampToPriceCorridor(priceTarget, current, p.cfg.PriceCorridorPct, p.cfg.ClampPct)
	}

	size := PositionSize(p.cfg, priceTarget, sig.StopLoss, sig.ConfidenceScore)

	side := types.SideBuy
	if sig.Direction == types.Short {
		side = types.SideSell
	}

	params := types.OrderParams{
		Symbol:   sig.Symbol,
		Type:     "limit",
		Side:     side,
		Amount:   size,
		Price:    priceTarget,
		SignalID: sig.ID,
		Params: types.OrderExtraParams{
			TimeInForce: "GTC",
			StopLoss:    sig.StopLoss,
			TakeProfit:  sig.TakeProfit,
			Leverage:    decimal.NewFromFloat(p.cfg.Leverage),
			ReduceOnly:  sig.SignalType == types.SignalExit,
		},
	}

	if err := p.cache.Set(ctx, cache.SignalKey(sig.Exchange, sig.Symbol, sig.ID), sig, time.Duration(cache.SignalTTL)*time.Second); err != nil {
		p.logger.Warn("failed to cache signal view", "signal_id", sig.ID, "error", err)
	}

	return params, nil
}

// latestPrice reads the most recent live candle close for (exchange,
// symbol, timeframe), used only as an optional market-price reference for
// the price-corridor check; a miss means the check is skipped.
func (p *Pipeline) latestPrice(ctx context.Context, exchange, symbol, timeframe string) (decimal.Decimal, bool) {
	if timeframe == "" {
		return decimal.Zero, false
	}
	raw, err := p.cache.SortedSetRange(ctx, cache.LiveCandleKey(exchange, symbol, timeframe), 0, farFutureScoreMs)
	if err != nil || len(raw) == 0 {
		return decimal.Zero, false
	}
	var c types.Candle
	if err := json.Unmarshal([]byte(raw[len(raw)-1]), &c); err != nil {
		return decimal.Zero, false
	}
	return c.Close, true
}

// ExecuteOrder submits params to the exchange, caches the resulting order,
// upserts the active-orders hash when open, and publishes the lifecycle
// event. On a connector error it publishes a synthetic failed order and
// also returns the error wrapped as transient, per spec.md §4.9 ("Exchange
// error: order-level -> publish order.failed").
func (p *Pipeline) ExecuteOrder(ctx context.Context, params types.OrderParams) (types.Order, error) {
	order, err := p.connector.CreateOrder(ctx, params)
	if err != nil {
		now := time.Now().UTC()
		failed := types.Order{
			ID:        fmt.Sprintf("failed-%s-%d", params.SignalID, now.UnixNano()),
			SignalID:  params.SignalID,
			Exchange:  p.exchange,
			Symbol:    params.Symbol,
			OrderType: params.Type,
			Side:      params.Side,
			Price:     params.Price,
			Size:      params.Amount,
			Status:    types.OrderFailed,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if pubErr := p.bus.Publish(ctx, bus.ExchangeExecution, bus.RoutingKeyOrderFailed(p.exchange, params.Symbol), failed); pubErr != nil {
			p.logger.Error("failed to publish order.failed", "error", pubErr)
		}
		return types.Order{}, errkind.WrapTransient(err, "create order for signal %s", params.SignalID)
	}

	order.Exchange = p.exchange
	order.SignalID = params.SignalID
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC()
	}
	order.UpdatedAt = time.Now().UTC()

	if err := p.cache.Set(ctx, cache.OrderKey(p.exchange, order.Symbol, order.ID), order, time.Duration(cache.OrderTTL)*time.Second); err != nil {
		p.logger.Warn("failed to cache order", "order_id", order.ID, "error", err)
	}
	if order.Status == types.OrderOpen {
		if err := p.cache.HashSet(ctx, cache.OrderActiveSetKey(p.exchange, order.Symbol), order.ID, order); err != nil {
			p.logger.Warn("failed to upsert active order", "order_id", order.ID, "error", err)
		}
	}
	if err := p.bus.Publish(ctx, bus.ExchangeExecution, bus.RoutingKeyOrderNew(p.exchange, order.Symbol), order); err != nil {
		p.logger.Error("failed to publish order.new", "order_id", order.ID, "error", err)
	}
	return order, nil
}

// CancelOrder cancels id on the exchange, then marks the cached order
// cancelled (fetching or synthesizing it first if it isn't already
// cached), removes it from the active set, and publishes order.cancelled.
// Grounded on ExecutionService.cancel_order.
func (p *Pipeline) CancelOrder(ctx context.Context, symbol, id string) error {
	if err := p.connector.CancelOrder(ctx, id, symbol); err != nil {
		return errkind.WrapTransient(err, "cancel order %s", id)
	}

	var order types.Order
	found, err := p.cache.Get(ctx, cache.OrderKey(p.exchange, symbol, id), &order)
	if err != nil {
		p.logger.Warn("failed to read cached order before cancel", "order_id", id, "error", err)
	}
	if !found {
		if fetched, err := p.connector.FetchOrder(ctx, id, symbol); err == nil {
			order = fetched
		} else {
			order = types.Order{ID: id, Exchange: p.exchange, Symbol: symbol, CreatedAt: time.Now().UTC()}
		}
	}
	order.Status = types.OrderCancelled
	order.UpdatedAt = time.Now().UTC()

	if err := p.cache.Set(ctx, cache.OrderKey(p.exchange, symbol, id), order, time.Duration(cache.OrderTTL)*time.Second); err != nil {
		p.logger.Warn("failed to cache cancelled order", "order_id", id, "error", err)
	}
	if err := p.cache.HashDelete(ctx, cache.OrderActiveSetKey(p.exchange, symbol), id); err != nil {
		p.logger.Warn("failed to remove order from active set", "order_id", id, "error", err)
	}
	if err := p.bus.Publish(ctx, bus.ExchangeExecution, bus.RoutingKeyOrderCancelled(p.exchange, symbol), order); err != nil {
		p.logger.Error("failed to publish order.cancelled", "order_id", id, "error", err)
	}
	return nil
}
