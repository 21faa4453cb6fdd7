// Package candle implements the partial-bar state machine: rolling
// standard (base-timeframe) candles into custom timeframes, with
// at-most-one in-flight partial per (exchange, symbol, timeframe, bar-end).
package candle

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"tradefabric/internal/bus"
	"tradefabric/internal/errkind"
	"tradefabric/pkg/types"
)

// Aggregator rolls base-timeframe candles into each configured custom
// timeframe. A single process-wide mutex per (exchange, symbol, timeframe,
// bucket end) key serializes process_candle for that key, since a second base candle
// for the same bucket arriving concurrently must see the first's write
// before deciding whether the bucket has completed.
type Aggregator struct {
	state  *StateManager
	bus    bus.MessageBus
	logger *slog.Logger

	keyMu sync.Map // key string -> *sync.Mutex
}

func NewAggregator(state *StateManager, b bus.MessageBus, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		state:  state,
		bus:    b,
		logger: logger.With("component", "candle_aggregator"),
	}
}

func (a *Aggregator) lockFor(key string) func() {
	muAny, _ := a.keyMu.LoadOrStore(key, &sync.Mutex{})
	mu := muAny.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// ProcessCandle folds one base candle into the given custom timeframe's
// current bucket and, if that completes the bucket, publishes the closed
// candle and returns it. Returns (zero, false, nil) when the bucket is
// still open after this update.
func (a *Aggregator) ProcessCandle(ctx context.Context, base types.Candle, customTimeframe string) (types.Candle, bool, error) {
	duration, err := TimeframeDuration(customTimeframe)
	if err != nil {
		return types.Candle{}, false, errkind.WrapValidation(err, "unknown custom timeframe %q", customTimeframe)
	}

	_, end := CalculateBoundaries(base.Timestamp, duration)
	key := base.Exchange + ":" + base.Symbol + ":" + customTimeframe + ":" + end.Format(time.RFC3339)
	unlock := a.lockFor(key)
	defer unlock()

	partial, found, err := a.state.GetPartial(ctx, base.Exchange, base.Symbol, customTimeframe, end)
	if err != nil {
		return types.Candle{}, false, err
	}

	var merged types.Candle
	if !found {
		merged = types.NewPartialFromBase(base, customTimeframe, end)
	} else {
		merged = partial.Merge(base)
	}

	baseDuration, err := TimeframeDuration(base.Timeframe)
	if err != nil {
		return types.Candle{}, false, errkind.WrapValidation(err, "unknown base timeframe %q", base.Timeframe)
	}
	baseEnd := base.Timestamp.Add(baseDuration)
	isComplete := !baseEnd.Before(end) && base.IsClosed

	if !isComplete {
		if err := a.state.StorePartial(ctx, merged); err != nil {
			return types.Candle{}, false, err
		}
		return types.Candle{}, false, nil
	}

	closed := merged
	closed.IsClosed = true

	if err := a.state.DeletePartial(ctx, base.Exchange, base.Symbol, customTimeframe, end); err != nil {
		a.logger.Warn("failed to delete completed partial candle", "key", key, "error", err)
	}
	if err := a.state.StoreClosed(ctx, closed, "live"); err != nil {
		return types.Candle{}, false, err
	}

	if err := a.publishClosed(ctx, closed); err != nil {
		return types.Candle{}, false, err
	}
	return closed, true, nil
}

func (a *Aggregator) publishClosed(ctx context.Context, c types.Candle) error {
	routingKey := bus.RoutingKeyCandleNew(c.Exchange, c.Symbol, c.Timeframe)
	return a.bus.Publish(ctx, bus.ExchangeMarketData, routingKey, c)
}

// ProcessCandlesBatch folds every base candle into every configured custom
// timeframe, returning the closed candles produced along the way (order
// preserved: candle-major, then timeframe-minor).
func (a *Aggregator) ProcessCandlesBatch(ctx context.Context, bases []types.Candle, customTimeframes []string) ([]types.Candle, error) {
	var closed []types.Candle
	for _, base := range bases {
		for _, tf := range customTimeframes {
			c, did, err := a.ProcessCandle(ctx, base, tf)
			if err != nil {
				return closed, err
			}
			if did {
				closed = append(closed, c)
			}
		}
	}
	return closed, nil
}
