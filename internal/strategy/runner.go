package strategy

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"tradefabric/internal/bus"
	"tradefabric/internal/cache"
	"tradefabric/internal/indicator"
	"tradefabric/internal/workerpool"
	"tradefabric/pkg/types"
)

// farFutureScoreMs bounds SortedSetRange's upper end; real candle
// timestamps never approach it. Using a fixed sentinel avoids feeding
// +Inf through JSON score formatting.
const farFutureScoreMs = 9999999999999

// Runner is StrategyRunner (spec.md §4.6): it subscribes to candle.new
// events, reconstructs the window for the (exchange, symbol, timeframe)
// that closed, runs the indicator DAG and mitigation engine over it, and
// hands the results to every applicable Strategy. Grounded on
// strategy/engine/strategy_runner.py's StrategyRunner.
type Runner struct {
	bus         bus.MessageBus
	cache       cache.Cache
	dag         *indicator.DAG
	mitigation  *indicator.MitigationEngine
	strategies  []Strategy
	pool        *workerpool.Pool
	logger      *slog.Logger
	lookbackMax int
}

func NewRunner(
	b bus.MessageBus,
	c cache.Cache,
	dag *indicator.DAG,
	mitigation *indicator.MitigationEngine,
	strategies []Strategy,
	pool *workerpool.Pool,
	logger *slog.Logger,
	lookbackMax int,
) *Runner {
	if lookbackMax <= 0 {
		lookbackMax = 200
	}
	return &Runner{
		bus: b, cache: c, dag: dag, mitigation: mitigation,
		strategies: strategies, pool: pool,
		logger: logger.With("component", "strategy_runner"), lookbackMax: lookbackMax,
	}
}

// Start declares the strategy exchange, subscribes to every candle close,
// and returns once the subscription is active. Each delivery is handed to
// the worker pool keyed by (exchange, symbol, timeframe) so indicator runs
// serialize per key while different keys run concurrently, per spec.md §5.
func (r *Runner) Start(ctx context.Context) error {
	if err := r.bus.DeclareExchange(ctx, bus.ExchangeStrategy); err != nil {
		return err
	}
	if err := r.bus.DeclareExchange(ctx, bus.ExchangeMarketData); err != nil {
		return err
	}
	if err := r.bus.DeclareQueue(ctx, bus.QueueCandlesData); err != nil {
		return err
	}
	if err := r.bus.BindQueue(ctx, bus.ExchangeMarketData, bus.QueueCandlesData, bus.RoutingKeyCandleNewPattern); err != nil {
		return err
	}

	return r.bus.Subscribe(ctx, bus.QueueCandlesData, func(ctx context.Context, routingKey string, body []byte) error {
		var c types.Candle
		if err := json.Unmarshal(body, &c); err != nil {
			r.logger.Error("failed to decode candle event", "routing_key", routingKey, "error", err)
			return nil
		}
		if !c.IsClosed {
			return nil
		}
		key := c.Exchange + ":" + c.Symbol + ":" + c.Timeframe
		r.pool.Submit(key, func(ctx context.Context) {
			r.handleCandleClose(ctx, c)
		})
		return nil
	})
}

// handleCandleClose is _execute_on_event: load the window, gather MTF
// context, run the DAG, run mitigation, then consult every strategy.
func (r *Runner) handleCandleClose(ctx context.Context, latest types.Candle) {
	candles, err := r.loadWindow(ctx, latest.Exchange, latest.Symbol, latest.Timeframe)
	if err != nil {
		r.logger.Error("failed to load candle window", "symbol", latest.Symbol, "timeframe", latest.Timeframe, "error", err)
		return
	}
	if len(candles) == 0 {
		r.logger.Debug("no candles available, skipping", "symbol", latest.Symbol, "timeframe", latest.Timeframe)
		return
	}

	marketContexts, ok := r.loadMarketContexts(ctx, latest.Exchange, latest.Symbol, latest.Timeframe)
	if !ok {
		r.logger.Info("incomplete multi-timeframe context, skipping strategy execution",
			"symbol", latest.Symbol, "timeframe", latest.Timeframe)
		return
	}

	required := r.requiredIndicators(latest.Timeframe)
	results, err := r.dag.Run(ctx, candles, marketContexts, required)
	if err != nil {
		r.logger.Error("indicator dag run failed", "error", err)
		return
	}

	r.mitigation.Process(ctx, candles)

	var currentPrice decimal.Decimal
	havePrice := false
	if v, ok := results["current_price"].(decimal.Decimal); ok {
		currentPrice, havePrice = v, true
	}

	in := AnalysisInput{
		Exchange: latest.Exchange, Symbol: latest.Symbol, Timeframe: latest.Timeframe,
		Results: results, MarketContexts: marketContexts,
		CurrentPrice: func() (decimal.Decimal, bool) { return currentPrice, havePrice },
	}

	for _, strat := range r.strategies {
		if !appliesToTimeframe(strat, latest.Timeframe) {
			continue
		}
		signals, err := strat.Analyze(ctx, in)
		if err != nil {
			r.logger.Error("strategy analysis failed", "strategy", strat.Name(), "error", err)
			continue
		}
		for _, sig := range signals {
			if !strat.Validate(sig) {
				continue
			}
			if err := r.publishSignal(ctx, sig); err != nil {
				r.logger.Error("failed to publish signal", "signal_id", sig.ID, "error", err)
				continue
			}
			r.logger.Info("published signal", "strategy", strat.Name(), "symbol", sig.Symbol, "direction", sig.Direction)
		}
	}
}

func (r *Runner) requiredIndicators(timeframe string) []types.IndicatorType {
	seen := map[types.IndicatorType]bool{}
	var out []types.IndicatorType
	for _, strat := range r.strategies {
		if !appliesToTimeframe(strat, timeframe) {
			continue
		}
		for _, t := range strat.RequiredIndicators() {
			if !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
	}
	return out
}

// loadWindow reads the live candle sorted set and trims to the last
// lookbackMax entries. Every closed candle lands in both the historical
// and live sets (internal/candle.StateManager.StoreClosed), so a single
// live-set read covers both backfilled and freshly streamed history; the
// historical/live distinction only matters to the data layer's initial
// backfill, not to indicator evaluation here.
func (r *Runner) loadWindow(ctx context.Context, exchange, symbol, timeframe string) ([]types.Candle, error) {
	key := cache.LiveCandleKey(exchange, symbol, timeframe)
	raw, err := r.cache.SortedSetRange(ctx, key, 0, farFutureScoreMs)
	if err != nil {
		return nil, err
	}
	candles := make([]types.Candle, 0, len(raw))
	for _, s := range raw {
		var c types.Candle
		if err := json.Unmarshal([]byte(s), &c); err != nil {
			r.logger.Warn("failed to decode cached candle, skipping", "error", err)
			continue
		}
		candles = append(candles, c)
	}
	if len(candles) > r.lookbackMax {
		candles = candles[len(candles)-r.lookbackMax:]
	}
	return candles, nil
}

// loadMarketContexts fetches the current timeframe's context plus every
// higher timeframe in its hierarchy. Per spec.md §4.6 step 3, a missing
// required context aborts the whole event (ok=false) rather than running
// with partial MTF information.
func (r *Runner) loadMarketContexts(ctx context.Context, exchange, symbol, timeframe string) ([]types.MarketContext, bool) {
	tfs := hierarchyFor(timeframe)
	contexts := make([]types.MarketContext, 0, len(tfs))
	for _, tf := range tfs {
		var mc types.MarketContext
		found, err := r.cache.Get(ctx, cache.MarketContextKey(exchange, symbol, tf), &mc)
		if err != nil {
			r.logger.Error("failed to load market context", "timeframe", tf, "error", err)
			return nil, false
		}
		if !found {
			return nil, false
		}
		contexts = append(contexts, mc)
	}
	return contexts, true
}

func (r *Runner) publishSignal(ctx context.Context, sig types.Signal) error {
	sig.CreatedAt = time.Now().UTC()
	routingKey := bus.RoutingKeySignalOrderBlockDetected(sig.Exchange, sig.Symbol, sig.Timeframe)
	if err := r.bus.Publish(ctx, bus.ExchangeStrategy, routingKey, sig); err != nil {
		return err
	}
	if err := r.cache.Set(ctx, cache.SignalKey(sig.Exchange, sig.Symbol, sig.ID), sig, time.Duration(cache.SignalTTL)*time.Second); err != nil {
		return err
	}
	return r.cache.HashSet(ctx, cache.SignalActiveSetKey(sig.Exchange, sig.Symbol), sig.ID, sig)
}
