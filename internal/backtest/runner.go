// Package backtest replays a fixed sequence of closed candles through the
// live indicator/strategy/execution stack against an in-memory bus and
// cache, with a SimulatedExchange standing in for the venue. Grounded on
// original_source's backtest/main.py (BackTestingEngine.run_backtest): the
// same StrategyRunner/IndicatorDAG/MitigationEngine/ExecutionPipeline
// components as the live system, fed candles at simulated time instead of
// a live feed.
package backtest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"tradefabric/internal/bus"
	"tradefabric/internal/cache"
	"tradefabric/internal/config"
	"tradefabric/internal/execution"
	"tradefabric/internal/indicator"
	"tradefabric/internal/strategy"
	"tradefabric/internal/workerpool"
	"tradefabric/pkg/types"
)

// Config describes one replay run.
type Config struct {
	Exchange  string
	Symbol    string
	Timeframe string

	// ContextTimeframes lists every timeframe StrategyRunner's
	// loadMarketContexts requires to have a cached MarketContext before it
	// will run strategies for Timeframe. Defaults to []string{Timeframe},
	// which is correct whenever Timeframe's hierarchy ladder is itself
	// (e.g. "1d"). A strategy whose Timeframe sits lower in the ladder
	// (e.g. "1h" needs {"1h","4h","1d"}) must set this explicitly.
	ContextTimeframes []string

	InitialCapital decimal.Decimal
	LookbackMax    int

	RiskConfig      config.RiskConfig
	ExecutionConfig config.ExecutionConfig

	// Strategies defaults to a single OrderBlockStrategy with its
	// package-default parameters when left nil.
	Strategies []strategy.Strategy

	Logger *slog.Logger
}

// Runner wires a real strategy.Runner and execution.Pipeline to in-memory
// infrastructure and drives them candle by candle.
type Runner struct {
	cfg      Config
	bus      *bus.InMemoryBus
	cacheKV  *cache.InMemoryCache
	exchange *SimulatedExchange
	pool     *workerpool.Pool
	strat    *strategy.Runner
	pipeline *execution.Pipeline
	repo     *orderBlockRepository
	logger   *slog.Logger
}

// New wires a Runner from Config. Strategies default to a single
// OrderBlockStrategy if none are supplied.
func New(ctx context.Context, cfg Config) (*Runner, error) {
	if cfg.Exchange == "" || cfg.Symbol == "" || cfg.Timeframe == "" {
		return nil, fmt.Errorf("backtest config requires exchange, symbol, and timeframe")
	}
	if cfg.ContextTimeframes == nil {
		cfg.ContextTimeframes = []string{cfg.Timeframe}
	}
	if cfg.LookbackMax <= 0 {
		cfg.LookbackMax = 200
	}
	if cfg.InitialCapital.IsZero() {
		cfg.InitialCapital = decimal.NewFromInt(10000)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(discardWriter{}, nil))
	}

	repo := newOrderBlockRepository()
	strategies := cfg.Strategies
	if len(strategies) == 0 {
		strategies = []strategy.Strategy{strategy.NewOrderBlockStrategy(repo, strategy.DefaultOrderBlockParams())}
	}

	memBus := bus.NewInMemoryBus()
	memCache := cache.NewInMemoryCache()
	simExchange := NewSimulatedExchange(cfg.InitialCapital)
	pool := workerpool.New(ctx, logger, 64)

	dag := indicator.NewDAG(logger)
	dag.Register(indicator.NewBOSIndicator())
	dag.Register(indicator.NewFVGIndicator())
	dag.Register(indicator.NewDojiIndicator())
	dag.Register(indicator.NewOrderBlockIndicator(repo))

	mitigation := indicator.NewMitigationEngine(logger)
	mitigation.Register(indicator.NewOrderBlockIndicator(repo))

	stratRunner := strategy.NewRunner(memBus, memCache, dag, mitigation, strategies, pool, logger, cfg.LookbackMax)
	risk := execution.NewRiskManager(cfg.RiskConfig, logger)
	pipeline := execution.NewPipeline(memBus, memCache, simExchange, risk, cfg.ExecutionConfig, cfg.Exchange, pool, logger)

	if err := stratRunner.Start(ctx); err != nil {
		return nil, fmt.Errorf("start strategy runner: %w", err)
	}
	if err := pipeline.Start(ctx); err != nil {
		return nil, fmt.Errorf("start execution pipeline: %w", err)
	}

	return &Runner{
		cfg:      cfg,
		bus:      memBus,
		cacheKV:  memCache,
		exchange: simExchange,
		pool:     pool,
		strat:    stratRunner,
		pipeline: pipeline,
		repo:     repo,
		logger:   logger,
	}, nil
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

// Run replays every candle source.Load returns, in order, publishing each
// as a candle.new event and waiting for the resulting strategy/execution
// chain to settle before advancing. It returns a Result summarizing the
// run's trades against the starting capital.
func (r *Runner) Run(ctx context.Context, source CandleSource) (*Result, error) {
	candles, err := source.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load candles: %w", err)
	}
	if len(candles) == 0 {
		return nil, fmt.Errorf("candle source returned no candles")
	}

	for _, c := range candles {
		if err := r.stepCandle(ctx, c); err != nil {
			return nil, err
		}
	}

	return Summarize(r.cfg.InitialCapital, r.exchange.Trades(), r.exchange.Balance()), nil
}

// stepCandle caches the candle and a minimal market context snapshot for
// every required timeframe, publishes the candle.new event, and polls
// until the asynchronous strategy/execution chain settles.
func (r *Runner) stepCandle(ctx context.Context, c types.Candle) error {
	c.Exchange, c.Symbol, c.Timeframe = r.cfg.Exchange, r.cfg.Symbol, r.cfg.Timeframe
	c.IsClosed = true

	r.exchange.SetTime(c.Timestamp)

	scoreMs := float64(c.Timestamp.UnixMilli())
	if err := r.cacheKV.SortedSetAdd(ctx, cache.LiveCandleKey(c.Exchange, c.Symbol, c.Timeframe), scoreMs, c); err != nil {
		return fmt.Errorf("cache candle: %w", err)
	}

	for _, tf := range r.cfg.ContextTimeframes {
		mc := types.MarketContext{
			Exchange:     c.Exchange,
			Symbol:       c.Symbol,
			Timeframe:    tf,
			Timestamp:    c.Timestamp,
			CurrentPrice: c.Close,
			Trend:        "neutral",
		}
		if err := r.cacheKV.Set(ctx, cache.MarketContextKey(c.Exchange, c.Symbol, tf), mc, 0); err != nil {
			return fmt.Errorf("cache market context: %w", err)
		}
	}

	routingKey := bus.RoutingKeyCandleNew(c.Exchange, c.Symbol, c.Timeframe)
	if err := r.bus.Publish(ctx, bus.ExchangeMarketData, routingKey, c); err != nil {
		return fmt.Errorf("publish candle: %w", err)
	}

	r.awaitSettle()
	return nil
}

// awaitSettle polls the exchange's order count until it stabilizes across
// a few consecutive checks, generalizing the time.Sleep(5ms) idiom
// internal/strategy/runner_test.go uses to let the bus's goroutine
// dispatch and the worker pool's lane goroutines drain before the caller
// inspects state.
func (r *Runner) awaitSettle() {
	const (
		pollInterval = time.Millisecond
		stableRounds = 3
		maxPolls     = 200
	)

	last := r.exchange.OrderCount()
	stable := 0
	for i := 0; i < maxPolls; i++ {
		time.Sleep(pollInterval)
		cur := r.exchange.OrderCount()
		if cur == last {
			stable++
			if stable >= stableRounds {
				return
			}
		} else {
			stable = 0
			last = cur
		}
	}
}
