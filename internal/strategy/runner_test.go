package strategy

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"tradefabric/internal/bus"
	"tradefabric/internal/cache"
	"tradefabric/internal/indicator"
	"tradefabric/internal/workerpool"
	"tradefabric/pkg/types"
)

type stubStrategy struct {
	mu      sync.Mutex
	calls   int
	signal  *types.Signal
	valid   bool
}

func (s *stubStrategy) Name() string                               { return "stub" }
func (s *stubStrategy) RequiredIndicators() []types.IndicatorType   { return []types.IndicatorType{types.IndicatorDoji} }
func (s *stubStrategy) Timeframes() []string                        { return nil }
func (s *stubStrategy) Validate(sig types.Signal) bool              { return s.valid }
func (s *stubStrategy) Analyze(ctx context.Context, in AnalysisInput) ([]types.Signal, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.signal == nil {
		return nil, nil
	}
	return []types.Signal{*s.signal}, nil
}

func (s *stubStrategy) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func seedMarketContexts(t *testing.T, c cache.Cache, exchange, symbol string, timeframes []string) {
	t.Helper()
	for _, tf := range timeframes {
		mc := types.MarketContext{Exchange: exchange, Symbol: symbol, Timeframe: tf}
		if err := c.Set(context.Background(), cache.MarketContextKey(exchange, symbol, tf), mc, 0); err != nil {
			t.Fatalf("seed market context %s: %v", tf, err)
		}
	}
}

func TestRunnerSkipsWhenMarketContextIncomplete(t *testing.T) {
	b := bus.NewInMemoryBus()
	c := cache.NewInMemoryCache()
	dag := indicator.NewDAG(testRunnerLogger())
	mit := indicator.NewMitigationEngine(testRunnerLogger())
	strat := &stubStrategy{valid: true, signal: &types.Signal{
		Exchange: "hl", Symbol: "btc-usd", Timeframe: "1h", Direction: types.Long,
		PriceTarget: d("100"), StopLoss: d("99"), TakeProfit: d("101"),
	}}
	pool := workerpool.New(context.Background(), testRunnerLogger(), 4)
	defer pool.Close()

	runner := NewRunner(b, c, dag, mit, []Strategy{strat}, pool, testRunnerLogger(), 50)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := runner.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// No market context seeded at all: handleCandleClose must bail before
	// ever calling the strategy.
	candle := types.Candle{Exchange: "hl", Symbol: "btc-usd", Timeframe: "1h", Timestamp: time.Now(), IsClosed: true, Close: d("100")}
	mustSeedLiveCandle(t, c, candle)
	publishCandle(t, b, candle)

	waitForCondition(t, func() bool { return false }, 100*time.Millisecond) // let the pool drain
	if strat.callCount() != 0 {
		t.Fatalf("expected strategy not to run without market context, got %d calls", strat.callCount())
	}
}

func TestRunnerPublishesValidatedSignal(t *testing.T) {
	b := bus.NewInMemoryBus()
	c := cache.NewInMemoryCache()
	dag := indicator.NewDAG(testRunnerLogger())
	mit := indicator.NewMitigationEngine(testRunnerLogger())
	signal := types.Signal{
		Exchange: "hl", Symbol: "btc-usd", Timeframe: "1h", Direction: types.Long,
		PriceTarget: d("100"), StopLoss: d("99"), TakeProfit: d("101"),
	}
	strat := &stubStrategy{valid: true, signal: &signal}
	pool := workerpool.New(context.Background(), testRunnerLogger(), 4)
	defer pool.Close()

	runner := NewRunner(b, c, dag, mit, []Strategy{strat}, pool, testRunnerLogger(), 50)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := runner.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	seedMarketContexts(t, c, "hl", "btc-usd", hierarchyFor("1h"))
	candle := types.Candle{Exchange: "hl", Symbol: "btc-usd", Timeframe: "1h", Timestamp: time.Now(), IsClosed: true, Close: d("100")}
	mustSeedLiveCandle(t, c, candle)
	publishCandle(t, b, candle)

	waitForCondition(t, func() bool { return strat.callCount() > 0 }, time.Second)

	var cached types.Signal
	waitForCondition(t, func() bool {
		found, err := c.Get(context.Background(), cache.SignalKey("hl", "btc-usd", signal.ID), &cached)
		return err == nil && found
	}, time.Second)
	if cached.Direction != types.Long {
		t.Fatalf("expected the published signal to be cached, got %+v", cached)
	}
}

func testRunnerLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func mustSeedLiveCandle(t *testing.T, c cache.Cache, candle types.Candle) {
	t.Helper()
	key := cache.LiveCandleKey(candle.Exchange, candle.Symbol, candle.Timeframe)
	if err := c.SortedSetAdd(context.Background(), key, float64(candle.Timestamp.UnixMilli()), candle); err != nil {
		t.Fatalf("seed live candle: %v", err)
	}
}

func publishCandle(t *testing.T, b bus.MessageBus, candle types.Candle) {
	t.Helper()
	ctx := context.Background()
	if err := b.DeclareExchange(ctx, bus.ExchangeMarketData); err != nil {
		t.Fatalf("DeclareExchange: %v", err)
	}
	routingKey := bus.RoutingKeyCandleNew(candle.Exchange, candle.Symbol, candle.Timeframe)
	if err := b.Publish(ctx, bus.ExchangeMarketData, routingKey, candle); err != nil {
		t.Fatalf("Publish: %v", err)
	}
}

func waitForCondition(t *testing.T, cond func() bool, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
}
