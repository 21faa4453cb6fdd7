package execution

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tradefabric/internal/bus"
	"tradefabric/internal/cache"
	"tradefabric/internal/config"
	"tradefabric/internal/workerpool"
	"tradefabric/pkg/types"
)

type stubConnector struct {
	createErr error
	nextID    string
}

func (s *stubConnector) Initialize(ctx context.Context) error { return nil }

func (s *stubConnector) CreateOrder(ctx context.Context, params types.OrderParams) (types.Order, error) {
	if s.createErr != nil {
		return types.Order{}, s.createErr
	}
	return types.Order{
		ID:     s.nextID,
		Symbol: params.Symbol,
		Side:   params.Side,
		Price:  params.Price,
		Size:   params.Amount,
		Status: types.OrderOpen,
	}, nil
}

func (s *stubConnector) CancelOrder(ctx context.Context, id, symbol string) error { return nil }

func (s *stubConnector) FetchOrder(ctx context.Context, id, symbol string) (types.Order, error) {
	return types.Order{ID: id, Symbol: symbol, Status: types.OrderOpen}, nil
}

func (s *stubConnector) FetchOpenOrders(ctx context.Context, symbol string) ([]types.Order, error) {
	return nil, nil
}

func (s *stubConnector) FetchPositions(ctx context.Context, symbols []string) ([]types.Position, error) {
	return nil, nil
}

func (s *stubConnector) FetchBalance(ctx context.Context) (decimal.Decimal, error) {
	return decimal.Zero, nil
}

func (s *stubConnector) Close(ctx context.Context) error { return nil }

func testLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func testExecutionConfig() config.ExecutionConfig {
	return config.ExecutionConfig{
		AccountEquity:      10000,
		RiskPerTrade:       0.01,
		MaxPositionSizeUSD: 1000,
		MinConfidenceScale: 0.25,
		PriceCorridorPct:   0.20,
		ClampPct:           0.10,
		Leverage:           1,
	}
}

func TestProcessSignalRejectsMissingFields(t *testing.T) {
	p := NewPipeline(bus.NewInMemoryBus(), cache.NewInMemoryCache(), &stubConnector{}, nil, testExecutionConfig(), "hl", workerpool.New(context.Background(), testLogger(), 4), testLogger())
	_, err := p.ProcessSignal(context.Background(), types.Signal{Symbol: "btc-usd"})
	if err == nil {
		t.Fatal("expected rejection for a signal missing required fields")
	}
}

func TestProcessSignalBuildsOrderParams(t *testing.T) {
	p := NewPipeline(bus.NewInMemoryBus(), cache.NewInMemoryCache(), &stubConnector{}, nil, testExecutionConfig(), "hl", workerpool.New(context.Background(), testLogger(), 4), testLogger())
	sig := types.Signal{
		ID: "sig-1", Exchange: "hl", Symbol: "btc-usd", Direction: types.Long, SignalType: types.SignalEntry,
		PriceTarget: d("100"), StopLoss: d("98"), TakeProfit: d("106"), ConfidenceScore: 1.0,
	}
	params, err := p.ProcessSignal(context.Background(), sig)
	if err != nil {
		t.Fatalf("ProcessSignal: %v", err)
	}
	if params.Side != types.SideBuy {
		t.Errorf("expected buy side for long signal, got %v", params.Side)
	}
	if !params.Amount.Equal(d("50")) {
		t.Errorf("expected position size 50, got %v", params.Amount)
	}
	if params.Params.ReduceOnly {
		t.Errorf("expected reduceOnly false for an entry signal")
	}
}

func TestExecuteOrderCachesAndActivatesOpenOrder(t *testing.T) {
	c := cache.NewInMemoryCache()
	b := bus.NewInMemoryBus()
	conn := &stubConnector{nextID: "ord-1"}
	p := NewPipeline(b, c, conn, nil, testExecutionConfig(), "hl", workerpool.New(context.Background(), testLogger(), 4), testLogger())

	order, err := p.ExecuteOrder(context.Background(), types.OrderParams{Symbol: "btc-usd", Side: types.SideBuy, Amount: d("1"), Price: d("100"), SignalID: "sig-1"})
	if err != nil {
		t.Fatalf("ExecuteOrder: %v", err)
	}
	if order.Status != types.OrderOpen {
		t.Fatalf("expected open status, got %v", order.Status)
	}

	var cached types.Order
	found, err := c.Get(context.Background(), cache.OrderKey("hl", "btc-usd", "ord-1"), &cached)
	if err != nil || !found {
		t.Fatalf("expected order cached, found=%v err=%v", found, err)
	}

	var active types.Order
	found, err = c.HashGet(context.Background(), cache.OrderActiveSetKey("hl", "btc-usd"), "ord-1", &active)
	if err != nil || !found {
		t.Fatalf("expected order in active set, found=%v err=%v", found, err)
	}
}

func TestExecuteOrderPublishesFailedOnConnectorError(t *testing.T) {
	b := bus.NewInMemoryBus()
	c := cache.NewInMemoryCache()
	conn := &stubConnector{createErr: errors.New("exchange rejected order")}
	p := NewPipeline(b, c, conn, nil, testExecutionConfig(), "hl", workerpool.New(context.Background(), testLogger(), 4), testLogger())

	if err := b.DeclareExchange(context.Background(), bus.ExchangeExecution); err != nil {
		t.Fatalf("DeclareExchange: %v", err)
	}
	if err := b.DeclareQueue(context.Background(), "test_failed_orders"); err != nil {
		t.Fatalf("DeclareQueue: %v", err)
	}
	if err := b.BindQueue(context.Background(), bus.ExchangeExecution, "test_failed_orders", bus.RoutingKeyOrderPattern); err != nil {
		t.Fatalf("BindQueue: %v", err)
	}
	received := make(chan types.Order, 1)
	if err := b.Subscribe(context.Background(), "test_failed_orders", func(ctx context.Context, routingKey string, body []byte) error {
		var o types.Order
		if err := json.Unmarshal(body, &o); err == nil {
			received <- o
		}
		return nil
	}); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	_, err := p.ExecuteOrder(context.Background(), types.OrderParams{Symbol: "btc-usd", SignalID: "sig-1", Price: d("100"), Amount: d("1")})
	if err == nil {
		t.Fatal("expected ExecuteOrder to return an error on connector failure")
	}

	select {
	case o := <-received:
		if o.Status != types.OrderFailed {
			t.Errorf("expected failed status, got %v", o.Status)
		}
	case <-time.After(time.Second):
		t.Fatal("expected an order.failed event to be published")
	}
}
