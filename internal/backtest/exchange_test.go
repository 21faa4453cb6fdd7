package backtest

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tradefabric/pkg/types"
)

func TestSimulatedExchangeOpensPositionAndDebitsNothing(t *testing.T) {
	ex := NewSimulatedExchange(decimal.NewFromInt(10000))
	ex.SetTime(time.Unix(100, 0))

	order, err := ex.CreateOrder(context.Background(), types.OrderParams{
		Symbol: "BTC-USD", Side: types.SideBuy, Amount: decimal.NewFromInt(1), Price: decimal.NewFromInt(100),
	})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if order.Status != types.OrderFilled {
		t.Errorf("order.Status = %v, want filled", order.Status)
	}

	positions, err := ex.FetchPositions(context.Background(), nil)
	if err != nil {
		t.Fatalf("FetchPositions: %v", err)
	}
	if len(positions) != 1 || !positions[0].Size.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("expected a 1-unit open position, got %+v", positions)
	}

	bal, err := ex.FetchBalance(context.Background())
	if err != nil {
		t.Fatalf("FetchBalance: %v", err)
	}
	if !bal.Equal(decimal.NewFromInt(10000)) {
		t.Errorf("opening a position should not move cash balance, got %v", bal)
	}
}

func TestSimulatedExchangeClosingPositionRealizesPnL(t *testing.T) {
	ex := NewSimulatedExchange(decimal.NewFromInt(10000))
	ex.SetTime(time.Unix(100, 0))

	if _, err := ex.CreateOrder(context.Background(), types.OrderParams{
		Symbol: "BTC-USD", Side: types.SideBuy, Amount: decimal.NewFromInt(1), Price: decimal.NewFromInt(100),
	}); err != nil {
		t.Fatalf("open CreateOrder: %v", err)
	}

	ex.SetTime(time.Unix(200, 0))
	if _, err := ex.CreateOrder(context.Background(), types.OrderParams{
		Symbol: "BTC-USD", Side: types.SideSell, Amount: decimal.NewFromInt(1), Price: decimal.NewFromInt(110),
	}); err != nil {
		t.Fatalf("close CreateOrder: %v", err)
	}

	bal, err := ex.FetchBalance(context.Background())
	if err != nil {
		t.Fatalf("FetchBalance: %v", err)
	}
	want := decimal.NewFromInt(10010) // +10 realized pnl on 1 unit bought at 100, sold at 110
	if !bal.Equal(want) {
		t.Errorf("balance = %v, want %v", bal, want)
	}

	positions, err := ex.FetchPositions(context.Background(), []string{"BTC-USD"})
	if err != nil {
		t.Fatalf("FetchPositions: %v", err)
	}
	if len(positions) != 1 || !positions[0].Size.IsZero() || positions[0].Status != "closed" {
		t.Fatalf("expected a fully closed position, got %+v", positions)
	}

	trades := ex.Trades()
	if len(trades) != 2 {
		t.Fatalf("expected 2 recorded trades, got %d", len(trades))
	}
	if !trades[1].PnL.Equal(decimal.NewFromInt(10)) {
		t.Errorf("closing trade PnL = %v, want 10", trades[1].PnL)
	}
}

func TestSimulatedExchangeCancelOrderMarksCancelled(t *testing.T) {
	ex := NewSimulatedExchange(decimal.NewFromInt(1000))
	order, err := ex.CreateOrder(context.Background(), types.OrderParams{
		Symbol: "BTC-USD", Side: types.SideBuy, Amount: decimal.NewFromInt(1), Price: decimal.NewFromInt(50),
	})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	if err := ex.CancelOrder(context.Background(), order.ID, order.Symbol); err != nil {
		t.Fatalf("CancelOrder: %v", err)
	}

	got, err := ex.FetchOrder(context.Background(), order.ID, order.Symbol)
	if err != nil {
		t.Fatalf("FetchOrder: %v", err)
	}
	if got.Status != types.OrderCancelled {
		t.Errorf("order.Status = %v, want cancelled", got.Status)
	}
}

func TestSimulatedExchangeFetchOrderUnknownIDErrors(t *testing.T) {
	ex := NewSimulatedExchange(decimal.Zero)
	if _, err := ex.FetchOrder(context.Background(), "missing", "BTC-USD"); err == nil {
		t.Fatal("expected an error for an unknown order id")
	}
}

func TestSimulatedExchangeOrderCountTracksFills(t *testing.T) {
	ex := NewSimulatedExchange(decimal.NewFromInt(1000))
	if ex.OrderCount() != 0 {
		t.Fatalf("expected 0 orders initially, got %d", ex.OrderCount())
	}
	for i := 0; i < 3; i++ {
		if _, err := ex.CreateOrder(context.Background(), types.OrderParams{
			Symbol: "BTC-USD", Side: types.SideBuy, Amount: decimal.NewFromInt(1), Price: decimal.NewFromInt(10),
		}); err != nil {
			t.Fatalf("CreateOrder: %v", err)
		}
	}
	if ex.OrderCount() != 3 {
		t.Errorf("OrderCount() = %d, want 3", ex.OrderCount())
	}
}
