package backtest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"tradefabric/pkg/types"
)

// Trade is a closed fill recorded by SimulatedExchange, used to compute the
// run's P&L summary.
type Trade struct {
	Symbol    string
	Side      types.Side
	Amount    decimal.Decimal
	Price     decimal.Decimal
	PnL       decimal.Decimal
	Timestamp time.Time
}

// SimulatedExchange is an execution.ExchangeConnector that fills every order
// immediately at its requested price, grounded on
// internal/execution/pipeline_test.go's stubConnector shape but extended to
// hold real balance/position state across a whole replay run instead of
// canned per-test responses.
type SimulatedExchange struct {
	mu        sync.Mutex
	balance   decimal.Decimal
	positions map[string]types.Position
	orders    map[string]types.Order
	trades    []Trade
	now       time.Time
	seq       int
}

// NewSimulatedExchange creates an exchange stub seeded with starting
// capital.
func NewSimulatedExchange(initialCapital decimal.Decimal) *SimulatedExchange {
	return &SimulatedExchange{
		balance:   initialCapital,
		positions: make(map[string]types.Position),
		orders:    make(map[string]types.Order),
	}
}

// SetTime advances the exchange's notion of "now", used to timestamp fills.
// The backtest runner calls this once per replayed candle so order/position
// timestamps track simulated time rather than wall-clock time.
func (e *SimulatedExchange) SetTime(t time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.now = t
}

func (e *SimulatedExchange) Initialize(ctx context.Context) error { return nil }
func (e *SimulatedExchange) Close(ctx context.Context) error      { return nil }

// CreateOrder fills immediately at the requested price: no slippage, no
// partial fills, no book to walk. It updates the symbol's net position,
// realizing P&L on any size that closes or flips an existing position.
func (e *SimulatedExchange) CreateOrder(ctx context.Context, params types.OrderParams) (types.Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.seq++
	id := fmt.Sprintf("bt-%d", e.seq)
	now := e.now
	if now.IsZero() {
		now = time.Now()
	}

	pnl := e.applyFill(params, now)

	order := types.Order{
		ID:               id,
		SignalID:         params.SignalID,
		Symbol:           params.Symbol,
		OrderType:        params.Type,
		Side:             params.Side,
		Price:            params.Price,
		Size:             params.Amount,
		Value:            params.Amount.Mul(params.Price),
		Status:           types.OrderFilled,
		FilledSize:       params.Amount,
		AverageFillPrice: params.Price,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	e.orders[id] = order
	e.trades = append(e.trades, Trade{
		Symbol:    params.Symbol,
		Side:      params.Side,
		Amount:    params.Amount,
		Price:     params.Price,
		PnL:       pnl,
		Timestamp: now,
	})
	return order, nil
}

// applyFill updates balance and the symbol's net position for a fill,
// returning the realized P&L (zero when the fill only opens or extends a
// position rather than closing one).
func (e *SimulatedExchange) applyFill(params types.OrderParams, now time.Time) decimal.Decimal {
	pos, exists := e.positions[params.Symbol]
	if !exists || pos.Size.IsZero() {
		e.positions[params.Symbol] = types.Position{
			ID:           params.Symbol,
			Symbol:       params.Symbol,
			Side:         params.Side,
			Size:         params.Amount,
			EntryPrice:   params.Price,
			CurrentPrice: params.Price,
			Status:       "open",
			OpenedAt:     now,
		}
		return decimal.Zero
	}

	if pos.Side == params.Side {
		totalSize := pos.Size.Add(params.Amount)
		weighted := pos.EntryPrice.Mul(pos.Size).Add(params.Price.Mul(params.Amount))
		pos.EntryPrice = weighted.Div(totalSize)
		pos.Size = totalSize
		pos.CurrentPrice = params.Price
		e.positions[params.Symbol] = pos
		return decimal.Zero
	}

	closeSize := decimal.Min(pos.Size, params.Amount)
	var pnl decimal.Decimal
	if pos.Side == types.SideBuy {
		pnl = params.Price.Sub(pos.EntryPrice).Mul(closeSize)
	} else {
		pnl = pos.EntryPrice.Sub(params.Price).Mul(closeSize)
	}
	e.balance = e.balance.Add(pnl)

	remaining := pos.Size.Sub(closeSize)
	leftover := params.Amount.Sub(closeSize)
	switch {
	case remaining.IsPositive():
		pos.Size = remaining
		pos.CurrentPrice = params.Price
		e.positions[params.Symbol] = pos
	case leftover.IsPositive():
		e.positions[params.Symbol] = types.Position{
			ID:           params.Symbol,
			Symbol:       params.Symbol,
			Side:         params.Side,
			Size:         leftover,
			EntryPrice:   params.Price,
			CurrentPrice: params.Price,
			Status:       "open",
			OpenedAt:     now,
		}
	default:
		closed := pos
		closed.Size = decimal.Zero
		closed.Status = "closed"
		closedAt := now
		closed.ClosedAt = &closedAt
		e.positions[params.Symbol] = closed
	}
	return pnl
}

func (e *SimulatedExchange) CancelOrder(ctx context.Context, id, symbol string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	order, ok := e.orders[id]
	if !ok {
		return fmt.Errorf("order %s not found", id)
	}
	order.Status = types.OrderCancelled
	e.orders[id] = order
	return nil
}

func (e *SimulatedExchange) FetchOrder(ctx context.Context, id, symbol string) (types.Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	order, ok := e.orders[id]
	if !ok {
		return types.Order{}, fmt.Errorf("order %s not found", id)
	}
	return order, nil
}

func (e *SimulatedExchange) FetchOpenOrders(ctx context.Context, symbol string) ([]types.Order, error) {
	return nil, nil
}

func (e *SimulatedExchange) FetchPositions(ctx context.Context, symbols []string) ([]types.Position, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	want := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		want[s] = true
	}

	var out []types.Position
	for symbol, pos := range e.positions {
		if len(want) > 0 && !want[symbol] {
			continue
		}
		out = append(out, pos)
	}
	return out, nil
}

func (e *SimulatedExchange) FetchBalance(ctx context.Context) (decimal.Decimal, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.balance, nil
}

// Trades returns every fill recorded so far, in execution order.
func (e *SimulatedExchange) Trades() []Trade {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Trade, len(e.trades))
	copy(out, e.trades)
	return out
}

// OrderCount reports how many orders have been filled so far. The backtest
// runner polls this to detect when the async strategy/execution chain for
// the current candle has settled.
func (e *SimulatedExchange) OrderCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.orders)
}

// Balance returns the current cash balance.
func (e *SimulatedExchange) Balance() decimal.Decimal {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.balance
}
