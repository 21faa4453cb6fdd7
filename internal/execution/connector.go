// Package execution turns validated signals into exchange orders. It
// consumes signal.# events, risk-adjusts and sizes each one into order
// parameters, submits them through an ExchangeConnector, and publishes the
// resulting order lifecycle events for monitoring. Grounded on
// execution/execution_service.py for the signal-to-order sequence and on
// _examples/0xtitan6-polymarket-mm/internal/exchange/client.go for the
// connector/rate-limit/retry shape (generalized away from the CLOB-specific
// order-signing path).
package execution

import (
	"context"

	"github.com/shopspring/decimal"

	"tradefabric/pkg/types"
)

// ExchangeConnector is the venue-agnostic trading surface spec.md §6 names:
// initialize, create/cancel/fetch order, fetch open orders, fetch
// positions, fetch balance, close. A concrete implementation lives in
// internal/exchange; tests use a stub satisfying this interface directly.
type ExchangeConnector interface {
	Initialize(ctx context.Context) error
	CreateOrder(ctx context.Context, params types.OrderParams) (types.Order, error)
	CancelOrder(ctx context.Context, id, symbol string) error
	FetchOrder(ctx context.Context, id, symbol string) (types.Order, error)
	FetchOpenOrders(ctx context.Context, symbol string) ([]types.Order, error)
	FetchPositions(ctx context.Context, symbols []string) ([]types.Position, error)
	FetchBalance(ctx context.Context) (decimal.Decimal, error)
	Close(ctx context.Context) error
}
