// Package domain names the repository contracts spec.md §6 describes as
// "external collaborators, not part of the core": persistence for
// Candles, Signals, Orders, and Positions. Relational storage is an
// explicit non-goal (spec.md §1) — only the behavioral contracts live
// here, plus an in-memory stub sufficient for tests, never a real
// database binding. `indicator.Repository` already covers the
// OrderBlock-specific `indicator_repo` contract; the interfaces below
// cover the remaining four spec.md names.
package domain

import (
	"context"
	"time"

	"tradefabric/pkg/types"
)

// CandleRepository mirrors spec.md §6's
// `candles.find_by(exchange,symbol,timeframe,start?,end?,limit?)` /
// `upsert([Candle])` / `get_latest(…)` contract.
type CandleRepository interface {
	FindBy(ctx context.Context, exchange, symbol, timeframe string, start, end *time.Time, limit int) ([]types.Candle, error)
	Upsert(ctx context.Context, candles []types.Candle) (int, error)
	GetLatest(ctx context.Context, exchange, symbol, timeframe string) (*types.Candle, bool, error)
}

// SignalRepository is the "analogous for Signals" line of spec.md §6.
type SignalRepository interface {
	FindActive(ctx context.Context, exchange, symbol string) ([]types.Signal, error)
	Save(ctx context.Context, signal types.Signal) error
	UpdateStatus(ctx context.Context, id string, status types.ExecutionStatus) (bool, error)
}

// OrderRepository is the "analogous for Orders" line of spec.md §6.
type OrderRepository interface {
	FindActive(ctx context.Context, exchange, symbol string) ([]types.Order, error)
	FindByID(ctx context.Context, exchange, symbol, id string) (*types.Order, bool, error)
	Save(ctx context.Context, order types.Order) error
}

// PositionRepository is the "analogous for Positions" line of spec.md §6.
// internal/monitoring defines its own narrower consumer-side interface
// (just FindOpen) rather than importing this one, matching the
// "accept interfaces" idiom already used for ExchangeConnector; any
// implementation of this broader contract also satisfies that one.
type PositionRepository interface {
	FindOpen(ctx context.Context) ([]types.Position, error)
	FindBySymbol(ctx context.Context, exchange, symbol string) (*types.Position, bool, error)
}
