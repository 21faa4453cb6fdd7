package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is the order direction on the exchange.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// OrderStatus is the exchange-observed lifecycle state of an Order. Status
// is monotonic: new -> open -> {filled, cancelled, rejected}, plus a
// terminal failed state reachable only from new.
type OrderStatus string

const (
	OrderNew       OrderStatus = "new"
	OrderOpen      OrderStatus = "open"
	OrderFilled    OrderStatus = "filled"
	OrderCancelled OrderStatus = "cancelled"
	OrderRejected  OrderStatus = "rejected"
	OrderFailed    OrderStatus = "failed"
)

// OrderParams is what ExecutionPipeline.ProcessSignal builds from a Signal
// and what ExecutionPipeline.ExecuteOrder submits to the ExchangeConnector.
type OrderParams struct {
	Symbol     string                 `json:"symbol"`
	Type       string                 `json:"type"` // always "limit" per spec
	Side       Side                   `json:"side"`
	Amount     decimal.Decimal        `json:"amount"`
	Price      decimal.Decimal        `json:"price"`
	SignalID   string                 `json:"signal_id"`
	Params     OrderExtraParams       `json:"params"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// OrderExtraParams carries the venue-agnostic extras spec.md names
// explicitly: time-in-force, bracket levels, leverage, and the reduce-only
// flag used for exit signals.
type OrderExtraParams struct {
	TimeInForce string          `json:"timeInForce"`
	StopLoss    decimal.Decimal `json:"stopLoss,omitempty"`
	TakeProfit  decimal.Decimal `json:"takeProfit,omitempty"`
	Leverage    decimal.Decimal `json:"leverage,omitempty"`
	ReduceOnly  bool            `json:"reduceOnly"`
}

// Order is the exchange-assigned order record. Created by ExecutionPipeline
// once the exchange accepts (or fails) an order.
type Order struct {
	ID                string                 `json:"id"`
	SignalID          string                 `json:"signal_id,omitempty"`
	Exchange          string                 `json:"exchange"`
	Symbol            string                 `json:"symbol"`
	OrderType         string                 `json:"order_type"`
	Side              Side                   `json:"side"`
	Price             decimal.Decimal        `json:"price"`
	Size              decimal.Decimal        `json:"size"`
	Value             decimal.Decimal        `json:"value"`
	Status            OrderStatus            `json:"status"`
	FilledSize        decimal.Decimal        `json:"filled_size"`
	AverageFillPrice  decimal.Decimal        `json:"average_fill_price"`
	Fee               decimal.Decimal        `json:"fee"`
	CreatedAt         time.Time              `json:"created_at"`
	UpdatedAt         time.Time              `json:"updated_at"`
	Metadata          map[string]interface{} `json:"metadata,omitempty"`
}

// orderTransitions enumerates the only legal next states for each status.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderNew:    {OrderOpen, OrderFailed, OrderRejected},
	OrderOpen:   {OrderFilled, OrderCancelled, OrderRejected},
	OrderFilled: {},
	OrderCancelled: {},
	OrderRejected:  {},
	OrderFailed:    {},
}

// CanTransitionTo reports whether moving from the receiver's status to next
// is a legal step in the order state machine.
func (o Order) CanTransitionTo(next OrderStatus) bool {
	for _, s := range orderTransitions[o.Status] {
		if s == next {
			return true
		}
	}
	return false
}

// Position is a read-only external view, produced by a Position repository
// collaborator outside this module's scope. No mutating methods live here.
type Position struct {
	ID             string          `json:"id"`
	Exchange       string          `json:"exchange"`
	Symbol         string          `json:"symbol"`
	Side           Side            `json:"side"`
	Size           decimal.Decimal `json:"size"`
	EntryPrice     decimal.Decimal `json:"entry_price"`
	CurrentPrice   decimal.Decimal `json:"current_price"`
	PnL            decimal.Decimal `json:"pnl"`
	PnLPercent     decimal.Decimal `json:"pnl_percent"`
	Status         string          `json:"status"` // "open" | "closed"
	OpenedAt       time.Time       `json:"opened_at"`
	ClosedAt       *time.Time      `json:"closed_at,omitempty"`
}
