package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// SwingPoint is a local extremum in a recent candle window.
type SwingPoint struct {
	Price     decimal.Decimal `json:"price"`
	Index     int             `json:"index"`
	Timestamp time.Time       `json:"timestamp"`
}

// PriceRange describes the swing-high/swing-low span a MarketContext was
// computed over.
type PriceRange struct {
	High        decimal.Decimal `json:"high"`
	Low         decimal.Decimal `json:"low"`
	Equilibrium decimal.Decimal `json:"equilibrium"`
	Size        decimal.Decimal `json:"size"`
	Strength    float64         `json:"strength"`
}

// FibLevel is a single Fibonacci retracement/extension price level.
type FibLevel struct {
	Price decimal.Decimal `json:"price"`
	Level float64         `json:"level"`
	Type  string          `json:"type"`
}

// FibLevels groups support/resistance Fibonacci levels derived from a swing
// range.
type FibLevels struct {
	Support    []FibLevel `json:"support"`
	Resistance []FibLevel `json:"resistance"`
}

// MarketContext is a read-only snapshot of broader market structure (swing
// points, trend, Fibonacci levels) supplied alongside candles to indicators
// and strategies. It is produced by a collaborator outside this module's
// scope (market-structure / swing-point / Fibonacci computation); nothing
// here mutates it.
type MarketContext struct {
	Exchange     string          `json:"exchange"`
	Symbol       string          `json:"symbol"`
	Timeframe    string          `json:"timeframe"`
	Timestamp    time.Time       `json:"timestamp"`
	CurrentPrice decimal.Decimal `json:"current_price"`
	SwingHigh    *SwingPoint     `json:"swing_high,omitempty"`
	SwingLow     *SwingPoint     `json:"swing_low,omitempty"`
	Trend        string          `json:"trend"` // "bullish" | "bearish" | "neutral"
	Range        *PriceRange     `json:"range,omitempty"`
	FibLevels    *FibLevels      `json:"fib_levels,omitempty"`
	FundingRate  float64         `json:"funding_rate,omitempty"`
	OpenInterest float64         `json:"open_interest,omitempty"`
}

// MessageEnvelope pairs a routing key and timestamp with a payload. The bus
// implementations in internal/bus do not use it: they publish the
// JSON-encoded payload itself, and subscribers decode that directly into the
// concrete type the routing key implies.
type MessageEnvelope struct {
	RoutingKey string          `json:"routing_key"`
	Timestamp  time.Time       `json:"timestamp"`
	Payload    interface{}     `json:"payload"`
}
