// Package types defines shared data structures used across all services.
//
// This package is the common vocabulary for the trading platform — candles,
// signals, orders, positions, indicator instances, and a message envelope
// type. It has no dependency on any internal package, so
// it can be imported by every layer without import cycles.
package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Candle is an OHLCV bar. Identity is (Exchange, Symbol, Timeframe,
// Timestamp); once IsClosed is true a Candle is immutable and must never be
// mutated again by any component.
type Candle struct {
	Exchange  string          `json:"exchange"`
	Symbol    string          `json:"symbol"`
	Timeframe string          `json:"timeframe"`
	Timestamp time.Time       `json:"timestamp"` // bar-open for base candles, bucket-end for custom timeframes
	Open      decimal.Decimal `json:"open"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Close     decimal.Decimal `json:"close"`
	Volume    decimal.Decimal `json:"volume"`
	IsClosed  bool            `json:"is_closed"`
}

// Key returns the identity tuple used for dedup and cache keys.
func (c Candle) Key() (exchange, symbol, timeframe string, ts time.Time) {
	return c.Exchange, c.Symbol, c.Timeframe, c.Timestamp
}

// Merge folds base candle b into the receiver per the partial-candle merge
// rule: open is preserved, high/low extend, close tracks the latest bar,
// volume accumulates. The receiver's timestamp is left untouched (fixed at
// bucket end).
func (c Candle) Merge(b Candle) Candle {
	merged := c
	if b.High.GreaterThan(merged.High) {
		merged.High = b.High
	}
	if b.Low.LessThan(merged.Low) {
		merged.Low = b.Low
	}
	merged.Close = b.Close
	merged.Volume = merged.Volume.Add(b.Volume)
	return merged
}

// NewPartialFromBase constructs the first partial candle of a bucket from a
// single base bar.
func NewPartialFromBase(b Candle, timeframe string, bucketEnd time.Time) Candle {
	return Candle{
		Exchange:  b.Exchange,
		Symbol:    b.Symbol,
		Timeframe: timeframe,
		Timestamp: bucketEnd,
		Open:      b.Open,
		High:      b.High,
		Low:       b.Low,
		Close:     b.Close,
		Volume:    b.Volume,
		IsClosed:  false,
	}
}
