package cache

import "fmt"

// Key templates. Segments are lowercased identifiers, matching the routing
// key convention in internal/bus.

func HistoricalCandleKey(exchange, symbol, timeframe string) string {
	return fmt.Sprintf("historical:candle:%s:%s:%s", exchange, symbol, timeframe)
}

func LiveCandleKey(exchange, symbol, timeframe string) string {
	return fmt.Sprintf("live:candle:%s:%s:%s", exchange, symbol, timeframe)
}

func CandleLastUpdatedKey(exchange, symbol, timeframe string) string {
	return fmt.Sprintf("candle:last_updated:%s:%s:%s", exchange, symbol, timeframe)
}

// PartialCandleKey identifies the one in-flight partial bar for a bucket.
// barEndISO must be an RFC 3339 UTC timestamp.
func PartialCandleKey(exchange, symbol, timeframe, barEndISO string) string {
	return fmt.Sprintf("partial:candle:%s:%s:%s:%s", exchange, symbol, timeframe, barEndISO)
}

const PartialCandleTTL = 24 * 60 * 60 // seconds, 1 day

func OrderBlockKey(exchange, symbol, timeframe, id string) string {
	return fmt.Sprintf("ob:%s:%s:%s:%s", exchange, symbol, timeframe, id)
}

func OrderBlockActiveSetKey(exchange, symbol string) string {
	return fmt.Sprintf("ob:%s:%s:active", exchange, symbol)
}

func SignalKey(exchange, symbol, id string) string {
	return fmt.Sprintf("signal:%s:%s:%s", exchange, symbol, id)
}

func SignalActiveSetKey(exchange, symbol string) string {
	return fmt.Sprintf("signals:%s:%s:active", exchange, symbol)
}

const SignalTTL = 7 * 24 * 60 * 60 // seconds, 7 days

func OrderKey(exchange, symbol, id string) string {
	return fmt.Sprintf("order:%s:%s:%s", exchange, symbol, id)
}

func OrderActiveSetKey(exchange, symbol string) string {
	return fmt.Sprintf("orders:%s:%s:active", exchange, symbol)
}

const OrderTTL = 30 * 24 * 60 * 60 // seconds, 30 days

func MarketStateKey(exchange, symbol, timeframe string) string {
	return fmt.Sprintf("market:%s:%s:%s:state", exchange, symbol, timeframe)
}

// MarketContextKey holds the most recent MarketContext snapshot for one
// (exchange, symbol, timeframe), published by the swing-point/Fibonacci
// collaborator described in spec.md §6. StrategyRunner reads one per
// timeframe it needs for a multi-timeframe context set.
func MarketContextKey(exchange, symbol, timeframe string) string {
	return fmt.Sprintf("market_context:%s:%s:%s", exchange, symbol, timeframe)
}
