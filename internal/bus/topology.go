package bus

import "fmt"

// Exchange names. All are topic exchanges, declared durable.
const (
	ExchangeMarketData = "market_data"
	ExchangeStrategy   = "strategy"
	ExchangeExecution  = "execution"
	ExchangeSystem     = "system"
)

// Queue names. All are durable.
const (
	QueueExternalData    = "external_data"
	QueueCandlesData     = "candles_data"
	QueueDataEvents      = "data_events"
	QueueStrategySignals = "strategy_signals"
	QueueExecutionOrders = "execution_orders"
	QueueSystemEvents    = "system_events"
)

// Routing key builders. Segments are lowercased identifiers; callers pass
// already-lowercased exchange/symbol/timeframe values.

func RoutingKeyExternalNew(exchange, symbol, timeframe string) string {
	return fmt.Sprintf("external.new.%s.%s.%s", exchange, symbol, timeframe)
}

// RoutingKeyExternalNewPattern is the wildcard binding pattern the candle
// aggregator uses to receive every base-candle event regardless of
// venue/symbol/timeframe.
const RoutingKeyExternalNewPattern = "external.new.#"

func RoutingKeyCandleNew(exchange, symbol, timeframe string) string {
	return fmt.Sprintf("candle.new.%s.%s.%s", exchange, symbol, timeframe)
}

// RoutingKeyCandleNewPattern is the wildcard binding pattern a strategy
// subscriber uses to receive every candle event regardless of venue/symbol.
const RoutingKeyCandleNewPattern = "candle.new.#"

func RoutingKeySignalOrderBlockDetected(exchange, symbol, timeframe string) string {
	return fmt.Sprintf("signal.orderblock.detected.%s.%s.%s", exchange, symbol, timeframe)
}

// RoutingKeySignalPattern is the wildcard binding pattern ExecutionPipeline
// uses to receive every signal regardless of strategy/venue/symbol.
const RoutingKeySignalPattern = "signal.#"

// RoutingKeyOrderPattern is the wildcard binding pattern
// MonitoringOrderTracker uses to receive every order-lifecycle event.
const RoutingKeyOrderPattern = "order.#"

func RoutingKeyOrderNew(exchange, symbol string) string {
	return fmt.Sprintf("order.new.%s.%s", exchange, symbol)
}

func RoutingKeyOrderCancelled(exchange, symbol string) string {
	return fmt.Sprintf("order.cancelled.%s.%s", exchange, symbol)
}

func RoutingKeyOrderFailed(exchange, symbol string) string {
	return fmt.Sprintf("order.failed.%s.%s", exchange, symbol)
}
