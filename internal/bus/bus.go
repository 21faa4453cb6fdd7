// Package bus implements the topic-routed message fabric every service
// talks through: durable exchanges, durable queues, wildcard routing-key
// bindings, publish-with-persistence, and per-queue subscriber dispatch.
// Reconnection re-declares every exchange, queue, and binding the process
// previously owned, the way a long-lived AMQP client must.
package bus

import (
	"context"
)

// Handler processes one delivered message. Returning a non-nil error nacks
// the message with requeue=true; returning nil acks it. Handlers MUST be
// idempotent since the bus guarantees at-least-once delivery, never
// exactly-once.
type Handler func(ctx context.Context, routingKey string, body []byte) error

// MessageBus is the topic-routed broker abstraction every service builds
// on. Implementations must be safe for concurrent use.
type MessageBus interface {
	// DeclareExchange idempotently declares a durable topic exchange.
	DeclareExchange(ctx context.Context, name string) error

	// DeclareQueue idempotently declares a durable queue.
	DeclareQueue(ctx context.Context, name string) error

	// BindQueue idempotently binds queue to exchange with a routing-key
	// pattern. '#' matches one or more segments, '*' matches exactly one.
	BindQueue(ctx context.Context, exchange, queue, pattern string) error

	// Publish JSON-encodes payload and publishes it as a persistent
	// message. On failure it reconnects and retries exactly once before
	// returning an error.
	Publish(ctx context.Context, exchange, routingKey string, payload interface{}) error

	// Subscribe starts a dispatcher goroutine that delivers every message
	// on queue to handler, one at a time, acking on success and nacking
	// with requeue on error. Subscribe returns once the dispatcher has
	// started; it does not block.
	Subscribe(ctx context.Context, queue string, handler Handler) error

	// Close stops all dispatchers and closes the underlying connection.
	Close() error
}
