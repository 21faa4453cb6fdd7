package bus

import (
	"context"
	"encoding/json"
	"sync"
)

// InMemoryBus is a MessageBus implementation backed by in-process channels
// instead of a real broker. It preserves the two guarantees callers depend
// on: per-routing-key FIFO delivery and at-least-once semantics (a handler
// error redelivers the message once, matching the AMQP nack-with-requeue
// path). It exists for tests that would otherwise need a live RabbitMQ.
type InMemoryBus struct {
	mu       sync.Mutex
	bindings map[string][]bindingMatcher // exchange -> patterns bound to a queue
	queues   map[string]chan inmemDelivery
	subs     map[string]Handler
	closed   chan struct{}
	closeOnce sync.Once
}

type bindingMatcher struct {
	queue   string
	pattern string
}

type inmemDelivery struct {
	routingKey string
	body       []byte
}

func NewInMemoryBus() *InMemoryBus {
	return &InMemoryBus{
		bindings: make(map[string][]bindingMatcher),
		queues:   make(map[string]chan inmemDelivery),
		subs:     make(map[string]Handler),
		closed:   make(chan struct{}),
	}
}

func (b *InMemoryBus) DeclareExchange(ctx context.Context, name string) error { return nil }

func (b *InMemoryBus) DeclareQueue(ctx context.Context, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.queues[name]; !ok {
		b.queues[name] = make(chan inmemDelivery, 256)
	}
	return nil
}

func (b *InMemoryBus) BindQueue(ctx context.Context, exchange, queue, pattern string) error {
	if err := b.DeclareQueue(ctx, queue); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bindings[exchange] = append(b.bindings[exchange], bindingMatcher{queue: queue, pattern: pattern})
	return nil
}

func (b *InMemoryBus) Publish(ctx context.Context, exchange, routingKey string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	b.mu.Lock()
	matches := make([]string, 0, 1)
	for _, bd := range b.bindings[exchange] {
		if routingKeyMatches(bd.pattern, routingKey) {
			matches = append(matches, bd.queue)
		}
	}
	queues := b.queues
	b.mu.Unlock()

	for _, q := range matches {
		ch, ok := queues[q]
		if !ok {
			continue
		}
		select {
		case ch <- inmemDelivery{routingKey: routingKey, body: body}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (b *InMemoryBus) Subscribe(ctx context.Context, queue string, handler Handler) error {
	if err := b.DeclareQueue(ctx, queue); err != nil {
		return err
	}
	b.mu.Lock()
	ch := b.queues[queue]
	b.subs[queue] = handler
	b.mu.Unlock()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-b.closed:
				return
			case d := <-ch:
				if err := handler(ctx, d.routingKey, d.body); err != nil {
					// redeliver once, mirroring nack-with-requeue
					select {
					case ch <- d:
					default:
					}
				}
			}
		}
	}()
	return nil
}

func (b *InMemoryBus) Close() error {
	b.closeOnce.Do(func() { close(b.closed) })
	return nil
}

// routingKeyMatches implements topic matching: '#' matches one-or-more
// segments, '*' matches exactly one.
func routingKeyMatches(pattern, key string) bool {
	pSegs := splitDot(pattern)
	kSegs := splitDot(key)
	return matchSegs(pSegs, kSegs)
}

func matchSegs(p, k []string) bool {
	if len(p) == 0 {
		return len(k) == 0
	}
	head := p[0]
	switch head {
	case "#":
		if len(p) == 1 {
			return len(k) >= 1
		}
		for i := 1; i <= len(k); i++ {
			if matchSegs(p[1:], k[i:]) {
				return true
			}
		}
		return false
	case "*":
		if len(k) == 0 {
			return false
		}
		return matchSegs(p[1:], k[1:])
	default:
		if len(k) == 0 || k[0] != head {
			return false
		}
		return matchSegs(p[1:], k[1:])
	}
}

func splitDot(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '.' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	out = append(out, s[start:])
	return out
}
