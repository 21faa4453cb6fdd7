package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"tradefabric/internal/errkind"
)

type binding struct {
	exchange string
	pattern  string
}

type subscription struct {
	queue   string
	handler Handler
}

// AMQPBus is a MessageBus backed by RabbitMQ via amqp091-go. It tracks every
// exchange, queue, and binding it has declared, and every active
// subscription, so that a dropped connection can be fully rebuilt: connect,
// then redeclare everything, then resume every subscriber.
type AMQPBus struct {
	url       string
	minDelay  time.Duration
	maxDelay  time.Duration
	pubTO     time.Duration
	logger    *slog.Logger

	mu            sync.Mutex
	conn          *amqp.Connection
	ch            *amqp.Channel
	exchanges     map[string]bool
	queues        map[string]bool
	queueBindings map[string][]binding
	subs          []subscription

	closeOnce sync.Once
	closed    chan struct{}
}

// NewAMQPBus dials the broker at url and connects immediately. minDelay and
// maxDelay bound the reconnect backoff (exponential, doubling each attempt,
// capped at maxDelay).
func NewAMQPBus(url string, minDelay, maxDelay, publishTimeout time.Duration, logger *slog.Logger) (*AMQPBus, error) {
	b := &AMQPBus{
		url:           url,
		minDelay:      minDelay,
		maxDelay:      maxDelay,
		pubTO:         publishTimeout,
		logger:        logger.With("component", "bus"),
		exchanges:     make(map[string]bool),
		queues:        make(map[string]bool),
		queueBindings: make(map[string][]binding),
		closed:        make(chan struct{}),
	}
	if err := b.connect(); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *AMQPBus) connect() error {
	conn, err := amqp.Dial(b.url)
	if err != nil {
		return errkind.WrapTransient(err, "dial amqp broker")
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return errkind.WrapTransient(err, "open amqp channel")
	}

	b.mu.Lock()
	b.conn = conn
	b.ch = ch
	b.mu.Unlock()

	if err := b.redeclareAll(); err != nil {
		return err
	}

	notifyClose := make(chan *amqp.Error, 1)
	conn.NotifyClose(notifyClose)
	go b.watchConnection(notifyClose)

	b.logger.Info("connected to amqp broker")
	return nil
}

// watchConnection blocks until the connection closes (or the bus is closed
// intentionally), then reconnects with exponential backoff and resumes
// every subscription.
func (b *AMQPBus) watchConnection(notifyClose chan *amqp.Error) {
	select {
	case <-b.closed:
		return
	case err := <-notifyClose:
		b.logger.Warn("amqp connection lost, reconnecting", "error", err)
	}

	delay := b.minDelay
	for {
		select {
		case <-b.closed:
			return
		default:
		}

		if err := b.connect(); err != nil {
			b.logger.Warn("reconnect failed, retrying", "error", err, "delay", delay)
			select {
			case <-b.closed:
				return
			case <-time.After(delay):
			}
			delay *= 2
			if delay > b.maxDelay {
				delay = b.maxDelay
			}
			continue
		}

		b.resubscribeAll()
		return
	}
}

// redeclareAll re-declares every tracked exchange, queue, and binding. It is
// called once on initial connect and again after every reconnect.
func (b *AMQPBus) redeclareAll() error {
	b.mu.Lock()
	ch := b.ch
	exchanges := make([]string, 0, len(b.exchanges))
	for name := range b.exchanges {
		exchanges = append(exchanges, name)
	}
	queues := make([]string, 0, len(b.queues))
	for name := range b.queues {
		queues = append(queues, name)
	}
	bindingsCopy := make(map[string][]binding, len(b.queueBindings))
	for q, bs := range b.queueBindings {
		bindingsCopy[q] = append([]binding(nil), bs...)
	}
	b.mu.Unlock()

	for _, name := range exchanges {
		if err := declareExchange(ch, name); err != nil {
			return err
		}
	}
	for _, name := range queues {
		if err := declareQueue(ch, name); err != nil {
			return err
		}
	}
	for queue, bs := range bindingsCopy {
		for _, bd := range bs {
			if err := ch.QueueBind(queue, bd.pattern, bd.exchange, false, nil); err != nil {
				return errkind.WrapTransient(err, "rebind queue %s to %s (%s)", queue, bd.exchange, bd.pattern)
			}
		}
	}
	return nil
}

func declareExchange(ch *amqp.Channel, name string) error {
	if err := ch.ExchangeDeclare(name, "topic", true, false, false, false, nil); err != nil {
		return errkind.WrapTransient(err, "declare exchange %s", name)
	}
	return nil
}

func declareQueue(ch *amqp.Channel, name string) error {
	if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
		return errkind.WrapTransient(err, "declare queue %s", name)
	}
	return nil
}

func (b *AMQPBus) DeclareExchange(ctx context.Context, name string) error {
	b.mu.Lock()
	ch := b.ch
	b.mu.Unlock()

	if err := declareExchange(ch, name); err != nil {
		return err
	}
	b.mu.Lock()
	b.exchanges[name] = true
	b.mu.Unlock()
	return nil
}

func (b *AMQPBus) DeclareQueue(ctx context.Context, name string) error {
	b.mu.Lock()
	ch := b.ch
	b.mu.Unlock()

	if err := declareQueue(ch, name); err != nil {
		return err
	}
	b.mu.Lock()
	b.queues[name] = true
	if _, ok := b.queueBindings[name]; !ok {
		b.queueBindings[name] = nil
	}
	b.mu.Unlock()
	return nil
}

func (b *AMQPBus) BindQueue(ctx context.Context, exchange, queue, pattern string) error {
	if err := b.DeclareExchange(ctx, exchange); err != nil {
		return err
	}
	if err := b.DeclareQueue(ctx, queue); err != nil {
		return err
	}

	b.mu.Lock()
	ch := b.ch
	b.mu.Unlock()

	if err := ch.QueueBind(queue, pattern, exchange, false, nil); err != nil {
		return errkind.WrapTransient(err, "bind queue %s to %s (%s)", queue, exchange, pattern)
	}

	b.mu.Lock()
	bs := b.queueBindings[queue]
	for _, existing := range bs {
		if existing.exchange == exchange && existing.pattern == pattern {
			b.mu.Unlock()
			return nil
		}
	}
	b.queueBindings[queue] = append(bs, binding{exchange: exchange, pattern: pattern})
	b.mu.Unlock()
	return nil
}

// Publish JSON-encodes payload and publishes it as a persistent message. On
// failure it reconnects and retries exactly once, per spec.
func (b *AMQPBus) Publish(ctx context.Context, exchange, routingKey string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return errkind.WrapValidation(err, "marshal message for %s:%s", exchange, routingKey)
	}

	publishCtx, cancel := context.WithTimeout(ctx, b.pubTO)
	defer cancel()

	if err := b.publishOnce(publishCtx, exchange, routingKey, body); err == nil {
		return nil
	} else {
		b.logger.Warn("publish failed, reconnecting and retrying once", "exchange", exchange, "routing_key", routingKey, "error", err)
	}

	if err := b.connect(); err != nil {
		return errkind.WrapTransient(err, "reconnect before publish retry")
	}
	return b.publishOnce(publishCtx, exchange, routingKey, body)
}

func (b *AMQPBus) publishOnce(ctx context.Context, exchange, routingKey string, body []byte) error {
	b.mu.Lock()
	ch := b.ch
	b.mu.Unlock()

	err := ch.PublishWithContext(ctx, exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		return errkind.WrapTransient(err, "publish to %s:%s", exchange, routingKey)
	}
	return nil
}

// Subscribe starts a dispatcher goroutine that delivers messages from queue
// to handler one at a time, acking on success and nacking with requeue on
// error. The subscription is remembered so reconnects can resume it.
func (b *AMQPBus) Subscribe(ctx context.Context, queue string, handler Handler) error {
	b.mu.Lock()
	b.subs = append(b.subs, subscription{queue: queue, handler: handler})
	b.mu.Unlock()

	return b.startDispatcher(ctx, queue, handler)
}

func (b *AMQPBus) startDispatcher(ctx context.Context, queue string, handler Handler) error {
	b.mu.Lock()
	ch := b.ch
	b.mu.Unlock()

	deliveries, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return errkind.WrapTransient(err, "consume from queue %s", queue)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-b.closed:
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				if err := handler(ctx, d.RoutingKey, d.Body); err != nil {
					b.logger.Error("handler failed, nacking with requeue", "queue", queue, "routing_key", d.RoutingKey, "error", err)
					_ = d.Nack(false, true)
					continue
				}
				_ = d.Ack(false)
			}
		}
	}()
	return nil
}

func (b *AMQPBus) resubscribeAll() {
	b.mu.Lock()
	subs := append([]subscription(nil), b.subs...)
	b.mu.Unlock()

	for _, s := range subs {
		if err := b.startDispatcher(context.Background(), s.queue, s.handler); err != nil {
			b.logger.Error("failed to resume subscription after reconnect", "queue", s.queue, "error", err)
		}
	}
}

// Close stops all dispatchers and closes the underlying connection.
func (b *AMQPBus) Close() error {
	var err error
	b.closeOnce.Do(func() {
		close(b.closed)
		b.mu.Lock()
		conn := b.conn
		b.mu.Unlock()
		if conn != nil {
			err = conn.Close()
		}
	})
	if err != nil {
		return fmt.Errorf("close amqp connection: %w", err)
	}
	return nil
}
