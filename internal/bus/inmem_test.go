package bus

import (
	"context"
	"testing"
	"time"
)

func TestInMemoryBusPublishSubscribe(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b := NewInMemoryBus()
	if err := b.BindQueue(ctx, ExchangeMarketData, QueueCandlesData, RoutingKeyCandleNewPattern); err != nil {
		t.Fatalf("BindQueue: %v", err)
	}

	received := make(chan string, 1)
	err := b.Subscribe(ctx, QueueCandlesData, func(ctx context.Context, routingKey string, body []byte) error {
		received <- routingKey
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	rk := RoutingKeyCandleNew("hyperliquid", "btc-usd", "5m")
	if err := b.Publish(ctx, ExchangeMarketData, rk, map[string]string{"x": "y"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case got := <-received:
		if got != rk {
			t.Errorf("got routing key %q, want %q", got, rk)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for delivery")
	}
}

func TestInMemoryBusRedeliversOnHandlerError(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b := NewInMemoryBus()
	if err := b.BindQueue(ctx, ExchangeSystem, QueueSystemEvents, "system.#"); err != nil {
		t.Fatalf("BindQueue: %v", err)
	}

	attempts := make(chan int, 3)
	count := 0
	err := b.Subscribe(ctx, QueueSystemEvents, func(ctx context.Context, routingKey string, body []byte) error {
		count++
		attempts <- count
		if count == 1 {
			return errFirstAttemptFails
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	if err := b.Publish(ctx, ExchangeSystem, "system.heartbeat", "ping"); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	var seen []int
	for i := 0; i < 2; i++ {
		select {
		case a := <-attempts:
			seen = append(seen, a)
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for redelivery, got %v so far", seen)
		}
	}
	if len(seen) != 2 || seen[0] != 1 || seen[1] != 2 {
		t.Errorf("expected attempts [1 2], got %v", seen)
	}
}

func TestRoutingKeyMatchesWildcards(t *testing.T) {
	t.Parallel()

	cases := []struct {
		pattern string
		key     string
		want    bool
	}{
		{"candle.new.#", "candle.new.hyperliquid.btc-usd.5m", true},
		{"candle.new.#", "candle.new", false},
		{"candle.new.#", "other.new.hyperliquid.btc-usd.5m", false},
		{"order.new.*.*", "order.new.hyperliquid.btc-usd", true},
		{"order.new.*.*", "order.new.hyperliquid.btc-usd.extra", false},
	}
	for _, tc := range cases {
		if got := routingKeyMatches(tc.pattern, tc.key); got != tc.want {
			t.Errorf("routingKeyMatches(%q, %q) = %v, want %v", tc.pattern, tc.key, got, tc.want)
		}
	}
}

var errFirstAttemptFails = &testErr{"first attempt fails"}

type testErr struct{ msg string }

func (e *testErr) Error() string { return e.msg }
