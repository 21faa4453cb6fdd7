package bus

import "testing"

func TestRoutingKeyBuilders(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		got  string
		want string
	}{
		{"external new", RoutingKeyExternalNew("hyperliquid", "btc-usd", "1m"), "external.new.hyperliquid.btc-usd.1m"},
		{"candle new", RoutingKeyCandleNew("hyperliquid", "btc-usd", "5m"), "candle.new.hyperliquid.btc-usd.5m"},
		{"signal detected", RoutingKeySignalOrderBlockDetected("hyperliquid", "btc-usd", "1h"), "signal.orderblock.detected.hyperliquid.btc-usd.1h"},
		{"order new", RoutingKeyOrderNew("hyperliquid", "btc-usd"), "order.new.hyperliquid.btc-usd"},
		{"order cancelled", RoutingKeyOrderCancelled("hyperliquid", "btc-usd"), "order.cancelled.hyperliquid.btc-usd"},
		{"order failed", RoutingKeyOrderFailed("hyperliquid", "btc-usd"), "order.failed.hyperliquid.btc-usd"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if tc.got != tc.want {
				t.Errorf("got %q, want %q", tc.got, tc.want)
			}
		})
	}
}
