package candle

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tradefabric/internal/cache"
	"tradefabric/pkg/types"
)

func TestStateManagerPartialRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	sm := NewStateManager(cache.NewInMemoryCache())

	end := time.Date(2026, 7, 30, 14, 5, 0, 0, time.UTC)
	partial := types.Candle{
		Exchange: "hyperliquid", Symbol: "btc-usd", Timeframe: "5m", Timestamp: end,
		Open: decimal.NewFromInt(100), High: decimal.NewFromInt(100), Low: decimal.NewFromInt(100),
		Close: decimal.NewFromInt(100), Volume: decimal.NewFromInt(1),
	}

	if err := sm.StorePartial(ctx, partial); err != nil {
		t.Fatalf("StorePartial: %v", err)
	}

	got, found, err := sm.GetPartial(ctx, "hyperliquid", "btc-usd", "5m", end)
	if err != nil || !found {
		t.Fatalf("expected stored partial, found=%v err=%v", found, err)
	}
	if !got.Open.Equal(partial.Open) {
		t.Errorf("got open %v, want %v", got.Open, partial.Open)
	}

	if err := sm.DeletePartial(ctx, "hyperliquid", "btc-usd", "5m", end); err != nil {
		t.Fatalf("DeletePartial: %v", err)
	}
	_, found, err = sm.GetPartial(ctx, "hyperliquid", "btc-usd", "5m", end)
	if err != nil {
		t.Fatalf("GetPartial after delete: %v", err)
	}
	if found {
		t.Errorf("expected partial to be gone after delete")
	}
}
