package indicator

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"tradefabric/internal/cache"
	"tradefabric/pkg/types"
)

func testOrderBlock(id, timeframe string, low, high int64, status types.InstanceStatus) types.OrderBlock {
	return types.OrderBlock{
		IndicatorInstance: types.IndicatorInstance{
			ID:        id,
			Exchange:  "binance",
			Symbol:    "BTC-USD",
			Timeframe: timeframe,
			Status:    status,
		},
		PriceLow:  decimal.NewFromInt(low),
		PriceHigh: decimal.NewFromInt(high),
	}
}

func TestCacheRepositoryUpdateIndicatorStatusReportsExisted(t *testing.T) {
	repo := NewCacheRepository(cache.NewInMemoryCache())
	ctx := context.Background()

	existed, err := repo.UpdateIndicatorStatus(ctx, testOrderBlock("ob-1", "1h", 100, 110, types.InstanceActive))
	if err != nil {
		t.Fatalf("UpdateIndicatorStatus: %v", err)
	}
	if existed {
		t.Error("first write should report existed=false")
	}

	existed, err = repo.UpdateIndicatorStatus(ctx, testOrderBlock("ob-1", "1h", 100, 110, types.InstanceMitigated))
	if err != nil {
		t.Fatalf("UpdateIndicatorStatus: %v", err)
	}
	if !existed {
		t.Error("second write should report existed=true")
	}
}

func TestCacheRepositoryFindActiveInPriceRangeFiltersOnEveryDimension(t *testing.T) {
	repo := NewCacheRepository(cache.NewInMemoryCache())
	ctx := context.Background()

	active1h := testOrderBlock("ob-1h", "1h", 100, 110, types.InstanceActive)
	active4h := testOrderBlock("ob-4h", "4h", 100, 110, types.InstanceActive)
	outOfRange := testOrderBlock("ob-far", "1h", 500, 510, types.InstanceActive)
	mitigated := testOrderBlock("ob-done", "1h", 100, 110, types.InstanceMitigated)

	for _, ob := range []types.OrderBlock{active1h, active4h, outOfRange, mitigated} {
		if _, err := repo.UpdateIndicatorStatus(ctx, ob); err != nil {
			t.Fatalf("UpdateIndicatorStatus: %v", err)
		}
	}

	got, err := repo.FindActiveInPriceRange(ctx, "binance", "BTC-USD", decimal.NewFromInt(90), decimal.NewFromInt(120), []string{"1h"})
	if err != nil {
		t.Fatalf("FindActiveInPriceRange: %v", err)
	}
	if len(got) != 1 || got[0].ID != "ob-1h" {
		t.Fatalf("got %+v, want exactly ob-1h", got)
	}
}

func TestCacheRepositoryMitigatedInstanceLeavesActiveSet(t *testing.T) {
	repo := NewCacheRepository(cache.NewInMemoryCache())
	ctx := context.Background()

	ob := testOrderBlock("ob-1", "1h", 100, 110, types.InstanceActive)
	if _, err := repo.UpdateIndicatorStatus(ctx, ob); err != nil {
		t.Fatalf("UpdateIndicatorStatus: %v", err)
	}

	ob.Status = types.InstanceMitigated
	if _, err := repo.UpdateIndicatorStatus(ctx, ob); err != nil {
		t.Fatalf("UpdateIndicatorStatus: %v", err)
	}

	got, err := repo.FindActiveInPriceRange(ctx, "binance", "BTC-USD", decimal.NewFromInt(0), decimal.NewFromInt(1000), nil)
	if err != nil {
		t.Fatalf("FindActiveInPriceRange: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("mitigated instance should have left the active set, got %+v", got)
	}
}
