package backtest

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"tradefabric/pkg/types"
)

func TestOrderBlockRepositoryFindActiveInPriceRangeFiltersByEverything(t *testing.T) {
	repo := newOrderBlockRepository()
	repo.put(types.OrderBlock{
		IndicatorInstance: types.IndicatorInstance{ID: "ob-1", Exchange: "binance", Symbol: "BTC-USD", Timeframe: "1h", Status: types.InstanceActive},
		PriceLow:          decimal.NewFromInt(90),
		PriceHigh:         decimal.NewFromInt(110),
	})
	repo.put(types.OrderBlock{
		IndicatorInstance: types.IndicatorInstance{ID: "ob-2", Exchange: "binance", Symbol: "BTC-USD", Timeframe: "1h", Status: types.InstanceMitigated},
		PriceLow:          decimal.NewFromInt(90),
		PriceHigh:         decimal.NewFromInt(110),
	})
	repo.put(types.OrderBlock{
		IndicatorInstance: types.IndicatorInstance{ID: "ob-3", Exchange: "binance", Symbol: "ETH-USD", Timeframe: "1h", Status: types.InstanceActive},
		PriceLow:          decimal.NewFromInt(90),
		PriceHigh:         decimal.NewFromInt(110),
	})

	out, err := repo.FindActiveInPriceRange(context.Background(), "binance", "BTC-USD", decimal.NewFromInt(80), decimal.NewFromInt(120), []string{"1h"})
	if err != nil {
		t.Fatalf("FindActiveInPriceRange: %v", err)
	}
	if len(out) != 1 || out[0].ID != "ob-1" {
		t.Fatalf("expected only the active BTC-USD block, got %+v", out)
	}
}

func TestOrderBlockRepositoryFindActiveInPriceRangeRespectsBounds(t *testing.T) {
	repo := newOrderBlockRepository()
	repo.put(types.OrderBlock{
		IndicatorInstance: types.IndicatorInstance{ID: "ob-1", Exchange: "binance", Symbol: "BTC-USD", Timeframe: "1h", Status: types.InstanceActive},
		PriceLow:          decimal.NewFromInt(200),
		PriceHigh:         decimal.NewFromInt(210),
	})

	out, err := repo.FindActiveInPriceRange(context.Background(), "binance", "BTC-USD", decimal.NewFromInt(80), decimal.NewFromInt(120), []string{"1h"})
	if err != nil {
		t.Fatalf("FindActiveInPriceRange: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("expected no blocks out of price range, got %+v", out)
	}
}

func TestOrderBlockRepositoryUpdateIndicatorStatusReportsExisting(t *testing.T) {
	repo := newOrderBlockRepository()
	ob := types.OrderBlock{IndicatorInstance: types.IndicatorInstance{ID: "ob-1", Status: types.InstanceActive}}

	existed, err := repo.UpdateIndicatorStatus(context.Background(), ob)
	if err != nil {
		t.Fatalf("UpdateIndicatorStatus: %v", err)
	}
	if existed {
		t.Errorf("expected existed=false on first write")
	}

	ob.Status = types.InstanceMitigated
	existed, err = repo.UpdateIndicatorStatus(context.Background(), ob)
	if err != nil {
		t.Fatalf("UpdateIndicatorStatus: %v", err)
	}
	if !existed {
		t.Errorf("expected existed=true when overwriting an existing instance")
	}
}
