package backtest

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"tradefabric/pkg/types"
)

// orderBlockRepository is an in-memory indicator.Repository, grounded on
// internal/domain.MemoryOrderRepository's mutex-guarded-map shape: a
// replay run has no relational store behind it, only the order blocks the
// indicator itself has detected so far.
type orderBlockRepository struct {
	mu        sync.Mutex
	instances map[string]types.OrderBlock
}

func newOrderBlockRepository() *orderBlockRepository {
	return &orderBlockRepository{instances: make(map[string]types.OrderBlock)}
}

func (r *orderBlockRepository) put(ob types.OrderBlock) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.instances[ob.ID] = ob
}

func (r *orderBlockRepository) FindActiveInPriceRange(ctx context.Context, exchange, symbol string, minPrice, maxPrice decimal.Decimal, timeframes []string) ([]types.OrderBlock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tfSet := make(map[string]bool, len(timeframes))
	for _, tf := range timeframes {
		tfSet[tf] = true
	}

	var out []types.OrderBlock
	for _, ob := range r.instances {
		if ob.Exchange != exchange || ob.Symbol != symbol {
			continue
		}
		if len(tfSet) > 0 && !tfSet[ob.Timeframe] {
			continue
		}
		if ob.Status != types.InstanceActive {
			continue
		}
		if ob.PriceLow.LessThan(minPrice) || ob.PriceHigh.GreaterThan(maxPrice) {
			continue
		}
		out = append(out, ob)
	}
	return out, nil
}

func (r *orderBlockRepository) UpdateIndicatorStatus(ctx context.Context, instance types.OrderBlock) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.instances[instance.ID]; !ok {
		r.instances[instance.ID] = instance
		return false, nil
	}
	r.instances[instance.ID] = instance
	return true, nil
}
