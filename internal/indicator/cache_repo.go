package indicator

import (
	"context"

	"github.com/shopspring/decimal"

	"tradefabric/internal/cache"
	"tradefabric/pkg/types"
)

// CacheRepository implements Repository against the shared Cache, the way
// execution.Pipeline tracks its active orders in
// cache.OrderActiveSetKey (internal/execution/pipeline.go): a hash of
// currently-active instances keyed by ID, kept in sync as instances
// transition in and out of InstanceActive. A per-instance key also holds
// the latest record regardless of status, for callers that look one up by
// ID directly.
type CacheRepository struct {
	cache cache.Cache
}

func NewCacheRepository(c cache.Cache) *CacheRepository {
	return &CacheRepository{cache: c}
}

// FindActiveInPriceRange scans the active-set hash for the (exchange,
// symbol) pair, filtering by timeframe and the [minPrice, maxPrice] band.
// An empty timeframes list matches every timeframe.
func (r *CacheRepository) FindActiveInPriceRange(ctx context.Context, exchange, symbol string, minPrice, maxPrice decimal.Decimal, timeframes []string) ([]types.OrderBlock, error) {
	ids, err := r.cache.HashKeys(ctx, cache.OrderBlockActiveSetKey(exchange, symbol))
	if err != nil {
		return nil, err
	}

	tfSet := make(map[string]bool, len(timeframes))
	for _, tf := range timeframes {
		tfSet[tf] = true
	}

	var out []types.OrderBlock
	for _, id := range ids {
		var ob types.OrderBlock
		found, err := r.cache.HashGet(ctx, cache.OrderBlockActiveSetKey(exchange, symbol), id, &ob)
		if err != nil {
			return nil, err
		}
		if !found {
			continue
		}
		if len(tfSet) > 0 && !tfSet[ob.Timeframe] {
			continue
		}
		if ob.PriceLow.LessThan(minPrice) || ob.PriceHigh.GreaterThan(maxPrice) {
			continue
		}
		out = append(out, ob)
	}
	return out, nil
}

// UpdateIndicatorStatus writes the per-ID record and keeps the active-set
// hash in sync: present while Status is InstanceActive, removed the
// moment it mitigates or invalidates. Returns whether a record with this
// ID already existed.
func (r *CacheRepository) UpdateIndicatorStatus(ctx context.Context, instance types.OrderBlock) (bool, error) {
	key := cache.OrderBlockKey(instance.Exchange, instance.Symbol, instance.Timeframe, instance.ID)
	existed, err := r.cache.Exists(ctx, key)
	if err != nil {
		return false, err
	}
	if err := r.cache.Set(ctx, key, instance, 0); err != nil {
		return false, err
	}

	activeSet := cache.OrderBlockActiveSetKey(instance.Exchange, instance.Symbol)
	if instance.Status == types.InstanceActive {
		if err := r.cache.HashSet(ctx, activeSet, instance.ID, instance); err != nil {
			return existed, err
		}
	} else if err := r.cache.HashDelete(ctx, activeSet, instance.ID); err != nil {
		return existed, err
	}

	return existed, nil
}
