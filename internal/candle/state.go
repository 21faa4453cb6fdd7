package candle

import (
	"context"
	"time"

	"tradefabric/internal/cache"
	"tradefabric/pkg/types"
)

// StateManager owns the single in-flight partial candle per
// (exchange, symbol, timeframe, bucket-end), backed by the shared Cache.
// There is never more than one partial candle per bucket: GetPartial reads
// it, StorePartial overwrites it, DeletePartial removes it once the bucket
// completes.
type StateManager struct {
	cache cache.Cache
}

func NewStateManager(c cache.Cache) *StateManager {
	return &StateManager{cache: c}
}

func (s *StateManager) GetPartial(ctx context.Context, exchange, symbol, timeframe string, bucketEnd time.Time) (types.Candle, bool, error) {
	key := cache.PartialCandleKey(exchange, symbol, timeframe, bucketEnd.UTC().Format(time.RFC3339))
	var c types.Candle
	found, err := s.cache.Get(ctx, key, &c)
	if err != nil || !found {
		return types.Candle{}, false, err
	}
	return c, true, nil
}

func (s *StateManager) StorePartial(ctx context.Context, c types.Candle) error {
	key := cache.PartialCandleKey(c.Exchange, c.Symbol, c.Timeframe, c.Timestamp.UTC().Format(time.RFC3339))
	return s.cache.Set(ctx, key, c, time.Duration(cache.PartialCandleTTL)*time.Second)
}

func (s *StateManager) DeletePartial(ctx context.Context, exchange, symbol, timeframe string, bucketEnd time.Time) error {
	key := cache.PartialCandleKey(exchange, symbol, timeframe, bucketEnd.UTC().Format(time.RFC3339))
	return s.cache.Delete(ctx, key)
}

// StoreClosed appends a closed candle to the historical sorted set (scored
// by epoch-ms) and records the live last-updated marker. It is the
// counterpart of the original's repository.upsert for the in-process
// cache-backed view other components read from.
func (s *StateManager) StoreClosed(ctx context.Context, c types.Candle, source string) error {
	historicalKey := cache.HistoricalCandleKey(c.Exchange, c.Symbol, c.Timeframe)
	if err := s.cache.SortedSetAdd(ctx, historicalKey, float64(c.Timestamp.UnixMilli()), c); err != nil {
		return err
	}
	liveKey := cache.LiveCandleKey(c.Exchange, c.Symbol, c.Timeframe)
	if err := s.cache.SortedSetAdd(ctx, liveKey, float64(c.Timestamp.UnixMilli()), c); err != nil {
		return err
	}
	lastUpdatedKey := cache.CandleLastUpdatedKey(c.Exchange, c.Symbol, c.Timeframe)
	return s.cache.Set(ctx, lastUpdatedKey, map[string]interface{}{
		"timestamp": c.Timestamp,
		"source":    source,
	}, 0)
}
