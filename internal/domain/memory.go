package domain

import (
	"context"
	"sort"
	"sync"
	"time"

	"tradefabric/internal/errkind"
	"tradefabric/pkg/types"
)

// The four stub types below satisfy CandleRepository, SignalRepository,
// OrderRepository, and PositionRepository respectively, sufficient for
// tests per spec.md §1's non-goal on relational storage engines. Grounded
// on the teacher's internal/store.Store for the
// mutex-serializes-every-operation shape, traded for in-memory maps since
// this module never binds to a real database. Kept as separate types
// rather than one struct implementing all four interfaces, since two of
// the contracts share a method name (FindActive) with different element
// types.

func bucketKey(exchange, symbol, timeframe string) string {
	return exchange + ":" + symbol + ":" + timeframe
}

// MemoryCandleRepository implements CandleRepository.
type MemoryCandleRepository struct {
	mu      sync.Mutex
	candles map[string][]types.Candle
}

func NewMemoryCandleRepository() *MemoryCandleRepository {
	return &MemoryCandleRepository{candles: make(map[string][]types.Candle)}
}

func (m *MemoryCandleRepository) FindBy(ctx context.Context, exchange, symbol, timeframe string, start, end *time.Time, limit int) ([]types.Candle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []types.Candle
	for _, c := range m.candles[bucketKey(exchange, symbol, timeframe)] {
		if start != nil && c.Timestamp.Before(*start) {
			continue
		}
		if end != nil && c.Timestamp.After(*end) {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

// Upsert replaces any candle sharing the same (exchange, symbol,
// timeframe, timestamp) identity, matching spec.md §3's uniqueness rule,
// and returns the count written.
func (m *MemoryCandleRepository) Upsert(ctx context.Context, candles []types.Candle) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, c := range candles {
		key := bucketKey(c.Exchange, c.Symbol, c.Timeframe)
		bucket := m.candles[key]
		replaced := false
		for i, existing := range bucket {
			if existing.Timestamp.Equal(c.Timestamp) {
				bucket[i] = c
				replaced = true
				break
			}
		}
		if !replaced {
			bucket = append(bucket, c)
		}
		m.candles[key] = bucket
	}
	return len(candles), nil
}

func (m *MemoryCandleRepository) GetLatest(ctx context.Context, exchange, symbol, timeframe string) (*types.Candle, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	bucket := m.candles[bucketKey(exchange, symbol, timeframe)]
	if len(bucket) == 0 {
		return nil, false, nil
	}
	latest := bucket[0]
	for _, c := range bucket[1:] {
		if c.Timestamp.After(latest.Timestamp) {
			latest = c
		}
	}
	return &latest, true, nil
}

// MemorySignalRepository implements SignalRepository.
type MemorySignalRepository struct {
	mu      sync.Mutex
	signals map[string]types.Signal
}

func NewMemorySignalRepository() *MemorySignalRepository {
	return &MemorySignalRepository{signals: make(map[string]types.Signal)}
}

// FindActive returns every stored signal for (exchange, symbol) whose
// execution status has not reached a terminal state.
func (m *MemorySignalRepository) FindActive(ctx context.Context, exchange, symbol string) ([]types.Signal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []types.Signal
	for _, s := range m.signals {
		if s.Exchange != exchange || s.Symbol != symbol {
			continue
		}
		if s.ExecutionStatus == types.SignalRejected || s.ExecutionStatus == types.SignalFilled || s.ExecutionStatus == types.SignalCancelled {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (m *MemorySignalRepository) Save(ctx context.Context, signal types.Signal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.signals[signal.ID] = signal
	return nil
}

// UpdateStatus enforces the monotonic execution-status transition spec.md
// §3 describes for Signal (pending -> submitted -> {rejected, filled,
// cancelled}): a step back, or from one terminal status to another, returns
// false with a contract error. Repeating the current status is accepted. An
// unknown id is reported rather than silently created.
func (m *MemorySignalRepository) UpdateStatus(ctx context.Context, id string, status types.ExecutionStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sig, ok := m.signals[id]
	if !ok {
		return false, nil
	}
	rank := map[types.ExecutionStatus]int{
		types.SignalPending: 0, types.SignalSubmitted: 1,
		types.SignalRejected: 2, types.SignalFilled: 2, types.SignalCancelled: 2,
	}
	if status != sig.ExecutionStatus && rank[status] <= rank[sig.ExecutionStatus] {
		return false, errkind.WrapContract(nil, "signal %s: illegal status transition %s -> %s", id, sig.ExecutionStatus, status)
	}
	sig.ExecutionStatus = status
	m.signals[id] = sig
	return true, nil
}

// MemoryOrderRepository implements OrderRepository.
type MemoryOrderRepository struct {
	mu     sync.Mutex
	orders map[string]types.Order
}

func NewMemoryOrderRepository() *MemoryOrderRepository {
	return &MemoryOrderRepository{orders: make(map[string]types.Order)}
}

func orderKey(exchange, symbol, id string) string { return exchange + ":" + symbol + ":" + id }

func (m *MemoryOrderRepository) FindActive(ctx context.Context, exchange, symbol string) ([]types.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []types.Order
	for _, o := range m.orders {
		if o.Exchange == exchange && o.Symbol == symbol && o.Status == types.OrderOpen {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *MemoryOrderRepository) FindByID(ctx context.Context, exchange, symbol, id string) (*types.Order, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[orderKey(exchange, symbol, id)]
	if !ok {
		return nil, false, nil
	}
	return &o, true, nil
}

func (m *MemoryOrderRepository) Save(ctx context.Context, order types.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[orderKey(order.Exchange, order.Symbol, order.ID)] = order
	return nil
}

// MemoryPositionRepository implements PositionRepository (and, by having
// only a FindOpen method shaped the same way, internal/monitoring's
// narrower consumer-side interface).
type MemoryPositionRepository struct {
	mu        sync.Mutex
	positions map[string]types.Position
}

func NewMemoryPositionRepository() *MemoryPositionRepository {
	return &MemoryPositionRepository{positions: make(map[string]types.Position)}
}

func (m *MemoryPositionRepository) FindOpen(ctx context.Context) ([]types.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []types.Position
	for _, p := range m.positions {
		if p.Status == "open" {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *MemoryPositionRepository) FindBySymbol(ctx context.Context, exchange, symbol string) (*types.Position, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range m.positions {
		if p.Exchange == exchange && p.Symbol == symbol {
			return &p, true, nil
		}
	}
	return nil, false, nil
}

func (m *MemoryPositionRepository) Save(ctx context.Context, position types.Position) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positions[position.ID] = position
	return nil
}
