package indicator

import (
	"context"

	"github.com/shopspring/decimal"

	"tradefabric/pkg/types"
)

// Requirements describes what an indicator needs to run, mirroring
// get_requirements() in the original engine: whether it needs candles at
// all, how far back, which timeframes it supports, and which other
// indicator types it depends on.
type Requirements struct {
	NeedsCandles  bool
	LookbackBars  int
	Timeframes    []string
	Dependencies  []types.IndicatorType
}

// Indicator is the common interface every DAG node implements: a type
// identity, its declared dependencies, and the calculation itself. No
// inheritance hierarchy is needed — composition via OrderBlockIndicator
// reading Fvg/Doji/Bos results out of Data is the same shape the original
// engine uses.
type Indicator interface {
	Type() types.IndicatorType
	Requirements() Requirements
	Calculate(ctx context.Context, data *Data) (any, error)
}

// Repository is the mitigation engine's view of persisted indicator
// instances, grounded on spec.md §6's indicator_repo contract. It is an
// external collaborator (relational storage is out of this module's core
// scope); only the behavioral contract lives here.
type Repository interface {
	FindActiveInPriceRange(ctx context.Context, exchange, symbol string, minPrice, maxPrice decimal.Decimal, timeframes []string) ([]types.OrderBlock, error)
	UpdateIndicatorStatus(ctx context.Context, instance types.OrderBlock) (bool, error)
}

// Mitigatable is implemented by indicator types whose IndicatorType carries
// RequiresMitigation()=true (OrderBlock, HiddenOrderBlock). The mitigation
// engine only registers indicators satisfying this interface.
type Mitigatable interface {
	Indicator

	// RelevantPriceRange narrows the repository lookup to the window a
	// batch of recent candles actually spans, per spec.md §4.5 step 1.
	RelevantPriceRange(candles []types.Candle) (minPrice, maxPrice decimal.Decimal)

	// ProcessExisting applies the mitigation rule to every instance
	// overlapping the candle window, returning the subset that changed
	// (to be persisted) and the subset still active.
	ProcessExisting(ctx context.Context, instances []types.OrderBlock, candles []types.Candle) (updated, stillValid []types.OrderBlock, err error)

	// Repo exposes the repository this indicator was constructed with, so
	// the mitigation engine can fetch and persist instances without
	// holding its own copy per indicator type.
	Repo() Repository
}
