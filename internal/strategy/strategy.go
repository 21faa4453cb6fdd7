// Package strategy consumes indicator results and turns them into trade
// signals. Grounded on strategy/strategies/base.py's Strategy abstract
// class and strategy/engine/strategy_runner.py's StrategyRunner: the Python
// base class's analyze/calculate_signal_strength/get_requirements trio maps
// onto the five-method Strategy interface below with no inheritance needed.
package strategy

import (
	"context"

	"github.com/shopspring/decimal"

	"tradefabric/pkg/types"
)

// AnalysisInput is what a Strategy.Analyze call receives: the DAG's results
// keyed by indicator name (types.IndicatorType.String()), the current
// multi-timeframe context set, the latest close, and event identity.
type AnalysisInput struct {
	Exchange       string
	Symbol         string
	Timeframe      string
	Results        map[string]any
	MarketContexts []types.MarketContext
	CurrentPrice   func() (price decimal.Decimal, ok bool) // lazily resolved; see Runner
}

// Strategy is the common interface every signal generator implements.
// Analyze may return zero or more signals; Validate re-checks a signal
// before it is published, independent of whatever internal logic produced
// it (spec.md §4.6's "if non-null and passes strategy.validate(signal)").
type Strategy interface {
	Name() string
	// RequiredIndicators lists the indicator types this strategy reads out
	// of AnalysisInput.Results; StrategyRunner unions these across every
	// registered strategy to build the DAG's requested set.
	RequiredIndicators() []types.IndicatorType
	// Timeframes restricts which candle timeframes trigger this strategy;
	// nil/empty means every timeframe.
	Timeframes() []string
	Analyze(ctx context.Context, in AnalysisInput) ([]types.Signal, error)
	// Validate re-derives a signal's risk/reward from its own
	// PriceTarget/StopLoss/TakeProfit and rejects on the recomputed value
	// rather than trusting whatever Analyze attached — the Open Question
	// decision recorded in DESIGN.md.
	Validate(signal types.Signal) bool
}

// appliesToTimeframe reports whether a strategy should run for timeframe,
// treating an empty Timeframes() list as "every timeframe".
func appliesToTimeframe(s Strategy, timeframe string) bool {
	tfs := s.Timeframes()
	if len(tfs) == 0 {
		return true
	}
	for _, tf := range tfs {
		if tf == timeframe {
			return true
		}
	}
	return false
}

// ValidateCommon applies the field/direction/price-presence checks shared
// by every strategy, grounded on OrderBlockStrategy.validate_signal steps
// 1-2. minRR is the floor the recomputed risk_reward_ratio must meet.
func ValidateCommon(signal types.Signal, minRR float64) bool {
	if signal.Symbol == "" || signal.Exchange == "" || signal.Timeframe == "" {
		return false
	}
	if signal.Direction != types.Long && signal.Direction != types.Short {
		return false
	}
	if signal.PriceTarget.IsZero() || signal.StopLoss.IsZero() || signal.TakeProfit.IsZero() {
		return false
	}
	rr, ok := signal.RiskReward()
	if !ok {
		return false
	}
	return rr.GreaterThanOrEqual(decimal.NewFromFloat(minRR))
}
