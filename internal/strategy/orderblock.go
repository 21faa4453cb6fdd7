package strategy

import (
	"context"
	"math"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tradefabric/internal/indicator"
	"tradefabric/pkg/types"
)

// timeframeHierarchy orders timeframes from lowest to highest for a given
// base timeframe, grounded on strategy/domain/types/time_frame_enum.py's
// TIMEFRAME_HIERARCHY (not included in the retrieved source; reconstructed
// from the standard timeframe ladder the rest of the codebase uses).
var timeframeHierarchy = map[string][]string{
	"1m":  {"1m", "5m", "15m", "1h", "4h", "1d"},
	"5m":  {"5m", "15m", "1h", "4h", "1d"},
	"15m": {"15m", "1h", "4h", "1d"},
	"1h":  {"1h", "4h", "1d"},
	"4h":  {"4h", "1d"},
	"1d":  {"1d"},
}

func hierarchyFor(tf string) []string {
	if h, ok := timeframeHierarchy[tf]; ok {
		return h
	}
	return []string{tf}
}

// OrderBlockParams tunes OrderBlockStrategy, mirroring
// OrderBlockStrategy.__init__'s default_params dict.
type OrderBlockParams struct {
	RiskRewardRatio    float64
	MinRiskRewardRatio float64
	StrengthThreshold  float64
	StopLossPct        float64
	EntryBufferPct     float64
	MaxPositionSize    float64
	AccountSize        float64
	RiskPerTrade       float64
}

func DefaultOrderBlockParams() OrderBlockParams {
	return OrderBlockParams{
		RiskRewardRatio:    2.0,
		MinRiskRewardRatio: 1.5,
		StrengthThreshold:  0.7,
		StopLossPct:        0.02,
		EntryBufferPct:     0.005,
		MaxPositionSize:    10,
		AccountSize:        1000,
		RiskPerTrade:       0.01,
	}
}

// OrderBlockStrategy turns OrderBlockIndicator results into entry signals,
// scoring each candidate block's strength from swing-point proximity,
// Fibonacci confluence, and multi-timeframe confluence, grounded on
// strategy/strategies/order_block_strategy.py's OrderBlockStrategy.
type OrderBlockStrategy struct {
	params OrderBlockParams
	repo   indicator.Repository
}

func NewOrderBlockStrategy(repo indicator.Repository, params OrderBlockParams) *OrderBlockStrategy {
	return &OrderBlockStrategy{params: params, repo: repo}
}

func (s *OrderBlockStrategy) Name() string { return "OrderBlock" }

func (s *OrderBlockStrategy) RequiredIndicators() []types.IndicatorType {
	return []types.IndicatorType{types.IndicatorOrderBlock, types.IndicatorFVG, types.IndicatorBOS, types.IndicatorDoji}
}

func (s *OrderBlockStrategy) Timeframes() []string { return nil }

func (s *OrderBlockStrategy) Validate(signal types.Signal) bool {
	return ValidateCommon(signal, s.params.MinRiskRewardRatio)
}

func (s *OrderBlockStrategy) Analyze(ctx context.Context, in AnalysisInput) ([]types.Signal, error) {
	raw, ok := in.Results[types.IndicatorOrderBlock.String()]
	if !ok {
		return nil, nil
	}
	result, ok := raw.(indicator.OrderBlockResult)
	if !ok {
		return nil, nil
	}
	if len(in.MarketContexts) == 0 {
		return nil, nil
	}
	price, ok := in.CurrentPrice()
	if !ok {
		return nil, nil
	}

	all := make([]indicator.OrderBlockCandidate, 0, len(result.DemandBlocks)+len(result.SupplyBlocks))
	all = append(all, result.DemandBlocks...)
	all = append(all, result.SupplyBlocks...)

	var signals []types.Signal
	for _, block := range result.DemandBlocks {
		sig := s.buildSignal(ctx, types.Long, block, in, price, all)
		if sig != nil {
			signals = append(signals, *sig)
		}
	}
	for _, block := range result.SupplyBlocks {
		sig := s.buildSignal(ctx, types.Short, block, in, price, all)
		if sig != nil {
			signals = append(signals, *sig)
		}
	}
	return signals, nil
}

func (s *OrderBlockStrategy) buildSignal(
	ctx context.Context,
	direction types.Direction,
	block indicator.OrderBlockCandidate,
	in AnalysisInput,
	currentPrice decimal.Decimal,
	allBlocks []indicator.OrderBlockCandidate,
) *types.Signal {
	strength, swing, fib, mtf := s.calculateStrength(ctx, in, block, allBlocks)
	if strength < s.params.StrengthThreshold {
		return nil
	}

	entryBuffer := decimal.NewFromFloat(s.params.EntryBufferPct)
	stopLossPct := decimal.NewFromFloat(s.params.StopLossPct)
	rr := decimal.NewFromFloat(s.params.RiskRewardRatio)

	var priceTarget, stopLoss, takeProfit, risk decimal.Decimal
	if direction == types.Long {
		priceTarget = block.PriceLow.Mul(decimal.NewFromInt(1).Sub(entryBuffer))
		stopLoss = block.PriceLow.Mul(decimal.NewFromInt(1).Sub(stopLossPct))
		risk = currentPrice.Sub(stopLoss)
		takeProfit = currentPrice.Add(risk.Mul(rr))
	} else {
		priceTarget = block.PriceHigh.Mul(decimal.NewFromInt(1).Add(entryBuffer))
		stopLoss = block.PriceHigh.Mul(decimal.NewFromInt(1).Add(stopLossPct))
		risk = stopLoss.Sub(currentPrice)
		takeProfit = currentPrice.Sub(risk.Mul(rr))
	}
	if risk.IsZero() || risk.IsNegative() {
		return nil
	}

	positionSize := s.positionSize(currentPrice, stopLoss)

	sig := types.Signal{
		ID:              uuid.NewString(),
		StrategyName:    s.Name(),
		Exchange:        in.Exchange,
		Symbol:          in.Symbol,
		Timeframe:       in.Timeframe,
		Direction:       direction,
		SignalType:      types.SignalEntry,
		PriceTarget:     priceTarget,
		StopLoss:        stopLoss,
		TakeProfit:      takeProfit,
		RiskRewardRatio: rr,
		ConfidenceScore: strength,
		ExecutionStatus: types.SignalPending,
		Metadata: map[string]interface{}{
			"order_block_high": block.PriceHigh.String(),
			"order_block_low":  block.PriceLow.String(),
			"position_size":    positionSize.String(),
			"strength_details": map[string]float64{
				"swing_proximity": swing,
				"fib_confluence":  fib,
				"mtf_confluence":  mtf,
			},
		},
	}
	if !s.Validate(sig) {
		return nil
	}
	return &sig
}

func (s *OrderBlockStrategy) positionSize(entry, stopLoss decimal.Decimal) decimal.Decimal {
	riskAmount := decimal.NewFromFloat(s.params.AccountSize).Mul(decimal.NewFromFloat(s.params.RiskPerTrade))
	priceRisk := entry.Sub(stopLoss).Abs()
	if priceRisk.IsZero() {
		return decimal.NewFromFloat(0.01)
	}
	size := riskAmount.Div(priceRisk)
	max := decimal.NewFromFloat(s.params.MaxPositionSize)
	if s.params.MaxPositionSize > 0 && size.GreaterThan(max) {
		size = max
	}
	return size.Round(6)
}

// calculateStrength is OrderBlockStrategy.calculate_strength: a weighted sum
// of swing-point proximity, Fibonacci confluence, and multi-timeframe
// confluence, each in [0,1].
func (s *OrderBlockStrategy) calculateStrength(
	ctx context.Context,
	in AnalysisInput,
	block indicator.OrderBlockCandidate,
	allBlocks []indicator.OrderBlockCandidate,
) (overall, swing, fib, mtf float64) {
	swing = swingProximity(block, in.Timeframe, in.MarketContexts)
	fib = fibConfluence(block, in.Timeframe, in.MarketContexts)
	mtf = s.mtfConfluence(ctx, in, block, allBlocks)

	overall = 0.4*swing + 0.3*fib + 0.3*mtf
	return overall, swing, fib, mtf
}

func tfWeight(hierarchy []string, contextTimeframe string) float64 {
	idx := -1
	for i, tf := range hierarchy {
		if tf == contextTimeframe {
			idx = i
			break
		}
	}
	if idx < 0 {
		return 0.5
	}
	denom := float64(len(hierarchy) - 1)
	if denom <= 0 {
		denom = 1
	}
	pos := float64(idx) / denom
	return 0.6 + 0.4*pos*pos
}

// swingProximity is OrderBlockStrategy.calculate_swing_proximity.
func swingProximity(block indicator.OrderBlockCandidate, baseTimeframe string, contexts []types.MarketContext) float64 {
	hierarchy := hierarchyFor(baseTimeframe)
	best := 0.0

	for _, mc := range contexts {
		if mc.SwingHigh == nil || mc.SwingLow == nil {
			continue
		}
		var swingPrice decimal.Decimal
		if block.Side == types.Demand {
			swingPrice = mc.SwingLow.Price
		} else {
			swingPrice = mc.SwingHigh.Price
		}
		if swingPrice.IsZero() {
			continue
		}

		var proximity float64
		if block.PriceLow.LessThanOrEqual(swingPrice) && swingPrice.LessThanOrEqual(block.PriceHigh) {
			proximity = 1.0
		} else {
			distLow := block.PriceLow.Sub(swingPrice).Abs()
			distHigh := block.PriceHigh.Sub(swingPrice).Abs()
			dist := decimalMinLocal(distLow, distHigh)
			relDist, _ := dist.Div(swingPrice).Float64()
			proximity = math.Max(0, 1-(relDist/0.05))
		}
		if proximity == 0 {
			continue
		}
		weighted := proximity * tfWeight(hierarchy, mc.Timeframe)
		if weighted > best {
			best = weighted
		}
	}
	return best
}

// fibConfluence is OrderBlockStrategy.calculate_fib_confluence, with the
// golden-ratio/midpoint level weighting preserved.
func fibConfluence(block indicator.OrderBlockCandidate, baseTimeframe string, contexts []types.MarketContext) float64 {
	hierarchy := hierarchyFor(baseTimeframe)
	best := 0.0

	for _, mc := range contexts {
		if mc.FibLevels == nil {
			continue
		}
		var levels []types.FibLevel
		if block.Side == types.Demand {
			levels = mc.FibLevels.Support
		} else {
			levels = mc.FibLevels.Resistance
		}
		if len(levels) == 0 {
			continue
		}

		maxConfluence := 0.0
		for _, level := range levels {
			var confluence float64
			if block.PriceLow.LessThanOrEqual(level.Price) && level.Price.LessThanOrEqual(block.PriceHigh) {
				confluence = levelWeight(level)
			} else {
				distLow := block.PriceLow.Sub(level.Price).Abs()
				distHigh := block.PriceHigh.Sub(level.Price).Abs()
				dist := decimalMinLocal(distLow, distHigh)
				avgPrice := block.PriceHigh.Add(block.PriceLow).Div(decimal.NewFromInt(2))
				if avgPrice.IsZero() {
					continue
				}
				relDist, _ := dist.Div(avgPrice).Float64()
				confluence = math.Max(0, 1-(relDist/0.03))
			}
			if confluence > maxConfluence {
				maxConfluence = confluence
			}
		}
		if maxConfluence == 0 {
			continue
		}
		weighted := maxConfluence * tfWeight(hierarchy, mc.Timeframe)
		if weighted > best {
			best = weighted
		}
	}
	return best
}

// levelWeight gives the classic retracement/extension ratios their extra
// emphasis, matching the Python strategy's hard-coded weight table.
func levelWeight(level types.FibLevel) float64 {
	const tol = 0.001
	switch level.Type {
	case "retracement":
		switch {
		case math.Abs(level.Level-0.618) < tol:
			return 1.0
		case math.Abs(level.Level-0.5) < tol:
			return 0.95
		case math.Abs(level.Level-0.382) < tol:
			return 0.9
		}
	case "extension":
		switch {
		case math.Abs(level.Level-1.618) < tol:
			return 1.0
		case math.Abs(level.Level-1.272) < tol:
			return 0.95
		case math.Abs(level.Level-2.0) < tol:
			return 0.9
		case math.Abs(level.Level-2.618) < tol:
			return 0.85
		}
	}
	return 1.0
}

// mtfConfluence is OrderBlockStrategy.calculate_mtf_confluence: it expands
// the local candidate set's price range by 10% and asks the repository for
// active order blocks in higher timeframes overlapping that range, scoring
// by the fraction that actually overlap this block.
func (s *OrderBlockStrategy) mtfConfluence(
	ctx context.Context,
	in AnalysisInput,
	block indicator.OrderBlockCandidate,
	allBlocks []indicator.OrderBlockCandidate,
) float64 {
	hierarchy := hierarchyFor(in.Timeframe)
	var higher []string
	for _, tf := range hierarchy {
		if tf != in.Timeframe {
			higher = append(higher, tf)
		}
	}
	if len(higher) == 0 || s.repo == nil {
		return 0.0
	}

	lowest, highest := block.PriceLow, block.PriceHigh
	for _, b := range allBlocks {
		if b.PriceLow.LessThan(lowest) {
			lowest = b.PriceLow
		}
		if b.PriceHigh.GreaterThan(highest) {
			highest = b.PriceHigh
		}
	}
	minPrice := lowest.Mul(decimal.NewFromFloat(0.9))
	maxPrice := highest.Mul(decimal.NewFromFloat(1.1))

	mtfBlocks, err := s.repo.FindActiveInPriceRange(ctx, in.Exchange, in.Symbol, minPrice, maxPrice, higher)
	if err != nil || len(mtfBlocks) == 0 {
		return 0.0
	}

	overlapping := 0
	for _, mb := range mtfBlocks {
		lo := decimalMaxLocal(mb.PriceLow, block.PriceLow)
		hi := decimalMinLocal(mb.PriceHigh, block.PriceHigh)
		if lo.LessThanOrEqual(hi) {
			overlapping++
		}
	}
	return math.Min(1.0, float64(overlapping)/float64(len(mtfBlocks)))
}

func decimalMinLocal(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

func decimalMaxLocal(a, b decimal.Decimal) decimal.Decimal {
	if a.GreaterThan(b) {
		return a
	}
	return b
}
