package indicator

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"tradefabric/pkg/types"
)

// OrderBlockCandidate is one detected order block: a short-bodied,
// long-wicked candle preceding an FVG in the opposing direction.
type OrderBlockCandidate struct {
	Side       types.OrderBlockSide
	PriceHigh  decimal.Decimal
	PriceLow   decimal.Decimal
	Index      int
	WickRatio  decimal.Decimal
	BodyRatio  decimal.Decimal
	Candle     types.Candle
	RelatedFVG *FVGCandidate
	IsDoji     bool
	Doji       *DojiCandidate
	Timestamp  time.Time
}

// OrderBlockResult is OrderBlockIndicator.Calculate's return value.
type OrderBlockResult struct {
	Blocks        []OrderBlockCandidate
	DemandBlocks  []OrderBlockCandidate
	SupplyBlocks  []OrderBlockCandidate
	HasDemand     bool
	HasSupply     bool
	LatestBlock   *OrderBlockCandidate
}

// OrderBlockIndicator is the composite indicator that combines Doji, FVG,
// and BOS results into demand/supply order block candidates. Grounded
// one-for-one on strategy/indicators/composite_indicators/order_block.py's
// OrderBlockIndicator. Implements Mitigatable: spec.md §4.5's mitigation
// rule (intersection/coverage/threshold) lives in ProcessExisting.
type OrderBlockIndicator struct {
	MaxBodyToRangeRatio  decimal.Decimal
	MinWickToBodyRatio   decimal.Decimal
	LookbackPeriod       int
	MaxOBDetectionCandles int
	RequireDoji          bool
	RequireBOS           bool
	MitigationThreshold  decimal.Decimal // percentage, e.g. 80

	repo Repository
}

func NewOrderBlockIndicator(repo Repository) *OrderBlockIndicator {
	return &OrderBlockIndicator{
		MaxBodyToRangeRatio:   decimal.NewFromFloat(0.4),
		MinWickToBodyRatio:    decimal.NewFromFloat(1.5),
		LookbackPeriod:        50,
		MaxOBDetectionCandles: 5,
		RequireDoji:           false,
		RequireBOS:            false,
		MitigationThreshold:   decimal.NewFromInt(80),
		repo:                  repo,
	}
}

func (o *OrderBlockIndicator) Type() types.IndicatorType { return types.IndicatorOrderBlock }

func (o *OrderBlockIndicator) Requirements() Requirements {
	return Requirements{
		NeedsCandles: true,
		LookbackBars: o.LookbackPeriod,
		Timeframes:   []string{"15m", "1h", "4h", "1d"},
		Dependencies: []types.IndicatorType{types.IndicatorBOS, types.IndicatorFVG, types.IndicatorDoji},
	}
}

func (o *OrderBlockIndicator) Repo() Repository { return o.repo }

func (o *OrderBlockIndicator) Calculate(ctx context.Context, data *Data) (any, error) {
	candles := data.Candles
	if len(candles) < 5 {
		return OrderBlockResult{}, nil
	}

	var bullishFVGs, bearishFVGs []FVGCandidate
	if v, ok := data.Result(types.IndicatorFVG); ok {
		if fvg, ok := v.(FVGResult); ok {
			bullishFVGs, bearishFVGs = fvg.BullishFVGs, fvg.BearishFVGs
		}
	}

	dojiByIndex := map[int]DojiCandidate{}
	if v, ok := data.Result(types.IndicatorDoji); ok {
		if doji, ok := v.(DojiResult); ok {
			for _, d := range doji.Dojis {
				dojiByIndex[d.Index] = d
			}
		}
	}

	var bullishBOS, bearishBOS []BOSCandidate
	if v, ok := data.Result(types.IndicatorBOS); ok {
		if bos, ok := v.(BOSResult); ok {
			bullishBOS, bearishBOS = bos.BullishBreaks, bos.BearishBreaks
		}
	}

	demand, supply := o.detect(candles, bullishFVGs, bearishFVGs, dojiByIndex, bullishBOS, bearishBOS)

	all := make([]OrderBlockCandidate, 0, len(demand)+len(supply))
	all = append(all, demand...)
	all = append(all, supply...)
	sortOBByIndexDesc(all)

	result := OrderBlockResult{
		Blocks: all, DemandBlocks: demand, SupplyBlocks: supply,
		HasDemand: len(demand) > 0, HasSupply: len(supply) > 0,
	}
	if len(all) > 0 {
		latest := all[0]
		result.LatestBlock = &latest
	}
	return result, nil
}

func (o *OrderBlockIndicator) detect(
	candles []types.Candle,
	bullishFVGs, bearishFVGs []FVGCandidate,
	dojiByIndex map[int]DojiCandidate,
	bullishBOS, bearishBOS []BOSCandidate,
) (demand, supply []OrderBlockCandidate) {
	lookback := o.LookbackPeriod
	if lookback > len(candles) {
		lookback = len(candles)
	}

	for step := 0; step < lookback; step++ {
		idx := len(candles) - step - 1
		if idx < 0 {
			continue
		}
		c := candles[idx]

		doji, isDoji := dojiByIndex[idx]
		if o.RequireDoji && !isDoji {
			continue
		}

		bodyRange := c.Close.Sub(c.Open).Abs()
		totalRange := c.High.Sub(c.Low)
		if totalRange.IsZero() {
			continue
		}
		if bodyRange.IsZero() {
			bodyRange = decimal.NewFromFloat(0.0001)
		}

		bodyToRangeRatio := bodyRange.Div(totalRange)
		upperWick := decimalMax(c.High.Sub(c.Open), c.High.Sub(c.Close))
		lowerWick := decimalMax(c.Open.Sub(c.Low), c.Close.Sub(c.Low))
		wickToBodyRatio := upperWick.Add(lowerWick).Div(bodyRange)

		if bodyToRangeRatio.GreaterThan(o.MaxBodyToRangeRatio) || wickToBodyRatio.LessThan(o.MinWickToBodyRatio) {
			continue
		}

		isBearish := c.Close.LessThan(c.Open)
		isBullish := c.Close.GreaterThan(c.Open)

		if isBearish {
			if fvg, ok := findFollowingFVG(bullishFVGs, idx, o.MaxOBDetectionCandles); ok {
				if !o.RequireBOS || hasBOSAfter(bullishBOS, fvg.CandleIndex) {
					block := OrderBlockCandidate{
						Side: types.Demand, PriceHigh: c.Open, PriceLow: c.Close,
						Index: idx, WickRatio: wickToBodyRatio, BodyRatio: bodyToRangeRatio,
						Candle: c, RelatedFVG: &fvg, IsDoji: isDoji, Timestamp: c.Timestamp,
					}
					if isDoji {
						block.Doji = &doji
					}
					demand = append(demand, block)
				}
			}
		} else if isBullish {
			if fvg, ok := findFollowingFVG(bearishFVGs, idx, o.MaxOBDetectionCandles); ok {
				if !o.RequireBOS || hasBOSAfter(bearishBOS, fvg.CandleIndex) {
					block := OrderBlockCandidate{
						Side: types.Supply, PriceHigh: c.Close, PriceLow: c.Open,
						Index: idx, WickRatio: wickToBodyRatio, BodyRatio: bodyToRangeRatio,
						Candle: c, RelatedFVG: &fvg, IsDoji: isDoji, Timestamp: c.Timestamp,
					}
					if isDoji {
						block.Doji = &doji
					}
					supply = append(supply, block)
				}
			}
		}
	}
	return demand, supply
}

func findFollowingFVG(fvgs []FVGCandidate, obIndex, maxDetectionCandles int) (FVGCandidate, bool) {
	for _, fvg := range fvgs {
		delta := fvg.CandleIndex - obIndex
		if delta > 0 && delta <= maxDetectionCandles {
			return fvg, true
		}
	}
	return FVGCandidate{}, false
}

func hasBOSAfter(breaks []BOSCandidate, afterIndex int) bool {
	for _, b := range breaks {
		if b.Index > afterIndex {
			return true
		}
	}
	return false
}

func decimalMax(a, b decimal.Decimal) decimal.Decimal {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

func decimalMin(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

func sortOBByIndexDesc(blocks []OrderBlockCandidate) {
	for i := 1; i < len(blocks); i++ {
		for j := i; j > 0 && blocks[j-1].Index < blocks[j].Index; j-- {
			blocks[j-1], blocks[j] = blocks[j], blocks[j-1]
		}
	}
}

// RelevantPriceRange narrows the mitigation repository lookup to the
// candle window's high/low span plus a 5% buffer, grounded on
// strategy/indicators/base.py's Indicator.get_relevant_price_range.
func (o *OrderBlockIndicator) RelevantPriceRange(candles []types.Candle) (minPrice, maxPrice decimal.Decimal) {
	if len(candles) == 0 {
		return decimal.Zero, decimal.Zero
	}
	highest, lowest := candles[0].High, candles[0].Low
	for _, c := range candles[1:] {
		if c.High.GreaterThan(highest) {
			highest = c.High
		}
		if c.Low.LessThan(lowest) {
			lowest = c.Low
		}
	}
	buffer := highest.Sub(lowest).Mul(decimal.NewFromFloat(0.05))
	return lowest.Sub(buffer), highest.Add(buffer)
}

// ProcessExisting applies spec.md §4.5's representative OrderBlock
// mitigation rule: for each candle after the block's creation, compute the
// intersection of the candle's range with the block's span; any
// intersection marks the block touched, and the cumulative max coverage
// becomes mitigation_percentage. Crossing MitigationThreshold transitions
// the block to mitigated. Status is monotonic — only active instances are
// evaluated for the transition.
func (o *OrderBlockIndicator) ProcessExisting(ctx context.Context, instances []types.OrderBlock, candles []types.Candle) (updated, stillValid []types.OrderBlock, err error) {
	for _, inst := range instances {
		changed := false

		for _, c := range candles {
			if !c.Timestamp.After(inst.Timestamp) {
				continue
			}
			lo := decimalMax(inst.PriceLow, c.Low)
			hi := decimalMin(inst.PriceHigh, c.High)
			if lo.GreaterThan(hi) {
				continue // no intersection
			}
			if !inst.Touched {
				inst.Touched = true
				changed = true
			}
			span := inst.PriceHigh.Sub(inst.PriceLow)
			if span.IsPositive() {
				covered := hi.Sub(lo).Div(span).Mul(decimal.NewFromInt(100))
				if covered.GreaterThan(inst.MitigationPercentage) {
					inst.MitigationPercentage = covered
					changed = true
				}
			}
		}

		if inst.Status == types.InstanceActive && inst.MitigationPercentage.GreaterThanOrEqual(o.MitigationThreshold) {
			inst.Status = types.InstanceMitigated
			now := time.Now().UTC()
			inst.InvalidatedAt = &now
			changed = true
		}

		if changed {
			inst.UpdatedAt = time.Now().UTC()
			updated = append(updated, inst)
		}
		if inst.Status == types.InstanceActive {
			stillValid = append(stillValid, inst)
		}
	}
	return updated, stillValid, nil
}
