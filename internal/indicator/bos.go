package indicator

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"tradefabric/pkg/types"
)

// BOSCandidate is one detected structure break.
type BOSCandidate struct {
	Index           int
	BreakType       types.BreakType
	BreakValue      decimal.Decimal
	BreakPercentage decimal.Decimal
	SwingReference  decimal.Decimal
	Candle          types.Candle
	Timestamp       time.Time
}

// BOSResult is BOSIndicator.Calculate's return value.
type BOSResult struct {
	BullishBreaks []BOSCandidate // higher_high, higher_low
	BearishBreaks []BOSCandidate // lower_low, lower_high
}

// BOSIndicator detects breaks of structure: closes beyond the current
// MarketContext's swing high/low. Grounded one-for-one on
// strategy/indicators/bos.py's StructureBreakIndicator.
type BOSIndicator struct {
	LookbackPeriod      int
	ConfirmationCandles int
	MinBreakPercentage  decimal.Decimal // e.g. 0.0005 = 0.05%
}

func NewBOSIndicator() *BOSIndicator {
	return &BOSIndicator{
		LookbackPeriod:      10,
		ConfirmationCandles: 1,
		MinBreakPercentage:  decimal.NewFromFloat(0.0005),
	}
}

func (i *BOSIndicator) Type() types.IndicatorType { return types.IndicatorBOS }

func (i *BOSIndicator) Requirements() Requirements {
	return Requirements{
		NeedsCandles: true,
		LookbackBars: i.LookbackPeriod,
		Timeframes:   []string{"1m", "5m", "15m", "30m", "1h", "4h", "1d"},
	}
}

func (i *BOSIndicator) Calculate(ctx context.Context, data *Data) (any, error) {
	candles := data.Candles
	if len(candles) < 3 {
		return BOSResult{}, nil
	}
	if len(data.MarketContexts) == 0 {
		return BOSResult{}, nil
	}
	mc := data.MarketContexts[0]
	if mc.SwingHigh == nil || mc.SwingLow == nil {
		return BOSResult{}, nil
	}

	swingHigh := mc.SwingHigh.Price
	swingLow := mc.SwingLow.Price

	minBreakHigh := swingHigh.Mul(i.MinBreakPercentage)
	minBreakLow := swingLow.Mul(i.MinBreakPercentage)

	lookback := i.LookbackPeriod
	if lookback > len(candles) {
		lookback = len(candles)
	}

	var bullish, bearish []BOSCandidate
	for step := 1; step <= lookback; step++ {
		idx := len(candles) - step
		if idx < 0 {
			break
		}
		c := candles[idx]

		if c.Close.GreaterThan(swingHigh.Add(minBreakHigh)) {
			if i.isBreakConfirmed(candles, idx, true, swingHigh) {
				bullish = append(bullish, BOSCandidate{
					Index: idx, BreakType: types.HigherHigh,
					BreakValue:      c.Close.Sub(swingHigh),
					BreakPercentage: c.Close.Sub(swingHigh).Div(swingHigh),
					SwingReference:  swingHigh, Candle: c, Timestamp: c.Timestamp,
				})
			}
		}

		if c.Close.LessThan(swingLow.Sub(minBreakLow)) {
			if i.isBreakConfirmed(candles, idx, false, swingLow) {
				bearish = append(bearish, BOSCandidate{
					Index: idx, BreakType: types.LowerLow,
					BreakValue:      swingLow.Sub(c.Close),
					BreakPercentage: swingLow.Sub(c.Close).Div(swingLow),
					SwingReference:  swingLow, Candle: c, Timestamp: c.Timestamp,
				})
			}
		}

		if c.Low.GreaterThan(swingLow.Add(minBreakLow)) {
			bullish = append(bullish, BOSCandidate{
				Index: idx, BreakType: types.HigherLow,
				BreakValue:      c.Low.Sub(swingLow),
				BreakPercentage: c.Low.Sub(swingLow).Div(swingLow),
				SwingReference:  swingLow, Candle: c, Timestamp: c.Timestamp,
			})
		}

		if c.High.LessThan(swingHigh.Sub(minBreakHigh)) {
			bearish = append(bearish, BOSCandidate{
				Index: idx, BreakType: types.LowerHigh,
				BreakValue:      swingHigh.Sub(c.High),
				BreakPercentage: swingHigh.Sub(c.High).Div(swingHigh),
				SwingReference:  swingHigh, Candle: c, Timestamp: c.Timestamp,
			})
		}
	}

	sortBOSByIndexDesc(bullish)
	sortBOSByIndexDesc(bearish)

	return BOSResult{BullishBreaks: bullish, BearishBreaks: bearish}, nil
}

// isBreakConfirmed requires confirmationCandles consecutive subsequent
// candles to stay beyond the reference price before a HH/LL break counts.
func (i *BOSIndicator) isBreakConfirmed(candles []types.Candle, breakIdx int, isHigh bool, reference decimal.Decimal) bool {
	if i.ConfirmationCandles <= 0 {
		return true
	}
	confirmed := 0
	for j := breakIdx + 1; j < len(candles); j++ {
		if confirmed >= i.ConfirmationCandles {
			break
		}
		if isHigh && candles[j].High.GreaterThan(reference) {
			confirmed++
		} else if !isHigh && candles[j].Low.LessThan(reference) {
			confirmed++
		} else {
			break
		}
	}
	return confirmed >= i.ConfirmationCandles
}

func sortBOSByIndexDesc(b []BOSCandidate) {
	for i := 1; i < len(b); i++ {
		for j := i; j > 0 && b[j-1].Index < b[j].Index; j-- {
			b[j-1], b[j] = b[j], b[j-1]
		}
	}
}
