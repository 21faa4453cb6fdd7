package indicator

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"tradefabric/pkg/types"
)

// FVGCandidate is one detected fair value gap: a three-candle imbalance
// where the range of the candle two bars back and the current candle's
// range don't overlap.
type FVGCandidate struct {
	Bullish     bool
	Top         decimal.Decimal
	Bottom      decimal.Decimal
	Size        decimal.Decimal
	SizePercent decimal.Decimal
	CandleIndex int // index of the middle candle, which forms the gap
	Filled      bool
	Timestamp   time.Time
	Candle      types.Candle
}

// FVGResult is FVGIndicator.Calculate's return value.
type FVGResult struct {
	BullishFVGs []FVGCandidate
	BearishFVGs []FVGCandidate
}

// FVGIndicator detects Fair Value Gaps. A bullish FVG is a gap up (current
// low above the low-2 candle's high); a bearish FVG is a gap down (current
// high below the low-2 candle's low). Grounded one-for-one on
// strategy/indicators/fvg.py's FVGIndicator.
type FVGIndicator struct {
	MinGapSizePercent decimal.Decimal // e.g. 0.2 means 0.2%
}

func NewFVGIndicator() *FVGIndicator {
	return &FVGIndicator{MinGapSizePercent: decimal.NewFromFloat(0.2)}
}

func (i *FVGIndicator) Type() types.IndicatorType { return types.IndicatorFVG }

func (i *FVGIndicator) Requirements() Requirements {
	return Requirements{
		NeedsCandles: true,
		LookbackBars: 30,
		Timeframes:   []string{"1m", "5m", "15m", "1h", "4h", "1d"},
	}
}

func (i *FVGIndicator) Calculate(ctx context.Context, data *Data) (any, error) {
	candles := data.Candles
	if len(candles) < 3 {
		return FVGResult{}, nil
	}

	minGapFrac := i.MinGapSizePercent.Div(decimal.NewFromInt(100))

	var bullish, bearish []FVGCandidate
	for idx := 2; idx < len(candles); idx++ {
		current := candles[idx]
		twoBack := candles[idx-2]
		candleIndex := idx - 1

		switch {
		case current.Low.GreaterThan(twoBack.High):
			gapSize := current.Low.Sub(twoBack.High)
			gapFrac := gapSize.Div(twoBack.High)
			if gapFrac.LessThan(minGapFrac) {
				continue
			}
			bullish = append(bullish, FVGCandidate{
				Bullish:     true,
				Top:         current.Low,
				Bottom:      twoBack.High,
				Size:        gapSize,
				SizePercent: gapFrac.Mul(decimal.NewFromInt(100)),
				CandleIndex: candleIndex,
				Timestamp:   current.Timestamp,
				Candle:      current,
			})
		case current.High.LessThan(twoBack.Low):
			gapSize := twoBack.Low.Sub(current.High)
			gapFrac := gapSize.Div(twoBack.Low)
			if gapFrac.LessThan(minGapFrac) {
				continue
			}
			bearish = append(bearish, FVGCandidate{
				Bullish:     false,
				Top:         twoBack.Low,
				Bottom:      current.High,
				Size:        gapSize,
				SizePercent: gapFrac.Mul(decimal.NewFromInt(100)),
				CandleIndex: candleIndex,
				Timestamp:   current.Timestamp,
				Candle:      current,
			})
		}
	}

	markFilled(candles, bullish, true)
	markFilled(candles, bearish, false)

	return FVGResult{BullishFVGs: bullish, BearishFVGs: bearish}, nil
}

// markFilled flags gaps whose [bottom,top] band has since traded into,
// ignoring the candle immediately after the gap (which forms part of it),
// matching _filter_filled_by_price_action.
func markFilled(candles []types.Candle, fvgs []FVGCandidate, bullish bool) {
	for idx := range fvgs {
		fvg := &fvgs[idx]
		for j := fvg.CandleIndex + 2; j < len(candles); j++ {
			if bullish {
				if candles[j].Low.LessThanOrEqual(fvg.Top) {
					fvg.Filled = true
					break
				}
			} else {
				if candles[j].High.GreaterThanOrEqual(fvg.Bottom) {
					fvg.Filled = true
					break
				}
			}
		}
	}
}
