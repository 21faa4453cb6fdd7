package indicator

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"tradefabric/pkg/types"
)

// DojiCandidate is one detected doji candle: a small body relative to its
// range, filtered to exclude insignificant ranges relative to price.
type DojiCandidate struct {
	Index            int
	BodyToRangeRatio decimal.Decimal
	TotalWickSize    decimal.Decimal
	Candle           types.Candle
	Strength         decimal.Decimal // 1 - body_to_range_ratio; smaller bodies score higher
	Timestamp        time.Time
}

// DojiResult is DojiIndicator.Calculate's return value.
type DojiResult struct {
	Dojis     []DojiCandidate
	HasDoji   bool
	LatestDoji *DojiCandidate
}

// DojiIndicator detects doji candles: body-to-range ratio below a
// threshold, filtered by a minimum range-to-price ratio so insignificant
// dojis on near-zero-range candles are dropped. Grounded one-for-one on
// strategy/indicators/doji_candle.py's DojiCandleIndicator.
type DojiIndicator struct {
	MaxBodyToRangeRatio  decimal.Decimal
	MinRangeToPriceRatio decimal.Decimal
	LookbackPeriod       int
}

// NewDojiIndicator builds a DojiIndicator with the original's defaults:
// max_body_to_range_ratio=0.1, min_range_to_price_ratio=0.005,
// lookback_period=20.
func NewDojiIndicator() *DojiIndicator {
	return &DojiIndicator{
		MaxBodyToRangeRatio:  decimal.NewFromFloat(0.1),
		MinRangeToPriceRatio: decimal.NewFromFloat(0.005),
		LookbackPeriod:       20,
	}
}

func (i *DojiIndicator) Type() types.IndicatorType { return types.IndicatorDoji }

func (i *DojiIndicator) Requirements() Requirements {
	return Requirements{
		NeedsCandles: true,
		LookbackBars: i.LookbackPeriod,
		Timeframes:   []string{"1m", "5m", "15m", "30m", "1h", "4h", "1d"},
	}
}

func (i *DojiIndicator) Calculate(ctx context.Context, data *Data) (any, error) {
	candles := data.Candles
	if len(candles) < 3 {
		return DojiResult{}, nil
	}

	lookback := i.LookbackPeriod
	if lookback > len(candles) {
		lookback = len(candles)
	}

	var dojis []DojiCandidate
	for step := 1; step <= lookback; step++ {
		idx := len(candles) - step
		if idx < 0 {
			break
		}
		c := candles[idx]

		bodySize := c.Close.Sub(c.Open).Abs()
		totalRange := c.High.Sub(c.Low)
		if totalRange.IsZero() {
			continue
		}

		bodyToRangeRatio := bodySize.Div(totalRange)
		totalWick := totalRange.Sub(bodySize)

		avgPrice := c.High.Add(c.Low).Div(decimal.NewFromInt(2))
		if avgPrice.IsZero() {
			continue
		}
		rangeToPriceRatio := totalRange.Div(avgPrice)

		if bodyToRangeRatio.LessThanOrEqual(i.MaxBodyToRangeRatio) && rangeToPriceRatio.GreaterThanOrEqual(i.MinRangeToPriceRatio) {
			dojis = append(dojis, DojiCandidate{
				Index:            idx,
				BodyToRangeRatio: bodyToRangeRatio,
				TotalWickSize:    totalWick,
				Candle:           c,
				Strength:         decimal.NewFromInt(1).Sub(bodyToRangeRatio),
				Timestamp:        c.Timestamp,
			})
		}
	}

	// Already appended most-recent-first by construction; sort defensively
	// in case a future change to the scan order breaks that assumption.
	sortByIndexDesc(dojis)

	result := DojiResult{Dojis: dojis, HasDoji: len(dojis) > 0}
	if len(dojis) > 0 {
		latest := dojis[0]
		result.LatestDoji = &latest
	}
	return result, nil
}

func sortByIndexDesc(d []DojiCandidate) {
	for i := 1; i < len(d); i++ {
		for j := i; j > 0 && d[j-1].Index < d[j].Index; j-- {
			d[j-1], d[j] = d[j], d[j-1]
		}
	}
}
