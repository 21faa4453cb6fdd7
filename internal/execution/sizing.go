package execution

import (
	"github.com/shopspring/decimal"

	"tradefabric/internal/config"
)

// defaultPositionSize is returned whenever sizing cannot be computed at all
// (zero stop distance, non-positive equity), mirroring
// ExecutionService._calculate_position_size's except-path fallback.
var defaultPositionSize = decimal.NewFromFloat(0.01)

// PositionSize implements spec.md §4.7's sizing formula:
// (account_equity * risk_per_trade) / |entry - stop|, rounded to 6 decimal
// places, scaled down by confidence when confidence < 0.8, and capped at
// cfg.MaxPositionSizeUSD. Despite the "USD" field name (carried over from
// the config section that groups every execution-sizing knob), the cap
// applies directly to the computed size, the same way
// OrderBlockStrategy.positionSize caps its own risk-based size — neither
// the spec nor the original converts the unit through notional value.
func PositionSize(cfg config.ExecutionConfig, entry, stop decimal.Decimal, confidence float64) decimal.Decimal {
	distance := entry.Sub(stop).Abs()
	if distance.IsZero() || cfg.AccountEquity <= 0 {
		return defaultPositionSize
	}

	riskAmount := decimal.NewFromFloat(cfg.AccountEquity).Mul(decimal.NewFromFloat(cfg.RiskPerTrade))
	size := riskAmount.Div(distance).Round(6)

	if confidence < 0.8 {
		scale := confidence
		if scale < cfg.MinConfidenceScale {
			scale = cfg.MinConfidenceScale
		}
		size = size.Mul(decimal.NewFromFloat(scale))
	}

	if cap := decimal.NewFromFloat(cfg.MaxPositionSizeUSD); cap.IsPositive() && size.GreaterThan(cap) {
		size = cap
	}
	return size
}

// clampToPriceCorridor implements the ">20% away -> clamp to +-10%" rule:
// if target is further than corridorPct from current, it is replaced with
// current shifted by clampPct in the direction target already pointed.
func clampToPriceCorridor(target, current decimal.Decimal, corridorPct, clampPct float64) decimal.Decimal {
	if current.IsZero() {
		return target
	}
	lower := current.Mul(decimal.NewFromFloat(1 - corridorPct))
	upper := current.Mul(decimal.NewFromFloat(1 + corridorPct))

	switch {
	case target.LessThan(lower):
		return current.Mul(decimal.NewFromFloat(1 - clampPct))
	case target.GreaterThan(upper):
		return current.Mul(decimal.NewFromFloat(1 + clampPct))
	default:
		return target
	}
}
