package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// IndicatorType is a closed enum identifying each registered indicator. It
// carries the extra bits the DAG and the mitigation engine need: a stable
// string ID for cache keys and routing, and whether instances of this type
// participate in the mitigation pass.
type IndicatorType struct {
	name              string
	stableID          string
	requiresMitigation bool
}

func (t IndicatorType) String() string           { return t.name }
func (t IndicatorType) StableID() string          { return t.stableID }
func (t IndicatorType) RequiresMitigation() bool  { return t.requiresMitigation }

// Registered indicator types. New types are added here, never constructed
// ad hoc, so the DAG's node identity stays comparable with ==.
var (
	IndicatorDoji            = IndicatorType{"doji", "doji", false}
	IndicatorFVG             = IndicatorType{"fvg", "fvg", false}
	IndicatorBOS             = IndicatorType{"bos", "bos", false}
	IndicatorOrderBlock      = IndicatorType{"order_block", "ob", true}
	IndicatorHiddenOrderBlock = IndicatorType{"hidden_order_block", "hob", true}
)

// InstanceStatus is the lifecycle of a persisted indicator instance.
// Monotonic: active -> {mitigated, invalidated}, never back.
type InstanceStatus string

const (
	InstanceActive      InstanceStatus = "active"
	InstanceMitigated   InstanceStatus = "mitigated"
	InstanceInvalidated InstanceStatus = "invalidated"
)

// IndicatorInstance is the persisted header shared by every concrete
// indicator instance type (OrderBlock, FVG, Doji, BOS). Concrete types embed
// this and add their own fields.
type IndicatorInstance struct {
	ID                   string          `json:"id"`
	Exchange             string          `json:"exchange"`
	Symbol               string          `json:"symbol"`
	Timeframe            string          `json:"timeframe"`
	Timestamp            time.Time       `json:"timestamp"`
	Status               InstanceStatus  `json:"status"`
	Touched              bool            `json:"touched"`
	MitigationPercentage decimal.Decimal `json:"mitigation_percentage"` // [0,100]
	CandleData           Candle          `json:"candle_data"`
	Strength             decimal.Decimal `json:"strength"`
	InvalidatedAt        *time.Time      `json:"invalidated_at,omitempty"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

// CanTransitionTo enforces the monotonic status invariant shared by every
// indicator instance type.
func (i IndicatorInstance) CanTransitionTo(next InstanceStatus) bool {
	if i.Status != InstanceActive {
		return false
	}
	return next == InstanceMitigated || next == InstanceInvalidated
}

// OrderBlockSide distinguishes demand (bullish, below price) from supply
// (bearish, above price) order blocks.
type OrderBlockSide string

const (
	Demand OrderBlockSide = "demand"
	Supply OrderBlockSide = "supply"
)

// OrderBlock is a price region interpreted as prior institutional activity.
type OrderBlock struct {
	IndicatorInstance
	PriceHigh decimal.Decimal `json:"price_high"`
	PriceLow  decimal.Decimal `json:"price_low"`
	Type      OrderBlockSide  `json:"type"`

	// References to the patterns that produced this block. They point at
	// standalone Doji/FVG/BOS records that hold no reference back to the
	// block, so serialization never meets a cycle, per spec.md's note on
	// breaking cyclic structures.
	SourceDoji *Doji `json:"source_doji,omitempty"`
	SourceFVG  *FVG  `json:"source_fvg,omitempty"`
	SourceBOS  *BOS  `json:"source_bos,omitempty"`
}

// Range returns the [low, high] span of the block.
func (ob OrderBlock) Range() (low, high decimal.Decimal) {
	return ob.PriceLow, ob.PriceHigh
}

// FVG (Fair Value Gap) is a three-candle imbalance where the range of the
// candle two bars back and the range of the current candle do not overlap.
type FVG struct {
	IndicatorInstance
	GapHigh   decimal.Decimal `json:"gap_high"`
	GapLow    decimal.Decimal `json:"gap_low"`
	Bullish   bool            `json:"bullish"`
	StartIdx  int             `json:"start_index"`
}

// Doji is a candle with a body-to-range ratio below a small threshold.
type Doji struct {
	IndicatorInstance
	BodyToRangeRatio decimal.Decimal `json:"body_to_range_ratio"`
	Index            int             `json:"index"`
}

// BreakType identifies which kind of structural break BOS represents.
type BreakType string

const (
	HigherHigh BreakType = "higher_high"
	HigherLow  BreakType = "higher_low"
	LowerLow   BreakType = "lower_low"
	LowerHigh  BreakType = "lower_high"
)

// BOS (Break of Structure) is a close beyond a prior swing high/low.
type BOS struct {
	IndicatorInstance
	BreakType    BreakType       `json:"break_type"`
	BrokenLevel  decimal.Decimal `json:"broken_level"`
	Index        int             `json:"index"`
}
