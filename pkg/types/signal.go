package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Direction is the trade side a Signal recommends.
type Direction string

const (
	Long  Direction = "long"
	Short Direction = "short"
)

// SignalType distinguishes new entries from exits and in-place adjustments.
type SignalType string

const (
	SignalEntry  SignalType = "entry"
	SignalExit   SignalType = "exit"
	SignalAdjust SignalType = "adjust"
)

// ExecutionStatus tracks a Signal's progress through the execution pipeline.
// Transitions are monotonic: pending -> submitted -> {rejected, filled, cancelled}.
type ExecutionStatus string

const (
	SignalPending   ExecutionStatus = "pending"
	SignalSubmitted ExecutionStatus = "submitted"
	SignalRejected  ExecutionStatus = "rejected"
	SignalFilled    ExecutionStatus = "filled"
	SignalCancelled ExecutionStatus = "cancelled"
)

// Signal is produced by a Strategy from indicator results and published to
// the strategy signal topic for the execution pipeline to act on.
type Signal struct {
	ID               string                 `json:"id"`
	StrategyName     string                 `json:"strategy_name"`
	Exchange         string                 `json:"exchange"`
	Symbol           string                 `json:"symbol"`
	Timeframe        string                 `json:"timeframe"`
	Direction        Direction              `json:"direction"`
	SignalType       SignalType             `json:"signal_type"`
	PriceTarget      decimal.Decimal        `json:"price_target"`
	StopLoss         decimal.Decimal        `json:"stop_loss"`
	TakeProfit       decimal.Decimal        `json:"take_profit"`
	RiskRewardRatio  decimal.Decimal        `json:"risk_reward_ratio"`
	ConfidenceScore  float64                `json:"confidence_score"` // [0,1], not monetary
	ExecutionStatus  ExecutionStatus        `json:"execution_status"`
	Metadata         map[string]interface{} `json:"metadata,omitempty"`
	IndicatorID      string                 `json:"indicator_id,omitempty"`
	CreatedAt        time.Time              `json:"created_at"`
}

// RiskReward recomputes |reward|/|risk| from PriceTarget/StopLoss/TakeProfit
// relative to Direction. Returns false if risk is zero (division undefined).
func (s Signal) RiskReward() (decimal.Decimal, bool) {
	var risk, reward decimal.Decimal
	switch s.Direction {
	case Long:
		risk = s.PriceTarget.Sub(s.StopLoss)
		reward = s.TakeProfit.Sub(s.PriceTarget)
	case Short:
		risk = s.StopLoss.Sub(s.PriceTarget)
		reward = s.PriceTarget.Sub(s.TakeProfit)
	default:
		return decimal.Zero, false
	}
	if risk.IsZero() {
		return decimal.Zero, false
	}
	return reward.Abs().Div(risk.Abs()), true
}
