package backtest

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tradefabric/pkg/types"
)

func TestSummarizeComputesReturnAndWinRate(t *testing.T) {
	trades := []Trade{
		{Symbol: "BTC-USD", Side: types.SideBuy, Amount: decimal.NewFromInt(1), Price: decimal.NewFromInt(100), PnL: decimal.Zero, Timestamp: time.Unix(1, 0)},
		{Symbol: "BTC-USD", Side: types.SideSell, Amount: decimal.NewFromInt(1), Price: decimal.NewFromInt(110), PnL: decimal.NewFromInt(10), Timestamp: time.Unix(2, 0)},
		{Symbol: "BTC-USD", Side: types.SideBuy, Amount: decimal.NewFromInt(1), Price: decimal.NewFromInt(110), PnL: decimal.Zero, Timestamp: time.Unix(3, 0)},
		{Symbol: "BTC-USD", Side: types.SideSell, Amount: decimal.NewFromInt(1), Price: decimal.NewFromInt(105), PnL: decimal.NewFromInt(-5), Timestamp: time.Unix(4, 0)},
	}

	res := Summarize(decimal.NewFromInt(1000), trades, decimal.NewFromInt(1005))

	if res.TradeCount != 4 {
		t.Errorf("TradeCount = %d, want 4", res.TradeCount)
	}
	if res.WinCount != 1 || res.LossCount != 1 {
		t.Errorf("WinCount/LossCount = %d/%d, want 1/1", res.WinCount, res.LossCount)
	}
	if !res.RealizedPnL.Equal(decimal.NewFromInt(5)) {
		t.Errorf("RealizedPnL = %v, want 5", res.RealizedPnL)
	}
	if !res.WinRate.Equal(decimal.NewFromInt(50)) {
		t.Errorf("WinRate = %v, want 50", res.WinRate)
	}
	wantReturn := decimal.NewFromFloat(0.5) // (1005-1000)/1000 * 100
	if !res.ReturnPct.Equal(wantReturn) {
		t.Errorf("ReturnPct = %v, want %v", res.ReturnPct, wantReturn)
	}
}

func TestSummarizeHandlesNoClosedTrades(t *testing.T) {
	trades := []Trade{
		{Symbol: "BTC-USD", Side: types.SideBuy, Amount: decimal.NewFromInt(1), Price: decimal.NewFromInt(100), PnL: decimal.Zero, Timestamp: time.Unix(1, 0)},
	}
	res := Summarize(decimal.NewFromInt(1000), trades, decimal.NewFromInt(1000))

	if !res.WinRate.IsZero() {
		t.Errorf("WinRate = %v, want 0 when no position ever closed", res.WinRate)
	}
	if !res.RealizedPnL.IsZero() {
		t.Errorf("RealizedPnL = %v, want 0", res.RealizedPnL)
	}
}

func TestSummarizeHandlesZeroInitialCapital(t *testing.T) {
	res := Summarize(decimal.Zero, nil, decimal.Zero)
	if !res.ReturnPct.IsZero() {
		t.Errorf("ReturnPct = %v, want 0 to avoid a division by zero", res.ReturnPct)
	}
}
