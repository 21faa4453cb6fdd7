package backtest

import "github.com/shopspring/decimal"

// Result summarizes a completed replay run, grounded on original_source's
// backtest/main.py printing final equity, total return, and trade count
// after a run.
type Result struct {
	InitialCapital decimal.Decimal
	FinalBalance   decimal.Decimal
	RealizedPnL    decimal.Decimal
	ReturnPct      decimal.Decimal
	TradeCount     int
	WinCount       int
	LossCount      int
	WinRate        decimal.Decimal
	Trades         []Trade
}

// Summarize computes a Result from the exchange's recorded trades and
// final balance. A "trade" here is any fill; win/loss counting only
// considers fills with a nonzero realized P&L, since fills that merely
// open or extend a position carry no P&L of their own.
func Summarize(initialCapital decimal.Decimal, trades []Trade, finalBalance decimal.Decimal) *Result {
	res := &Result{
		InitialCapital: initialCapital,
		FinalBalance:   finalBalance,
		TradeCount:     len(trades),
		Trades:         trades,
	}

	var realized decimal.Decimal
	closedCount := 0
	for _, t := range trades {
		if t.PnL.IsZero() {
			continue
		}
		realized = realized.Add(t.PnL)
		closedCount++
		if t.PnL.IsPositive() {
			res.WinCount++
		} else {
			res.LossCount++
		}
	}
	res.RealizedPnL = realized

	if !initialCapital.IsZero() {
		res.ReturnPct = finalBalance.Sub(initialCapital).Div(initialCapital).Mul(decimal.NewFromInt(100))
	}
	if closedCount > 0 {
		res.WinRate = decimal.NewFromInt(int64(res.WinCount)).Div(decimal.NewFromInt(int64(closedCount))).Mul(decimal.NewFromInt(100))
	}
	return res
}
