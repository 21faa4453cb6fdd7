// Package indicator implements the indicator DAG (topologically ordered,
// per-bar, error-isolated indicator execution) and the mitigation engine
// that reconciles persisted order-block/FVG instances against recent price
// action.
package indicator

import (
	"time"

	"github.com/shopspring/decimal"

	"tradefabric/pkg/types"
)

// Data is the per-run working set threaded through every indicator's
// Calculate call. It mirrors the Python engine's plain dict (`candles`,
// `market_contexts`, `symbol`, `timeframe`, `exchange`, `current_price`,
// `timestamp`, plus a `{type}_data` key per indicator already run this
// round), but typed: indicators fetch a dependency's result with Result.
type Data struct {
	Candles        []types.Candle
	MarketContexts []types.MarketContext
	Symbol         string
	Timeframe      string
	Exchange       string
	CurrentPrice   decimal.Decimal
	Timestamp      time.Time

	results map[string]any
}

func newData(candles []types.Candle, marketContexts []types.MarketContext) *Data {
	d := &Data{
		Candles:        candles,
		MarketContexts: marketContexts,
		Timestamp:      time.Now().UTC(),
		results:        make(map[string]any),
	}
	if len(candles) > 0 {
		first, last := candles[0], candles[len(candles)-1]
		d.Symbol, d.Timeframe, d.Exchange = first.Symbol, first.Timeframe, first.Exchange
		d.CurrentPrice = last.Close
	}
	return d
}

// Result returns the result a prior indicator of type t stored this run, if
// any. Dependencies must be listed in Requirements().Dependencies to guarantee
// the producer ran first.
func (d *Data) Result(t types.IndicatorType) (any, bool) {
	v, ok := d.results[t.StableID()+"_data"]
	return v, ok
}

func (d *Data) setResult(t types.IndicatorType, v any) {
	d.results[t.StableID()+"_data"] = v
}
