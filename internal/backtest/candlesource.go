// Package backtest replays historical candles through the live
// indicator/strategy/execution stack against an in-memory exchange stub,
// per original_source's backtest/main.py
// (BackTestingEngine.run_backtest): same StrategyRunner/IndicatorDAG/
// MitigationEngine/ExecutionPipeline components, fed candles at simulated
// time instead of a live feed.
package backtest

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"tradefabric/pkg/types"
)

// CandleSource loads a fixed, ordered sequence of closed candles for one
// replay run.
type CandleSource interface {
	Load(ctx context.Context) ([]types.Candle, error)
}

// JSONCandleSource reads a JSON array of types.Candle from a file.
type JSONCandleSource struct {
	Path string
}

func (s JSONCandleSource) Load(ctx context.Context) ([]types.Candle, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open candle fixture: %w", err)
	}
	defer f.Close()

	var candles []types.Candle
	if err := json.NewDecoder(f).Decode(&candles); err != nil {
		return nil, fmt.Errorf("decode candle fixture: %w", err)
	}
	return sortedClosed(candles), nil
}

// CSVCandleSource reads a header-less or headed CSV with columns
// timestamp(RFC3339),open,high,low,close,volume.
type CSVCandleSource struct {
	Path      string
	Exchange  string
	Symbol    string
	Timeframe string
	HasHeader bool
}

func (s CSVCandleSource) Load(ctx context.Context) ([]types.Candle, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open candle fixture: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = 6

	var candles []types.Candle
	first := true
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read candle fixture: %w", err)
		}
		if first && s.HasHeader {
			first = false
			continue
		}
		first = false

		ts, err := time.Parse(time.RFC3339, record[0])
		if err != nil {
			return nil, fmt.Errorf("parse timestamp %q: %w", record[0], err)
		}
		c := types.Candle{
			Exchange:  s.Exchange,
			Symbol:    s.Symbol,
			Timeframe: s.Timeframe,
			Timestamp: ts,
			Open:      decimal.RequireFromString(record[1]),
			High:      decimal.RequireFromString(record[2]),
			Low:       decimal.RequireFromString(record[3]),
			Close:     decimal.RequireFromString(record[4]),
			IsClosed:  true,
		}
		if vol, err := strconv.ParseFloat(record[5], 64); err == nil {
			c.Volume = decimal.NewFromFloat(vol)
		}
		candles = append(candles, c)
	}
	return sortedClosed(candles), nil
}

// sortedClosed returns candles ascending by timestamp with IsClosed forced
// true; a replay fixture has no notion of an in-flight partial bar.
func sortedClosed(candles []types.Candle) []types.Candle {
	out := make([]types.Candle, len(candles))
	copy(out, candles)
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	for i := range out {
		out[i].IsClosed = true
	}
	return out
}
