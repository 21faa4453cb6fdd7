package backtest

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"tradefabric/pkg/types"
)

func TestJSONCandleSourceSortsAscendingAndClosesCandles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "candles.json")

	candles := []types.Candle{
		{Exchange: "binance", Symbol: "BTC-USD", Timeframe: "1d", Timestamp: time.Unix(200, 0), IsClosed: false},
		{Exchange: "binance", Symbol: "BTC-USD", Timeframe: "1d", Timestamp: time.Unix(100, 0), IsClosed: false},
	}
	data, err := json.Marshal(candles)
	if err != nil {
		t.Fatalf("marshal fixture: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	source := JSONCandleSource{Path: path}
	out, err := source.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 candles, got %d", len(out))
	}
	if !out[0].Timestamp.Before(out[1].Timestamp) {
		t.Errorf("candles not sorted ascending by timestamp")
	}
	for _, c := range out {
		if !c.IsClosed {
			t.Errorf("expected every replay candle forced IsClosed=true")
		}
	}
}

func TestJSONCandleSourceMissingFile(t *testing.T) {
	source := JSONCandleSource{Path: "/nonexistent/path/candles.json"}
	if _, err := source.Load(context.Background()); err == nil {
		t.Fatal("expected an error for a missing fixture file")
	}
}

func TestCSVCandleSourceParsesRowsAndSkipsHeader(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "candles.csv")

	content := "timestamp,open,high,low,close,volume\n" +
		"2024-01-02T00:00:00Z,101,105,99,104,10.5\n" +
		"2024-01-01T00:00:00Z,100,102,98,101,5.25\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	source := CSVCandleSource{Path: path, Exchange: "binance", Symbol: "BTC-USD", Timeframe: "1d", HasHeader: true}
	out, err := source.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 candles, got %d", len(out))
	}
	if out[0].Timestamp.After(out[1].Timestamp) {
		t.Errorf("expected ascending order, got %v before %v", out[0].Timestamp, out[1].Timestamp)
	}
	if out[0].Exchange != "binance" || out[0].Symbol != "BTC-USD" || out[0].Timeframe != "1d" {
		t.Errorf("expected fixed exchange/symbol/timeframe stamped on every row, got %+v", out[0])
	}
	wantClose := "101"
	if out[0].Close.String() != wantClose {
		t.Errorf("out[0].Close = %s, want %s", out[0].Close.String(), wantClose)
	}
}
