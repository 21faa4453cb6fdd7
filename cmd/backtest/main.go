// Command backtest replays a historical candle fixture through the live
// indicator/strategy/execution stack and prints a P&L summary, following
// cmd/bot/main.go's config-load/logger-setup/lifecycle shape but running a
// single bounded replay instead of a long-lived service.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/shopspring/decimal"

	"tradefabric/internal/backtest"
	"tradefabric/internal/config"
)

func main() {
	var (
		cfgPath     = flag.String("config", "configs/config.yaml", "path to config file")
		fixturePath = flag.String("fixture", "", "path to a candle fixture (.json or .csv)")
		exchange    = flag.String("exchange", "backtest", "exchange name stamped on replayed candles")
		symbol      = flag.String("symbol", "", "symbol stamped on replayed candles (required for .csv fixtures)")
		timeframe   = flag.String("timeframe", "1d", "timeframe stamped on replayed candles")
		capital     = flag.Float64("capital", 10000, "starting capital")
	)
	flag.Parse()

	if *fixturePath == "" {
		fmt.Fprintln(os.Stderr, "backtest: -fixture is required")
		os.Exit(1)
	}

	if p := os.Getenv("TF_CONFIG"); p != "" {
		*cfgPath = p
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "path", *cfgPath)
		os.Exit(1)
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Logging.Level)}
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)

	source, err := loadSource(*fixturePath, *exchange, *symbol, *timeframe)
	if err != nil {
		logger.Error("failed to build candle source", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	runner, err := backtest.New(ctx, backtest.Config{
		Exchange:        *exchange,
		Symbol:          *symbol,
		Timeframe:       *timeframe,
		InitialCapital:  decimal.NewFromFloat(*capital),
		RiskConfig:      cfg.Risk,
		ExecutionConfig: cfg.Execution,
		Logger:          logger,
	})
	if err != nil {
		logger.Error("failed to build backtest runner", "error", err)
		os.Exit(1)
	}

	result, err := runner.Run(ctx, source)
	if err != nil {
		logger.Error("backtest run failed", "error", err)
		os.Exit(1)
	}

	fmt.Printf("initial capital: %s\n", result.InitialCapital.String())
	fmt.Printf("final balance:   %s\n", result.FinalBalance.String())
	fmt.Printf("realized pnl:    %s\n", result.RealizedPnL.String())
	fmt.Printf("return:          %s%%\n", result.ReturnPct.String())
	fmt.Printf("trades:          %d (win rate %s%%)\n", result.TradeCount, result.WinRate.String())
}

func loadSource(path, exchange, symbol, timeframe string) (backtest.CandleSource, error) {
	if strings.HasSuffix(path, ".csv") {
		if symbol == "" {
			return nil, fmt.Errorf("-symbol is required for .csv fixtures")
		}
		return backtest.CSVCandleSource{Path: path, Exchange: exchange, Symbol: symbol, Timeframe: timeframe, HasHeader: true}, nil
	}
	return backtest.JSONCandleSource{Path: path}, nil
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
