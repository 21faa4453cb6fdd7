// Command strategy runs the signal-generation service: it rebuilds the
// candle window for every closed candle, runs the indicator DAG and
// mitigation engine over it, and hands the result to every configured
// Strategy, publishing whatever signals they produce. Follows
// cmd/backtest/main.go's config-load/logger-setup shape, but as a
// long-lived service.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"tradefabric/internal/bus"
	"tradefabric/internal/cache"
	"tradefabric/internal/config"
	"tradefabric/internal/indicator"
	"tradefabric/internal/strategy"
	"tradefabric/internal/workerpool"
)

func main() {
	cfgPath := "configs/config.yaml"
	if p := os.Getenv("TF_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "path", cfgPath)
		os.Exit(1)
	}

	logger := newLogger(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	messageBus, err := bus.NewAMQPBus(cfg.Bus.URL, cfg.Bus.ReconnectMinDelay, cfg.Bus.ReconnectMaxDelay, cfg.Bus.PublishTimeout, logger)
	if err != nil {
		logger.Error("failed to connect to bus", "error", err)
		os.Exit(1)
	}
	defer messageBus.Close()

	kv, err := cache.NewRedisCache(ctx, cfg.Cache.Addr, cfg.Cache.Password, cfg.Cache.DB, logger)
	if err != nil {
		logger.Error("failed to connect to cache", "error", err)
		os.Exit(1)
	}

	repo := indicator.NewCacheRepository(kv)

	dag := indicator.NewDAG(logger)
	dag.Register(indicator.NewBOSIndicator())
	dag.Register(indicator.NewFVGIndicator())
	dag.Register(indicator.NewDojiIndicator())
	dag.Register(indicator.NewOrderBlockIndicator(repo))

	mitigation := indicator.NewMitigationEngine(logger)
	mitigation.Register(indicator.NewOrderBlockIndicator(repo))

	strategies := []strategy.Strategy{
		strategy.NewOrderBlockStrategy(repo, strategy.DefaultOrderBlockParams()),
	}

	pool := workerpool.New(ctx, logger, 256)
	runner := strategy.NewRunner(messageBus, kv, dag, mitigation, strategies, pool, logger, 0)

	if err := runner.Start(ctx); err != nil {
		logger.Error("failed to start strategy runner", "error", err)
		os.Exit(1)
	}

	logger.Info("strategy service started")
	<-ctx.Done()
	logger.Info("strategy service shutting down")
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Level)}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
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
