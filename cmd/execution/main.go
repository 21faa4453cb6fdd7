// Command execution runs the order-submission service: it consumes every
// published signal, sizes and risk-checks it, and submits the resulting
// order to the configured exchange connector. Follows
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
	"tradefabric/internal/exchange"
	"tradefabric/internal/execution"
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

	connector := exchange.NewClient(cfg.Exchange, logger)
	risk := execution.NewRiskManager(cfg.Risk, logger)
	pool := workerpool.New(ctx, logger, 256)
	pipeline := execution.NewPipeline(messageBus, kv, connector, risk, cfg.Execution, cfg.Exchange.Name, pool, logger)

	if err := pipeline.Start(ctx); err != nil {
		logger.Error("failed to start execution pipeline", "error", err)
		os.Exit(1)
	}

	logger.Info("execution service started", "dry_run", cfg.Execution.DryRun)
	<-ctx.Done()
	logger.Info("execution service shutting down")
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
