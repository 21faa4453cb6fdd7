// Command data runs the candle aggregator service: it subscribes to every
// base-candle event published by the upstream exchange feed and rolls each
// one into the configured custom timeframes, publishing a candle.new event
// per completed bucket. Follows cmd/backtest/main.go's config-load/
// logger-setup shape, but as a long-lived service rather than a bounded
// replay.
package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"tradefabric/internal/bus"
	"tradefabric/internal/cache"
	"tradefabric/internal/candle"
	"tradefabric/internal/config"
	"tradefabric/pkg/types"
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

	state := candle.NewStateManager(kv)
	aggregator := candle.NewAggregator(state, messageBus, logger)

	if err := runDataService(ctx, messageBus, aggregator, cfg.Candles, logger); err != nil {
		logger.Error("data service failed to start", "error", err)
		os.Exit(1)
	}

	logger.Info("data service started", "custom_timeframes", cfg.Candles.CustomTimeframes)
	<-ctx.Done()
	logger.Info("data service shutting down")
}

// runDataService declares the market-data exchange and the external-feed
// queue, binds it to every base-candle event regardless of venue/symbol,
// and folds each delivered candle into every configured custom timeframe.
func runDataService(ctx context.Context, b bus.MessageBus, aggregator *candle.Aggregator, candles config.CandleConfig, logger *slog.Logger) error {
	if err := b.DeclareExchange(ctx, bus.ExchangeMarketData); err != nil {
		return err
	}
	if err := b.DeclareQueue(ctx, bus.QueueExternalData); err != nil {
		return err
	}
	if err := b.BindQueue(ctx, bus.ExchangeMarketData, bus.QueueExternalData, bus.RoutingKeyExternalNewPattern); err != nil {
		return err
	}

	return b.Subscribe(ctx, bus.QueueExternalData, func(ctx context.Context, routingKey string, body []byte) error {
		var base types.Candle
		if err := json.Unmarshal(body, &base); err != nil {
			logger.Error("failed to decode base candle event", "routing_key", routingKey, "error", err)
			return nil
		}
		if !base.IsClosed {
			return nil
		}
		for _, tf := range candles.CustomTimeframes {
			if _, _, err := aggregator.ProcessCandle(ctx, base, tf); err != nil {
				logger.Error("failed to process candle", "routing_key", routingKey, "timeframe", tf, "error", err)
				return err
			}
		}
		return nil
	})
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
