// Command monitoring runs the order-tracking and operator-facing read API
// service: it subscribes to every order-lifecycle event, maintains the
// active-orders/positions views and alert history, and serves them over
// HTTP and WebSocket. Follows cmd/backtest/main.go's config-load/
// logger-setup shape, but as a long-lived service.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"tradefabric/internal/bus"
	"tradefabric/internal/config"
	"tradefabric/internal/domain"
	"tradefabric/internal/monitoring"
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

	positions := domain.NewMemoryPositionRepository()
	hub := monitoring.NewHub(logger)
	sink := monitoring.NewBroadcastSink(hub, monitoring.NewLogAlertSink(logger))
	tracker := monitoring.NewTracker(messageBus, positions, sink, cfg.Monitoring, logger)

	if err := tracker.Start(ctx); err != nil {
		logger.Error("failed to start order tracker", "error", err)
		os.Exit(1)
	}
	defer tracker.Stop()

	var server *monitoring.Server
	if cfg.Monitoring.APIEnabled {
		server = monitoring.NewServer(tracker, hub, cfg.Monitoring, logger)
		if err := server.Start(); err != nil {
			logger.Error("failed to start monitoring API", "error", err)
			os.Exit(1)
		}
	}

	logger.Info("monitoring service started", "api_enabled", cfg.Monitoring.APIEnabled)
	<-ctx.Done()
	logger.Info("monitoring service shutting down")

	if server != nil {
		if err := server.Stop(); err != nil {
			logger.Error("failed to stop monitoring API cleanly", "error", err)
		}
	}
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
