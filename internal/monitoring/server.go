package monitoring

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"tradefabric/internal/config"
)

// Server exposes the operator-facing read API over HTTP and WebSocket:
// /health, /api/snapshot, /ws. Grounded on internal/api/server.go,
// reshaped from a market-making dashboard to Order/Position/Alert views.
type Server struct {
	hub    *Hub
	http   *http.Server
	logger *slog.Logger
}

func NewServer(tracker *Tracker, hub *Hub, cfg config.MonitoringConfig, logger *slog.Logger) *Server {
	handlers := NewHandlers(tracker, hub, cfg, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", handlers.HandleHealth)
	mux.HandleFunc("/api/snapshot", handlers.HandleSnapshot)
	mux.HandleFunc("/ws", handlers.HandleWebSocket)

	return &Server{
		hub: hub,
		http: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.APIPort),
			Handler:      mux,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger.With("component", "monitoring-api"),
	}
}

// Start runs the hub loop and blocks serving HTTP until Stop shuts the
// listener down; callers run it in its own goroutine, matching
// internal/api/server.go's Start.
func (s *Server) Start() error {
	go s.hub.Run()

	s.logger.Info("monitoring api server starting", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("monitoring api server: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop() error {
	s.logger.Info("stopping monitoring api server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.http.Shutdown(ctx)
}
