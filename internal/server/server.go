// Package server exposes the recognition pipeline over HTTP: single and batch
// recognition endpoints, a health probe and Prometheus metrics.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/moneyocr/moneyocr/internal/config"
)

// Server wires the pipeline into an http.Server.
type Server struct {
	cfg        config.ServerConfig
	recognizer AmountRecognizer
	httpServer *http.Server
	startedAt  time.Time
}

// New creates a server around an already-built pipeline handle.
func New(cfg config.ServerConfig, recognizer AmountRecognizer) *Server {
	s := &Server{cfg: cfg, recognizer: recognizer, startedAt: time.Now()}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/recognize", s.handleRecognize)
	mux.HandleFunc("POST /api/v1/recognize/batch", s.handleRecognizeBatch)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           s.withMiddleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
		// Recognition runs under the pipeline's own budget; the server
		// timeout only has to cover upload parsing on top of it.
		WriteTimeout: time.Duration(cfg.TimeoutSec) * time.Second,
	}
	return s
}

// Addr returns the listen address.
func (s *Server) Addr() string { return s.httpServer.Addr }

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	slog.Info("HTTP server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// maxUploadBytes converts the configured megabyte cap.
func (s *Server) maxUploadBytes() int64 {
	return int64(s.cfg.MaxUploadMB) << 20
}
