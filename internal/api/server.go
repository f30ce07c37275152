package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Server runs the read-only HTTP snapshot API.
type Server struct {
	server *http.Server
	logger *slog.Logger
}

// NewServer builds a snapshot server bound to port, reading state from
// provider at request time.
func NewServer(port int, provider Provider, logger *slog.Logger) *Server {
	handlers := NewHandlers(provider, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", handlers.HandleHealth)
	mux.HandleFunc("/api/snapshot", handlers.HandleSnapshot)

	return &Server{
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", port),
			Handler:      mux,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger.With("component", "api-server"),
	}
}

// Start blocks serving HTTP until Stop shuts the server down.
func (s *Server) Start() error {
	s.logger.Info("api server starting", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api server error: %w", err)
	}
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop() error {
	s.logger.Info("stopping api server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}
