// Package server exposes the HTTP surface: tool-server management, direct
// tool execution, and the agent query endpoint.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Nohyunjin/omni-secretary/internal/config"
	"github.com/Nohyunjin/omni-secretary/internal/logging"
	"github.com/Nohyunjin/omni-secretary/internal/toolserver"
)

// Server is the HTTP front of the service.
type Server struct {
	httpServer *http.Server
	logger     logging.Logger
}

func New(cfg *config.Config, sup *toolserver.Supervisor, registry *toolserver.Registry, runner AgentRunner) *Server {
	h := NewHandler(cfg, sup, registry, runner)
	router := NewRouter(h, cfg.HTTP.AllowedOrigins)

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logging.NewComponentLogger("HTTPServer"),
	}
}

// Addr returns the configured listen address.
func (s *Server) Addr() string { return s.httpServer.Addr }

// Run serves until the listener fails or Shutdown is called.
func (s *Server) Run() error {
	s.logger.Info("listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests within ctx's deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down")
	return s.httpServer.Shutdown(ctx)
}
