// Package server owns the listening socket and the serve/shutdown lifecycle.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/labstack/echo/v4"

	"blackhole-proxy-go/internal/config"
)

// Server serves an Echo instance on the configured address.
type Server struct {
	echo   *echo.Echo
	addr   string
	logger *slog.Logger

	mu       sync.Mutex
	listener net.Listener
	done     chan struct{}
}

// New creates a Server. Nothing is bound until Start is called.
func New(e *echo.Echo, cfg *config.Config, logger *slog.Logger) *Server {
	return &Server{
		echo:   e,
		addr:   cfg.Server.Addr(),
		logger: logger.With("component", "server"),
	}
}

// Start binds the listener and serves in the background. Bind errors are
// returned synchronously.
func (s *Server) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return errors.New("server already started")
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("bind %s: %w", s.addr, err)
	}
	s.listener = ln
	s.done = make(chan struct{})

	s.logger.Info("BlackHole proxy server running", "addr", ln.Addr().String())
	s.logger.Info("ready to proxy requests", "usage", fmt.Sprintf("http://%s/?url=<target>", ln.Addr()))

	go func(done chan struct{}) {
		defer close(done)
		if err := s.echo.Server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("server error", "err", err)
		}
	}(s.done)

	return nil
}

// Stop gracefully shuts the server down, waiting for in-flight requests
// until ctx expires.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	done := s.done
	started := s.listener != nil
	s.mu.Unlock()

	if !started {
		return nil
	}

	s.logger.Info("shutting down server")
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	s.logger.Info("server stopped")
	return nil
}

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}
