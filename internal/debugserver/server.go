package debugserver

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/cachewarm/cachewarm/internal/logger"
)

// Server exposes health, stats and metrics endpoints over HTTP.
//
// The server is intended for operators and scrapers only; it never serves
// dataset payloads. It supports graceful shutdown with a fixed timeout.
type Server struct {
	server       *http.Server
	addr         string
	shutdownOnce sync.Once
}

// NewServer creates a debug HTTP server listening on addr.
//
// The server is created in a stopped state. Call Start() to begin serving.
// stats may be nil, in which case /stats returns an empty object. submit
// may be nil, in which case the /prefetch endpoint is not mounted.
func NewServer(addr string, stats StatsFunc, submit SubmitFunc) *Server {
	return &Server{
		server: &http.Server{
			Addr:         addr,
			Handler:      newRouter(stats, submit),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		addr: addr,
	}
}

// Start starts the debug server and blocks until the context is cancelled
// or the listener fails.
//
// When the context is cancelled, Start initiates graceful shutdown and
// returns nil on success.
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		logger.Info("debug server listening", "addr", s.addr)

		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			select {
			case errChan <- err:
			default:
			}
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("debug server failed: %w", err)
	}
}

// Stop initiates graceful shutdown. Safe to call multiple times.
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("debug server shutdown error: %w", err)
		} else {
			logger.Info("debug server stopped gracefully")
		}
	})
	return shutdownErr
}
