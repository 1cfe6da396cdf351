// Package httpserver exposes retrieval over HTTP with gin.
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/otpmail/internal/model"
)

const shutdownTimeout = 30 * time.Second

// Server runs the HTTP listener until its context ends.
type Server struct {
	srv *http.Server
	log *zap.Logger
}

// NewServer creates a Server. There is no write timeout: a poll may hold
// the response open for up to the configured maximum timeout.
func NewServer(cfg model.ServerConfig, router *Router, log *zap.Logger) *Server {
	readTimeout := time.Duration(cfg.ReadTimeoutSec) * time.Second
	return &Server{
		srv: &http.Server{
			Addr:              cfg.Addr,
			Handler:           router.Engine,
			ReadHeaderTimeout: readTimeout,
			ReadTimeout:       readTimeout,
		},
		log: log,
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully, letting
// in-flight polls finish for up to 30 seconds.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("HTTP server starting", zap.String("addr", s.srv.Addr))
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.log.Info("Shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	s.log.Info("HTTP server stopped")
	return nil
}
