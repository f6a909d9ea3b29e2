package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-orgcreator/core"
)

const (
	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
)

// Server runs the HTTP surface until its context ends.
type Server struct {
	Addr            string
	Handler         http.Handler
	Logger          core.Logger
	ShutdownTimeout time.Duration
}

func New(addr string, handler http.Handler, logger core.Logger) *Server {
	return &Server{
		Addr:            addr,
		Handler:         handler,
		Logger:          glog.Ensure(logger),
		ShutdownTimeout: DefaultShutdownTimeout,
	}
}

func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", s.Addr, err)
	}
	return s.Serve(ctx, listener)
}

// Serve blocks until ctx is done, then shuts the server down gracefully.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	if s == nil || s.Handler == nil {
		return fmt.Errorf("server: handler is required")
	}
	logger := glog.Ensure(s.Logger)
	srv := &http.Server{
		Handler:      s.Handler,
		ReadTimeout:  DefaultReadTimeout,
		WriteTimeout: DefaultWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", listener.Addr().String())
		errCh <- srv.Serve(listener)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server: serve: %w", err)
	case <-ctx.Done():
	}

	timeout := s.ShutdownTimeout
	if timeout <= 0 {
		timeout = DefaultShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	logger.Info("http server stopped")
	return nil
}
