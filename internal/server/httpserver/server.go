package httpserver

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"
)

const (
	readHeaderTimeout = 5 * time.Second

	// DefaultShutdownTimeout bounds in-flight requests once Serve's context ends.
	DefaultShutdownTimeout = 5 * time.Second
)

// Server represents the HTTP server.
type Server struct {
	httpServer      *http.Server
	logger          *slog.Logger
	shutdownTimeout time.Duration
}

// New creates a server for handler. The standard middleware chain is applied.
func New(handler http.Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		httpServer: &http.Server{
			Handler:           Chain(handler, RequestID(), Recover(logger), AccessLog(logger)),
			ReadHeaderTimeout: readHeaderTimeout,
		},
		logger:          logger,
		shutdownTimeout: DefaultShutdownTimeout,
	}
}

// Serve accepts connections on ln until ctx is done, then shuts down
// gracefully. It returns ctx.Err() after a shutdown caused by ctx, or the
// error that stopped the listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("http server shutdown", "error", err)
	}
	return ctx.Err()
}
