package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// NewServer creates the API server. WriteTimeout sits above the longest
// route deadline so the deadline middleware always answers first.
func NewServer(handler http.Handler) *http.Server {
	return &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// StartServer serves on ln in the background. The returned channel receives
// the error that stopped the server, nil after a graceful shutdown.
func StartServer(srv *http.Server, ln net.Listener) <-chan error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server starting", "addr", ln.Addr().String())
		err := srv.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()
	return errCh
}

// GracefulShutdown stops accepting connections and waits for in-flight
// requests up to timeout.
func GracefulShutdown(srv *http.Server, timeout time.Duration) {
	slog.Info("Server shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("Error shutting down HTTP server", "error", err)
	}

	slog.Info("Server stopped")
}
