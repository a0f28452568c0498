package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"moneymind/internal/shared/config"
	"moneymind/internal/shared/logging"
	"moneymind/internal/shared/telemetry"
)

const (
	exitOK     = 0
	exitConfig = 1
	exitBind   = 2
	// exitServe reports a server that stopped on its own after binding.
	exitServe  = 3

	shutdownTimeout = 30 * time.Second
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	flags := flag.NewFlagSet("moneymind-api", flag.ContinueOnError)
	port := flags.Int("port", 8080, "port to listen on")
	host := flags.String("host", "0.0.0.0", "address to bind")
	if err := flags.Parse(args); err != nil {
		return exitConfig
	}
	if flags.NArg() > 0 {
		fmt.Fprintf(os.Stderr, "unexpected arguments: %v\n", flags.Args())
		flags.Usage()
		return exitConfig
	}
	if *port < 0 || *port > 65535 {
		fmt.Fprintf(os.Stderr, "--port must be between 0 and 65535\n")
		return exitConfig
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		return exitConfig
	}
	cfg.Server.Port = *port
	cfg.Server.Host = *host

	slog.SetDefault(logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format))

	ctx := context.Background()

	shutdownTelemetry := func(context.Context) error { return nil }
	if cfg.Telemetry.Enabled {
		shutdownTelemetry, err = telemetry.Init(ctx, telemetry.Config{
			ServiceName:  cfg.Telemetry.ServiceName,
			Environment:  cfg.Telemetry.Environment,
			OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
			MetricsPort:  cfg.Telemetry.MetricsPort,
		})
		if err != nil {
			slog.Error("Failed to initialize telemetry", "error", err)
			return exitConfig
		}
	}
	defer func() {
		tctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(tctx); err != nil {
			slog.Error("Error shutting down telemetry", "error", err)
		}
	}()

	deps, err := NewDependencies(ctx, cfg)
	if err != nil {
		slog.Error("Failed to initialize dependencies", "error", err)
		return exitConfig
	}
	defer deps.Close()

	ln, err := net.Listen("tcp", cfg.Server.Addr())
	if err != nil {
		slog.Error("Failed to bind listener", "addr", cfg.Server.Addr(), "error", err)
		return exitBind
	}

	srv := NewServer(SetupRoutes(deps, cfg))
	serveErr := StartServer(srv, ln)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	return waitForShutdown(srv, serveErr, quit)
}

// waitForShutdown blocks until a signal arrives or the server stops by
// itself. Only a signal-driven shutdown exits 0.
func waitForShutdown(srv *http.Server, serveErr <-chan error, quit <-chan os.Signal) int {
	code := exitOK
	select {
	case sig := <-quit:
		slog.Info("Received shutdown signal", "signal", sig.String())
	case err := <-serveErr:
		slog.Error("Server stopped unexpectedly", "error", err)
		code = exitServe
	}

	GracefulShutdown(srv, shutdownTimeout)
	return code
}
