package main

import (
	"net/http"

	httphandlers "moneymind/internal/interfaces/http"
	"moneymind/internal/shared/config"
)

// SetupRoutes configures all HTTP routes and returns the final handler with middleware.
func SetupRoutes(deps *Dependencies, cfg *config.Config) http.Handler {
	return httphandlers.NewRouter(deps.Handlers, httphandlers.RouterConfig{
		Verifier:       deps.Verifier,
		Users:          deps.UserService,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		RequestTimeout: cfg.Server.RequestTimeout,
		LongTimeout:    cfg.Server.AdviceTimeout,
		HSTS:           cfg.Server.HSTS,
	})
}
