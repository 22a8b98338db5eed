// Command api is the HTTP server for the audio registration service.
//
// Purpose:
//
//	This binary serves the Yandex OAuth2 login flow, session token refresh,
//	user profile management, and audio file upload/listing. It initializes
//	runtime dependencies (Postgres, optional Redis, optional Kafka) via
//	bootstrap and serves HTTP with graceful shutdown handling.
//
// Key Responsibilities:
//   - Load configuration and initialize runtime dependencies
//   - Register public login routes and bearer-protected API routes
//   - Handle graceful shutdown (SIGINT/SIGTERM) with 10s timeout
//   - Expose health, readiness, and metrics endpoints
//
// Debugging Notes:
//   - Server starts on HTTP_PORT (default 8080)
//   - Readiness probe checks Postgres, and Redis when configured
//   - Schema migrations are applied out of band (see migrations/), never
//     on the request path
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/audioreg/audioreg/internal/bootstrap"
	"github.com/audioreg/audioreg/internal/config"
	"github.com/audioreg/audioreg/internal/httpapi/audio"
	"github.com/audioreg/audioreg/internal/httpapi/auth"
	"github.com/audioreg/audioreg/internal/httpapi/middleware"
	"github.com/audioreg/audioreg/internal/httpapi/users"
	"github.com/audioreg/audioreg/internal/logging"
	"github.com/audioreg/audioreg/internal/server"
)

func main() {
	cfg := config.MustLoad()
	logger := logging.New(cfg.ServiceName, cfg.LogLevel)
	logger.Info().
		Str("env", cfg.Environment).
		Int("port", cfg.HTTPPort).
		Msg("starting api")

	runtime, err := bootstrap.Initialize(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to bootstrap runtime")
	}
	logger.Info().Msg("runtime dependencies initialized")

	authHandler := auth.NewHandler(runtime.Provider, runtime.States, runtime.Directory, runtime.Tokens, runtime.Audit, logger)
	usersHandler := users.NewHandler(runtime.Directory, runtime.Access, runtime.Audit, logger)
	audioHandler := audio.NewHandler(runtime.Postgres, runtime.Blobs, runtime.Audit, logger)

	srv := server.New(server.Options{
		Port:      cfg.HTTPPort,
		Logger:    logger,
		Readiness: runtime.ReadinessProbe,
		RegisterRoutes: func(r chi.Router) {
			authHandler.RegisterPublicRoutes(r)
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAuth(runtime.Access, logger))
				authHandler.RegisterProtectedRoutes(r)
				usersHandler.RegisterRoutes(r)
				audioHandler.RegisterRoutes(r)
			})
		},
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("api server failed")
		}
	}()

	<-ctx.Done()
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
		os.Exit(1)
	}
	if err := runtime.Close(); err != nil {
		logger.Error().Err(err).Msg("failed to cleanly close runtime")
	}

	logger.Info().Msg("api stopped")
}
