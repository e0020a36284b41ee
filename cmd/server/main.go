// Purview Router: answers natural-language data questions by consulting the
// Purview catalog and delegating to connected agents.
//
// This is the main entry point of the router HTTP server. It provides:
//   - Catalog analysis (/api/analyze)
//   - Routed queries through the routing agent (/api/route, /api/process)
//   - Direct queries to a single agent (/api/process-direct)
//   - Thread history, health and feature flags
//   - Optional static UI

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/agentoven/purview-router/internal/config"
	"github.com/agentoven/purview-router/pkg/server"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Setup structured logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	if os.Getenv("ROUTER_DEBUG") != "" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	if err := config.LoadEnvFiles(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load env files")
	}

	log.Info().Msg("🔎 Purview Router starting...")

	ctx := context.Background()
	srv, err := server.New(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize server")
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", srv.Config.Host, srv.Port),
		Handler:      srv.Handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		defer close(done)
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info().Msg("🛑 Shutting down gracefully...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("HTTP shutdown incomplete")
		}
		if err := srv.Close(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("Telemetry flush failed")
		}
	}()

	log.Info().
		Str("host", srv.Config.Host).
		Int("port", srv.Port).
		Msg("🔥 Purview Router ready")

	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("Server failed")
	}
	<-done
}
