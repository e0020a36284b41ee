// Package server provides the public entry point for initializing the
// Purview router.
//
// Usage:
//
//	srv, err := server.New(ctx)
//	http.ListenAndServe(":5000", srv.Handler)
//	defer srv.Close(ctx)
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/agentoven/purview-router/internal/api"
	"github.com/agentoven/purview-router/internal/api/handlers"
	"github.com/agentoven/purview-router/internal/auth"
	"github.com/agentoven/purview-router/internal/catalog"
	"github.com/agentoven/purview-router/internal/config"
	"github.com/agentoven/purview-router/internal/executor"
	"github.com/agentoven/purview-router/internal/foundry"
	"github.com/agentoven/purview-router/internal/genie"
	"github.com/agentoven/purview-router/internal/provision"
	"github.com/agentoven/purview-router/internal/router"
	"github.com/agentoven/purview-router/internal/telemetry"
	"github.com/agentoven/purview-router/pkg/contracts"

	"github.com/rs/zerolog/log"
)

// Server holds the initialized Purview router.
type Server struct {
	// Handler is the HTTP handler with all routes and middleware.
	Handler http.Handler

	// Service is the orchestration engine. Its agents are released by Close.
	Service *router.Service

	// Config is the loaded configuration.
	Config *config.Config

	// Port is the port the server should listen on.
	Port int

	// ShutdownFunc flushes telemetry on graceful shutdown.
	ShutdownFunc func(context.Context) error
}

// New loads configuration from the environment and returns a ready Server.
func New(ctx context.Context) (*Server, error) {
	return NewWithConfig(ctx, config.Load())
}

// NewWithConfig wires all components with an explicit configuration and
// Azure credentials from the default credential chain.
func NewWithConfig(ctx context.Context, cfg *config.Config) (*Server, error) {
	tokens, err := auth.NewAzureTokenProvider()
	if err != nil {
		return nil, fmt.Errorf("init azure credentials: %w", err)
	}
	return NewWithTokens(ctx, cfg, tokens)
}

// NewWithTokens wires all components against the given token provider.
func NewWithTokens(ctx context.Context, cfg *config.Config, tokens contracts.TokenProvider) (*Server, error) {
	shutdown, err := telemetry.Init(ctx, cfg.Telemetry, cfg.Version)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	if v := cfg.Validate(); !v.Valid {
		log.Warn().Strs("missing", v.MissingVariables).Msg("⚠️  Required configuration missing")
	}

	contacts, err := catalog.LoadContacts(cfg.Purview.ContactsFile)
	if err != nil {
		return nil, fmt.Errorf("load catalog contacts: %w", err)
	}
	catalogSvc := catalog.NewService(cfg.Purview.Endpoint, tokens, contacts)
	log.Info().Int("contacts", len(contacts)).Msg("✅ Catalog search initialized")

	genieClient := genie.NewClient(cfg.Genie)
	if genieClient.Configured() {
		log.Info().Msg("✅ Genie client initialized")
	} else {
		log.Info().Msg("🔕 Genie not configured")
	}

	platform := foundry.NewClient(cfg.Agents.Endpoint, tokens)
	dispatcher := executor.NewDispatcher(catalogSvc, genieClient)
	exec := executor.NewExecutor(platform, dispatcher)
	factory := provision.NewFactory(platform, cfg.Agents)

	svc := router.NewService(platform, factory, catalogSvc, exec)
	log.Info().Msg("✅ Connected agent service initialized")

	h := handlers.New(svc, genieClient, cfg)

	return &Server{
		Handler:      api.NewRouter(cfg, h),
		Service:      svc,
		Config:       cfg,
		Port:         cfg.Port,
		ShutdownFunc: shutdown,
	}, nil
}

// Close releases provisioned agents and flushes telemetry.
func (s *Server) Close(ctx context.Context) error {
	s.Service.Cleanup(ctx)
	return s.ShutdownFunc(ctx)
}
