package api

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/agentoven/purview-router/internal/api/handlers"
	"github.com/agentoven/purview-router/internal/api/middleware"
	"github.com/agentoven/purview-router/internal/config"
	"github.com/agentoven/purview-router/internal/telemetry"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"
)

// NewRouter creates the HTTP router with all API routes.
func NewRouter(cfg *config.Config, h *handlers.Handlers) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Compress(5))
	r.Use(middleware.Logger)
	r.Use(middleware.Telemetry)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	apiKeys := middleware.NewAPIKeyAuth(cfg.Auth.APIKeys)
	if apiKeys.Enabled() {
		log.Info().Int("keys", len(cfg.Auth.APIKeys)).Msg("🔐 API key auth enabled")
	}
	r.Use(apiKeys.Middleware)

	// Info & metrics
	r.Get("/version", h.Version)
	r.Handle("/metrics", telemetry.MetricsHandler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)
		r.Get("/config", h.FeatureConfig)

		r.Post("/analyze", h.Analyze)
		r.Post("/route", h.Route)
		r.Post("/process", h.Process)
		r.Post("/process-direct", h.ProcessDirect)

		r.Get("/thread/{threadID}/messages", h.ThreadMessages)
	})

	if cfg.UIDir != "" {
		r.Handle("/*", spaHandler(cfg.UIDir))
		log.Info().Str("dir", cfg.UIDir).Msg("🖥️  Serving UI")
	}

	return r
}

// spaHandler serves files from dir and falls back to index.html for paths
// that do not name a file, so client-side routes resolve.
func spaHandler(dir string) http.Handler {
	fs := http.FileServer(http.Dir(dir))
	index := filepath.Join(dir, "index.html")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := filepath.Join(dir, filepath.FromSlash(filepath.Clean("/"+r.URL.Path)))
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			fs.ServeHTTP(w, r)
			return
		}
		if strings.HasPrefix(r.URL.Path, "/api/") {
			http.NotFound(w, r)
			return
		}
		http.ServeFile(w, r, index)
	})
}
