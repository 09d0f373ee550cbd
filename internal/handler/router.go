package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/capitalize-ai/convsynth/internal/middleware"
	"github.com/capitalize-ai/convsynth/pkg/logger"
)

// RouterConfig wires the serve mode router.
type RouterConfig struct {
	Health *HealthHandler
	Runs   *RunHandler

	// JWTSecret enables bearer auth and scope checks when set.
	JWTSecret         string
	RateLimitRequests int
	RateLimitWindow   time.Duration
	AllowedOrigins    []string

	Logger *logger.Logger
}

// NewRouter builds the HTTP routes.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(cfg.Logger))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	r.Get("/health", cfg.Health.Health)
	r.Get("/ready", cfg.Health.Ready)
	r.Handle("/metrics", promhttp.Handler())

	authEnabled := cfg.JWTSecret != ""
	r.Route("/api/v1", func(r chi.Router) {
		if authEnabled {
			r.Use(middleware.Auth(cfg.JWTSecret))
		}
		if cfg.RateLimitRequests > 0 && cfg.RateLimitWindow > 0 {
			r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))
		}

		read := middleware.RequireScope(middleware.ScopeRunsRead, authEnabled)
		write := middleware.RequireScope(middleware.ScopeRunsWrite, authEnabled)

		r.Route("/runs", func(r chi.Router) {
			r.With(write).Post("/", cfg.Runs.Create)
			r.With(read).Get("/", cfg.Runs.List)
			r.With(read).Get("/{id}", cfg.Runs.Get)
		})
		r.With(read).Get("/summary", cfg.Runs.Summary)
		r.With(read).Get("/events", cfg.Runs.Events)
	})

	return r
}
