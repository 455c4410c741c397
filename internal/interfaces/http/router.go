// Package http assembles the engine's HTTP surface.
package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"promptvault-backend/internal/config"
	"promptvault-backend/internal/infrastructure/observability"
	"promptvault-backend/internal/interfaces/http/handlers"
	"promptvault-backend/internal/middleware"
	"promptvault-backend/internal/service/engine"
	"promptvault-backend/pkg/api"
	"promptvault-backend/pkg/auth"
)

// RouterDeps bundles everything the router needs.
type RouterDeps struct {
	Config    *config.Config
	Engine    engine.Service
	Validator *auth.JWTValidator
	Metrics   *observability.Collector
	Logger    *zap.Logger
}

// NewRouter builds the chi router with the full middleware chain and all
// engine routes.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger, deps.Metrics))
	r.Use(middleware.Timeout(29*time.Second, deps.Logger))

	if deps.Config.EnableCORS {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"https://*", "http://*"},
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if deps.Config.EnableMetrics && deps.Metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Metrics.Registry(), promhttp.HandlerOpts{}))
	}

	compositionHandler := handlers.NewCompositionHandler(deps.Engine, deps.Metrics, deps.Logger)
	graphHandler := handlers.NewGraphHandler(deps.Engine, deps.Metrics, deps.Logger)
	predictionHandler := handlers.NewPredictionHandler(deps.Engine, deps.Metrics, deps.Logger)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Authenticate(deps.Validator, deps.Logger))
		r.Use(middleware.CircuitBreaker(middleware.DefaultCircuitBreakerConfig("engine-api"), deps.Logger))

		r.Post("/compositions", compositionHandler.ScoreAndSelect)
		r.Post("/graph", graphHandler.BuildGraph)
		r.Post("/graph/paths", graphHandler.FindPaths)
		r.Get("/fragments/{fragmentID}/neighbors", graphHandler.GetNeighbors)
		r.Post("/predictions", predictionHandler.GetPredictions)
		r.Post("/events", predictionHandler.TrackUsage)
	})

	return r
}
