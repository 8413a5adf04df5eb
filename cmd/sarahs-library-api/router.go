package main

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sarahcodeswell/sarahs-library-sub002/cmd/sarahs-library-api/handlers"
	"github.com/sarahcodeswell/sarahs-library-sub002/cmd/sarahs-library-api/middleware"
	"github.com/sarahcodeswell/sarahs-library-sub002/internal/observability"
	"github.com/sarahcodeswell/sarahs-library-sub002/internal/ratelimit"
	"github.com/sarahcodeswell/sarahs-library-sub002/internal/recommend"
	"github.com/sarahcodeswell/sarahs-library-sub002/internal/routing"
)

// RouterConfig holds what NewRouter needs beyond the handlers' services.
type RouterConfig struct {
	RequestTimeout time.Duration
	AllowedOrigins []string
	RateLimiter    ratelimit.Store // nil disables rate limiting
	History        handlers.HistoryLoader
	Metrics        *routing.RouterMetrics
}

// NewRouter creates the API router with all routes configured.
func NewRouter(logger *observability.Logger, service *recommend.Service, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Trace)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	if cfg.RequestTimeout > 0 {
		r.Use(chimiddleware.Timeout(cfg.RequestTimeout))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]interface{}{
			"status":      "healthy",
			"service":     "sarahs-library",
			"catalogSize": service.CatalogSize(),
		}
		if cfg.Metrics != nil {
			resp["routing"] = cfg.Metrics.Snapshot()
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	})

	recommendHandler := handlers.NewRecommendHandler(logger, service, cfg.History)

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.RateLimiter != nil {
			r.Use(middleware.RateLimit(logger, cfg.RateLimiter))
		}

		r.Post("/route", recommendHandler.Route)
		r.Post("/shortlist", recommendHandler.Shortlist)
		r.Post("/prompt", recommendHandler.Prompt)
		r.Post("/recommendations", recommendHandler.Recommend)
	})

	return r
}
