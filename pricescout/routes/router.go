package routes

import (
	"net/http"

	"pricescout/pricescout/config"
	"pricescout/pricescout/controllers"
	"pricescout/pricescout/middlewares"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter mounts every API route.
func NewRouter(cfg config.Config, search *controllers.SearchController, health *controllers.HealthController) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middlewares.RequestLogger)
	r.Use(middleware.Recoverer)

	r.Mount("/health", HealthRoutes(health))
	r.Mount("/search", SearchRoutes(search, cfg))
	r.Mount("/searches", HistoryRoutes(search, cfg))
	return r
}
