// Package http exposes the ingestion and recommendation pipeline over HTTP.
package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"specadvisor/internal/config"
	"specadvisor/internal/services"
)

// NewRouter builds the API router.
func NewRouter(advisor *services.Advisor, cfg config.Server, logger *slog.Logger) chi.Router {
	h := NewHandler(advisor, cfg, logger)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(RequestLogger(logger))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/upload/student-data", h.Upload)
		r.Get("/promotions", h.ListPromotions)
		r.Get("/students/{promotion}/recommendations", h.Recommendations)
		r.Get("/students/{promotion}/recommendations/export", h.Export)
		r.Get("/dashboard/stats", h.Dashboard)
	})

	return r
}
