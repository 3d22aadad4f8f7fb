package httpapi

import (
	stdhttp "net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"mediaforge/internal/http/handlers"
	"mediaforge/internal/infra"
	"mediaforge/internal/middleware"
)

// NewRouter assembles the public API surface.
func NewRouter(app *handlers.App, cfg *infra.Config) stdhttp.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID, chimiddleware.RealIP, chimiddleware.Recoverer)
	r.Use(middleware.Logger(app.Logger))
	r.Use(middleware.RateLimit(cfg.RateLimitPerMin, time.Minute))

	r.Get("/v1/healthz", app.Health)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret))

		r.Route("/v1/jobs", func(r chi.Router) {
			r.Post("/", app.CreateJob)
			r.Get("/", app.ListJobs)
			r.Get("/{job_id}", app.GetJob)
		})

		r.Route("/v1/timelines", func(r chi.Router) {
			r.Post("/", app.CreateTimeline)
			r.Get("/{timeline_id}", app.GetTimeline)
		})

		r.Route("/v1/accounts/me", func(r chi.Router) {
			r.Get("/", app.Account)
			r.Get("/events", app.AccountEvents)
		})
	})

	return r
}
