package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// SetupRoutes configures the campaign lifecycle surface plus the Event
// Ingestor webhook, grounded on the teacher's internal/api.SetupRoutes
// middleware stack (logger/recoverer/real-ip/request-id, CORS) trimmed to
// this module's much smaller route set.
func SetupRoutes(h *Handlers, webhook http.Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", h.HealthCheck)
	r.Post("/webhooks/ses", webhook.ServeHTTP)

	r.Route("/campaigns", func(r chi.Router) {
		r.Post("/", h.CreateCampaign)
		r.Route("/{campaignId}", func(r chi.Router) {
			r.Get("/", h.GetCampaign)
			r.Delete("/", h.DeleteCampaign)
			r.Post("/start", h.StartCampaign)
			r.Post("/pause", h.PauseCampaign)
			r.Post("/resume", h.ResumeCampaign)
			r.Get("/stats", h.GetStats)
			r.Get("/plan/today", h.GetTodaysPlan)
			r.Get("/plan/{day}", h.GetCampaignPlan)
			r.Post("/plan/regenerate", h.RegeneratePlan)
		})
	})

	return r
}
