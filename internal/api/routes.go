package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter assembles the HTTP surface around h.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggingMiddleware)
	r.Use(RecoveryMiddleware)

	// Public, no auth
	r.Get("/health", h.Health)

	r.Route("/api/v1", func(r chi.Router) {
		// Dev mode serves the API unauthenticated for local development.
		if !h.devMode {
			r.Use(AuthMiddleware(h.apiKey))
		}

		r.Get("/stores", h.ListStores)

		r.Route("/stores/{scope}", func(r chi.Router) {
			r.Use(h.ScopeCtx)
			r.Get("/state", h.State)
			r.Post("/goals", h.CreateGoal)
			r.Post("/reconcile", h.Reconcile)
			r.Post("/progress", h.Progress)
			r.Post("/achievements", h.Achievements)
			r.Delete("/celebration", h.ClearCelebration)
			r.Get("/events", h.Events)
		})
	})

	return r
}
