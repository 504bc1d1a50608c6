// Package server wires the HTTP router for the chatbot backend.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/parentpass/chatbot-api/pkg/api"
	"github.com/parentpass/chatbot-api/pkg/health"
	"github.com/parentpass/chatbot-api/pkg/session"
)

// Version is set at build time.
var Version = "dev"

// New builds the router: standard middleware, unauthenticated probes, and
// the session and query endpoints under /api behind static API key auth.
func New(store session.Store, processor api.Processor, apiKey string, checker *health.Checker) http.Handler {
	h := api.NewHandler(store, processor, Version)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", checker.LivenessHandler())
	r.Get("/readyz", checker.ReadinessHandler())

	r.Route("/api", func(r chi.Router) {
		r.Use(api.APIKeyAuth(apiKey))

		r.Get("/health", h.Health)
		r.Post("/sessions", h.CreateSession)
		r.Get("/sessions/{id}", h.GetSession)
		r.Delete("/sessions/{id}", h.DeleteSession)
		r.Post("/query", h.Query)
	})

	return r
}
