package server

import (
	"github.com/go-chi/chi/v5"
)

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	r := s.router

	r.Get("/health", s.health)

	r.Route("/v1", func(r chi.Router) {
		// Calls
		r.Post("/call", s.call)
		r.Post("/call/structured", s.callStructured)

		// Threads
		r.Get("/threads/{threadID}/history", s.threadHistory)

		// Catalog
		r.Get("/models", s.listModels)

		// Event streaming (SSE)
		r.Get("/events", s.events)
	})
}
