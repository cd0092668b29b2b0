package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all portfolio routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/portfolio", func(r chi.Router) {
		r.Post("/optimize", h.HandleOptimize) // Run the quantum/classical comparison
		r.Get("/validate", h.HandleValidate)  // Pre-validate a ticker list
	})
}
