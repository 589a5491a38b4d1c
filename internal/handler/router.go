package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	custommiddleware "github.com/akaretnikov/posconnect-system/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса POS-коннектора.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.RequestID)
	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/pos", func(r chi.Router) {
		r.Get("/health", h.Health)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Post("/validate", h.ValidateOrder)
			r.Get("/status", h.Status)

			r.Get("/connectors", h.ListConnectors)
			r.Post("/connectors", h.CreateConnector)
			r.Patch("/connectors/{id}", h.UpdateConnector)
			r.Post("/connectors/{id}/test", h.TestConnection)

			r.Get("/validations/{orderID}", h.ValidationHistory)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
