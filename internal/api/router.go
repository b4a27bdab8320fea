package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-tuyable/internal/products"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeNotFound(w, "no such endpoint")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.Route("/api/v1", func(r chi.Router) {
		// Unauthenticated
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)
		r.Get("/products", s.handleListProducts)

		// WebSocket (auth via ticket, validated in handler)
		r.Get("/ws", s.handleWebSocket)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Post("/auth/ws-ticket", s.handleWSTicket)

			r.Route("/devices", func(r chi.Router) {
				r.Get("/", s.handleListDevices)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetDevice)
					r.Get("/entities", s.handleListEntities)
					r.Post("/entities/{key}/command", s.handleEntityCommand)
					r.Get("/history", s.handleGetDeviceHistory)
				})
			})

			r.Get("/discoveries", s.handleListDiscoveries)
		})
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	managed, connected := s.deviceCounts()
	status := "ok"
	if s.mqtt != nil && !s.mqtt.IsConnected() {
		status = "degraded"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":            status,
		"version":           s.version,
		"devices_managed":   managed,
		"devices_connected": connected,
	})
}

// handleListProducts returns the built-in product database.
func (s *Server) handleListProducts(w http.ResponseWriter, _ *http.Request) {
	entries := products.All()
	writeJSON(w, http.StatusOK, map[string]any{
		"products": entries,
		"count":    len(entries),
	})
}

func (s *Server) deviceCounts() (managed, connected int) {
	for _, d := range s.bridge.Devices() {
		managed++
		if d.Connected {
			connected++
		}
	}
	return managed, connected
}
