/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. Timeout:    Request deadline, observed by the calculator via ctx
  5. CORS:       Cross-origin requests for the simulator frontend

ROUTE GROUPS:
  /api/health            Liveness
  /api/statistics/*      Index tables (read-only)
  /api/calculations/*    Calculate, store, list, export
  /api/scenarios/*       Preset careers
  /api/admin/*           Admin operations (non-production only)
  /                      Endpoint index

SECURITY NOTE:
  No authentication middleware. Stored calculations hold personal data;
  deploy behind an authenticating proxy and set CALCULATION_RETENTION.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RequestTimeout bounds every request, including calculations.
const RequestTimeout = 30 * time.Second

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(RequestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)

		// Statistics routes
		r.Route("/statistics", func(r chi.Router) {
			r.Get("/", h.GetStatistics)
			r.Get("/life-expectancy", h.GetLifeExpectancy)
			r.Get("/{series}", h.GetSeries)
		})

		// Calculation routes
		r.Route("/calculations", func(r chi.Router) {
			r.Get("/", h.ListCalculations)
			r.Post("/", h.CreateCalculation)
			r.Post("/preview", h.PreviewCalculation)
			r.Get("/export", h.ExportCalculations)
			r.Get("/{id}", h.GetCalculation)
			r.Get("/{id}/export", h.ExportCalculation)
			r.Delete("/{id}", h.DeleteCalculation)
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Post("/{id}/run", h.RunScenario)
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Post("/reset", h.ResetDatabase)
		})
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<!DOCTYPE html>
<html>
<head><title>Pension Engine</title></head>
<body style="font-family: system-ui; max-width: 800px; margin: 50px auto; padding: 20px;">
<h1>Pension Engine API</h1>
<h2>API Endpoints</h2>
<ul>
<li><a href="/api/health">/api/health</a> - Service health</li>
<li><a href="/api/statistics">/api/statistics</a> - Index tables</li>
<li><a href="/api/calculations">/api/calculations</a> - Stored calculations</li>
<li><a href="/api/scenarios">/api/scenarios</a> - Preset careers</li>
</ul>
</body>
</html>`))
	})

	return r
}
