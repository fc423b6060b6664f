/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request, echoed in logs
  2. Trace:      OpenTelemetry server span per request
  3. Logger:     Structured request logging (zap)
  4. Recoverer:  Panic recovery (500 instead of crash)
  5. CORS:       Cross-origin requests for dashboards

ROUTE GROUPS:
  /api/plans/*          Plan management
  /api/assignments/*    Agent-to-plan assignments
  /api/calculate        Stateless split calculation
  /api/tenants/*        Recalculation and stored results
  /api/runs/*           Recalculation runs
  /api/scenarios/*      Demo scenarios

SECURITY NOTE:
  No authentication middleware. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - observability/middleware.go: Trace, logging and recovery middleware
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/warp/commission-engine/observability"
)

// NewRouter creates a router with all routes configured. origins lists the
// allowed CORS origins.
func NewRouter(h *Handler, logger *zap.Logger, origins []string) *chi.Mux {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(observability.TraceMiddleware)
	r.Use(observability.RequestLogger(logger))
	r.Use(observability.Recoverer(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)

		r.Route("/plans", func(r chi.Router) {
			r.Get("/", h.ListPlans)
			r.Post("/", h.CreatePlan)
			r.Get("/{id}", h.GetPlan)
		})

		r.Route("/assignments", func(r chi.Router) {
			r.Get("/", h.ListAssignments)
			r.Post("/", h.CreateAssignment)
		})

		r.Post("/calculate", h.Calculate)

		r.Route("/tenants/{tenantID}", func(r chi.Router) {
			r.Post("/recalculate", h.Recalculate)
			r.Route("/agents/{agent}", func(r chi.Router) {
				r.Get("/results", h.AgentResults)
				r.Get("/transitions", h.AgentTransitions)
				r.Get("/ytd", h.AgentYTD)
			})
		})

		r.Get("/runs/{id}", h.GetRun)

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/reset", h.ResetDatabase)
			r.Post("/{id}/load", h.LoadScenario)
		})
	})

	return r
}
