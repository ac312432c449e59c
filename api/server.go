/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:      Unique ID per request for tracing
  2. RequestLogger:  zap access log + request counters
  3. Recoverer:      Panic recovery (500 instead of crash)
  4. Timeout:        Per-request deadline (HTTP_REQUEST_TIMEOUT_SECONDS)
  5. CORS:           Cross-origin requests for the dashboard front-end
  6. Identity:       Bearer token check on everything under /api except health

ROUTE GROUPS:
  /api/health           Liveness (public)
  /api/teams, employees Roster
  /api/periods/*        Bi-week navigation and team cards
  /api/revenue/*        Revenue submission and preview
  /api/cards/*          Payout lines
  /api/leaderboard      Ranking
  /api/metrics/*        Revenue metrics and request counters
  /api/export           CSV download
  /api/expenses/*       Company expenses
  /api/rules            Active rule table
  /api/scenarios/*      Demo scenarios (dev only)

SEE ALSO:
  - handlers.go: Handler implementations
  - identity/middleware.go: RequirePrincipal
  - cmd/server/main.go: Server startup
*/
package api

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/warp/commission-engine/identity"
	"github.com/warp/commission-engine/observability"
)

// RouterConfig holds the HTTP concerns that are not handler dependencies.
type RouterConfig struct {
	Verifier       identity.Verifier
	AllowedOrigins []string
	RequestTimeout time.Duration
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, cfg RouterConfig) *chi.Mux {
	if cfg.Verifier == nil {
		cfg.Verifier = identity.Anonymous()
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"http://localhost:5173", "http://localhost:3000"}
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(observability.RequestLogger(h.logger, h.Metrics))
	r.Use(middleware.Recoverer)
	if cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)

		r.Group(func(r chi.Router) {
			r.Use(identity.RequirePrincipal(cfg.Verifier, h.logger))

			r.Get("/teams", h.ListTeams)

			// Employee routes
			r.Route("/employees", func(r chi.Router) {
				r.Get("/", h.ListEmployees)
				r.Post("/", h.CreateEmployee)
			})

			// Period routes
			r.Route("/periods", func(r chi.Router) {
				r.Get("/current", h.CurrentPeriod)
				r.Get("/rollovers", h.ListRollovers)
				r.Get("/{key}", h.GetPeriod)
				r.Get("/{key}/team/{team}", h.TeamCards)
			})

			// Revenue routes
			r.Route("/revenue", func(r chi.Router) {
				r.Post("/", h.SubmitRevenue)
				r.Post("/preview", h.PreviewRevenue)
			})

			// Card routes
			r.Route("/cards", func(r chi.Router) {
				r.Get("/", h.ListCards)
				r.Get("/{id}", h.GetCard)
			})

			r.Get("/leaderboard", h.Leaderboard)
			r.Get("/metrics/revenue", h.RevenueMetrics)
			r.Get("/metrics/requests", h.RequestMetrics)
			r.Get("/export", h.Export)

			// Expense routes
			r.Route("/expenses", func(r chi.Router) {
				r.Get("/", h.ListExpenses)
				r.Post("/", h.CreateExpense)
				r.Get("/summary", h.ExpenseSummary)
				r.Get("/categories", h.ExpenseCategories)
				r.Get("/export", h.ExportExpenses)
				r.Delete("/{id}", h.DeleteExpense)
			})

			r.Get("/rules", h.GetRules)

			// Scenario routes
			r.Route("/scenarios", func(r chi.Router) {
				r.Get("/", h.ListScenarios)
				r.Get("/current", h.GetCurrentScenario)
				r.Post("/load", h.LoadScenario)
				r.Post("/reset", h.ResetDatabase)
			})
		})
	})

	return r
}
