/*
server.go - HTTP router and middleware configuration

Wires URLs to handlers. The whole /api surface is user-scoped, so the
bearer-auth middleware sits on the route group rather than per-route.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for the web client
  5. RequireAuth (on /api): bearer-token verification

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(h.RequireAuth)

		r.Route("/session", func(r chi.Router) {
			r.Post("/", h.SignIn)
			r.Delete("/", h.SignOut)
		})

		r.Get("/me", h.GetMe)
		r.Get("/plans", h.ListPlans)
		r.Get("/portfolio", h.GetPortfolio)
		r.Get("/transactions", h.ListTransactions)

		r.Route("/investments", func(r chi.Router) {
			r.Get("/", h.ListInvestments)
			r.Post("/", h.Invest)
			r.Post("/{id}/sweep", h.SweepProfit)
		})

		r.Post("/deposits", h.Deposit)
		r.Post("/withdrawals", h.Withdraw)

		r.Route("/admin", func(r chi.Router) {
			r.Get("/users", h.ListUsers)
		})
	})

	return r
}
