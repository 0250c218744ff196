/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:        Request logging
  2. Recoverer:     Panic recovery (500 instead of crash)
  3. RequestID:     Unique ID per request for tracing
  4. CORS:          Cross-origin requests for the frontend
  5. Authenticate:  Bearer JWT -> studio.Actor in the request context
  6. RateLimiter:   Redis fixed window per client (off without Redis)

ROUTE GROUPS:
  /api/member/*     Signed-in members (RequireUser)
  /api/trial/*      Public trial booking form
  /api/admin/*      Administrators (RequireAdmin)
  /api/scenarios/*  Demo scenarios (RequireAdmin, only with ENABLE_SCENARIOS)
  /healthz          Liveness

SEE ALSO:
  - handlers.go, admin.go: Handler implementations
  - auth.go: Token verification
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterOptions configures the cross-cutting middleware.
type RouterOptions struct {
	Auth            *Authenticator
	RateLimiter     *RateLimiter
	CORSOrigins     []string
	EnableScenarios bool
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173", "http://localhost:8080"}
	}
	auth := opts.Auth
	if auth == nil {
		auth = NewAuthenticator("")
	}

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", h.Health)

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Use(auth.Authenticate)
		r.Use(opts.RateLimiter.Middleware)

		// Member routes
		r.Route("/member", func(r chi.Router) {
			r.Use(RequireUser)
			r.Get("/availability", h.GetAvailability)
			r.Get("/slots", h.ListMemberSlots)
			r.Get("/reservations", h.ListMemberReservations)
			r.Post("/reservations", h.CreateReservation)
			r.Delete("/reservations/{id}", h.CancelReservation)
		})

		// Public trial booking
		r.Get("/trial/slots", h.ListTrialSlots)
		r.Post("/trial/bookings", h.CreateTrialBooking)

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Use(RequireAdmin)

			r.Get("/slots", h.ListSlots)
			r.Post("/slots", h.CreateSlot)
			r.Delete("/slots/{id}", h.DeleteSlot)

			r.Get("/reservations", h.ListReservations)
			r.Delete("/reservations/{id}", h.CancelReservation)

			r.Get("/tickets", h.ListTickets)
			r.Post("/tickets", h.CreateTicketOperation)

			r.Get("/plans", h.ListPlans)
			r.Post("/plans", h.CreatePlan)
			r.Put("/plans/{id}", h.UpdatePlan)

			r.Post("/member-plans", h.AssignPlan)
			r.Delete("/member-plans/{id}", h.CancelMemberPlan)

			r.Get("/members", h.ListMembers)
			r.Post("/members", h.CreateMember)
			r.Get("/members/{id}", h.GetMember)
			r.Put("/members/{id}", h.UpdateMember)
			r.Get("/members/{id}/balance", h.GetMemberBalance)

			r.Get("/calendar/sync", h.GetCalendarSync)
			r.Post("/calendar/sync", h.ResyncCalendar)
		})

		// Scenario routes
		if opts.EnableScenarios {
			r.Route("/scenarios", func(r chi.Router) {
				r.Use(RequireAdmin)
				r.Get("/", h.ListScenarios)
				r.Get("/current", h.GetCurrentScenario)
				r.Post("/load", h.LoadScenario)
				r.Post("/reset", h.ResetDatabase)
			})
		}
	})

	return r
}
