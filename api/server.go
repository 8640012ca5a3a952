/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the fee desk frontend
  5. Auth:       Bearer token check on /api routes (when configured)

ROUTE GROUPS:
  /api/auth/*           Login (always public)
  /api/payments/*       Record and look up payments
  /api/students/*       Student ledgers
  /api/dashboard        Collection report
  /api/admin/*          Status sweep, consistency check
  /api/scenarios/*      Demo scenarios
  /                     Endpoint index

SEE ALSO:
  - handlers.go: Handler implementations
  - auth.go: Password gate
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// DefaultAllowedOrigins are the local frontend dev servers.
var DefaultAllowedOrigins = []string{"http://localhost:5173", "http://localhost:8080"}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	if len(allowedOrigins) == 0 {
		allowedOrigins = DefaultAllowedOrigins
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", h.Login)

		r.Group(func(r chi.Router) {
			if h.Auth != nil {
				r.Use(h.Auth.Middleware)
			}

			// Payment routes
			r.Route("/payments", func(r chi.Router) {
				r.Get("/", h.ListPayments)
				r.Post("/", h.RecordPayment)
				r.Get("/{receiptNo}", h.GetPayment)
				r.Get("/{receiptNo}/pdf", h.GetReceiptPDF)
				r.Get("/{receiptNo}/whatsapp", h.GetWhatsAppLink)
			})

			// Student routes
			r.Route("/students", func(r chi.Router) {
				r.Get("/", h.ListStudents)
				r.Get("/lookup", h.LookupStudent)
				r.Get("/{id}/payments", h.GetStudentPayments)
			})

			r.Get("/dashboard", h.GetDashboard)

			// Admin routes
			r.Route("/admin", func(r chi.Router) {
				r.Post("/status-sweep", h.TriggerStatusSweep)
				r.Get("/verify", h.VerifyLedger)
			})

			// Scenario routes
			r.Route("/scenarios", func(r chi.Router) {
				r.Get("/", h.ListScenarios)
				r.Get("/current", h.GetCurrentScenario)
				r.Post("/load", h.LoadScenario)
			})
		})
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<!DOCTYPE html>
<html>
<head><title>Fee Ledger</title></head>
<body style="font-family: system-ui; max-width: 800px; margin: 50px auto; padding: 20px;">
<h1>Fee Ledger API</h1>
<h2>API Endpoints</h2>
<ul>
<li><a href="/api/payments">/api/payments</a> - List payments</li>
<li><a href="/api/students">/api/students</a> - List students</li>
<li><a href="/api/dashboard">/api/dashboard</a> - Collection dashboard</li>
<li><a href="/api/scenarios">/api/scenarios</a> - List scenarios</li>
</ul>
</body>
</html>`))
	})

	return r
}
