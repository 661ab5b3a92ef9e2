/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for the back-office frontend

ROUTE GROUPS:
  /api/orders/*      Orders, items, deliveries, batches
  /api/stock/*       Opening stock, adjustments, history, warehouse items
  /api/closings/*    Monthly closing snapshot, recount, lock toggle
  /api/transfers/*   Warehouse transfers
  /api/customers/*   Customers, balance history, deposits, adjustments
  /api/deposits/*    Deposit edit / delete by ID
  /api/adjustments/* Adjustment edit / delete by ID
  /api/returns/*     Customer returns
  /api/holidays/*    Delivery calendar
  /api/audit         Projection audit report (GET last, POST run now)
  /api/scenarios/*   Demo data (dev only)

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
	"github.com/warp/distribution-ledger/ledger"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeOK(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/orders", func(r chi.Router) {
			r.Get("/", h.ListOrders)
			r.Post("/", h.CreateOrder)
			r.Post("/batch/{action}", h.BatchDelivery)
			r.Route("/{no}", func(r chi.Router) {
				r.Get("/", h.GetOrder)
				r.Put("/", h.UpdateOrder)
				r.Delete("/", h.DeleteOrder)
				r.Put("/items", h.ReplaceItems)
				r.Post("/delivery/start", h.StartDelivery)
				r.Post("/delivery/cancel", h.CancelDelivery)
				r.Post("/delivery/complete", h.CompleteDelivery)
			})
		})

		r.Route("/stock", func(r chi.Router) {
			r.Post("/open", h.OpenStock)
			r.Post("/adjust", h.AdjustStock)
			r.Get("/history", h.StockHistory)
			r.Get("/warehouses/{warehouse}/items", h.WarehouseItems)
			r.Get("/warehouses/{warehouse}/items/{item}/verify", h.VerifyStock)
		})

		r.Route("/closings", func(r chi.Router) {
			r.Get("/", h.ClosingSnapshot)
			r.Post("/toggle", h.ToggleClosing)
			r.Put("/{code}/actual", h.SetActual)
		})

		r.Route("/transfers", func(r chi.Router) {
			r.Get("/", h.ListTransfers)
			r.Post("/", h.CreateTransfer)
			r.Get("/{code}", h.GetTransfer)
		})

		r.Route("/customers", func(r chi.Router) {
			r.Get("/", h.ListCustomers)
			r.Post("/", h.CreateCustomer)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetCustomer)
				r.Get("/balance-entries", h.BalanceHistory)
				r.Put("/balance", h.OverwriteBalance)
				r.Get("/deposits", h.ListPostings(ledger.PostingDeposit))
				r.Post("/deposits", h.CreatePosting(ledger.PostingDeposit))
				r.Get("/adjustments", h.ListPostings(ledger.PostingAdjustment))
				r.Post("/adjustments", h.CreatePosting(ledger.PostingAdjustment))
			})
		})

		r.Route("/deposits/{id}", func(r chi.Router) {
			r.Put("/", h.UpdatePosting(ledger.PostingDeposit))
			r.Delete("/", h.DeletePosting(ledger.PostingDeposit))
		})
		r.Route("/adjustments/{id}", func(r chi.Router) {
			r.Put("/", h.UpdatePosting(ledger.PostingAdjustment))
			r.Delete("/", h.DeletePosting(ledger.PostingAdjustment))
		})

		r.Route("/returns", func(r chi.Router) {
			r.Get("/", h.ListReturns)
			r.Post("/", h.RegisterReturn)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetReturn)
				r.Put("/", h.UpdateReturn)
				r.Delete("/", h.DeleteReturn)
				r.Post("/approve", h.ApproveReturn)
			})
		})

		r.Route("/holidays", func(r chi.Router) {
			r.Get("/", h.ListHolidays)
			r.Post("/", h.CreateHoliday)
			r.Delete("/{id}", h.DeleteHoliday)
		})

		r.Get("/audit", h.Audit.LastReport)
		r.Post("/audit", h.Audit.RunReport)

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetDatabase)
		})
	})

	return r
}
