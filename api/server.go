/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the dashboard

ROUTE GROUPS:
  /api/stations/*       Station registry, store, pumps, price windows
  /api/prices/*         Price window edits by window id
  /api/clients/*        Client registry, money ledger, balance
  /api/sales/*          Sales, station stock, reports
  /api/transfers/*      Barracks stock transfer workflow
  /api/barracks/*       Depots and depot stock
  /api/leaves/*         Staff leave requests
  /api/attendance/*     QR check-in attendance
  /api/conversions/*    Vehicle conversion jobs
  /api/branches/*       Branch (vehicle) registry
  /api/scenarios/*      Demo data

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

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

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Station routes
		r.Route("/stations", func(r chi.Router) {
			r.Get("/", h.ListStations)
			r.Post("/", h.CreateStation)
			r.Get("/fuel-products", h.ListFuelProducts)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetStation)
				r.Put("/", h.UpdateStation)
				r.Delete("/", h.DeleteStation)
				r.Get("/store", h.GetStationStore)
				r.Post("/store", h.UpdateStationStore)
				r.Get("/pumps", h.ListPumps)
				r.Post("/pumps", h.AddPump)
				r.Get("/prices", h.ListPriceWindows)
				r.Post("/prices", h.CreatePriceWindow)
				r.Get("/price", h.GetCurrentPrice)
			})
		})

		// Price window edits address the window directly
		r.Route("/prices", func(r chi.Router) {
			r.Put("/{id}", h.UpdatePriceWindow)
			r.Delete("/{id}", h.DeletePriceWindow)
		})

		// Client routes
		r.Route("/clients", func(r chi.Router) {
			r.Get("/", h.ListClients)
			r.Post("/", h.CreateClient)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetClient)
				r.Put("/", h.UpdateClient)
				r.Delete("/", h.DeleteClient)
				r.Get("/ledger", h.GetClientLedger)
				r.Post("/ledger", h.AddClientLedgerEntry)
				r.Get("/balance", h.GetClientBalance)
			})
		})

		// Sales routes
		r.Route("/sales", func(r chi.Router) {
			r.Get("/", h.ListAllSales)
			r.Post("/", h.PostSale)
			r.Get("/summaries", h.ListSalesSummaries)
			r.Get("/monthly", h.GetMonthlySales)
			r.Get("/trend", h.GetDailySalesTrend)
			r.Get("/date/{date}", h.ListSalesByDate)
			r.Route("/station/{stationId}", func(r chi.Router) {
				r.Get("/", h.ListStationSales)
				r.Get("/stock", h.GetStationStock)
				r.Post("/stock", h.AddStationStock)
				r.Get("/ledger", h.GetStationStockLedger)
			})
			r.Get("/client/{clientId}", h.ListClientSales)
		})

		// Stock transfer routes
		r.Route("/transfers", func(r chi.Router) {
			r.Get("/", h.ListTransfers)
			r.Post("/", h.CreateTransfer)
			r.Get("/status/{status}", h.ListTransfersByStatus)
			r.Post("/{transferId}/approve", h.ApproveTransfer)
			r.Post("/{transferId}/reject", h.RejectTransfer)
		})

		// Barracks routes
		r.Route("/barracks", func(r chi.Router) {
			r.Get("/", h.ListBarracks)
			r.Get("/stock", h.ListAllBarrackStock)
			r.Get("/{barracksId}/ledger", h.GetBarrackLedger)
		})
		r.Get("/items", h.ListItems)

		// Staff leave routes
		r.Route("/leaves", func(r chi.Router) {
			r.Get("/", h.ListLeaves)
			r.Post("/", h.CreateLeave)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetLeave)
				r.Put("/", h.UpdateLeave)
				r.Delete("/", h.DeleteLeave)
				r.Post("/approve", h.ApproveLeave)
			})
		})

		// Attendance routes
		r.Route("/attendance", func(r chi.Router) {
			r.Get("/", h.ListAttendance)
			r.Get("/stats", h.GetAttendanceStats)
			r.Post("/checkin", h.CheckIn)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetAttendanceRecord)
				r.Put("/", h.UpdateAttendanceRecord)
				r.Delete("/", h.DeleteAttendanceRecord)
				r.Post("/checkout", h.CheckOut)
			})
		})

		// Vehicle conversion routes
		r.Route("/conversions", func(r chi.Router) {
			r.Get("/", h.ListConversions)
			r.Post("/", h.CreateConversion)
			r.Get("/stats", h.GetConversionStats)
			r.Get("/vehicle/{plate}", h.ListConversionsByVehicle)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetConversion)
				r.Put("/", h.UpdateConversion)
				r.Delete("/", h.DeleteConversion)
			})
		})

		// Branch routes
		r.Route("/branches", func(r chi.Router) {
			r.Get("/", h.ListBranches)
			r.Post("/", h.CreateBranch)
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Post("/load", h.LoadScenario)
		})
	})

	// Plain API index; no bundled frontend
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<!DOCTYPE html>
<html>
<head><title>Fuel Distribution Back Office</title></head>
<body style="font-family: system-ui; max-width: 800px; margin: 50px auto; padding: 20px;">
<h1>Fuel Distribution Back Office API</h1>
<h2>API Endpoints</h2>
<ul>
<li><a href="/api/stations">/api/stations</a> - List stations</li>
<li><a href="/api/clients">/api/clients</a> - List clients</li>
<li><a href="/api/sales">/api/sales</a> - List sales</li>
<li><a href="/api/transfers">/api/transfers</a> - List stock transfers</li>
</ul>
</body>
</html>`))
	})

	return r
}
