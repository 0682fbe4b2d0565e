/*
handlers.go - HTTP API handlers for the fuel distribution back office

PURPOSE:
  Exposes the ledger engine and its collaborators via REST API. Handles
  HTTP request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS (core):
  Stations:
    GET/POST       /api/stations              List / create stations
    GET/PUT/DELETE /api/stations/{id}         Single station
    GET            /api/stations/fuel-products
    GET/POST       /api/stations/{id}/store   Per-product quantities
    GET/POST       /api/stations/{id}/pumps
    GET/POST       /api/stations/{id}/prices  Price windows
    GET            /api/stations/{id}/price   Materialized current price

  Sales:
    POST /api/sales                           Post a sale (two ledger legs)
    GET  /api/sales                           All sales
    GET  /api/sales/station/{stationId}       Station sales / stock / ledger
    POST /api/sales/station/{stationId}/stock Replenish stock
    GET  /api/sales/client/{clientId}         Client sales (paginated)

  Transfers:
    GET/POST /api/transfers                   List / request transfers
    POST     /api/transfers/{id}/approve      Move stock (terminal)
    POST     /api/transfers/{id}/reject       Terminal, no stock moves

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input at the boundary (floats to 2dp decimals, date strings)
  3. Call domain logic (engine, services, store)
  4. Serialize response
  5. Map errors

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, failed preconditions
  - 404: Resource not found
  - 409: Conflict (lost race, non-pending transfer)
  - 500: Store errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public;
  a stub user is assumed.

SEE ALSO:
  - dto.go: Request/response data structures
  - handlers_resources.go: Leave, attendance, conversion, branch handlers
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/fuelops/backoffice/ledger"
	"github.com/fuelops/backoffice/pricing"
	"github.com/fuelops/backoffice/sales"
	"github.com/fuelops/backoffice/store/sqlite"
	"github.com/fuelops/backoffice/transfer"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store     *sqlite.Store
	Engine    *ledger.Engine
	Pricing   *pricing.Service
	Sales     *sales.Service
	Transfers *transfer.Service
	Clock     *ledger.Clock
}

// NewHandler wires the engine and services around the given store.
func NewHandler(store *sqlite.Store, clock *ledger.Clock) *Handler {
	engine := ledger.NewEngine(store, clock)
	return &Handler{
		Store:     store,
		Engine:    engine,
		Pricing:   pricing.NewService(store, clock),
		Sales:     sales.NewService(engine, store),
		Transfers: transfer.NewService(engine, store),
		Clock:     clock,
	}
}

// =============================================================================
// STATION HANDLERS
// =============================================================================

// ListStations returns all stations.
func (h *Handler) ListStations(w http.ResponseWriter, r *http.Request) {
	stations, err := h.Store.Stations(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list stations", err)
		return
	}
	dtos := make([]StationDTO, len(stations))
	for i, st := range stations {
		dtos[i] = toStationDTO(st)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetStation returns a single station.
func (h *Handler) GetStation(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	st, err := h.Store.Station(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get station", err)
		return
	}
	if st == nil {
		writeError(w, http.StatusNotFound, "Station not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toStationDTO(*st))
}

// CreateStation creates a station.
func (h *Handler) CreateStation(w http.ResponseWriter, r *http.Request) {
	var req StationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required", nil)
		return
	}
	st, err := h.Store.CreateStation(r.Context(), sqlite.Station{
		Name: req.Name, Address: req.Address, Phone: req.Phone, Email: req.Email,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create station", err)
		return
	}
	writeJSON(w, http.StatusCreated, toStationDTO(*st))
}

// UpdateStation updates a station's contact fields.
func (h *Handler) UpdateStation(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var req StationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	st, err := h.Store.UpdateStation(r.Context(), sqlite.Station{
		ID: id, Name: req.Name, Address: req.Address, Phone: req.Phone, Email: req.Email,
	})
	if err != nil {
		writeDomainError(w, err, "Failed to update station")
		return
	}
	writeJSON(w, http.StatusOK, toStationDTO(*st))
}

// DeleteStation removes a station.
func (h *Handler) DeleteStation(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.Store.DeleteStation(r.Context(), id); err != nil {
		writeDomainError(w, err, "Failed to delete station")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Station deleted"})
}

// ListFuelProducts returns the fuel product lookup table.
func (h *Handler) ListFuelProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.Store.FuelProducts(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list fuel products", err)
		return
	}
	dtos := make([]FuelProductDTO, len(products))
	for i, p := range products {
		dtos[i] = FuelProductDTO{ID: p.ID, Name: p.Name}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetStationStore returns per-product quantities for a station.
func (h *Handler) GetStationStore(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	items, err := h.Store.StationStore(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get station store", err)
		return
	}
	dtos := make([]StoreItemDTO, len(items))
	for i, it := range items {
		dtos[i] = toStoreItemDTO(it)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// UpdateStationStore bulk-upserts per-product quantities in one transaction.
func (h *Handler) UpdateStationStore(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var req UpdateStoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Items == nil {
		writeError(w, http.StatusBadRequest, "items array is required", nil)
		return
	}
	items := make([]sqlite.StoreItem, len(req.Items))
	for i, it := range req.Items {
		if it.ProductID == 0 || it.Qty < 0 {
			writeError(w, http.StatusBadRequest, "each item needs a productId and a non-negative qty", nil)
			return
		}
		items[i] = sqlite.StoreItem{StationID: id, ProductID: it.ProductID, Qty: ledger.Dec(it.Qty)}
	}
	if err := h.Store.UpsertStationStore(r.Context(), id, items); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update station store", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Station store updated"})
}

// ListPumps returns a station's pumps.
func (h *Handler) ListPumps(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	pumps, err := h.Store.Pumps(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list pumps", err)
		return
	}
	dtos := make([]PumpDTO, len(pumps))
	for i, p := range pumps {
		dtos[i] = PumpDTO{
			ID: p.ID, StationID: p.StationID,
			SerialNumber: p.SerialNumber, Description: p.Description,
			CreatedAt: ledger.FormatDateTime(p.CreatedAt),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// AddPump registers a pump at a station.
func (h *Handler) AddPump(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var req PumpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.SerialNumber == "" {
		writeError(w, http.StatusBadRequest, "serialNumber is required", nil)
		return
	}
	exists, err := h.Store.StationExists(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to check station", err)
		return
	}
	if !exists {
		writeError(w, http.StatusNotFound, "Station not found", nil)
		return
	}
	p, err := h.Store.AddPump(r.Context(), sqlite.Pump{
		StationID: id, SerialNumber: req.SerialNumber, Description: req.Description,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to add pump", err)
		return
	}
	writeJSON(w, http.StatusCreated, PumpDTO{
		ID: p.ID, StationID: p.StationID,
		SerialNumber: p.SerialNumber, Description: p.Description,
		CreatedAt: ledger.FormatDateTime(p.CreatedAt),
	})
}

// =============================================================================
// PRICE WINDOW HANDLERS
// =============================================================================

// ListPriceWindows returns a station's price windows, newest start first.
func (h *Handler) ListPriceWindows(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	windows, err := h.Pricing.List(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "Failed to list price windows")
		return
	}
	dtos := make([]PriceWindowDTO, len(windows))
	for i, win := range windows {
		dtos[i] = toWindowDTO(win)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreatePriceWindow adds a window and recomputes the current price.
func (h *Handler) CreatePriceWindow(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var req PriceWindowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	win, err := windowFromRequest(id, req)
	if err != nil {
		writeDomainError(w, err, "Invalid price window")
		return
	}
	created, err := h.Pricing.Create(r.Context(), win)
	if err != nil {
		writeDomainError(w, err, "Failed to create price window")
		return
	}
	writeJSON(w, http.StatusCreated, toWindowDTO(created))
}

// UpdatePriceWindow modifies a window and recomputes the current price.
func (h *Handler) UpdatePriceWindow(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var req PriceWindowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	win, err := windowFromRequest(req.StationID, req)
	if err != nil {
		writeDomainError(w, err, "Invalid price window")
		return
	}
	win.ID = id
	updated, err := h.Pricing.Update(r.Context(), win)
	if err != nil {
		writeDomainError(w, err, "Failed to update price window")
		return
	}
	writeJSON(w, http.StatusOK, toWindowDTO(updated))
}

// DeletePriceWindow removes a window and recomputes the current price.
func (h *Handler) DeletePriceWindow(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.Pricing.Delete(r.Context(), id); err != nil {
		writeDomainError(w, err, "Failed to delete price window")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Price window deleted"})
}

// GetCurrentPrice returns the materialized current price for a station.
func (h *Handler) GetCurrentPrice(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	st, err := h.Store.Station(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get station", err)
		return
	}
	if st == nil {
		writeError(w, http.StatusNotFound, "Station not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, CurrentPriceDTO{
		StationID:    st.ID,
		CurrentPrice: decPtr(st.CurrentFuelPrice),
	})
}

func windowFromRequest(stationID int64, req PriceWindowRequest) (pricing.Window, error) {
	start, err := ledger.ParseDate(req.StartDate)
	if err != nil {
		return pricing.Window{}, err
	}
	win := pricing.Window{
		StationID: stationID,
		Price:     ledger.Dec(req.Price),
		StartDate: start,
	}
	if req.EndDate != nil && *req.EndDate != "" {
		end, err := ledger.ParseDate(*req.EndDate)
		if err != nil {
			return pricing.Window{}, err
		}
		win.EndDate = &end
	}
	return win, nil
}

// =============================================================================
// CLIENT HANDLERS
// =============================================================================

// ListClients returns all clients, newest first.
func (h *Handler) ListClients(w http.ResponseWriter, r *http.Request) {
	clients, err := h.Store.Clients(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list clients", err)
		return
	}
	dtos := make([]ClientDTO, len(clients))
	for i, c := range clients {
		dtos[i] = toClientDTO(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetClient returns a single client.
func (h *Handler) GetClient(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	c, err := h.Store.Client(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get client", err)
		return
	}
	if c == nil {
		writeError(w, http.StatusNotFound, "Client not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toClientDTO(*c))
}

// CreateClient creates a client.
func (h *Handler) CreateClient(w http.ResponseWriter, r *http.Request) {
	var req ClientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required", nil)
		return
	}
	c, err := h.Store.CreateClient(r.Context(), sqlite.Client{
		Name: req.Name, Email: req.Email, Phone: req.Phone, Address: req.Address,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create client", err)
		return
	}
	writeJSON(w, http.StatusCreated, toClientDTO(*c))
}

// UpdateClient updates a client.
func (h *Handler) UpdateClient(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var req ClientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	c, err := h.Store.UpdateClient(r.Context(), sqlite.Client{
		ID: id, Name: req.Name, Email: req.Email, Phone: req.Phone, Address: req.Address,
	})
	if err != nil {
		writeDomainError(w, err, "Failed to update client")
		return
	}
	writeJSON(w, http.StatusOK, toClientDTO(*c))
}

// DeleteClient removes a client.
func (h *Handler) DeleteClient(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.Store.DeleteClient(r.Context(), id); err != nil {
		writeDomainError(w, err, "Failed to delete client")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Client deleted"})
}

// GetClientLedger returns a page of a client's money ledger plus the
// current balance.
func (h *Handler) GetClientLedger(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	h.writeLedgerPage(w, r, ledger.ClientAccount(id))
}

// AddClientLedgerEntry records a manual money movement through the engine:
// a payment (amountIn, balance down) or a charge (amountOut, balance up).
func (h *Handler) AddClientLedgerEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var req ClientLedgerEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.AmountIn < 0 || req.AmountOut < 0 {
		writeError(w, http.StatusBadRequest, "amounts cannot be negative", nil)
		return
	}
	if req.AmountIn == 0 && req.AmountOut == 0 {
		writeError(w, http.StatusBadRequest, "amountIn or amountOut is required", nil)
		return
	}

	exists, err := h.Store.ClientExists(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to check client", err)
		return
	}
	if !exists {
		writeError(w, http.StatusNotFound, "Client not found", nil)
		return
	}

	var date time.Time
	if req.Date != "" {
		date, err = ledger.ParseDate(req.Date)
		if err != nil {
			writeDomainError(w, err, "Invalid date")
			return
		}
	}

	entry, err := h.Engine.Apply(r.Context(), ledger.Movement{
		Owner:     ledger.ClientAccount(id),
		In:        ledger.Dec(req.AmountIn),
		Out:       ledger.Dec(req.AmountOut),
		Date:      date,
		Reference: req.Reference,
	})
	if err != nil {
		writeDomainError(w, err, "Failed to add ledger entry")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message":    "Ledger entry added successfully",
		"entryId":    entry.ID,
		"newBalance": f64(entry.Balance),
	})
}

// GetClientBalance returns the client's current balance (amount owed).
func (h *Handler) GetClientBalance(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	balance, err := h.Engine.CurrentBalance(r.Context(), ledger.ClientAccount(id))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get client balance", err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceDTO{Balance: f64(balance)})
}

// =============================================================================
// SALES HANDLERS
// =============================================================================

// PostSale records a sale: one sale row, a station stock debit and a
// client charge, all in one transaction.
func (h *Handler) PostSale(w http.ResponseWriter, r *http.Request) {
	var req SaleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	saleDate, err := ledger.ParseDate(req.SaleDate)
	if err != nil {
		writeDomainError(w, err, "Invalid saleDate")
		return
	}
	sale, err := h.Sales.Post(r.Context(), sales.Input{
		StationID:  req.StationID,
		VehicleID:  req.VehicleID,
		ClientID:   req.ClientID,
		Quantity:   ledger.Dec(req.Quantity),
		UnitPrice:  ledger.Dec(req.UnitPrice),
		TotalPrice: ledger.Dec(req.TotalPrice),
		SaleDate:   saleDate,
	})
	if err != nil {
		writeDomainError(w, err, "Failed to post sale")
		return
	}
	writeJSON(w, http.StatusCreated, toSaleDTO(*sale))
}

// ListAllSales returns every sale with joined names.
func (h *Handler) ListAllSales(w http.ResponseWriter, r *http.Request) {
	rows, err := h.Store.AllSales(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list sales", err)
		return
	}
	writeJSON(w, http.StatusOK, toSaleRowDTOs(rows))
}

// ListStationSales returns all sales for one station.
func (h *Handler) ListStationSales(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "stationId")
	if !ok {
		return
	}
	rows, err := h.Store.SalesByStation(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list station sales", err)
		return
	}
	writeJSON(w, http.StatusOK, toSaleRowDTOs(rows))
}

// GetStationStock returns per-product quantities plus the ledger stock
// balance for a station.
func (h *Handler) GetStationStock(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "stationId")
	if !ok {
		return
	}
	items, err := h.Store.StationStore(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get station stock", err)
		return
	}
	balance, err := h.Sales.StockBalance(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get stock balance", err)
		return
	}
	dtos := make([]StoreItemDTO, len(items))
	for i, it := range items {
		dtos[i] = toStoreItemDTO(it)
	}
	writeJSON(w, http.StatusOK, StationStockDTO{
		StationID:  id,
		TotalStock: f64(balance),
		Products:   dtos,
	})
}

// GetStationStockLedger returns a page of the station's stock ledger.
func (h *Handler) GetStationStockLedger(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "stationId")
	if !ok {
		return
	}
	h.writeLedgerPage(w, r, ledger.StationStock(id))
}

// AddStationStock replenishes a station's fuel stock.
func (h *Handler) AddStationStock(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "stationId")
	if !ok {
		return
	}
	var req AddStockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	var date time.Time
	if req.Date != "" {
		var err error
		date, err = ledger.ParseDate(req.Date)
		if err != nil {
			writeDomainError(w, err, "Invalid date")
			return
		}
	}
	entry, err := h.Sales.AddStock(r.Context(), id, ledger.Dec(req.Quantity), date, req.Description)
	if err != nil {
		writeDomainError(w, err, "Failed to add stock")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message":    "Stock added successfully",
		"entryId":    entry.ID,
		"newBalance": f64(entry.Balance),
	})
}

// ListClientSales returns a page of one client's sales.
func (h *Handler) ListClientSales(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "clientId")
	if !ok {
		return
	}
	page, limit := pageParams(r, 10)
	rows, total, err := h.Store.SalesByClient(r.Context(), id, limit, (page-1)*limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list client sales", err)
		return
	}
	writeJSON(w, http.StatusOK, SalesPageDTO{
		Sales:      toSaleRowDTOs(rows),
		Pagination: paginationDTO(page, limit, total),
	})
}

// ListSalesByDate returns sales on one calendar day, with optional
// station/client/vehicle filters.
func (h *Handler) ListSalesByDate(w http.ResponseWriter, r *http.Request) {
	day, err := ledger.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		writeDomainError(w, err, "Invalid date")
		return
	}
	f := sqlite.SaleFilter{
		StationID: queryID(r, "stationId"),
		ClientID:  queryID(r, "clientId"),
		VehicleID: queryID(r, "vehicleId"),
	}
	rows, err := h.Store.SalesByDate(r.Context(), day, f)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list sales by date", err)
		return
	}
	writeJSON(w, http.StatusOK, toSaleRowDTOs(rows))
}

// ListSalesSummaries returns per-day aggregates with optional filters.
func (h *Handler) ListSalesSummaries(w http.ResponseWriter, r *http.Request) {
	f := sqlite.SaleFilter{
		StationID: queryID(r, "stationId"),
		ClientID:  queryID(r, "clientId"),
		VehicleID: queryID(r, "vehicleId"),
		Year:      int(queryID(r, "year")),
		Month:     int(queryID(r, "month")),
	}
	summaries, err := h.Store.SalesSummaries(r.Context(), f)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get sales summaries", err)
		return
	}
	dtos := make([]SaleSummaryDTO, len(summaries))
	for i, s := range summaries {
		dtos[i] = SaleSummaryDTO{
			Date:          s.Date,
			TotalSales:    s.TotalSales,
			TotalRevenue:  f64(s.TotalRevenue),
			TotalQuantity: f64(s.TotalQuantity),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetMonthlySales returns the current business month's sale count and value.
func (h *Handler) GetMonthlySales(w http.ResponseWriter, r *http.Request) {
	now := h.Clock.Now()
	from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	to := from.AddDate(0, 1, 0).Add(-time.Second)

	count, value, err := h.Store.MonthlySales(r.Context(), from, to)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get monthly sales", err)
		return
	}
	writeJSON(w, http.StatusOK, MonthlySalesDTO{TotalSales: count, TotalValue: f64(value)})
}

// GetDailySalesTrend returns per-day totals for the current business month.
func (h *Handler) GetDailySalesTrend(w http.ResponseWriter, r *http.Request) {
	now := h.Clock.Now()
	from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	to := from.AddDate(0, 1, 0).Add(-time.Second)

	points, err := h.Store.DailySalesTrend(r.Context(), from, to)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get sales trend", err)
		return
	}
	dtos := make([]DailyTrendDTO, len(points))
	for i, p := range points {
		dtos[i] = DailyTrendDTO{Date: p.Date, TotalSales: p.TotalSales, TotalValue: f64(p.TotalValue)}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// TRANSFER HANDLERS
// =============================================================================

// ListTransfers returns all transfers, optionally filtered by status.
func (h *Handler) ListTransfers(w http.ResponseWriter, r *http.Request) {
	h.listTransfers(w, r, transfer.Status(r.URL.Query().Get("status")))
}

// ListTransfersByStatus returns transfers in one status.
func (h *Handler) ListTransfersByStatus(w http.ResponseWriter, r *http.Request) {
	status := transfer.Status(chi.URLParam(r, "status"))
	switch status {
	case transfer.StatusPending, transfer.StatusApproved, transfer.StatusRejected:
	default:
		writeError(w, http.StatusBadRequest, "Invalid status", nil)
		return
	}
	h.listTransfers(w, r, status)
}

func (h *Handler) listTransfers(w http.ResponseWriter, r *http.Request, status transfer.Status) {
	page, limit := pageParams(r, 50)
	transfers, total, err := h.Transfers.Store.Transfers(r.Context(), status, limit, (page-1)*limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list transfers", err)
		return
	}
	dtos := make([]TransferDTO, len(transfers))
	for i, t := range transfers {
		dtos[i] = toTransferDTO(t)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"transfers":  dtos,
		"pagination": paginationDTO(page, limit, total),
	})
}

// CreateTransfer records a pending transfer request.
func (h *Handler) CreateTransfer(w http.ResponseWriter, r *http.Request) {
	var req TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	var date time.Time
	if req.TransferDate != "" {
		var err error
		date, err = ledger.ParseDate(req.TransferDate)
		if err != nil {
			writeDomainError(w, err, "Invalid transferDate")
			return
		}
	}
	t, err := h.Transfers.Create(r.Context(), transfer.Input{
		FromBarracksID: req.FromBarracksID,
		ToBarracksID:   req.ToBarracksID,
		ItemID:         req.ItemID,
		Quantity:       ledger.Dec(req.Quantity),
		Notes:          req.Notes,
		RequestedBy:    req.RequestedBy,
		TransferDate:   date,
	})
	if err != nil {
		writeDomainError(w, err, "Failed to create transfer")
		return
	}
	writeJSON(w, http.StatusCreated, toTransferDTO(*t))
}

// ApproveTransfer moves the stock and marks the transfer approved.
func (h *Handler) ApproveTransfer(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "transferId")
	if !ok {
		return
	}
	var req DecideTransferRequest
	json.NewDecoder(r.Body).Decode(&req) // body optional

	t, err := h.Transfers.Approve(r.Context(), id, req.DecidedBy)
	if err != nil {
		writeDomainError(w, err, "Failed to approve transfer")
		return
	}
	writeJSON(w, http.StatusOK, toTransferDTO(*t))
}

// RejectTransfer marks the transfer rejected without moving stock.
func (h *Handler) RejectTransfer(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "transferId")
	if !ok {
		return
	}
	var req DecideTransferRequest
	json.NewDecoder(r.Body).Decode(&req) // body optional

	t, err := h.Transfers.Reject(r.Context(), id, req.DecidedBy)
	if err != nil {
		writeDomainError(w, err, "Failed to reject transfer")
		return
	}
	writeJSON(w, http.StatusOK, toTransferDTO(*t))
}

// GetBarrackLedger returns a page of one barracks' stock ledger for an item.
// itemId comes from the query string; without it the listing is ambiguous.
func (h *Handler) GetBarrackLedger(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "barracksId")
	if !ok {
		return
	}
	itemID := queryID(r, "itemId")
	if itemID == 0 {
		writeError(w, http.StatusBadRequest, "itemId query parameter is required", nil)
		return
	}
	h.writeLedgerPage(w, r, ledger.BarrackStock(id, itemID))
}

// ListAllBarrackStock returns current stock levels across every depot.
func (h *Handler) ListAllBarrackStock(w http.ResponseWriter, r *http.Request) {
	rows, err := h.Store.AllBarrackStock(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list barrack stock", err)
		return
	}
	dtos := make([]BarrackStockDTO, len(rows))
	for i, row := range rows {
		dtos[i] = BarrackStockDTO{
			BarracksID:   row.BarracksID,
			BarracksName: row.BarracksName,
			ItemID:       row.ItemID,
			ItemName:     row.ItemName,
			Qty:          f64(row.Qty),
			UpdatedAt:    ledger.FormatDateTime(row.UpdatedAt),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListBarracks returns all barracks depots.
func (h *Handler) ListBarracks(w http.ResponseWriter, r *http.Request) {
	barracks, err := h.Store.AllBarracks(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list barracks", err)
		return
	}
	dtos := make([]BarracksDTO, len(barracks))
	for i, b := range barracks {
		dtos[i] = BarracksDTO{ID: b.ID, Name: b.Name, Location: b.Location}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListItems returns all transferable items.
func (h *Handler) ListItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.Store.Items(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list items", err)
		return
	}
	dtos := make([]ItemDTO, len(items))
	for i, it := range items {
		dtos[i] = ItemDTO{ID: it.ID, Name: it.Name, Unit: it.Unit}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// SHARED LEDGER PAGE
// =============================================================================

// writeLedgerPage serves a paginated ledger listing plus current balance
// for any owner key. Client money, station stock and barrack stock ledgers
// all share this shape.
func (h *Handler) writeLedgerPage(w http.ResponseWriter, r *http.Request, owner ledger.OwnerKey) {
	page, limit := pageParams(r, 20)
	entries, total, err := h.Engine.Store.Entries(r.Context(), owner, limit, (page-1)*limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get ledger", err)
		return
	}
	balance, err := h.Engine.CurrentBalance(r.Context(), owner)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get balance", err)
		return
	}

	dtos := make([]LedgerEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = LedgerEntryDTO{
			ID:        e.ID,
			AmountIn:  f64(e.AmountIn),
			AmountOut: f64(e.AmountOut),
			Balance:   f64(e.Balance),
			Date:      ledger.FormatDateTime(e.EntryDate),
			Reference: e.Reference,
			CreatedAt: ledger.FormatDateTime(e.CreatedAt),
		}
	}
	writeJSON(w, http.StatusOK, LedgerPageDTO{
		Entries:        dtos,
		CurrentBalance: f64(balance),
		Pagination:     paginationDTO(page, limit, total),
	})
}

// =============================================================================
// DTO MAPPING
// =============================================================================

func toStationDTO(st sqlite.Station) StationDTO {
	return StationDTO{
		ID:               st.ID,
		Name:             st.Name,
		Address:          st.Address,
		Phone:            st.Phone,
		Email:            st.Email,
		CurrentFuelPrice: decPtr(st.CurrentFuelPrice),
		CreatedAt:        ledger.FormatDateTime(st.CreatedAt),
		UpdatedAt:        ledger.FormatDateTime(st.UpdatedAt),
	}
}

func toClientDTO(c sqlite.Client) ClientDTO {
	return ClientDTO{
		ID:        c.ID,
		Name:      c.Name,
		Email:     c.Email,
		Phone:     c.Phone,
		Address:   c.Address,
		CreatedAt: ledger.FormatDateTime(c.CreatedAt),
	}
}

func toStoreItemDTO(it sqlite.StoreItem) StoreItemDTO {
	return StoreItemDTO{
		ID:        it.ID,
		StationID: it.StationID,
		ProductID: it.ProductID,
		Qty:       f64(it.Qty),
		UpdatedAt: ledger.FormatDateTime(it.UpdatedAt),
	}
}

func toWindowDTO(w pricing.Window) PriceWindowDTO {
	dto := PriceWindowDTO{
		ID:        w.ID,
		StationID: w.StationID,
		Price:     f64(w.Price),
		StartDate: w.StartDate.Format(ledger.DateFormat),
		CreatedAt: ledger.FormatDateTime(w.CreatedAt),
	}
	if w.EndDate != nil {
		end := w.EndDate.Format(ledger.DateFormat)
		dto.EndDate = &end
	}
	return dto
}

func toSaleDTO(s sales.Sale) SaleDTO {
	return SaleDTO{
		ID:         s.ID,
		StationID:  s.StationID,
		VehicleID:  s.VehicleID,
		ClientID:   s.ClientID,
		Quantity:   f64(s.Quantity),
		UnitPrice:  f64(s.UnitPrice),
		TotalPrice: f64(s.TotalPrice),
		SaleDate:   ledger.FormatDateTime(s.SaleDate),
		CreatedAt:  ledger.FormatDateTime(s.CreatedAt),
	}
}

func toSaleRowDTOs(rows []sqlite.SaleRow) []SaleDTO {
	dtos := make([]SaleDTO, len(rows))
	for i, r := range rows {
		dto := toSaleDTO(r.Sale)
		dto.StationName = r.StationName
		dto.StationAddress = r.StationAddress
		dto.VehicleName = r.VehicleName
		dto.VehicleAddress = r.VehicleAddress
		dto.ClientName = r.ClientName
		dtos[i] = dto
	}
	return dtos
}

func toTransferDTO(t transfer.Transfer) TransferDTO {
	dto := TransferDTO{
		ID:             t.ID,
		FromBarracksID: t.FromBarracksID,
		ToBarracksID:   t.ToBarracksID,
		ItemID:         t.ItemID,
		Quantity:       f64(t.Quantity),
		Status:         string(t.Status),
		Notes:          t.Notes,
		RequestedBy:    t.RequestedBy,
		DecidedBy:      t.DecidedBy,
		TransferDate:   ledger.FormatDateTime(t.TransferDate),
		CreatedAt:      ledger.FormatDateTime(t.CreatedAt),
	}
	if t.DecidedAt != nil {
		decided := ledger.FormatDateTime(*t.DecidedAt)
		dto.DecidedAt = &decided
	}
	return dto
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps domain errors onto HTTP statuses: missing entities
// to 404, validation and failed preconditions to 400, lost races and
// non-pending transitions to 409, everything else to 500.
func writeDomainError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case ledger.IsNotFound(err):
		writeError(w, http.StatusNotFound, err.Error(), nil)
	case ledger.IsClientError(err):
		writeError(w, http.StatusBadRequest, err.Error(), nil)
	case ledger.IsRetryable(err):
		writeError(w, http.StatusConflict, err.Error(), nil)
	default:
		writeError(w, http.StatusInternalServerError, fallback, err)
	}
}

func idParam(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid "+name, err)
		return 0, false
	}
	return id, true
}

func queryID(r *http.Request, name string) int64 {
	v, _ := strconv.ParseInt(r.URL.Query().Get(name), 10, 64)
	return v
}

func pageParams(r *http.Request, defaultLimit int) (page, limit int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 || limit > 200 {
		limit = defaultLimit
	}
	return page, limit
}

func paginationDTO(page, limit, total int) PaginationDTO {
	pages := (total + limit - 1) / limit
	return PaginationDTO{Page: page, Limit: limit, Total: total, Pages: pages}
}

func f64(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

func decPtr(d *decimal.Decimal) *float64 {
	if d == nil {
		return nil
	}
	f := f64(*d)
	return &f
}
