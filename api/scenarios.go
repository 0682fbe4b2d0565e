/*
scenarios.go - Demo scenario loader for testing and demonstrations

PURPOSE:

	Populates the database with realistic demo data: depots, items,
	stations, clients and opening stock. Used to exercise the dashboard
	and the API without hand-entering the network.

AVAILABLE SCENARIOS:

	demo: Warehouse network, two stations with prices and stock,
	      two credit clients and a first fuel sale.

HOW THE LOADER WORKS:
 1. Seed barracks depots and transferable items (skipped when present)
 2. Seed fuel products and the branch registry
 3. Create stations, price windows and opening station stock
 4. Create clients and post an initial sale

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario": "demo"}

NOTE:

	The loader is additive and idempotent at the depot/item level but
	creates fresh stations and clients each run. Only use in
	development/demo environments.

SEE ALSO:
  - server.go: Route registration
  - store/sqlite/resources.go: Row types used here
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/fuelops/backoffice/ledger"
	"github.com/fuelops/backoffice/pricing"
	"github.com/fuelops/backoffice/sales"
	"github.com/fuelops/backoffice/store/sqlite"
)

// LoadScenario loads a predefined demo scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var err error
	switch req.Scenario {
	case "demo", "":
		err = h.loadDemoScenario(r.Context())
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": "demo"})
}

func (h *Handler) loadDemoScenario(ctx context.Context) error {
	if err := h.seedDepotsAndItems(ctx); err != nil {
		return err
	}
	if err := h.seedCatalog(ctx); err != nil {
		return err
	}

	now := h.Clock.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	// Two stations with a current price and opening stock
	stationA, err := h.Store.CreateStation(ctx, sqlite.Station{
		Name: "Central Station", Address: "1 Harbour Road", Phone: "+255-700-000-001",
	})
	if err != nil {
		return err
	}
	stationB, err := h.Store.CreateStation(ctx, sqlite.Station{
		Name: "Airport Station", Address: "14 Airfield Way", Phone: "+255-700-000-002",
	})
	if err != nil {
		return err
	}

	for _, seed := range []struct {
		stationID int64
		price     float64
		stock     float64
	}{
		{stationA.ID, 2850, 12000},
		{stationB.ID, 2890, 8000},
	} {
		if _, err := h.Pricing.Create(ctx, pricing.Window{
			StationID: seed.stationID,
			Price:     ledger.Dec(seed.price),
			StartDate: today.AddDate(0, 0, -7),
		}); err != nil {
			return err
		}
		if _, err := h.Sales.AddStock(ctx, seed.stationID, ledger.Dec(seed.stock), today, "Opening stock"); err != nil {
			return err
		}
	}

	// A couple of credit clients and the vehicles they run
	clientA, err := h.Store.CreateClient(ctx, sqlite.Client{
		Name: "Kilima Logistics", Phone: "+255-710-000-010", Address: "Plot 42, Industrial Area",
	})
	if err != nil {
		return err
	}
	if _, err := h.Store.CreateClient(ctx, sqlite.Client{
		Name: "Mwanza Transport Co", Phone: "+255-710-000-011",
	}); err != nil {
		return err
	}
	branch, err := h.Store.AddBranch(ctx, sqlite.Branch{Name: "Truck T-104", Address: "Kilima fleet"})
	if err != nil {
		return err
	}

	// Opening depot stock moves through the engine so the ledgers line up
	mainDepot, err := h.depotByName(ctx, "Main Warehouse")
	if err != nil {
		return err
	}
	items, err := h.Store.Items(ctx)
	if err != nil {
		return err
	}
	for _, it := range items {
		if _, err := h.Engine.Apply(ctx, ledger.Movement{
			Owner:     ledger.BarrackStock(mainDepot, it.ID),
			In:        ledger.Dec(5000),
			Date:      today,
			Reference: "Opening depot stock",
		}); err != nil {
			return err
		}
	}

	// First sale so the dashboards have something to show
	_, err = h.Sales.Post(ctx, sales.Input{
		StationID: stationA.ID,
		VehicleID: branch.ID,
		ClientID:  clientA.ID,
		Quantity:  ledger.Dec(200),
		UnitPrice: ledger.Dec(2850),
		SaleDate:  today,
	})
	return err
}

// seedDepotsAndItems mirrors the standing warehouse network. Skipped when
// depots already exist so repeat loads stay additive.
func (h *Handler) seedDepotsAndItems(ctx context.Context) error {
	existing, err := h.Store.AllBarracks(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	depots := []sqlite.Barracks{
		{Name: "Main Warehouse", Location: "Headquarters"},
		{Name: "North Depot", Location: "Northern region"},
		{Name: "South Depot", Location: "Southern region"},
		{Name: "East Depot", Location: "Eastern region"},
		{Name: "West Depot", Location: "Western region"},
	}
	for _, d := range depots {
		if _, err := h.Store.AddBarracks(ctx, d); err != nil {
			return err
		}
	}

	items := []sqlite.Item{
		{Name: "Diesel", Unit: "litres"},
		{Name: "Petrol", Unit: "litres"},
		{Name: "Kerosene", Unit: "litres"},
		{Name: "Engine Oil", Unit: "litres"},
	}
	for _, it := range items {
		if _, err := h.Store.AddItem(ctx, it); err != nil {
			return err
		}
	}
	return nil
}

// seedCatalog seeds the fuel product lookup table once.
func (h *Handler) seedCatalog(ctx context.Context) error {
	existing, err := h.Store.FuelProducts(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}
	for _, name := range []string{"Diesel", "Petrol", "Kerosene"} {
		if _, err := h.Store.AddFuelProduct(ctx, name); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) depotByName(ctx context.Context, name string) (int64, error) {
	barracks, err := h.Store.AllBarracks(ctx)
	if err != nil {
		return 0, err
	}
	for _, b := range barracks {
		if b.Name == name {
			return b.ID, nil
		}
	}
	return 0, fmt.Errorf("depot %q not seeded", name)
}
