/*
handlers_test.go - HTTP-level tests for the API surface

Exercises the full stack: router -> handler -> service -> SQLite store
(in-memory). Covers the sale flow, client ledger, price windows and the
transfer lifecycle, including the error-to-status mapping.
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fuelops/backoffice/ledger"
	"github.com/fuelops/backoffice/store/sqlite"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func newTestAPI(t *testing.T) (*Handler, http.Handler) {
	t.Helper()
	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	h := NewHandler(st, ledger.NewClock(0))
	return h, NewRouter(h)
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("Failed to decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func wantStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("Expected status %d, got %d: %s", want, rec.Code, rec.Body.String())
	}
}

func today() string {
	return time.Now().UTC().Format(ledger.DateFormat)
}

// createStation makes a station with an active price window and opening
// stock, returning its id.
func createStation(t *testing.T, router http.Handler, price, stock float64) int64 {
	t.Helper()
	rec := doJSON(t, router, http.MethodPost, "/api/stations", StationRequest{Name: "Central Station"})
	wantStatus(t, rec, http.StatusCreated)
	station := decode[StationDTO](t, rec)

	rec = doJSON(t, router, http.MethodPost, fmt.Sprintf("/api/stations/%d/prices", station.ID),
		PriceWindowRequest{StationID: station.ID, Price: price, StartDate: today()})
	wantStatus(t, rec, http.StatusCreated)

	if stock > 0 {
		rec = doJSON(t, router, http.MethodPost, fmt.Sprintf("/api/sales/station/%d/stock", station.ID),
			AddStockRequest{Quantity: stock, Date: today()})
		wantStatus(t, rec, http.StatusCreated)
	}
	return station.ID
}

func createClient(t *testing.T, router http.Handler, name string) int64 {
	t.Helper()
	rec := doJSON(t, router, http.MethodPost, "/api/clients", ClientRequest{Name: name})
	wantStatus(t, rec, http.StatusCreated)
	return decode[ClientDTO](t, rec).ID
}

// createVehicle registers a branch (vehicle) for the sale flow.
func createVehicle(t *testing.T, router http.Handler, name string) int64 {
	t.Helper()
	rec := doJSON(t, router, http.MethodPost, "/api/branches", BranchRequest{Name: name})
	wantStatus(t, rec, http.StatusCreated)
	return decode[BranchDTO](t, rec).ID
}

// =============================================================================
// SALE FLOW
// =============================================================================

func TestPostSale_EndToEnd(t *testing.T) {
	// GIVEN: A station with a current price and stock, and a client
	// WHEN: A sale is posted
	// THEN: The sale lands, stock drops and the client owes the total

	_, router := newTestAPI(t)
	stationID := createStation(t, router, 2850, 1000)
	clientID := createClient(t, router, "Kilima Logistics")
	vehicleID := createVehicle(t, router, "Truck T-104")

	rec := doJSON(t, router, http.MethodPost, "/api/sales", SaleRequest{
		StationID: stationID,
		VehicleID: vehicleID,
		ClientID:  clientID,
		Quantity:  200,
		UnitPrice: 2850,
		SaleDate:  today(),
	})
	wantStatus(t, rec, http.StatusCreated)
	sale := decode[SaleDTO](t, rec)
	if sale.TotalPrice != 570000 {
		t.Errorf("Expected total 570000, got %v", sale.TotalPrice)
	}

	rec = doJSON(t, router, http.MethodGet, fmt.Sprintf("/api/sales/station/%d/stock", stationID), nil)
	wantStatus(t, rec, http.StatusOK)
	stock := decode[StationStockDTO](t, rec)
	if stock.TotalStock != 800 {
		t.Errorf("Expected stock 800 after the sale, got %v", stock.TotalStock)
	}

	rec = doJSON(t, router, http.MethodGet, fmt.Sprintf("/api/clients/%d/balance", clientID), nil)
	wantStatus(t, rec, http.StatusOK)
	balance := decode[BalanceDTO](t, rec)
	if balance.Balance != 570000 {
		t.Errorf("Expected client balance 570000, got %v", balance.Balance)
	}

	rec = doJSON(t, router, http.MethodGet, "/api/sales", nil)
	wantStatus(t, rec, http.StatusOK)
	if rows := decode[[]SaleDTO](t, rec); len(rows) != 1 {
		t.Errorf("Expected 1 sale in the listing, got %d", len(rows))
	}
}

func TestPostSale_ErrorStatuses(t *testing.T) {
	_, router := newTestAPI(t)
	stationID := createStation(t, router, 2850, 100)
	clientID := createClient(t, router, "Mwanza Transport Co")
	vehicleID := createVehicle(t, router, "Truck T-104")

	t.Run("unknown station is 404", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/api/sales", SaleRequest{
			StationID: 999, VehicleID: vehicleID, ClientID: clientID, Quantity: 10, UnitPrice: 2850, SaleDate: today(),
		})
		wantStatus(t, rec, http.StatusNotFound)
	})

	t.Run("price mismatch is 400", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/api/sales", SaleRequest{
			StationID: stationID, VehicleID: vehicleID, ClientID: clientID, Quantity: 10, UnitPrice: 2800, SaleDate: today(),
		})
		wantStatus(t, rec, http.StatusBadRequest)
	})

	t.Run("insufficient stock is 400", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/api/sales", SaleRequest{
			StationID: stationID, VehicleID: vehicleID, ClientID: clientID, Quantity: 500, UnitPrice: 2850, SaleDate: today(),
		})
		wantStatus(t, rec, http.StatusBadRequest)
	})

	t.Run("failed sale leaves no trace", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, "/api/sales", nil)
		wantStatus(t, rec, http.StatusOK)
		if rows := decode[[]SaleDTO](t, rec); len(rows) != 0 {
			t.Errorf("Expected no sales after failed attempts, got %d", len(rows))
		}
		rec = doJSON(t, router, http.MethodGet, fmt.Sprintf("/api/sales/station/%d/stock", stationID), nil)
		if stock := decode[StationStockDTO](t, rec); stock.TotalStock != 100 {
			t.Errorf("Expected stock untouched at 100, got %v", stock.TotalStock)
		}
	})
}

// =============================================================================
// CLIENT LEDGER
// =============================================================================

func TestClientLedger_EntriesAndBalance(t *testing.T) {
	// GIVEN: A client with a charge and a payment
	// WHEN: The ledger page is fetched
	// THEN: Both entries appear newest-first with the running balance

	_, router := newTestAPI(t)
	clientID := createClient(t, router, "Kilima Logistics")

	rec := doJSON(t, router, http.MethodPost, fmt.Sprintf("/api/clients/%d/ledger", clientID),
		ClientLedgerEntryRequest{AmountOut: 1000, Reference: "Opening invoice", Date: "2026-04-01"})
	wantStatus(t, rec, http.StatusCreated)

	rec = doJSON(t, router, http.MethodPost, fmt.Sprintf("/api/clients/%d/ledger", clientID),
		ClientLedgerEntryRequest{AmountIn: 600, Reference: "Payment", Date: "2026-04-05"})
	wantStatus(t, rec, http.StatusCreated)

	rec = doJSON(t, router, http.MethodGet, fmt.Sprintf("/api/clients/%d/ledger", clientID), nil)
	wantStatus(t, rec, http.StatusOK)
	page := decode[LedgerPageDTO](t, rec)
	if len(page.Entries) != 2 || page.Pagination.Total != 2 {
		t.Fatalf("Expected 2 entries, got %d (total %d)", len(page.Entries), page.Pagination.Total)
	}
	if page.Entries[0].Reference != "Payment" {
		t.Errorf("Expected newest entry first, got %q", page.Entries[0].Reference)
	}
	if page.CurrentBalance != 400 {
		t.Errorf("Expected balance 400, got %v", page.CurrentBalance)
	}
}

func TestClientLedger_Validation(t *testing.T) {
	_, router := newTestAPI(t)
	clientID := createClient(t, router, "Kilima Logistics")

	rec := doJSON(t, router, http.MethodPost, fmt.Sprintf("/api/clients/%d/ledger", clientID),
		ClientLedgerEntryRequest{})
	wantStatus(t, rec, http.StatusBadRequest)

	rec = doJSON(t, router, http.MethodPost, "/api/clients/999/ledger",
		ClientLedgerEntryRequest{AmountIn: 100})
	wantStatus(t, rec, http.StatusNotFound)
}

// =============================================================================
// PRICE WINDOWS
// =============================================================================

func TestCurrentPrice_FollowsWindowChanges(t *testing.T) {
	// GIVEN: A station with one active price window
	// WHEN: A newer window is added and then deleted
	// THEN: The current price follows the eligible window

	_, router := newTestAPI(t)
	stationID := createStation(t, router, 2800, 0)

	rec := doJSON(t, router, http.MethodGet, fmt.Sprintf("/api/stations/%d/price", stationID), nil)
	wantStatus(t, rec, http.StatusOK)
	current := decode[CurrentPriceDTO](t, rec)
	if current.CurrentPrice == nil || *current.CurrentPrice != 2800 {
		t.Fatalf("Expected current price 2800, got %v", current.CurrentPrice)
	}

	rec = doJSON(t, router, http.MethodPost, fmt.Sprintf("/api/stations/%d/prices", stationID),
		PriceWindowRequest{StationID: stationID, Price: 2890, StartDate: today()})
	wantStatus(t, rec, http.StatusCreated)
	newer := decode[PriceWindowDTO](t, rec)

	rec = doJSON(t, router, http.MethodGet, fmt.Sprintf("/api/stations/%d/price", stationID), nil)
	current = decode[CurrentPriceDTO](t, rec)
	if current.CurrentPrice == nil || *current.CurrentPrice != 2890 {
		t.Errorf("Expected the newer window to win, got %v", current.CurrentPrice)
	}

	rec = doJSON(t, router, http.MethodDelete, fmt.Sprintf("/api/prices/%d", newer.ID), nil)
	wantStatus(t, rec, http.StatusOK)

	rec = doJSON(t, router, http.MethodGet, fmt.Sprintf("/api/stations/%d/price", stationID), nil)
	current = decode[CurrentPriceDTO](t, rec)
	if current.CurrentPrice == nil || *current.CurrentPrice != 2800 {
		t.Errorf("Expected fallback to the older window, got %v", current.CurrentPrice)
	}
}

func TestCreatePriceWindow_Validation(t *testing.T) {
	_, router := newTestAPI(t)
	stationID := createStation(t, router, 2800, 0)

	rec := doJSON(t, router, http.MethodPost, fmt.Sprintf("/api/stations/%d/prices", stationID),
		PriceWindowRequest{StationID: stationID, Price: -5, StartDate: today()})
	wantStatus(t, rec, http.StatusBadRequest)

	rec = doJSON(t, router, http.MethodPost, "/api/stations/999/prices",
		PriceWindowRequest{StationID: 999, Price: 2800, StartDate: today()})
	wantStatus(t, rec, http.StatusNotFound)
}

// =============================================================================
// TRANSFERS
// =============================================================================

func TestTransferLifecycle(t *testing.T) {
	// GIVEN: Two depots and depot stock at the source
	// WHEN: A transfer is requested and approved
	// THEN: Stock moves; further decisions on it conflict

	h, router := newTestAPI(t)
	ctx := context.Background()

	from, err := h.Store.AddBarracks(ctx, sqlite.Barracks{Name: "Main Warehouse"})
	if err != nil {
		t.Fatalf("Failed to create depot: %v", err)
	}
	to, err := h.Store.AddBarracks(ctx, sqlite.Barracks{Name: "North Depot"})
	if err != nil {
		t.Fatalf("Failed to create depot: %v", err)
	}
	item, err := h.Store.AddItem(ctx, sqlite.Item{Name: "Diesel", Unit: "L"})
	if err != nil {
		t.Fatalf("Failed to create item: %v", err)
	}
	if _, err := h.Engine.Apply(ctx, ledger.Movement{
		Owner:     ledger.BarrackStock(from.ID, item.ID),
		In:        ledger.Dec(500),
		Reference: "Opening stock",
	}); err != nil {
		t.Fatalf("Failed to seed depot stock: %v", err)
	}

	rec := doJSON(t, router, http.MethodPost, "/api/transfers", TransferRequest{
		FromBarracksID: from.ID,
		ToBarracksID:   to.ID,
		ItemID:         item.ID,
		Quantity:       200,
		RequestedBy:    "depot clerk",
		TransferDate:   today(),
	})
	wantStatus(t, rec, http.StatusCreated)
	created := decode[TransferDTO](t, rec)
	if created.Status != "pending" {
		t.Fatalf("Expected pending, got %q", created.Status)
	}

	rec = doJSON(t, router, http.MethodPost, fmt.Sprintf("/api/transfers/%d/approve", created.ID),
		DecideTransferRequest{DecidedBy: "manager"})
	wantStatus(t, rec, http.StatusOK)
	approved := decode[TransferDTO](t, rec)
	if approved.Status != "approved" || approved.DecidedBy != "manager" {
		t.Errorf("Expected approved by manager, got %q by %q", approved.Status, approved.DecidedBy)
	}

	// Stock moved.
	rec = doJSON(t, router, http.MethodGet,
		fmt.Sprintf("/api/barracks/%d/ledger?itemId=%d", from.ID, item.ID), nil)
	wantStatus(t, rec, http.StatusOK)
	if page := decode[LedgerPageDTO](t, rec); page.CurrentBalance != 300 {
		t.Errorf("Expected source at 300, got %v", page.CurrentBalance)
	}
	rec = doJSON(t, router, http.MethodGet,
		fmt.Sprintf("/api/barracks/%d/ledger?itemId=%d", to.ID, item.ID), nil)
	if page := decode[LedgerPageDTO](t, rec); page.CurrentBalance != 200 {
		t.Errorf("Expected destination at 200, got %v", page.CurrentBalance)
	}

	// A decided transfer is terminal.
	rec = doJSON(t, router, http.MethodPost, fmt.Sprintf("/api/transfers/%d/approve", created.ID),
		DecideTransferRequest{DecidedBy: "manager"})
	wantStatus(t, rec, http.StatusConflict)
	rec = doJSON(t, router, http.MethodPost, fmt.Sprintf("/api/transfers/%d/reject", created.ID),
		DecideTransferRequest{DecidedBy: "manager"})
	wantStatus(t, rec, http.StatusConflict)
}

func TestTransfers_InvalidStatusFilter(t *testing.T) {
	_, router := newTestAPI(t)
	rec := doJSON(t, router, http.MethodGet, "/api/transfers/status/bogus", nil)
	wantStatus(t, rec, http.StatusBadRequest)
}

func TestBarrackLedger_RequiresItem(t *testing.T) {
	_, router := newTestAPI(t)
	rec := doJSON(t, router, http.MethodGet, "/api/barracks/1/ledger", nil)
	wantStatus(t, rec, http.StatusBadRequest)
}

// =============================================================================
// LEAVES AND ATTENDANCE
// =============================================================================

func TestLeave_ApproveIsPendingOnly(t *testing.T) {
	_, router := newTestAPI(t)

	rec := doJSON(t, router, http.MethodPost, "/api/leaves", LeaveRequest{
		StaffID:   7,
		StaffName: "Asha Mwinyi",
		LeaveType: "annual",
		StartDate: "2026-05-04",
		EndDate:   "2026-05-08",
		Reason:    "Family visit",
	})
	wantStatus(t, rec, http.StatusCreated)
	leave := decode[LeaveDTO](t, rec)
	if leave.Status != "pending" {
		t.Fatalf("Expected pending, got %q", leave.Status)
	}

	rec = doJSON(t, router, http.MethodPost, fmt.Sprintf("/api/leaves/%d/approve", leave.ID), nil)
	wantStatus(t, rec, http.StatusOK)
	if approved := decode[LeaveDTO](t, rec); approved.Status != "approved" {
		t.Errorf("Expected approved, got %q", approved.Status)
	}

	rec = doJSON(t, router, http.MethodPost, fmt.Sprintf("/api/leaves/%d/approve", leave.ID), nil)
	wantStatus(t, rec, http.StatusBadRequest)
}

func TestAttendance_CheckInThenOut(t *testing.T) {
	_, router := newTestAPI(t)
	stationID := createStation(t, router, 2850, 0)

	rec := doJSON(t, router, http.MethodPost, "/api/attendance/checkin", CheckInRequest{
		UserID:    3,
		UserName:  "Juma Hassan",
		StationID: stationID,
	})
	wantStatus(t, rec, http.StatusCreated)
	record := decode[AttendanceDTO](t, rec)

	rec = doJSON(t, router, http.MethodPost, fmt.Sprintf("/api/attendance/%d/checkout", record.ID), CheckOutRequest{})
	wantStatus(t, rec, http.StatusOK)

	// A record only checks out once.
	rec = doJSON(t, router, http.MethodPost, fmt.Sprintf("/api/attendance/%d/checkout", record.ID), CheckOutRequest{})
	wantStatus(t, rec, http.StatusBadRequest)

	rec = doJSON(t, router, http.MethodGet, "/api/attendance/stats", nil)
	wantStatus(t, rec, http.StatusOK)
	stats := decode[AttendanceStatsDTO](t, rec)
	if stats.Total != 1 || stats.CheckedOut != 1 {
		t.Errorf("Expected 1 record checked out, got %+v", stats)
	}
}

// =============================================================================
// STATIONS AND SCENARIOS
// =============================================================================

func TestStation_NotFoundAndDelete(t *testing.T) {
	_, router := newTestAPI(t)

	rec := doJSON(t, router, http.MethodGet, "/api/stations/42", nil)
	wantStatus(t, rec, http.StatusNotFound)

	stationID := createStation(t, router, 2800, 0)
	rec = doJSON(t, router, http.MethodDelete, fmt.Sprintf("/api/stations/%d", stationID), nil)
	wantStatus(t, rec, http.StatusOK)
	rec = doJSON(t, router, http.MethodGet, fmt.Sprintf("/api/stations/%d", stationID), nil)
	wantStatus(t, rec, http.StatusNotFound)
}

func TestLoadScenario_Demo(t *testing.T) {
	_, router := newTestAPI(t)

	rec := doJSON(t, router, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{Scenario: "demo"})
	wantStatus(t, rec, http.StatusOK)

	rec = doJSON(t, router, http.MethodGet, "/api/stations", nil)
	wantStatus(t, rec, http.StatusOK)
	if stations := decode[[]StationDTO](t, rec); len(stations) != 2 {
		t.Errorf("Expected 2 demo stations, got %d", len(stations))
	}

	rec = doJSON(t, router, http.MethodGet, "/api/sales", nil)
	if rows := decode[[]SaleDTO](t, rec); len(rows) != 1 {
		t.Errorf("Expected 1 demo sale, got %d", len(rows))
	}

	rec = doJSON(t, router, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{Scenario: "bogus"})
	wantStatus(t, rec, http.StatusBadRequest)
}
