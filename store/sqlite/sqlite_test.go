package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fuelops/backoffice/ledger"
	"github.com/fuelops/backoffice/pricing"
	"github.com/fuelops/backoffice/sales"
	"github.com/fuelops/backoffice/store/sqlite"
	"github.com/fuelops/backoffice/transfer"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to open in-memory store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func entry(owner ledger.OwnerKey, balance float64, entryDate, createdAt time.Time) ledger.Entry {
	return ledger.Entry{
		ID:        uuid.NewString(),
		Owner:     owner,
		AmountIn:  ledger.Dec(balance),
		AmountOut: decimal.Zero,
		Balance:   ledger.Dec(balance),
		EntryDate: entryDate,
		CreatedAt: createdAt,
	}
}

func mustAppend(t *testing.T, st *sqlite.Store, e ledger.Entry) {
	t.Helper()
	if err := st.AppendEntry(context.Background(), e); err != nil {
		t.Fatalf("append failed: %v", err)
	}
}

func day(d int) time.Time {
	return time.Date(2026, time.April, d, 0, 0, 0, 0, time.UTC)
}

// =============================================================================
// LEDGER ENTRY TESTS
// =============================================================================

func TestLatestEntry_NewestDateWins(t *testing.T) {
	// GIVEN: Entries on three different dates, written out of order
	// WHEN: The latest entry is resolved
	// THEN: The newest entry_date wins regardless of insertion order

	st := newTestStore(t)
	owner := ledger.StationStock(1)
	base := time.Date(2026, time.April, 10, 12, 0, 0, 0, time.UTC)

	mustAppend(t, st, entry(owner, 100, day(5), base))
	mustAppend(t, st, entry(owner, 300, day(9), base.Add(time.Second)))
	mustAppend(t, st, entry(owner, 200, day(7), base.Add(2*time.Second))) // backdated

	latest, err := st.LatestEntry(context.Background(), owner)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if latest == nil {
		t.Fatal("expected an entry, got nil")
	}
	if !latest.EntryDate.Equal(day(9)) {
		t.Errorf("expected head at day 9, got %s", latest.EntryDate)
	}
	if !latest.Balance.Equal(ledger.Dec(300)) {
		t.Errorf("expected balance 300, got %s", latest.Balance)
	}
}

func TestLatestEntry_TieBreaksByInsertionOrder(t *testing.T) {
	// GIVEN: Two entries sharing the same entry_date and created_at
	// WHEN: The latest entry is resolved
	// THEN: The row inserted last wins (rowid tie-break)

	st := newTestStore(t)
	owner := ledger.ClientAccount(7)
	at := time.Date(2026, time.April, 10, 12, 0, 0, 0, time.UTC)

	first := entry(owner, 100, day(10), at)
	second := entry(owner, 250, day(10), at)
	mustAppend(t, st, first)
	mustAppend(t, st, second)

	latest, err := st.LatestEntry(context.Background(), owner)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if latest == nil || latest.ID != second.ID {
		t.Errorf("expected last-inserted entry %s to win the tie", second.ID)
	}
}

func TestLatestEntry_NoHistoryReturnsNil(t *testing.T) {
	st := newTestStore(t)

	latest, err := st.LatestEntry(context.Background(), ledger.StationStock(99))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if latest != nil {
		t.Errorf("expected nil for empty history, got %+v", latest)
	}
}

func TestEntries_PaginationNewestFirst(t *testing.T) {
	// GIVEN: Five entries on consecutive dates
	// WHEN: Page two is fetched with a page size of two
	// THEN: Two rows come back in newest-first order with the full count

	st := newTestStore(t)
	owner := ledger.BarrackStock(1, 10)
	base := time.Date(2026, time.April, 1, 8, 0, 0, 0, time.UTC)
	for i := 1; i <= 5; i++ {
		mustAppend(t, st, entry(owner, float64(i*100), day(i), base.Add(time.Duration(i)*time.Second)))
	}

	entries, total, err := st.Entries(context.Background(), owner, 2, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 5 {
		t.Errorf("expected total 5, got %d", total)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if !entries[0].EntryDate.Equal(day(3)) || !entries[1].EntryDate.Equal(day(2)) {
		t.Errorf("expected days 3 and 2, got %s and %s", entries[0].EntryDate, entries[1].EntryDate)
	}
}

func TestEntries_KeysDoNotBleed(t *testing.T) {
	// GIVEN: Entries under two owner keys differing only in item
	// WHEN: One key is listed
	// THEN: The other key's entries never appear

	st := newTestStore(t)
	mustAppend(t, st, entry(ledger.BarrackStock(1, 10), 100, day(1), time.Now().UTC()))
	mustAppend(t, st, entry(ledger.BarrackStock(1, 20), 900, day(1), time.Now().UTC()))

	entries, total, err := st.Entries(context.Background(), ledger.BarrackStock(1, 10), 50, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 1 || len(entries) != 1 {
		t.Fatalf("expected exactly 1 entry, got %d (total %d)", len(entries), total)
	}
	if !entries[0].Balance.Equal(ledger.Dec(100)) {
		t.Errorf("expected balance 100, got %s", entries[0].Balance)
	}
}

// =============================================================================
// STOCK LEVEL CAS TESTS
// =============================================================================

func TestSaveLevel_InsertThenUpdate(t *testing.T) {
	st := newTestStore(t)
	owner := ledger.StationStock(1)
	ctx := context.Background()

	// Version 0 inserts a fresh row.
	if err := st.SaveLevel(ctx, ledger.StockLevel{Owner: owner, Qty: ledger.Dec(500)}); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	lvl, err := st.Level(ctx, owner)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lvl == nil || lvl.Version != 1 {
		t.Fatalf("expected version 1 after insert, got %+v", lvl)
	}

	// The stored version gates the update.
	if err := st.SaveLevel(ctx, ledger.StockLevel{Owner: owner, Qty: ledger.Dec(400), Version: lvl.Version}); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	lvl, _ = st.Level(ctx, owner)
	if lvl.Version != 2 || !lvl.Qty.Equal(ledger.Dec(400)) {
		t.Errorf("expected qty 400 at version 2, got %s at version %d", lvl.Qty, lvl.Version)
	}
}

func TestSaveLevel_StaleVersionConflicts(t *testing.T) {
	// GIVEN: A level row at version 1
	// WHEN: A writer holding an outdated version saves
	// THEN: The write is rejected as a conflict and the row is untouched

	st := newTestStore(t)
	owner := ledger.StationStock(1)
	ctx := context.Background()

	if err := st.SaveLevel(ctx, ledger.StockLevel{Owner: owner, Qty: ledger.Dec(500)}); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	err := st.SaveLevel(ctx, ledger.StockLevel{Owner: owner, Qty: ledger.Dec(999), Version: 7})
	if !errors.Is(err, ledger.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	lvl, _ := st.Level(ctx, owner)
	if !lvl.Qty.Equal(ledger.Dec(500)) {
		t.Errorf("stale write must not change qty, got %s", lvl.Qty)
	}
}

func TestSaveLevel_DuplicateInsertConflicts(t *testing.T) {
	st := newTestStore(t)
	owner := ledger.StationStock(1)
	ctx := context.Background()

	if err := st.SaveLevel(ctx, ledger.StockLevel{Owner: owner, Qty: ledger.Dec(500)}); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	err := st.SaveLevel(ctx, ledger.StockLevel{Owner: owner, Qty: ledger.Dec(600)})
	if !errors.Is(err, ledger.ErrConflict) {
		t.Fatalf("expected ErrConflict on duplicate insert, got %v", err)
	}
}

// =============================================================================
// TRANSACTION TESTS
// =============================================================================

func TestWithTx_ErrorRollsBackEverything(t *testing.T) {
	// GIVEN: A transaction that appends an entry, saves a level and fails
	// WHEN: The transaction function returns an error
	// THEN: Neither write survives

	st := newTestStore(t)
	owner := ledger.StationStock(1)
	ctx := context.Background()
	boom := errors.New("boom")

	err := st.WithTx(ctx, func(tx ledger.Store) error {
		if err := tx.AppendEntry(ctx, entry(owner, 100, day(1), time.Now().UTC())); err != nil {
			return err
		}
		if err := tx.SaveLevel(ctx, ledger.StockLevel{Owner: owner, Qty: ledger.Dec(100)}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected the inner error back, got %v", err)
	}

	latest, _ := st.LatestEntry(ctx, owner)
	if latest != nil {
		t.Errorf("entry survived a rolled-back transaction: %+v", latest)
	}
	lvl, _ := st.Level(ctx, owner)
	if lvl != nil {
		t.Errorf("level survived a rolled-back transaction: %+v", lvl)
	}
}

func TestWithTx_SaleAndLegsCommitTogether(t *testing.T) {
	// GIVEN: A station and a client
	// WHEN: A sale row and its ledger leg are written in one transaction
	// THEN: Both are visible after commit

	st := newTestStore(t)
	ctx := context.Background()

	station, err := st.CreateStation(ctx, sqlite.Station{Name: "Central Station"})
	if err != nil {
		t.Fatalf("failed to create station: %v", err)
	}
	client, err := st.CreateClient(ctx, sqlite.Client{Name: "Kilima Logistics"})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	var saleID int64
	err = st.WithTx(ctx, func(tx ledger.Store) error {
		writer, ok := tx.(sales.SaleWriter)
		if !ok {
			t.Fatal("transaction store must implement sales.SaleWriter")
		}
		saleID, err = writer.InsertSale(ctx, sales.Sale{
			StationID:  station.ID,
			ClientID:   client.ID,
			Quantity:   ledger.Dec(200),
			UnitPrice:  ledger.Dec(2850),
			TotalPrice: ledger.Dec(570000),
			SaleDate:   day(12),
		})
		if err != nil {
			return err
		}
		return tx.AppendEntry(ctx, entry(ledger.ClientAccount(client.ID), 570000, day(12), time.Now().UTC()))
	})
	if err != nil {
		t.Fatalf("transaction failed: %v", err)
	}
	if saleID == 0 {
		t.Fatal("expected a sale id")
	}

	rows, err := st.AllSales(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 sale, got %d", len(rows))
	}
	if rows[0].StationName != "Central Station" || rows[0].ClientName != "Kilima Logistics" {
		t.Errorf("expected joined names, got %q / %q", rows[0].StationName, rows[0].ClientName)
	}
	if latest, _ := st.LatestEntry(ctx, ledger.ClientAccount(client.ID)); latest == nil {
		t.Error("expected the client leg to be committed with the sale")
	}
}

// =============================================================================
// TRANSFER TESTS
// =============================================================================

func TestMarkDecided_OnlyFlipsPendingOnce(t *testing.T) {
	// GIVEN: A pending stock transfer
	// WHEN: It is decided twice
	// THEN: Only the first decision lands

	st := newTestStore(t)
	ctx := context.Background()

	id, err := st.InsertTransfer(ctx, transfer.Transfer{
		FromBarracksID: 1,
		ToBarracksID:   2,
		ItemID:         10,
		Quantity:       ledger.Dec(100),
		Status:         transfer.StatusPending,
		RequestedBy:    "depot clerk",
		TransferDate:   day(3),
	})
	if err != nil {
		t.Fatalf("failed to insert transfer: %v", err)
	}

	decidedAt := time.Date(2026, time.April, 4, 9, 0, 0, 0, time.UTC)
	changed, err := st.MarkDecided(ctx, id, transfer.StatusApproved, "manager", decidedAt)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !changed {
		t.Fatal("expected the pending transfer to flip")
	}

	changed, err = st.MarkDecided(ctx, id, transfer.StatusRejected, "manager", decidedAt)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if changed {
		t.Error("a decided transfer must not flip again")
	}

	got, err := st.TransferByID(ctx, id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != transfer.StatusApproved {
		t.Errorf("expected approved, got %s", got.Status)
	}
	if got.DecidedBy != "manager" || got.DecidedAt == nil {
		t.Errorf("expected decision metadata, got by=%q at=%v", got.DecidedBy, got.DecidedAt)
	}
}

func TestTransfers_FilterByStatus(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := st.InsertTransfer(ctx, transfer.Transfer{
			FromBarracksID: 1, ToBarracksID: 2, ItemID: 10,
			Quantity: ledger.Dec(50), Status: transfer.StatusPending, TransferDate: day(1),
		}); err != nil {
			t.Fatalf("failed to insert transfer: %v", err)
		}
	}
	id, _ := st.InsertTransfer(ctx, transfer.Transfer{
		FromBarracksID: 1, ToBarracksID: 2, ItemID: 10,
		Quantity: ledger.Dec(50), Status: transfer.StatusPending, TransferDate: day(1),
	})
	if _, err := st.MarkDecided(ctx, id, transfer.StatusApproved, "manager", time.Now().UTC()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pending, total, err := st.Transfers(ctx, transfer.StatusPending, 50, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 3 || len(pending) != 3 {
		t.Errorf("expected 3 pending transfers, got %d (total %d)", len(pending), total)
	}

	all, total, err := st.Transfers(ctx, "", 50, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 4 || len(all) != 4 {
		t.Errorf("expected 4 transfers in all, got %d (total %d)", len(all), total)
	}
}

// =============================================================================
// PRICE WINDOW TESTS
// =============================================================================

func TestWindows_NewestStartFirst(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	station, err := st.CreateStation(ctx, sqlite.Station{Name: "Airport Station"})
	if err != nil {
		t.Fatalf("failed to create station: %v", err)
	}

	older, err := st.InsertWindow(ctx, pricing.Window{StationID: station.ID, Price: ledger.Dec(2800), StartDate: day(1)})
	if err != nil {
		t.Fatalf("failed to insert window: %v", err)
	}
	newer, err := st.InsertWindow(ctx, pricing.Window{StationID: station.ID, Price: ledger.Dec(2890), StartDate: day(8)})
	if err != nil {
		t.Fatalf("failed to insert window: %v", err)
	}

	windows, err := st.WindowsByStation(ctx, station.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(windows) != 2 {
		t.Fatalf("expected 2 windows, got %d", len(windows))
	}
	if windows[0].ID != newer.ID || windows[1].ID != older.ID {
		t.Errorf("expected newest start first, got %d then %d", windows[0].ID, windows[1].ID)
	}
}

func TestUpdateWindow_UnknownIDIsNotFound(t *testing.T) {
	st := newTestStore(t)

	_, err := st.UpdateWindow(context.Background(), pricing.Window{ID: 404, StationID: 1, Price: ledger.Dec(2900), StartDate: day(1)})
	if !ledger.IsNotFound(err) {
		t.Fatalf("expected a not-found error, got %v", err)
	}
}

func TestSetStationPrice_Materializes(t *testing.T) {
	// GIVEN: A station with no materialized price
	// WHEN: The price is set and later cleared
	// THEN: Both the station row and the sale-flow read see the change

	st := newTestStore(t)
	ctx := context.Background()

	station, err := st.CreateStation(ctx, sqlite.Station{Name: "Central Station"})
	if err != nil {
		t.Fatalf("failed to create station: %v", err)
	}

	price := ledger.Dec(2850)
	if err := st.SetStationPrice(ctx, station.ID, &price); err != nil {
		t.Fatalf("failed to set price: %v", err)
	}
	sp, err := st.StationPrice(ctx, station.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sp.CurrentPrice == nil || !sp.CurrentPrice.Equal(price) {
		t.Errorf("expected materialized price 2850, got %v", sp.CurrentPrice)
	}

	if err := st.SetStationPrice(ctx, station.ID, nil); err != nil {
		t.Fatalf("failed to clear price: %v", err)
	}
	sp, _ = st.StationPrice(ctx, station.ID)
	if sp.CurrentPrice != nil {
		t.Errorf("expected cleared price, got %v", sp.CurrentPrice)
	}
}
