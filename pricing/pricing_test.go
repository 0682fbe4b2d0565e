package pricing_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fuelops/backoffice/ledger"
	"github.com/fuelops/backoffice/pricing"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

// fakeStore is an in-memory pricing.Store. It records the materialized
// price per station so tests can assert on recomputation.
type fakeStore struct {
	nextID   int64
	windows  map[int64]pricing.Window
	prices   map[int64]*decimal.Decimal
	stations map[int64]bool
}

func newFakeStore(stationIDs ...int64) *fakeStore {
	s := &fakeStore{
		windows:  make(map[int64]pricing.Window),
		prices:   make(map[int64]*decimal.Decimal),
		stations: make(map[int64]bool),
	}
	for _, id := range stationIDs {
		s.stations[id] = true
	}
	return s
}

func (s *fakeStore) InsertWindow(_ context.Context, w pricing.Window) (pricing.Window, error) {
	s.nextID++
	w.ID = s.nextID
	s.windows[w.ID] = w
	return w, nil
}

func (s *fakeStore) UpdateWindow(_ context.Context, w pricing.Window) (pricing.Window, error) {
	if _, ok := s.windows[w.ID]; !ok {
		return pricing.Window{}, errors.New("window missing")
	}
	s.windows[w.ID] = w
	return w, nil
}

func (s *fakeStore) DeleteWindow(_ context.Context, id int64) error {
	delete(s.windows, id)
	return nil
}

func (s *fakeStore) WindowByID(_ context.Context, id int64) (*pricing.Window, error) {
	if w, ok := s.windows[id]; ok {
		return &w, nil
	}
	return nil, nil
}

func (s *fakeStore) WindowsByStation(_ context.Context, stationID int64) ([]pricing.Window, error) {
	var out []pricing.Window
	for _, w := range s.windows {
		if w.StationID == stationID {
			out = append(out, w)
		}
	}
	return out, nil
}

func (s *fakeStore) SetStationPrice(_ context.Context, stationID int64, price *decimal.Decimal) error {
	s.prices[stationID] = price
	return nil
}

func (s *fakeStore) StationExists(_ context.Context, stationID int64) (bool, error) {
	return s.stations[stationID], nil
}

func newService(store *fakeStore) *pricing.Service {
	return pricing.NewService(store, ledger.NewClock(0))
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func window(stationID int64, price float64, start time.Time, end *time.Time) pricing.Window {
	return pricing.Window{
		StationID: stationID,
		Price:     ledger.Dec(price),
		StartDate: start,
		EndDate:   end,
	}
}

// =============================================================================
// RECOMPUTATION TESTS
// =============================================================================

func TestCreate_LatestStartWins(t *testing.T) {
	// GIVEN: Two windows that both cover today
	// WHEN: Both are created
	// THEN: The window with the later startDate holds the current price

	store := newFakeStore(1)
	svc := newService(store)
	ctx := context.Background()
	now := time.Now().UTC()

	if _, err := svc.Create(ctx, window(1, 10, now.AddDate(0, -2, 0), nil)); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := svc.Create(ctx, window(1, 12, now.AddDate(0, -1, 0), nil)); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	price := store.prices[1]
	if price == nil || !price.Equal(ledger.Dec(12)) {
		t.Errorf("expected current price 12, got %v", price)
	}
}

func TestCreate_FutureWindowIsNotEligible(t *testing.T) {
	store := newFakeStore(1)
	svc := newService(store)
	ctx := context.Background()
	now := time.Now().UTC()

	if _, err := svc.Create(ctx, window(1, 99, now.AddDate(0, 1, 0), nil)); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if store.prices[1] != nil {
		t.Errorf("expected no current price for a future-only window, got %v", store.prices[1])
	}
}

func TestCreate_ExpiredWindowIsNotEligible(t *testing.T) {
	store := newFakeStore(1)
	svc := newService(store)
	ctx := context.Background()
	now := time.Now().UTC()

	end := now.AddDate(0, 0, -1)
	if _, err := svc.Create(ctx, window(1, 50, now.AddDate(0, -1, 0), &end)); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if store.prices[1] != nil {
		t.Errorf("expected no current price after the window ended, got %v", store.prices[1])
	}
}

func TestDelete_FallsBackToRemainingWindow(t *testing.T) {
	// GIVEN: Prices 10 then 12, with 12 currently effective
	// WHEN: The 12 window is deleted
	// THEN: The price falls back to 10; deleting the rest clears it

	store := newFakeStore(1)
	svc := newService(store)
	ctx := context.Background()
	now := time.Now().UTC()

	w10, err := svc.Create(ctx, window(1, 10, now.AddDate(0, -2, 0), nil))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	w12, err := svc.Create(ctx, window(1, 12, now.AddDate(0, -1, 0), nil))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if err := svc.Delete(ctx, w12.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	price := store.prices[1]
	if price == nil || !price.Equal(ledger.Dec(10)) {
		t.Errorf("expected fallback price 10, got %v", price)
	}

	if err := svc.Delete(ctx, w10.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if store.prices[1] != nil {
		t.Errorf("expected cleared price after deleting all windows, got %v", store.prices[1])
	}
}

func TestUpdate_Recomputes(t *testing.T) {
	store := newFakeStore(1)
	svc := newService(store)
	ctx := context.Background()
	now := time.Now().UTC()

	w, err := svc.Create(ctx, window(1, 10, now.AddDate(0, -1, 0), nil))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	w.Price = ledger.Dec(11.5)
	if _, err := svc.Update(ctx, w); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	price := store.prices[1]
	if price == nil || !price.Equal(ledger.Dec(11.5)) {
		t.Errorf("expected updated price 11.50, got %v", price)
	}
}

// =============================================================================
// VALIDATION TESTS
// =============================================================================

func TestCreate_Validation(t *testing.T) {
	store := newFakeStore(1)
	svc := newService(store)
	ctx := context.Background()
	start := date(2026, time.January, 1)
	badEnd := date(2025, time.December, 1)

	cases := []struct {
		name string
		w    pricing.Window
	}{
		{"zero price", window(1, 0, start, nil)},
		{"negative price", window(1, -5, start, nil)},
		{"missing start", pricing.Window{StationID: 1, Price: ledger.Dec(10)}},
		{"end before start", window(1, 10, start, &badEnd)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Create(ctx, tc.w); !errors.Is(err, ledger.ErrValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestCreate_UnknownStation(t *testing.T) {
	store := newFakeStore(1)
	svc := newService(store)

	_, err := svc.Create(context.Background(), window(99, 10, date(2026, time.January, 1), nil))
	if !errors.Is(err, ledger.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}
