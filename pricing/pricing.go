/*
Package pricing maintains station fuel prices as validity windows and keeps
each station's materialized "current price" in sync.

PURPOSE:
  A station's price changes over time via windows {price, startDate, endDate}.
  Reads want a single current price without scanning windows, so the station
  row caches it. The cache is recomputed after EVERY window create, update,
  and delete - it never drifts silently.

ELIGIBILITY RULE:
  A window holds the current price when startDate <= now and, when an
  endDate is set, now <= endDate. Among eligible windows the latest
  startDate wins, ties broken by highest id. No eligible window means the
  station has no current price (sales are rejected until one is set).
*/
package pricing

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fuelops/backoffice/ledger"
)

// =============================================================================
// TYPES
// =============================================================================

// Window is one price validity window for a station. EndDate is optional;
// a nil EndDate means the window stays eligible until superseded.
type Window struct {
	ID        int64
	StationID int64
	Price     decimal.Decimal
	StartDate time.Time
	EndDate   *time.Time
	CreatedAt time.Time
}

// Store is the persistence surface the pricing service needs.
type Store interface {
	InsertWindow(ctx context.Context, w Window) (Window, error)
	UpdateWindow(ctx context.Context, w Window) (Window, error)
	DeleteWindow(ctx context.Context, id int64) error
	WindowByID(ctx context.Context, id int64) (*Window, error)
	WindowsByStation(ctx context.Context, stationID int64) ([]Window, error)

	// SetStationPrice writes the materialized current price; nil clears it.
	SetStationPrice(ctx context.Context, stationID int64, price *decimal.Decimal) error

	StationExists(ctx context.Context, stationID int64) (bool, error)
}

// =============================================================================
// RECALCULATOR
// =============================================================================

// Recalculator recomputes one station's current price from its windows.
type Recalculator struct {
	Store Store
	Clock *ledger.Clock
}

// Recalculate picks the effective window as of the business clock's now and
// writes its price (or nil) to the station row. Returns the written price.
func (r *Recalculator) Recalculate(ctx context.Context, stationID int64) (*decimal.Decimal, error) {
	windows, err := r.Store.WindowsByStation(ctx, stationID)
	if err != nil {
		return nil, err
	}

	now := r.Clock.Now()
	var best *Window
	for i := range windows {
		w := &windows[i]
		if w.StartDate.After(now) {
			continue
		}
		if w.EndDate != nil && now.After(*w.EndDate) {
			continue
		}
		if best == nil || w.StartDate.After(best.StartDate) ||
			(w.StartDate.Equal(best.StartDate) && w.ID > best.ID) {
			best = w
		}
	}

	var price *decimal.Decimal
	if best != nil {
		p := best.Price.Round(2)
		price = &p
	}
	if err := r.Store.SetStationPrice(ctx, stationID, price); err != nil {
		return nil, err
	}
	return price, nil
}

// =============================================================================
// SERVICE - window CRUD with recomputation after every mutation
// =============================================================================

type Service struct {
	Store  Store
	Recalc *Recalculator
}

func NewService(store Store, clock *ledger.Clock) *Service {
	return &Service{
		Store:  store,
		Recalc: &Recalculator{Store: store, Clock: clock},
	}
}

func (s *Service) validate(w Window) error {
	if w.StationID == 0 {
		return ledger.Invalidf("stationId is required")
	}
	if !w.Price.IsPositive() {
		return ledger.Invalidf("price must be positive")
	}
	if w.StartDate.IsZero() {
		return ledger.Invalidf("startDate is required")
	}
	if w.EndDate != nil && w.EndDate.Before(w.StartDate) {
		return ledger.Invalidf("endDate must not be before startDate")
	}
	return nil
}

// Create inserts a window and recomputes the station's current price.
func (s *Service) Create(ctx context.Context, w Window) (Window, error) {
	if err := s.validate(w); err != nil {
		return Window{}, err
	}
	ok, err := s.Store.StationExists(ctx, w.StationID)
	if err != nil {
		return Window{}, err
	}
	if !ok {
		return Window{}, &ledger.NotFoundError{Kind: "station", ID: w.StationID}
	}

	created, err := s.Store.InsertWindow(ctx, w)
	if err != nil {
		return Window{}, err
	}
	if _, err := s.Recalc.Recalculate(ctx, w.StationID); err != nil {
		return Window{}, err
	}
	return created, nil
}

// Update modifies a window and recomputes the station's current price.
func (s *Service) Update(ctx context.Context, w Window) (Window, error) {
	existing, err := s.Store.WindowByID(ctx, w.ID)
	if err != nil {
		return Window{}, err
	}
	if existing == nil {
		return Window{}, &ledger.NotFoundError{Kind: "price window", ID: w.ID}
	}
	w.StationID = existing.StationID
	if err := s.validate(w); err != nil {
		return Window{}, err
	}

	updated, err := s.Store.UpdateWindow(ctx, w)
	if err != nil {
		return Window{}, err
	}
	if _, err := s.Recalc.Recalculate(ctx, w.StationID); err != nil {
		return Window{}, err
	}
	return updated, nil
}

// Delete removes a window and recomputes the station's current price.
func (s *Service) Delete(ctx context.Context, id int64) error {
	existing, err := s.Store.WindowByID(ctx, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return &ledger.NotFoundError{Kind: "price window", ID: id}
	}
	if err := s.Store.DeleteWindow(ctx, id); err != nil {
		return err
	}
	_, err = s.Recalc.Recalculate(ctx, existing.StationID)
	return err
}

// List returns all windows for a station, newest start first.
func (s *Service) List(ctx context.Context, stationID int64) ([]Window, error) {
	ok, err := s.Store.StationExists(ctx, stationID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &ledger.NotFoundError{Kind: "station", ID: stationID}
	}
	return s.Store.WindowsByStation(ctx, stationID)
}
