/*
Package sales posts fuel sales and station stock replenishments through the
ledger engine.

PURPOSE:
  A sale is the system's canonical two-legged movement: fuel leaves the
  station (stock debit) and the client's account is charged (debt credit).
  Both legs, plus the immutable sale row itself, commit in one transaction -
  a failed leg leaves no trace of the other.

PRECONDITIONS (checked before anything is written):
  - station exists and has a current fuel price
  - unit price matches the station's current price within 0.01
  - requested quantity does not exceed the station's stock balance
    (re-checked inside the transaction against the consistent snapshot)
*/
package sales

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fuelops/backoffice/ledger"
)

// PriceTolerance is the maximum absolute difference allowed between the
// submitted unit price and the station's current price.
var PriceTolerance = decimal.NewFromFloat(0.01)

// =============================================================================
// ERRORS
// =============================================================================

type precondError struct{ msg string }

func (e precondError) Error() string { return e.msg }
func (e precondError) Unwrap() error { return ledger.ErrValidation }

var (
	// ErrNoCurrentPrice rejects sales for stations with no effective price.
	ErrNoCurrentPrice error = precondError{msg: "station does not have a current fuel price set"}

	// ErrPriceMismatch rejects sales whose unit price drifted from the
	// station's current price by more than PriceTolerance.
	ErrPriceMismatch error = precondError{msg: "unit price does not match station current fuel price"}
)

// =============================================================================
// TYPES
// =============================================================================

// Sale is an immutable record of one fuel sale. It is never updated after
// creation; its balance effects live in the ledger.
type Sale struct {
	ID         int64
	StationID  int64
	VehicleID  int64
	ClientID   int64
	Quantity   decimal.Decimal
	UnitPrice  decimal.Decimal
	TotalPrice decimal.Decimal
	SaleDate   time.Time
	CreatedAt  time.Time
}

// Input carries the validated fields of a sale request.
type Input struct {
	StationID  int64
	VehicleID  int64
	ClientID   int64
	Quantity   decimal.Decimal
	UnitPrice  decimal.Decimal
	TotalPrice decimal.Decimal
	SaleDate   time.Time
}

// StationPrice is the slice of the station row the sale flow needs.
type StationPrice struct {
	ID           int64
	CurrentPrice *decimal.Decimal
}

// Store is the read surface the service needs outside the transaction.
type Store interface {
	StationPrice(ctx context.Context, stationID int64) (*StationPrice, error)
	StationExists(ctx context.Context, stationID int64) (bool, error)
	ClientExists(ctx context.Context, clientID int64) (bool, error)
}

// SaleWriter is the transaction-scoped capability of inserting the sale row.
// The SQL store's transaction view implements it; the engine's fn hook
// type-asserts to it.
type SaleWriter interface {
	InsertSale(ctx context.Context, s Sale) (int64, error)
}

// =============================================================================
// SERVICE
// =============================================================================

type Service struct {
	Engine *ledger.Engine
	Store  Store
}

func NewService(engine *ledger.Engine, store Store) *Service {
	return &Service{Engine: engine, Store: store}
}

func validateInput(in Input) error {
	if in.StationID == 0 || in.VehicleID == 0 || in.ClientID == 0 {
		return ledger.Invalidf("stationId, vehicleId and clientId are required")
	}
	if !in.Quantity.IsPositive() {
		return ledger.Invalidf("quantity must be positive")
	}
	if !in.UnitPrice.IsPositive() {
		return ledger.Invalidf("unitPrice must be positive")
	}
	if in.SaleDate.IsZero() {
		return ledger.Invalidf("saleDate is required")
	}
	return nil
}

// Post records a sale: one sale row, a station stock debit and a client
// charge, atomically. The returned sale carries the assigned id.
func (s *Service) Post(ctx context.Context, in Input) (*Sale, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}

	station, err := s.Store.StationPrice(ctx, in.StationID)
	if err != nil {
		return nil, err
	}
	if station == nil {
		return nil, &ledger.NotFoundError{Kind: "station", ID: in.StationID}
	}
	if station.CurrentPrice == nil {
		return nil, ErrNoCurrentPrice
	}
	if in.UnitPrice.Sub(*station.CurrentPrice).Abs().GreaterThan(PriceTolerance) {
		return nil, ErrPriceMismatch
	}

	ok, err := s.Store.ClientExists(ctx, in.ClientID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &ledger.NotFoundError{Kind: "client", ID: in.ClientID}
	}

	total := in.Quantity.Mul(in.UnitPrice).Round(2)
	if !in.TotalPrice.IsZero() && in.TotalPrice.Sub(total).Abs().GreaterThan(PriceTolerance) {
		return nil, ledger.Invalidf("totalPrice does not match quantity * unitPrice")
	}

	sale := Sale{
		StationID:  in.StationID,
		VehicleID:  in.VehicleID,
		ClientID:   in.ClientID,
		Quantity:   in.Quantity.Round(2),
		UnitPrice:  in.UnitPrice.Round(2),
		TotalPrice: total,
		SaleDate:   in.SaleDate,
	}

	stationKey := ledger.StationStock(in.StationID)
	movements := []ledger.Movement{
		{
			Owner:        stationKey,
			Out:          sale.Quantity,
			Date:         sale.SaleDate,
			Reference:    fmt.Sprintf("Fuel sale - %sL to client %d, vehicle %d", sale.Quantity.StringFixed(2), sale.ClientID, sale.VehicleID),
			Precondition: ledger.RequireAtLeast(stationKey, sale.Quantity),
		},
		{
			Owner:     ledger.ClientAccount(in.ClientID),
			Out:       total,
			Date:      sale.SaleDate,
			Reference: fmt.Sprintf("Fuel sale - %sL at %s/L from station %d", sale.Quantity.StringFixed(2), sale.UnitPrice.StringFixed(2), sale.StationID),
		},
	}

	_, err = s.Engine.ApplyAllWith(ctx, movements, func(tx ledger.Store) error {
		w, ok := tx.(SaleWriter)
		if !ok {
			return ledger.ErrStoreRequired
		}
		id, err := w.InsertSale(ctx, sale)
		if err != nil {
			return err
		}
		sale.ID = id
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &sale, nil
}

// AddStock replenishes a station's fuel stock: one stock-in movement, one
// ledger entry. Returns the entry so callers can report the new balance.
func (s *Service) AddStock(ctx context.Context, stationID int64, quantity decimal.Decimal, date time.Time, description string) (*ledger.Entry, error) {
	if stationID == 0 {
		return nil, ledger.Invalidf("stationId is required")
	}
	if !quantity.IsPositive() {
		return nil, ledger.Invalidf("quantity must be positive")
	}
	ok, err := s.Store.StationExists(ctx, stationID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &ledger.NotFoundError{Kind: "station", ID: stationID}
	}

	if description == "" {
		description = fmt.Sprintf("Stock addition - %sL", quantity.StringFixed(2))
	}
	return s.Engine.Apply(ctx, ledger.Movement{
		Owner:     ledger.StationStock(stationID),
		In:        quantity.Round(2),
		Date:      date,
		Reference: description,
	})
}

// StockBalance resolves a station's current stock from the ledger.
func (s *Service) StockBalance(ctx context.Context, stationID int64) (decimal.Decimal, error) {
	return s.Engine.CurrentBalance(ctx, ledger.StationStock(stationID))
}
