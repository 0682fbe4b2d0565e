/*
Package ledger is the transactional ledger-balance engine.

PURPOSE:
  Every balance-affecting event in the system - fuel leaving a station,
  money owed by a client, stock moving between depots - is recorded as an
  immutable ledger entry carrying the running balance after the event.
  The engine guarantees that the cached stock level and the latest ledger
  entry for the same owner key never drift apart: both are written inside
  one store transaction.

KEY CONCEPTS IN THIS FILE (types.go):
  - OwnerKey: composite identity of the balance-bearing account
    (station stock, client money, or barracks+item stock)
  - Entry: an immutable ledger row with in/out amounts and balance snapshot
  - StockLevel: the mutable "current quantity" cache, CAS-guarded
  - Movement: one requested mutation with an optional precondition

DESIGN PRINCIPLES:
  1. Immutability: entries are never updated or deleted
  2. Precision: decimal.Decimal at 2 decimal places, never float64
  3. Atomicity: a movement writes one entry and one level, or nothing

SEE ALSO:
  - engine.go: the transactional mutation engine
  - resolver.go: balance resolution from the latest entry
  - store.go: persistence interfaces
*/
package ledger

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// OWNER KEY - Identity of a balance-bearing account
// =============================================================================

// Domain names the kind of account a ledger tracks.
type Domain string

const (
	// DomainStationStock tracks fuel quantity held at a station, in liters.
	DomainStationStock Domain = "station_stock"

	// DomainClientAccount tracks money a client owes. A positive balance is
	// debt; payments reduce it and may push it negative (credit in hand).
	DomainClientAccount Domain = "client"

	// DomainBarrackStock tracks one item's quantity at one barracks (depot).
	DomainBarrackStock Domain = "barrack_stock"
)

// Clamped reports whether balances in this domain are floored at zero.
// Physical stock cannot go negative; money accounts can (client overpaid).
func (d Domain) Clamped() bool {
	return d == DomainStationStock || d == DomainBarrackStock
}

// DebtConvention reports whether the domain tracks amount owed: amountOut
// records value delivered on credit and RAISES the balance, amountIn
// records payments and lowers it. Stock domains use the plain convention
// (in raises, out lowers).
func (d Domain) DebtConvention() bool {
	return d == DomainClientAccount
}

// OwnerKey identifies the account an entry or level belongs to.
// ItemID is only meaningful for DomainBarrackStock and is zero elsewhere.
type OwnerKey struct {
	Domain  Domain
	OwnerID int64
	ItemID  int64
}

func StationStock(stationID int64) OwnerKey {
	return OwnerKey{Domain: DomainStationStock, OwnerID: stationID}
}

func ClientAccount(clientID int64) OwnerKey {
	return OwnerKey{Domain: DomainClientAccount, OwnerID: clientID}
}

func BarrackStock(barracksID, itemID int64) OwnerKey {
	return OwnerKey{Domain: DomainBarrackStock, OwnerID: barracksID, ItemID: itemID}
}

func (k OwnerKey) String() string {
	if k.ItemID != 0 {
		return fmt.Sprintf("%s/%d/%d", k.Domain, k.OwnerID, k.ItemID)
	}
	return fmt.Sprintf("%s/%d", k.Domain, k.OwnerID)
}

// =============================================================================
// AMOUNT HELPERS
// =============================================================================

// Dec builds a 2-decimal amount from a float. Test and handler convenience.
func Dec(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(2)
}

// MustParseDec parses a stored decimal string, returning zero on failure.
// Stored values are written by us, so a parse failure means a corrupt row.
func MustParseDec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// =============================================================================
// ENTRY - Immutable ledger row
// =============================================================================

// Entry records one balance-affecting event. Once written it is never
// modified; corrections are new offsetting entries.
//
// Balance is the running total after applying this entry:
//
//	balance_n = balance_{n-1} + amountIn_n - amountOut_n
//
// clamped at zero for stock domains, with the sign flipped for debt
// domains (see Domain.DebtConvention). EntryDate is the business date of the
// event; CreatedAt is the insertion time and breaks ordering ties.
type Entry struct {
	ID        string
	Owner     OwnerKey
	AmountIn  decimal.Decimal
	AmountOut decimal.Decimal
	Balance   decimal.Decimal
	EntryDate time.Time
	Reference string
	CreatedAt time.Time
}

// =============================================================================
// STOCK LEVEL - Mutable balance cache, exclusively owned by the engine
// =============================================================================

// StockLevel caches the current balance for fast reads. It is only ever
// written by the engine, in the same transaction as its ledger entry, so
// Qty must always equal the latest Entry.Balance for the same owner key.
// Version implements optimistic concurrency: every save is a compare-and-swap
// against the version that was read.
type StockLevel struct {
	Owner     OwnerKey
	Qty       decimal.Decimal
	Version   int64
	UpdatedAt time.Time
}

// =============================================================================
// MOVEMENT - One requested balance mutation
// =============================================================================

// Precondition is evaluated against the resolved current balance before any
// write. Returning an error aborts the whole operation with nothing written.
type Precondition func(current decimal.Decimal) error

// Movement describes a single credit/debit against one owner key.
// In and Out must be non-negative; business events are either credits or
// debits, so typically exactly one of them is non-zero.
type Movement struct {
	Owner        OwnerKey
	In           decimal.Decimal
	Out          decimal.Decimal
	Date         time.Time
	Reference    string
	Precondition Precondition
}
