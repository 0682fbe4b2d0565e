/*
engine.go - Transactional mutation engine

PURPOSE:
  The single write path for every balance change. A movement is applied as
  resolve balance -> evaluate preconditions -> compute new balance ->
  CAS-save the stock level -> append the ledger entry, all inside one store
  transaction. Multi-leg operations (a sale debits station stock and charges
  the client; a transfer approval debits one depot and credits another) pass
  several movements and commit or roll back as a unit.

INVARIANTS:
  1. Exactly one Entry and one StockLevel write per owner key touched,
     or none at all.
  2. StockLevel.Qty equals the latest Entry.Balance after every commit.
  3. Preconditions see the balance as of the open transaction; a concurrent
     winner surfaces as ErrConflict or a failed precondition, never as a
     silent double-spend.
*/
package ledger

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// ENGINE
// =============================================================================

type Engine struct {
	Store TxStore
	Clock *Clock
}

func NewEngine(store TxStore, clock *Clock) *Engine {
	return &Engine{Store: store, Clock: clock}
}

// CurrentBalance resolves the owner's balance outside any transaction.
// Read APIs use this; mutations re-resolve inside their own transaction.
func (e *Engine) CurrentBalance(ctx context.Context, owner OwnerKey) (decimal.Decimal, error) {
	return NewResolver(e.Store).CurrentBalance(ctx, owner)
}

// Apply executes a single movement atomically.
func (e *Engine) Apply(ctx context.Context, m Movement) (*Entry, error) {
	entries, err := e.ApplyAll(ctx, []Movement{m})
	if err != nil {
		return nil, err
	}
	return &entries[0], nil
}

// ApplyAll executes all movements inside one transaction. Either every
// movement's level update and ledger entry commit, or none do.
func (e *Engine) ApplyAll(ctx context.Context, movements []Movement) ([]Entry, error) {
	return e.ApplyAllWith(ctx, movements, nil)
}

// ApplyAllWith additionally runs fn inside the same transaction, before the
// movements. Domain services use fn to write their primary record (the sale
// row, the transfer status flip) atomically with the balance changes; fn
// receives the transaction-scoped Store and may type-assert it to an
// extended interface.
func (e *Engine) ApplyAllWith(ctx context.Context, movements []Movement, fn func(Store) error) ([]Entry, error) {
	if len(movements) == 0 && fn == nil {
		return nil, Invalidf("no movements to apply")
	}
	for _, m := range movements {
		if err := validateMovement(m); err != nil {
			return nil, err
		}
	}

	entries := make([]Entry, 0, len(movements))
	err := e.Store.WithTx(ctx, func(s Store) error {
		if fn != nil {
			if err := fn(s); err != nil {
				return err
			}
		}
		for _, m := range movements {
			entry, err := e.applyOne(ctx, s, m)
			if err != nil {
				return err
			}
			entries = append(entries, entry)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// validateMovement rejects caller errors before any transaction is opened.
func validateMovement(m Movement) error {
	if m.Owner.Domain == "" || m.Owner.OwnerID == 0 {
		return Invalidf("movement owner key is incomplete")
	}
	if m.In.IsNegative() || m.Out.IsNegative() {
		return Invalidf("movement amounts must be non-negative")
	}
	if m.In.IsZero() && m.Out.IsZero() {
		return Invalidf("movement must credit or debit a non-zero amount")
	}
	return nil
}

func (e *Engine) applyOne(ctx context.Context, s Store, m Movement) (Entry, error) {
	head, err := s.LatestEntry(ctx, m.Owner)
	if err != nil {
		return Entry{}, err
	}
	current := decimal.Zero
	if head != nil {
		current = head.Balance
	}

	if m.Precondition != nil {
		if err := m.Precondition(current); err != nil {
			return Entry{}, err
		}
	}

	// Stock domains: in raises, out lowers. Debt domains track amount
	// owed, so value delivered (out) raises the balance and payments (in)
	// lower it.
	next := current.Add(m.In).Sub(m.Out)
	if m.Owner.Domain.DebtConvention() {
		next = current.Add(m.Out).Sub(m.In)
	}
	if m.Owner.Domain.Clamped() && next.IsNegative() {
		next = decimal.Zero
	}

	// Level row carries the version we read; SaveLevel is a CAS against it.
	lvl, err := s.Level(ctx, m.Owner)
	if err != nil {
		return Entry{}, err
	}
	save := StockLevel{Owner: m.Owner, Qty: next, UpdatedAt: e.Clock.Now()}
	if lvl != nil {
		save.Version = lvl.Version
	}
	if err := s.SaveLevel(ctx, save); err != nil {
		return Entry{}, err
	}

	date := m.Date
	if date.IsZero() {
		date = e.Clock.Now()
	}
	// The entry just written must become the head, or the level cache and
	// the resolved balance would diverge. A backdated movement keeps its
	// effect but its effective date floors at the head's date.
	if head != nil && date.Before(head.EntryDate) {
		date = head.EntryDate
	}
	entry := Entry{
		ID:        uuid.NewString(),
		Owner:     m.Owner,
		AmountIn:  m.In.Round(2),
		AmountOut: m.Out.Round(2),
		Balance:   next.Round(2),
		EntryDate: date,
		Reference: m.Reference,
		CreatedAt: e.Clock.Now(),
	}
	if err := s.AppendEntry(ctx, entry); err != nil {
		return Entry{}, err
	}
	return entry, nil
}

// =============================================================================
// COMMON PRECONDITIONS
// =============================================================================

// RequireAtLeast fails the movement when the resolved balance is below the
// requested amount. Used by sales (station stock) and transfer approvals
// (source depot stock).
func RequireAtLeast(owner OwnerKey, requested decimal.Decimal) Precondition {
	return func(current decimal.Decimal) error {
		if current.LessThan(requested) {
			return &InsufficientBalanceError{Owner: owner, Available: current, Requested: requested}
		}
		return nil
	}
}

// EntryID generates a ledger entry id. Exposed for stores that need to
// backfill entries (seed scenarios).
func EntryID() string {
	return uuid.NewString()
}
