package ledger

import (
	"context"

	"github.com/shopspring/decimal"
)

// =============================================================================
// BALANCE RESOLVER
// =============================================================================

// Resolver answers "what is the current balance of this owner key". It reads
// the latest ledger entry and returns its snapshot balance, or zero when the
// owner has no history. It has no side effects and works both standalone and
// against a transaction-scoped Store.
type Resolver struct {
	Store Store
}

func NewResolver(store Store) *Resolver {
	return &Resolver{Store: store}
}

// CurrentBalance returns the balance snapshot of the most recent entry for
// the owner key, zero if none exists.
func (r *Resolver) CurrentBalance(ctx context.Context, owner OwnerKey) (decimal.Decimal, error) {
	last, err := r.Store.LatestEntry(ctx, owner)
	if err != nil {
		return decimal.Zero, err
	}
	if last == nil {
		return decimal.Zero, nil
	}
	return last.Balance, nil
}
