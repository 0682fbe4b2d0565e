/*
store.go - Persistence interfaces for ledger entries and stock levels

PURPOSE:
  Defines the contract between the engine and the database. Implementations
  exist for SQLite (store/sqlite) and in-memory (ledger/store).

APPEND-ONLY CONTRACT:
  AppendEntry is the only write on the ledger table. There is no update or
  delete; corrections are new offsetting entries.

LEVEL CAS CONTRACT:
  SaveLevel is a compare-and-swap: the implementation must reject the write
  with ErrConflict when the stored version no longer matches the version the
  caller read (or when a concurrent insert won the race for a new owner key).
  This is what closes the check-then-act window on concurrent movements.
*/
package ledger

import "context"

// Store handles persistence of ledger entries and stock levels.
type Store interface {
	// AppendEntry persists one immutable entry. This is the ONLY ledger write.
	AppendEntry(ctx context.Context, e Entry) error

	// LatestEntry returns the most recent entry for the owner key, ordered by
	// (entry_date DESC, created_at DESC, insertion order DESC), or nil if the
	// owner has no entries yet.
	LatestEntry(ctx context.Context, owner OwnerKey) (*Entry, error)

	// Entries returns a page of entries for the owner, newest first, plus the
	// total count.
	Entries(ctx context.Context, owner OwnerKey, limit, offset int) ([]Entry, int, error)

	// Level returns the cached level for the owner key, or nil if absent.
	Level(ctx context.Context, owner OwnerKey) (*StockLevel, error)

	// SaveLevel inserts (Version == 0) or CAS-updates (Version > 0) the
	// owner's level row. Returns ErrConflict on a lost race.
	SaveLevel(ctx context.Context, lvl StockLevel) error
}

// TxStore wraps Store with transaction support. The engine performs every
// mutation through WithTx so a failed leg rolls back all previous legs.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back, otherwise it is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}
