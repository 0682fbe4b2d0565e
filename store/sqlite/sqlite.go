/*
Package sqlite provides the SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements every persistence interface of the system using SQLite. In
  production the same patterns apply to MySQL/PostgreSQL - only minor SQL
  dialect differences.

INTERFACES IMPLEMENTED:
  ledger.TxStore:  append-only entries, stock levels, transactions
  pricing.Store:   price windows + materialized station price
  sales.Store:     sale-flow reads (station price, client existence)
  transfer.Store:  stock transfer rows and lookups

APPEND-ONLY ENFORCEMENT:
  ledger_entries never sees an UPDATE or DELETE. Corrections are offsetting
  entries, not edits.

CONCURRENCY:
  stock_levels carries a version column; every write is a compare-and-swap
  (0 rows affected means a lost race, surfaced as ledger.ErrConflict).
  A sync.RWMutex serializes writers on top of SQLite's single-writer model.

WAL MODE:
  The database is opened with WAL (Write-Ahead Logging): readers don't
  block, one writer at a time, better crash recovery.

USAGE:
  st, err := sqlite.New("./data/backoffice.db")
  if err != nil {
      log.Fatal(err)
  }
  defer st.Close()

  engine := ledger.NewEngine(st, ledger.NewClock(ledger.DefaultOffsetMinutes))

MIGRATION:
  Schema is auto-migrated once in New(), never per request. For production,
  use a proper migration tool (golang-migrate, goose) with versioned
  migrations.

SEE ALSO:
  - ledger/store.go: interface definitions
  - ledger/store/memory.go: in-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/fuelops/backoffice/ledger"
	"github.com/fuelops/backoffice/sales"
	"github.com/fuelops/backoffice/transfer"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a SQLite store at the given path and migrates the schema.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Each pooled connection would otherwise get its own private
		// in-memory database.
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	-- Ledger entries (append-only; one running-balance snapshot per row)
	CREATE TABLE IF NOT EXISTS ledger_entries (
		id TEXT PRIMARY KEY,
		domain TEXT NOT NULL,
		owner_id INTEGER NOT NULL,
		item_id INTEGER NOT NULL DEFAULT 0,
		amount_in TEXT NOT NULL,
		amount_out TEXT NOT NULL,
		balance TEXT NOT NULL,
		entry_date TEXT NOT NULL,
		reference TEXT,
		created_at TEXT NOT NULL
	);

	-- Balance resolution (hot path): latest entry per owner key
	CREATE INDEX IF NOT EXISTS idx_ledger_owner_date
		ON ledger_entries(domain, owner_id, item_id, entry_date DESC, created_at DESC);

	-- Stock levels (one mutable row per owner key, CAS on version)
	CREATE TABLE IF NOT EXISTS stock_levels (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		domain TEXT NOT NULL,
		owner_id INTEGER NOT NULL,
		item_id INTEGER NOT NULL DEFAULT 0,
		qty TEXT NOT NULL,
		version INTEGER NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE(domain, owner_id, item_id)
	);

	-- Stations
	CREATE TABLE IF NOT EXISTS stations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		address TEXT,
		phone TEXT,
		email TEXT,
		current_fuel_price TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS pumps (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		station_id INTEGER NOT NULL REFERENCES stations(id) ON DELETE CASCADE,
		serial_number TEXT NOT NULL,
		description TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_pumps_station ON pumps(station_id);

	CREATE TABLE IF NOT EXISTS fuel_products (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS station_store (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		station_id INTEGER NOT NULL,
		product_id INTEGER NOT NULL,
		qty TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE(station_id, product_id)
	);

	-- Price windows; the winning window is materialized into
	-- stations.current_fuel_price after every mutation
	CREATE TABLE IF NOT EXISTS price_windows (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		station_id INTEGER NOT NULL REFERENCES stations(id) ON DELETE CASCADE,
		price TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_price_windows_station
		ON price_windows(station_id, start_date DESC);

	-- Branches double as the vehicle registry: sales reference them as
	-- vehicle_id (original schema kept)
	CREATE TABLE IF NOT EXISTS branches (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		address TEXT,
		created_at TEXT NOT NULL
	);

	-- Clients
	CREATE TABLE IF NOT EXISTS clients (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		email TEXT,
		phone TEXT,
		address TEXT,
		created_at TEXT NOT NULL
	);

	-- Sales (immutable once inserted)
	CREATE TABLE IF NOT EXISTS sales (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		station_id INTEGER NOT NULL,
		vehicle_id INTEGER NOT NULL,
		client_id INTEGER NOT NULL,
		quantity TEXT NOT NULL,
		unit_price TEXT NOT NULL,
		total_price TEXT NOT NULL,
		sale_date TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sales_station_date ON sales(station_id, sale_date);
	CREATE INDEX IF NOT EXISTS idx_sales_client_date ON sales(client_id, sale_date);

	-- Stock transfers between barracks depots
	CREATE TABLE IF NOT EXISTS stock_transfers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		from_barracks_id INTEGER NOT NULL,
		to_barracks_id INTEGER NOT NULL,
		item_id INTEGER NOT NULL,
		quantity TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		notes TEXT,
		requested_by TEXT,
		decided_by TEXT,
		transfer_date TEXT NOT NULL,
		created_at TEXT NOT NULL,
		decided_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_transfers_status ON stock_transfers(status);

	CREATE TABLE IF NOT EXISTS barracks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		location TEXT
	);

	CREATE TABLE IF NOT EXISTS items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		unit TEXT
	);

	-- Staff leave requests
	CREATE TABLE IF NOT EXISTS staff_leaves (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		staff_id INTEGER NOT NULL,
		staff_name TEXT NOT NULL,
		leave_type TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		reason TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_leaves_staff ON staff_leaves(staff_id);
	CREATE INDEX IF NOT EXISTS idx_leaves_status ON staff_leaves(status);

	-- Attendance (status 1 = checked in, 0 = checked out)
	CREATE TABLE IF NOT EXISTS checkin_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		user_name TEXT NOT NULL,
		station_id INTEGER NOT NULL,
		station_name TEXT NOT NULL,
		check_in_latitude REAL,
		check_in_longitude REAL,
		check_out_latitude REAL,
		check_out_longitude REAL,
		address TEXT,
		qr_data TEXT,
		status INTEGER NOT NULL DEFAULT 1,
		time_in TEXT NOT NULL,
		time_out TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_checkin_user ON checkin_records(user_id);
	CREATE INDEX IF NOT EXISTS idx_checkin_station ON checkin_records(station_id);

	-- Vehicle conversions
	CREATE TABLE IF NOT EXISTS vehicle_conversions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		vehicle_plate TEXT NOT NULL,
		vehicle_type TEXT NOT NULL,
		conversion_type TEXT NOT NULL,
		amount_charged TEXT NOT NULL,
		service_date TEXT NOT NULL,
		comment TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_conversions_plate ON vehicle_conversions(vehicle_plate);
	CREATE INDEX IF NOT EXISTS idx_conversions_date ON vehicle_conversions(service_date);
	`

	_, err := s.db.Exec(schema)
	return err
}

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// LEDGER STORE (ledger.Store interface)
// =============================================================================

// AppendEntry adds an entry to the ledger.
func (s *Store) AppendEntry(ctx context.Context, e ledger.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendEntry(ctx, s.db, e)
}

func appendEntry(ctx context.Context, q dbtx, e ledger.Entry) error {
	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	query := `
		INSERT INTO ledger_entries
		(id, domain, owner_id, item_id, amount_in, amount_out, balance, entry_date, reference, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := q.ExecContext(ctx, query,
		e.ID,
		string(e.Owner.Domain),
		e.Owner.OwnerID,
		e.Owner.ItemID,
		e.AmountIn.String(),
		e.AmountOut.String(),
		e.Balance.String(),
		e.EntryDate.UTC().Format(time.RFC3339),
		nullString(e.Reference),
		createdAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to append ledger entry: %w", err)
	}
	return nil
}

// LatestEntry returns the most recent entry for the owner key, nil when the
// owner has no history. Ordering: entry_date, then created_at, then rowid -
// two entries written in the same instant resolve by insertion order.
func (s *Store) LatestEntry(ctx context.Context, owner ledger.OwnerKey) (*ledger.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return latestEntry(ctx, s.db, owner)
}

func latestEntry(ctx context.Context, q dbtx, owner ledger.OwnerKey) (*ledger.Entry, error) {
	query := `
		SELECT id, domain, owner_id, item_id, amount_in, amount_out, balance, entry_date, reference, created_at
		FROM ledger_entries
		WHERE domain = ? AND owner_id = ? AND item_id = ?
		ORDER BY entry_date DESC, created_at DESC, rowid DESC
		LIMIT 1
	`
	row := q.QueryRowContext(ctx, query, string(owner.Domain), owner.OwnerID, owner.ItemID)
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Entries returns a page of entries for the owner key, newest first, plus
// the total count.
func (s *Store) Entries(ctx context.Context, owner ledger.OwnerKey, limit, offset int) ([]ledger.Entry, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return entriesPage(ctx, s.db, owner, limit, offset)
}

func entriesPage(ctx context.Context, q dbtx, owner ledger.OwnerKey, limit, offset int) ([]ledger.Entry, int, error) {
	var total int
	err := q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM ledger_entries WHERE domain = ? AND owner_id = ? AND item_id = ?",
		string(owner.Domain), owner.OwnerID, owner.ItemID,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count ledger entries: %w", err)
	}

	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, domain, owner_id, item_id, amount_in, amount_out, balance, entry_date, reference, created_at
		FROM ledger_entries
		WHERE domain = ? AND owner_id = ? AND item_id = ?
		ORDER BY entry_date DESC, created_at DESC, rowid DESC
		LIMIT ? OFFSET ?
	`
	rows, err := q.QueryContext(ctx, query, string(owner.Domain), owner.OwnerID, owner.ItemID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []ledger.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, 0, err
		}
		entries = append(entries, e)
	}
	return entries, total, rows.Err()
}

type scannable interface {
	Scan(dest ...any) error
}

func scanEntry(row scannable) (ledger.Entry, error) {
	var (
		e         ledger.Entry
		domain    string
		amountIn  string
		amountOut string
		balance   string
		entryDate string
		reference sql.NullString
		createdAt string
	)
	err := row.Scan(
		&e.ID, &domain, &e.Owner.OwnerID, &e.Owner.ItemID,
		&amountIn, &amountOut, &balance, &entryDate, &reference, &createdAt,
	)
	if err != nil {
		return e, err
	}
	e.Owner.Domain = ledger.Domain(domain)
	e.AmountIn = ledger.MustParseDec(amountIn)
	e.AmountOut = ledger.MustParseDec(amountOut)
	e.Balance = ledger.MustParseDec(balance)
	e.EntryDate, _ = time.Parse(time.RFC3339, entryDate)
	e.Reference = reference.String
	e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return e, nil
}

// Level returns the stock level row for the owner key, nil when absent.
func (s *Store) Level(ctx context.Context, owner ledger.OwnerKey) (*ledger.StockLevel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return level(ctx, s.db, owner)
}

func level(ctx context.Context, q dbtx, owner ledger.OwnerKey) (*ledger.StockLevel, error) {
	var (
		lvl       ledger.StockLevel
		domain    string
		qty       string
		updatedAt string
	)
	err := q.QueryRowContext(ctx,
		"SELECT domain, owner_id, item_id, qty, version, updated_at FROM stock_levels WHERE domain = ? AND owner_id = ? AND item_id = ?",
		string(owner.Domain), owner.OwnerID, owner.ItemID,
	).Scan(&domain, &lvl.Owner.OwnerID, &lvl.Owner.ItemID, &qty, &lvl.Version, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	lvl.Owner.Domain = ledger.Domain(domain)
	lvl.Qty = ledger.MustParseDec(qty)
	lvl.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &lvl, nil
}

// SaveLevel writes a stock level row with optimistic concurrency:
// Version 0 inserts a fresh row, anything else must match the stored
// version. A lost race surfaces as ledger.ErrConflict.
func (s *Store) SaveLevel(ctx context.Context, lvl ledger.StockLevel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveLevel(ctx, s.db, lvl)
}

func saveLevel(ctx context.Context, q dbtx, lvl ledger.StockLevel) error {
	now := time.Now().UTC().Format(time.RFC3339)
	if lvl.Version == 0 {
		_, err := q.ExecContext(ctx,
			"INSERT INTO stock_levels (domain, owner_id, item_id, qty, version, updated_at) VALUES (?, ?, ?, ?, 1, ?)",
			string(lvl.Owner.Domain), lvl.Owner.OwnerID, lvl.Owner.ItemID, lvl.Qty.String(), now,
		)
		if err != nil {
			if isUniqueConstraintError(err) {
				return ledger.ErrConflict
			}
			return fmt.Errorf("failed to insert stock level: %w", err)
		}
		return nil
	}

	res, err := q.ExecContext(ctx,
		"UPDATE stock_levels SET qty = ?, version = version + 1, updated_at = ? WHERE domain = ? AND owner_id = ? AND item_id = ? AND version = ?",
		lvl.Qty.String(), now, string(lvl.Owner.Domain), lvl.Owner.OwnerID, lvl.Owner.ItemID, lvl.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update stock level: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ledger.ErrConflict
	}
	return nil
}

// =============================================================================
// TRANSACTIONAL STORE (ledger.TxStore interface)
// =============================================================================

// WithTx executes fn within a database transaction. The store passed to fn
// also implements sales.SaleWriter and transfer.Decider, so the sale flow
// and transfer approval can write their primary records in the same
// transaction as the ledger legs.
func (s *Store) WithTx(ctx context.Context, fn func(store ledger.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

type txStore struct {
	tx *sql.Tx
}

// txStore must cover every transaction-scoped capability the services
// type-assert for.
var (
	_ ledger.Store     = (*txStore)(nil)
	_ sales.SaleWriter = (*txStore)(nil)
	_ transfer.Decider = (*txStore)(nil)
)

func (ts *txStore) AppendEntry(ctx context.Context, e ledger.Entry) error {
	return appendEntry(ctx, ts.tx, e)
}

func (ts *txStore) LatestEntry(ctx context.Context, owner ledger.OwnerKey) (*ledger.Entry, error) {
	return latestEntry(ctx, ts.tx, owner)
}

func (ts *txStore) Entries(ctx context.Context, owner ledger.OwnerKey, limit, offset int) ([]ledger.Entry, int, error) {
	return entriesPage(ctx, ts.tx, owner, limit, offset)
}

func (ts *txStore) Level(ctx context.Context, owner ledger.OwnerKey) (*ledger.StockLevel, error) {
	return level(ctx, ts.tx, owner)
}

func (ts *txStore) SaveLevel(ctx context.Context, lvl ledger.StockLevel) error {
	return saveLevel(ctx, ts.tx, lvl)
}

func (ts *txStore) InsertSale(ctx context.Context, sale sales.Sale) (int64, error) {
	return insertSale(ctx, ts.tx, sale)
}

func (ts *txStore) MarkDecided(ctx context.Context, id int64, status transfer.Status, decidedBy string, decidedAt time.Time) (bool, error) {
	return markDecided(ctx, ts.tx, id, status, decidedBy, decidedAt)
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullDecimal(d *decimal.Decimal) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

func parseTimePtr(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t := parseTime(s.String)
	return &t
}

func parseDecimalPtr(s sql.NullString) *decimal.Decimal {
	if !s.Valid || s.String == "" {
		return nil
	}
	d := ledger.MustParseDec(s.String)
	return &d
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
