package sqlite

// Resource rows: stations, pumps, fuel products, station store, clients,
// barracks, items, price windows, staff leaves, attendance, vehicle
// conversions. Thin CRUD around the ledger core; no business rules here
// beyond uniqueness the schema enforces.

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fuelops/backoffice/ledger"
	"github.com/fuelops/backoffice/pricing"
	"github.com/fuelops/backoffice/sales"
	"github.com/fuelops/backoffice/transfer"
)

// =============================================================================
// STATIONS
// =============================================================================

type Station struct {
	ID               int64
	Name             string
	Address          string
	Phone            string
	Email            string
	CurrentFuelPrice *decimal.Decimal
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (s *Store) CreateStation(ctx context.Context, st Station) (*Station, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC().Format(time.RFC3339)
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO stations (name, address, phone, email, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)",
		st.Name, nullString(st.Address), nullString(st.Phone), nullString(st.Email), now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create station: %w", err)
	}
	st.ID, _ = res.LastInsertId()
	st.CreatedAt = parseTime(now)
	st.UpdatedAt = st.CreatedAt
	return &st, nil
}

func (s *Store) Station(ctx context.Context, id int64) (*Station, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return scanStation(s.db.QueryRowContext(ctx,
		"SELECT id, name, address, phone, email, current_fuel_price, created_at, updated_at FROM stations WHERE id = ?", id))
}

func (s *Store) Stations(ctx context.Context) ([]Station, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, address, phone, email, current_fuel_price, created_at, updated_at FROM stations ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Station
	for rows.Next() {
		st, err := scanStation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *st)
	}
	return out, rows.Err()
}

func scanStation(row scannable) (*Station, error) {
	var (
		st                 Station
		address            sql.NullString
		phone              sql.NullString
		email              sql.NullString
		price              sql.NullString
		createdAt, updated string
	)
	err := row.Scan(&st.ID, &st.Name, &address, &phone, &email, &price, &createdAt, &updated)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	st.Address = address.String
	st.Phone = phone.String
	st.Email = email.String
	st.CurrentFuelPrice = parseDecimalPtr(price)
	st.CreatedAt = parseTime(createdAt)
	st.UpdatedAt = parseTime(updated)
	return &st, nil
}

func (s *Store) UpdateStation(ctx context.Context, st Station) (*Station, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"UPDATE stations SET name = ?, address = ?, phone = ?, email = ?, updated_at = ? WHERE id = ?",
		st.Name, nullString(st.Address), nullString(st.Phone), nullString(st.Email),
		time.Now().UTC().Format(time.RFC3339), st.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update station: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, &ledger.NotFoundError{Kind: "station", ID: st.ID}
	}
	return scanStation(s.db.QueryRowContext(ctx,
		"SELECT id, name, address, phone, email, current_fuel_price, created_at, updated_at FROM stations WHERE id = ?", st.ID))
}

func (s *Store) DeleteStation(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM stations WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &ledger.NotFoundError{Kind: "station", ID: id}
	}
	return nil
}

// StationExists satisfies both pricing.Store and sales.Store.
func (s *Store) StationExists(ctx context.Context, id int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return existsStmt(ctx, s.db, "SELECT COUNT(*) FROM stations WHERE id = ?", id)
}

// StationPrice is the sale-flow read: station id plus its materialized
// current price, nil when the station does not exist.
func (s *Store) StationPrice(ctx context.Context, stationID int64) (*sales.StationPrice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		sp    sales.StationPrice
		price sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT id, current_fuel_price FROM stations WHERE id = ?", stationID,
	).Scan(&sp.ID, &price)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	sp.CurrentPrice = parseDecimalPtr(price)
	return &sp, nil
}

// SetStationPrice materializes the effective price (or clears it). Part of
// pricing.Store; called by the recalculator after every window mutation.
func (s *Store) SetStationPrice(ctx context.Context, stationID int64, price *decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"UPDATE stations SET current_fuel_price = ?, updated_at = ? WHERE id = ?",
		nullDecimal(price), time.Now().UTC().Format(time.RFC3339), stationID,
	)
	return err
}

// =============================================================================
// PUMPS
// =============================================================================

type Pump struct {
	ID           int64
	StationID    int64
	SerialNumber string
	Description  string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (s *Store) Pumps(ctx context.Context, stationID int64) ([]Pump, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, station_id, serial_number, description, created_at, updated_at FROM pumps WHERE station_id = ? ORDER BY created_at DESC",
		stationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Pump
	for rows.Next() {
		var p Pump
		var createdAt, updatedAt string
		if err := rows.Scan(&p.ID, &p.StationID, &p.SerialNumber, &p.Description, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		p.CreatedAt = parseTime(createdAt)
		p.UpdatedAt = parseTime(updatedAt)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) AddPump(ctx context.Context, p Pump) (*Pump, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC().Format(time.RFC3339)
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO pumps (station_id, serial_number, description, created_at, updated_at) VALUES (?, ?, ?, ?, ?)",
		p.StationID, p.SerialNumber, p.Description, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to add pump: %w", err)
	}
	p.ID, _ = res.LastInsertId()
	p.CreatedAt = parseTime(now)
	p.UpdatedAt = p.CreatedAt
	return &p, nil
}

// =============================================================================
// FUEL PRODUCTS / STATION STORE
// =============================================================================

type FuelProduct struct {
	ID   int64
	Name string
}

func (s *Store) FuelProducts(ctx context.Context) ([]FuelProduct, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT id, name FROM fuel_products ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FuelProduct
	for rows.Next() {
		var p FuelProduct
		if err := rows.Scan(&p.ID, &p.Name); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) AddFuelProduct(ctx context.Context, name string) (*FuelProduct, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "INSERT INTO fuel_products (name) VALUES (?)", name)
	if err != nil {
		return nil, err
	}
	id, _ := res.LastInsertId()
	return &FuelProduct{ID: id, Name: name}, nil
}

// StoreItem is one station_store row: per-product quantity at a station.
type StoreItem struct {
	ID        int64
	StationID int64
	ProductID int64
	Qty       decimal.Decimal
	UpdatedAt time.Time
}

func (s *Store) StationStore(ctx context.Context, stationID int64) ([]StoreItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, station_id, product_id, qty, updated_at FROM station_store WHERE station_id = ? ORDER BY product_id",
		stationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StoreItem
	for rows.Next() {
		var it StoreItem
		var qty, updatedAt string
		if err := rows.Scan(&it.ID, &it.StationID, &it.ProductID, &qty, &updatedAt); err != nil {
			return nil, err
		}
		it.Qty = ledger.MustParseDec(qty)
		it.UpdatedAt = parseTime(updatedAt)
		out = append(out, it)
	}
	return out, rows.Err()
}

// UpsertStationStore replaces the per-product quantities for a station in
// one transaction: all rows land or none do.
func (s *Store) UpsertStationStore(ctx context.Context, stationID int64, items []StoreItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, it := range items {
		_, err := sqlTx.ExecContext(ctx, `
			INSERT INTO station_store (station_id, product_id, qty, updated_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(station_id, product_id) DO UPDATE SET
				qty = excluded.qty,
				updated_at = excluded.updated_at
		`, stationID, it.ProductID, it.Qty.String(), now)
		if err != nil {
			return fmt.Errorf("failed to upsert station store row: %w", err)
		}
	}
	return sqlTx.Commit()
}

// =============================================================================
// PRICE WINDOWS (pricing.Store interface)
// =============================================================================

var _ pricing.Store = (*Store)(nil)

func (s *Store) InsertWindow(ctx context.Context, w pricing.Window) (pricing.Window, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC().Format(time.RFC3339)
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO price_windows (station_id, price, start_date, end_date, created_at) VALUES (?, ?, ?, ?, ?)",
		w.StationID, w.Price.String(), w.StartDate.UTC().Format(time.RFC3339),
		nullTime(w.EndDate), now,
	)
	if err != nil {
		return pricing.Window{}, fmt.Errorf("failed to insert price window: %w", err)
	}
	w.ID, _ = res.LastInsertId()
	w.CreatedAt = parseTime(now)
	return w, nil
}

func (s *Store) UpdateWindow(ctx context.Context, w pricing.Window) (pricing.Window, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"UPDATE price_windows SET price = ?, start_date = ?, end_date = ? WHERE id = ?",
		w.Price.String(), w.StartDate.UTC().Format(time.RFC3339), nullTime(w.EndDate), w.ID,
	)
	if err != nil {
		return pricing.Window{}, fmt.Errorf("failed to update price window: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return pricing.Window{}, &ledger.NotFoundError{Kind: "price window", ID: w.ID}
	}
	saved, err := scanWindow(s.db.QueryRowContext(ctx,
		"SELECT id, station_id, price, start_date, end_date, created_at FROM price_windows WHERE id = ?", w.ID))
	if err != nil {
		return pricing.Window{}, err
	}
	return *saved, nil
}

func (s *Store) DeleteWindow(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM price_windows WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &ledger.NotFoundError{Kind: "price window", ID: id}
	}
	return nil
}

func (s *Store) WindowByID(ctx context.Context, id int64) (*pricing.Window, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return scanWindow(s.db.QueryRowContext(ctx,
		"SELECT id, station_id, price, start_date, end_date, created_at FROM price_windows WHERE id = ?", id))
}

func (s *Store) WindowsByStation(ctx context.Context, stationID int64) ([]pricing.Window, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, station_id, price, start_date, end_date, created_at FROM price_windows WHERE station_id = ? ORDER BY start_date DESC, id DESC",
		stationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []pricing.Window
	for rows.Next() {
		w, err := scanWindow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *w)
	}
	return out, rows.Err()
}

func scanWindow(row scannable) (*pricing.Window, error) {
	var (
		w         pricing.Window
		price     string
		startDate string
		endDate   sql.NullString
		createdAt string
	)
	err := row.Scan(&w.ID, &w.StationID, &price, &startDate, &endDate, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	w.Price = ledger.MustParseDec(price)
	w.StartDate = parseTime(startDate)
	w.EndDate = parseTimePtr(endDate)
	w.CreatedAt = parseTime(createdAt)
	return &w, nil
}

// =============================================================================
// CLIENTS
// =============================================================================

type Client struct {
	ID        int64
	Name      string
	Email     string
	Phone     string
	Address   string
	CreatedAt time.Time
}

func (s *Store) CreateClient(ctx context.Context, c Client) (*Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC().Format(time.RFC3339)
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO clients (name, email, phone, address, created_at) VALUES (?, ?, ?, ?, ?)",
		c.Name, nullString(c.Email), nullString(c.Phone), nullString(c.Address), now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	c.ID, _ = res.LastInsertId()
	c.CreatedAt = parseTime(now)
	return &c, nil
}

func (s *Store) Client(ctx context.Context, id int64) (*Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return scanClient(s.db.QueryRowContext(ctx,
		"SELECT id, name, email, phone, address, created_at FROM clients WHERE id = ?", id))
}

func (s *Store) Clients(ctx context.Context) ([]Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, email, phone, address, created_at FROM clients ORDER BY created_at DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func scanClient(row scannable) (*Client, error) {
	var (
		c         Client
		email     sql.NullString
		phone     sql.NullString
		address   sql.NullString
		createdAt string
	)
	err := row.Scan(&c.ID, &c.Name, &email, &phone, &address, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	c.Email = email.String
	c.Phone = phone.String
	c.Address = address.String
	c.CreatedAt = parseTime(createdAt)
	return &c, nil
}

func (s *Store) UpdateClient(ctx context.Context, c Client) (*Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"UPDATE clients SET name = ?, email = ?, phone = ?, address = ? WHERE id = ?",
		c.Name, nullString(c.Email), nullString(c.Phone), nullString(c.Address), c.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update client: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, &ledger.NotFoundError{Kind: "client", ID: c.ID}
	}
	return scanClient(s.db.QueryRowContext(ctx,
		"SELECT id, name, email, phone, address, created_at FROM clients WHERE id = ?", c.ID))
}

func (s *Store) DeleteClient(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM clients WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &ledger.NotFoundError{Kind: "client", ID: id}
	}
	return nil
}

func (s *Store) ClientExists(ctx context.Context, id int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return existsStmt(ctx, s.db, "SELECT COUNT(*) FROM clients WHERE id = ?", id)
}

// =============================================================================
// BARRACKS / ITEMS
// =============================================================================

type Barracks struct {
	ID       int64
	Name     string
	Location string
}

type Item struct {
	ID   int64
	Name string
	Unit string
}

func (s *Store) AllBarracks(ctx context.Context) ([]Barracks, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT id, name, location FROM barracks ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Barracks
	for rows.Next() {
		var b Barracks
		var location sql.NullString
		if err := rows.Scan(&b.ID, &b.Name, &location); err != nil {
			return nil, err
		}
		b.Location = location.String
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *Store) AddBarracks(ctx context.Context, b Barracks) (*Barracks, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"INSERT INTO barracks (name, location) VALUES (?, ?)", b.Name, nullString(b.Location))
	if err != nil {
		return nil, err
	}
	b.ID, _ = res.LastInsertId()
	return &b, nil
}

func (s *Store) Items(ctx context.Context) ([]Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT id, name, unit FROM items ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Item
	for rows.Next() {
		var it Item
		var unit sql.NullString
		if err := rows.Scan(&it.ID, &it.Name, &unit); err != nil {
			return nil, err
		}
		it.Unit = unit.String
		out = append(out, it)
	}
	return out, rows.Err()
}

func (s *Store) AddItem(ctx context.Context, it Item) (*Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"INSERT INTO items (name, unit) VALUES (?, ?)", it.Name, nullString(it.Unit))
	if err != nil {
		return nil, err
	}
	it.ID, _ = res.LastInsertId()
	return &it, nil
}

func (s *Store) BarracksExists(ctx context.Context, id int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return existsStmt(ctx, s.db, "SELECT COUNT(*) FROM barracks WHERE id = ?", id)
}

func (s *Store) ItemExists(ctx context.Context, id int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return existsStmt(ctx, s.db, "SELECT COUNT(*) FROM items WHERE id = ?", id)
}

// =============================================================================
// STOCK TRANSFERS (transfer.Store interface)
// =============================================================================

var _ transfer.Store = (*Store)(nil)
var _ transfer.Decider = (*Store)(nil)

func (s *Store) InsertTransfer(ctx context.Context, t transfer.Transfer) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO stock_transfers
		(from_barracks_id, to_barracks_id, item_id, quantity, status, notes, requested_by, transfer_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		t.FromBarracksID, t.ToBarracksID, t.ItemID, t.Quantity.String(), string(t.Status),
		nullString(t.Notes), nullString(t.RequestedBy),
		t.TransferDate.UTC().Format(time.RFC3339), time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert stock transfer: %w", err)
	}
	return res.LastInsertId()
}

func (s *Store) TransferByID(ctx context.Context, id int64) (*transfer.Transfer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return scanTransfer(s.db.QueryRowContext(ctx, `
		SELECT id, from_barracks_id, to_barracks_id, item_id, quantity, status, notes,
		       requested_by, decided_by, transfer_date, created_at, decided_at
		FROM stock_transfers WHERE id = ?
	`, id))
}

func (s *Store) Transfers(ctx context.Context, status transfer.Status, limit, offset int) ([]transfer.Transfer, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	where, args := "", []any{}
	if status != "" {
		where = " WHERE status = ?"
		args = append(args, string(status))
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM stock_transfers"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, from_barracks_id, to_barracks_id, item_id, quantity, status, notes,
		       requested_by, decided_by, transfer_date, created_at, decided_at
		FROM stock_transfers` + where + `
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`
	args = append(args, limit, offset)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []transfer.Transfer
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *t)
	}
	return out, total, rows.Err()
}

func scanTransfer(row scannable) (*transfer.Transfer, error) {
	var (
		t            transfer.Transfer
		quantity     string
		status       string
		notes        sql.NullString
		requestedBy  sql.NullString
		decidedBy    sql.NullString
		transferDate string
		createdAt    string
		decidedAt    sql.NullString
	)
	err := row.Scan(
		&t.ID, &t.FromBarracksID, &t.ToBarracksID, &t.ItemID, &quantity, &status,
		&notes, &requestedBy, &decidedBy, &transferDate, &createdAt, &decidedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	t.Quantity = ledger.MustParseDec(quantity)
	t.Status = transfer.Status(status)
	t.Notes = notes.String
	t.RequestedBy = requestedBy.String
	t.DecidedBy = decidedBy.String
	t.TransferDate = parseTime(transferDate)
	t.CreatedAt = parseTime(createdAt)
	t.DecidedAt = parseTimePtr(decidedAt)
	return &t, nil
}

// MarkDecided flips a pending transfer into a terminal status. The
// conditional WHERE is the point: a transfer already decided matches zero
// rows, and the caller treats that as a lost race.
func (s *Store) MarkDecided(ctx context.Context, id int64, status transfer.Status, decidedBy string, decidedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return markDecided(ctx, s.db, id, status, decidedBy, decidedAt)
}

func markDecided(ctx context.Context, q dbtx, id int64, status transfer.Status, decidedBy string, decidedAt time.Time) (bool, error) {
	res, err := q.ExecContext(ctx,
		"UPDATE stock_transfers SET status = ?, decided_by = ?, decided_at = ? WHERE id = ? AND status = 'pending'",
		string(status), nullString(decidedBy), decidedAt.UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		return false, fmt.Errorf("failed to decide stock transfer: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// =============================================================================
// SALES (write path; listings live in reports.go)
// =============================================================================

var _ sales.Store = (*Store)(nil)

func insertSale(ctx context.Context, q dbtx, sale sales.Sale) (int64, error) {
	res, err := q.ExecContext(ctx, `
		INSERT INTO sales (station_id, vehicle_id, client_id, quantity, unit_price, total_price, sale_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		sale.StationID, sale.VehicleID, sale.ClientID,
		sale.Quantity.String(), sale.UnitPrice.String(), sale.TotalPrice.String(),
		sale.SaleDate.UTC().Format(time.RFC3339), time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert sale: %w", err)
	}
	return res.LastInsertId()
}

// =============================================================================
// STAFF LEAVES
// =============================================================================

type StaffLeave struct {
	ID        int64
	StaffID   int64
	StaffName string
	LeaveType string
	StartDate time.Time
	EndDate   time.Time
	Reason    string
	Status    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// LeaveFilter narrows leave listings; zero values mean "no filter".
type LeaveFilter struct {
	StaffID  int64
	Status   string
	DateFrom time.Time
	DateTo   time.Time
}

func (s *Store) CreateLeave(ctx context.Context, l StaffLeave) (*StaffLeave, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC().Format(time.RFC3339)
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO staff_leaves (staff_id, staff_name, leave_type, start_date, end_date, reason, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, 'pending', ?, ?)
	`,
		l.StaffID, l.StaffName, l.LeaveType,
		l.StartDate.UTC().Format(time.RFC3339), l.EndDate.UTC().Format(time.RFC3339),
		l.Reason, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create staff leave: %w", err)
	}
	l.ID, _ = res.LastInsertId()
	l.Status = "pending"
	l.CreatedAt = parseTime(now)
	l.UpdatedAt = l.CreatedAt
	return &l, nil
}

func (s *Store) Leave(ctx context.Context, id int64) (*StaffLeave, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return scanLeave(s.db.QueryRowContext(ctx, `
		SELECT id, staff_id, staff_name, leave_type, start_date, end_date, reason, status, created_at, updated_at
		FROM staff_leaves WHERE id = ?
	`, id))
}

func (s *Store) Leaves(ctx context.Context, f LeaveFilter) ([]StaffLeave, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, staff_id, staff_name, leave_type, start_date, end_date, reason, status, created_at, updated_at
		FROM staff_leaves WHERE 1=1
	`
	var args []any
	if f.StaffID != 0 {
		query += " AND staff_id = ?"
		args = append(args, f.StaffID)
	}
	if f.Status != "" {
		query += " AND status = ?"
		args = append(args, f.Status)
	}
	if !f.DateFrom.IsZero() {
		query += " AND end_date >= ?"
		args = append(args, f.DateFrom.UTC().Format(time.RFC3339))
	}
	if !f.DateTo.IsZero() {
		query += " AND start_date <= ?"
		args = append(args, f.DateTo.UTC().Format(time.RFC3339))
	}
	query += " ORDER BY start_date DESC, id DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StaffLeave
	for rows.Next() {
		l, err := scanLeave(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}

func scanLeave(row scannable) (*StaffLeave, error) {
	var (
		l                                       StaffLeave
		startDate, endDate, createdAt, updateAt string
	)
	err := row.Scan(&l.ID, &l.StaffID, &l.StaffName, &l.LeaveType, &startDate, &endDate, &l.Reason, &l.Status, &createdAt, &updateAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	l.StartDate = parseTime(startDate)
	l.EndDate = parseTime(endDate)
	l.CreatedAt = parseTime(createdAt)
	l.UpdatedAt = parseTime(updateAt)
	return &l, nil
}

func (s *Store) UpdateLeave(ctx context.Context, l StaffLeave) (*StaffLeave, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE staff_leaves
		SET staff_id = ?, staff_name = ?, leave_type = ?, start_date = ?, end_date = ?, reason = ?, updated_at = ?
		WHERE id = ?
	`,
		l.StaffID, l.StaffName, l.LeaveType,
		l.StartDate.UTC().Format(time.RFC3339), l.EndDate.UTC().Format(time.RFC3339),
		l.Reason, time.Now().UTC().Format(time.RFC3339), l.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update staff leave: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, &ledger.NotFoundError{Kind: "staff leave", ID: l.ID}
	}
	return s.leaveByIDLocked(ctx, l.ID)
}

func (s *Store) DeleteLeave(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM staff_leaves WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &ledger.NotFoundError{Kind: "staff leave", ID: id}
	}
	return nil
}

// ApproveLeave flips a pending leave to approved. Pending-only, like
// transfer decisions: an already-decided leave matches zero rows.
func (s *Store) ApproveLeave(ctx context.Context, id int64) (*StaffLeave, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"UPDATE staff_leaves SET status = 'approved', updated_at = ? WHERE id = ? AND status = 'pending'",
		time.Now().UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to approve staff leave: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		existing, err := s.leaveByIDLocked(ctx, id)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, &ledger.NotFoundError{Kind: "staff leave", ID: id}
		}
		return nil, ledger.Invalidf("staff leave %d is not pending", id)
	}
	return s.leaveByIDLocked(ctx, id)
}

func (s *Store) leaveByIDLocked(ctx context.Context, id int64) (*StaffLeave, error) {
	return scanLeave(s.db.QueryRowContext(ctx, `
		SELECT id, staff_id, staff_name, leave_type, start_date, end_date, reason, status, created_at, updated_at
		FROM staff_leaves WHERE id = ?
	`, id))
}

// =============================================================================
// ATTENDANCE
// =============================================================================

type CheckinRecord struct {
	ID                int64
	UserID            int64
	UserName          string
	StationID         int64
	StationName       string
	CheckInLatitude   float64
	CheckInLongitude  float64
	CheckOutLatitude  *float64
	CheckOutLongitude *float64
	Address           string
	QRData            string
	Status            int // 1 = checked in, 0 = checked out
	TimeIn            time.Time
	TimeOut           *time.Time
	CreatedAt         time.Time
}

type AttendanceFilter struct {
	UserID    int64
	StationID int64
	Status    *int
	DateFrom  time.Time
	DateTo    time.Time
}

func (s *Store) CreateCheckIn(ctx context.Context, r CheckinRecord) (*CheckinRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if r.TimeIn.IsZero() {
		r.TimeIn = now
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO checkin_records
		(user_id, user_name, station_id, station_name, check_in_latitude, check_in_longitude, address, qr_data, status, time_in, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
	`,
		r.UserID, r.UserName, r.StationID, r.StationName,
		r.CheckInLatitude, r.CheckInLongitude, nullString(r.Address), nullString(r.QRData),
		r.TimeIn.UTC().Format(time.RFC3339), now.Format(time.RFC3339),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create check-in: %w", err)
	}
	r.ID, _ = res.LastInsertId()
	r.Status = 1
	r.CreatedAt = now
	return &r, nil
}

// CheckOut closes an open attendance record. Only records still checked in
// (status 1) transition; anything else is rejected.
func (s *Store) CheckOut(ctx context.Context, id int64, lat, lng *float64, timeOut time.Time) (*CheckinRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE checkin_records
		SET status = 0, check_out_latitude = ?, check_out_longitude = ?, time_out = ?
		WHERE id = ? AND status = 1
	`, nullFloat(lat), nullFloat(lng), timeOut.UTC().Format(time.RFC3339), id)
	if err != nil {
		return nil, fmt.Errorf("failed to check out: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		existing, err := s.checkinByIDLocked(ctx, id)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, &ledger.NotFoundError{Kind: "attendance record", ID: id}
		}
		return nil, ledger.Invalidf("attendance record %d is already checked out", id)
	}
	return s.checkinByIDLocked(ctx, id)
}

func (s *Store) AttendanceRecord(ctx context.Context, id int64) (*CheckinRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.checkinByIDLocked(ctx, id)
}

func (s *Store) checkinByIDLocked(ctx context.Context, id int64) (*CheckinRecord, error) {
	return scanCheckin(s.db.QueryRowContext(ctx, `
		SELECT id, user_id, user_name, station_id, station_name,
		       check_in_latitude, check_in_longitude, check_out_latitude, check_out_longitude,
		       address, qr_data, status, time_in, time_out, created_at
		FROM checkin_records WHERE id = ?
	`, id))
}

func (s *Store) AttendanceRecords(ctx context.Context, f AttendanceFilter) ([]CheckinRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, user_id, user_name, station_id, station_name,
		       check_in_latitude, check_in_longitude, check_out_latitude, check_out_longitude,
		       address, qr_data, status, time_in, time_out, created_at
		FROM checkin_records WHERE 1=1
	`
	var args []any
	if f.UserID != 0 {
		query += " AND user_id = ?"
		args = append(args, f.UserID)
	}
	if f.StationID != 0 {
		query += " AND station_id = ?"
		args = append(args, f.StationID)
	}
	if f.Status != nil {
		query += " AND status = ?"
		args = append(args, *f.Status)
	}
	if !f.DateFrom.IsZero() {
		query += " AND time_in >= ?"
		args = append(args, f.DateFrom.UTC().Format(time.RFC3339))
	}
	if !f.DateTo.IsZero() {
		query += " AND time_in <= ?"
		args = append(args, f.DateTo.UTC().Format(time.RFC3339))
	}
	query += " ORDER BY time_in DESC, id DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CheckinRecord
	for rows.Next() {
		r, err := scanCheckin(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func scanCheckin(row scannable) (*CheckinRecord, error) {
	var (
		r                CheckinRecord
		inLat, inLng     sql.NullFloat64
		outLat, outLng   sql.NullFloat64
		address, qrData  sql.NullString
		timeIn           string
		timeOut          sql.NullString
		createdAt        string
	)
	err := row.Scan(
		&r.ID, &r.UserID, &r.UserName, &r.StationID, &r.StationName,
		&inLat, &inLng, &outLat, &outLng, &address, &qrData, &r.Status,
		&timeIn, &timeOut, &createdAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	r.CheckInLatitude = inLat.Float64
	r.CheckInLongitude = inLng.Float64
	if outLat.Valid {
		r.CheckOutLatitude = &outLat.Float64
	}
	if outLng.Valid {
		r.CheckOutLongitude = &outLng.Float64
	}
	r.Address = address.String
	r.QRData = qrData.String
	r.TimeIn = parseTime(timeIn)
	r.TimeOut = parseTimePtr(timeOut)
	r.CreatedAt = parseTime(createdAt)
	return &r, nil
}

func (s *Store) UpdateAttendanceRecord(ctx context.Context, r CheckinRecord) (*CheckinRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE checkin_records
		SET user_name = ?, station_id = ?, station_name = ?, address = ?
		WHERE id = ?
	`, r.UserName, r.StationID, r.StationName, nullString(r.Address), r.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to update attendance record: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, &ledger.NotFoundError{Kind: "attendance record", ID: r.ID}
	}
	return s.checkinByIDLocked(ctx, r.ID)
}

func (s *Store) DeleteAttendanceRecord(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM checkin_records WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &ledger.NotFoundError{Kind: "attendance record", ID: id}
	}
	return nil
}

// =============================================================================
// VEHICLE CONVERSIONS
// =============================================================================

type VehicleConversion struct {
	ID             int64
	VehiclePlate   string
	VehicleType    string
	ConversionType string
	AmountCharged  decimal.Decimal
	ServiceDate    time.Time
	Comment        string
	CreatedAt      time.Time
}

func (s *Store) CreateConversion(ctx context.Context, v VehicleConversion) (*VehicleConversion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC().Format(time.RFC3339)
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO vehicle_conversions (vehicle_plate, vehicle_type, conversion_type, amount_charged, service_date, comment, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		v.VehiclePlate, v.VehicleType, v.ConversionType, v.AmountCharged.String(),
		v.ServiceDate.UTC().Format(time.RFC3339), nullString(v.Comment), now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create vehicle conversion: %w", err)
	}
	v.ID, _ = res.LastInsertId()
	v.CreatedAt = parseTime(now)
	return &v, nil
}

func (s *Store) Conversion(ctx context.Context, id int64) (*VehicleConversion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return scanConversion(s.db.QueryRowContext(ctx, `
		SELECT id, vehicle_plate, vehicle_type, conversion_type, amount_charged, service_date, comment, created_at
		FROM vehicle_conversions WHERE id = ?
	`, id))
}

func (s *Store) Conversions(ctx context.Context) ([]VehicleConversion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryConversions(ctx, `
		SELECT id, vehicle_plate, vehicle_type, conversion_type, amount_charged, service_date, comment, created_at
		FROM vehicle_conversions ORDER BY service_date DESC, created_at DESC
	`)
}

func (s *Store) ConversionsByVehicle(ctx context.Context, plate string) ([]VehicleConversion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryConversions(ctx, `
		SELECT id, vehicle_plate, vehicle_type, conversion_type, amount_charged, service_date, comment, created_at
		FROM vehicle_conversions WHERE vehicle_plate = ? ORDER BY service_date DESC
	`, plate)
}

func (s *Store) queryConversions(ctx context.Context, query string, args ...any) ([]VehicleConversion, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []VehicleConversion
	for rows.Next() {
		v, err := scanConversion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, rows.Err()
}

func scanConversion(row scannable) (*VehicleConversion, error) {
	var (
		v                      VehicleConversion
		amount                 string
		serviceDate, createdAt string
		comment                sql.NullString
	)
	err := row.Scan(&v.ID, &v.VehiclePlate, &v.VehicleType, &v.ConversionType, &amount, &serviceDate, &comment, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	v.AmountCharged = ledger.MustParseDec(amount)
	v.ServiceDate = parseTime(serviceDate)
	v.Comment = comment.String
	v.CreatedAt = parseTime(createdAt)
	return &v, nil
}

func (s *Store) UpdateConversion(ctx context.Context, v VehicleConversion) (*VehicleConversion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE vehicle_conversions
		SET vehicle_plate = ?, vehicle_type = ?, conversion_type = ?, amount_charged = ?, service_date = ?, comment = ?
		WHERE id = ?
	`,
		v.VehiclePlate, v.VehicleType, v.ConversionType, v.AmountCharged.String(),
		v.ServiceDate.UTC().Format(time.RFC3339), nullString(v.Comment), v.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update vehicle conversion: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, &ledger.NotFoundError{Kind: "vehicle conversion", ID: v.ID}
	}
	return scanConversion(s.db.QueryRowContext(ctx, `
		SELECT id, vehicle_plate, vehicle_type, conversion_type, amount_charged, service_date, comment, created_at
		FROM vehicle_conversions WHERE id = ?
	`, v.ID))
}

func (s *Store) DeleteConversion(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM vehicle_conversions WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &ledger.NotFoundError{Kind: "vehicle conversion", ID: id}
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func existsStmt(ctx context.Context, q dbtx, query string, args ...any) (bool, error) {
	var count int
	if err := q.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}
