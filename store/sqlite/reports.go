package sqlite

// Read-only reporting queries: sale listings with joined names, grouped
// summaries, monthly totals, daily trend, attendance and conversion stats.
// None of these touch the ledger; they read at the store's default
// isolation level.

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fuelops/backoffice/ledger"
	"github.com/fuelops/backoffice/sales"
)

// Branch is a vehicle registry row; sales reference branches as vehicles.
type Branch struct {
	ID        int64
	Name      string
	Address   string
	CreatedAt time.Time
}

func (s *Store) Branches(ctx context.Context) ([]Branch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT id, name, address, created_at FROM branches ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Branch
	for rows.Next() {
		var b Branch
		var address sql.NullString
		var createdAt string
		if err := rows.Scan(&b.ID, &b.Name, &address, &createdAt); err != nil {
			return nil, err
		}
		b.Address = address.String
		b.CreatedAt = parseTime(createdAt)
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *Store) AddBranch(ctx context.Context, b Branch) (*Branch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC().Format(time.RFC3339)
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO branches (name, address, created_at) VALUES (?, ?, ?)",
		b.Name, nullString(b.Address), now)
	if err != nil {
		return nil, err
	}
	b.ID, _ = res.LastInsertId()
	b.CreatedAt = parseTime(now)
	return &b, nil
}

// SaleRow is a sale with the names a listing needs joined in.
type SaleRow struct {
	sales.Sale
	StationName    string
	StationAddress string
	VehicleName    string
	VehicleAddress string
	ClientName     string
}

const saleRowSelect = `
	SELECT s.id, s.station_id, s.vehicle_id, s.client_id,
	       s.quantity, s.unit_price, s.total_price, s.sale_date, s.created_at,
	       st.name, st.address, b.name, b.address, c.name
	FROM sales s
	JOIN stations st ON s.station_id = st.id
	LEFT JOIN branches b ON s.vehicle_id = b.id
	JOIN clients c ON s.client_id = c.id
`

// AllSales returns every sale across all stations, newest first.
func (s *Store) AllSales(ctx context.Context) ([]SaleRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.querySaleRows(ctx, saleRowSelect+" ORDER BY s.sale_date DESC, s.id DESC")
}

// SalesByStation returns all sales for one station, newest first.
func (s *Store) SalesByStation(ctx context.Context, stationID int64) ([]SaleRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.querySaleRows(ctx,
		saleRowSelect+" WHERE s.station_id = ? ORDER BY s.sale_date DESC, s.id DESC", stationID)
}

// SalesByClient returns a page of a client's sales plus the total count.
func (s *Store) SalesByClient(ctx context.Context, clientID int64, limit, offset int) ([]SaleRow, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sales WHERE client_id = ?", clientID).Scan(&total); err != nil {
		return nil, 0, err
	}

	if limit <= 0 {
		limit = 10
	}
	rowsOut, err := s.querySaleRows(ctx,
		saleRowSelect+" WHERE s.client_id = ? ORDER BY s.sale_date DESC, s.id DESC LIMIT ? OFFSET ?",
		clientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return rowsOut, total, nil
}

// SaleFilter narrows date/summary listings; zero values mean "no filter".
type SaleFilter struct {
	StationID int64
	ClientID  int64
	VehicleID int64
	Year      int
	Month     int
}

// SalesByDate returns all sales whose sale_date falls on the given calendar
// day, with optional filters.
func (s *Store) SalesByDate(ctx context.Context, day time.Time, f SaleFilter) ([]SaleRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := saleRowSelect + " WHERE DATE(s.sale_date) = ?"
	args := []any{day.Format("2006-01-02")}
	if f.StationID != 0 {
		query += " AND s.station_id = ?"
		args = append(args, f.StationID)
	}
	if f.ClientID != 0 {
		query += " AND s.client_id = ?"
		args = append(args, f.ClientID)
	}
	if f.VehicleID != 0 {
		query += " AND s.vehicle_id = ?"
		args = append(args, f.VehicleID)
	}
	query += " ORDER BY s.sale_date DESC, s.id DESC"
	return s.querySaleRows(ctx, query, args...)
}

func (s *Store) querySaleRows(ctx context.Context, query string, args ...any) ([]SaleRow, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sales: %w", err)
	}
	defer rows.Close()

	var out []SaleRow
	for rows.Next() {
		var (
			r                   SaleRow
			quantity, unitPrice string
			totalPrice          string
			saleDate, createdAt string
			stationAddress      sql.NullString
			vehicleName         sql.NullString
			vehicleAddress      sql.NullString
		)
		err := rows.Scan(
			&r.ID, &r.StationID, &r.VehicleID, &r.ClientID,
			&quantity, &unitPrice, &totalPrice, &saleDate, &createdAt,
			&r.StationName, &stationAddress, &vehicleName, &vehicleAddress, &r.ClientName,
		)
		if err != nil {
			return nil, err
		}
		r.Quantity = ledger.MustParseDec(quantity)
		r.UnitPrice = ledger.MustParseDec(unitPrice)
		r.TotalPrice = ledger.MustParseDec(totalPrice)
		r.SaleDate = parseTime(saleDate)
		r.CreatedAt = parseTime(createdAt)
		r.StationAddress = stationAddress.String
		r.VehicleName = vehicleName.String
		r.VehicleAddress = vehicleAddress.String
		out = append(out, r)
	}
	return out, rows.Err()
}

// SaleSummary is one grouped-by-day aggregation row.
type SaleSummary struct {
	Date          string
	TotalSales    int
	TotalRevenue  decimal.Decimal
	TotalQuantity decimal.Decimal
}

// SalesSummaries groups sales by calendar day with optional
// year/month/station/client/vehicle filters.
func (s *Store) SalesSummaries(ctx context.Context, f SaleFilter) ([]SaleSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT DATE(sale_date), COUNT(*), COALESCE(SUM(CAST(total_price AS REAL)), 0), COALESCE(SUM(CAST(quantity AS REAL)), 0)
		FROM sales
		WHERE 1=1
	`
	var args []any
	if f.Year != 0 {
		query += " AND strftime('%Y', sale_date) = ?"
		args = append(args, fmt.Sprintf("%04d", f.Year))
	}
	if f.Month != 0 {
		query += " AND strftime('%m', sale_date) = ?"
		args = append(args, fmt.Sprintf("%02d", f.Month))
	}
	if f.StationID != 0 {
		query += " AND station_id = ?"
		args = append(args, f.StationID)
	}
	if f.ClientID != 0 {
		query += " AND client_id = ?"
		args = append(args, f.ClientID)
	}
	if f.VehicleID != 0 {
		query += " AND vehicle_id = ?"
		args = append(args, f.VehicleID)
	}
	query += " GROUP BY DATE(sale_date) ORDER BY DATE(sale_date) DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SaleSummary
	for rows.Next() {
		var sum SaleSummary
		var revenue, quantity float64
		if err := rows.Scan(&sum.Date, &sum.TotalSales, &revenue, &quantity); err != nil {
			return nil, err
		}
		sum.TotalRevenue = ledger.Dec(revenue)
		sum.TotalQuantity = ledger.Dec(quantity)
		out = append(out, sum)
	}
	return out, rows.Err()
}

// MonthlySales returns the sale count and total value between from and to
// (inclusive). Callers pass the current month's bounds for the dashboard.
func (s *Store) MonthlySales(ctx context.Context, from, to time.Time) (int, decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		count int
		value float64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(CAST(total_price AS REAL)), 0)
		FROM sales
		WHERE sale_date >= ? AND sale_date <= ?
	`, from.UTC().Format(time.RFC3339), to.UTC().Format(time.RFC3339)).Scan(&count, &value)
	if err != nil {
		return 0, decimal.Zero, err
	}
	return count, ledger.Dec(value), nil
}

// DailyTrendPoint is one day of the sales trend.
type DailyTrendPoint struct {
	Date       string
	TotalSales int
	TotalValue decimal.Decimal
}

// DailySalesTrend returns per-day sale counts and values between from and
// to, oldest first.
func (s *Store) DailySalesTrend(ctx context.Context, from, to time.Time) ([]DailyTrendPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT DATE(sale_date), COUNT(*), COALESCE(SUM(CAST(total_price AS REAL)), 0)
		FROM sales
		WHERE sale_date >= ? AND sale_date <= ?
		GROUP BY DATE(sale_date)
		ORDER BY DATE(sale_date) ASC
	`, from.UTC().Format(time.RFC3339), to.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DailyTrendPoint
	for rows.Next() {
		var p DailyTrendPoint
		var value float64
		if err := rows.Scan(&p.Date, &p.TotalSales, &value); err != nil {
			return nil, err
		}
		p.TotalValue = ledger.Dec(value)
		out = append(out, p)
	}
	return out, rows.Err()
}

// BarrackStockRow is one depot+item stock level with names joined in.
type BarrackStockRow struct {
	BarracksID   int64
	BarracksName string
	ItemID       int64
	ItemName     string
	Qty          decimal.Decimal
	UpdatedAt    time.Time
}

// AllBarrackStock lists current stock levels across every barracks depot.
func (s *Store) AllBarrackStock(ctx context.Context) ([]BarrackStockRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT sl.owner_id, COALESCE(b.name, ''), sl.item_id, COALESCE(i.name, ''), sl.qty, sl.updated_at
		FROM stock_levels sl
		LEFT JOIN barracks b ON sl.owner_id = b.id
		LEFT JOIN items i ON sl.item_id = i.id
		WHERE sl.domain = ?
		ORDER BY sl.owner_id, sl.item_id
	`, string(ledger.DomainBarrackStock))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BarrackStockRow
	for rows.Next() {
		var r BarrackStockRow
		var qty, updatedAt string
		if err := rows.Scan(&r.BarracksID, &r.BarracksName, &r.ItemID, &r.ItemName, &qty, &updatedAt); err != nil {
			return nil, err
		}
		r.Qty = ledger.MustParseDec(qty)
		r.UpdatedAt = parseTime(updatedAt)
		out = append(out, r)
	}
	return out, rows.Err()
}

// AttendanceStats summarizes attendance records, optionally per station.
type AttendanceStats struct {
	Total      int
	CheckedIn  int
	CheckedOut int
}

func (s *Store) AttendanceStatsFor(ctx context.Context, stationID int64) (*AttendanceStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	where, args := "", []any{}
	if stationID != 0 {
		where = " WHERE station_id = ?"
		args = append(args, stationID)
	}

	var st AttendanceStats
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN status = 1 THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN status = 0 THEN 1 ELSE 0 END), 0)
		FROM checkin_records`+where, args...).Scan(&st.Total, &st.CheckedIn, &st.CheckedOut)
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// ConversionTypeStat is one conversion_type aggregation row.
type ConversionTypeStat struct {
	ConversionType string
	Count          int
	TotalAmount    decimal.Decimal
}

// ConversionStats summarizes vehicle conversions: overall count and amount
// plus a per-type breakdown, busiest type first.
func (s *Store) ConversionStats(ctx context.Context) (int, decimal.Decimal, []ConversionTypeStat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		total  int
		amount float64
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(SUM(CAST(amount_charged AS REAL)), 0) FROM vehicle_conversions",
	).Scan(&total, &amount)
	if err != nil {
		return 0, decimal.Zero, nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT conversion_type, COUNT(*), COALESCE(SUM(CAST(amount_charged AS REAL)), 0)
		FROM vehicle_conversions
		GROUP BY conversion_type
		ORDER BY COUNT(*) DESC
	`)
	if err != nil {
		return 0, decimal.Zero, nil, err
	}
	defer rows.Close()

	var byType []ConversionTypeStat
	for rows.Next() {
		var st ConversionTypeStat
		var a float64
		if err := rows.Scan(&st.ConversionType, &st.Count, &a); err != nil {
			return 0, decimal.Zero, nil, err
		}
		st.TotalAmount = ledger.Dec(a)
		byType = append(byType, st)
	}
	return total, ledger.Dec(amount), byType, rows.Err()
}
