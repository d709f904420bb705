package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"slotline/internal/booking"
	"slotline/internal/models"
	"slotline/internal/timegrid"
)

const bookingColumns = `id, company_id, branch_id, staff_id, service_id,
	customer_name, customer_phone, date, start_time, end_time,
	duration_minutes, price, currency, status, booked_via, notes,
	cancelled_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(r rowScanner) (*models.Booking, error) {
	var b models.Booking
	var id, companyID, branchID, staffID, serviceID, dateStr, start, end, status, via string
	var cancelledAt sql.NullTime

	err := r.Scan(
		&id, &companyID, &branchID, &staffID, &serviceID,
		&b.CustomerName, &b.CustomerPhone, &dateStr, &start, &end,
		&b.DurationMinutes, &b.Price, &b.Currency, &status, &via, &b.Notes,
		&cancelledAt, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if b.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parse booking id: %w", err)
	}
	if b.CompanyID, err = uuid.Parse(companyID); err != nil {
		return nil, fmt.Errorf("parse company id: %w", err)
	}
	if b.BranchID, err = uuid.Parse(branchID); err != nil {
		return nil, fmt.Errorf("parse branch id: %w", err)
	}
	if b.StaffID, err = uuid.Parse(staffID); err != nil {
		return nil, fmt.Errorf("parse staff id: %w", err)
	}
	if b.ServiceID, err = uuid.Parse(serviceID); err != nil {
		return nil, fmt.Errorf("parse service id: %w", err)
	}
	if b.Date, err = parseDateOnly(dateStr); err != nil {
		return nil, fmt.Errorf("parse booking date: %w", err)
	}
	if b.Start, err = timegrid.ParseClock(start); err != nil {
		return nil, err
	}
	if b.End, err = timegrid.ParseClock(end); err != nil {
		return nil, err
	}
	b.Status = models.BookingStatus(status)
	b.BookedVia = models.BookedVia(via)
	if cancelledAt.Valid {
		t := cancelledAt.Time
		b.CancelledAt = &t
	}
	return &b, nil
}

// GetBooking returns a booking by ID, or (nil, nil) when absent.
func (db *DB) GetBooking(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	row := db.QueryRowContext(ctx,
		"SELECT "+bookingColumns+" FROM bookings WHERE id = ?",
		id.String(),
	)
	b, err := scanBooking(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get booking: %w", err)
	}
	return b, nil
}

// FindOverlapping returns every confirmed booking for the staff member
// on the date whose interval strictly overlaps (start, end). Touching
// ranges do not count. excludeBookingID skips the booking being edited.
func (db *DB) FindOverlapping(ctx context.Context, staffID uuid.UUID, date time.Time, start, end timegrid.Clock, excludeBookingID *uuid.UUID) ([]models.Booking, error) {
	return db.findOverlappingTx(ctx, db.DB, staffID, date, start, end, excludeBookingID)
}

// querier abstracts *sql.DB and *sql.Tx so the overlap check can run
// both standalone and inside the write transaction.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (db *DB) findOverlappingTx(ctx context.Context, q querier, staffID uuid.UUID, date time.Time, start, end timegrid.Clock, excludeBookingID *uuid.UUID) ([]models.Booking, error) {
	query := "SELECT " + bookingColumns + ` FROM bookings
		WHERE staff_id = ? AND date = ? AND status = 'confirmed'
		AND start_time < ? AND end_time > ?`
	args := []any{staffID.String(), dateOnly(date), end.String(), start.String()}
	if excludeBookingID != nil {
		query += " AND id != ?"
		args = append(args, excludeBookingID.String())
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find overlapping: %w", err)
	}
	defer rows.Close()

	var out []models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

// ListByStaffIDsDateRange returns all confirmed bookings for the staff
// members at a branch within [dateFrom, dateTo], in one query.
func (db *DB) ListByStaffIDsDateRange(ctx context.Context, staffIDs []uuid.UUID, branchID uuid.UUID, dateFrom, dateTo time.Time) ([]models.Booking, error) {
	if len(staffIDs) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(staffIDs))
	args := make([]any, 0, len(staffIDs)+3)
	for i, id := range staffIDs {
		placeholders[i] = "?"
		args = append(args, id.String())
	}
	args = append(args, branchID.String(), dateOnly(dateFrom), dateOnly(dateTo))

	rows, err := db.QueryContext(ctx,
		"SELECT "+bookingColumns+` FROM bookings
		WHERE staff_id IN (`+strings.Join(placeholders, ", ")+`)
		AND branch_id = ? AND status = 'confirmed'
		AND date >= ? AND date <= ?
		ORDER BY date, start_time`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("list bookings by staff ids: %w", err)
	}
	defer rows.Close()

	var out []models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

// CreateBooking inserts a confirmed booking. The overlap check re-runs
// inside an immediate transaction so that of two concurrent validated
// creates exactly one commits; the loser gets booking.ErrSlotTaken.
func (db *DB) CreateBooking(ctx context.Context, b *models.Booking) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	overlapping, err := db.findOverlappingTx(ctx, tx, b.StaffID, b.Date, b.Start, b.End, nil)
	if err != nil {
		return err
	}
	if len(overlapping) > 0 {
		return booking.ErrSlotTaken
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO bookings (
			id, company_id, branch_id, staff_id, service_id,
			customer_name, customer_phone, date, start_time, end_time,
			duration_minutes, price, currency, status, booked_via, notes
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID.String(), b.CompanyID.String(), b.BranchID.String(), b.StaffID.String(), b.ServiceID.String(),
		b.CustomerName, b.CustomerPhone, dateOnly(b.Date), b.Start.String(), b.End.String(),
		b.DurationMinutes, b.Price, b.Currency, string(b.Status), string(b.BookedVia), b.Notes,
	); err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}

	return tx.Commit()
}

// UpdateBooking rewrites the full booking tuple. When the booking stays
// confirmed the overlap check re-runs inside the transaction, excluding
// the booking itself.
func (db *DB) UpdateBooking(ctx context.Context, b *models.Booking) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if b.Status == models.StatusConfirmed {
		excludeID := b.ID
		overlapping, err := db.findOverlappingTx(ctx, tx, b.StaffID, b.Date, b.Start, b.End, &excludeID)
		if err != nil {
			return err
		}
		if len(overlapping) > 0 {
			return booking.ErrSlotTaken
		}
	}

	var cancelledAt any
	if b.CancelledAt != nil {
		cancelledAt = *b.CancelledAt
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE bookings SET
			branch_id = ?, staff_id = ?, service_id = ?,
			customer_name = ?, customer_phone = ?,
			date = ?, start_time = ?, end_time = ?,
			duration_minutes = ?, price = ?, currency = ?,
			status = ?, notes = ?, cancelled_at = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		b.BranchID.String(), b.StaffID.String(), b.ServiceID.String(),
		b.CustomerName, b.CustomerPhone,
		dateOnly(b.Date), b.Start.String(), b.End.String(),
		b.DurationMinutes, b.Price, b.Currency,
		string(b.Status), b.Notes, cancelledAt,
		b.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("update booking: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}

	return tx.Commit()
}

// ListByCompany returns all bookings for a company, optionally scoped
// to a branch, newest first.
func (db *DB) ListByCompany(ctx context.Context, companyID uuid.UUID, branchID *uuid.UUID) ([]models.Booking, error) {
	query := "SELECT " + bookingColumns + " FROM bookings WHERE company_id = ?"
	args := []any{companyID.String()}
	if branchID != nil {
		query += " AND branch_id = ?"
		args = append(args, branchID.String())
	}
	query += " ORDER BY date DESC, start_time DESC"

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list bookings by company: %w", err)
	}
	defer rows.Close()

	var out []models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

// BulkMarkCompleted flips confirmed bookings dated strictly before the
// given day to completed. Idempotent; re-running it changes nothing.
func (db *DB) BulkMarkCompleted(ctx context.Context, companyID uuid.UUID, branchID *uuid.UUID, before time.Time) (int, error) {
	query := `
		UPDATE bookings SET status = 'completed', updated_at = CURRENT_TIMESTAMP
		WHERE company_id = ? AND status = 'confirmed' AND date < ?`
	args := []any{companyID.String(), dateOnly(before)}
	if branchID != nil {
		query += " AND branch_id = ?"
		args = append(args, branchID.String())
	}

	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("bulk mark completed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(n), nil
}
