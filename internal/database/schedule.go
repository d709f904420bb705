package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"slotline/internal/models"
	"slotline/internal/scheduling"
	"slotline/internal/timegrid"
)

// ListWeeklyWindows returns the recurring windows for a staff member at
// a branch on a weekday (Monday = 0), ordered by start time.
func (db *DB) ListWeeklyWindows(ctx context.Context, staffID, branchID uuid.UUID, dayOfWeek int) ([]models.WeeklyWindow, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, staff_id, branch_id, day_of_week, start_time, end_time
		FROM weekly_windows
		WHERE staff_id = ? AND branch_id = ? AND day_of_week = ?
		ORDER BY start_time`,
		staffID.String(), branchID.String(), dayOfWeek,
	)
	if err != nil {
		return nil, fmt.Errorf("list weekly windows: %w", err)
	}
	defer rows.Close()

	var windows []models.WeeklyWindow
	for rows.Next() {
		w, err := scanWeeklyWindow(rows)
		if err != nil {
			return nil, err
		}
		windows = append(windows, *w)
	}
	return windows, rows.Err()
}

func scanWeeklyWindow(rows *sql.Rows) (*models.WeeklyWindow, error) {
	var w models.WeeklyWindow
	var id, staffID, branchID, start, end string
	if err := rows.Scan(&id, &staffID, &branchID, &w.DayOfWeek, &start, &end); err != nil {
		return nil, fmt.Errorf("scan weekly window: %w", err)
	}

	var err error
	if w.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parse window id: %w", err)
	}
	if w.StaffID, err = uuid.Parse(staffID); err != nil {
		return nil, fmt.Errorf("parse staff id: %w", err)
	}
	if w.BranchID, err = uuid.Parse(branchID); err != nil {
		return nil, fmt.Errorf("parse branch id: %w", err)
	}
	if w.Start, err = timegrid.ParseClock(start); err != nil {
		return nil, err
	}
	if w.End, err = timegrid.ParseClock(end); err != nil {
		return nil, err
	}
	return &w, nil
}

// ReplaceWeeklyWindows swaps the full weekly schedule for a staff-branch
// pair in one transaction.
func (db *DB) ReplaceWeeklyWindows(ctx context.Context, staffID, branchID uuid.UUID, windows []models.WeeklyWindow) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM weekly_windows WHERE staff_id = ? AND branch_id = ?",
		staffID.String(), branchID.String(),
	); err != nil {
		return fmt.Errorf("delete weekly windows: %w", err)
	}

	for _, w := range windows {
		id := w.ID
		if id == uuid.Nil {
			id = uuid.New()
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO weekly_windows (id, staff_id, branch_id, day_of_week, start_time, end_time)
			VALUES (?, ?, ?, ?, ?, ?)`,
			id.String(), staffID.String(), branchID.String(), w.DayOfWeek, w.Start.String(), w.End.String(),
		); err != nil {
			return fmt.Errorf("insert weekly window: %w", err)
		}
	}

	return tx.Commit()
}

// GetOverride returns the date override for (staff, branch, date), or
// (nil, nil) when the date follows the weekly schedule.
func (db *DB) GetOverride(ctx context.Context, staffID, branchID uuid.UUID, date time.Time) (*models.AvailabilityOverride, error) {
	var o models.AvailabilityOverride
	var id, dateStr, typ string
	var start, end, reason sql.NullString
	err := db.QueryRowContext(ctx, `
		SELECT id, date, type, start_time, end_time, reason
		FROM availability_overrides
		WHERE staff_id = ? AND branch_id = ? AND date = ?`,
		staffID.String(), branchID.String(), dateOnly(date),
	).Scan(&id, &dateStr, &typ, &start, &end, &reason)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get override: %w", err)
	}

	if o.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parse override id: %w", err)
	}
	o.StaffID = staffID
	o.BranchID = branchID
	if o.Date, err = parseDateOnly(dateStr); err != nil {
		return nil, fmt.Errorf("parse override date: %w", err)
	}
	o.Type = models.OverrideType(typ)
	if s := nullStr(start); s != nil {
		c, err := timegrid.ParseClock(*s)
		if err != nil {
			return nil, err
		}
		o.Start = &c
	}
	if s := nullStr(end); s != nil {
		c, err := timegrid.ParseClock(*s)
		if err != nil {
			return nil, err
		}
		o.End = &c
	}
	if s := nullStr(reason); s != nil {
		o.Reason = *s
	}
	return &o, nil
}

// UpsertOverride creates or replaces the single override allowed per
// (staff, branch, date).
func (db *DB) UpsertOverride(ctx context.Context, o *models.AvailabilityOverride) error {
	var start, end any
	if o.Start != nil {
		start = o.Start.String()
	}
	if o.End != nil {
		end = o.End.String()
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO availability_overrides (id, staff_id, branch_id, date, type, start_time, end_time, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(staff_id, branch_id, date) DO UPDATE SET
			type = excluded.type,
			start_time = excluded.start_time,
			end_time = excluded.end_time,
			reason = excluded.reason`,
		o.ID.String(), o.StaffID.String(), o.BranchID.String(), dateOnly(o.Date), string(o.Type), start, end, o.Reason,
	)
	if err != nil {
		return fmt.Errorf("upsert override: %w", err)
	}
	return nil
}

// DeleteOverride removes the override for a date, restoring the weekly
// schedule.
func (db *DB) DeleteOverride(ctx context.Context, staffID, branchID uuid.UUID, date time.Time) error {
	_, err := db.ExecContext(ctx,
		"DELETE FROM availability_overrides WHERE staff_id = ? AND branch_id = ? AND date = ?",
		staffID.String(), branchID.String(), dateOnly(date),
	)
	if err != nil {
		return fmt.Errorf("delete override: %w", err)
	}
	return nil
}

// ListScheduleContext returns one row per weekly window for each staff
// member assigned to the service with windows at the branch. A nil
// staffIDs fetches all assigned staff; an empty slice returns nothing.
func (db *DB) ListScheduleContext(ctx context.Context, staffIDs []uuid.UUID, serviceID, branchID uuid.UUID) ([]scheduling.ScheduleContextRow, error) {
	query := `
		SELECT ss.id, ss.staff_id, ss.service_id, ss.duration_override, ss.price_override,
		       w.id, w.day_of_week, w.start_time, w.end_time,
		       st.name
		FROM staff_services ss
		JOIN weekly_windows w ON w.staff_id = ss.staff_id
		JOIN staff st ON st.id = ss.staff_id
		WHERE ss.service_id = ? AND w.branch_id = ? AND st.active = 1`
	args := []any{serviceID.String(), branchID.String()}

	if staffIDs != nil {
		if len(staffIDs) == 0 {
			return nil, nil
		}
		placeholders := make([]string, len(staffIDs))
		for i, id := range staffIDs {
			placeholders[i] = "?"
			args = append(args, id.String())
		}
		query += fmt.Sprintf(" AND ss.staff_id IN (%s)", strings.Join(placeholders, ", "))
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list schedule context: %w", err)
	}
	defer rows.Close()

	var out []scheduling.ScheduleContextRow
	for rows.Next() {
		var row scheduling.ScheduleContextRow
		var asgID, staffID, svcID, windowID, start, end string
		var durationOverride sql.NullInt64
		var priceOverride sql.NullFloat64

		if err := rows.Scan(
			&asgID, &staffID, &svcID, &durationOverride, &priceOverride,
			&windowID, &row.Window.DayOfWeek, &start, &end,
			&row.StaffName,
		); err != nil {
			return nil, fmt.Errorf("scan schedule context: %w", err)
		}

		if row.Assignment.ID, err = uuid.Parse(asgID); err != nil {
			return nil, fmt.Errorf("parse assignment id: %w", err)
		}
		if row.Assignment.StaffID, err = uuid.Parse(staffID); err != nil {
			return nil, fmt.Errorf("parse staff id: %w", err)
		}
		if row.Assignment.ServiceID, err = uuid.Parse(svcID); err != nil {
			return nil, fmt.Errorf("parse service id: %w", err)
		}
		if durationOverride.Valid {
			v := int(durationOverride.Int64)
			row.Assignment.DurationOverride = &v
		}
		if priceOverride.Valid {
			v := priceOverride.Float64
			row.Assignment.PriceOverride = &v
		}

		if row.Window.ID, err = uuid.Parse(windowID); err != nil {
			return nil, fmt.Errorf("parse window id: %w", err)
		}
		row.Window.StaffID = row.Assignment.StaffID
		row.Window.BranchID = branchID
		if row.Window.Start, err = timegrid.ParseClock(start); err != nil {
			return nil, err
		}
		if row.Window.End, err = timegrid.ParseClock(end); err != nil {
			return nil, err
		}

		out = append(out, row)
	}
	return out, rows.Err()
}
