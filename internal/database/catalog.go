package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"slotline/internal/models"
)

// GetService returns a service by ID, or (nil, nil) when absent.
func (db *DB) GetService(ctx context.Context, id uuid.UUID) (*models.Service, error) {
	var s models.Service
	var sid, companyID string
	err := db.QueryRowContext(ctx, `
		SELECT id, company_id, name, default_duration_minutes, default_price, currency, active, created_at, updated_at
		FROM services
		WHERE id = ?`,
		id.String(),
	).Scan(&sid, &companyID, &s.Name, &s.DefaultDurationMinutes, &s.DefaultPrice, &s.Currency, &s.Active, &s.CreatedAt, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get service: %w", err)
	}

	s.ID, err = uuid.Parse(sid)
	if err != nil {
		return nil, fmt.Errorf("parse service id: %w", err)
	}
	s.CompanyID, err = uuid.Parse(companyID)
	if err != nil {
		return nil, fmt.Errorf("parse company id: %w", err)
	}
	return &s, nil
}

// CreateService inserts a catalog service.
func (db *DB) CreateService(ctx context.Context, s *models.Service) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO services (id, company_id, name, default_duration_minutes, default_price, currency, active)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.ID.String(), s.CompanyID.String(), s.Name, s.DefaultDurationMinutes, s.DefaultPrice, s.Currency, s.Active,
	)
	if err != nil {
		return fmt.Errorf("create service: %w", err)
	}
	return nil
}

// GetStaff returns a staff member by ID, or (nil, nil) when absent.
func (db *DB) GetStaff(ctx context.Context, id uuid.UUID) (*models.Staff, error) {
	var st models.Staff
	var sid, companyID string
	err := db.QueryRowContext(ctx, `
		SELECT id, company_id, name, active, created_at, updated_at
		FROM staff
		WHERE id = ?`,
		id.String(),
	).Scan(&sid, &companyID, &st.Name, &st.Active, &st.CreatedAt, &st.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get staff: %w", err)
	}

	st.ID, err = uuid.Parse(sid)
	if err != nil {
		return nil, fmt.Errorf("parse staff id: %w", err)
	}
	st.CompanyID, err = uuid.Parse(companyID)
	if err != nil {
		return nil, fmt.Errorf("parse company id: %w", err)
	}
	return &st, nil
}

// CreateStaff inserts a staff member.
func (db *DB) CreateStaff(ctx context.Context, st *models.Staff) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO staff (id, company_id, name, active)
		VALUES (?, ?, ?, ?)`,
		st.ID.String(), st.CompanyID.String(), st.Name, st.Active,
	)
	if err != nil {
		return fmt.Errorf("create staff: %w", err)
	}
	return nil
}

// GetAssignment returns the staff-service assignment, or (nil, nil)
// when the staff member is not qualified for the service.
func (db *DB) GetAssignment(ctx context.Context, staffID, serviceID uuid.UUID) (*models.StaffServiceAssignment, error) {
	var a models.StaffServiceAssignment
	var id string
	var durationOverride sql.NullInt64
	var priceOverride sql.NullFloat64
	err := db.QueryRowContext(ctx, `
		SELECT id, duration_override, price_override
		FROM staff_services
		WHERE staff_id = ? AND service_id = ?`,
		staffID.String(), serviceID.String(),
	).Scan(&id, &durationOverride, &priceOverride)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get assignment: %w", err)
	}

	a.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parse assignment id: %w", err)
	}
	a.StaffID = staffID
	a.ServiceID = serviceID
	if durationOverride.Valid {
		v := int(durationOverride.Int64)
		a.DurationOverride = &v
	}
	if priceOverride.Valid {
		v := priceOverride.Float64
		a.PriceOverride = &v
	}
	return &a, nil
}

// UpsertAssignment creates or updates the qualification link between a
// staff member and a service.
func (db *DB) UpsertAssignment(ctx context.Context, a *models.StaffServiceAssignment) error {
	var durationOverride any
	if a.DurationOverride != nil {
		durationOverride = *a.DurationOverride
	}
	var priceOverride any
	if a.PriceOverride != nil {
		priceOverride = *a.PriceOverride
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO staff_services (id, staff_id, service_id, duration_override, price_override)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(staff_id, service_id) DO UPDATE SET
			duration_override = excluded.duration_override,
			price_override = excluded.price_override`,
		a.ID.String(), a.StaffID.String(), a.ServiceID.String(), durationOverride, priceOverride,
	)
	if err != nil {
		return fmt.Errorf("upsert assignment: %w", err)
	}
	return nil
}

// StaffNames returns a display-name lookup for all staff in a company.
func (db *DB) StaffNames(ctx context.Context, companyID uuid.UUID) (map[uuid.UUID]string, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT id, name FROM staff WHERE company_id = ?",
		companyID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("staff names: %w", err)
	}
	defer rows.Close()

	out := make(map[uuid.UUID]string)
	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("scan staff name: %w", err)
		}
		uid, err := uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("parse staff id: %w", err)
		}
		out[uid] = name
	}
	return out, rows.Err()
}

// ServiceNames returns a display-name lookup for all services in a company.
func (db *DB) ServiceNames(ctx context.Context, companyID uuid.UUID) (map[uuid.UUID]string, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT id, name FROM services WHERE company_id = ?",
		companyID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("service names: %w", err)
	}
	defer rows.Close()

	out := make(map[uuid.UUID]string)
	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("scan service name: %w", err)
		}
		uid, err := uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("parse service id: %w", err)
		}
		out[uid] = name
	}
	return out, rows.Err()
}

// DeleteAssignment removes a staff member's qualification for a service.
func (db *DB) DeleteAssignment(ctx context.Context, staffID, serviceID uuid.UUID) error {
	_, err := db.ExecContext(ctx,
		"DELETE FROM staff_services WHERE staff_id = ? AND service_id = ?",
		staffID.String(), serviceID.String(),
	)
	if err != nil {
		return fmt.Errorf("delete assignment: %w", err)
	}
	return nil
}
