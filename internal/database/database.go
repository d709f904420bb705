// Package database implements the repository interfaces consumed by
// the scheduling and booking services on top of SQLite.
package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"
)

// DB wraps the SQLite connection pool.
type DB struct {
	*sql.DB
	logger *zerolog.Logger
}

// NewDB opens (creating if needed) the database at path and ensures the
// schema exists. WAL mode and an immediate transaction lock keep the
// overlap re-check inside booking writes serialized.
func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	dsn := path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_txlock=immediate&_foreign_keys=on"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	instance := &DB{DB: db, logger: logger}
	if err := instance.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("database initialized")
	return instance, nil
}

func (db *DB) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS services (
			id TEXT PRIMARY KEY,
			company_id TEXT NOT NULL,
			name TEXT NOT NULL,
			default_duration_minutes INTEGER NOT NULL,
			default_price REAL NOT NULL,
			currency TEXT NOT NULL DEFAULT 'SGD',
			active BOOLEAN NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS staff (
			id TEXT PRIMARY KEY,
			company_id TEXT NOT NULL,
			name TEXT NOT NULL,
			active BOOLEAN NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS staff_services (
			id TEXT PRIMARY KEY,
			staff_id TEXT NOT NULL REFERENCES staff(id),
			service_id TEXT NOT NULL REFERENCES services(id),
			duration_override INTEGER,
			price_override REAL,
			UNIQUE(staff_id, service_id)
		)`,
		`CREATE TABLE IF NOT EXISTS weekly_windows (
			id TEXT PRIMARY KEY,
			staff_id TEXT NOT NULL REFERENCES staff(id),
			branch_id TEXT NOT NULL,
			day_of_week INTEGER NOT NULL CHECK(day_of_week BETWEEN 0 AND 6),
			start_time TEXT NOT NULL,
			end_time TEXT NOT NULL,
			CHECK(start_time < end_time)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_weekly_windows_staff_branch
			ON weekly_windows(staff_id, branch_id, day_of_week)`,
		`CREATE TABLE IF NOT EXISTS availability_overrides (
			id TEXT PRIMARY KEY,
			staff_id TEXT NOT NULL REFERENCES staff(id),
			branch_id TEXT NOT NULL,
			date TEXT NOT NULL,
			type TEXT NOT NULL CHECK(type IN ('blocked', 'modified')),
			start_time TEXT,
			end_time TEXT,
			reason TEXT,
			UNIQUE(staff_id, branch_id, date)
		)`,
		`CREATE TABLE IF NOT EXISTS bookings (
			id TEXT PRIMARY KEY,
			company_id TEXT NOT NULL,
			branch_id TEXT NOT NULL,
			staff_id TEXT NOT NULL REFERENCES staff(id),
			service_id TEXT NOT NULL REFERENCES services(id),
			customer_name TEXT NOT NULL DEFAULT '',
			customer_phone TEXT NOT NULL DEFAULT '',
			date TEXT NOT NULL,
			start_time TEXT NOT NULL,
			end_time TEXT NOT NULL,
			duration_minutes INTEGER NOT NULL,
			price REAL NOT NULL,
			currency TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'confirmed',
			booked_via TEXT NOT NULL DEFAULT 'api',
			notes TEXT NOT NULL DEFAULT '',
			cancelled_at DATETIME,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			CHECK(start_time < end_time)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_staff_date
			ON bookings(staff_id, date, status)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_company_branch
			ON bookings(company_id, branch_id, status)`,
	}

	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			return fmt.Errorf("exec schema statement: %w", err)
		}
	}
	return nil
}

// nullStr converts a TEXT column that may be NULL into a *string.
func nullStr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func dateOnly(t time.Time) string {
	return t.Format("2006-01-02")
}

func parseDateOnly(s string) (time.Time, error) {
	return time.Parse("2006-01-02", s)
}
