// Package database is the SQLite-backed store for catalog data and
// appointments.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"barberbook/internal/domain"

	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// overlapMessage is raised by the appointment triggers.
const overlapMessage = "appointment overlap"

type DB struct {
	*sql.DB
	path   string
	logger *zerolog.Logger
}

// NewDB opens (and migrates) the SQLite database at path. Write transactions
// start with BEGIN IMMEDIATE so the check-then-insert in
// CreateAppointmentGuarded holds the write lock from its first read.
func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	if path != ":memory:" {
		// Создаем директорию для БД, если её нет
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := path + "?_txlock=immediate&_busy_timeout=5000&_foreign_keys=1"
	if path != ":memory:" {
		dsn += "&_journal_mode=WAL"
	}

	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == ":memory:" {
		// each connection would get its own empty database
		sqlDB.SetMaxOpenConns(1)
	}

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := createTables(sqlDB); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("Database initialized")
	return &DB{DB: sqlDB, path: path, logger: logger}, nil
}

func (db *DB) Ping(ctx context.Context) error {
	return db.PingContext(ctx)
}

// Path returns the file the database was opened from.
func (db *DB) Path() string {
	return db.path
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS businesses (
            id TEXT PRIMARY KEY,
            name TEXT NOT NULL,
            whatsapp_number TEXT NOT NULL DEFAULT '',
            timezone TEXT NOT NULL DEFAULT ''
        )`,
		`CREATE TABLE IF NOT EXISTS professionals (
            id TEXT PRIMARY KEY,
            business_id TEXT NOT NULL,
            name TEXT NOT NULL,
            phone TEXT NOT NULL DEFAULT '',
            working_hours TEXT NOT NULL DEFAULT '{}',
            is_active BOOLEAN NOT NULL DEFAULT 1,
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS services (
            id TEXT PRIMARY KEY,
            business_id TEXT NOT NULL,
            name TEXT NOT NULL,
            price REAL NOT NULL DEFAULT 0,
            duration_minutes INTEGER NOT NULL CHECK (duration_minutes > 0),
            is_active BOOLEAN NOT NULL DEFAULT 1,
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS professional_services (
            professional_id TEXT NOT NULL REFERENCES professionals(id) ON DELETE CASCADE,
            service_id TEXT NOT NULL REFERENCES services(id) ON DELETE CASCADE,
            PRIMARY KEY (professional_id, service_id)
        )`,
		`CREATE TABLE IF NOT EXISTS appointments (
            id TEXT PRIMARY KEY,
            business_id TEXT NOT NULL,
            professional_id TEXT NOT NULL,
            service_id TEXT NOT NULL,
            appointment_date TEXT NOT NULL,
            start_time TEXT NOT NULL,
            start_minute INTEGER NOT NULL,
            end_minute INTEGER NOT NULL,
            duration_minutes INTEGER NOT NULL,
            client_name TEXT NOT NULL,
            client_phone TEXT NOT NULL,
            notes TEXT NOT NULL DEFAULT '',
            status TEXT NOT NULL DEFAULT 'pending',
            version INTEGER NOT NULL DEFAULT 1,
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL,
            CHECK (end_minute > start_minute)
        )`,
		`CREATE TABLE IF NOT EXISTS sync_queue (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            task_type TEXT NOT NULL,
            appointment_id TEXT NOT NULL,
            payload TEXT NOT NULL DEFAULT '',
            status TEXT NOT NULL DEFAULT 'pending',
            retry_count INTEGER NOT NULL DEFAULT 0,
            last_error TEXT,
            created_at DATETIME NOT NULL,
            processed_at DATETIME,
            next_retry_at DATETIME
        )`,

		`CREATE INDEX IF NOT EXISTS idx_professionals_business ON professionals(business_id)`,
		`CREATE INDEX IF NOT EXISTS idx_services_business ON services(business_id)`,
		`CREATE INDEX IF NOT EXISTS idx_appointments_slot ON appointments(business_id, professional_id, appointment_date, status)`,
		`CREATE INDEX IF NOT EXISTS idx_appointments_date ON appointments(business_id, appointment_date)`,
		`CREATE INDEX IF NOT EXISTS idx_sync_queue_status ON sync_queue(status, next_retry_at)`,

		// Последний рубеж: пересечение активных записей одного мастера в один день
		`CREATE TRIGGER IF NOT EXISTS appointments_no_overlap_insert
            BEFORE INSERT ON appointments
            WHEN NEW.status <> 'cancelled'
        BEGIN
            SELECT RAISE(ABORT, '` + overlapMessage + `')
            WHERE EXISTS (
                SELECT 1 FROM appointments
                WHERE business_id = NEW.business_id
                  AND professional_id = NEW.professional_id
                  AND appointment_date = NEW.appointment_date
                  AND status <> 'cancelled'
                  AND start_minute < NEW.end_minute
                  AND end_minute > NEW.start_minute
            );
        END`,
		`CREATE TRIGGER IF NOT EXISTS appointments_no_overlap_reactivate
            BEFORE UPDATE OF status ON appointments
            WHEN OLD.status = 'cancelled' AND NEW.status <> 'cancelled'
        BEGIN
            SELECT RAISE(ABORT, '` + overlapMessage + `')
            WHERE EXISTS (
                SELECT 1 FROM appointments
                WHERE id <> NEW.id
                  AND business_id = NEW.business_id
                  AND professional_id = NEW.professional_id
                  AND appointment_date = NEW.appointment_date
                  AND status <> 'cancelled'
                  AND start_minute < NEW.end_minute
                  AND end_minute > NEW.start_minute
            );
        END`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}

// isOverlapViolation reports whether err came from the overlap triggers.
func isOverlapViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintTrigger {
		return true
	}
	return err != nil && strings.Contains(err.Error(), overlapMessage)
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	return err
}
