package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"barberbook/internal/domain"
	"barberbook/internal/models"
	"barberbook/internal/scheduling"
)

const appointmentColumns = `id, business_id, professional_id, service_id, appointment_date, start_time,
        duration_minutes, client_name, client_phone, notes, status, version, created_at, updated_at`

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func scanAppointment(row interface{ Scan(...any) error }) (*models.Appointment, error) {
	var a models.Appointment
	err := row.Scan(
		&a.ID, &a.BusinessID, &a.ProfessionalID, &a.ServiceID, &a.Date, &a.StartTime,
		&a.DurationMinutes, &a.ClientName, &a.ClientPhone, &a.Notes, &a.Status, &a.Version,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func collectAppointments(rows *sql.Rows) ([]*models.Appointment, error) {
	defer rows.Close()
	var out []*models.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan appointment: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func listActive(ctx context.Context, q queryer, businessID, professionalID, date string) ([]*models.Appointment, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+appointmentColumns+`
        FROM appointments
        WHERE business_id = ? AND professional_id = ? AND appointment_date = ? AND status <> ?
        ORDER BY start_minute`,
		businessID, professionalID, date, models.StatusCancelled)
	if err != nil {
		return nil, fmt.Errorf("failed to list active appointments: %w", err)
	}
	return collectAppointments(rows)
}

// ListActiveAppointments returns the non-cancelled appointments of a
// professional on date, ordered by start.
func (db *DB) ListActiveAppointments(ctx context.Context, businessID, professionalID, date string) ([]*models.Appointment, error) {
	return listActive(ctx, db, businessID, professionalID, date)
}

// CreateAppointmentGuarded re-reads the professional's appointments for the
// date, runs check, and inserts appt in the same IMMEDIATE transaction.
// Only one writer holds the lock, so the check sees every committed row.
func (db *DB) CreateAppointmentGuarded(ctx context.Context, appt *models.Appointment, check domain.ConflictCheck) error {
	start, err := scheduling.ParseClock(appt.StartTime)
	if err != nil {
		return err
	}
	end := start + appt.DurationMinutes

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	existing, err := listActive(ctx, tx, appt.BusinessID, appt.ProfessionalID, appt.Date)
	if err != nil {
		return err
	}
	if check != nil {
		if err := check(existing); err != nil {
			return err
		}
	}

	now := time.Now()
	_, err = tx.ExecContext(ctx, `INSERT INTO appointments (
            id, business_id, professional_id, service_id, appointment_date, start_time,
            start_minute, end_minute, duration_minutes, client_name, client_phone, notes,
            status, version, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		appt.ID, appt.BusinessID, appt.ProfessionalID, appt.ServiceID, appt.Date, appt.StartTime,
		start, end, appt.DurationMinutes, appt.ClientName, appt.ClientPhone, appt.Notes,
		appt.Status, 1, now, now,
	)
	if err != nil {
		if isOverlapViolation(err) {
			return domain.ErrSlotUnavailable
		}
		return fmt.Errorf("failed to create appointment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		if isOverlapViolation(err) {
			return domain.ErrSlotUnavailable
		}
		return fmt.Errorf("failed to commit appointment: %w", err)
	}

	appt.Version = 1
	appt.CreatedAt = now
	appt.UpdatedAt = now
	return nil
}

func (db *DB) GetAppointment(ctx context.Context, businessID, id string) (*models.Appointment, error) {
	a, err := scanAppointment(db.QueryRowContext(ctx,
		`SELECT `+appointmentColumns+` FROM appointments WHERE business_id = ? AND id = ?`, businessID, id))
	if err != nil {
		return nil, notFound(err)
	}
	return a, nil
}

func (db *DB) ListAppointments(ctx context.Context, filter models.AppointmentFilter) ([]*models.Appointment, error) {
	where := []string{"business_id = ?"}
	args := []any{filter.BusinessID}
	if filter.ProfessionalID != "" {
		where = append(where, "professional_id = ?")
		args = append(args, filter.ProfessionalID)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.DateFrom != "" {
		where = append(where, "appointment_date >= ?")
		args = append(args, filter.DateFrom)
	}
	if filter.DateTo != "" {
		where = append(where, "appointment_date <= ?")
		args = append(args, filter.DateTo)
	}

	rows, err := db.QueryContext(ctx, `SELECT `+appointmentColumns+` FROM appointments
        WHERE `+strings.Join(where, " AND ")+`
        ORDER BY appointment_date, start_minute, professional_id`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return collectAppointments(rows)
}

// UpdateAppointmentStatusWithVersion applies an optimistic status change.
func (db *DB) UpdateAppointmentStatusWithVersion(ctx context.Context, businessID, id string, version int64, status string) error {
	res, err := db.ExecContext(ctx, `UPDATE appointments
        SET status = ?, version = version + 1, updated_at = ?
        WHERE business_id = ? AND id = ? AND version = ?`,
		status, time.Now(), businessID, id, version)
	if err != nil {
		if isOverlapViolation(err) {
			return domain.ErrSlotUnavailable
		}
		return fmt.Errorf("failed to update appointment status: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		var exists int
		err := db.QueryRowContext(ctx,
			`SELECT 1 FROM appointments WHERE business_id = ? AND id = ?`, businessID, id).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		if err != nil {
			return err
		}
		return domain.ErrConcurrentModification
	}
	return nil
}
