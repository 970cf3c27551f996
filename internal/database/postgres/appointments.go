package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"barberbook/internal/domain"
	"barberbook/internal/models"
	"barberbook/internal/scheduling"

	"github.com/jackc/pgx/v5"
)

const appointmentColumns = `id, business_id, professional_id, service_id, to_char(appointment_date, 'YYYY-MM-DD'), start_time,
	duration_minutes, client_name, client_phone, notes, status, version, created_at, updated_at`

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func scanAppointment(row pgx.Row) (*models.Appointment, error) {
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

func collect(rows pgx.Rows) ([]*models.Appointment, error) {
	defer rows.Close()
	var out []*models.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func listActive(ctx context.Context, q querier, businessID, professionalID, date string) ([]*models.Appointment, error) {
	rows, err := q.Query(ctx, `SELECT `+appointmentColumns+`
		FROM appointments
		WHERE business_id = $1 AND professional_id = $2 AND appointment_date = $3::date AND status <> $4
		ORDER BY start_minute`,
		businessID, professionalID, date, models.StatusCancelled)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func (s *Store) ListActiveAppointments(ctx context.Context, businessID, professionalID, date string) ([]*models.Appointment, error) {
	return listActive(ctx, s.pool, businessID, professionalID, date)
}

// CreateAppointmentGuarded serialises writers for one professional and date
// with a transaction-scoped advisory lock, re-reads, runs check and inserts.
// The exclusion constraint rejects anything that slips past.
func (s *Store) CreateAppointmentGuarded(ctx context.Context, appt *models.Appointment, check domain.ConflictCheck) error {
	start, err := scheduling.ParseClock(appt.StartTime)
	if err != nil {
		return err
	}

	var created, updated time.Time
	err = pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		lockKey := appt.BusinessID + "|" + appt.ProfessionalID + "|" + appt.Date
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, lockKey); err != nil {
			return err
		}

		existing, err := listActive(ctx, tx, appt.BusinessID, appt.ProfessionalID, appt.Date)
		if err != nil {
			return err
		}
		if check != nil {
			if err := check(existing); err != nil {
				return err
			}
		}

		return tx.QueryRow(ctx, `INSERT INTO appointments (
				id, business_id, professional_id, service_id, appointment_date, start_time,
				start_minute, end_minute, duration_minutes, client_name, client_phone, notes, status, version
			) VALUES ($1, $2, $3, $4, $5::date, $6, $7, $8, $9, $10, $11, $12, $13, 1)
			RETURNING created_at, updated_at`,
			appt.ID, appt.BusinessID, appt.ProfessionalID, appt.ServiceID, appt.Date, appt.StartTime,
			start, start+appt.DurationMinutes, appt.DurationMinutes, appt.ClientName, appt.ClientPhone,
			appt.Notes, appt.Status,
		).Scan(&created, &updated)
	})
	if err != nil {
		if IsConflict(err) {
			return domain.ErrSlotUnavailable
		}
		return err
	}

	appt.Version = 1
	appt.CreatedAt = created
	appt.UpdatedAt = updated
	return nil
}

func (s *Store) GetAppointment(ctx context.Context, businessID, id string) (*models.Appointment, error) {
	a, err := scanAppointment(s.pool.QueryRow(ctx,
		`SELECT `+appointmentColumns+` FROM appointments WHERE business_id = $1 AND id = $2`, businessID, id))
	if err != nil {
		return nil, mapErr(err)
	}
	return a, nil
}

func (s *Store) ListAppointments(ctx context.Context, filter models.AppointmentFilter) ([]*models.Appointment, error) {
	where := []string{"business_id = $1"}
	args := []any{filter.BusinessID}
	add := func(clause string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if filter.ProfessionalID != "" {
		add("professional_id = $%d", filter.ProfessionalID)
	}
	if filter.Status != "" {
		add("status = $%d", filter.Status)
	}
	if filter.DateFrom != "" {
		add("appointment_date >= $%d::date", filter.DateFrom)
	}
	if filter.DateTo != "" {
		add("appointment_date <= $%d::date", filter.DateTo)
	}

	rows, err := s.pool.Query(ctx, `SELECT `+appointmentColumns+` FROM appointments
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY appointment_date, start_minute, professional_id`, args...)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func (s *Store) UpdateAppointmentStatusWithVersion(ctx context.Context, businessID, id string, version int64, status string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE appointments
		SET status = $1, version = version + 1, updated_at = now()
		WHERE business_id = $2 AND id = $3 AND version = $4`,
		status, businessID, id, version)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM appointments WHERE business_id = $1 AND id = $2)`, businessID, id,
	).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return domain.ErrNotFound
	}
	return domain.ErrConcurrentModification
}
