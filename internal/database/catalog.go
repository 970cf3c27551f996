package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"barberbook/internal/models"
)

func (db *DB) GetBusiness(ctx context.Context, id string) (*models.Business, error) {
	var b models.Business
	err := db.QueryRowContext(ctx,
		`SELECT id, name, whatsapp_number, timezone FROM businesses WHERE id = ?`, id,
	).Scan(&b.ID, &b.Name, &b.WhatsAppNumber, &b.Timezone)
	if err != nil {
		return nil, notFound(err)
	}
	return &b, nil
}

func (db *DB) UpsertBusiness(ctx context.Context, b *models.Business) error {
	_, err := db.ExecContext(ctx, `
        INSERT INTO businesses (id, name, whatsapp_number, timezone) VALUES (?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            name = excluded.name,
            whatsapp_number = excluded.whatsapp_number,
            timezone = excluded.timezone`,
		b.ID, b.Name, b.WhatsAppNumber, b.Timezone)
	if err != nil {
		return fmt.Errorf("failed to upsert business: %w", err)
	}
	return nil
}

const professionalColumns = `id, business_id, name, phone, working_hours, is_active, created_at, updated_at`

func scanProfessional(row interface{ Scan(...any) error }) (*models.Professional, error) {
	var p models.Professional
	var hours string
	if err := row.Scan(&p.ID, &p.BusinessID, &p.Name, &p.Phone, &hours, &p.IsActive, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(hours), &p.WorkingHours); err != nil {
		return nil, fmt.Errorf("decode working hours of %s: %w", p.ID, err)
	}
	return &p, nil
}

func (db *DB) GetProfessional(ctx context.Context, businessID, id string) (*models.Professional, error) {
	p, err := scanProfessional(db.QueryRowContext(ctx,
		`SELECT `+professionalColumns+` FROM professionals WHERE business_id = ? AND id = ?`, businessID, id))
	if err != nil {
		return nil, notFound(err)
	}

	mapping, err := db.serviceMapping(ctx, businessID)
	if err != nil {
		return nil, err
	}
	p.ServiceIDs = mapping[p.ID]
	return p, nil
}

func (db *DB) ListProfessionals(ctx context.Context, businessID string) ([]*models.Professional, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+professionalColumns+` FROM professionals WHERE business_id = ? ORDER BY name`, businessID)
	if err != nil {
		return nil, fmt.Errorf("failed to list professionals: %w", err)
	}
	defer rows.Close()

	var out []*models.Professional
	for rows.Next() {
		p, err := scanProfessional(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan professional: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	mapping, err := db.serviceMapping(ctx, businessID)
	if err != nil {
		return nil, err
	}
	for _, p := range out {
		p.ServiceIDs = mapping[p.ID]
	}
	return out, nil
}

func (db *DB) serviceMapping(ctx context.Context, businessID string) (map[string][]string, error) {
	rows, err := db.QueryContext(ctx, `
        SELECT ps.professional_id, ps.service_id
        FROM professional_services ps
        JOIN professionals p ON p.id = ps.professional_id
        WHERE p.business_id = ?
        ORDER BY ps.professional_id, ps.service_id`, businessID)
	if err != nil {
		return nil, fmt.Errorf("failed to load service mapping: %w", err)
	}
	defer rows.Close()

	mapping := make(map[string][]string)
	for rows.Next() {
		var profID, svcID string
		if err := rows.Scan(&profID, &svcID); err != nil {
			return nil, err
		}
		mapping[profID] = append(mapping[profID], svcID)
	}
	return mapping, rows.Err()
}

// UpsertProfessional writes the professional and replaces its service mapping.
func (db *DB) UpsertProfessional(ctx context.Context, p *models.Professional) error {
	hours, err := json.Marshal(p.WorkingHours)
	if err != nil {
		return fmt.Errorf("encode working hours: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now()
	_, err = tx.ExecContext(ctx, `
        INSERT INTO professionals (`+professionalColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            name = excluded.name,
            phone = excluded.phone,
            working_hours = excluded.working_hours,
            is_active = excluded.is_active,
            updated_at = excluded.updated_at`,
		p.ID, p.BusinessID, p.Name, p.Phone, string(hours), p.IsActive, now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert professional: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM professional_services WHERE professional_id = ?`, p.ID); err != nil {
		return fmt.Errorf("failed to reset service mapping: %w", err)
	}
	for _, svcID := range p.ServiceIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO professional_services (professional_id, service_id) VALUES (?, ?)`, p.ID, svcID); err != nil {
			return fmt.Errorf("failed to map service %s: %w", svcID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit professional: %w", err)
	}
	p.UpdatedAt = now
	return nil
}

const serviceColumns = `id, business_id, name, price, duration_minutes, is_active, created_at, updated_at`

func scanService(row interface{ Scan(...any) error }) (*models.Service, error) {
	var s models.Service
	err := row.Scan(&s.ID, &s.BusinessID, &s.Name, &s.Price, &s.DurationMinutes, &s.IsActive, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (db *DB) GetService(ctx context.Context, businessID, id string) (*models.Service, error) {
	s, err := scanService(db.QueryRowContext(ctx,
		`SELECT `+serviceColumns+` FROM services WHERE business_id = ? AND id = ?`, businessID, id))
	if err != nil {
		return nil, notFound(err)
	}
	return s, nil
}

func (db *DB) ListServices(ctx context.Context, businessID string) ([]*models.Service, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+serviceColumns+` FROM services WHERE business_id = ? ORDER BY name`, businessID)
	if err != nil {
		return nil, fmt.Errorf("failed to list services: %w", err)
	}
	defer rows.Close()

	var out []*models.Service
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan service: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (db *DB) UpsertService(ctx context.Context, s *models.Service) error {
	now := time.Now()
	_, err := db.ExecContext(ctx, `
        INSERT INTO services (`+serviceColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            name = excluded.name,
            price = excluded.price,
            duration_minutes = excluded.duration_minutes,
            is_active = excluded.is_active,
            updated_at = excluded.updated_at`,
		s.ID, s.BusinessID, s.Name, s.Price, s.DurationMinutes, s.IsActive, now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert service: %w", err)
	}
	s.UpdatedAt = now
	return nil
}
