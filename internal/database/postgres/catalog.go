package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"barberbook/internal/models"

	"github.com/jackc/pgx/v5"
)

func (s *Store) GetBusiness(ctx context.Context, id string) (*models.Business, error) {
	var b models.Business
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, whatsapp_number, timezone FROM businesses WHERE id = $1`, id,
	).Scan(&b.ID, &b.Name, &b.WhatsAppNumber, &b.Timezone)
	if err != nil {
		return nil, mapErr(err)
	}
	return &b, nil
}

func (s *Store) UpsertBusiness(ctx context.Context, b *models.Business) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO businesses (id, name, whatsapp_number, timezone) VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			whatsapp_number = EXCLUDED.whatsapp_number,
			timezone = EXCLUDED.timezone`,
		b.ID, b.Name, b.WhatsAppNumber, b.Timezone)
	return err
}

const professionalColumns = `p.id, p.business_id, p.name, p.phone, p.working_hours, p.is_active, p.created_at, p.updated_at,
	COALESCE((SELECT array_agg(ps.service_id ORDER BY ps.service_id) FROM professional_services ps WHERE ps.professional_id = p.id), '{}')`

func scanProfessional(row pgx.Row) (*models.Professional, error) {
	var p models.Professional
	var hours []byte
	if err := row.Scan(&p.ID, &p.BusinessID, &p.Name, &p.Phone, &hours, &p.IsActive, &p.CreatedAt, &p.UpdatedAt, &p.ServiceIDs); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(hours, &p.WorkingHours); err != nil {
		return nil, fmt.Errorf("decode working hours of %s: %w", p.ID, err)
	}
	if len(p.ServiceIDs) == 0 {
		p.ServiceIDs = nil
	}
	return &p, nil
}

func (s *Store) GetProfessional(ctx context.Context, businessID, id string) (*models.Professional, error) {
	p, err := scanProfessional(s.pool.QueryRow(ctx,
		`SELECT `+professionalColumns+` FROM professionals p WHERE p.business_id = $1 AND p.id = $2`, businessID, id))
	if err != nil {
		return nil, mapErr(err)
	}
	return p, nil
}

func (s *Store) ListProfessionals(ctx context.Context, businessID string) ([]*models.Professional, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+professionalColumns+` FROM professionals p WHERE p.business_id = $1 ORDER BY p.name`, businessID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Professional
	for rows.Next() {
		p, err := scanProfessional(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) UpsertProfessional(ctx context.Context, p *models.Professional) error {
	hours, err := json.Marshal(p.WorkingHours)
	if err != nil {
		return fmt.Errorf("encode working hours: %w", err)
	}

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO professionals (id, business_id, name, phone, working_hours, is_active)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name,
				phone = EXCLUDED.phone,
				working_hours = EXCLUDED.working_hours,
				is_active = EXCLUDED.is_active,
				updated_at = now()`,
			p.ID, p.BusinessID, p.Name, p.Phone, hours, p.IsActive)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM professional_services WHERE professional_id = $1`, p.ID); err != nil {
			return err
		}
		for _, svcID := range p.ServiceIDs {
			if _, err := tx.Exec(ctx,
				`INSERT INTO professional_services (professional_id, service_id) VALUES ($1, $2)`, p.ID, svcID); err != nil {
				return err
			}
		}
		return nil
	})
}

const serviceColumns = `id, business_id, name, price, duration_minutes, is_active, created_at, updated_at`

func scanService(row pgx.Row) (*models.Service, error) {
	var svc models.Service
	err := row.Scan(&svc.ID, &svc.BusinessID, &svc.Name, &svc.Price, &svc.DurationMinutes, &svc.IsActive, &svc.CreatedAt, &svc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &svc, nil
}

func (s *Store) GetService(ctx context.Context, businessID, id string) (*models.Service, error) {
	svc, err := scanService(s.pool.QueryRow(ctx,
		`SELECT `+serviceColumns+` FROM services WHERE business_id = $1 AND id = $2`, businessID, id))
	if err != nil {
		return nil, mapErr(err)
	}
	return svc, nil
}

func (s *Store) ListServices(ctx context.Context, businessID string) ([]*models.Service, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+serviceColumns+` FROM services WHERE business_id = $1 ORDER BY name`, businessID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Service
	for rows.Next() {
		svc, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, svc)
	}
	return out, rows.Err()
}

func (s *Store) UpsertService(ctx context.Context, svc *models.Service) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO services (id, business_id, name, price, duration_minutes, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			price = EXCLUDED.price,
			duration_minutes = EXCLUDED.duration_minutes,
			is_active = EXCLUDED.is_active,
			updated_at = now()`,
		svc.ID, svc.BusinessID, svc.Name, svc.Price, svc.DurationMinutes, svc.IsActive)
	return err
}
