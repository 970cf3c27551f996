// Package seed loads the business catalog from a YAML file into the store.
package seed

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"barberbook/internal/domain"
	"barberbook/internal/models"
	"barberbook/internal/scheduling"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"
)

type Catalog struct {
	Businesses []BusinessEntry `yaml:"businesses"`
}

type BusinessEntry struct {
	ID             string              `yaml:"id"`
	Name           string              `yaml:"name"`
	WhatsAppNumber string              `yaml:"whatsapp_number"`
	Timezone       string              `yaml:"timezone"`
	Services       []ServiceEntry      `yaml:"services"`
	Professionals  []ProfessionalEntry `yaml:"professionals"`
}

type ServiceEntry struct {
	ID              string  `yaml:"id"`
	Name            string  `yaml:"name"`
	Price           float64 `yaml:"price"`
	DurationMinutes int     `yaml:"duration_minutes"`
	Inactive        bool    `yaml:"inactive"`
}

// ProfessionalEntry with no services offers every service of the business.
type ProfessionalEntry struct {
	ID           string              `yaml:"id"`
	Name         string              `yaml:"name"`
	Phone        string              `yaml:"phone"`
	WorkingHours models.WorkingHours `yaml:"working_hours"`
	Services     []string            `yaml:"services"`
	Inactive     bool                `yaml:"inactive"`
}

// Summary counts upserted records.
type Summary struct {
	Businesses    int
	Services      int
	Professionals int
}

func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.UnmarshalStrict(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate reports every problem found, not just the first one.
func (c *Catalog) Validate() error {
	var errs []error
	seenBiz := map[string]bool{}
	seenSvc := map[string]bool{}
	seenProf := map[string]bool{}

	for _, b := range c.Businesses {
		if strings.TrimSpace(b.ID) == "" {
			errs = append(errs, errors.New("business without id"))
			continue
		}
		if seenBiz[b.ID] {
			errs = append(errs, fmt.Errorf("duplicate business %q", b.ID))
		}
		seenBiz[b.ID] = true
		if b.Timezone != "" {
			if _, err := time.LoadLocation(b.Timezone); err != nil {
				errs = append(errs, fmt.Errorf("business %s: timezone: %w", b.ID, err))
			}
		}

		local := map[string]bool{}
		for _, s := range b.Services {
			switch {
			case strings.TrimSpace(s.ID) == "":
				errs = append(errs, fmt.Errorf("business %s: service without id", b.ID))
				continue
			case seenSvc[s.ID]:
				errs = append(errs, fmt.Errorf("duplicate service %q", s.ID))
			case s.DurationMinutes <= 0:
				errs = append(errs, fmt.Errorf("service %s: duration_minutes must be positive", s.ID))
			}
			seenSvc[s.ID] = true
			local[s.ID] = true
		}

		for _, p := range b.Professionals {
			if strings.TrimSpace(p.ID) == "" {
				errs = append(errs, fmt.Errorf("business %s: professional without id", b.ID))
				continue
			}
			if seenProf[p.ID] {
				errs = append(errs, fmt.Errorf("duplicate professional %q", p.ID))
			}
			seenProf[p.ID] = true
			if err := scheduling.ValidateWorkingHours(p.WorkingHours); err != nil {
				errs = append(errs, fmt.Errorf("professional %s: %w", p.ID, err))
			}
			for _, sid := range p.Services {
				if !local[sid] {
					errs = append(errs, fmt.Errorf("professional %s: unknown service %q", p.ID, sid))
				}
			}
		}
	}
	return errors.Join(errs...)
}

// Apply upserts the catalog. Records missing from the file are left as they are.
// Cached slots of every seeded business are dropped when cache is set, since
// working hours and durations may have changed.
func Apply(ctx context.Context, repo domain.CatalogRepository, c *Catalog, cache domain.SlotCache, logger *zerolog.Logger) (Summary, error) {
	var sum Summary
	for _, b := range c.Businesses {
		if err := repo.UpsertBusiness(ctx, &models.Business{
			ID:             b.ID,
			Name:           b.Name,
			WhatsAppNumber: b.WhatsAppNumber,
			Timezone:       b.Timezone,
		}); err != nil {
			return sum, fmt.Errorf("upsert business %s: %w", b.ID, err)
		}
		sum.Businesses++

		for _, s := range b.Services {
			if err := repo.UpsertService(ctx, &models.Service{
				ID:              s.ID,
				BusinessID:      b.ID,
				Name:            s.Name,
				Price:           s.Price,
				DurationMinutes: s.DurationMinutes,
				IsActive:        !s.Inactive,
			}); err != nil {
				return sum, fmt.Errorf("upsert service %s: %w", s.ID, err)
			}
			sum.Services++
		}

		for _, p := range b.Professionals {
			if err := repo.UpsertProfessional(ctx, &models.Professional{
				ID:           p.ID,
				BusinessID:   b.ID,
				Name:         p.Name,
				Phone:        p.Phone,
				WorkingHours: p.WorkingHours,
				ServiceIDs:   p.Services,
				IsActive:     !p.Inactive,
			}); err != nil {
				return sum, fmt.Errorf("upsert professional %s: %w", p.ID, err)
			}
			sum.Professionals++
		}

		if cache != nil {
			if err := cache.InvalidateBusiness(ctx, b.ID); err != nil {
				logger.Warn().Err(err).Str("business_id", b.ID).Msg("slot cache invalidation failed")
			}
		}

		logger.Info().
			Str("business_id", b.ID).
			Int("services", len(b.Services)).
			Int("professionals", len(b.Professionals)).
			Msg("catalog seeded")
	}
	return sum, nil
}
