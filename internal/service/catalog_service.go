package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"barberbook/internal/domain"
	"barberbook/internal/models"
	"barberbook/internal/worker"

	"github.com/rs/zerolog"
)

type CatalogService struct {
	repo             domain.CatalogRepository
	retry            worker.RetryPolicy
	offerAllUnmapped bool
	logger           *zerolog.Logger
}

func NewCatalogService(repo domain.CatalogRepository, opts Options, logger *zerolog.Logger) *CatalogService {
	opts = opts.withDefaults()
	if !opts.OfferAllUnmapped {
		logger.Info().Msg("professionals without service mappings will not be offered")
	}
	return &CatalogService{
		repo:             repo,
		retry:            opts.ReadRetry,
		offerAllUnmapped: opts.OfferAllUnmapped,
		logger:           logger,
	}
}

// Offers reports whether p performs serviceID. A professional without any
// mapping offers everything unless that fallback is switched off.
func (s *CatalogService) Offers(p *models.Professional, serviceID string) bool {
	if len(p.ServiceIDs) == 0 {
		return s.offerAllUnmapped
	}
	for _, id := range p.ServiceIDs {
		if id == serviceID {
			return true
		}
	}
	return false
}

// ListServices returns the active services of a business.
func (s *CatalogService) ListServices(ctx context.Context, businessID string) ([]*models.Service, error) {
	if strings.TrimSpace(businessID) == "" {
		return nil, invalid("business_id", "is required")
	}
	var all []*models.Service
	err := s.retry.Do(ctx, func(ctx context.Context) error {
		var err error
		all, err = s.repo.ListServices(ctx, businessID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}

	active := make([]*models.Service, 0, len(all))
	for _, svc := range all {
		if svc.IsActive {
			active = append(active, svc)
		}
	}
	return active, nil
}

// ProfessionalsForService returns active professionals of a business. An
// empty serviceID lists all of them.
func (s *CatalogService) ProfessionalsForService(ctx context.Context, businessID, serviceID string) ([]*models.Professional, error) {
	if strings.TrimSpace(businessID) == "" {
		return nil, invalid("business_id", "is required")
	}
	var all []*models.Professional
	err := s.retry.Do(ctx, func(ctx context.Context) error {
		var err error
		all, err = s.repo.ListProfessionals(ctx, businessID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list professionals: %w", err)
	}

	out := make([]*models.Professional, 0, len(all))
	for _, p := range all {
		if !p.IsActive {
			continue
		}
		if serviceID != "" && !s.Offers(p, serviceID) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// Resolve loads the professional and service a booking refers to and
// checks that the pair can be booked.
func (s *CatalogService) Resolve(ctx context.Context, businessID, professionalID, serviceID string) (*models.Professional, *models.Service, error) {
	var prof *models.Professional
	err := s.retry.Do(ctx, func(ctx context.Context) error {
		var err error
		prof, err = s.repo.GetProfessional(ctx, businessID, professionalID)
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return err
	})
	if err != nil {
		return nil, nil, fmt.Errorf("get professional: %w", err)
	}
	if prof == nil || !prof.IsActive {
		return nil, nil, invalid("professional_id", "unknown or inactive professional")
	}

	var svc *models.Service
	err = s.retry.Do(ctx, func(ctx context.Context) error {
		var err error
		svc, err = s.repo.GetService(ctx, businessID, serviceID)
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return err
	})
	if err != nil {
		return nil, nil, fmt.Errorf("get service: %w", err)
	}
	if svc == nil || !svc.IsActive {
		return nil, nil, invalid("service_id", "unknown or inactive service")
	}
	if svc.DurationMinutes <= 0 {
		return nil, nil, invalid("service_id", "service has no duration")
	}
	if !s.Offers(prof, svc.ID) {
		return nil, nil, invalid("service_id", "service is not offered by this professional")
	}
	return prof, svc, nil
}

// durations maps every service of a business, active or not, so existing
// appointments resolve their length.
func (s *CatalogService) durations(ctx context.Context, businessID string) (map[string]*models.Service, error) {
	var all []*models.Service
	err := s.retry.Do(ctx, func(ctx context.Context) error {
		var err error
		all, err = s.repo.ListServices(ctx, businessID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	m := make(map[string]*models.Service, len(all))
	for _, svc := range all {
		m[svc.ID] = svc
	}
	return m, nil
}

func (s *CatalogService) business(ctx context.Context, businessID string) *models.Business {
	b, err := s.repo.GetBusiness(ctx, businessID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn().Err(err).Str("business_id", businessID).Msg("load business")
		}
		return nil
	}
	return b
}
