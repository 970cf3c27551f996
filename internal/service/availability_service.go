package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"barberbook/internal/domain"
	"barberbook/internal/metrics"
	"barberbook/internal/models"
	"barberbook/internal/scheduling"
	"barberbook/internal/worker"

	"github.com/rs/zerolog"
)

// AvailabilityRequest identifies one professional, service and day.
type AvailabilityRequest struct {
	BusinessID     string `json:"business_id"`
	ProfessionalID string `json:"professional_id"`
	ServiceID      string `json:"service_id"`
	Date           string `json:"date"`
}

// AvailabilityService is the read path. Its answer is advisory: the
// booking write re-checks everything under the store's lock.
type AvailabilityService struct {
	repo    domain.AppointmentRepository
	catalog *CatalogService
	cache   domain.SlotCache
	opts    Options
	retry   worker.RetryPolicy
	now     func() time.Time
	logger  *zerolog.Logger
}

func NewAvailabilityService(repo domain.AppointmentRepository, catalog *CatalogService, cache domain.SlotCache, opts Options, logger *zerolog.Logger) *AvailabilityService {
	opts = opts.withDefaults()
	return &AvailabilityService{
		repo:    repo,
		catalog: catalog,
		cache:   cache,
		opts:    opts,
		retry:   opts.ReadRetry,
		now:     time.Now,
		logger:  logger,
	}
}

// GetAvailability returns bookable start times, ascending. A day without
// working hours or without room is an empty list, not an error.
func (s *AvailabilityService) GetAvailability(ctx context.Context, req AvailabilityRequest) ([]string, error) {
	started := time.Now()
	defer func() { metrics.ObserveAvailability(time.Since(started)) }()

	if err := requireFields(map[string]string{
		"business_id":     req.BusinessID,
		"professional_id": req.ProfessionalID,
		"service_id":      req.ServiceID,
		"date":            req.Date,
	}); err != nil {
		return nil, err
	}
	date, err := scheduling.ParseDate(req.Date)
	if err != nil {
		return nil, invalid("date", "expected YYYY-MM-DD")
	}
	now := s.now().In(s.opts.Location)
	if scheduling.IsPastOrOutOfWindow(date, now, s.opts.MaxAdvanceDays) {
		return nil, invalid("date", fmt.Sprintf("must be between today and %d days ahead", s.opts.MaxAdvanceDays))
	}

	// поколение читаем до каталога и записей
	gen, cacheable := s.cacheGeneration(ctx, req)

	prof, svc, err := s.catalog.Resolve(ctx, req.BusinessID, req.ProfessionalID, req.ServiceID)
	if err != nil {
		return nil, err
	}

	slots, err := s.daySlots(ctx, req, prof, svc, date, gen, cacheable)
	if err != nil {
		return nil, err
	}
	if isToday(date, now) {
		slots = dropStarted(slots, now.Hour()*60+now.Minute())
	}
	return slots, nil
}

// cacheGeneration reports whether a freshly computed list may be cached and
// under which generation. Without a readable generation nothing is written.
func (s *AvailabilityService) cacheGeneration(ctx context.Context, req AvailabilityRequest) (int64, bool) {
	if s.cache == nil {
		return 0, false
	}
	gen, err := s.cache.Generation(ctx, req.BusinessID, req.ProfessionalID, req.Date)
	if err != nil {
		s.logger.Warn().Err(err).Msg("slot cache generation read failed")
		return 0, false
	}
	return gen, true
}

func (s *AvailabilityService) daySlots(ctx context.Context, req AvailabilityRequest, prof *models.Professional, svc *models.Service, date time.Time, gen int64, cacheable bool) ([]string, error) {
	if cacheable {
		cached, ok, err := s.cache.GetSlots(ctx, req.BusinessID, req.ProfessionalID, req.Date, req.ServiceID)
		if err != nil {
			s.logger.Warn().Err(err).Msg("slot cache read failed")
		}
		metrics.ObserveSlotCache(ok)
		if ok {
			return cached, nil
		}
	}

	open, works := scheduling.OpenInterval(prof.WorkingHours, date)
	if !works {
		return []string{}, nil
	}

	var existing []*models.Appointment
	err := s.retry.Do(ctx, func(ctx context.Context) error {
		var err error
		existing, err = s.repo.ListActiveAppointments(ctx, req.BusinessID, req.ProfessionalID, req.Date)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	services, err := s.catalog.durations(ctx, req.BusinessID)
	if err != nil {
		return nil, err
	}

	if bad := scheduling.UnreadableStarts(existing); len(bad) > 0 {
		s.logger.Error().Strs("appointment_ids", bad).Str("date", req.Date).Msg("appointments with unreadable start time block the day")
	}
	slots := scheduling.GenerateSlots(open, scheduling.OccupiedIntervals(existing, services), svc.DurationMinutes, s.opts.StepMinutes)

	if cacheable {
		if err := s.cache.SetSlots(ctx, req.BusinessID, req.ProfessionalID, req.Date, req.ServiceID, gen, slots); err != nil {
			s.logger.Warn().Err(err).Msg("slot cache write failed")
		}
	}
	return slots, nil
}

func requireFields(fields map[string]string) error {
	for _, name := range []string{"business_id", "professional_id", "service_id", "date", "start_time", "client_name", "client_phone"} {
		v, ok := fields[name]
		if ok && strings.TrimSpace(v) == "" {
			return invalid(name, "is required")
		}
	}
	return nil
}

func isToday(date, now time.Time) bool {
	return date.Format(models.DateLayout) == now.Format(models.DateLayout)
}

// dropStarted keeps slots that start after the current minute.
func dropStarted(slots []string, nowMinute int) []string {
	out := make([]string, 0, len(slots))
	for _, slot := range slots {
		m, err := scheduling.ParseClock(slot)
		if err == nil && m > nowMinute {
			out = append(out, slot)
		}
	}
	return out
}
