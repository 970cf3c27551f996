package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"barberbook/internal/domain"
	"barberbook/internal/events"
	"barberbook/internal/metrics"
	"barberbook/internal/models"
	"barberbook/internal/notify"
	"barberbook/internal/scheduling"
	"barberbook/internal/worker"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// BookingRequest is what a client submits to book a slot.
type BookingRequest struct {
	BusinessID     string `json:"business_id"`
	ProfessionalID string `json:"professional_id"`
	ServiceID      string `json:"service_id"`
	Date           string `json:"date"`
	StartTime      string `json:"start_time"`
	ClientName     string `json:"client_name"`
	ClientPhone    string `json:"client_phone"`
	Notes          string `json:"notes"`
}

type BookingService struct {
	repo         domain.AppointmentRepository
	catalog      *CatalogService
	cache        domain.SlotCache
	limiter      domain.DraftRepository
	eventBus     domain.EventPublisher
	sheetsWorker domain.SyncWorker
	opts         Options
	now          func() time.Time
	logger       *zerolog.Logger
}

func NewBookingService(
	repo domain.AppointmentRepository,
	catalog *CatalogService,
	cache domain.SlotCache,
	limiter domain.DraftRepository,
	eventBus domain.EventPublisher,
	sheetsWorker domain.SyncWorker,
	opts Options,
	logger *zerolog.Logger,
) *BookingService {
	return &BookingService{
		repo:         repo,
		catalog:      catalog,
		cache:        cache,
		limiter:      limiter,
		eventBus:     eventBus,
		sheetsWorker: sheetsWorker,
		opts:         opts.withDefaults(),
		now:          time.Now,
		logger:       logger,
	}
}

// SubmitBooking validates req and stores a pending appointment. The overlap
// check runs again inside the store's write transaction, so a slot taken
// since the client's last availability read yields domain.ErrSlotUnavailable.
// The write is never retried and no alternative slot is chosen.
func (s *BookingService) SubmitBooking(ctx context.Context, req BookingRequest) (*models.Appointment, error) {
	appt, services, err := s.prepare(ctx, req)
	if err != nil {
		if IsValidation(err) {
			metrics.IncBooking(metrics.OutcomeInvalid)
		} else {
			metrics.IncBooking(metrics.OutcomeError)
		}
		return nil, err
	}

	if !s.allow(ctx, appt) {
		metrics.IncBooking(metrics.OutcomeRateLimited)
		return nil, ErrRateLimited
	}

	candidate, _ := appointmentInterval(appt)
	check := func(existing []*models.Appointment) error {
		if bad := scheduling.UnreadableStarts(existing); len(bad) > 0 {
			s.logger.Error().Strs("appointment_ids", bad).Str("date", appt.Date).Msg("appointments with unreadable start time block the day")
		}
		if scheduling.Conflicts(candidate, scheduling.OccupiedIntervals(existing, services)) {
			return domain.ErrSlotUnavailable
		}
		return nil
	}

	if err := s.repo.CreateAppointmentGuarded(ctx, appt, check); err != nil {
		if errors.Is(err, domain.ErrSlotUnavailable) {
			metrics.IncBooking(metrics.OutcomeConflict)
			s.logger.Info().
				Str("business_id", appt.BusinessID).
				Str("professional_id", appt.ProfessionalID).
				Str("date", appt.Date).
				Str("start_time", appt.StartTime).
				Msg("slot no longer available")
			return nil, err
		}
		metrics.IncBooking(metrics.OutcomeError)
		return nil, fmt.Errorf("create appointment: %w", err)
	}
	metrics.IncBooking(metrics.OutcomeCreated)

	if b := s.catalog.business(ctx, appt.BusinessID); b != nil {
		appt.ConfirmationURL = notify.ConfirmationURL(s.opts.WhatsAppBaseURL, b.WhatsAppNumber, appt)
	}

	s.invalidate(ctx, appt)
	s.publishEvent(events.EventAppointmentCreated, appt)
	s.enqueueSync(ctx, appt, worker.TaskUpsert)

	s.logger.Info().
		Str("appointment_id", appt.ID).
		Str("professional_id", appt.ProfessionalID).
		Str("date", appt.Date).
		Str("start_time", appt.StartTime).
		Msg("appointment created")
	return appt, nil
}

// prepare validates req and builds the appointment to insert, together with
// the service catalog used to size existing appointments.
func (s *BookingService) prepare(ctx context.Context, req BookingRequest) (*models.Appointment, map[string]*models.Service, error) {
	req.ClientName = strings.TrimSpace(req.ClientName)
	req.ClientPhone = strings.TrimSpace(req.ClientPhone)
	if err := requireFields(map[string]string{
		"business_id":     req.BusinessID,
		"professional_id": req.ProfessionalID,
		"service_id":      req.ServiceID,
		"date":            req.Date,
		"start_time":      req.StartTime,
		"client_name":     req.ClientName,
		"client_phone":    req.ClientPhone,
	}); err != nil {
		return nil, nil, err
	}
	if len(notify.DigitsOnly(req.ClientPhone)) < 8 {
		return nil, nil, invalid("client_phone", "must contain at least 8 digits")
	}

	date, err := scheduling.ParseDate(req.Date)
	if err != nil {
		return nil, nil, invalid("date", "expected YYYY-MM-DD")
	}
	start, err := scheduling.ParseClock(req.StartTime)
	if err != nil {
		return nil, nil, invalid("start_time", "expected HH:MM")
	}
	now := s.now().In(s.opts.Location)
	if scheduling.IsPastOrOutOfWindow(date, now, s.opts.MaxAdvanceDays) {
		return nil, nil, invalid("date", fmt.Sprintf("must be between today and %d days ahead", s.opts.MaxAdvanceDays))
	}
	if isToday(date, now) && start <= now.Hour()*60+now.Minute() {
		return nil, nil, invalid("start_time", "has already passed")
	}

	prof, svc, err := s.catalog.Resolve(ctx, req.BusinessID, req.ProfessionalID, req.ServiceID)
	if err != nil {
		return nil, nil, err
	}

	open, works := scheduling.OpenInterval(prof.WorkingHours, date)
	if !works {
		return nil, nil, invalid("date", "professional does not work on this day")
	}
	if start < open.Start || start+svc.DurationMinutes > open.End {
		return nil, nil, invalid("start_time", "service does not fit in working hours")
	}

	services, err := s.catalog.durations(ctx, req.BusinessID)
	if err != nil {
		return nil, nil, err
	}

	return &models.Appointment{
		ID:               uuid.NewString(),
		BusinessID:       req.BusinessID,
		ProfessionalID:   prof.ID,
		ProfessionalName: prof.Name,
		ServiceID:        svc.ID,
		ServiceName:      svc.Name,
		Date:             req.Date,
		StartTime:        scheduling.FormatClock(start),
		DurationMinutes:  svc.DurationMinutes,
		ClientName:       req.ClientName,
		ClientPhone:      req.ClientPhone,
		Notes:            strings.TrimSpace(req.Notes),
		Status:           models.StatusPending,
	}, services, nil
}

// allow applies the per-client limit. Limiter failures let the request through.
func (s *BookingService) allow(ctx context.Context, appt *models.Appointment) bool {
	if s.limiter == nil || s.opts.ClientRateLimit <= 0 {
		return true
	}
	key := "booking:" + appt.BusinessID + ":" + notify.DigitsOnly(appt.ClientPhone)
	ok, err := s.limiter.CheckRateLimit(ctx, key, s.opts.ClientRateLimit, s.opts.ClientRateWindow)
	if err != nil {
		s.logger.Warn().Err(err).Msg("rate limit check failed")
		return true
	}
	return ok
}

func appointmentInterval(appt *models.Appointment) (scheduling.Interval, error) {
	start, err := scheduling.ParseClock(appt.StartTime)
	if err != nil {
		return scheduling.Interval{}, err
	}
	return scheduling.Interval{Start: start, End: start + appt.DurationMinutes}, nil
}

// TransitionStatus moves an appointment along its lifecycle. version must
// match the stored one; zero means the version just read.
func (s *BookingService) TransitionStatus(ctx context.Context, businessID, id string, version int64, status string) (*models.Appointment, error) {
	if !models.IsValidStatus(status) {
		return nil, invalid("status", "unknown status")
	}
	current, err := s.Get(ctx, businessID, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(current.Status, status) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, status)
	}
	if version == 0 {
		version = current.Version
	}

	if err := s.repo.UpdateAppointmentStatusWithVersion(ctx, businessID, id, version, status); err != nil {
		return nil, err
	}

	updated, err := s.repo.GetAppointment(ctx, businessID, id)
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, updated)
	s.publishEvent(events.EventForStatus(status), updated)
	s.enqueueSync(ctx, updated, worker.TaskUpdateStatus)

	s.logger.Info().
		Str("appointment_id", id).
		Str("from", current.Status).
		Str("to", status).
		Msg("appointment status changed")
	return updated, nil
}

// Cancel releases the appointment's interval.
func (s *BookingService) Cancel(ctx context.Context, businessID, id string, version int64) (*models.Appointment, error) {
	return s.TransitionStatus(ctx, businessID, id, version, models.StatusCancelled)
}

func (s *BookingService) Get(ctx context.Context, businessID, id string) (*models.Appointment, error) {
	if strings.TrimSpace(businessID) == "" {
		return nil, invalid("business_id", "is required")
	}
	return s.repo.GetAppointment(ctx, businessID, id)
}

func (s *BookingService) List(ctx context.Context, filter models.AppointmentFilter) ([]*models.Appointment, error) {
	if strings.TrimSpace(filter.BusinessID) == "" {
		return nil, invalid("business_id", "is required")
	}
	if filter.Status != "" && !models.IsValidStatus(filter.Status) {
		return nil, invalid("status", "unknown status")
	}
	for field, v := range map[string]string{"date_from": filter.DateFrom, "date_to": filter.DateTo} {
		if v == "" {
			continue
		}
		if _, err := scheduling.ParseDate(v); err != nil {
			return nil, invalid(field, "expected YYYY-MM-DD")
		}
	}
	return s.repo.ListAppointments(ctx, filter)
}

func (s *BookingService) invalidate(ctx context.Context, appt *models.Appointment) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, appt.BusinessID, appt.ProfessionalID, appt.Date); err != nil {
		s.logger.Warn().Err(err).Str("appointment_id", appt.ID).Msg("slot cache invalidation failed")
	}
}

func (s *BookingService) publishEvent(eventType string, appt *models.Appointment) {
	if s.eventBus == nil {
		return
	}
	if err := s.eventBus.PublishJSON(eventType, events.PayloadFor(appt)); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Str("appointment_id", appt.ID).Msg("publish event error")
	}
}

func (s *BookingService) enqueueSync(ctx context.Context, appt *models.Appointment, taskType string) {
	if s.sheetsWorker == nil {
		return
	}
	if err := s.sheetsWorker.EnqueueTask(ctx, taskType, appt); err != nil {
		s.logger.Error().Err(err).Str("appointment_id", appt.ID).Str("task", taskType).Msg("sheets enqueue error")
	}
}
