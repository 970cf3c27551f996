package domain

import (
	"context"
	"time"

	"barberbook/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// ConflictCheck inspects the active appointments of one professional on one
// date and returns an error to abort the insert.
type ConflictCheck func(existing []*models.Appointment) error

// CatalogRepository reads and writes businesses, professionals and services.
type CatalogRepository interface {
	GetBusiness(ctx context.Context, id string) (*models.Business, error)
	UpsertBusiness(ctx context.Context, b *models.Business) error
	GetProfessional(ctx context.Context, businessID, id string) (*models.Professional, error)
	ListProfessionals(ctx context.Context, businessID string) ([]*models.Professional, error)
	UpsertProfessional(ctx context.Context, p *models.Professional) error
	GetService(ctx context.Context, businessID, id string) (*models.Service, error)
	ListServices(ctx context.Context, businessID string) ([]*models.Service, error)
	UpsertService(ctx context.Context, s *models.Service) error
}

// AppointmentRepository persists appointments. CreateAppointmentGuarded must
// run check and the insert atomically with respect to other writers for the
// same professional and date, and must fail with ErrSlotUnavailable when the
// new range overlaps an active appointment.
type AppointmentRepository interface {
	CreateAppointmentGuarded(ctx context.Context, appt *models.Appointment, check ConflictCheck) error
	GetAppointment(ctx context.Context, businessID, id string) (*models.Appointment, error)
	ListActiveAppointments(ctx context.Context, businessID, professionalID, date string) ([]*models.Appointment, error)
	ListAppointments(ctx context.Context, filter models.AppointmentFilter) ([]*models.Appointment, error)
	UpdateAppointmentStatusWithVersion(ctx context.Context, businessID, id string, version int64, status string) error
}

type Repository interface {
	CatalogRepository
	AppointmentRepository
	Ping(ctx context.Context) error
	Close() error
}

// SlotCache stores computed slot lists per professional and date.
// SetSlots is a no-op when an invalidation happened after gen was read
// via Generation.
type SlotCache interface {
	GetSlots(ctx context.Context, businessID, professionalID, date, serviceID string) ([]string, bool, error)
	Generation(ctx context.Context, businessID, professionalID, date string) (int64, error)
	SetSlots(ctx context.Context, businessID, professionalID, date, serviceID string, gen int64, slots []string) error
	Invalidate(ctx context.Context, businessID, professionalID, date string) error
	InvalidateBusiness(ctx context.Context, businessID string) error
}

// DraftRepository keeps in-progress bookings and per-client rate limits.
type DraftRepository interface {
	GetDraft(ctx context.Context, id string) (*models.BookingDraft, error)
	SetDraft(ctx context.Context, draft *models.BookingDraft) error
	ClearDraft(ctx context.Context, id string) error
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type SheetsWriter interface {
	UpsertAppointment(ctx context.Context, appt *models.Appointment) error
	UpdateAppointmentStatus(ctx context.Context, appointmentID string, status string) error
	ReplaceAppointmentsSheet(ctx context.Context, appts []*models.Appointment) error
}

type SyncWorker interface {
	EnqueueTask(ctx context.Context, taskType string, appt *models.Appointment) error
}
