package events

import (
	"encoding/json"
	"sync"
	"time"

	"barberbook/internal/models"

	"github.com/rs/zerolog"
)

const (
	EventAppointmentCreated   = "appointment.created"
	EventAppointmentConfirmed = "appointment.confirmed"
	EventAppointmentStarted   = "appointment.in_progress"
	EventAppointmentCompleted = "appointment.completed"
	EventAppointmentCancelled = "appointment.cancelled"
)

// EventForStatus maps a target status to the event announcing it.
func EventForStatus(status string) string {
	switch status {
	case models.StatusConfirmed:
		return EventAppointmentConfirmed
	case models.StatusInProgress:
		return EventAppointmentStarted
	case models.StatusCompleted:
		return EventAppointmentCompleted
	case models.StatusCancelled:
		return EventAppointmentCancelled
	default:
		return EventAppointmentCreated
	}
}

// AppointmentEventPayload is the appointment snapshot sent to consumers.
type AppointmentEventPayload struct {
	AppointmentID    string    `json:"appointment_id"`
	BusinessID       string    `json:"business_id"`
	ProfessionalID   string    `json:"professional_id"`
	ProfessionalName string    `json:"professional_name,omitempty"`
	ServiceID        string    `json:"service_id"`
	ServiceName      string    `json:"service_name,omitempty"`
	Date             string    `json:"date"`
	StartTime        string    `json:"start_time"`
	DurationMinutes  int       `json:"duration_minutes"`
	ClientName       string    `json:"client_name"`
	ClientPhone      string    `json:"client_phone"`
	Status           string    `json:"status"`
	Version          int64     `json:"version"`
	OccurredAt       time.Time `json:"occurred_at"`
}

// PayloadFor snapshots appt for an event.
func PayloadFor(appt *models.Appointment) AppointmentEventPayload {
	return AppointmentEventPayload{
		AppointmentID:    appt.ID,
		BusinessID:       appt.BusinessID,
		ProfessionalID:   appt.ProfessionalID,
		ProfessionalName: appt.ProfessionalName,
		ServiceID:        appt.ServiceID,
		ServiceName:      appt.ServiceName,
		Date:             appt.Date,
		StartTime:        appt.StartTime,
		DurationMinutes:  appt.DurationMinutes,
		ClientName:       appt.ClientName,
		ClientPhone:      appt.ClientPhone,
		Status:           appt.Status,
		Version:          appt.Version,
		OccurredAt:       time.Now().UTC(),
	}
}

// Event represents a lightweight domain event.
type Event struct {
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	wildcard    []EventHandler
	logger      *zerolog.Logger
	mu          sync.RWMutex
}

// NewEventBus constructs an empty bus. Handler errors go to logger when set.
func NewEventBus(logger *zerolog.Logger) *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler), logger: logger}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// SubscribeAll registers a handler for every event type.
func (b *EventBus) SubscribeAll(handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.wildcard = append(b.wildcard, handler)
}

// Publish notifies subscribers of the event type.
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	handlers = append(handlers, b.wildcard...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		if err := handler(event); err != nil && b.logger != nil {
			b.logger.Warn().Err(err).Str("event", event.Type).Msg("Event handler failed")
		}
	}
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	b.Publish(&Event{Type: eventType, Payload: raw, CreatedAt: time.Now()})
	return nil
}
