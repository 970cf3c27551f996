package models

import "time"

type Appointment struct {
	ID              string    `json:"id"`
	BusinessID      string    `json:"business_id"`
	ProfessionalID  string    `json:"professional_id"`
	ServiceID       string    `json:"service_id"`
	Date            string    `json:"date"`
	StartTime       string    `json:"start_time"`
	DurationMinutes int       `json:"duration_minutes"`
	ClientName      string    `json:"client_name"`
	ClientPhone     string    `json:"client_phone"`
	Notes           string    `json:"notes,omitempty"`
	Status          string    `json:"status"` // pending, confirmed, in_progress, completed, cancelled
	Version         int64     `json:"version"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`

	// Filled by the service layer for responses, not persisted.
	ProfessionalName string `json:"professional_name,omitempty"`
	ServiceName      string `json:"service_name,omitempty"`
	ConfirmationURL  string `json:"confirmation_url,omitempty"`
}

// IsActive reports whether the appointment still occupies its time range.
func (a *Appointment) IsActive() bool {
	return a.Status != StatusCancelled
}

// AppointmentFilter narrows appointment listings. Empty fields are ignored.
type AppointmentFilter struct {
	BusinessID     string
	ProfessionalID string
	Status         string
	DateFrom       string
	DateTo         string
}
