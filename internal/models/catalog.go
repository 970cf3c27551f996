package models

import "time"

// DayHours is the opening window for one weekday, "HH:MM" wall-clock values.
type DayHours struct {
	Start string `json:"start" yaml:"start"`
	End   string `json:"end" yaml:"end"`
}

// WorkingHours maps lowercase English weekday names to the day's window.
// A missing or nil entry means the professional does not work that day.
type WorkingHours map[string]*DayHours

// Weekdays lists valid WorkingHours keys, Sunday first like time.Weekday.
var Weekdays = [7]string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}

// For returns the window for the weekday of date, or nil.
func (w WorkingHours) For(date time.Time) *DayHours {
	if w == nil {
		return nil
	}
	return w[Weekdays[date.Weekday()]]
}

type Service struct {
	ID              string    `json:"id" yaml:"id"`
	BusinessID      string    `json:"business_id" yaml:"business_id"`
	Name            string    `json:"name" yaml:"name"`
	Price           float64   `json:"price" yaml:"price"`
	DurationMinutes int       `json:"duration_minutes" yaml:"duration_minutes"`
	IsActive        bool      `json:"is_active" yaml:"is_active"`
	CreatedAt       time.Time `json:"created_at" yaml:"-"`
	UpdatedAt       time.Time `json:"updated_at" yaml:"-"`
}

type Professional struct {
	ID           string       `json:"id" yaml:"id"`
	BusinessID   string       `json:"business_id" yaml:"business_id"`
	Name         string       `json:"name" yaml:"name"`
	Phone        string       `json:"phone,omitempty" yaml:"phone"`
	WorkingHours WorkingHours `json:"working_hours" yaml:"working_hours"`
	ServiceIDs   []string     `json:"service_ids,omitempty" yaml:"service_ids"`
	IsActive     bool         `json:"is_active" yaml:"is_active"`
	CreatedAt    time.Time    `json:"created_at" yaml:"-"`
	UpdatedAt    time.Time    `json:"updated_at" yaml:"-"`
}

// Business holds per-tenant settings used in client-facing messages.
type Business struct {
	ID             string `json:"id" yaml:"id"`
	Name           string `json:"name" yaml:"name"`
	WhatsAppNumber string `json:"whatsapp_number" yaml:"whatsapp_number"`
	Timezone       string `json:"timezone" yaml:"timezone"`
}
