package models

import "time"

// BookingDraft is the client's in-progress booking, kept per session.
type BookingDraft struct {
	ID             string    `json:"id"`
	BusinessID     string    `json:"business_id"`
	Step           string    `json:"step"`
	ServiceID      string    `json:"service_id,omitempty"`
	ProfessionalID string    `json:"professional_id,omitempty"`
	Date           string    `json:"date,omitempty"`
	StartTime      string    `json:"start_time,omitempty"`
	ClientName     string    `json:"client_name,omitempty"`
	ClientPhone    string    `json:"client_phone,omitempty"`
	Notes          string    `json:"notes,omitempty"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// NextStep returns the first step whose data is still missing.
func (d *BookingDraft) NextStep() string {
	switch {
	case d.ServiceID == "":
		return StepSelectService
	case d.ProfessionalID == "":
		return StepSelectProfessional
	case d.Date == "":
		return StepSelectDate
	case d.StartTime == "":
		return StepSelectTime
	case d.ClientName == "" || d.ClientPhone == "":
		return StepClientData
	default:
		return StepConfirmation
	}
}
