package api

import (
	"fmt"
	"net/http"
	"strings"

	"barberbook/internal/export"
	"barberbook/internal/models"
	"barberbook/internal/scheduling"
	"barberbook/internal/service"
)

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.svc.Health != nil {
		if err := s.svc.Health(r.Context()); err != nil {
			requestLogger(r.Context(), s.logger).Warn().Err(err).Msg("health check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleServices(w http.ResponseWriter, r *http.Request) {
	businessID := query(r, "business_id")
	if err := authorizeBusiness(r.Context(), businessID); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	services, err := s.svc.Catalog.ListServices(r.Context(), businessID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"services": services})
}

func (s *HTTPServer) handleProfessionals(w http.ResponseWriter, r *http.Request) {
	businessID := query(r, "business_id")
	if err := authorizeBusiness(r.Context(), businessID); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	profs, err := s.svc.Catalog.ProfessionalsForService(r.Context(), businessID, query(r, "service_id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"professionals": profs})
}

func (s *HTTPServer) handleAvailability(w http.ResponseWriter, r *http.Request) {
	req := service.AvailabilityRequest{
		BusinessID:     query(r, "business_id"),
		ProfessionalID: query(r, "professional_id"),
		ServiceID:      query(r, "service_id"),
		Date:           query(r, "date"),
	}
	if err := authorizeBusiness(r.Context(), req.BusinessID); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	slots, err := s.svc.Availability.GetAvailability(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"date":  req.Date,
		"slots": slots,
	})
}

func (s *HTTPServer) handleCreateAppointment(w http.ResponseWriter, r *http.Request) {
	var req service.BookingRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := authorizeBusiness(r.Context(), req.BusinessID); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	appt, err := s.svc.Booking.SubmitBooking(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, appt)
}

func (s *HTTPServer) handleListAppointments(w http.ResponseWriter, r *http.Request) {
	filter := appointmentFilter(r)
	if err := authorizeBusiness(r.Context(), filter.BusinessID); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	appts, err := s.svc.Booking.List(r.Context(), filter)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointments": appts})
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	filter := appointmentFilter(r)
	if filter.DateFrom == "" || filter.DateTo == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "validation_error", Field: "from", Message: "from and to are required"})
		return
	}
	from, errFrom := scheduling.ParseDate(filter.DateFrom)
	to, errTo := scheduling.ParseDate(filter.DateTo)
	if errFrom != nil || errTo != nil || to.Before(from) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "validation_error", Field: "from", Message: "invalid date range"})
		return
	}
	if err := authorizeBusiness(r.Context(), filter.BusinessID); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	appts, err := s.svc.Booking.List(r.Context(), filter)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	name := fmt.Sprintf("appointments_%s_to_%s.xlsx", filter.DateFrom, filter.DateTo)
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	if err := export.Write(w, appts, from, to); err != nil {
		// заголовки уже отправлены, остаётся только лог
		requestLogger(r.Context(), s.logger).Error().Err(err).Msg("export failed")
	}
}

func (s *HTTPServer) handleGetAppointment(w http.ResponseWriter, r *http.Request) {
	businessID := query(r, "business_id")
	if err := authorizeBusiness(r.Context(), businessID); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	appt, err := s.svc.Booking.Get(r.Context(), businessID, r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

type statusRequest struct {
	BusinessID string `json:"business_id"`
	Status     string `json:"status"`
	Version    int64  `json:"version"`
}

func (s *HTTPServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	s.transition(w, r, req)
}

func (s *HTTPServer) handleCancel(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Status = models.StatusCancelled
	s.transition(w, r, req)
}

func (s *HTTPServer) transition(w http.ResponseWriter, r *http.Request, req statusRequest) {
	if err := authorizeBusiness(r.Context(), req.BusinessID); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	appt, err := s.svc.Booking.TransitionStatus(r.Context(), req.BusinessID, r.PathValue("id"), req.Version, req.Status)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

type draftRequest struct {
	BusinessID     string `json:"business_id"`
	ServiceID      string `json:"service_id"`
	ProfessionalID string `json:"professional_id"`
	Date           string `json:"date"`
	StartTime      string `json:"start_time"`
	ClientName     string `json:"client_name"`
	ClientPhone    string `json:"client_phone"`
	Notes          string `json:"notes"`
}

func (s *HTTPServer) handleCreateDraft(w http.ResponseWriter, r *http.Request) {
	var req draftRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := authorizeBusiness(r.Context(), req.BusinessID); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	d, err := s.svc.Drafts.CreateDraft(r.Context(), req.BusinessID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

// ownDraft loads the draft and checks it belongs to the caller's business.
func (s *HTTPServer) ownDraft(w http.ResponseWriter, r *http.Request) (*models.BookingDraft, bool) {
	d, err := s.svc.Drafts.GetDraft(r.Context(), r.PathValue("id"))
	if err == nil {
		err = authorizeBusiness(r.Context(), d.BusinessID)
	}
	if err != nil {
		s.writeServiceError(w, r, err)
		return nil, false
	}
	return d, true
}

func (s *HTTPServer) handleGetDraft(w http.ResponseWriter, r *http.Request) {
	d, ok := s.ownDraft(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *HTTPServer) handleUpdateDraft(w http.ResponseWriter, r *http.Request) {
	var req draftRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	d, ok := s.ownDraft(w, r)
	if !ok {
		return
	}
	if req.BusinessID != "" && req.BusinessID != d.BusinessID {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "validation_error", Field: "business_id", Message: "cannot be changed"})
		return
	}

	updated, err := s.svc.Drafts.UpdateDraft(r.Context(), d.ID, models.BookingDraft{
		ServiceID:      req.ServiceID,
		ProfessionalID: req.ProfessionalID,
		Date:           req.Date,
		StartTime:      req.StartTime,
		ClientName:     req.ClientName,
		ClientPhone:    req.ClientPhone,
		Notes:          req.Notes,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *HTTPServer) handleDeleteDraft(w http.ResponseWriter, r *http.Request) {
	d, ok := s.ownDraft(w, r)
	if !ok {
		return
	}
	if err := s.svc.Drafts.DeleteDraft(r.Context(), d.ID); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleSubmitDraft(w http.ResponseWriter, r *http.Request) {
	d, ok := s.ownDraft(w, r)
	if !ok {
		return
	}
	appt, err := s.svc.Drafts.SubmitDraft(r.Context(), d.ID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, appt)
}

func appointmentFilter(r *http.Request) models.AppointmentFilter {
	f := models.AppointmentFilter{
		BusinessID:     query(r, "business_id"),
		ProfessionalID: query(r, "professional_id"),
		Status:         query(r, "status"),
		DateFrom:       query(r, "from"),
		DateTo:         query(r, "to"),
	}
	if date := query(r, "date"); date != "" {
		f.DateFrom, f.DateTo = date, date
	}
	return f
}

func query(r *http.Request, key string) string {
	return strings.TrimSpace(r.URL.Query().Get(key))
}
