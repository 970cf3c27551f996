package api

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"barberbook/internal/export"
	"barberbook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type slotsResponse struct {
	Date  string   `json:"date"`
	Slots []string `json:"slots"`
}

func availabilityURL() string {
	return "/api/v1/availability?business_id=" + shop + "&professional_id=" + barber + "&service_id=" + cut + "&date=" + bookingDate
}

func TestHealthz(t *testing.T) {
	svc := newTestServices(t)
	h := newTestHTTP(t, openConfig(), svc)

	rec := do(t, h, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))

	svc.Health = func(context.Context) error { return errors.New("db down") }
	h = newTestHTTP(t, openConfig(), svc)
	rec = do(t, h, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRequestIDIsEchoed(t *testing.T) {
	h := newTestHTTP(t, openConfig(), newTestServices(t))
	rec := do(t, h, http.MethodGet, "/healthz", nil, requestIDHeader, "req-42")
	assert.Equal(t, "req-42", rec.Header().Get(requestIDHeader))
}

func TestAvailabilityReflectsBookings(t *testing.T) {
	h := newTestHTTP(t, openConfig(), newTestServices(t))

	rec := do(t, h, http.MethodGet, availabilityURL(), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[slotsResponse](t, rec)
	assert.Equal(t, bookingDate, got.Date)
	assert.Equal(t, []string{"09:00", "09:30", "10:00", "10:30", "11:00", "11:30"}, got.Slots)

	rec = do(t, h, http.MethodPost, "/api/v1/appointments", booking("10:00", "+55 11 91111-0001"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	appt := decode[models.Appointment](t, rec)
	assert.Equal(t, models.StatusPending, appt.Status)
	assert.Equal(t, 30, appt.DurationMinutes)
	assert.Contains(t, appt.ConfirmationURL, "https://wa.me/5511999990000")

	rec = do(t, h, http.MethodGet, availabilityURL(), nil)
	got = decode[slotsResponse](t, rec)
	assert.Equal(t, []string{"09:00", "09:30", "10:30", "11:00", "11:30"}, got.Slots)
}

func TestAvailabilityEmptyDayIsEmptyList(t *testing.T) {
	svc := newTestServices(t)
	h := newTestHTTP(t, openConfig(), svc)

	for _, start := range []string{"09:00", "09:30", "10:00", "10:30", "11:00", "11:30"} {
		rec := do(t, h, http.MethodPost, "/api/v1/appointments", booking(start, "+55 11 92222-"+start[:2]+start[3:]))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec := do(t, h, http.MethodGet, availabilityURL(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"date":"`+bookingDate+`","slots":[]}`, rec.Body.String())
}

func TestCreateAppointmentConflict(t *testing.T) {
	h := newTestHTTP(t, openConfig(), newTestServices(t))

	rec := do(t, h, http.MethodPost, "/api/v1/appointments", booking("09:30", "+55 11 93333-0001"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodPost, "/api/v1/appointments", booking("09:30", "+55 11 93333-0002"))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "slot_unavailable", decode[errorResponse](t, rec).Error)
}

func TestCreateAppointmentValidation(t *testing.T) {
	h := newTestHTTP(t, openConfig(), newTestServices(t))

	req := booking("10:00", "123")
	rec := do(t, h, http.MethodPost, "/api/v1/appointments", req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[errorResponse](t, rec)
	assert.Equal(t, "validation_error", body.Error)
	assert.Equal(t, "client_phone", body.Field)

	rec = do(t, h, http.MethodPost, "/api/v1/appointments", map[string]any{"unknown": true})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_json", decode[errorResponse](t, rec).Error)
}

func TestAppointmentLifecycle(t *testing.T) {
	h := newTestHTTP(t, openConfig(), newTestServices(t))

	rec := do(t, h, http.MethodPost, "/api/v1/appointments", booking("11:00", "+55 11 94444-0001"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	appt := decode[models.Appointment](t, rec)

	rec = do(t, h, http.MethodGet, "/api/v1/appointments/"+appt.ID+"?business_id="+shop, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, appt.ID, decode[models.Appointment](t, rec).ID)

	rec = do(t, h, http.MethodPost, "/api/v1/appointments/"+appt.ID+"/status", statusRequest{BusinessID: shop, Status: models.StatusConfirmed})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	confirmed := decode[models.Appointment](t, rec)
	assert.Equal(t, models.StatusConfirmed, confirmed.Status)

	// stale version
	rec = do(t, h, http.MethodPost, "/api/v1/appointments/"+appt.ID+"/cancel", statusRequest{BusinessID: shop, Version: appt.Version})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "concurrent_modification", decode[errorResponse](t, rec).Error)

	rec = do(t, h, http.MethodPost, "/api/v1/appointments/"+appt.ID+"/cancel", statusRequest{BusinessID: shop, Version: confirmed.Version})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, models.StatusCancelled, decode[models.Appointment](t, rec).Status)

	rec = do(t, h, http.MethodPost, "/api/v1/appointments/"+appt.ID+"/status", statusRequest{BusinessID: shop, Status: models.StatusConfirmed})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "invalid_transition", decode[errorResponse](t, rec).Error)

	// the cancelled range is free again
	rec = do(t, h, http.MethodPost, "/api/v1/appointments", booking("11:00", "+55 11 94444-0002"))
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestGetAppointmentNotFound(t *testing.T) {
	h := newTestHTTP(t, openConfig(), newTestServices(t))
	rec := do(t, h, http.MethodGet, "/api/v1/appointments/missing?business_id="+shop, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decode[errorResponse](t, rec).Error)
}

func TestListAppointments(t *testing.T) {
	h := newTestHTTP(t, openConfig(), newTestServices(t))
	for i, start := range []string{"09:00", "10:00"} {
		rec := do(t, h, http.MethodPost, "/api/v1/appointments", booking(start, "+55 11 95555-000"+string(rune('0'+i))))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec := do(t, h, http.MethodGet, "/api/v1/appointments?business_id="+shop+"&date="+bookingDate, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[struct {
		Appointments []models.Appointment `json:"appointments"`
	}](t, rec)
	assert.Len(t, list.Appointments, 2)

	rec = do(t, h, http.MethodGet, "/api/v1/appointments?business_id="+shop+"&status=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "status", decode[errorResponse](t, rec).Field)
}

func TestExportAppointments(t *testing.T) {
	h := newTestHTTP(t, openConfig(), newTestServices(t))
	rec := do(t, h, http.MethodPost, "/api/v1/appointments", booking("09:00", "+55 11 96666-0001"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/api/v1/appointments/export?business_id="+shop+"&from="+bookingDate+"&to="+bookingDate, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "appointments_"+bookingDate)

	f, err := excelize.OpenReader(rec.Body)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(export.SheetName)
	require.NoError(t, err)
	assert.Len(t, rows, 3) // заголовок, шапка, одна запись

	rec = do(t, h, http.MethodGet, "/api/v1/appointments/export?business_id="+shop, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCatalogEndpoints(t *testing.T) {
	h := newTestHTTP(t, openConfig(), newTestServices(t))

	rec := do(t, h, http.MethodGet, "/api/v1/services?business_id="+shop, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	services := decode[struct {
		Services []models.Service `json:"services"`
	}](t, rec)
	require.Len(t, services.Services, 1)
	assert.Equal(t, cut, services.Services[0].ID)

	rec = do(t, h, http.MethodGet, "/api/v1/professionals?business_id="+shop+"&service_id="+cut, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	profs := decode[struct {
		Professionals []models.Professional `json:"professionals"`
	}](t, rec)
	require.Len(t, profs.Professionals, 1)
	assert.Equal(t, barber, profs.Professionals[0].ID)
}

func TestDraftFlow(t *testing.T) {
	h := newTestHTTP(t, openConfig(), newTestServices(t))

	rec := do(t, h, http.MethodPost, "/api/v1/drafts", draftRequest{BusinessID: shop})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	d := decode[models.BookingDraft](t, rec)
	assert.Equal(t, models.StepSelectService, d.Step)

	rec = do(t, h, http.MethodPost, "/api/v1/drafts/"+d.ID+"/submit", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPatch, "/api/v1/drafts/"+d.ID, draftRequest{
		ServiceID: cut, ProfessionalID: barber, Date: bookingDate, StartTime: "10:30",
		ClientName: "Bia", ClientPhone: "+55 11 97777-0001",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, models.StepConfirmation, decode[models.BookingDraft](t, rec).Step)

	rec = do(t, h, http.MethodPost, "/api/v1/drafts/"+d.ID+"/submit", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "10:30", decode[models.Appointment](t, rec).StartTime)

	rec = do(t, h, http.MethodGet, "/api/v1/drafts/"+d.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDraftDelete(t *testing.T) {
	h := newTestHTTP(t, openConfig(), newTestServices(t))

	rec := do(t, h, http.MethodPost, "/api/v1/drafts", draftRequest{BusinessID: shop})
	require.Equal(t, http.StatusCreated, rec.Code)
	d := decode[models.BookingDraft](t, rec)

	rec = do(t, h, http.MethodPatch, "/api/v1/drafts/"+d.ID, draftRequest{BusinessID: other})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodDelete, "/api/v1/drafts/"+d.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/v1/drafts/"+d.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUnknownRoute(t *testing.T) {
	h := newTestHTTP(t, openConfig(), newTestServices(t))
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/api/v1/nope", nil).Code)
	assert.Equal(t, http.StatusMethodNotAllowed, do(t, h, http.MethodPut, "/api/v1/appointments", nil).Code)
}
