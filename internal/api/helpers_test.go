package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"barberbook/internal/config"
	"barberbook/internal/database"
	"barberbook/internal/models"
	"barberbook/internal/repository"
	"barberbook/internal/service"
	"barberbook/internal/worker"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const (
	shop   = "shop-1"
	other  = "shop-2"
	barber = "barber-1"
	cut    = "cut"
)

// bookingDate is two days ahead; the barber works every day so the weekday does not matter.
var bookingDate = time.Now().UTC().AddDate(0, 0, 2).Format(models.DateLayout)

func newTestServices(t *testing.T) Services {
	t.Helper()
	logger := zerolog.Nop()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "api.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	hours := models.WorkingHours{}
	for _, day := range models.Weekdays {
		hours[day] = &models.DayHours{Start: "09:00", End: "12:00"}
	}
	require.NoError(t, db.UpsertBusiness(ctx, &models.Business{ID: shop, Name: "Navalha", WhatsAppNumber: "5511999990000"}))
	require.NoError(t, db.UpsertBusiness(ctx, &models.Business{ID: other, Name: "Tesoura"}))
	require.NoError(t, db.UpsertService(ctx, &models.Service{ID: cut, BusinessID: shop, Name: "Corte", Price: 40, DurationMinutes: 30, IsActive: true}))
	require.NoError(t, db.UpsertProfessional(ctx, &models.Professional{
		ID: barber, BusinessID: shop, Name: "Joao", WorkingHours: hours, ServiceIDs: []string{cut}, IsActive: true,
	}))

	opts := service.Options{
		StepMinutes:      30,
		MaxAdvanceDays:   30,
		Location:         time.UTC,
		ReadRetry:        worker.RetryPolicy{MaxRetries: 1, InitialDelay: time.Millisecond},
		OfferAllUnmapped: true,
		ClientRateLimit:  100,
		ClientRateWindow: 60,
		WhatsAppBaseURL:  "https://wa.me",
	}
	drafts := repository.NewMemoryDraftRepository(time.Hour)
	catalog := service.NewCatalogService(db, opts, &logger)
	booking := service.NewBookingService(db, catalog, nil, drafts, nil, nil, opts, &logger)

	return Services{
		Availability: service.NewAvailabilityService(db, catalog, nil, opts, &logger),
		Booking:      booking,
		Catalog:      catalog,
		Drafts:       service.NewDraftService(drafts, booking, &logger),
		Health:       db.Ping,
	}
}

func openConfig() config.APIConfig {
	return config.APIConfig{Enabled: true, HTTP: config.APIHTTPConfig{Enabled: true}}
}

func newTestHTTP(t *testing.T, cfg config.APIConfig, svc Services) http.Handler {
	t.Helper()
	logger := zerolog.Nop()
	return NewHTTPServer(cfg, svc, &logger).Handler()
}

func do(t *testing.T, h http.Handler, method, target string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func booking(start, phone string) service.BookingRequest {
	return service.BookingRequest{
		BusinessID:     shop,
		ProfessionalID: barber,
		ServiceID:      cut,
		Date:           bookingDate,
		StartTime:      start,
		ClientName:     "Ana",
		ClientPhone:    phone,
	}
}
