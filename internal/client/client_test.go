package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"barberbook/internal/api"
	"barberbook/internal/config"
	"barberbook/internal/database"
	"barberbook/internal/domain"
	"barberbook/internal/models"
	"barberbook/internal/repository"
	"barberbook/internal/service"
	"barberbook/internal/worker"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	shop   = "shop-1"
	barber = "barber-1"
	cut    = "cut"
)

var bookingDate = time.Now().UTC().AddDate(0, 0, 2).Format(models.DateLayout)

// newAPI serves the real HTTP API over a fresh SQLite store.
func newAPI(t *testing.T, auth config.APIAuthConfig) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	logger := zerolog.Nop()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "client.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	hours := models.WorkingHours{}
	for _, day := range models.Weekdays {
		hours[day] = &models.DayHours{Start: "09:00", End: "11:00"}
	}
	require.NoError(t, db.UpsertBusiness(ctx, &models.Business{ID: shop, Name: "Navalha"}))
	require.NoError(t, db.UpsertService(ctx, &models.Service{ID: cut, BusinessID: shop, Name: "Corte", DurationMinutes: 30, IsActive: true}))
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
	}
	drafts := repository.NewMemoryDraftRepository(time.Hour)
	catalog := service.NewCatalogService(db, opts, &logger)
	booking := service.NewBookingService(db, catalog, nil, drafts, nil, nil, opts, &logger)
	svc := api.Services{
		Availability: service.NewAvailabilityService(db, catalog, nil, opts, &logger),
		Booking:      booking,
		Catalog:      catalog,
		Drafts:       service.NewDraftService(drafts, booking, &logger),
		Health:       db.Ping,
	}
	cfg := config.APIConfig{Enabled: true, HTTP: config.APIHTTPConfig{Enabled: true}, Auth: auth}
	handler := api.NewHTTPServer(cfg, svc, &logger).Handler()

	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		handler.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func bookingRequest(start, phone string) service.BookingRequest {
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

func TestAvailabilityAndBooking(t *testing.T) {
	srv, _ := newAPI(t, config.APIAuthConfig{})
	c := New(srv.URL, "")
	ctx := context.Background()
	req := service.AvailabilityRequest{BusinessID: shop, ProfessionalID: barber, ServiceID: cut, Date: bookingDate}

	slots, err := c.GetAvailability(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, []string{"09:00", "09:30", "10:00", "10:30"}, slots)

	appt, err := c.SubmitBooking(ctx, bookingRequest("09:30", "11988887777"))
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, appt.Status)
	assert.Equal(t, 30, appt.DurationMinutes)

	slots, err = c.GetAvailability(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, []string{"09:00", "10:00", "10:30"}, slots)

	_, err = c.SubmitBooking(ctx, bookingRequest("09:30", "11977776666"))
	assert.ErrorIs(t, err, domain.ErrSlotUnavailable)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusConflict, apiErr.Status)

	cancelled, err := c.Cancel(ctx, shop, appt.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, cancelled.Status)

	_, err = c.Cancel(ctx, shop, appt.ID, 0)
	assert.ErrorIs(t, err, service.ErrInvalidTransition)

	_, err = c.Cancel(ctx, shop, "missing", 0)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestValidationErrorsKeepField(t *testing.T) {
	srv, _ := newAPI(t, config.APIAuthConfig{})
	c := New(srv.URL, "")

	_, err := c.SubmitBooking(context.Background(), bookingRequest("09:30", "12"))
	var ve *service.ValidationError
	require.True(t, errors.As(err, &ve), err)
	assert.Equal(t, "client_phone", ve.Field)
	assert.True(t, service.IsValidation(err))
}

func TestAPIKeyHeader(t *testing.T) {
	srv, _ := newAPI(t, config.APIAuthConfig{
		Enabled:      true,
		HeaderAPIKey: "x-shop-key",
		APIKeys:      []config.APIClientKey{{Key: "secret", Name: "front"}},
	})
	ctx := context.Background()

	_, err := New(srv.URL, "secret").ListServices(ctx, shop)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)

	services, err := New(srv.URL, "secret").WithKeyHeader("x-shop-key").ListServices(ctx, shop)
	require.NoError(t, err)
	require.Len(t, services, 1)
	assert.Equal(t, "Corte", services[0].Name)
}

func TestCatalogCache(t *testing.T) {
	srv, hits := newAPI(t, config.APIAuthConfig{})
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	c := New(srv.URL, "")
	c.UseRedisCache(rdb, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		profs, err := c.ListProfessionals(ctx, shop, cut)
		require.NoError(t, err)
		require.Len(t, profs, 1)
		assert.Equal(t, "Joao", profs[0].Name)
	}
	assert.Equal(t, int64(1), hits.Load())
	assert.True(t, mr.Exists("client:professionals:shop-1:cut"))

	mr.FastForward(2 * time.Minute)
	_, err := c.ListProfessionals(ctx, shop, cut)
	require.NoError(t, err)
	assert.Equal(t, int64(2), hits.Load())
}
