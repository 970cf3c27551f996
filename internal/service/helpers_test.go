package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"barberbook/internal/database"
	"barberbook/internal/domain"
	"barberbook/internal/models"
	"barberbook/internal/repository"
	"barberbook/internal/worker"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	shop      = "shop-1"
	barber    = "barber-1"
	freelance = "barber-2"
	retired   = "barber-3"
	cut       = "cut"
	combo     = "combo"
	dyed      = "dye"
	monday    = "2024-06-03"
	tuesday   = "2024-06-04"
)

// saturday 08:00 UTC, two days before monday
var fixedNow = time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishJSON(eventType string, payload interface{}) error {
	return m.Called(eventType, payload).Error(0)
}

type mockSyncWorker struct {
	mock.Mock
}

func (m *mockSyncWorker) EnqueueTask(ctx context.Context, taskType string, appt *models.Appointment) error {
	return m.Called(taskType, appt.ID).Error(0)
}

type fixture struct {
	db           *database.DB
	catalog      *CatalogService
	availability *AvailabilityService
	booking      *BookingService
	drafts       *DraftService
	draftRepo    *repository.MemoryDraftRepository
	publisher    *mockPublisher
	syncer       *mockSyncWorker
}

type fixtureOption func(*Options)

func newFixture(t *testing.T, cache domain.SlotCache, opts ...fixtureOption) *fixture {
	t.Helper()
	logger := zerolog.Nop()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "service.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	seed(t, db)

	o := Options{
		StepMinutes:      30,
		MaxAdvanceDays:   30,
		Location:         time.UTC,
		ReadRetry:        worker.RetryPolicy{MaxRetries: 2, InitialDelay: time.Millisecond},
		OfferAllUnmapped: true,
		WhatsAppBaseURL:  "https://wa.me",
	}
	for _, fn := range opts {
		fn(&o)
	}

	pub := new(mockPublisher)
	pub.On("PublishJSON", mock.Anything, mock.Anything).Return(nil)
	syncer := new(mockSyncWorker)
	syncer.On("EnqueueTask", mock.Anything, mock.Anything).Return(nil)

	drafts := repository.NewMemoryDraftRepository(time.Hour)
	catalog := NewCatalogService(db, o, &logger)
	availability := NewAvailabilityService(db, catalog, cache, o, &logger)
	availability.now = func() time.Time { return fixedNow }
	booking := NewBookingService(db, catalog, cache, drafts, pub, syncer, o, &logger)
	booking.now = func() time.Time { return fixedNow }

	return &fixture{
		db:           db,
		catalog:      catalog,
		availability: availability,
		booking:      booking,
		drafts:       NewDraftService(drafts, booking, &logger),
		draftRepo:    drafts,
		publisher:    pub,
		syncer:       syncer,
	}
}

func (f *fixture) setNow(now time.Time) {
	f.availability.now = func() time.Time { return now }
	f.booking.now = func() time.Time { return now }
}

func seed(t *testing.T, db *database.DB) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, db.UpsertBusiness(ctx, &models.Business{ID: shop, Name: "Navalha", WhatsAppNumber: "+55 (11) 99999-0000"}))
	for _, svc := range []*models.Service{
		{ID: cut, BusinessID: shop, Name: "Corte", Price: 40, DurationMinutes: 30, IsActive: true},
		{ID: combo, BusinessID: shop, Name: "Corte + Barba", Price: 70, DurationMinutes: 45, IsActive: true},
		{ID: dyed, BusinessID: shop, Name: "Pintura", Price: 90, DurationMinutes: 60, IsActive: false},
	} {
		require.NoError(t, db.UpsertService(ctx, svc))
	}
	hours := models.WorkingHours{"monday": {Start: "09:00", End: "12:00"}, "tuesday": nil}
	for _, p := range []*models.Professional{
		{ID: barber, BusinessID: shop, Name: "Joao", WorkingHours: hours, ServiceIDs: []string{cut, combo}, IsActive: true},
		{ID: freelance, BusinessID: shop, Name: "Pedro", WorkingHours: hours, IsActive: true},
		{ID: retired, BusinessID: shop, Name: "Antonio", WorkingHours: hours, ServiceIDs: []string{cut}, IsActive: false},
	} {
		require.NoError(t, db.UpsertProfessional(ctx, p))
	}
}

func bookingRequest(start, service string) BookingRequest {
	return BookingRequest{
		BusinessID:     shop,
		ProfessionalID: barber,
		ServiceID:      service,
		Date:           monday,
		StartTime:      start,
		ClientName:     "Ana",
		ClientPhone:    "+55 11 98888-7777",
	}
}

func availabilityRequest(service string) AvailabilityRequest {
	return AvailabilityRequest{BusinessID: shop, ProfessionalID: barber, ServiceID: service, Date: monday}
}
