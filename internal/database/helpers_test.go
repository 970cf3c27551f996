package database

import (
	"context"
	"path/filepath"
	"testing"

	"barberbook/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const (
	testBusiness = "shop-1"
	testBarber   = "barber-1"
	testCut      = "cut"
	testDate     = "2024-06-03"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	logger := zerolog.Nop()
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func seedCatalog(t *testing.T, db *DB) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, db.UpsertBusiness(ctx, &models.Business{ID: testBusiness, Name: "Navalha", WhatsAppNumber: "5511999990000"}))
	require.NoError(t, db.UpsertService(ctx, &models.Service{
		ID: testCut, BusinessID: testBusiness, Name: "Corte", Price: 40, DurationMinutes: 30, IsActive: true,
	}))
	require.NoError(t, db.UpsertProfessional(ctx, &models.Professional{
		ID:           testBarber,
		BusinessID:   testBusiness,
		Name:         "Joao",
		WorkingHours: models.WorkingHours{"monday": {Start: "09:00", End: "12:00"}},
		ServiceIDs:   []string{testCut},
		IsActive:     true,
	}))
}

func newAppointment(id, start string, duration int) *models.Appointment {
	return &models.Appointment{
		ID:              id,
		BusinessID:      testBusiness,
		ProfessionalID:  testBarber,
		ServiceID:       testCut,
		Date:            testDate,
		StartTime:       start,
		DurationMinutes: duration,
		ClientName:      "Cliente",
		ClientPhone:     "+5511988887777",
		Status:          models.StatusPending,
	}
}
