package database

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"barberbook/internal/domain"
	"barberbook/internal/models"
	"barberbook/internal/scheduling"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConcurrentBookingSameSlot(t *testing.T) {
	db := setupTestDB(t)
	seedCatalog(t, db)
	ctx := context.Background()

	const numGoroutines = 10
	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	results := make(chan error, numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			defer wg.Done()
			appt := newAppointment(fmt.Sprintf("c%d", id), "10:00", 30)
			results <- db.CreateAppointmentGuarded(ctx, appt, overlapCheck(appt))
		}(i)
	}

	wg.Wait()
	close(results)

	successCount := 0
	for err := range results {
		if err == nil {
			successCount++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrSlotUnavailable)
	}
	assert.Equal(t, 1, successCount, "only one booking may win the slot")

	active, err := db.ListActiveAppointments(ctx, testBusiness, testBarber, testDate)
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestConcurrentBookingOverlappingRanges(t *testing.T) {
	db := setupTestDB(t)
	seedCatalog(t, db)
	ctx := context.Background()

	starts := []string{"09:00", "09:15", "09:30", "09:45", "10:00", "10:15", "10:30", "10:45"}
	var wg sync.WaitGroup
	for i, start := range starts {
		wg.Add(1)
		go func(id int, start string) {
			defer wg.Done()
			appt := newAppointment(fmt.Sprintf("r%d", id), start, 45)
			err := db.CreateAppointmentGuarded(ctx, appt, overlapCheck(appt))
			if err != nil && !errors.Is(err, domain.ErrSlotUnavailable) {
				t.Errorf("unexpected error: %v", err)
			}
		}(i, start)
	}
	wg.Wait()

	active, err := db.ListActiveAppointments(ctx, testBusiness, testBarber, testDate)
	require.NoError(t, err)
	require.NotEmpty(t, active)

	for i := range active {
		for j := i + 1; j < len(active); j++ {
			a := toInterval(t, active[i])
			b := toInterval(t, active[j])
			assert.False(t, a.Overlaps(b), "%s overlaps %s", a, b)
		}
	}
}

func overlapCheck(appt *models.Appointment) func([]*models.Appointment) error {
	return func(existing []*models.Appointment) error {
		start, err := scheduling.ParseClock(appt.StartTime)
		if err != nil {
			return err
		}
		candidate := scheduling.Interval{Start: start, End: start + appt.DurationMinutes}
		for _, e := range existing {
			s, _ := scheduling.ParseClock(e.StartTime)
			if candidate.Overlaps(scheduling.Interval{Start: s, End: s + e.DurationMinutes}) {
				return domain.ErrSlotUnavailable
			}
		}
		return nil
	}
}

func toInterval(t *testing.T, a *models.Appointment) scheduling.Interval {
	t.Helper()
	s, err := scheduling.ParseClock(a.StartTime)
	require.NoError(t, err)
	return scheduling.Interval{Start: s, End: s + a.DurationMinutes}
}
