package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	// Register should be safe to call multiple times
	Register()
	Register()

	assert.NotPanics(t, func() {
		IncHTTP("/api/v1/availability", "200")
		ObserveAvailability(3 * time.Millisecond)
	})
}

func TestBookingCounter(t *testing.T) {
	before := testutil.ToFloat64(bookingResults.WithLabelValues(OutcomeConflict))
	IncBooking(OutcomeConflict)
	assert.Equal(t, before+1, testutil.ToFloat64(bookingResults.WithLabelValues(OutcomeConflict)))
}

func TestSlotCacheCounter(t *testing.T) {
	hits := testutil.ToFloat64(slotCache.WithLabelValues("hit"))
	misses := testutil.ToFloat64(slotCache.WithLabelValues("miss"))

	ObserveSlotCache(true)
	ObserveSlotCache(false)
	ObserveSlotCache(false)

	assert.Equal(t, hits+1, testutil.ToFloat64(slotCache.WithLabelValues("hit")))
	assert.Equal(t, misses+2, testutil.ToFloat64(slotCache.WithLabelValues("miss")))
}

func TestSyncObserver(t *testing.T) {
	c := syncTasks.WithLabelValues("upsert", "failed")
	before := testutil.ToFloat64(c)
	SyncObserver{}.ObserveSyncTask("upsert", "failed")
	assert.Equal(t, before+1, testutil.ToFloat64(c))
}

func TestBotUpdateCounter(t *testing.T) {
	before := testutil.ToFloat64(botUpdates.WithLabelValues("callback"))
	ObserveBotUpdate("callback", time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(botUpdates.WithLabelValues("callback")))
}
