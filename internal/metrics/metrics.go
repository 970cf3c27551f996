package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "barberbook"

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint and status code.",
		},
		[]string{"endpoint", "code"},
	)

	bookingResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_submissions_total",
			Help:      "Booking submissions by outcome.",
		},
		[]string{"outcome"},
	)

	slotCache = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "slot_cache_lookups_total",
			Help:      "Slot cache lookups by result.",
		},
		[]string{"result"},
	)

	availabilityDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "availability_duration_seconds",
			Help:      "Time spent computing available slots.",
			Buckets:   prometheus.DefBuckets,
		},
	)

	syncTasks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sheets_sync_tasks_total",
			Help:      "Sheets sync task outcomes.",
		},
		[]string{"task_type", "outcome"},
	)

	botUpdates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bot_updates_total",
			Help:      "Telegram updates handled by the booking bot, by kind.",
		},
		[]string{"kind"},
	)

	botUpdateDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "bot_update_processing_seconds",
			Help:      "Time spent processing Telegram updates.",
			Buckets:   prometheus.DefBuckets,
		},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, bookingResults, slotCache, availabilityDuration, syncTasks, botUpdates, botUpdateDuration)
	})
}

// IncHTTP increments the counter for an endpoint and status code.
func IncHTTP(endpoint, code string) {
	httpRequests.WithLabelValues(endpoint, code).Inc()
}

// Booking outcomes.
const (
	OutcomeCreated     = "created"
	OutcomeConflict    = "conflict"
	OutcomeInvalid     = "invalid"
	OutcomeRateLimited = "rate_limited"
	OutcomeError       = "error"
)

func IncBooking(outcome string) {
	bookingResults.WithLabelValues(outcome).Inc()
}

func ObserveSlotCache(hit bool) {
	if hit {
		slotCache.WithLabelValues("hit").Inc()
		return
	}
	slotCache.WithLabelValues("miss").Inc()
}

func ObserveAvailability(d time.Duration) {
	availabilityDuration.Observe(d.Seconds())
}

// SyncObserver adapts the sync task counter to the worker's observer hook.
type SyncObserver struct{}

func (SyncObserver) ObserveSyncTask(taskType, outcome string) {
	syncTasks.WithLabelValues(taskType, outcome).Inc()
}

// ObserveBotUpdate counts one bot update and its processing time.
func ObserveBotUpdate(kind string, d time.Duration) {
	botUpdates.WithLabelValues(kind).Inc()
	botUpdateDuration.Observe(d.Seconds())
}
