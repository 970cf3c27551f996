package api

import (
	"testing"
	"time"

	"barberbook/internal/config"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterBurstAndRefill(t *testing.T) {
	now := time.Date(2030, 1, 2, 9, 0, 0, 0, time.UTC)
	l := newRateLimiter(config.APIRateLimitConfig{RPS: 1, Burst: 2})
	l.now = func() time.Time { return now }

	assert.True(t, l.allow("k1"))
	assert.True(t, l.allow("k1"))
	assert.False(t, l.allow("k1"))
	assert.True(t, l.allow("k2"), "buckets are per key")

	now = now.Add(time.Second)
	assert.True(t, l.allow("k1"))
}

func TestRateLimiterDisabled(t *testing.T) {
	l := newRateLimiter(config.APIRateLimitConfig{})
	for i := 0; i < 100; i++ {
		assert.True(t, l.allow("k"))
	}
}

func TestRateLimiterSweepsIdleBuckets(t *testing.T) {
	now := time.Date(2030, 1, 2, 9, 0, 0, 0, time.UTC)
	l := newRateLimiter(config.APIRateLimitConfig{RPS: 1, Burst: 1})
	l.now = func() time.Time { return now }

	l.allow("10.0.0.1:5000")
	now = now.Add(limiterIdleTTL / 2)
	l.allow("10.0.0.2:5000")

	now = now.Add(limiterIdleTTL/2 + time.Second)
	assert.Equal(t, 1, l.sweep(now))

	_, ok := l.buckets.Load("10.0.0.1:5000")
	assert.False(t, ok)
	_, ok = l.buckets.Load("10.0.0.2:5000")
	assert.True(t, ok)
}
