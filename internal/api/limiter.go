package api

import (
	"sync"
	"sync/atomic"
	"time"

	"barberbook/internal/config"

	"golang.org/x/time/rate"
)

const (
	limiterIdleTTL     = 10 * time.Minute
	limiterSweepPeriod = 1024
)

type clientBucket struct {
	lim      *rate.Limiter
	lastSeen atomic.Int64
}

// rateLimiter hands out one token bucket per client key. Keys include peer
// addresses, so buckets idle for limiterIdleTTL are dropped.
type rateLimiter struct {
	buckets sync.Map
	calls   atomic.Uint64
	rps     float64
	burst   int
	now     func() time.Time
}

func newRateLimiter(cfg config.APIRateLimitConfig) *rateLimiter {
	burst := cfg.Burst
	if burst <= 0 {
		burst = 5
	}
	return &rateLimiter{rps: cfg.RPS, burst: burst, now: time.Now}
}

func (l *rateLimiter) enabled() bool {
	return l.rps > 0
}

func (l *rateLimiter) allow(key string) bool {
	if !l.enabled() {
		return true
	}
	now := l.now()
	if l.calls.Add(1)%limiterSweepPeriod == 0 {
		l.sweep(now)
	}
	b := l.bucket(key)
	b.lastSeen.Store(now.UnixNano())
	return b.lim.AllowN(now, 1)
}

func (l *rateLimiter) bucket(key string) *clientBucket {
	if v, ok := l.buckets.Load(key); ok {
		return v.(*clientBucket)
	}
	fresh := &clientBucket{lim: rate.NewLimiter(rate.Limit(l.rps), l.burst)}
	v, _ := l.buckets.LoadOrStore(key, fresh)
	return v.(*clientBucket)
}

// sweep drops buckets not used since limiterIdleTTL. A dropped client starts
// over with a full bucket, which is what an idle bucket holds anyway.
func (l *rateLimiter) sweep(now time.Time) int {
	cutoff := now.Add(-limiterIdleTTL).UnixNano()
	dropped := 0
	l.buckets.Range(func(k, v any) bool {
		if v.(*clientBucket).lastSeen.Load() < cutoff {
			l.buckets.Delete(k)
			dropped++
		}
		return true
	})
	return dropped
}
