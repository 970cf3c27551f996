package repository

import (
	"context"
	"sync"
	"time"

	"barberbook/internal/domain"
	"barberbook/internal/models"
)

type draftEntry struct {
	draft     models.BookingDraft
	expiresAt time.Time
}

type rateLimitEntry struct {
	count     int
	expiresAt time.Time
}

// memorySweepEvery просроченные записи чистятся раз в столько вызовов
const memorySweepEvery = 256

// MemoryDraftRepository is the in-process fallback when Redis is unavailable.
type MemoryDraftRepository struct {
	mu         sync.Mutex
	drafts     map[string]draftEntry
	rateLimits map[string]*rateLimitEntry
	ttl        time.Duration
	now        func() time.Time
	calls      int
}

func NewMemoryDraftRepository(ttl time.Duration) *MemoryDraftRepository {
	return &MemoryDraftRepository{
		drafts:     make(map[string]draftEntry),
		rateLimits: make(map[string]*rateLimitEntry),
		ttl:        ttl,
		now:        time.Now,
	}
}

func (r *MemoryDraftRepository) GetDraft(_ context.Context, id string) (*models.BookingDraft, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.drafts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if r.ttl > 0 && r.now().After(entry.expiresAt) {
		delete(r.drafts, id)
		return nil, domain.ErrNotFound
	}
	d := entry.draft
	return &d, nil
}

func (r *MemoryDraftRepository) SetDraft(_ context.Context, draft *models.BookingDraft) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drafts[draft.ID] = draftEntry{draft: *draft, expiresAt: r.now().Add(r.ttl)}
	return nil
}

func (r *MemoryDraftRepository) ClearDraft(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.drafts, id)
	return nil
}

func (r *MemoryDraftRepository) CheckRateLimit(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.calls++
	if r.calls%memorySweepEvery == 0 {
		r.sweep(now)
	}
	entry, ok := r.rateLimits[key]
	if !ok || now.After(entry.expiresAt) {
		entry = &rateLimitEntry{expiresAt: now.Add(window)}
		r.rateLimits[key] = entry
	}
	entry.count++
	return entry.count <= limit, nil
}

// sweep drops expired rate limit windows and drafts. Callers hold mu.
func (r *MemoryDraftRepository) sweep(now time.Time) int {
	removed := 0
	for key, entry := range r.rateLimits {
		if now.After(entry.expiresAt) {
			delete(r.rateLimits, key)
			removed++
		}
	}
	if r.ttl > 0 {
		for id, entry := range r.drafts {
			if now.After(entry.expiresAt) {
				delete(r.drafts, id)
				removed++
			}
		}
	}
	return removed
}
