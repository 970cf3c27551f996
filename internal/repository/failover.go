package repository

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"barberbook/internal/domain"
	"barberbook/internal/models"

	"github.com/rs/zerolog"
)

// recoveryInterval is how long the primary stays bypassed after a failure.
const recoveryInterval = time.Minute

type FailoverDraftRepository struct {
	primary  domain.DraftRepository
	fallback domain.DraftRepository
	logger   *zerolog.Logger
	downAt   atomic.Int64 // unix nanos of the last primary failure, 0 when healthy
	now      func() time.Time
}

func NewFailoverDraftRepository(primary, fallback domain.DraftRepository, logger *zerolog.Logger) *FailoverDraftRepository {
	return &FailoverDraftRepository{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
		now:      time.Now,
	}
}

// usePrimary reports whether the primary should be tried, allowing one attempt
// per recoveryInterval while it is marked down.
func (r *FailoverDraftRepository) usePrimary() bool {
	down := r.downAt.Load()
	return down == 0 || r.now().Sub(time.Unix(0, down)) > recoveryInterval
}

// observe records the outcome of a primary call. Not-found is a valid answer.
func (r *FailoverDraftRepository) observe(err error) bool {
	if err == nil || errors.Is(err, domain.ErrNotFound) {
		if r.downAt.Swap(0) != 0 {
			r.logger.Info().Msg("Primary draft repository recovered")
		}
		return true
	}
	r.logger.Error().Err(err).Msg("Primary draft repository failed, falling back to memory")
	r.downAt.Store(r.now().UnixNano())
	return false
}

func (r *FailoverDraftRepository) GetDraft(ctx context.Context, id string) (*models.BookingDraft, error) {
	if r.usePrimary() {
		draft, err := r.primary.GetDraft(ctx, id)
		if r.observe(err) {
			return draft, err
		}
	}
	return r.fallback.GetDraft(ctx, id)
}

func (r *FailoverDraftRepository) SetDraft(ctx context.Context, draft *models.BookingDraft) error {
	if r.usePrimary() {
		if err := r.primary.SetDraft(ctx, draft); r.observe(err) {
			return nil
		}
	}
	return r.fallback.SetDraft(ctx, draft)
}

func (r *FailoverDraftRepository) ClearDraft(ctx context.Context, id string) error {
	// both sides, a draft may have been written during an outage
	_ = r.fallback.ClearDraft(ctx, id)
	if r.usePrimary() {
		r.observe(r.primary.ClearDraft(ctx, id))
	}
	return nil
}

func (r *FailoverDraftRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if r.usePrimary() {
		allowed, err := r.primary.CheckRateLimit(ctx, key, limit, window)
		if r.observe(err) {
			return allowed, nil
		}
	}
	return r.fallback.CheckRateLimit(ctx, key, limit, window)
}
