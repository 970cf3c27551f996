package repository

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"barberbook/internal/domain"
	"barberbook/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockRepo struct {
	mock.Mock
}

func (m *mockRepo) GetDraft(ctx context.Context, id string) (*models.BookingDraft, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BookingDraft), args.Error(1)
}

func (m *mockRepo) SetDraft(ctx context.Context, draft *models.BookingDraft) error {
	return m.Called(ctx, draft).Error(0)
}

func (m *mockRepo) ClearDraft(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockRepo) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	args := m.Called(ctx, key, limit, window)
	return args.Bool(0), args.Error(1)
}

func TestFailoverDraftRepository(t *testing.T) {
	primary := new(mockRepo)
	fallback := new(mockRepo)
	logger := zerolog.New(io.Discard)
	repo := NewFailoverDraftRepository(primary, fallback, &logger)
	now := time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }
	ctx := context.Background()

	t.Run("PrimarySuccess", func(t *testing.T) {
		draft := &models.BookingDraft{ID: "d1"}
		primary.On("GetDraft", ctx, "d1").Return(draft, nil).Once()

		got, err := repo.GetDraft(ctx, "d1")
		assert.NoError(t, err)
		assert.Equal(t, draft, got)
	})

	t.Run("NotFoundIsNotAFailure", func(t *testing.T) {
		primary.On("GetDraft", ctx, "missing").Return(nil, domain.ErrNotFound).Once()

		_, err := repo.GetDraft(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.True(t, repo.usePrimary())
	})

	t.Run("PrimaryFailureFallsBack", func(t *testing.T) {
		draft := &models.BookingDraft{ID: "d2"}
		primary.On("SetDraft", ctx, draft).Return(errors.New("redis down")).Once()
		fallback.On("SetDraft", ctx, draft).Return(nil).Once()

		assert.NoError(t, repo.SetDraft(ctx, draft))
		assert.False(t, repo.usePrimary())
	})

	t.Run("StaysOnFallbackWhileDown", func(t *testing.T) {
		fallback.On("CheckRateLimit", ctx, "k", 5, time.Minute).Return(true, nil).Once()

		ok, err := repo.CheckRateLimit(ctx, "k", 5, time.Minute)
		assert.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("ClearHitsFallbackWhileDown", func(t *testing.T) {
		fallback.On("ClearDraft", ctx, "d2").Return(nil).Once()
		assert.NoError(t, repo.ClearDraft(ctx, "d2"))
	})

	t.Run("Recovers", func(t *testing.T) {
		now = now.Add(2 * time.Minute)
		draft := &models.BookingDraft{ID: "d3"}
		primary.On("GetDraft", ctx, "d3").Return(draft, nil).Once()

		got, err := repo.GetDraft(ctx, "d3")
		assert.NoError(t, err)
		assert.Equal(t, draft, got)
		assert.True(t, repo.usePrimary())
	})

	primary.AssertExpectations(t)
	fallback.AssertExpectations(t)
}
