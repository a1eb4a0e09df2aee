package repository

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"salon/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockDraftRepository struct {
	mock.Mock
}

func (m *MockDraftRepository) GetDraft(ctx context.Context, id string) (*models.BookingDraft, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BookingDraft), args.Error(1)
}

func (m *MockDraftRepository) SetDraft(ctx context.Context, draft *models.BookingDraft) error {
	return m.Called(ctx, draft).Error(0)
}

func (m *MockDraftRepository) ClearDraft(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockDraftRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	args := m.Called(ctx, key, limit, window)
	return args.Bool(0), args.Error(1)
}

func TestFailoverDraftRepository(t *testing.T) {
	logger := zerolog.New(io.Discard)
	ctx := context.Background()

	t.Run("PrimaryHealthy", func(t *testing.T) {
		primary := new(MockDraftRepository)
		fallback := NewMemoryDraftRepository(time.Hour)
		repo := NewFailoverDraftRepository(primary, fallback, &logger)

		draft := &models.BookingDraft{ID: "p"}
		primary.On("SetDraft", ctx, draft).Return(nil).Once()
		primary.On("GetDraft", ctx, "p").Return(draft, nil).Once()

		require.NoError(t, repo.SetDraft(ctx, draft))
		got, err := repo.GetDraft(ctx, "p")
		require.NoError(t, err)
		assert.Equal(t, draft, got)
		primary.AssertExpectations(t)
	})

	t.Run("FallbackAndRecovery", func(t *testing.T) {
		primary := new(MockDraftRepository)
		fallback := NewMemoryDraftRepository(time.Hour)
		repo := NewFailoverDraftRepository(primary, fallback, &logger)
		now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		repo.now = func() time.Time { return now }

		draft := &models.BookingDraft{ID: "f", Step: 2}
		primary.On("SetDraft", ctx, draft).Return(errors.New("redis down")).Once()
		require.NoError(t, repo.SetDraft(ctx, draft))
		assert.True(t, repo.isDown.Load())

		// while down, primary is not consulted
		got, err := repo.GetDraft(ctx, "f")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, 2, got.Step)

		allowed, err := repo.CheckRateLimit(ctx, "ip", 1, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed)

		now = now.Add(2 * time.Minute)
		primary.On("ClearDraft", ctx, "f").Return(nil).Once()
		require.NoError(t, repo.ClearDraft(ctx, "f"))
		assert.False(t, repo.isDown.Load())
		primary.AssertExpectations(t)
	})
}
