package repository

import (
	"context"
	"testing"
	"time"

	"salon/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisDraftRepository(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	client := redis.NewClient(&redis.Options{
		Addr: s.Addr(),
	})
	defer client.Close()

	repo := NewRedisDraftRepository(client, time.Hour)
	ctx := context.Background()

	t.Run("SetAndGetDraft", func(t *testing.T) {
		draft := &models.BookingDraft{
			ID:   "d-1",
			Step: models.DraftStepDateTime,
			Data: map[string]interface{}{"serviceId": "svc-1"},
		}
		require.NoError(t, repo.SetDraft(ctx, draft))

		got, err := repo.GetDraft(ctx, "d-1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, models.DraftStepDateTime, got.Step)
		assert.Equal(t, "svc-1", got.GetString("serviceId"))
	})

	t.Run("GetMissingDraft", func(t *testing.T) {
		got, err := repo.GetDraft(ctx, "missing")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("DraftExpires", func(t *testing.T) {
		require.NoError(t, repo.SetDraft(ctx, &models.BookingDraft{ID: "d-ttl"}))
		s.FastForward(2 * time.Hour)
		got, err := repo.GetDraft(ctx, "d-ttl")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("ClearDraft", func(t *testing.T) {
		require.NoError(t, repo.SetDraft(ctx, &models.BookingDraft{ID: "d-2"}))
		require.NoError(t, repo.ClearDraft(ctx, "d-2"))
		got, err := repo.GetDraft(ctx, "d-2")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("CheckRateLimit", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			allowed, err := repo.CheckRateLimit(ctx, "10.0.0.1", 3, time.Minute)
			require.NoError(t, err)
			assert.True(t, allowed)
		}
		allowed, err := repo.CheckRateLimit(ctx, "10.0.0.1", 3, time.Minute)
		require.NoError(t, err)
		assert.False(t, allowed)

		s.FastForward(2 * time.Minute)
		allowed, err = repo.CheckRateLimit(ctx, "10.0.0.1", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed)
	})

	t.Run("NilClient", func(t *testing.T) {
		nilRepo := NewRedisDraftRepository(nil, time.Hour)
		_, err := nilRepo.GetDraft(ctx, "x")
		assert.Error(t, err)
		assert.Error(t, nilRepo.SetDraft(ctx, &models.BookingDraft{ID: "x"}))
		assert.Error(t, nilRepo.ClearDraft(ctx, "x"))
		_, err = nilRepo.CheckRateLimit(ctx, "x", 1, time.Minute)
		assert.Error(t, err)
	})

	t.Run("PingAndClose", func(t *testing.T) {
		assert.NoError(t, Ping(ctx, client))
		assert.NoError(t, Close(nil))
	})
}
