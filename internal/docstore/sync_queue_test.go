package docstore

import (
	"context"
	"testing"
	"time"

	"salon/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncQueue(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	task := &models.SyncTask{
		TaskType:   "upsert_appointment",
		DocumentID: "appt-1",
		Payload:    `{"id":"appt-1"}`,
	}
	require.NoError(t, store.CreateSyncTask(ctx, task))
	assert.NotZero(t, task.ID)
	assert.Equal(t, SyncStatusPending, task.Status)

	tasks, err := store.GetPendingSyncTasks(ctx, 10)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "appt-1", tasks[0].DocumentID)

	t.Run("RetryInFuture", func(t *testing.T) {
		next := time.Now().Add(time.Hour)
		require.NoError(t, store.UpdateSyncTaskStatus(ctx, task.ID, SyncStatusRetry, "boom", &next))
		tasks, err := store.GetPendingSyncTasks(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, tasks)
	})

	t.Run("Failed", func(t *testing.T) {
		require.NoError(t, store.UpdateSyncTaskStatus(ctx, task.ID, SyncStatusFailed, "gave up", nil))
		failed, err := store.GetFailedSyncTasks(ctx)
		require.NoError(t, err)
		require.Len(t, failed, 1)
		assert.Equal(t, 1, failed[0].RetryCount)
		require.NotNil(t, failed[0].LastError)
		assert.Equal(t, "gave up", *failed[0].LastError)
		assert.NotNil(t, failed[0].ProcessedAt)
	})

	t.Run("GetByID", func(t *testing.T) {
		got, err := store.GetSyncTask(ctx, task.ID)
		require.NoError(t, err)
		assert.Equal(t, SyncStatusFailed, got.Status)

		_, err = store.GetSyncTask(ctx, task.ID+100)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}
