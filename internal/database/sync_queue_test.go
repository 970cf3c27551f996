package database

import (
	"context"
	"testing"
	"time"

	"barberbook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncQueueLifecycle(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	task := &models.SyncTask{TaskType: "upsert", AppointmentID: "a1", Payload: `{"id":"a1"}`}
	require.NoError(t, db.CreateSyncTask(ctx, task))
	assert.NotZero(t, task.ID)
	assert.Equal(t, models.SyncPending, task.Status)

	tasks, err := db.GetPendingSyncTasks(ctx, 10)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "a1", tasks[0].AppointmentID)
	assert.Nil(t, tasks[0].ProcessedAt)

	require.NoError(t, db.UpdateSyncTaskStatus(ctx, tasks[0].ID, models.SyncCompleted, "", nil))
	tasks, err = db.GetPendingSyncTasks(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, tasks)

	retry := &models.SyncTask{TaskType: "update_status", AppointmentID: "a2"}
	require.NoError(t, db.CreateSyncTask(ctx, retry))

	future := time.Now().Add(time.Hour)
	require.NoError(t, db.UpdateSyncTaskStatus(ctx, retry.ID, models.SyncRetry, "temporary error", &future))
	tasks, err = db.GetPendingSyncTasks(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, tasks, "future retry must wait")

	past := time.Now().Add(-time.Hour)
	require.NoError(t, db.UpdateSyncTaskStatus(ctx, retry.ID, models.SyncRetry, "temporary error", &past))
	tasks, err = db.GetPendingSyncTasks(ctx, 10)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, 2, tasks[0].RetryCount)
	require.NotNil(t, tasks[0].LastError)
	assert.Equal(t, "temporary error", *tasks[0].LastError)

	require.NoError(t, db.UpdateSyncTaskStatus(ctx, retry.ID, models.SyncFailed, "gave up", nil))
	counts, err := db.CountSyncTasks(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{models.SyncCompleted: 1, models.SyncFailed: 1}, counts)
}

func TestRequeueFailedSyncTasks(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	for _, id := range []string{"a1", "a2", "a3"} {
		task := &models.SyncTask{TaskType: "upsert", AppointmentID: id}
		require.NoError(t, db.CreateSyncTask(ctx, task))
		if id != "a3" {
			require.NoError(t, db.UpdateSyncTaskStatus(ctx, task.ID, models.SyncRetry, "quota", nil))
			require.NoError(t, db.UpdateSyncTaskStatus(ctx, task.ID, models.SyncFailed, "gave up", nil))
		}
	}

	n, err := db.RequeueFailedSyncTasks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	tasks, err := db.GetPendingSyncTasks(ctx, 10)
	require.NoError(t, err)
	require.Len(t, tasks, 3)
	for _, task := range tasks {
		assert.Equal(t, models.SyncPending, task.Status)
		assert.Zero(t, task.RetryCount)
		assert.Nil(t, task.ProcessedAt)
	}

	n, err = db.RequeueFailedSyncTasks(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
