package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"barberbook/internal/models"
)

const syncTaskColumns = `id, task_type, appointment_id, payload, status, retry_count, last_error, created_at, processed_at, next_retry_at`

// CreateSyncTask queues a Sheets mirror job. An empty status means pending.
func (db *DB) CreateSyncTask(ctx context.Context, task *models.SyncTask) error {
	if task.Status == "" {
		task.Status = models.SyncPending
	}
	task.CreatedAt = time.Now()

	res, err := db.ExecContext(ctx, `
        INSERT INTO sync_queue (task_type, appointment_id, payload, status, retry_count, last_error, created_at, next_retry_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		task.TaskType, task.AppointmentID, task.Payload, task.Status,
		task.RetryCount, task.LastError, task.CreatedAt, task.NextRetryAt,
	)
	if err != nil {
		return fmt.Errorf("insert sync task for %s: %w", task.AppointmentID, err)
	}
	if task.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("sync task id: %w", err)
	}
	return nil
}

// GetPendingSyncTasks returns due tasks, oldest first.
func (db *DB) GetPendingSyncTasks(ctx context.Context, limit int) ([]models.SyncTask, error) {
	rows, err := db.QueryContext(ctx, `
        SELECT `+syncTaskColumns+`
        FROM sync_queue
        WHERE status IN (?, ?) AND (next_retry_at IS NULL OR next_retry_at <= ?)
        ORDER BY created_at, id
        LIMIT ?`,
		models.SyncPending, models.SyncRetry, time.Now(), limit)
	if err != nil {
		return nil, fmt.Errorf("select due sync tasks: %w", err)
	}
	defer rows.Close()
	return scanSyncTasks(rows)
}

// UpdateSyncTaskStatus records an attempt. A retry bumps the counter; final
// statuses stamp processed_at.
func (db *DB) UpdateSyncTaskStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error {
	var processedAt *time.Time
	task := models.SyncTask{Status: status}
	if task.IsFinal() {
		now := time.Now()
		processedAt = &now
	}
	retried := 0
	if status == models.SyncRetry {
		retried = 1
	}

	_, err := db.ExecContext(ctx, `
        UPDATE sync_queue
        SET status = ?, last_error = NULLIF(?, ''), next_retry_at = ?,
            retry_count = retry_count + ?,
            processed_at = COALESCE(?, processed_at)
        WHERE id = ?`,
		status, errMsg, nextRetryAt, retried, processedAt, id)
	if err != nil {
		return fmt.Errorf("update sync task %d: %w", id, err)
	}
	return nil
}

// RequeueFailedSyncTasks puts every failed task back to pending with a fresh
// retry budget and returns how many were moved.
func (db *DB) RequeueFailedSyncTasks(ctx context.Context) (int, error) {
	res, err := db.ExecContext(ctx, `
        UPDATE sync_queue
        SET status = ?, retry_count = 0, next_retry_at = NULL, processed_at = NULL
        WHERE status = ?`,
		models.SyncPending, models.SyncFailed)
	if err != nil {
		return 0, fmt.Errorf("requeue failed sync tasks: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// CountSyncTasks returns queue depth per status.
func (db *DB) CountSyncTasks(ctx context.Context) (map[string]int, error) {
	rows, err := db.QueryContext(ctx, `SELECT status, COUNT(*) FROM sync_queue GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count sync tasks: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func scanSyncTasks(rows *sql.Rows) ([]models.SyncTask, error) {
	var tasks []models.SyncTask
	for rows.Next() {
		var t models.SyncTask
		if err := rows.Scan(&t.ID, &t.TaskType, &t.AppointmentID, &t.Payload, &t.Status, &t.RetryCount,
			&t.LastError, &t.CreatedAt, &t.ProcessedAt, &t.NextRetryAt); err != nil {
			return nil, fmt.Errorf("scan sync task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}
