package postgres

import (
	"context"
	"fmt"
	"time"

	"barberbook/internal/models"

	"github.com/jackc/pgx/v5"
)

func (s *Store) CreateSyncTask(ctx context.Context, task *models.SyncTask) error {
	if task.Status == "" {
		task.Status = models.SyncPending
	}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO sync_queue (task_type, appointment_id, payload, status, retry_count, last_error, next_retry_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`,
		task.TaskType, task.AppointmentID, task.Payload, task.Status, task.RetryCount, task.LastError, task.NextRetryAt,
	).Scan(&task.ID, &task.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert sync task for %s: %w", task.AppointmentID, err)
	}
	return nil
}

func (s *Store) GetPendingSyncTasks(ctx context.Context, limit int) ([]models.SyncTask, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, task_type, appointment_id, payload, status, retry_count, last_error, created_at, processed_at, next_retry_at
		FROM sync_queue
		WHERE status IN ($1, $2) AND (next_retry_at IS NULL OR next_retry_at <= now())
		ORDER BY created_at, id
		LIMIT $3`,
		models.SyncPending, models.SyncRetry, limit)
	if err != nil {
		return nil, fmt.Errorf("select due sync tasks: %w", err)
	}
	tasks, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.SyncTask, error) {
		var t models.SyncTask
		err := row.Scan(&t.ID, &t.TaskType, &t.AppointmentID, &t.Payload, &t.Status, &t.RetryCount,
			&t.LastError, &t.CreatedAt, &t.ProcessedAt, &t.NextRetryAt)
		return t, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan sync task: %w", err)
	}
	return tasks, nil
}

func (s *Store) UpdateSyncTaskStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error {
	final := (&models.SyncTask{Status: status}).IsFinal()
	_, err := s.pool.Exec(ctx, `
		UPDATE sync_queue
		SET status = $1, last_error = NULLIF($2, ''), next_retry_at = $3,
		    retry_count = retry_count + CASE WHEN $1 = 'retry' THEN 1 ELSE 0 END,
		    processed_at = CASE WHEN $4 THEN now() ELSE processed_at END
		WHERE id = $5`,
		status, errMsg, nextRetryAt, final, id)
	if err != nil {
		return fmt.Errorf("update sync task %d: %w", id, err)
	}
	return nil
}

func (s *Store) RequeueFailedSyncTasks(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE sync_queue
		SET status = $1, retry_count = 0, next_retry_at = NULL, processed_at = NULL
		WHERE status = $2`,
		models.SyncPending, models.SyncFailed)
	if err != nil {
		return 0, fmt.Errorf("requeue failed sync tasks: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *Store) CountSyncTasks(ctx context.Context) (map[string]int, error) {
	rows, err := s.pool.Query(ctx, `SELECT status, COUNT(*) FROM sync_queue GROUP BY status`)
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
