package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/mviana/labtrack/internal/logger"
	"github.com/mviana/labtrack/internal/models"
	"github.com/mviana/labtrack/internal/repository"
)

type labSessionRepository struct {
	db *sql.DB
}

// NewLabSessionRepository creates a new LabSessionRepository implementation
func NewLabSessionRepository(db *sql.DB) repository.LabSessionRepository {
	return &labSessionRepository{db: db}
}

func (r *labSessionRepository) History(ctx context.Context, userID string) ([]models.LabAttempt, error) {
	log := logger.FromContext(ctx).WithPrefix("lab_repo")
	log.Debug("listing lab attempts: user_id=%s", userID)

	rows, err := r.db.QueryContext(ctx, `
SELECT lab_id, status, started_at, completed_at, tasks_completed, total_tasks, created_at, updated_at
FROM lab_attempts
WHERE user_id = ?
ORDER BY started_at ASC
`, userID)
	if err != nil {
		log.Error("failed to list lab attempts: %v", err)
		return nil, err
	}
	defer rows.Close()

	var attempts []models.LabAttempt
	for rows.Next() {
		var a models.LabAttempt
		var status string
		if err := rows.Scan(&a.LabID, &status, &a.StartedAt, &a.CompletedAt, &a.TasksCompleted, &a.TotalTasks, &a.CreatedAt, &a.UpdatedAt); err != nil {
			log.Error("failed to scan lab attempt row: %v", err)
			return nil, err
		}
		a.Status = models.LabAttemptStatus(status)
		attempts = append(attempts, a)
	}
	log.Debug("found %d lab attempts", len(attempts))
	return attempts, rows.Err()
}

func (r *labSessionRepository) Upsert(ctx context.Context, userID string, attempt models.LabAttempt) error {
	log := logger.FromContext(ctx).WithPrefix("lab_repo")
	log.Debug("upserting lab attempt: user_id=%s, lab_id=%s, status=%s", userID, attempt.LabID, attempt.Status)

	return tx(ctx, r.db, func(t *sql.Tx) error {
		var id int64
		err := t.QueryRowContext(ctx, `
SELECT id FROM lab_attempts WHERE user_id = ? AND lab_id = ?
`, userID, attempt.LabID).Scan(&id)

		switch {
		case errors.Is(err, sql.ErrNoRows):
			_, err = t.ExecContext(ctx, `
INSERT INTO lab_attempts (user_id, lab_id, status, started_at, completed_at, tasks_completed, total_tasks, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`, userID, attempt.LabID, string(attempt.Status), attempt.StartedAt, attempt.CompletedAt, attempt.TasksCompleted, attempt.TotalTasks, time.Now())
			if err != nil {
				log.Error("failed to insert lab attempt: %v", err)
			}
			return err
		case err != nil:
			log.Error("failed to look up lab attempt: %v", err)
			return err
		default:
			_, err = t.ExecContext(ctx, `
UPDATE lab_attempts
SET status = ?, started_at = ?, completed_at = ?, tasks_completed = ?, total_tasks = ?, updated_at = ?
WHERE id = ?
`, string(attempt.Status), attempt.StartedAt, attempt.CompletedAt, attempt.TasksCompleted, attempt.TotalTasks, time.Now(), id)
			if err != nil {
				log.Error("failed to update lab attempt: %v", err)
			}
			return err
		}
	})
}

func (r *labSessionRepository) Active(ctx context.Context, userID string) (*models.LabAttempt, error) {
	log := logger.FromContext(ctx).WithPrefix("lab_repo")
	log.Debug("getting active lab attempt: user_id=%s", userID)

	var a models.LabAttempt
	var status string
	err := r.db.QueryRowContext(ctx, `
SELECT lab_id, status, started_at, completed_at, tasks_completed, total_tasks, created_at, updated_at
FROM lab_attempts
WHERE user_id = ? AND status = 'started'
ORDER BY started_at DESC
LIMIT 1
`, userID).Scan(&a.LabID, &status, &a.StartedAt, &a.CompletedAt, &a.TasksCompleted, &a.TotalTasks, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		log.Debug("no active lab attempt: user_id=%s", userID)
		return nil, nil
	}
	if err != nil {
		log.Error("failed to get active lab attempt: %v", err)
		return nil, err
	}
	a.Status = models.LabAttemptStatus(status)
	return &a, nil
}
