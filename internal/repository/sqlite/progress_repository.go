package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/mviana/labtrack/internal/logger"
	"github.com/mviana/labtrack/internal/models"
	"github.com/mviana/labtrack/internal/repository"
)

type progressRepository struct {
	db *sql.DB
}

// NewProgressRepository creates a new ProgressRepository implementation
func NewProgressRepository(db *sql.DB) repository.ProgressRepository {
	return &progressRepository{db: db}
}

func (r *progressRepository) Get(ctx context.Context, userID string) (*models.ProgressRecord, error) {
	log := logger.FromContext(ctx).WithPrefix("progress_repo")
	log.Debug("getting progress record: user_id=%s", userID)

	var raw string
	err := r.db.QueryRowContext(ctx, `
SELECT record
FROM progress_records
WHERE user_id = ?
`, userID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		log.Debug("no progress record, returning empty: user_id=%s", userID)
		return models.NewProgressRecord(), nil
	}
	if err != nil {
		log.Error("failed to get progress record: %v", err)
		return nil, err
	}

	var rec models.ProgressRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		// Corrupt stored document heals to an empty record rather than failing.
		log.Warn("corrupt progress record for user %s, treating as empty: %v", userID, err)
		return models.NewProgressRecord(), nil
	}
	if rec.Tasks == nil {
		rec.Tasks = make(map[string]models.TaskProgress)
	}
	log.Debug("progress record loaded: user_id=%s, tasks=%d", userID, len(rec.Tasks))
	return &rec, nil
}

func (r *progressRepository) Put(ctx context.Context, userID string, rec *models.ProgressRecord) error {
	log := logger.FromContext(ctx).WithPrefix("progress_repo")
	log.Debug("storing progress record: user_id=%s, tasks=%d", userID, len(rec.Tasks))

	raw, err := json.Marshal(rec)
	if err != nil {
		log.Error("failed to marshal progress record: %v", err)
		return err
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO progress_records (user_id, record, updated_at)
VALUES (?, ?, ?)
ON CONFLICT(user_id) DO UPDATE SET record = excluded.record, updated_at = excluded.updated_at
`, userID, string(raw), time.Now())
	if err != nil {
		log.Error("failed to store progress record: %v", err)
	}
	return err
}

func (r *progressRepository) Clear(ctx context.Context, userID string) error {
	log := logger.FromContext(ctx).WithPrefix("progress_repo")
	log.Debug("clearing progress record: user_id=%s", userID)

	_, err := r.db.ExecContext(ctx, `DELETE FROM progress_records WHERE user_id = ?`, userID)
	if err != nil {
		log.Error("failed to clear progress record: %v", err)
	}
	return err
}
