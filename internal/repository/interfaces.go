package repository

import (
	"context"

	"github.com/mviana/labtrack/internal/models"
)

// ProgressRepository handles the per-user progress document.
type ProgressRepository interface {
	// Get returns the stored record, or an empty record when absent or when
	// the stored document cannot be parsed. It never errors on absence.
	Get(ctx context.Context, userID string) (*models.ProgressRecord, error)
	Put(ctx context.Context, userID string, rec *models.ProgressRecord) error
	Clear(ctx context.Context, userID string) error
}

// NoteRepository handles detached per-user-per-task note records.
type NoteRepository interface {
	// Get returns nil without error when no note exists.
	Get(ctx context.Context, userID, taskID string) (*models.NoteRecord, error)
	// List returns every note with non-empty content, optionally filtered by a
	// case-insensitive substring match on content.
	List(ctx context.Context, userID, search string) ([]models.NoteRecord, error)
	Upsert(ctx context.Context, note models.NoteRecord) error
	Delete(ctx context.Context, userID, taskID string) error
}

// LabSessionRepository handles the per-user ordered list of lab attempts.
type LabSessionRepository interface {
	History(ctx context.Context, userID string) ([]models.LabAttempt, error)
	// Upsert matches by lab id: found rows are merged and stamped updated_at,
	// missing rows appended with created_at.
	Upsert(ctx context.Context, userID string, attempt models.LabAttempt) error
	// Active returns the newest attempt still in the started state, nil if none.
	Active(ctx context.Context, userID string) (*models.LabAttempt, error)
}
