package services

import (
	"context"
	"time"

	"github.com/mviana/labtrack/internal/curriculum"
	"github.com/mviana/labtrack/internal/errors"
	"github.com/mviana/labtrack/internal/logger"
	"github.com/mviana/labtrack/internal/models"
	"github.com/mviana/labtrack/internal/notes"
	"github.com/mviana/labtrack/internal/progress"
	"github.com/mviana/labtrack/internal/repository"
)

// ProgressService handles completion-state business logic
type ProgressService interface {
	Get(ctx context.Context, userID string) (*models.ProgressRecord, error)
	SetTaskCompletion(ctx context.Context, userID, taskID string, completed bool) (*models.ProgressRecord, error)
	SetSubtaskCompletion(ctx context.Context, userID, taskID, stepID string, completed bool) (*models.ProgressRecord, error)
	SetNotes(ctx context.Context, userID, taskID, content string) (*models.ProgressRecord, error)
}

type progressService struct {
	progress repository.ProgressRepository
	labs     LabService
	catalog  *curriculum.Catalog
	limits   notes.Limits
	now      func() time.Time
}

// NewProgressService creates a new ProgressService
func NewProgressService(progressRepo repository.ProgressRepository, labs LabService, catalog *curriculum.Catalog, limits notes.Limits) ProgressService {
	return &progressService{
		progress: progressRepo,
		labs:     labs,
		catalog:  catalog,
		limits:   limits,
		now:      time.Now,
	}
}

func (s *progressService) Get(ctx context.Context, userID string) (*models.ProgressRecord, error) {
	log := logger.FromContext(ctx)
	log.Debug("getting progress: user_id=%s", userID)

	rec, err := s.progress.Get(ctx, userID)
	if err != nil {
		log.Error("failed to get progress: %v", err)
		return nil, errors.NewStoreUnavailableError(err)
	}
	return rec, nil
}

func (s *progressService) SetTaskCompletion(ctx context.Context, userID, taskID string, completed bool) (*models.ProgressRecord, error) {
	log := logger.FromContext(ctx)
	log.Debug("setting task completion: user_id=%s, task_id=%s, completed=%t", userID, taskID, completed)

	if !s.catalog.ValidTask(taskID) {
		return nil, errors.NewValidationError("task_id", "unknown task")
	}

	rec, err := s.progress.Get(ctx, userID)
	if err != nil {
		log.Error("failed to get progress: %v", err)
		return nil, errors.NewStoreUnavailableError(err)
	}

	progress.ApplyTask(rec, taskID, s.catalog.StepIDs(taskID), completed, s.now())

	if err := s.progress.Put(ctx, userID, rec); err != nil {
		log.Error("failed to store progress: %v", err)
		return nil, errors.NewStoreUnavailableError(err)
	}

	s.detectCompletion(ctx, userID, rec)
	return rec, nil
}

func (s *progressService) SetSubtaskCompletion(ctx context.Context, userID, taskID, stepID string, completed bool) (*models.ProgressRecord, error) {
	log := logger.FromContext(ctx)
	log.Debug("setting subtask completion: user_id=%s, task_id=%s, step_id=%s, completed=%t", userID, taskID, stepID, completed)

	if !s.catalog.ValidTask(taskID) {
		return nil, errors.NewValidationError("task_id", "unknown task")
	}
	if !s.catalog.ValidStep(taskID, stepID) {
		return nil, errors.NewValidationError("step_id", "unknown step")
	}

	rec, err := s.progress.Get(ctx, userID)
	if err != nil {
		log.Error("failed to get progress: %v", err)
		return nil, errors.NewStoreUnavailableError(err)
	}

	progress.ApplySubtask(rec, taskID, stepID, s.catalog.StepIDs(taskID), completed, s.now())

	if err := s.progress.Put(ctx, userID, rec); err != nil {
		log.Error("failed to store progress: %v", err)
		return nil, errors.NewStoreUnavailableError(err)
	}

	s.detectCompletion(ctx, userID, rec)
	return rec, nil
}

func (s *progressService) SetNotes(ctx context.Context, userID, taskID, content string) (*models.ProgressRecord, error) {
	log := logger.FromContext(ctx)
	log.Debug("setting inline notes: user_id=%s, task_id=%s", userID, taskID)

	if !s.catalog.ValidTask(taskID) {
		return nil, errors.NewValidationError("task_id", "unknown task")
	}

	rec, err := s.progress.Get(ctx, userID)
	if err != nil {
		log.Error("failed to get progress: %v", err)
		return nil, errors.NewStoreUnavailableError(err)
	}

	tp := rec.Task(taskID)
	tp.Notes = notes.Truncate(content, s.limits.MaxContentLength)
	tp.LastUpdated = s.now()
	rec.SetTask(taskID, tp)

	if err := s.progress.Put(ctx, userID, rec); err != nil {
		log.Error("failed to store progress: %v", err)
		return nil, errors.NewStoreUnavailableError(err)
	}
	return rec, nil
}

// detectCompletion runs the event-driven attempt transition after a
// successful mutation. Detection failures do not fail the mutation itself.
func (s *progressService) detectCompletion(ctx context.Context, userID string, rec *models.ProgressRecord) {
	if err := s.labs.CheckCompletion(ctx, userID, rec); err != nil {
		logger.FromContext(ctx).Warn("completion detection failed: %v", err)
	}
}
