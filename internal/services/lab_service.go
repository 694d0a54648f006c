package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mviana/labtrack/internal/curriculum"
	"github.com/mviana/labtrack/internal/errors"
	"github.com/mviana/labtrack/internal/logger"
	"github.com/mviana/labtrack/internal/models"
	"github.com/mviana/labtrack/internal/progress"
	"github.com/mviana/labtrack/internal/repository"
)

// LabService handles the lab attempt lifecycle
type LabService interface {
	History(ctx context.Context, userID string) ([]models.LabAttempt, error)
	StartNew(ctx context.Context, userID string) (*models.LabAttempt, error)
	// CheckCompletion transitions the active attempt to completed when every
	// curriculum task in rec is done. Idempotent: once the attempt has
	// transitioned, later checks are no-ops.
	CheckCompletion(ctx context.Context, userID string, rec *models.ProgressRecord) error
}

type labService struct {
	labs     repository.LabSessionRepository
	progress repository.ProgressRepository
	catalog  *curriculum.Catalog
	now      func() time.Time
	newLabID func() string
}

// NewLabService creates a new LabService
func NewLabService(labs repository.LabSessionRepository, progressRepo repository.ProgressRepository, catalog *curriculum.Catalog) LabService {
	return &labService{
		labs:     labs,
		progress: progressRepo,
		catalog:  catalog,
		now:      time.Now,
		newLabID: uuid.NewString,
	}
}

func (s *labService) History(ctx context.Context, userID string) ([]models.LabAttempt, error) {
	log := logger.FromContext(ctx)
	log.Debug("listing lab history: user_id=%s", userID)

	attempts, err := s.labs.History(ctx, userID)
	if err != nil {
		log.Error("failed to list lab history: %v", err)
		return nil, errors.NewStoreUnavailableError(err)
	}
	return attempts, nil
}

func (s *labService) StartNew(ctx context.Context, userID string) (*models.LabAttempt, error) {
	log := logger.FromContext(ctx)
	log.Info("starting new lab attempt: user_id=%s", userID)

	rec, err := s.progress.Get(ctx, userID)
	if err != nil {
		log.Error("failed to load progress for reset: %v", err)
		return nil, errors.NewStoreUnavailableError(err)
	}

	active, err := s.labs.Active(ctx, userID)
	if err != nil {
		log.Error("failed to look up active attempt: %v", err)
		return nil, errors.NewStoreUnavailableError(err)
	}

	total := s.catalog.TotalTasks()

	// Freeze the outgoing attempt with a snapshot of its completion counts.
	// Completion detection already closed it if every task was done, so a
	// still-started attempt is archived as-is.
	if active != nil {
		active.TasksCompleted = progress.CompletedCount(rec, s.catalog.TaskIDs())
		active.TotalTasks = total
		if err := s.labs.Upsert(ctx, userID, *active); err != nil {
			log.Error("failed to archive active attempt: %v", err)
			return nil, errors.NewStoreUnavailableError(err)
		}
		log.Debug("archived attempt %s with %d/%d tasks", active.LabID, active.TasksCompleted, total)
	}

	if err := s.progress.Clear(ctx, userID); err != nil {
		log.Error("failed to clear progress: %v", err)
		return nil, errors.NewStoreUnavailableError(err)
	}

	fresh := models.LabAttempt{
		LabID:      s.newLabID(),
		Status:     models.AttemptStarted,
		StartedAt:  s.now(),
		TotalTasks: total,
	}
	if err := s.labs.Upsert(ctx, userID, fresh); err != nil {
		log.Error("failed to open new attempt: %v", err)
		return nil, errors.NewStoreUnavailableError(err)
	}

	log.Info("opened new lab attempt %s", fresh.LabID)
	return &fresh, nil
}

func (s *labService) CheckCompletion(ctx context.Context, userID string, rec *models.ProgressRecord) error {
	log := logger.FromContext(ctx)

	total := s.catalog.TotalTasks()
	if total == 0 {
		return nil
	}
	count := progress.CompletedCount(rec, s.catalog.TaskIDs())
	if count < total {
		return nil
	}

	active, err := s.labs.Active(ctx, userID)
	if err != nil {
		log.Error("failed to look up active attempt: %v", err)
		return errors.NewStoreUnavailableError(err)
	}
	if active == nil {
		// Already transitioned, or no attempt was ever opened.
		return nil
	}

	done := s.now()
	active.Status = models.AttemptCompleted
	active.CompletedAt = &done
	active.TasksCompleted = count
	active.TotalTasks = total
	if err := s.labs.Upsert(ctx, userID, *active); err != nil {
		log.Error("failed to complete attempt: %v", err)
		return errors.NewStoreUnavailableError(err)
	}

	log.Info("lab attempt %s completed: user_id=%s, tasks=%d/%d", active.LabID, userID, count, total)
	return nil
}
