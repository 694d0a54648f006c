package services

import (
	"context"
	"strings"
	"time"

	"github.com/mviana/labtrack/internal/curriculum"
	"github.com/mviana/labtrack/internal/errors"
	"github.com/mviana/labtrack/internal/logger"
	"github.com/mviana/labtrack/internal/models"
	"github.com/mviana/labtrack/internal/notes"
	"github.com/mviana/labtrack/internal/repository"
)

// NotesService handles versioned note business logic
type NotesService interface {
	Get(ctx context.Context, userID, taskID string, includeHistory bool) (*models.NoteDetails, error)
	GetAll(ctx context.Context, userID, search string) (map[string]models.NoteSummary, error)
	Save(ctx context.Context, userID, taskID, content string, tags []string, format models.NoteFormat) (*models.NoteDetails, error)
	Update(ctx context.Context, userID, taskID string, patch models.NotePatch) (*models.NoteDetails, error)
	Delete(ctx context.Context, userID, taskID string, keepHistory bool) (*models.NoteDetails, error)
	DeleteAll(ctx context.Context, userID string, keepHistory bool) (int, error)
}

type notesService struct {
	notes    repository.NoteRepository
	progress repository.ProgressRepository
	catalog  *curriculum.Catalog
	limits   notes.Limits
	now      func() time.Time
}

// NewNotesService creates a new NotesService
func NewNotesService(noteRepo repository.NoteRepository, progressRepo repository.ProgressRepository, catalog *curriculum.Catalog, limits notes.Limits) NotesService {
	return &notesService{
		notes:    noteRepo,
		progress: progressRepo,
		catalog:  catalog,
		limits:   limits,
		now:      time.Now,
	}
}

func (s *notesService) Get(ctx context.Context, userID, taskID string, includeHistory bool) (*models.NoteDetails, error) {
	log := logger.FromContext(ctx)
	log.Debug("getting note: user_id=%s, task_id=%s, include_history=%t", userID, taskID, includeHistory)

	if !s.catalog.ValidTask(taskID) {
		return nil, errors.NewValidationError("task_id", "unknown task")
	}

	detached, err := s.notes.Get(ctx, userID, taskID)
	if err != nil {
		log.Error("failed to get note: %v", err)
		return nil, errors.NewStoreUnavailableError(err)
	}

	rec, err := s.progress.Get(ctx, userID)
	if err != nil {
		log.Error("failed to get progress for note merge: %v", err)
		return nil, errors.NewStoreUnavailableError(err)
	}

	details := mergeNote(taskID, detached, rec.Task(taskID))
	if !includeHistory {
		details.History = []models.NoteVersion{}
	}
	return details, nil
}

func (s *notesService) GetAll(ctx context.Context, userID, search string) (map[string]models.NoteSummary, error) {
	log := logger.FromContext(ctx)
	log.Debug("listing notes: user_id=%s, search=%q", userID, search)

	detached, err := s.notes.List(ctx, userID, search)
	if err != nil {
		log.Error("failed to list notes: %v", err)
		return nil, errors.NewStoreUnavailableError(err)
	}

	rec, err := s.progress.Get(ctx, userID)
	if err != nil {
		log.Error("failed to get progress for note listing: %v", err)
		return nil, errors.NewStoreUnavailableError(err)
	}

	out := make(map[string]models.NoteSummary, len(detached))
	for _, n := range detached {
		out[n.TaskID] = models.NoteSummary{
			TaskID:         n.TaskID,
			Content:        n.Content,
			Format:         n.Format,
			Tags:           n.Tags,
			WordCount:      notes.WordCount(n.Content),
			CharacterCount: notes.CharCount(n.Content),
			LastUpdated:    n.LastUpdated,
		}
	}

	// Inline legacy notes without a detached record still count.
	for taskID, tp := range rec.Tasks {
		if tp.Notes == "" {
			continue
		}
		if _, ok := out[taskID]; ok {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(tp.Notes), strings.ToLower(search)) {
			continue
		}
		out[taskID] = models.NoteSummary{
			TaskID:         taskID,
			Content:        tp.Notes,
			Format:         models.FormatText,
			WordCount:      notes.WordCount(tp.Notes),
			CharacterCount: notes.CharCount(tp.Notes),
			LastUpdated:    tp.LastUpdated,
		}
	}

	log.Debug("found %d notes", len(out))
	return out, nil
}

func (s *notesService) Save(ctx context.Context, userID, taskID, content string, tags []string, format models.NoteFormat) (*models.NoteDetails, error) {
	log := logger.FromContext(ctx)
	log.Debug("saving note: user_id=%s, task_id=%s", userID, taskID)

	if !s.catalog.ValidTask(taskID) {
		return nil, errors.NewValidationError("task_id", "unknown task")
	}
	if format != "" && !models.ValidNoteFormat(format) {
		return nil, errors.NewValidationError("format", "must be text, markdown or html")
	}

	existing, err := s.notes.Get(ctx, userID, taskID)
	if err != nil {
		log.Error("failed to load existing note: %v", err)
		return nil, errors.NewStoreUnavailableError(err)
	}

	return s.persist(ctx, userID, taskID, existing, content, tags, format)
}

func (s *notesService) Update(ctx context.Context, userID, taskID string, patch models.NotePatch) (*models.NoteDetails, error) {
	log := logger.FromContext(ctx)
	log.Debug("updating note: user_id=%s, task_id=%s", userID, taskID)

	if !s.catalog.ValidTask(taskID) {
		return nil, errors.NewValidationError("task_id", "unknown task")
	}
	if patch.Empty() {
		return nil, errors.NewValidationError("body", "at least one field required")
	}
	if patch.Format != nil && !models.ValidNoteFormat(*patch.Format) {
		return nil, errors.NewValidationError("format", "must be text, markdown or html")
	}

	existing, err := s.notes.Get(ctx, userID, taskID)
	if err != nil {
		log.Error("failed to load existing note: %v", err)
		return nil, errors.NewStoreUnavailableError(err)
	}
	if existing == nil {
		return nil, errors.NewNotFoundError("note", taskID)
	}

	content := existing.Content
	if patch.Content != nil {
		content = *patch.Content
	}
	tags := existing.Tags
	if patch.Tags != nil {
		tags = *patch.Tags
	}
	format := existing.Format
	if patch.Format != nil {
		format = *patch.Format
	}

	return s.persist(ctx, userID, taskID, existing, content, tags, format)
}

func (s *notesService) Delete(ctx context.Context, userID, taskID string, keepHistory bool) (*models.NoteDetails, error) {
	log := logger.FromContext(ctx)
	log.Debug("deleting note: user_id=%s, task_id=%s, keep_history=%t", userID, taskID, keepHistory)

	if !s.catalog.ValidTask(taskID) {
		return nil, errors.NewValidationError("task_id", "unknown task")
	}

	existing, err := s.notes.Get(ctx, userID, taskID)
	if err != nil {
		log.Error("failed to load note for delete: %v", err)
		return nil, errors.NewStoreUnavailableError(err)
	}

	rec, err := s.progress.Get(ctx, userID)
	if err != nil {
		log.Error("failed to load progress for delete: %v", err)
		return nil, errors.NewStoreUnavailableError(err)
	}

	inline := rec.Task(taskID).Notes
	if (existing == nil || existing.Content == "") && inline == "" {
		return nil, errors.NewNotFoundError("note", taskID)
	}

	details := mergeNote(taskID, existing, rec.Task(taskID))

	if err := s.deleteOne(ctx, userID, taskID, existing, rec, keepHistory); err != nil {
		return nil, err
	}
	return details, nil
}

func (s *notesService) DeleteAll(ctx context.Context, userID string, keepHistory bool) (int, error) {
	log := logger.FromContext(ctx)
	log.Info("deleting all notes: user_id=%s, keep_history=%t", userID, keepHistory)

	detached, err := s.notes.List(ctx, userID, "")
	if err != nil {
		log.Error("failed to list notes for delete: %v", err)
		return 0, errors.NewStoreUnavailableError(err)
	}

	rec, err := s.progress.Get(ctx, userID)
	if err != nil {
		log.Error("failed to load progress for delete: %v", err)
		return 0, errors.NewStoreUnavailableError(err)
	}

	targets := make(map[string]*models.NoteRecord, len(detached))
	for i := range detached {
		targets[detached[i].TaskID] = &detached[i]
	}
	for taskID, tp := range rec.Tasks {
		if tp.Notes != "" {
			if _, ok := targets[taskID]; !ok {
				targets[taskID] = nil
			}
		}
	}

	count := 0
	for taskID, existing := range targets {
		if err := s.deleteOne(ctx, userID, taskID, existing, rec, keepHistory); err != nil {
			return count, err
		}
		count++
	}

	log.Info("deleted %d notes", count)
	return count, nil
}

// persist applies the shared save policy: truncate, diff, rotate history on
// change, always bump lastUpdated.
func (s *notesService) persist(ctx context.Context, userID, taskID string, existing *models.NoteRecord, content string, tags []string, format models.NoteFormat) (*models.NoteDetails, error) {
	log := logger.FromContext(ctx)
	now := s.now()

	content = notes.Truncate(content, s.limits.MaxContentLength)
	if format == "" {
		format = models.FormatText
		if existing != nil && existing.Format != "" {
			format = existing.Format
		}
	}
	if tags == nil && existing != nil {
		tags = existing.Tags
	}

	var history []models.NoteVersion
	if existing != nil {
		history = existing.History
		if existing.Content != "" && existing.Content != content {
			history = notes.Rotate(history, existing.Content, existing.LastUpdated, s.limits.HistoryLimit)
			log.Debug("rotated note history: task_id=%s, versions=%d", taskID, len(history))
		}
	}

	record := models.NoteRecord{
		UserID:      userID,
		TaskID:      taskID,
		Content:     content,
		Format:      format,
		Tags:        notes.SanitizeTags(tags, s.limits),
		History:     history,
		LastUpdated: now,
	}
	if err := s.notes.Upsert(ctx, record); err != nil {
		log.Error("failed to upsert note: %v", err)
		return nil, errors.NewStoreUnavailableError(err)
	}

	return &models.NoteDetails{
		TaskID:         taskID,
		Content:        record.Content,
		Format:         record.Format,
		Tags:           record.Tags,
		WordCount:      notes.WordCount(record.Content),
		CharacterCount: notes.CharCount(record.Content),
		LastUpdated:    record.LastUpdated,
		History:        record.History,
	}, nil
}

// deleteOne clears one note in both stores so they cannot disagree afterwards.
func (s *notesService) deleteOne(ctx context.Context, userID, taskID string, existing *models.NoteRecord, rec *models.ProgressRecord, keepHistory bool) error {
	log := logger.FromContext(ctx)

	finalContent := ""
	if existing != nil {
		finalContent = existing.Content
	}
	if finalContent == "" {
		finalContent = rec.Task(taskID).Notes
	}

	if keepHistory && finalContent != "" {
		var history []models.NoteVersion
		lastUpdated := s.now()
		var format models.NoteFormat = models.FormatText
		var tags []string
		if existing != nil {
			history = existing.History
			lastUpdated = existing.LastUpdated
			format = existing.Format
			tags = existing.Tags
		}
		history = notes.Rotate(history, finalContent, lastUpdated, s.limits.HistoryLimit)
		cleared := models.NoteRecord{
			UserID:      userID,
			TaskID:      taskID,
			Content:     "",
			Format:      format,
			Tags:        tags,
			History:     history,
			LastUpdated: s.now(),
		}
		if err := s.notes.Upsert(ctx, cleared); err != nil {
			log.Error("failed to archive note on delete: %v", err)
			return errors.NewStoreUnavailableError(err)
		}
	} else if existing != nil {
		if err := s.notes.Delete(ctx, userID, taskID); err != nil {
			log.Error("failed to delete note: %v", err)
			return errors.NewStoreUnavailableError(err)
		}
	}

	// Clear the inline legacy field too.
	if tp := rec.Task(taskID); tp.Notes != "" {
		tp.Notes = ""
		tp.LastUpdated = s.now()
		rec.SetTask(taskID, tp)
		if err := s.progress.Put(ctx, userID, rec); err != nil {
			log.Error("failed to clear inline note: %v", err)
			return errors.NewStoreUnavailableError(err)
		}
	}
	return nil
}

// mergeNote joins the inline legacy field with the detached record, the
// detached record winning on conflicting fields. Counts are derived from the
// final content.
func mergeNote(taskID string, detached *models.NoteRecord, tp models.TaskProgress) *models.NoteDetails {
	details := &models.NoteDetails{
		TaskID:      taskID,
		Content:     tp.Notes,
		Format:      models.FormatText,
		LastUpdated: tp.LastUpdated,
		History:     []models.NoteVersion{},
	}
	if detached != nil {
		if detached.Content != "" {
			details.Content = detached.Content
		}
		if detached.Format != "" {
			details.Format = detached.Format
		}
		details.Tags = detached.Tags
		details.LastUpdated = detached.LastUpdated
		if detached.History != nil {
			details.History = detached.History
		}
	}
	details.WordCount = notes.WordCount(details.Content)
	details.CharacterCount = notes.CharCount(details.Content)
	return details
}
