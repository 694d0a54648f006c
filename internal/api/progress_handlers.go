package api

import (
	"encoding/json"
	"net/http"

	"github.com/mviana/labtrack/internal/errors"
	"github.com/mviana/labtrack/internal/logger"
	"github.com/mviana/labtrack/internal/models"
)

func (s *Server) handleGetProgress(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	userID := userFromContext(r.Context())
	log.Debug("fetching progress")

	rec, err := s.Progress.Get(r.Context(), userID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, rec)
}

func (s *Server) handleUpdateProgress(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	userID := userFromContext(r.Context())

	var patch models.ProgressPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		log.Warn("malformed progress payload: %v", err)
		handleError(w, r, errors.NewValidationError("body", "malformed JSON"))
		return
	}
	if patch.TaskID == "" {
		handleError(w, r, errors.NewValidationError("task_id", "required"))
		return
	}

	var (
		rec *models.ProgressRecord
		err error
	)
	switch {
	case patch.StepID != "":
		if patch.StepCompleted == nil {
			handleError(w, r, errors.NewValidationError("step_completed", "required with step_id"))
			return
		}
		rec, err = s.Progress.SetSubtaskCompletion(r.Context(), userID, patch.TaskID, patch.StepID, *patch.StepCompleted)
	case patch.Completed != nil:
		rec, err = s.Progress.SetTaskCompletion(r.Context(), userID, patch.TaskID, *patch.Completed)
	default:
		handleError(w, r, errors.NewValidationError("completed", "required"))
		return
	}
	if err != nil {
		handleError(w, r, err)
		return
	}

	// Return only the fragment the caller touched.
	respondJSON(w, r, http.StatusOK, map[string]any{
		"task_id": patch.TaskID,
		"task":    rec.Task(patch.TaskID),
	})
}
