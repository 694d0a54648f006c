package api

import (
	"encoding/json"
	"net/http"

	"github.com/mviana/labtrack/internal/errors"
	"github.com/mviana/labtrack/internal/logger"
	"github.com/mviana/labtrack/internal/models"
)

type saveNoteRequest struct {
	TaskID  string            `json:"task_id"`
	Content string            `json:"content"`
	Tags    []string          `json:"tags,omitempty"`
	Format  models.NoteFormat `json:"format,omitempty"`
}

type updateNoteRequest struct {
	TaskID string `json:"task_id"`
	models.NotePatch
}

func (s *Server) handleGetNotes(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	userID := userFromContext(r.Context())

	q := r.URL.Query()
	taskID := q.Get("taskId")

	if taskID == "" {
		summaries, err := s.Notes.GetAll(r.Context(), userID, q.Get("search"))
		if err != nil {
			handleError(w, r, err)
			return
		}
		if format := q.Get("format"); format != "" {
			if !models.ValidNoteFormat(models.NoteFormat(format)) {
				handleError(w, r, errors.NewValidationError("format", "unknown note format"))
				return
			}
			for id, summary := range summaries {
				if summary.Format != models.NoteFormat(format) {
					delete(summaries, id)
				}
			}
		}
		respondJSON(w, r, http.StatusOK, summaries)
		return
	}

	includeHistory := q.Get("includeHistory") == "true"
	log.Debug("fetching note: task_id=%s, include_history=%t", taskID, includeHistory)

	details, err := s.Notes.Get(r.Context(), userID, taskID, includeHistory)
	if err != nil {
		handleError(w, r, err)
		return
	}
	if format := q.Get("format"); format != "" {
		if !models.ValidNoteFormat(models.NoteFormat(format)) {
			handleError(w, r, errors.NewValidationError("format", "unknown note format"))
			return
		}
		if details.Format != models.NoteFormat(format) {
			handleError(w, r, errors.NewNotFoundError("note", taskID))
			return
		}
	}
	respondJSON(w, r, http.StatusOK, details)
}

func (s *Server) handleSaveNote(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	userID := userFromContext(r.Context())

	var req saveNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn("malformed note payload: %v", err)
		handleError(w, r, errors.NewValidationError("body", "malformed JSON"))
		return
	}
	if req.TaskID == "" {
		handleError(w, r, errors.NewValidationError("task_id", "required"))
		return
	}
	if req.Content == "" {
		handleError(w, r, errors.NewValidationError("content", "note content required"))
		return
	}

	details, err := s.Notes.Save(r.Context(), userID, req.TaskID, req.Content, req.Tags, req.Format)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, details)
}

func (s *Server) handleUpdateNote(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	userID := userFromContext(r.Context())

	var req updateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn("malformed note patch: %v", err)
		handleError(w, r, errors.NewValidationError("body", "malformed JSON"))
		return
	}
	if req.TaskID == "" {
		handleError(w, r, errors.NewValidationError("task_id", "required"))
		return
	}

	details, err := s.Notes.Update(r.Context(), userID, req.TaskID, req.NotePatch)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, details)
}

func (s *Server) handleDeleteNotes(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	userID := userFromContext(r.Context())

	q := r.URL.Query()
	keepHistory := q.Get("keepHistory") == "true"

	if q.Get("deleteAll") == "true" {
		count, err := s.Notes.DeleteAll(r.Context(), userID, keepHistory)
		if err != nil {
			handleError(w, r, err)
			return
		}
		log.Info("deleted all notes: count=%d", count)
		respondJSON(w, r, http.StatusOK, map[string]any{"deleted": count})
		return
	}

	taskID := q.Get("taskId")
	if taskID == "" {
		handleError(w, r, errors.NewValidationError("taskId", "taskId or deleteAll required"))
		return
	}

	details, err := s.Notes.Delete(r.Context(), userID, taskID, keepHistory)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, details)
}
