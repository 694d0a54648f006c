package api

import (
	"net/http"

	"github.com/mviana/labtrack/internal/logger"
)

func (s *Server) handleLabHistory(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	userID := userFromContext(r.Context())
	log.Debug("fetching lab history")

	history, err := s.Labs.History(r.Context(), userID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, history)
}

func (s *Server) handleLabStart(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	userID := userFromContext(r.Context())
	log.Info("starting new lab")

	attempt, err := s.Labs.StartNew(r.Context(), userID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, attempt)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}
