package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/mviana/labtrack/internal/services"
)

type Server struct {
	Progress services.ProgressService
	Notes    services.NotesService
	Labs     services.LabService
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(recoveryMiddleware)
	r.Use(loggingMiddleware)
	r.Use(securityHeadersMiddleware)

	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(identityMiddleware)

		r.Get("/progress", s.handleGetProgress)
		r.Post("/progress", s.handleUpdateProgress)

		r.Get("/notes", s.handleGetNotes)
		r.Post("/notes", s.handleSaveNote)
		r.Put("/notes", s.handleUpdateNote)
		r.Delete("/notes", s.handleDeleteNotes)

		r.Get("/lab-history", s.handleLabHistory)
		r.Post("/lab-start", s.handleLabStart)
	})

	return r
}
