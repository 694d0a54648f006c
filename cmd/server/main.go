package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mviana/labtrack/internal/api"
	"github.com/mviana/labtrack/internal/config"
	"github.com/mviana/labtrack/internal/curriculum"
	"github.com/mviana/labtrack/internal/db"
	"github.com/mviana/labtrack/internal/logger"
	"github.com/mviana/labtrack/internal/notes"
	"github.com/mviana/labtrack/internal/repository/sqlite"
	"github.com/mviana/labtrack/internal/services"
)

func main() {
	cfg := config.Load()

	// Initialize logger
	log := logger.New(
		logger.WithLevel(logger.ParseLevel(cfg.LogLevel)),
		logger.WithColors(true),
	)
	logger.SetDefault(log)

	log.Info("===========================================")
	log.Info("LabTrack Server Starting")
	log.Info("===========================================")
	log.Info("configuration loaded")
	log.Debug("addr=%s", cfg.Addr)
	log.Debug("db_path=%s", cfg.DBPath)
	log.Debug("log_level=%s", cfg.LogLevel)
	log.Debug("note_max_length=%d", cfg.NoteMaxLength)
	log.Debug("note_history_limit=%d", cfg.NoteHistoryLimit)
	log.Debug("store_timeout=%s", cfg.StoreTimeout)

	// Load curriculum catalog
	catalog, err := curriculum.Load()
	if err != nil {
		log.Error("failed to load curriculum catalog: %v", err)
		os.Exit(1)
	}
	log.Info("curriculum loaded: %d weeks, %d tasks", len(catalog.Weeks()), catalog.TotalTasks())

	// Open database
	database, err := db.Open(cfg.DBPath)
	if err != nil {
		log.Error("failed to open database: %v", err)
		os.Exit(1)
	}
	defer func() {
		log.Debug("closing database connection")
		database.Close()
	}()

	limits := notes.Limits{
		MaxContentLength: cfg.NoteMaxLength,
		HistoryLimit:     cfg.NoteHistoryLimit,
		MaxTags:          cfg.NoteMaxTags,
		MaxTagLength:     cfg.NoteMaxTagLength,
	}

	// Initialize repositories and services
	progressRepo := sqlite.NewProgressRepository(database.DB)
	noteRepo := sqlite.NewNoteRepository(database.DB)
	labRepo := sqlite.NewLabSessionRepository(database.DB)

	labService := services.NewLabService(labRepo, progressRepo, catalog)
	progressService := services.NewProgressService(progressRepo, labService, catalog, limits)
	notesService := services.NewNotesService(noteRepo, progressRepo, catalog, limits)

	srv := &api.Server{
		Progress: progressService,
		Notes:    notesService,
		Labs:     labService,
	}

	// Configure HTTP server
	httpServer := &http.Server{
		Addr:         cfg.Addr,
		Handler:      srv.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start HTTP server
	go func() {
		log.Info("HTTP server listening on %s", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error: %v", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	sig := <-stop

	log.Info("received signal %v, initiating graceful shutdown", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	log.Debug("shutting down HTTP server")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error: %v", err)
	}

	log.Info("===========================================")
	log.Info("LabTrack Server Stopped")
	log.Info("===========================================")
}
