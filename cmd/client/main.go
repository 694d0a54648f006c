package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/mviana/labtrack/internal/config"
	"github.com/mviana/labtrack/internal/curriculum"
	"github.com/mviana/labtrack/internal/logger"
	"github.com/mviana/labtrack/internal/models"
	"github.com/mviana/labtrack/internal/sync"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var serverURL, userID string

	root := &cobra.Command{
		Use:           "labtrack",
		Short:         "LabTrack sync client",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "LabTrack server URL")
	root.PersistentFlags().StringVar(&userID, "user", "", "user id (required)")

	root.AddCommand(newProgressCmd(&serverURL, &userID))
	root.AddCommand(newTaskCmd(&serverURL, &userID))
	root.AddCommand(newStepCmd(&serverURL, &userID))
	root.AddCommand(newNoteCmd(&serverURL, &userID))
	root.AddCommand(newReconcileCmd(&serverURL, &userID))
	return root
}

func loadEngine(serverURL, userID string) (*sync.Engine, error) {
	if userID == "" {
		return nil, fmt.Errorf("--user is required")
	}
	cfg := config.Load()

	catalog, err := curriculum.Load()
	if err != nil {
		return nil, err
	}
	cache, err := sync.OpenCache(cfg.SyncCachePath)
	if err != nil {
		return nil, err
	}

	notifier := sync.NewNotifier(time.Minute, func(n sync.Notification) {
		_, _ = fmt.Fprintf(os.Stderr, "[%s] %s\n", n.Level, n.Message)
	})

	return sync.NewEngine(sync.EngineConfig{
		Store:    sync.NewHTTPStore(serverURL, cfg.StoreTimeout),
		Cache:    cache,
		Catalog:  catalog,
		Notifier: notifier,
		UserID:   userID,
		Timeout:  cfg.StoreTimeout,
		Logger:   logger.New(logger.WithLevel(logger.ParseLevel(cfg.LogLevel))),
	}), nil
}

func newProgressCmd(serverURL, userID *string) *cobra.Command {
	return &cobra.Command{
		Use:   "progress",
		Short: "Show the current progress record",
		RunE: func(_ *cobra.Command, _ []string) error {
			eng, err := loadEngine(*serverURL, *userID)
			if err != nil {
				return err
			}
			if err := eng.Load(context.Background()); err != nil {
				return err
			}
			return printRecord(eng.Record())
		},
	}
}

func newTaskCmd(serverURL, userID *string) *cobra.Command {
	return &cobra.Command{
		Use:   "task <taskId> <true|false>",
		Short: "Set a task's completion flag",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			completed, err := strconv.ParseBool(args[1])
			if err != nil {
				return fmt.Errorf("completion flag must be true or false: %w", err)
			}
			eng, err := loadEngine(*serverURL, *userID)
			if err != nil {
				return err
			}
			if err := eng.Load(context.Background()); err != nil {
				return err
			}
			if err := eng.SetTaskCompletion(args[0], completed); err != nil {
				return err
			}
			eng.Flush()
			return printRecord(eng.Record())
		},
	}
}

func newStepCmd(serverURL, userID *string) *cobra.Command {
	return &cobra.Command{
		Use:   "step <taskId> <stepId> <true|false>",
		Short: "Set a subtask's completion flag",
		Args:  cobra.ExactArgs(3),
		RunE: func(_ *cobra.Command, args []string) error {
			completed, err := strconv.ParseBool(args[2])
			if err != nil {
				return fmt.Errorf("completion flag must be true or false: %w", err)
			}
			eng, err := loadEngine(*serverURL, *userID)
			if err != nil {
				return err
			}
			if err := eng.Load(context.Background()); err != nil {
				return err
			}
			if err := eng.SetSubtaskCompletion(args[0], args[1], completed); err != nil {
				return err
			}
			eng.Flush()
			return printRecord(eng.Record())
		},
	}
}

func newNoteCmd(serverURL, userID *string) *cobra.Command {
	var tags []string
	var format string

	cmd := &cobra.Command{
		Use:   "note <taskId> <content>",
		Short: "Save a note for a task",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			eng, err := loadEngine(*serverURL, *userID)
			if err != nil {
				return err
			}
			if err := eng.SaveNote(args[0], args[1], tags, models.NoteFormat(format)); err != nil {
				return err
			}
			eng.Flush()
			if n := eng.PendingOffline(); n > 0 {
				_, _ = fmt.Fprintf(os.Stderr, "%d change(s) queued offline\n", n)
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&tags, "tags", nil, "note tags")
	cmd.Flags().StringVar(&format, "format", "", "note format (text, markdown, html)")
	return cmd
}

func newReconcileCmd(serverURL, userID *string) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Push offline-queued changes to the server",
		RunE: func(_ *cobra.Command, _ []string) error {
			eng, err := loadEngine(*serverURL, *userID)
			if err != nil {
				return err
			}
			before := eng.PendingOffline()
			if before == 0 {
				fmt.Println("nothing queued")
				return nil
			}
			if err := eng.Reconcile(context.Background()); err != nil {
				return err
			}
			fmt.Printf("reconciled %d change(s)\n", before-eng.PendingOffline())
			return nil
		},
	}
}

func printRecord(rec models.ProgressRecord) error {
	ids := make([]string, 0, len(rec.Tasks))
	for id := range rec.Tasks {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make(map[string]models.TaskProgress, len(ids))
	for _, id := range ids {
		out[id] = rec.Tasks[id]
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
