package services_test

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/mviana/labtrack/internal/curriculum"
	"github.com/mviana/labtrack/internal/notes"
	"github.com/mviana/labtrack/internal/repository"
	"github.com/mviana/labtrack/internal/repository/sqlite"
	"github.com/mviana/labtrack/internal/services"
	"github.com/mviana/labtrack/internal/testutil"
)

// testEnv wires real sqlite repositories against an in-memory database with a
// two-task catalog: t1 has no subtasks, t2 has steps a and b.
type testEnv struct {
	db       *sql.DB
	catalog  *curriculum.Catalog
	limits   notes.Limits
	progRepo repository.ProgressRepository
	noteRepo repository.NoteRepository
	labRepo  repository.LabSessionRepository

	labs     services.LabService
	progress services.ProgressService
	notes    services.NotesService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	catalog, err := curriculum.New([]curriculum.Week{
		{
			ID: "week-1",
			Tasks: []curriculum.Task{
				{ID: "t1"},
				{ID: "t2", Steps: []curriculum.Step{{ID: "a"}, {ID: "b"}}},
			},
		},
	})
	require.NoError(t, err)

	db := testutil.NewTestDB(t)
	t.Cleanup(func() { testutil.MustClose(t, db) })

	env := &testEnv{
		db:       db,
		catalog:  catalog,
		limits:   notes.DefaultLimits(),
		progRepo: sqlite.NewProgressRepository(db),
		noteRepo: sqlite.NewNoteRepository(db),
		labRepo:  sqlite.NewLabSessionRepository(db),
	}
	env.labs = services.NewLabService(env.labRepo, env.progRepo, catalog)
	env.progress = services.NewProgressService(env.progRepo, env.labs, catalog, env.limits)
	env.notes = services.NewNotesService(env.noteRepo, env.progRepo, catalog, env.limits)
	return env
}
