package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/mviana/labtrack/internal/models"
)

func TestStartNew_OpensFreshAttempt(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	attempt, err := env.labs.StartNew(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, attempt)
	assert.NotEmpty(t, attempt.LabID)
	assert.Equal(t, models.AttemptStarted, attempt.Status)
	assert.Equal(t, 2, attempt.TotalTasks)
	assert.Equal(t, 0, attempt.TasksCompleted)
}

func TestStartNew_ArchivesPartialAttemptAndClearsProgress(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first, err := env.labs.StartNew(ctx, "alice")
	require.NoError(t, err)

	// Partial progress: one of two tasks done.
	_, err = env.progress.SetTaskCompletion(ctx, "alice", "t1", true)
	require.NoError(t, err)

	second, err := env.labs.StartNew(ctx, "alice")
	require.NoError(t, err)
	assert.NotEqual(t, first.LabID, second.LabID)

	history, err := env.labs.History(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, history, 2)

	var archived *models.LabAttempt
	for i := range history {
		if history[i].LabID == first.LabID {
			archived = &history[i]
		}
	}
	require.NotNil(t, archived)
	assert.Equal(t, models.AttemptStarted, archived.Status, "incomplete attempt stays started but frozen")
	assert.Equal(t, 1, archived.TasksCompleted)
	assert.Equal(t, 2, archived.TotalTasks)

	// Progress record was reset.
	rec, err := env.progress.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, rec.Tasks)
}

func TestStartNew_AfterCompletedAttempt(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first, err := env.labs.StartNew(ctx, "alice")
	require.NoError(t, err)

	_, err = env.progress.SetTaskCompletion(ctx, "alice", "t1", true)
	require.NoError(t, err)
	_, err = env.progress.SetTaskCompletion(ctx, "alice", "t2", true)
	require.NoError(t, err)

	// Detection closed the first attempt; starting again archives nothing new.
	second, err := env.labs.StartNew(ctx, "alice")
	require.NoError(t, err)
	assert.NotEqual(t, first.LabID, second.LabID)

	history, err := env.labs.History(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, history, 2)

	for _, a := range history {
		if a.LabID == first.LabID {
			assert.Equal(t, models.AttemptCompleted, a.Status)
			assert.Equal(t, 2, a.TasksCompleted)
		}
		if a.LabID == second.LabID {
			assert.Equal(t, models.AttemptStarted, a.Status)
		}
	}
}

func TestCheckCompletion_NoActiveAttemptIsNoOp(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	rec := models.NewProgressRecord()
	// Completing everything without an open attempt must not error.
	_, err := env.progress.SetTaskCompletion(ctx, "alice", "t1", true)
	require.NoError(t, err)
	_, err = env.progress.SetTaskCompletion(ctx, "alice", "t2", true)
	require.NoError(t, err)

	require.NoError(t, env.labs.CheckCompletion(ctx, "alice", rec))

	history, err := env.labs.History(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, history)
}
