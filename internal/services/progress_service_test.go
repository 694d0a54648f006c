package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "github.com/mviana/labtrack/internal/errors"
	"github.com/mviana/labtrack/internal/models"
)

func TestSetTaskCompletion_UnknownTask(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.progress.SetTaskCompletion(ctx, "alice", "bogus", true)
	require.Error(t, err)
	appErr, ok := err.(*apperrors.AppError)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeValidation, appErr.Code)
}

func TestSetSubtaskCompletion_UnknownStep(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.progress.SetSubtaskCompletion(ctx, "alice", "t2", "zzz", true)
	require.Error(t, err)
	appErr, ok := err.(*apperrors.AppError)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeValidation, appErr.Code)
}

func TestSetTaskCompletion_CascadesToSubtasks(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	rec, err := env.progress.SetTaskCompletion(ctx, "alice", "t2", true)
	require.NoError(t, err)

	tp := rec.Task("t2")
	assert.True(t, tp.Completed)
	assert.True(t, tp.Subtasks["a"].Completed)
	assert.True(t, tp.Subtasks["b"].Completed)

	// Clearing the parent cascades down as well.
	rec, err = env.progress.SetTaskCompletion(ctx, "alice", "t2", false)
	require.NoError(t, err)
	tp = rec.Task("t2")
	assert.False(t, tp.Completed)
	assert.False(t, tp.Subtasks["a"].Completed)
	assert.False(t, tp.Subtasks["b"].Completed)
}

func TestSetSubtaskCompletion_Persists(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.progress.SetSubtaskCompletion(ctx, "alice", "t2", "a", true)
	require.NoError(t, err)

	// Re-read from the store, not just the returned record.
	rec, err := env.progress.Get(ctx, "alice")
	require.NoError(t, err)
	tp := rec.Task("t2")
	assert.True(t, tp.Subtasks["a"].Completed)
	assert.False(t, tp.Completed)
}

func TestCompletionScenario(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	attempt, err := env.labs.StartNew(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, models.AttemptStarted, attempt.Status)
	require.Equal(t, 2, attempt.TotalTasks)

	// Complete t1: half done, attempt still open.
	rec, err := env.progress.SetTaskCompletion(ctx, "alice", "t1", true)
	require.NoError(t, err)
	assert.True(t, rec.Task("t1").Completed)

	active, err := env.labRepo.Active(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, active)

	// Complete step a: t2 remains incomplete.
	rec, err = env.progress.SetSubtaskCompletion(ctx, "alice", "t2", "a", true)
	require.NoError(t, err)
	assert.False(t, rec.Task("t2").Completed)

	// Complete step b: t2 completes and the attempt transitions.
	rec, err = env.progress.SetSubtaskCompletion(ctx, "alice", "t2", "b", true)
	require.NoError(t, err)
	assert.True(t, rec.Task("t2").Completed)

	history, err := env.labs.History(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, models.AttemptCompleted, history[0].Status)
	assert.Equal(t, 2, history[0].TasksCompleted)
	require.NotNil(t, history[0].CompletedAt)
	firstCompletedAt := *history[0].CompletedAt

	// A later mutation must not re-fire or duplicate the transition.
	_, err = env.progress.SetSubtaskCompletion(ctx, "alice", "t2", "a", false)
	require.NoError(t, err)
	_, err = env.progress.SetSubtaskCompletion(ctx, "alice", "t2", "a", true)
	require.NoError(t, err)

	history, err = env.labs.History(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, models.AttemptCompleted, history[0].Status)
	require.NotNil(t, history[0].CompletedAt)
	assert.True(t, history[0].CompletedAt.Equal(firstCompletedAt), "completion timestamp must not move")
}

func TestSetNotes_InlineField(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	rec, err := env.progress.SetNotes(ctx, "alice", "t1", "quick reminder")
	require.NoError(t, err)
	assert.Equal(t, "quick reminder", rec.Task("t1").Notes)

	// Persisted, and completion state untouched.
	rec, err = env.progress.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "quick reminder", rec.Task("t1").Notes)
	assert.False(t, rec.Task("t1").Completed)
}
