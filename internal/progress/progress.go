// Package progress implements the completion cascade rules as pure functions
// over the progress record, decoupled from storage and transport.
//
// Two invariants hold for every task and subtask:
//   - A task with subtasks is completed exactly when every subtask is
//     completed; the parent flag is re-derived on every subtask mutation.
//   - completedAt is non-nil exactly when completed is true.
package progress

import (
	"time"

	"github.com/mviana/labtrack/internal/models"
)

// AllSubtasksCompleted reports whether every subtask in stepIDs is completed
// in tp. Returns false for an empty step list; tasks without subtasks are
// completed only by an explicit toggle.
func AllSubtasksCompleted(tp models.TaskProgress, stepIDs []string) bool {
	if len(stepIDs) == 0 {
		return false
	}
	for _, id := range stepIDs {
		if st, ok := tp.Subtasks[id]; !ok || !st.Completed {
			return false
		}
	}
	return true
}

// ApplyTask sets the task-level completion flag and cascades it downward to
// every subtask in stepIDs, both when completing and when clearing. Timestamps
// are only stamped on a false-to-true transition and only cleared on
// true-to-false, so reapplying the same value changes nothing.
func ApplyTask(rec *models.ProgressRecord, taskID string, stepIDs []string, completed bool, now time.Time) {
	tp := rec.Task(taskID)
	if tp.Subtasks == nil && len(stepIDs) > 0 {
		tp.Subtasks = make(map[string]models.SubtaskProgress, len(stepIDs))
	}

	for _, id := range stepIDs {
		st := tp.Subtasks[id]
		tp.Subtasks[id] = applyFlag(st, completed, now)
	}

	setTaskFlag(&tp, completed, now)
	tp.LastUpdated = now
	rec.SetTask(taskID, tp)
}

// ApplySubtask sets one subtask flag and re-derives the parent task's
// completion from the full step list. Deterministic and idempotent: applying
// the same update twice yields the same record state.
func ApplySubtask(rec *models.ProgressRecord, taskID, stepID string, stepIDs []string, completed bool, now time.Time) {
	tp := rec.Task(taskID)
	if tp.Subtasks == nil {
		tp.Subtasks = make(map[string]models.SubtaskProgress, len(stepIDs))
	}

	tp.Subtasks[stepID] = applyFlag(tp.Subtasks[stepID], completed, now)

	setTaskFlag(&tp, AllSubtasksCompleted(tp, stepIDs), now)
	tp.LastUpdated = now
	rec.SetTask(taskID, tp)
}

// CompletedCount returns how many of taskIDs are completed in rec.
func CompletedCount(rec *models.ProgressRecord, taskIDs []string) int {
	count := 0
	for _, id := range taskIDs {
		if rec.Task(id).Completed {
			count++
		}
	}
	return count
}

func applyFlag(st models.SubtaskProgress, completed bool, now time.Time) models.SubtaskProgress {
	switch {
	case completed && !st.Completed:
		st.Completed = true
		ts := now
		st.CompletedAt = &ts
	case !completed:
		st.Completed = false
		st.CompletedAt = nil
	}
	return st
}

func setTaskFlag(tp *models.TaskProgress, completed bool, now time.Time) {
	switch {
	case completed && !tp.Completed:
		tp.Completed = true
		ts := now
		tp.CompletedAt = &ts
	case !completed:
		tp.Completed = false
		tp.CompletedAt = nil
	}
}
