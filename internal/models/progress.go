package models

import "time"

// SubtaskProgress is the completion state of a single checklist step.
type SubtaskProgress struct {
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// TaskProgress is the completion state of one curriculum task, including its
// subtask states and the inline legacy note field kept for bulk export.
type TaskProgress struct {
	Completed   bool                       `json:"completed"`
	CompletedAt *time.Time                 `json:"completed_at,omitempty"`
	Subtasks    map[string]SubtaskProgress `json:"subtasks,omitempty"`
	Notes       string                     `json:"notes,omitempty"`
	LastUpdated time.Time                  `json:"last_updated"`
}

// ProgressRecord is the per-user completion document. Task entries are created
// lazily on first mutation; a missing record reads as empty.
type ProgressRecord struct {
	Tasks map[string]TaskProgress `json:"tasks"`
}

// NewProgressRecord returns an empty record ready for mutation.
func NewProgressRecord() *ProgressRecord {
	return &ProgressRecord{Tasks: make(map[string]TaskProgress)}
}

// Task returns the stored progress for taskID, or a zero value if absent.
func (r *ProgressRecord) Task(taskID string) TaskProgress {
	if r.Tasks == nil {
		return TaskProgress{}
	}
	return r.Tasks[taskID]
}

// SetTask stores tp under taskID, allocating the map if needed.
func (r *ProgressRecord) SetTask(taskID string, tp TaskProgress) {
	if r.Tasks == nil {
		r.Tasks = make(map[string]TaskProgress)
	}
	r.Tasks[taskID] = tp
}
